package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"gpforge/pkg/gpforge"
)

type runRequestFlags struct {
	problem             *string
	population          *int
	generations         *int
	maxEvaluations      *int
	seed                *int64
	maxDepth            *int
	initMethod          *string
	initMinDepth        *int
	initMaxDepth        *int
	selection           *string
	selectionParam      *int
	elites              *int
	crossoverRate       *float64
	mutationRate        *float64
	terminalProbability *float64
	postprocessor       *string
	ignoreTarget        *bool
	topCount            *int
}

func addRunRequestFlags(fs *flag.FlagSet) runRequestFlags {
	return runRequestFlags{
		problem:             fs.String("problem", "even-parity-3", "problem name"),
		population:          fs.Int("pop", 100, "population size"),
		generations:         fs.Int("gens", 50, "generation limit (0 disables when an evaluation limit is set)"),
		maxEvaluations:      fs.Int("evaluations-limit", 0, "early-stop total evaluation limit (0 disables)"),
		seed:                fs.Int64("seed", 1, "rng seed"),
		maxDepth:            fs.Int("max-depth", 8, "maximum tree depth for bred programs"),
		initMethod:          fs.String("init", "ramped", "initialisation: grow|full|ramped"),
		initMinDepth:        fs.Int("init-min-depth", 2, "minimum initial tree depth"),
		initMaxDepth:        fs.Int("init-max-depth", 6, "maximum initial tree depth"),
		selection:           fs.String("selection", "tournament", "parent selection: tournament|random|elite|linear_rank"),
		selectionParam:      fs.Int("selection-param", 7, "tournament size or elite pool size"),
		elites:              fs.Int("elites", 0, "individuals copied unchanged into the next generation"),
		crossoverRate:       fs.Float64("crossover", 0.9, "subtree crossover probability"),
		mutationRate:        fs.Float64("mutation", 0.1, "subtree mutation probability"),
		terminalProbability: fs.Float64("terminal-probability", -1, "probability of picking a terminal node as crossover point (<0 uses uniform choice)"),
		postprocessor:       fs.String("fitness-postprocessor", "none", "fitness postprocessor: none|size_proportional"),
		ignoreTarget:        fs.Bool("ignore-target", false, "keep evolving after the problem target is reached"),
		topCount:            fs.Int("top", 5, "number of final programs to keep"),
	}
}

func (f runRequestFlags) request() gpforge.RunRequest {
	req := gpforge.RunRequest{
		Problem:        *f.problem,
		Population:     *f.population,
		Generations:    *f.generations,
		MaxEvaluations: *f.maxEvaluations,
		Seed:           *f.seed,
		MaxDepth:       *f.maxDepth,
		InitMethod:     *f.initMethod,
		InitMinDepth:   *f.initMinDepth,
		InitMaxDepth:   *f.initMaxDepth,
		Selection:      *f.selection,
		SelectionParam: *f.selectionParam,
		Elites:         *f.elites,
		CrossoverRate:  *f.crossoverRate,
		MutationRate:   *f.mutationRate,
		Postprocessor:  *f.postprocessor,
		IgnoreTarget:   *f.ignoreTarget,
		TopCount:       *f.topCount,
	}
	if *f.terminalProbability >= 0 {
		v := *f.terminalProbability
		req.TerminalProbability = &v
	}
	return req
}

func (f runRequestFlags) values() map[string]any {
	return map[string]any{
		"problem":               *f.problem,
		"pop":                   *f.population,
		"gens":                  *f.generations,
		"evaluations-limit":     *f.maxEvaluations,
		"seed":                  *f.seed,
		"max-depth":             *f.maxDepth,
		"init":                  *f.initMethod,
		"init-min-depth":        *f.initMinDepth,
		"init-max-depth":        *f.initMaxDepth,
		"selection":             *f.selection,
		"selection-param":       *f.selectionParam,
		"elites":                *f.elites,
		"crossover":             *f.crossoverRate,
		"mutation":              *f.mutationRate,
		"terminal-probability":  *f.terminalProbability,
		"fitness-postprocessor": *f.postprocessor,
		"ignore-target":         *f.ignoreTarget,
		"top":                   *f.topCount,
	}
}

// buildRunRequest uses the flags alone without a config file. With one, the
// file is the base and only explicitly set flags override it.
func buildRunRequest(fs *flag.FlagSet, configPath string, f runRequestFlags) (gpforge.RunRequest, error) {
	if configPath == "" {
		return f.request(), nil
	}
	req, err := loadRunRequestFromConfig(configPath)
	if err != nil {
		return gpforge.RunRequest{}, err
	}
	set := make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) {
		set[fl.Name] = true
	})
	if err := overrideFromFlags(&req, set, f.values()); err != nil {
		return gpforge.RunRequest{}, err
	}
	return req, nil
}

func loadRunRequestFromConfig(path string) (gpforge.RunRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return gpforge.RunRequest{}, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return gpforge.RunRequest{}, fmt.Errorf("decode run config %s: %w", path, err)
	}

	var req gpforge.RunRequest
	if v, ok := asString(raw["problem"]); ok {
		req.Problem = v
	}
	if v, ok := asInt(raw["population"]); ok {
		req.Population = v
	}
	if v, ok := asInt(raw["generations"]); ok {
		req.Generations = v
	}
	if v, ok := asInt(raw["evaluations_limit"]); ok {
		req.MaxEvaluations = v
	}
	if v, ok := asInt64(raw["seed"]); ok {
		req.Seed = v
	}
	if v, ok := asInt(raw["max_depth"]); ok {
		req.MaxDepth = v
	}
	if v, ok := asString(raw["init_method"]); ok {
		req.InitMethod = v
	}
	if v, ok := asInt(raw["init_min_depth"]); ok {
		req.InitMinDepth = v
	}
	if v, ok := asInt(raw["init_max_depth"]); ok {
		req.InitMaxDepth = v
	}
	if v, ok := asString(raw["selection"]); ok {
		req.Selection = v
	}
	if v, ok := asInt(raw["selection_param"]); ok {
		req.SelectionParam = v
	}
	if v, ok := asInt(raw["elites"]); ok {
		req.Elites = v
	}
	if v, ok := asFloat64(raw["terminal_probability"]); ok {
		req.TerminalProbability = &v
	}
	if v, ok := asString(raw["fitness_postprocessor"]); ok {
		req.Postprocessor = v
	}
	if v, ok := asBool(raw["ignore_target"]); ok {
		req.IgnoreTarget = v
	}
	if v, ok := asInt(raw["top_count"]); ok {
		req.TopCount = v
	}

	if ops, ok := raw["operators"].(map[string]any); ok {
		for name, weight := range ops {
			w, ok := asFloat64(weight)
			if !ok {
				return gpforge.RunRequest{}, fmt.Errorf("operator %s: numeric weight expected", name)
			}
			switch name {
			case "subtree_crossover", "crossover":
				req.CrossoverRate = w
			case "subtree_mutation", "mutation":
				req.MutationRate = w
			default:
				return gpforge.RunRequest{}, fmt.Errorf("unsupported operator in config: %s", name)
			}
		}
	}
	if req.CrossoverRate < 0 || req.MutationRate < 0 {
		return gpforge.RunRequest{}, errors.New("operator weights must be >= 0")
	}
	return req, nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}

func overrideFromFlags(req *gpforge.RunRequest, set map[string]bool, flagValue map[string]any) error {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "problem":
			req.Problem = v.(string)
		case "pop":
			req.Population = v.(int)
		case "gens":
			req.Generations = v.(int)
		case "evaluations-limit":
			req.MaxEvaluations = v.(int)
		case "seed":
			req.Seed = v.(int64)
		case "max-depth":
			req.MaxDepth = v.(int)
		case "init":
			req.InitMethod = v.(string)
		case "init-min-depth":
			req.InitMinDepth = v.(int)
		case "init-max-depth":
			req.InitMaxDepth = v.(int)
		case "selection":
			req.Selection = v.(string)
		case "selection-param":
			req.SelectionParam = v.(int)
		case "elites":
			req.Elites = v.(int)
		case "crossover":
			req.CrossoverRate = v.(float64)
		case "mutation":
			req.MutationRate = v.(float64)
		case "terminal-probability":
			p := v.(float64)
			if p < 0 {
				req.TerminalProbability = nil
			} else {
				req.TerminalProbability = &p
			}
		case "fitness-postprocessor":
			req.Postprocessor = v.(string)
		case "ignore-target":
			req.IgnoreTarget = v.(bool)
		case "top":
			req.TopCount = v.(int)
		default:
			return fmt.Errorf("unsupported override flag: %s", name)
		}
	}
	return nil
}
