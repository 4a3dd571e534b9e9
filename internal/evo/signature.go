package evo

import (
	"crypto/sha1"
	"encoding/hex"

	"gpforge/internal/tree"
)

// ProgramSummary captures the shape of a program.
type ProgramSummary struct {
	Length       int    `json:"length"`
	Depth        int    `json:"depth"`
	Terminals    int    `json:"terminals"`
	NonTerminals int    `json:"non_terminals"`
	DataType     string `json:"data_type"`
}

type ProgramSignature struct {
	Fingerprint string         `json:"fingerprint"`
	Summary     ProgramSummary `json:"summary"`
}

// ComputeProgramSignature fingerprints a program by its printed form, so two
// structurally equal programs share a fingerprint.
func ComputeProgramSignature(root *tree.Node) ProgramSignature {
	digest := sha1.Sum([]byte(root.String()))
	return ProgramSignature{
		Fingerprint: hex.EncodeToString(digest[:8]),
		Summary: ProgramSummary{
			Length:       root.Length(),
			Depth:        root.Depth(),
			Terminals:    root.CountTerminals(),
			NonTerminals: root.CountNonTerminals(),
			DataType:     root.DataType().String(),
		},
	}
}
