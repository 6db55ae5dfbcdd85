package model

import "github.com/govern-lab/mnemosyne/pkg/domain/types"

// Citation points an answer back at one supporting chunk
type Citation struct {
	ChunkID ChunkID `json:"chunkId"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

// SynthesizedAnswer is the output of the synthesis engine
type SynthesizedAnswer struct {
	Text       string
	Citations  []Citation
	Confidence float64
	Mode       types.SynthesisMode
	// Provider records which configured backend produced the answer
	Provider string
	// Redacted is true when any contributing result was redacted
	Redacted bool
}
