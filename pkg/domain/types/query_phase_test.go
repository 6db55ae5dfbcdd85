package types_test

import (
	"testing"

	"github.com/govern-lab/mnemosyne/pkg/domain/types"
	"github.com/m-mizutani/gt"
)

func TestQueryPhase_CanTransition(t *testing.T) {
	tests := []struct {
		name string
		from types.QueryPhase
		to   types.QueryPhase
		want bool
	}{
		{"embedding to searching", types.QueryPhaseEmbedding, types.QueryPhaseSearching, true},
		{"searching to filtering", types.QueryPhaseSearching, types.QueryPhaseFiltering, true},
		{"filtering to synthesizing", types.QueryPhaseFiltering, types.QueryPhaseSynthesizing, true},
		{"filtering to done when nothing eligible", types.QueryPhaseFiltering, types.QueryPhaseDone, true},
		{"synthesizing to done", types.QueryPhaseSynthesizing, types.QueryPhaseDone, true},
		{"any phase to failed", types.QueryPhaseSearching, types.QueryPhaseFailed, true},
		{"skip searching", types.QueryPhaseEmbedding, types.QueryPhaseFiltering, false},
		{"skip filtering", types.QueryPhaseSearching, types.QueryPhaseSynthesizing, false},
		{"backwards", types.QueryPhaseFiltering, types.QueryPhaseEmbedding, false},
		{"done is terminal", types.QueryPhaseDone, types.QueryPhaseSynthesizing, false},
		{"failed is terminal", types.QueryPhaseFailed, types.QueryPhaseEmbedding, false},
		{"embedding straight to done", types.QueryPhaseEmbedding, types.QueryPhaseDone, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.want {
				gt.B(t, tt.from.CanTransition(tt.to)).True()
			} else {
				gt.B(t, tt.from.CanTransition(tt.to)).False()
			}
		})
	}
}

func TestQueryPhase_IsTerminal(t *testing.T) {
	gt.B(t, types.QueryPhaseDone.IsTerminal()).True()
	gt.B(t, types.QueryPhaseFailed.IsTerminal()).True()
	gt.B(t, types.QueryPhaseEmbedding.IsTerminal()).False()
	gt.B(t, types.QueryPhaseSynthesizing.IsTerminal()).False()
}
