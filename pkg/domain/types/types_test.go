package types_test

import (
	"testing"

	"github.com/govern-lab/mnemosyne/pkg/domain/types"
)

func TestSourceType_IsValid(t *testing.T) {
	tests := []struct {
		name string
		st   types.SourceType
		want bool
	}{
		{"upload", types.SourceTypeUpload, true},
		{"forum sync", types.SourceTypeForumSync, true},
		{"manual", types.SourceTypeManual, true},
		{"unknown", types.SourceType("scrape"), false},
		{"empty", types.SourceType(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.st.IsValid(); got != tt.want {
				t.Errorf("SourceType.IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseSourceType(t *testing.T) {
	got, err := types.ParseSourceType("forum_sync")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != types.SourceTypeForumSync {
		t.Errorf("ParseSourceType() = %v, want %v", got, types.SourceTypeForumSync)
	}

	if _, err := types.ParseSourceType("forum-sync"); err == nil {
		t.Error("expected error for unknown source type")
	}
}

func TestDocumentStatus_NeedsReconciliation(t *testing.T) {
	for _, status := range types.AllDocumentStatuses() {
		want := status == types.DocumentStatusPartiallyIndexed
		if got := status.NeedsReconciliation(); got != want {
			t.Errorf("NeedsReconciliation(%s) = %v, want %v", status, got, want)
		}
	}
}

func TestRelationType_IsValid(t *testing.T) {
	for _, rt := range types.AllRelationTypes() {
		if !rt.IsValid() {
			t.Errorf("relation type %s should be valid", rt)
		}
	}
	if types.RelationType("related").IsValid() {
		t.Error("unknown relation type should be invalid")
	}
}

func TestParseSynthesisMode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    types.SynthesisMode
		wantErr bool
	}{
		{"summary", "summary", types.SynthesisModeSummary, false},
		{"detailed uppercase", "DETAILED", types.SynthesisModeDetailed, false},
		{"analytical", "analytical", types.SynthesisModeAnalytical, false},
		{"empty defaults to summary", "", types.SynthesisModeSummary, false},
		{"unknown", "verbose", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := types.ParseSynthesisMode(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSynthesisMode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseSynthesisMode() = %v, want %v", got, tt.want)
			}
		})
	}
}
