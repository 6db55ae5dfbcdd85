package types_test

import (
	"testing"

	"github.com/govern-lab/mnemosyne/pkg/domain/types"
	"github.com/m-mizutani/gt"
)

func TestPrivacyTier_Level(t *testing.T) {
	tests := []struct {
		tier types.PrivacyTier
		want int
	}{
		{types.PrivacyTierMinimal, 1},
		{types.PrivacyTierSelective, 2},
		{types.PrivacyTierHigh, 3},
		{types.PrivacyTierMaximum, 4},
		{types.PrivacyTier("unknown"), 0},
		{types.PrivacyTier(""), 0},
	}

	for _, tt := range tests {
		t.Run(tt.tier.String(), func(t *testing.T) {
			gt.Number(t, tt.tier.Level()).Equal(tt.want)
		})
	}
}

func TestPrivacyTier_Ordering(t *testing.T) {
	tiers := types.AllPrivacyTiers()
	for i := 1; i < len(tiers); i++ {
		if tiers[i-1].Level() >= tiers[i].Level() {
			t.Errorf("tiers not in ascending order: %s >= %s", tiers[i-1], tiers[i])
		}
	}
}

func TestPrivacyTier_Covers(t *testing.T) {
	tests := []struct {
		name           string
		requester      types.PrivacyTier
		classification types.PrivacyTier
		want           bool
	}{
		{"equal tiers", types.PrivacyTierSelective, types.PrivacyTierSelective, true},
		{"requester above", types.PrivacyTierMaximum, types.PrivacyTierMinimal, true},
		{"requester one below", types.PrivacyTierHigh, types.PrivacyTierMaximum, false},
		{"requester far below", types.PrivacyTierMinimal, types.PrivacyTierMaximum, false},
		{"invalid requester", types.PrivacyTier("root"), types.PrivacyTierMinimal, false},
		{"invalid classification", types.PrivacyTierMaximum, types.PrivacyTier(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.want {
				gt.B(t, tt.requester.Covers(tt.classification)).True()
			} else {
				gt.B(t, tt.requester.Covers(tt.classification)).False()
			}
		})
	}
}

func TestPrivacyTier_CoversMatrix(t *testing.T) {
	// For every requester tier T and chunk tier C, unredacted access is
	// granted iff T's level is at or above C's level.
	for _, requester := range types.AllPrivacyTiers() {
		for _, chunk := range types.AllPrivacyTiers() {
			want := requester.Level() >= chunk.Level()
			got := requester.Covers(chunk)
			if got != want {
				t.Errorf("Covers(%s, %s) = %v, want %v", requester, chunk, got, want)
			}
		}
	}
}

func TestParsePrivacyTier(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    types.PrivacyTier
		wantErr bool
	}{
		{"lowercase", "minimal", types.PrivacyTierMinimal, false},
		{"uppercase", "MAXIMUM", types.PrivacyTierMaximum, false},
		{"mixed case with spaces", " High ", types.PrivacyTierHigh, false},
		{"selective", "selective", types.PrivacyTierSelective, false},
		{"unknown", "public", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := types.ParsePrivacyTier(tt.input)
			if tt.wantErr {
				gt.Error(t, err)
				return
			}
			gt.NoError(t, err)
			gt.Value(t, got).Equal(tt.want)
		})
	}
}

func TestPrivacyDecision_IsValid(t *testing.T) {
	gt.B(t, types.PrivacyDecisionAllow.IsValid()).True()
	gt.B(t, types.PrivacyDecisionRedact.IsValid()).True()
	gt.B(t, types.PrivacyDecisionDeny.IsValid()).True()
	gt.B(t, types.PrivacyDecision("grant").IsValid()).False()
	gt.B(t, types.PrivacyDecision("").IsValid()).False()
}
