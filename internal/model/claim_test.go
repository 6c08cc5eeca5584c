package model

import (
	"encoding/json"
	"math"
	"testing"
)

func TestClassifyScore_Boundaries(t *testing.T) {
	tests := []struct {
		score float64
		want  Confidence
	}{
		{1.0, ConfidenceHigh},
		{0.75, ConfidenceHigh},
		{0.7499, ConfidenceModerate},
		{0.5, ConfidenceModerate},
		{0.4999, ConfidenceLow},
		{0.25, ConfidenceLow},
		{0.2499, ConfidenceUnverified},
		{0, ConfidenceUnverified},
		{-0.3, ConfidenceUnverified},
		{1.7, ConfidenceHigh},
		{math.NaN(), ConfidenceUnverified},
	}

	for _, tt := range tests {
		if got := ClassifyScore(tt.score); got != tt.want {
			t.Errorf("ClassifyScore(%v) = %v, want %v", tt.score, got, tt.want)
		}
	}
}

func TestConfidence_Labels(t *testing.T) {
	tests := []struct {
		tier   Confidence
		label  string
		marker string
	}{
		{ConfidenceHigh, "High confidence", "check-green"},
		{ConfidenceModerate, "Moderate confidence", "check-orange"},
		{ConfidenceLow, "Low confidence", "alert-yellow"},
		{ConfidenceUnverified, "Unverified", "x-red"},
	}

	for _, tt := range tests {
		if tt.tier.Label() != tt.label {
			t.Errorf("%v label = %q, want %q", tt.tier, tt.tier.Label(), tt.label)
		}
		if tt.tier.Marker() != tt.marker {
			t.Errorf("%v marker = %q, want %q", tt.tier, tt.tier.Marker(), tt.marker)
		}
	}
}

func TestFactCheckResult_AverageScore(t *testing.T) {
	if got := (FactCheckResult{}).AverageScore(); got != 0 {
		t.Errorf("expected 0 for empty result, got %v", got)
	}

	r := FactCheckResult{Claims: []FactCheckClaim{{Score: 0.4}, {Score: 0.8}}}
	if got := r.AverageScore(); math.Abs(got-0.6) > 1e-9 {
		t.Errorf("expected 0.6, got %v", got)
	}
}

func TestFactCheckResult_JSONShape(t *testing.T) {
	raw := `{"fact_check":[{"claim":"Revenue grew 12% YoY","score":0.82,"status":"verified","evidence":"Net revenue increased","page":14}]}`

	var r FactCheckResult
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(r.Claims) != 1 {
		t.Fatalf("expected 1 claim, got %d", len(r.Claims))
	}
	if r.Claims[0].Page != 14 || r.Claims[0].Status != "verified" {
		t.Errorf("unexpected claim: %+v", r.Claims[0])
	}
	if r.Claims[0].Confidence() != ConfidenceHigh {
		t.Errorf("expected high confidence, got %v", r.Claims[0].Confidence())
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(FactCheckResult{Claims: []FactCheckClaim{{Score: 0.3}, {Score: 0.5}}})
	if s.Claims != 2 {
		t.Errorf("expected 2 claims, got %d", s.Claims)
	}
	if s.Confidence != ConfidenceLow || s.Label != "Low confidence" || s.Marker != "alert-yellow" {
		t.Errorf("unexpected summary: %+v", s)
	}
}

func TestParseSection(t *testing.T) {
	s, err := ParseSection("market-analysis")
	if err != nil || s != SectionMarketAnalysis {
		t.Errorf("expected market-analysis, got %q, %v", s, err)
	}
	if s.CacheName() != "market" {
		t.Errorf("expected cache name market, got %q", s.CacheName())
	}
	if _, err := ParseSection("valuation"); err == nil {
		t.Error("expected error for unknown section")
	}
}
