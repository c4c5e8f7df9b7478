package model

import (
	"testing"
	"time"
)

func TestBriefingDate_NormalizesToMidnightUTC(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	in := time.Date(2026, 3, 10, 2, 30, 0, 0, loc) // 2026-03-09 21:30 UTC

	got := BriefingDate(in)

	want := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("BriefingDate = %v, expected %v", got, want)
	}
}

func TestScoreBreakdown_Validate(t *testing.T) {
	valid := ScoreBreakdown{Relevance: 0.5, Impact: 1.0, Credibility: 0.0, Novelty: 0.3, Corroboration: 0.9}
	if err := valid.Validate(); err != nil {
		t.Errorf("Expected valid breakdown, got %v", err)
	}

	invalid := ScoreBreakdown{Relevance: 1.1}
	if err := invalid.Validate(); err == nil {
		t.Errorf("Expected out-of-range component to fail validation")
	}
	negative := ScoreBreakdown{Novelty: -0.1}
	if err := negative.Validate(); err == nil {
		t.Errorf("Expected negative component to fail validation")
	}
}

func TestCluster_FrontierLabs_DistinctInItemOrder(t *testing.T) {
	cluster := Cluster{
		Items: []RawItem{
			{ID: 1, FrontierLab: "OpenAI"},
			{ID: 2},
			{ID: 3, FrontierLab: "Anthropic"},
			{ID: 4, FrontierLab: "OpenAI"},
		},
	}

	labs := cluster.FrontierLabs()

	if len(labs) != 2 || labs[0] != "OpenAI" || labs[1] != "Anthropic" {
		t.Errorf("Expected distinct labs in item order, got %v", labs)
	}
}

func TestConfig_Lookups(t *testing.T) {
	cfg := DefaultConfig()

	if _, ok := cfg.LabByName("Anthropic"); !ok {
		t.Errorf("Expected Anthropic lab profile")
	}
	if _, ok := cfg.LabByName("Unknown Lab"); ok {
		t.Errorf("Expected miss for unknown lab")
	}
	if rule, ok := cfg.TopicRuleBySlug(TopicMedicine); !ok || len(rule.Keywords) == 0 {
		t.Errorf("Expected medicine topic rule with keywords")
	}
}
