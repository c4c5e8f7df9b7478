package model

import "fmt"

// ClinicalMaturityLevel classifies the evidentiary/regulatory stage of a
// medicine-tagged cluster.
type ClinicalMaturityLevel string

const (
	MaturityExploratory         ClinicalMaturityLevel = "exploratory"
	MaturityClinicallyValidated ClinicalMaturityLevel = "clinically_validated"
	MaturityRegulatoryRelevant  ClinicalMaturityLevel = "regulatory_relevant"
	MaturityApprovedDeployed    ClinicalMaturityLevel = "approved_deployed"
)

// Topic is immutable reference data: a stable name/slug pair backed by a
// fixed keyword vocabulary in the configuration.
type Topic struct {
	ID   int64
	Name string
	Slug string
}

// Cluster is a deduplicated group of raw items representing one story.
// A cluster always owns at least one raw item; its score is always the
// output of the weighted scoring formula, never set independently.
type Cluster struct {
	ID               int64
	Title            string
	Summary          string
	WhyThisMatters   string
	WhatToWatchNext  string
	Score            float64
	RankingRationale string
	ClinicalMaturity ClinicalMaturityLevel // empty unless medicine-tagged

	Items     []RawItem
	Topics    []Topic
	Breakdown *ScoreBreakdown
}

// HasTopic reports whether the cluster carries the given topic slug.
func (c *Cluster) HasTopic(slug string) bool {
	for _, t := range c.Topics {
		if t.Slug == slug {
			return true
		}
	}
	return false
}

// FrontierLabs returns the distinct frontier-lab names present on the
// cluster's items, in item order.
func (c *Cluster) FrontierLabs() []string {
	var labs []string
	seen := make(map[string]bool)
	for _, item := range c.Items {
		if item.FrontierLab == "" || seen[item.FrontierLab] {
			continue
		}
		seen[item.FrontierLab] = true
		labs = append(labs, item.FrontierLab)
	}
	return labs
}

// ScoreBreakdown is the five-factor explainable decomposition of a
// cluster's overall rank score. Exactly one exists per cluster and it is
// recomputed in place on each scoring pass.
type ScoreBreakdown struct {
	ID            int64
	ClusterID     int64
	Relevance     float64
	Impact        float64
	Credibility   float64
	Novelty       float64
	Corroboration float64
}

// Validate checks that every component lies in [0,1].
func (b ScoreBreakdown) Validate() error {
	components := map[string]float64{
		"relevance":     b.Relevance,
		"impact":        b.Impact,
		"credibility":   b.Credibility,
		"novelty":       b.Novelty,
		"corroboration": b.Corroboration,
	}
	for name, v := range components {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s score %f out of range [0,1]", name, v)
		}
	}
	return nil
}

// Citation links a cluster narrative back to one of its raw items.
// The citation set is rebuilt from scratch on every narrator pass.
type Citation struct {
	ID        int64
	ClusterID int64
	RawItemID int64
	Text      string
	URL       string
}
