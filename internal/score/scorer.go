// Package score computes the explainable five-factor ranking score for a
// cluster. Every component lies in [0,1]; the overall score is a convex
// combination whose weight vector depends on whether the cluster is
// medicine-tagged. Domain overrides (frontier-lab sourcing, clinical
// maturity) take precedence over the generic step rules.
package score

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vporoshin/curator/internal/model"
)

// Weights is the per-component weight vector applied to a breakdown.
type Weights struct {
	Relevance     float64
	Impact        float64
	Credibility   float64
	Novelty       float64
	Corroboration float64
}

var (
	// StandardWeights apply to non-medicine clusters.
	StandardWeights = Weights{0.30, 0.25, 0.20, 0.15, 0.10}

	// MedicineWeights shift weight from novelty and corroboration to
	// credibility for medicine-tagged clusters.
	MedicineWeights = Weights{0.30, 0.25, 0.30, 0.10, 0.05}
)

// Markers of regulatory agencies looked for in item urls and titles of
// medicine clusters.
var regulatoryAgencyMarkers = []string{"fda", "ema", "nih"}

// Hosts of academic preprint archives.
var preprintMarkers = []string{"arxiv.org", "biorxiv.org", "medrxiv.org"}

// Store is the slice of persistence the scorer needs.
type Store interface {
	UnscoredClusters(ctx context.Context, limit int) ([]*model.Cluster, error)
	ApplyScores(ctx context.Context, batch []model.ScoreUpdate) error
}

// Scorer is the third pipeline stage.
type Scorer struct {
	store Store
	cfg   model.Config
	log   *slog.Logger
	now   func() time.Time
}

// New creates a scorer bound to a store.
func New(store Store, cfg model.Config, log *slog.Logger) *Scorer {
	return &Scorer{store: store, cfg: cfg, log: log, now: time.Now}
}

// WithClock substitutes the clock used for novelty decay. Tests only.
func (s *Scorer) WithClock(now func() time.Time) *Scorer {
	s.now = now
	return s
}

// Name identifies the stage.
func (s *Scorer) Name() string { return "score" }

// Run scores one bounded batch of unscored clusters and commits the batch
// atomically. A cluster producing an invalid breakdown is skipped.
func (s *Scorer) Run(ctx context.Context) (model.StageReport, error) {
	report := model.NewStageReport(s.Name())

	clusters, err := s.store.UnscoredClusters(ctx, s.cfg.Pipeline.ScoreBatchSize)
	if err != nil {
		return report, fmt.Errorf("load unscored clusters: %w", err)
	}
	if len(clusters) == 0 {
		return report, nil
	}

	now := s.now().UTC()
	var batch []model.ScoreUpdate
	for _, cluster := range clusters {
		breakdown, overall, rationale := Compute(cluster, now)
		if err := breakdown.Validate(); err != nil {
			report.Skip(cluster.ID, fmt.Errorf("invalid breakdown: %w", err))
			continue
		}
		batch = append(batch, model.ScoreUpdate{
			ClusterID: cluster.ID,
			Breakdown: breakdown,
			Overall:   overall,
			Rationale: rationale,
		})
		report.Processed++
	}

	if len(batch) > 0 {
		if err := s.store.ApplyScores(ctx, batch); err != nil {
			return report, fmt.Errorf("apply scores: %w", err)
		}
	}
	s.log.Info("scoring completed", "scored", report.Processed, "skipped", len(report.Skipped))
	return report, nil
}

// Compute derives the full breakdown, the weighted overall score, and the
// human-readable rationale for one cluster.
func Compute(cluster *model.Cluster, now time.Time) (model.ScoreBreakdown, float64, string) {
	breakdown := model.ScoreBreakdown{
		ClusterID:     cluster.ID,
		Relevance:     Relevance(cluster),
		Impact:        Impact(cluster),
		Credibility:   Credibility(cluster),
		Novelty:       Novelty(cluster, now),
		Corroboration: Corroboration(cluster),
	}
	return breakdown, Overall(breakdown, isMedicine(cluster)), Rationale(cluster, breakdown)
}

// Overall applies the weight vector for the cluster's domain.
func Overall(b model.ScoreBreakdown, medicine bool) float64 {
	w := StandardWeights
	if medicine {
		w = MedicineWeights
	}
	return w.Relevance*b.Relevance +
		w.Impact*b.Impact +
		w.Credibility*b.Credibility +
		w.Novelty*b.Novelty +
		w.Corroboration*b.Corroboration
}

// Relevance rewards substantial summaries and topic coverage; medicine
// clusters start from a higher base.
func Relevance(cluster *model.Cluster) float64 {
	if len([]rune(cluster.Summary)) < 100 {
		return 0.3
	}
	base := 0.5
	switch {
	case isMedicine(cluster):
		base = 0.85
	case len(cluster.Topics) > 0:
		base = 0.8
	}
	if len(cluster.Topics) > 1 {
		base += 0.03 * float64(len(cluster.Topics)-1)
	}
	if base > 1.0 {
		base = 1.0
	}
	return base
}

// Impact treats frontier-lab sourcing and regulatory-stage medicine as
// intrinsically high impact; everything else steps on corroborating item
// count.
func Impact(cluster *model.Cluster) float64 {
	if len(cluster.FrontierLabs()) > 0 {
		return 0.95
	}
	if isMedicine(cluster) && cluster.ClinicalMaturity == model.MaturityRegulatoryRelevant {
		return 0.95
	}
	return countStep(len(cluster.Items))
}

// Credibility layers the domain overrides: frontier labs, regulatory
// agency markers, clinical maturity, preprint archives, then item count.
func Credibility(cluster *model.Cluster) float64 {
	if len(cluster.FrontierLabs()) > 0 {
		return 0.95
	}
	if isMedicine(cluster) {
		for _, item := range cluster.Items {
			if containsAny(strings.ToLower(item.URL+" "+item.Title), regulatoryAgencyMarkers) {
				return 0.95
			}
		}
		switch cluster.ClinicalMaturity {
		case model.MaturityRegulatoryRelevant:
			return 0.92
		case model.MaturityClinicallyValidated:
			return 0.9
		default:
			return 0.85
		}
	}
	for _, item := range cluster.Items {
		if item.SourceType == model.SourceArxiv || containsAny(strings.ToLower(item.URL), preprintMarkers) {
			return 0.9
		}
	}
	if len(cluster.Items) >= 2 {
		return 0.7
	}
	return 0.5
}

// Novelty decays with the age of the newest item. Regulatory-stage
// medicine clusters get an extended decay, reflecting sustained
// regulatory relevance.
func Novelty(cluster *model.Cluster, now time.Time) float64 {
	newest := newestPublished(cluster)
	if newest == nil {
		return 0.3
	}
	days := int(now.Sub(*newest).Hours() / 24)

	if isMedicine(cluster) && cluster.ClinicalMaturity == model.MaturityRegulatoryRelevant {
		switch {
		case days <= 7:
			return 0.9
		case days <= 30:
			return 0.75
		default:
			return 0.3
		}
	}
	switch {
	case days <= 1:
		return 0.9
	case days <= 3:
		return 0.7
	case days <= 7:
		return 0.5
	default:
		return 0.3
	}
}

// Corroboration accepts a single authoritative source for frontier-lab
// and regulatory-stage medicine clusters; everyone else steps on item
// count.
func Corroboration(cluster *model.Cluster) float64 {
	if len(cluster.FrontierLabs()) > 0 {
		return 0.9
	}
	if isMedicine(cluster) && cluster.ClinicalMaturity == model.MaturityRegulatoryRelevant {
		return 0.9
	}
	return countStep(len(cluster.Items))
}

// Rationale assembles the comma-joined clause list explaining the rank.
// Component clauses already implied by lab or medicine framing are
// suppressed to avoid duplicate phrasing.
func Rationale(cluster *model.Cluster, b model.ScoreBreakdown) string {
	var parts []string

	labs := cluster.FrontierLabs()
	medicine := isMedicine(cluster)
	regulatory := cluster.ClinicalMaturity == model.MaturityRegulatoryRelevant ||
		cluster.ClinicalMaturity == model.MaturityApprovedDeployed

	if len(labs) > 0 {
		parts = append(parts, fmt.Sprintf("primary-source announcement from %s", strings.Join(labs, ", ")))
	}
	switch {
	case medicine && regulatory:
		parts = append(parts, "regulatory-stage medical development")
	case medicine && cluster.ClinicalMaturity == model.MaturityClinicallyValidated:
		parts = append(parts, "clinically validated medical finding")
	}

	if b.Relevance > 0.8 {
		parts = append(parts, "highly relevant")
	}
	if b.Impact > 0.8 && len(labs) == 0 {
		parts = append(parts, "significant impact")
	}
	if b.Credibility > 0.8 && len(labs) == 0 && !medicine {
		parts = append(parts, "high credibility sources")
	}
	if b.Novelty > 0.8 {
		parts = append(parts, "recent developments")
	}
	if b.Corroboration > 0.8 && len(labs) == 0 && !(medicine && regulatory) {
		parts = append(parts, "multiple corroborating sources")
	}

	if len(parts) == 0 {
		return "Ranked based on standard criteria."
	}
	return fmt.Sprintf("Ranked high due to: %s.", strings.Join(parts, ", "))
}

func isMedicine(cluster *model.Cluster) bool {
	return cluster.HasTopic(model.TopicMedicine)
}

func countStep(n int) float64 {
	switch {
	case n >= 5:
		return 0.9
	case n >= 3:
		return 0.7
	case n >= 2:
		return 0.5
	default:
		return 0.3
	}
}

func newestPublished(cluster *model.Cluster) *time.Time {
	var newest *time.Time
	for _, item := range cluster.Items {
		if item.PublishedAt == nil {
			continue
		}
		if newest == nil || item.PublishedAt.After(*newest) {
			t := *item.PublishedAt
			newest = &t
		}
	}
	return newest
}

func containsAny(text string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}
