// Package tag assigns topics to clusters. Rules apply in a fixed
// precedence order: frontier-lab default topics, the safety-lab keyword
// override, the medicine priority rule (single-keyword threshold), the
// generic keyword rule, and finally the general-AI fallback. A cluster can
// collect topics from several rules; each topic is added at most once.
package tag

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/vporoshin/curator/internal/model"
)

// Keywords that trigger the safety-lab override when the source lab is
// designated safety-focused.
var safetyKeywords = []string{"safety", "alignment", "policy", "governance", "regulation"}

// Store is the slice of persistence the tagger needs.
type Store interface {
	UntaggedClusters(ctx context.Context, limit int) ([]*model.Cluster, error)
	ApplyTags(ctx context.Context, batch []model.TagUpdate) error
}

// Tagger is the second pipeline stage.
type Tagger struct {
	store Store
	cfg   model.Config
	log   *slog.Logger
}

// New creates a tagger bound to a store.
func New(store Store, cfg model.Config, log *slog.Logger) *Tagger {
	return &Tagger{store: store, cfg: cfg, log: log}
}

// Name identifies the stage.
func (t *Tagger) Name() string { return "tag" }

// Run tags one bounded batch of untagged clusters and commits the batch
// atomically. A cluster that cannot be tagged is skipped, not fatal.
func (t *Tagger) Run(ctx context.Context) (model.StageReport, error) {
	report := model.NewStageReport(t.Name())

	clusters, err := t.store.UntaggedClusters(ctx, t.cfg.Pipeline.TagBatchSize)
	if err != nil {
		return report, fmt.Errorf("load untagged clusters: %w", err)
	}
	if len(clusters) == 0 {
		return report, nil
	}

	var batch []model.TagUpdate
	for _, cluster := range clusters {
		update, err := t.decide(cluster)
		if err != nil {
			report.Skip(cluster.ID, err)
			continue
		}
		batch = append(batch, update)
		report.Processed++
	}

	if len(batch) > 0 {
		if err := t.store.ApplyTags(ctx, batch); err != nil {
			return report, fmt.Errorf("apply tags: %w", err)
		}
	}
	t.log.Info("tagging completed", "tagged", report.Processed, "skipped", len(report.Skipped))
	return report, nil
}

func (t *Tagger) decide(cluster *model.Cluster) (model.TagUpdate, error) {
	labels := EnrichLabels(cluster, t.cfg)
	slugs := AssignTopics(cluster, t.cfg, labels)
	for _, slug := range slugs {
		if _, ok := t.cfg.TopicRuleBySlug(slug); !ok {
			return model.TagUpdate{}, fmt.Errorf("unknown topic slug %q", slug)
		}
	}

	update := model.TagUpdate{
		ClusterID:  cluster.ID,
		TopicSlugs: slugs,
		ItemLabels: labels,
	}
	// Clinical maturity is set once and never overwritten.
	if containsSlug(slugs, model.TopicMedicine) && cluster.ClinicalMaturity == "" {
		update.Maturity = ClassifyMaturity(ClusterText(cluster))
	}
	return update, nil
}

// ClusterText is the lower-cased title+summary text all keyword rules
// match against.
func ClusterText(cluster *model.Cluster) string {
	text := cluster.Title
	if cluster.Summary != "" {
		text += " " + cluster.Summary
	}
	return strings.ToLower(text)
}

// EnrichLabels returns frontier-lab names for items that lack an explicit
// label but whose URL host belongs to a configured lab domain. The
// deduplicated items themselves stay immutable; enrichment is the one
// exception, persisted by the store.
func EnrichLabels(cluster *model.Cluster, cfg model.Config) map[int64]string {
	labels := make(map[int64]string)
	for _, item := range cluster.Items {
		if item.FrontierLab != "" {
			continue
		}
		if lab, ok := labByDomain(item.URL, cfg); ok {
			labels[item.ID] = lab.Name
		}
	}
	return labels
}

// AssignTopics applies the rule chain and returns topic slugs in rule
// order, each at most once. labels supplies pending frontier-lab
// enrichment not yet visible on the items.
func AssignTopics(cluster *model.Cluster, cfg model.Config, labels map[int64]string) []string {
	text := ClusterText(cluster)
	var slugs []string
	seen := make(map[string]bool)
	add := func(slug string) {
		if !seen[slug] {
			seen[slug] = true
			slugs = append(slugs, slug)
		}
	}

	// Rule 1: frontier-lab default topic sets.
	labs := clusterLabs(cluster, cfg, labels)
	for _, lab := range labs {
		for _, slug := range lab.DefaultTopics {
			add(slug)
		}
	}

	// Rule 2: safety-focused labs force policy topics when the text talks
	// about safety, alignment, or regulation.
	for _, lab := range labs {
		if lab.SafetyFocused && containsAny(text, safetyKeywords) {
			add(model.TopicPolicy)
			add(model.TopicHumanAI)
			break
		}
	}

	// Rules 3 and 4: keyword vocabularies. Medicine gets a lower match
	// threshold, reflecting its priority status.
	for _, rule := range cfg.Topics {
		threshold := cfg.Pipeline.KeywordThreshold
		if rule.Slug == model.TopicMedicine {
			threshold = cfg.Pipeline.MedicineKeywordThreshold
		}
		if distinctHits(text, rule.Keywords) >= threshold {
			add(rule.Slug)
		}
	}

	// Rule 5: fallback.
	if len(slugs) == 0 {
		add(model.TopicGeneralAI)
	}
	return slugs
}

// clusterLabs resolves the distinct lab profiles behind a cluster,
// combining explicit item labels with pending enrichment.
func clusterLabs(cluster *model.Cluster, cfg model.Config, labels map[int64]string) []model.LabProfile {
	var labs []model.LabProfile
	seen := make(map[string]bool)
	for _, item := range cluster.Items {
		name := item.FrontierLab
		if name == "" {
			name = labels[item.ID]
		}
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		if lab, ok := cfg.LabByName(name); ok {
			labs = append(labs, lab)
		}
	}
	return labs
}

func labByDomain(rawURL string, cfg model.Config) (model.LabProfile, bool) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return model.LabProfile{}, false
	}
	host := strings.ToLower(parsed.Host)
	for _, lab := range cfg.Labs {
		for _, domain := range lab.Domains {
			if host == domain || strings.HasSuffix(host, "."+domain) {
				return lab, true
			}
		}
	}
	return model.LabProfile{}, false
}

// distinctHits counts how many distinct vocabulary keywords occur in text.
func distinctHits(text string, keywords []string) int {
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			hits++
		}
	}
	return hits
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func containsSlug(slugs []string, slug string) bool {
	for _, s := range slugs {
		if s == slug {
			return true
		}
	}
	return false
}
