// Package narrate synthesizes the reader-facing narrative of a cluster:
// summary, "why this matters", "what to watch next", and the citation
// list. Output is template-driven; an optional polisher can rewrite the
// summary text, and its failures never block the stage.
package narrate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vporoshin/curator/internal/model"
)

const maxCitations = 5

// Store is the slice of persistence the narrator needs.
type Store interface {
	UnwrittenClusters(ctx context.Context, limit int) ([]*model.Cluster, error)
	ApplyNarratives(ctx context.Context, batch []model.NarrativeUpdate) error
}

// Polisher rewrites a drafted summary. Implementations may call an
// external model; returning an error leaves the draft untouched.
type Polisher interface {
	Polish(ctx context.Context, cluster *model.Cluster, draft string) (string, error)
}

// Narrative is the composed text block for one cluster.
type Narrative struct {
	Summary         string
	WhyThisMatters  string
	WhatToWatchNext string
	Citations       []model.Citation
}

// Narrator is the fourth pipeline stage.
type Narrator struct {
	store    Store
	cfg      model.Config
	log      *slog.Logger
	polisher Polisher // nil when polish is disabled
}

// New creates a narrator bound to a store.
func New(store Store, cfg model.Config, log *slog.Logger) *Narrator {
	return &Narrator{store: store, cfg: cfg, log: log}
}

// WithPolisher enables optional summary polish.
func (n *Narrator) WithPolisher(p Polisher) *Narrator {
	n.polisher = p
	return n
}

// Name identifies the stage.
func (n *Narrator) Name() string { return "write" }

// Run narrates one bounded batch of clusters whose summary is still empty
// and commits the batch atomically, rebuilding each cluster's citations.
func (n *Narrator) Run(ctx context.Context) (model.StageReport, error) {
	report := model.NewStageReport(n.Name())

	clusters, err := n.store.UnwrittenClusters(ctx, n.cfg.Pipeline.WriteBatchSize)
	if err != nil {
		return report, fmt.Errorf("load unwritten clusters: %w", err)
	}
	if len(clusters) == 0 {
		return report, nil
	}

	var batch []model.NarrativeUpdate
	for _, cluster := range clusters {
		narrative := Compose(cluster)
		if n.polisher != nil {
			polished, err := n.polisher.Polish(ctx, cluster, narrative.Summary)
			if err != nil {
				n.log.Warn("summary polish failed, keeping draft", "cluster", cluster.ID, "error", err)
			} else if polished != "" {
				narrative.Summary = polished
			}
		}
		batch = append(batch, model.NarrativeUpdate{
			ClusterID:       cluster.ID,
			Summary:         narrative.Summary,
			WhyThisMatters:  narrative.WhyThisMatters,
			WhatToWatchNext: narrative.WhatToWatchNext,
			Citations:       narrative.Citations,
		})
		report.Processed++
	}

	if len(batch) > 0 {
		if err := n.store.ApplyNarratives(ctx, batch); err != nil {
			return report, fmt.Errorf("apply narratives: %w", err)
		}
	}
	n.log.Info("narration completed", "written", report.Processed)
	return report, nil
}

// Compose builds the full narrative for a cluster from templates.
func Compose(cluster *model.Cluster) Narrative {
	return Narrative{
		Summary:         Summarize(cluster),
		WhyThisMatters:  WhyThisMatters(cluster),
		WhatToWatchNext: WhatToWatchNext(cluster),
		Citations:       buildCitations(cluster),
	}
}

// Summarize drafts the cluster summary. A frontier-lab cluster opens by
// naming the lab and stating whether it announced or released the work,
// keyed on the anchor item's title.
func Summarize(cluster *model.Cluster) string {
	if len(cluster.Items) == 0 {
		return "No content available."
	}
	anchor := cluster.Items[0]
	labs := cluster.FrontierLabs()

	if len(labs) > 0 {
		verb := "announced"
		title := strings.ToLower(anchor.Title)
		if strings.Contains(title, "release") && !strings.Contains(title, "announce") {
			verb = "released"
		}
		summary := fmt.Sprintf("%s %s: %s.", labs[0], verb, anchor.Title)
		if anchor.Content != "" {
			summary += " " + truncate(anchor.Content, 400)
		}
		summary += " As a primary-source development, this is likely to shape downstream research and product directions."
		return summary
	}

	var summary string
	if anchor.Content != "" {
		summary = truncate(anchor.Content, 500)
	} else {
		summary = fmt.Sprintf("Recent development: %s", anchor.Title)
	}
	if len(cluster.Items) > 1 {
		summary += fmt.Sprintf(" (Based on %d sources)", len(cluster.Items))
	}
	return summary
}

// WhyThisMatters picks one of six mutually exclusive framings, in
// priority order.
func WhyThisMatters(cluster *model.Cluster) string {
	medicine := cluster.HasTopic(model.TopicMedicine)
	switch {
	case medicine && cluster.ClinicalMaturity == model.MaturityRegulatoryRelevant:
		return "This medical AI development carries regulatory weight: decisions at this stage shape how and when the technology reaches clinical practice."
	case medicine && cluster.ClinicalMaturity == model.MaturityClinicallyValidated:
		return "This clinically validated result moves medical AI beyond the lab, strengthening the evidence base for real-world deployment."
	case medicine:
		return "Advances in medical AI can directly affect patient outcomes, making early signals in this area worth close attention."
	case len(cluster.FrontierLabs()) > 0:
		return "Work published directly by a frontier lab tends to set the agenda for the broader field and its competitors."
	case len(cluster.Topics) > 0:
		return fmt.Sprintf("This development in %s represents an important advancement with potential implications for the field.", topicNames(cluster, 2))
	default:
		return "This represents a significant development worth monitoring."
	}
}

// WhatToWatchNext returns one of three fixed templates.
func WhatToWatchNext(cluster *model.Cluster) string {
	switch {
	case cluster.HasTopic(model.TopicMedicine):
		return "Watch for regulatory filings, trial readouts, and clinical deployment milestones in the coming weeks."
	case len(cluster.FrontierLabs()) > 0:
		return "Watch for follow-up releases, third-party evaluations, and responses from competing labs."
	default:
		return "Monitor for follow-up research, industry responses, and regulatory developments in the coming weeks."
	}
}

// buildCitations derives the citation set from the cluster's first five
// raw items, in item order.
func buildCitations(cluster *model.Cluster) []model.Citation {
	var citations []model.Citation
	for i, item := range cluster.Items {
		if i >= maxCitations {
			break
		}
		citations = append(citations, model.Citation{
			ClusterID: cluster.ID,
			RawItemID: item.ID,
			Text:      item.Title,
			URL:       item.URL,
		})
	}
	return citations
}

func topicNames(cluster *model.Cluster, limit int) string {
	var names []string
	for i, t := range cluster.Topics {
		if i >= limit {
			break
		}
		names = append(names, t.Name)
	}
	return strings.Join(names, ", ")
}

// truncate cuts s at limit runes, appending an ellipsis when text was
// dropped.
func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}
