package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vporoshin/curator/internal/briefing"
	"github.com/vporoshin/curator/internal/dedup"
	"github.com/vporoshin/curator/internal/llm"
	"github.com/vporoshin/curator/internal/logging"
	"github.com/vporoshin/curator/internal/model"
	"github.com/vporoshin/curator/internal/narrate"
	"github.com/vporoshin/curator/internal/pipeline"
	"github.com/vporoshin/curator/internal/score"
	"github.com/vporoshin/curator/internal/store"
	"github.com/vporoshin/curator/internal/tag"
)

var (
	runDBPath  string
	runStages  []string
	runTimeout time.Duration
)

// stageOrder is the only execution order; --stages selects a subset but
// never reorders.
var stageOrder = []string{"dedup", "tag", "score", "write", "brief"}

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the curation pipeline over ingested items",
	Long: `Run executes the curation stages in their fixed order:
  dedup  - group unclustered items into story clusters
  tag    - assign topics, maturity, and frontier-lab labels
  score  - compute five-factor explainable rank scores
  write  - compose cluster narratives and citations
  brief  - compile the once-per-date daily briefing

Example:
  curator run
  curator run --db ./curator.db --stages dedup,tag
  curator run --stages score,write,brief`,
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runDBPath, "db", "", "SQLite database path (default: $HOME/.curator/curator.db)")
	runCmd.Flags().StringSliceVar(&runStages, "stages", nil, "comma-separated stage subset (default: all)")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 10*time.Minute, "overall pipeline timeout")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runDBPath != "" {
		cfg.Database.Path = runDBPath
	}

	log := logging.New(cfg.Logging.Level)

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	// The topic vocabulary must exist before the tagger can link to it.
	if err := st.EnsureTopics(ctx, cfg.Topics); err != nil {
		return fmt.Errorf("ensure topics: %w", err)
	}

	selected, err := selectStages(runStages)
	if err != nil {
		return err
	}

	stages := make([]pipeline.Stage, 0, len(selected))
	for _, name := range selected {
		switch name {
		case "dedup":
			stages = append(stages, dedup.New(st, cfg.Pipeline, log))
		case "tag":
			stages = append(stages, tag.New(st, cfg, log))
		case "score":
			stages = append(stages, score.New(st, cfg, log))
		case "write":
			narrator := narrate.New(st, cfg, log)
			polisher, err := buildPolisher(cfg)
			if err != nil {
				return err
			}
			if polisher != nil {
				narrator.WithPolisher(polisher)
			}
			stages = append(stages, narrator)
		case "brief":
			stages = append(stages, briefing.New(st, cfg.Pipeline.BriefingSize, log))
		}
	}

	run, err := pipeline.New(log, stages...).Run(ctx)
	for _, report := range run.Stages {
		fmt.Println(report.Summary())
	}
	if err != nil {
		return err
	}
	return nil
}

// selectStages validates the requested subset and returns it in canonical
// order. An empty request selects every stage.
func selectStages(requested []string) ([]string, error) {
	if len(requested) == 0 {
		return stageOrder, nil
	}

	want := make(map[string]bool, len(requested))
	for _, name := range requested {
		name = strings.TrimSpace(name)
		known := false
		for _, s := range stageOrder {
			if s == name {
				known = true
				break
			}
		}
		if !known {
			return nil, fmt.Errorf("unknown stage %q (valid: %s)", name, strings.Join(stageOrder, ", "))
		}
		want[name] = true
	}

	var selected []string
	for _, s := range stageOrder {
		if want[s] {
			selected = append(selected, s)
		}
	}
	return selected, nil
}

// buildPolisher returns nil when no LLM provider is configured. The API
// key falls back to OPENAI_API_KEY so it never has to live in a file.
func buildPolisher(cfg model.Config) (*llm.Polisher, error) {
	if cfg.LLM.Provider == "" {
		return nil, nil
	}

	llmCfg := llm.ConfigFromModel(cfg.LLM)
	if llmCfg.APIKey == "" {
		llmCfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if llmCfg.APIKey == "" {
		return nil, fmt.Errorf("llm provider %q configured but no API key set (OPENAI_API_KEY)", cfg.LLM.Provider)
	}
	return llm.NewPolisher(llmCfg)
}
