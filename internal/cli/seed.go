package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vporoshin/curator/internal/logging"
	"github.com/vporoshin/curator/internal/model"
	"github.com/vporoshin/curator/internal/store"
)

var seedDBPath string

// seedFile is the YAML fixture format accepted by the seed command.
type seedFile struct {
	Sources []seedSource `yaml:"sources"`
	Items   []seedItem   `yaml:"items"`
}

type seedSource struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
	Type string `yaml:"type"`
}

type seedItem struct {
	Source      string     `yaml:"source"` // source url
	Title       string     `yaml:"title"`
	URL         string     `yaml:"url"`
	Content     string     `yaml:"content"`
	PublishedAt *time.Time `yaml:"publishedAt"`
	FrontierLab string     `yaml:"frontierLab"`
}

// seedCmd represents the seed command
var seedCmd = &cobra.Command{
	Use:   "seed <fixture.yaml>",
	Short: "Load sources and raw items from a YAML fixture",
	Long: `Seed ingests a YAML fixture of sources and raw items into the store.
Items whose url already exists are skipped, so re-seeding the same
fixture is a no-op.

Example:
  curator seed testdata/items.yaml --db ./curator.db`,
	Args: cobra.ExactArgs(1),
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().StringVar(&seedDBPath, "db", "", "SQLite database path (default: $HOME/.curator/curator.db)")
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if seedDBPath != "" {
		cfg.Database.Path = seedDBPath
	}

	log := logging.New(cfg.Logging.Level)

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read fixture: %w", err)
	}
	var fixture seedFile
	if err := yaml.Unmarshal(data, &fixture); err != nil {
		return fmt.Errorf("parse fixture: %w", err)
	}

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()

	if err := st.EnsureTopics(ctx, cfg.Topics); err != nil {
		return fmt.Errorf("ensure topics: %w", err)
	}

	sourceIDs := make(map[string]int64, len(fixture.Sources))
	sourceTypes := make(map[string]model.SourceType, len(fixture.Sources))
	for _, src := range fixture.Sources {
		id, err := st.GetOrCreateSource(ctx, model.Source{
			Name:     src.Name,
			URL:      src.URL,
			Type:     model.SourceType(src.Type),
			IsActive: true,
		})
		if err != nil {
			return fmt.Errorf("seed source %q: %w", src.URL, err)
		}
		sourceIDs[src.URL] = id
		sourceTypes[src.URL] = model.SourceType(src.Type)
	}

	inserted, skipped := 0, 0
	for _, item := range fixture.Items {
		sourceID, ok := sourceIDs[item.Source]
		if !ok {
			return fmt.Errorf("item %q references unknown source %q", item.URL, item.Source)
		}

		exists, err := st.HasItemURL(ctx, item.URL)
		if err != nil {
			return fmt.Errorf("check item %q: %w", item.URL, err)
		}
		if exists {
			skipped++
			continue
		}

		if _, err := st.InsertRawItem(ctx, model.RawItem{
			SourceID:    sourceID,
			SourceType:  sourceTypes[item.Source],
			Title:       item.Title,
			URL:         item.URL,
			Content:     item.Content,
			PublishedAt: item.PublishedAt,
			FrontierLab: item.FrontierLab,
		}); err != nil {
			return fmt.Errorf("seed item %q: %w", item.URL, err)
		}
		inserted++
	}

	log.Info("seed completed",
		"sources", len(fixture.Sources), "items_inserted", inserted, "items_skipped", skipped)
	fmt.Printf("seeded %d sources, %d items (%d already present)\n",
		len(fixture.Sources), inserted, skipped)
	return nil
}
