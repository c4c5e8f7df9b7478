package briefing

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/vporoshin/curator/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestContent_Empty(t *testing.T) {
	if got := Content(nil); got != "No stories available for today." {
		t.Errorf("Expected the no-stories message, got %q", got)
	}
}

func TestContent_NumberedList(t *testing.T) {
	clusters := []*model.Cluster{
		{ID: 1, Title: "First story", Summary: "A short summary."},
		{ID: 2, Title: "Second story", Summary: strings.Repeat("s", 250)},
	}

	content := Content(clusters)

	if !strings.HasPrefix(content, "Today's briefing covers 2 key developments in AI:") {
		t.Errorf("Unexpected header: %q", content)
	}
	if !strings.Contains(content, "1. First story") || !strings.Contains(content, "2. Second story") {
		t.Errorf("Expected numbered titles, got %q", content)
	}
	if !strings.Contains(content, strings.Repeat("s", 200)+"...") {
		t.Errorf("Expected 200-rune summary excerpt with ellipsis")
	}
	if strings.Contains(content, strings.Repeat("s", 201)) {
		t.Errorf("Excerpt exceeds 200 runes")
	}
}

type fakeBriefingStore struct {
	existing *model.DailyBriefing
	top      []*model.Cluster

	created     bool
	createdDate time.Time
	createdIDs  []int64
}

func (f *fakeBriefingStore) BriefingByDate(ctx context.Context, date time.Time) (*model.DailyBriefing, error) {
	return f.existing, nil
}

func (f *fakeBriefingStore) TopClusters(ctx context.Context, limit int) ([]*model.Cluster, error) {
	if len(f.top) > limit {
		return f.top[:limit], nil
	}
	return f.top, nil
}

func (f *fakeBriefingStore) CreateBriefing(ctx context.Context, date time.Time, content string, clusterIDs []int64) (int64, error) {
	f.created = true
	f.createdDate = date
	f.createdIDs = clusterIDs
	return 7, nil
}

func TestCompile_CreatesOncePerDate(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
	store := &fakeBriefingStore{
		top: []*model.Cluster{
			{ID: 3, Title: "Top story", Score: 0.9},
			{ID: 5, Title: "Runner up", Score: 0.7},
		},
	}
	compiler := New(store, 10, testLogger()).WithClock(func() time.Time { return now })

	result, err := compiler.Compile(context.Background())
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	if !result.Created || result.BriefingID != 7 || result.ClusterCount != 2 {
		t.Errorf("Unexpected result: %+v", result)
	}
	if !store.createdDate.Equal(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected date normalized to midnight UTC, got %v", store.createdDate)
	}
	if len(store.createdIDs) != 2 || store.createdIDs[0] != 3 {
		t.Errorf("Expected briefing bound to selected clusters, got %v", store.createdIDs)
	}

	// Second pass: the store now has a briefing for the date.
	store.existing = &model.DailyBriefing{ID: 7, ClusterIDs: store.createdIDs}
	store.created = false

	result, err = compiler.Compile(context.Background())
	if err != nil {
		t.Fatalf("Second compile failed: %v", err)
	}
	if result.Created || result.BriefingID != 7 || result.ClusterCount != 2 {
		t.Errorf("Expected existing briefing returned unchanged, got %+v", result)
	}
	if store.created {
		t.Errorf("Expected no new briefing on re-run")
	}
}

func TestCompile_PersistsEmptyBriefing(t *testing.T) {
	store := &fakeBriefingStore{}
	compiler := New(store, 10, testLogger())

	result, err := compiler.Compile(context.Background())
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	if !result.Created || result.ClusterCount != 0 {
		t.Errorf("Expected an empty briefing to be created, got %+v", result)
	}
	if !store.created {
		t.Errorf("Expected the no-stories briefing persisted")
	}
}

func TestRun_ReportsClusterCount(t *testing.T) {
	store := &fakeBriefingStore{
		top: []*model.Cluster{{ID: 1, Title: "Story", Score: 0.8}},
	}
	report, err := New(store, 10, testLogger()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.Processed != 1 {
		t.Errorf("Expected processed=1 for a created briefing, got %d", report.Processed)
	}
	if report.Counters["briefing_clusters"] != 1 {
		t.Errorf("Expected briefing_clusters counter, got %v", report.Counters)
	}
}
