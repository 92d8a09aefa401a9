package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// The reporter is exercised against a real leaderboard server.
func newReporterFixture(t *testing.T) (*ScoreReporter, *Store) {
	t.Helper()
	store := NewStore()
	ts := httptest.NewServer(NewServer(store, nil))
	t.Cleanup(ts.Close)
	return NewScoreReporter(ts.URL), store
}

func TestPostScore(t *testing.T) {
	reporter, store := newReporterFixture(t)

	rec, err := reporter.PostScore(context.Background(), Summary{
		PlayerName:      "Alice",
		Score:           150,
		SnakeLength:     16,
		DurationSeconds: 45,
	})
	if err != nil {
		t.Fatalf("post score: %v", err)
	}
	if rec.ID == 0 || rec.PlayerName != "Alice" || rec.Score != 150 {
		t.Fatalf("unexpected record: %+v", rec)
	}

	if got := store.Best("Alice").BestScore; got != 150 {
		t.Fatalf("score not persisted remotely: got %d", got)
	}
}

func TestPostScoreRejected(t *testing.T) {
	reporter, _ := newReporterFixture(t)

	_, err := reporter.PostScore(context.Background(), Summary{
		PlayerName:      "Alice",
		Score:           -1,
		SnakeLength:     16,
		DurationSeconds: 45,
	})
	if err == nil {
		t.Fatal("expected an error for an invalid score")
	}
}

func TestPostScoreUnreachable(t *testing.T) {
	reporter := NewScoreReporter("http://127.0.0.1:1")

	_, err := reporter.PostScore(context.Background(), Summary{
		PlayerName:  "Alice",
		SnakeLength: 3,
	})
	if err == nil {
		t.Fatal("expected an error when the service is unreachable")
	}
}

func TestFetchLeaderboard(t *testing.T) {
	reporter, store := newReporterFixture(t)
	store.SaveScore(ScoreRecord{PlayerName: "Alice", Score: 100, SnakeLength: 13})
	store.SaveScore(ScoreRecord{PlayerName: "Bob", Score: 200, SnakeLength: 23})

	lb, err := reporter.FetchLeaderboard(context.Background(), 10)
	if err != nil {
		t.Fatalf("fetch leaderboard: %v", err)
	}
	if lb.TotalGames != 2 || len(lb.Entries) != 2 {
		t.Fatalf("unexpected leaderboard: %+v", lb)
	}
	if lb.Entries[0].PlayerName != "Bob" {
		t.Fatalf("expected Bob first, got %+v", lb.Entries[0])
	}
}

func TestFetchBest(t *testing.T) {
	reporter, store := newReporterFixture(t)
	store.SaveScore(ScoreRecord{PlayerName: "Alice", Score: 100, SnakeLength: 13})
	store.SaveScore(ScoreRecord{PlayerName: "Alice", Score: 60, SnakeLength: 9})

	best, err := reporter.FetchBest(context.Background(), "Alice")
	if err != nil {
		t.Fatalf("fetch best: %v", err)
	}
	if best.BestScore != 100 || best.TotalGames != 2 {
		t.Fatalf("unexpected best: %+v", best)
	}
}

func TestErrorDetailSurfaced(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		jsonError(w, "service on fire", http.StatusInternalServerError)
	}))
	t.Cleanup(ts.Close)

	reporter := NewScoreReporter(ts.URL)
	_, err := reporter.FetchLeaderboard(context.Background(), 5)
	if err == nil || !strings.Contains(err.Error(), "service on fire") {
		t.Fatalf("expected detail in error, got %v", err)
	}
}
