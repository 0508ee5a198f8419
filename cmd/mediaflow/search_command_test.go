package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mediaflow/internal/config"
	"mediaflow/internal/jobs"
	"mediaflow/internal/testsupport"
)

func TestSearchRanksIndexedJobs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  "text-embedding-3-small",
			"data":   []any{map[string]any{"object": "embedding", "index": 0, "embedding": []float64{0, 1}}},
			"usage":  map[string]any{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	defer server.Close()

	env := setupCLITestEnv(t)
	env.cfg.AI.Embedder = config.EmbedderOpenAI
	env.cfg.AI.BaseURL = server.URL
	writeTestConfig(t, env.configPath, env.cfg)

	store := testsupport.MustOpenStore(t, env.cfg)
	ctx := context.Background()
	near := testsupport.NewJob(t, store, "uploads/tester/near-tomatoes.mp3")
	far := testsupport.NewJob(t, store, "uploads/tester/far-bread.mp3")
	if _, err := store.ApplyTerminal(ctx, near.ID, jobs.StatusCompleted, jobs.TerminalFields{Summary: "Planting tomatoes."}); err != nil {
		t.Fatalf("ApplyTerminal: %v", err)
	}
	for id, vec := range map[string][]float64{near.ID: {0.1, 0.9}, far.ID: {1, 0}} {
		if _, err := store.SaveVector(ctx, id, "text-embedding-3-small", vec); err != nil {
			t.Fatalf("SaveVector: %v", err)
		}
	}
	_ = store.Close()

	out, _, err := runCLI(t, []string{"search", "garden", "vegetables", "--limit", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	requireContains(t, out, near.ID)
	requireContains(t, out, "Planting tomatoes.")
	if strings.Contains(out, far.ID) {
		t.Fatalf("limit ignored: %s", out)
	}
}

func TestSearchRequiresEmbedder(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"search", "anything"}, env.configPath)
	if err == nil {
		t.Fatal("expected error when indexing is off")
	}
	requireContains(t, err.Error(), "ai.embedder")
}
