package preflight

import (
	"context"

	"mediaflow/internal/config"
	"mediaflow/internal/objectstore"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// Failed reports whether any required check did not pass.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed && !r.Optional {
			return true
		}
	}
	return false
}

// RunAll executes all applicable preflight checks for the given config.
// objects may be nil, in which case the store is built from cfg.
func RunAll(ctx context.Context, cfg *config.Config, objects objectstore.Store) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Scratch directory", cfg.Paths.ScratchDir),
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
	}
	results = append(results, CheckBinaries(Requirements(cfg))...)

	if objects == nil {
		store, err := objectstore.New(cfg)
		if err != nil {
			results = append(results, Result{Name: "Object storage", Detail: err.Error()})
		} else {
			objects = store
		}
	}
	if objects != nil {
		results = append(results, CheckObjectStore(ctx, objects))
	}

	if cfg.AI.Summarizer == config.SummarizerService {
		results = append(results, CheckSummarizer(ctx, cfg.AI.SummarizerURL))
	}
	if cfg.AI.Transcriber == config.TranscriberOpenAI || cfg.AI.Summarizer == config.SummarizerOpenAI {
		results = append(results, CheckAPIKey("OpenAI API key", cfg.AI.APIKey))
	}
	return results
}
