package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"mediaflow/internal/activity"
	"mediaflow/internal/config"
	"mediaflow/internal/services"
)

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "job-1-abcd1234.wav")
	if err := os.WriteFile(path, []byte("RIFF....WAVEfmt "), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	return path
}

func TestFormatTimed(t *testing.T) {
	got := FormatTimed([]Segment{
		{Start: 0, End: 2.5, Text: " Hello there. "},
		{Start: 3, End: 4, Text: "  "},
		{Start: 61.25, End: 125.0004, Text: "General Kenobi."},
	})
	want := "[00:00.000 --> 00:02.500] Hello there.\n[01:01.250 --> 02:05.000] General Kenobi."
	if got != want {
		t.Fatalf("FormatTimed:\n got %q\nwant %q", got, want)
	}
	if FormatTimed(nil) != "" {
		t.Fatal("expected empty output for no segments")
	}
}

func TestOpenAITranscriberParsesVerboseJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/audio/transcriptions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization header = %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue("model"); got != "whisper-1" {
			t.Errorf("model = %q", got)
		}
		if got := r.FormValue("response_format"); got != "verbose_json" {
			t.Errorf("response_format = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"text": "Hello there. General Kenobi.",
			"segments": []any{
				map[string]any{"id": 0, "start": 0.0, "end": 1.5, "text": "Hello there."},
				map[string]any{"id": 1, "start": 1.5, "end": 3.0, "text": "General Kenobi."},
			},
		})
	}))
	defer server.Close()

	tr, err := NewOpenAITranscriber(OpenAIConfig{APIKey: "test-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewOpenAITranscriber: %v", err)
	}
	got, err := tr.Transcribe(context.Background(), writeAudio(t))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got.Text != "Hello there. General Kenobi." {
		t.Fatalf("unexpected text %q", got.Text)
	}
	if len(got.Segments) != 2 || got.Segments[1].Start != 1.5 {
		t.Fatalf("unexpected segments %+v", got.Segments)
	}
}

func TestOpenAITranscriberMissingFileIsPermanent(t *testing.T) {
	tr, err := NewOpenAITranscriber(OpenAIConfig{APIKey: "k", BaseURL: "http://127.0.0.1:1"})
	if err != nil {
		t.Fatalf("NewOpenAITranscriber: %v", err)
	}
	_, err = tr.Transcribe(context.Background(), filepath.Join(t.TempDir(), "missing.wav"))
	if services.IsTransient(err) {
		t.Fatalf("expected permanent error, got %v", err)
	}
}

func TestOpenAISummarizerSendsPrompts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body.Model != "gpt-4o" || len(body.Messages) != 2 {
			t.Errorf("unexpected request %+v", body)
		} else {
			if body.Messages[0].Role != "system" || body.Messages[0].Content != SummarySystemPrompt {
				t.Errorf("unexpected system message %+v", body.Messages[0])
			}
			if body.Messages[1].Content != SummaryUserPrefix+"the transcript" {
				t.Errorf("unexpected user message %+v", body.Messages[1])
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4o",
			"choices": []any{
				map[string]any{
					"index":         0,
					"finish_reason": "stop",
					"message":       map[string]any{"role": "assistant", "content": " A short summary. "},
				},
			},
		})
	}))
	defer server.Close()

	s, err := NewOpenAISummarizer(OpenAIConfig{APIKey: "k", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewOpenAISummarizer: %v", err)
	}
	got, err := s.Summarize(context.Background(), "the transcript")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got != "A short summary." {
		t.Fatalf("unexpected summary %q", got)
	}
}

func TestOpenAIEmbedderReturnsVector(t *testing.T) {
	var gotInput string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body struct {
			Model string `json:"model"`
			Input string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body.Model != "text-embedding-3-small" {
			t.Errorf("model = %q", body.Model)
		}
		gotInput = body.Input
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  body.Model,
			"data": []any{
				map[string]any{"object": "embedding", "index": 0, "embedding": []float64{0.25, -0.5, 1}},
			},
			"usage": map[string]any{"prompt_tokens": 3, "total_tokens": 3},
		})
	}))
	defer server.Close()

	e, err := NewOpenAIEmbedder(OpenAIConfig{APIKey: "k", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewOpenAIEmbedder: %v", err)
	}
	if e.Model() != "text-embedding-3-small" {
		t.Fatalf("default model = %q", e.Model())
	}
	got, err := e.Embed(context.Background(), "  "+strings.Repeat("a", maxEmbeddingRunes+10)+"  ")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(got) != 3 || got[1] != -0.5 {
		t.Fatalf("unexpected embedding %v", got)
	}
	if len(gotInput) != maxEmbeddingRunes {
		t.Fatalf("input not truncated: %d runes", len(gotInput))
	}
	if _, err := e.Embed(context.Background(), "   "); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty text, got %v", err)
	}
}

func TestOpenAIErrorsAreClassified(t *testing.T) {
	cases := []struct {
		status    int
		transient bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusBadGateway, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
	}
	for _, tc := range cases {
		var calls int
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"test"}}`))
		}))
		s, err := NewOpenAISummarizer(OpenAIConfig{APIKey: "k", BaseURL: server.URL})
		if err != nil {
			server.Close()
			t.Fatalf("NewOpenAISummarizer: %v", err)
		}
		_, err = s.Summarize(context.Background(), "text")
		server.Close()
		if err == nil {
			t.Fatalf("status %d: expected error", tc.status)
		}
		if got := services.IsTransient(err); got != tc.transient {
			t.Fatalf("status %d: transient = %v, err %v", tc.status, got, err)
		}
		if calls != 1 {
			t.Fatalf("status %d: sdk retried, %d calls", tc.status, calls)
		}
	}
}

func TestNewOpenAIRequiresKey(t *testing.T) {
	_, err := NewOpenAISummarizer(OpenAIConfig{})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestServiceSummarizer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		var req summarizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		_ = json.NewEncoder(w).Encode(summarizeResponse{Summary: "sum of " + req.Text})
	}))
	defer server.Close()

	s, err := NewServiceSummarizer(ServiceConfig{URL: server.URL + "/summarize"})
	if err != nil {
		t.Fatalf("NewServiceSummarizer: %v", err)
	}
	got, err := s.Summarize(context.Background(), "words")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got != "sum of words" {
		t.Fatalf("unexpected summary %q", got)
	}
	if err := s.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}

func TestServiceSummarizerStatusClassification(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/busy":
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte("bad text"))
		}
	}))
	defer server.Close()

	busy, _ := NewServiceSummarizer(ServiceConfig{URL: server.URL + "/busy"})
	_, err := busy.Summarize(context.Background(), "x")
	if !services.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
	var statusErr *httpStatusError
	if !errors.As(err, &statusErr) || statusErr.RetryAfter != 7*time.Second {
		t.Fatalf("expected retry-after on status error, got %v", err)
	}

	bad, _ := NewServiceSummarizer(ServiceConfig{URL: server.URL + "/bad"})
	_, err = bad.Summarize(context.Background(), "x")
	if services.IsTransient(err) || !strings.Contains(err.Error(), "bad text") {
		t.Fatalf("expected permanent error with body, got %v", err)
	}
}

func TestServiceSummarizerRejectsBadURL(t *testing.T) {
	if _, err := NewServiceSummarizer(ServiceConfig{URL: "localhost:8000"}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestWhisperXTranscriberRunsUVX(t *testing.T) {
	audio := writeAudio(t)
	var gotName string
	var gotArgs []string
	runner := func(ctx context.Context, name string, args []string, onLine func(string)) error {
		gotName, gotArgs = name, args
		outDir := args[slices.Index(args, "--output_dir")+1]
		payload := `{"segments":[{"text":" Hi. ","start":0,"end":1},{"text":"Bye.","start":1,"end":2}]}`
		return os.WriteFile(filepath.Join(outDir, "job-1-abcd1234.json"), []byte(payload), 0o644)
	}
	tr := NewWhisperXTranscriber(WhisperXConfig{Model: "small"}).WithCommandRunner(runner)
	got, err := tr.Transcribe(context.Background(), audio)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if gotName != "uvx" {
		t.Fatalf("command = %q", gotName)
	}
	joined := strings.Join(gotArgs, " ")
	for _, want := range []string{"--index-url https://pypi.org/simple", "whisperx " + audio, "--model small", "--print_progress True", "--device cpu --compute_type float32"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args missing %q: %s", want, joined)
		}
	}
	if got.Text != "Hi. Bye." || len(got.Segments) != 2 {
		t.Fatalf("unexpected transcript %+v", got)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(audio), "job-1-abcd1234.whisperx")); !os.IsNotExist(err) {
		t.Fatalf("expected output dir removed, stat err %v", err)
	}
}

func TestWhisperXCUDAArgs(t *testing.T) {
	tr := NewWhisperXTranscriber(WhisperXConfig{CUDAEnabled: true})
	args := strings.Join(tr.buildArgs("in.wav", "out"), " ")
	if !strings.Contains(args, "--index-url https://download.pytorch.org/whl/cu128 --extra-index-url https://pypi.org/simple") {
		t.Fatalf("missing cuda index: %s", args)
	}
	if !strings.HasSuffix(args, "--device cuda") || !strings.Contains(args, "--model large-v3") {
		t.Fatalf("unexpected args: %s", args)
	}
}

func TestWhisperXFailureIsTransient(t *testing.T) {
	tr := NewWhisperXTranscriber(WhisperXConfig{}).WithCommandRunner(func(context.Context, string, []string, func(string)) error {
		return errors.New("CUDA out of memory")
	})
	_, err := tr.Transcribe(context.Background(), writeAudio(t))
	if err == nil || !services.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestWhisperXDecodeFailureIsPermanent(t *testing.T) {
	tr := NewWhisperXTranscriber(WhisperXConfig{}).WithCommandRunner(func(context.Context, string, []string, func(string)) error {
		return errors.New("uvx: exit status 1: RuntimeError: Failed to load audio: [mp3 @ 0x5] Invalid data found when processing input")
	})
	_, err := tr.Transcribe(context.Background(), writeAudio(t))
	if err == nil || services.IsTransient(err) || !errors.Is(err, services.ErrPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
}

func TestWhisperXProgressFeedsHeartbeats(t *testing.T) {
	var (
		mu      sync.Mutex
		details []string
	)
	sink := activity.HeartbeatSinkFunc(func(_ context.Context, hb activity.Heartbeat) error {
		mu.Lock()
		defer mu.Unlock()
		details = append(details, hb.Detail)
		return nil
	})
	ex := activity.NewExecutor(activity.WithWorkers(1), activity.WithHeartbeatSink(sink, 0))
	t.Cleanup(ex.Close)

	audio := writeAudio(t)
	tr := NewWhisperXTranscriber(WhisperXConfig{}).WithCommandRunner(func(_ context.Context, _ string, args []string, onLine func(string)) error {
		onLine("Progress: 50.00%...")
		onLine("Progress: 100.00%...")
		outDir := args[slices.Index(args, "--output_dir")+1]
		return os.WriteFile(filepath.Join(outDir, "job-1-abcd1234.json"), []byte(`{"segments":[]}`), 0o644)
	})
	policy := activity.Policy{StartToClose: 5 * time.Second, InitialInterval: time.Millisecond, MaxAttempts: 1, HeartbeatTimeout: time.Second}
	if _, err := activity.Execute(context.Background(), ex, "transcribe", tr.Transcribe, audio, policy); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"whisperx starting", "Progress: 50.00%...", "Progress: 100.00%..."}
	if !slices.Equal(details, want) {
		t.Fatalf("heartbeat details = %q, want %q", details, want)
	}
}

func TestRunCommandStreamsLinesAndKeepsTail(t *testing.T) {
	var lines []string
	err := runCommand(context.Background(), "sh", []string{"-c", `echo one; printf 'two\rthree\n' 1>&2; exit 3`}, func(line string) {
		lines = append(lines, line)
	})
	if err == nil {
		t.Fatal("expected exit status error")
	}
	if !slices.Equal(lines, []string{"one", "two", "three"}) {
		t.Fatalf("lines = %q", lines)
	}
	if !strings.Contains(err.Error(), "exit status 3") || !strings.Contains(err.Error(), "three") {
		t.Fatalf("error lacks status or output tail: %v", err)
	}
	if err := runCommand(context.Background(), "sh", []string{"-c", "echo ok"}, nil); err != nil {
		t.Fatalf("successful command: %v", err)
	}
}

func TestParseRetryAfter(t *testing.T) {
	if d, ok := parseRetryAfter("3"); !ok || d != 3*time.Second {
		t.Fatalf("seconds: %v %v", d, ok)
	}
	future := time.Now().Add(time.Minute).UTC().Format(http.TimeFormat)
	if d, ok := parseRetryAfter(future); !ok || d <= 0 {
		t.Fatalf("http date: %v %v", d, ok)
	}
	if _, ok := parseRetryAfter("soon"); ok {
		t.Fatal("expected garbage to be rejected")
	}
}

func TestFactorySelectsBackends(t *testing.T) {
	cfg := config.Default()
	cfg.AI.APIKey = "k"
	cfg.AI.Transcriber = config.TranscriberWhisperX
	cfg.AI.Summarizer = config.SummarizerService
	tr, err := NewTranscriber(&cfg)
	if err != nil {
		t.Fatalf("NewTranscriber: %v", err)
	}
	if _, ok := tr.(*WhisperXTranscriber); !ok {
		t.Fatalf("expected whisperx transcriber, got %T", tr)
	}
	sum, err := NewSummarizer(&cfg)
	if err != nil {
		t.Fatalf("NewSummarizer: %v", err)
	}
	if _, ok := sum.(*ServiceSummarizer); !ok {
		t.Fatalf("expected service summarizer, got %T", sum)
	}

	if emb, err := NewEmbedder(&cfg); err != nil || emb != nil {
		t.Fatalf("default embedder = %v, %v; want none", emb, err)
	}
	cfg.AI.Embedder = config.EmbedderOpenAI
	emb, err := NewEmbedder(&cfg)
	if err != nil {
		t.Fatalf("NewEmbedder: %v", err)
	}
	if _, ok := emb.(*OpenAIEmbedder); !ok {
		t.Fatalf("expected openai embedder, got %T", emb)
	}

	cfg.AI.Summarizer = config.SummarizerOpenAI
	cfg.AI.APIKey = ""
	if _, err := NewSummarizer(&cfg); err == nil {
		t.Fatal("expected missing key error")
	}
}
