package daemonrun

import (
	"context"
	"os"
	"testing"

	"mediaflow/internal/config"
	"mediaflow/internal/testsupport"
	"mediaflow/internal/workflow"
)

func TestBuildWiresRuntime(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPipeline(workflow.ShapeFanOut))
	rt, err := Build(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer func() {
		if err := rt.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}()

	if rt.Orchestrator.Shape() != workflow.ShapeFanOut {
		t.Fatalf("shape = %s", rt.Orchestrator.Shape())
	}
	if rt.Stages.ScratchDir() != cfg.Paths.ScratchDir {
		t.Fatalf("scratch = %s", rt.Stages.ScratchDir())
	}
	if _, err := os.Stat(cfg.LockDir()); err != nil {
		t.Fatalf("lock dir not created: %v", err)
	}
	if rt.NewManager() == nil {
		t.Fatal("nil manager")
	}
}

func TestBuildRequiresAPIKeyForOpenAI(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.AI.APIKey = ""
	cfg.AI.Transcriber = config.TranscriberOpenAI
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := Build(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected credential error")
	}
}

func TestPIDFileRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := writePIDFile(PIDPath(cfg)); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	pid, err := ReadPID(cfg)
	if err != nil || pid != os.Getpid() {
		t.Fatalf("ReadPID = %d, %v", pid, err)
	}
}
