package objectstore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/minio/minio-go/v7"

	"mediaflow/internal/config"
	"mediaflow/internal/services"
)

func TestMapMinIOErrorClassification(t *testing.T) {
	cases := []struct {
		err    error
		marker error
		kind   services.FailureKind
	}{
		{minio.ErrorResponse{Code: "NoSuchKey"}, services.ErrNotFound, services.KindPermanent},
		{minio.ErrorResponse{Code: "AccessDenied"}, services.ErrConfiguration, services.KindPermanent},
		{minio.ErrorResponse{Code: "SlowDown"}, services.ErrTransient, services.KindTransient},
		{fmt.Errorf("dial tcp: connection refused"), services.ErrTransient, services.KindTransient},
	}
	for _, tc := range cases {
		mapped := mapMinIOError("get object", "uploads/k", tc.err)
		if !errors.Is(mapped, tc.marker) {
			t.Fatalf("%v: expected marker %v, got %v", tc.err, tc.marker, mapped)
		}
		if got := services.Classify(mapped); got != tc.kind {
			t.Fatalf("%v: expected %s, got %s", tc.err, tc.kind, got)
		}
	}
	if err := mapMinIOError("get", "k", context.Canceled); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error to pass through, got %v", err)
	}
}

func TestNewSelectsBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Backend = config.StorageBackendLocal
	cfg.Storage.LocalDir = t.TempDir()
	store, err := New(&cfg)
	if err != nil {
		t.Fatalf("New local: %v", err)
	}
	if _, ok := store.(*LocalStore); !ok {
		t.Fatalf("expected LocalStore, got %T", store)
	}

	cfg.Storage.Backend = config.StorageBackendMinIO
	cfg.Storage.Endpoint = "localhost:9000"
	store, err = New(&cfg)
	if err != nil {
		t.Fatalf("New minio: %v", err)
	}
	if m, ok := store.(*MinIOStore); !ok || m.Bucket() != "media-vault" {
		t.Fatalf("expected MinIOStore on media-vault, got %T", store)
	}

	cfg.Storage.Backend = "tape"
	if _, err := New(&cfg); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
