package main

import (
	"context"
	"log"

	"mediaflow/internal/config"
	"mediaflow/internal/daemonrun"
)

func main() {
	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{}); err != nil {
		log.Fatalf("mediaflowd: %v", err)
	}
}
