package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mediaflow/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}
	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigPoliciesCommand(ctx))
	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := resolveConfigTarget(targetPath)
			if err != nil {
				return err
			}
			if !overwrite {
				_, statErr := os.Stat(target)
				switch {
				case statErr == nil:
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				case !errors.Is(statErr, fs.ErrNotExist):
					return fmt.Errorf("check config path: %w", statErr)
				}
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("create config directory: %w", err)
			}
			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Set ai.api_key (or export OPENAI_API_KEY) and the [storage] section before submitting media.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func resolveConfigTarget(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		target, err := config.DefaultConfigPath()
		if err != nil {
			return "", fmt.Errorf("determine default config path: %w", err)
		}
		return target, nil
	}
	target, err := config.ExpandPath(path)
	if err != nil {
		return "", fmt.Errorf("resolve config path: %w", err)
	}
	return target, nil
}

// newConfigValidateCommand loads the file, creates the directories the
// pipeline writes to and reports which pipeline shape the config selects.
func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Validate the configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load(ctx.configPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", path)
			if !exists {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			indexing := "off"
			if cfg.IndexingEnabled() {
				indexing = "on (" + cfg.AI.Embedder + ")"
			}
			fmt.Fprintf(out, "Pipeline: %s, storage %s, transcriber %s, summarizer %s, indexing %s\n",
				cfg.Workflow.Pipeline, cfg.Storage.Backend, cfg.AI.Transcriber, cfg.AI.Summarizer, indexing)
			if err := cfg.ValidateCredentials(); err != nil {
				fmt.Fprintf(out, "Warning: %v\n", err)
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

// newConfigPoliciesCommand prints the retry and timeout policy each stage
// runs under once [retry] and [stages.<name>] are applied.
func newConfigPoliciesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "policies",
		Short: "Show the resolved retry policy of every stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			columns := []column{
				{Header: "Stage"},
				{Header: "Timeout", Align: alignRight},
				{Header: "Attempts", Align: alignRight},
				{Header: "Backoff"},
				{Header: "Heartbeat", Align: alignRight},
			}
			var rows [][]string
			for _, stage := range config.KnownStages() {
				p := cfg.StagePolicy(stage)
				heartbeat := "off"
				if p.HeartbeatTimeout > 0 {
					heartbeat = p.HeartbeatTimeout.String()
				}
				rows = append(rows, []string{
					stage,
					p.Timeout.String(),
					strconv.Itoa(p.MaxAttempts),
					policyBackoff(p),
					heartbeat,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(columns, rows))
			return nil
		},
	}
}

func policyBackoff(p config.StagePolicy) string {
	if p.MaxAttempts <= 1 {
		return "-"
	}
	initial := p.InitialInterval.Round(time.Millisecond).String()
	if p.MaxInterval <= 0 {
		return initial
	}
	return initial + " .. " + p.MaxInterval.String()
}
