// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kuntrapaku/subway-social-link-sub000/internal/config"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/element/probe"
	"github.com/kuntrapaku/subway-social-link-sub000/internal/media"
)

type probeResult struct {
	Reference string            `json:"reference"`
	Kind      media.Kind        `json:"kind"`
	Problem   media.Problem     `json:"problem,omitempty"`
	Stream    *probe.StreamInfo `json:"stream,omitempty"`
}

func newProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe <reference>",
		Short: "Check a media reference and probe its streams with ffprobe",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewLoader(resolveConfigPath(configPath)).Load()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Probe.Timeout)
			defer cancel()
			return runProbe(ctx, cmd.OutOrStdout(), args[0], probe.ExecRunner(cfg.Probe.FFprobeBin))
		},
	}
}

// runProbe validates raw before touching the network; an unpresentable
// reference is reported, not probed.
func runProbe(ctx context.Context, w io.Writer, raw string, run probe.Runner) error {
	ref := media.Parse(raw)
	res := probeResult{Reference: ref.Redacted(), Kind: ref.Kind}

	res.Problem = media.Validate(ref, media.Authenticated)
	if res.Problem == media.ProblemNone && ref.SessionLocal() {
		return fmt.Errorf("session-local references only resolve inside a running session")
	}
	if res.Problem == media.ProblemNone {
		out, stderr, runErr := run(ctx, ref.Source, nil)
		info, err := probe.Parse(out, stderr, runErr)
		if err != nil {
			return fmt.Errorf("probe %s: %w", ref.Redacted(), err)
		}
		res.Stream = &info
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return err
	}
	if res.Problem != media.ProblemNone {
		return fmt.Errorf("reference is not presentable: %s", res.Problem)
	}
	return nil
}
