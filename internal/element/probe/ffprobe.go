// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/kuntrapaku/subway-social-link-sub000/internal/procgroup"
)

// DefaultBinary is looked up on PATH unless overridden.
const DefaultBinary = "ffprobe"

const (
	maxStderr = 4096
	waitDelay = 2 * time.Second
)

var ErrNoPlayableStream = errors.New("no playable stream")

// StreamInfo is the subset of ffprobe output a player cares about.
type StreamInfo struct {
	Container  string  `json:"container"`
	Duration   float64 `json:"duration"`
	VideoCodec string  `json:"videoCodec,omitempty"`
	Width      int     `json:"width,omitempty"`
	Height     int     `json:"height,omitempty"`
	AudioCodec string  `json:"audioCodec,omitempty"`
}

// Runner executes the probe. src is either a URL or "pipe:0", in which case
// the media is read from stdin.
type Runner func(ctx context.Context, src string, stdin io.Reader) (stdout []byte, stderr string, err error)

// ExecRunner runs the ffprobe binary at path.
func ExecRunner(path string) Runner {
	if path == "" {
		path = DefaultBinary
	}
	return func(ctx context.Context, src string, stdin io.Reader) ([]byte, string, error) {
		args := []string{
			"-v", "error",
			"-print_format", "json",
			"-show_format",
			"-show_streams",
			src,
		}
		// #nosec G204 - binary comes from config, args are fixed; src is opaque
		cmd := exec.CommandContext(ctx, path, args...)
		procgroup.Bind(cmd, waitDelay)
		cmd.Stdin = stdin
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		out, err := cmd.Output()
		return out, truncate(stderr.String()), err
	}
}

// Parse turns ffprobe JSON into StreamInfo. runErr is the exit error of the
// run; valid JSON with a playable stream is accepted even on non-zero exit.
func Parse(out []byte, stderr string, runErr error) (StreamInfo, error) {
	var data probeData
	jsonErr := json.Unmarshal(out, &data)

	playable := false
	if jsonErr == nil {
		for _, s := range data.Streams {
			if (s.CodecType == "video" || s.CodecType == "audio") && s.CodecName != "" {
				playable = true
				break
			}
		}
	}

	switch {
	case jsonErr == nil && data.Format.FormatName != "" && playable:
	case runErr != nil:
		return StreamInfo{}, fmt.Errorf("ffprobe failed: %w (stderr: %s)", runErr, stderr)
	case jsonErr != nil:
		return StreamInfo{}, fmt.Errorf("json decode: %w", jsonErr)
	default:
		return StreamInfo{}, ErrNoPlayableStream
	}

	var info StreamInfo
	for _, s := range data.Streams {
		switch s.CodecType {
		case "video":
			if info.VideoCodec != "" {
				continue
			}
			info.VideoCodec = s.CodecName
			info.Width = s.Width
			info.Height = s.Height
			if d, err := strconv.ParseFloat(s.Duration, 64); err == nil {
				info.Duration = d
			}
		case "audio":
			if info.AudioCodec == "" {
				info.AudioCodec = s.CodecName
			}
		}
	}
	if info.Duration == 0 {
		if d, err := strconv.ParseFloat(data.Format.Duration, 64); err == nil {
			info.Duration = d
		}
	}
	for _, p := range strings.Split(data.Format.FormatName, ",") {
		if t := strings.TrimSpace(p); t != "" {
			info.Container = t
			break
		}
	}
	return info, nil
}

type probeData struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Duration  string `json:"duration,omitempty"`
		Width     int    `json:"width,omitempty"`
		Height    int    `json:"height,omitempty"`
	} `json:"streams"`
	Format struct {
		Duration   string `json:"duration"`
		FormatName string `json:"format_name"`
	} `json:"format"`
}

func truncate(s string) string {
	if len(s) > maxStderr {
		return s[:maxStderr] + "..."
	}
	return s
}
