package generatormodule

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// execCommand is a package-level variable so tests can substitute the ffprobe process
var execCommand = exec.CommandContext

const defaultProbeTimeout = 2 * time.Second

// VideoStream is the first video stream reported by a prober
type VideoStream struct {
	Width    int
	Height   int
	Duration *float64
	Codec    string
}

// MediaProber extracts video stream metadata from a file
type MediaProber interface {
	ProbeVideo(ctx context.Context, path string) (*VideoStream, error)
}

// FFProbe probes files with the ffprobe binary
type FFProbe struct {
	Binary  string
	Timeout time.Duration
}

// NewFFProbe creates a prober. Empty binary defaults to "ffprobe" on PATH and a
// zero timeout defaults to two seconds.
func NewFFProbe(binary string, timeout time.Duration) *FFProbe {
	if binary == "" {
		binary = "ffprobe"
	}
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	return &FFProbe{Binary: binary, Timeout: timeout}
}

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeStream struct {
	Width     json.RawMessage `json:"width"`
	Height    json.RawMessage `json:"height"`
	Duration  json.RawMessage `json:"duration"`
	CodecName string          `json:"codec_name"`
	CodecType string          `json:"codec_type"`
}

// ProbeVideo runs ffprobe against the first video stream. It returns an error
// when ffprobe fails, times out, prints invalid JSON or reports no video stream.
func (p *FFProbe) ProbeVideo(ctx context.Context, path string) (*VideoStream, error) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	binary := p.Binary
	if binary == "" {
		binary = "ffprobe"
	}

	cmd := execCommand(ctx, binary,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,duration,codec_name,codec_type",
		"-of", "json",
		path,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("ffprobe timed out after %s: %w", timeout, ctx.Err())
		}
		return nil, fmt.Errorf("ffprobe failed: %w (%s)", err, strings.TrimSpace(stderr.String()))
	}

	return parseFFProbeOutput(out)
}

func parseFFProbeOutput(out []byte) (*VideoStream, error) {
	var parsed ffprobeOutput
	if len(bytes.TrimSpace(out)) == 0 {
		out = []byte("{}")
	}
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	if len(parsed.Streams) == 0 {
		return nil, fmt.Errorf("no video stream")
	}

	stream := parsed.Streams[0]
	if stream.CodecType != "" && stream.CodecType != "video" {
		return nil, fmt.Errorf("first stream is %s, not video", stream.CodecType)
	}

	vs := &VideoStream{Codec: strings.ToLower(stream.CodecName)}
	if w, ok := flexibleFloat(stream.Width); ok {
		vs.Width = int(w)
	}
	if h, ok := flexibleFloat(stream.Height); ok {
		vs.Height = int(h)
	}
	if d, ok := flexibleFloat(stream.Duration); ok {
		vs.Duration = &d
	}
	return vs, nil
}

// flexibleFloat accepts a JSON number or a numeric string
func flexibleFloat(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
