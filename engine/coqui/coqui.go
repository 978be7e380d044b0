// Package coqui runs the Coqui TTS command line tool once per synthesis.
//
// The model is passed on every call, so switching models needs no restart.
// The CLI splits input into sentences on its own.
package coqui

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/unkn0wn-root/synthcache/engine"
)

const Kind = "coqui"

// stderr kept for error messages
const maxStderr = 4 << 10

// text spoken by Warm
const warmText = "Test."

func init() {
	engine.Register(Kind, func(ctx context.Context, cfg engine.Config) (engine.Engine, error) {
		e, err := New(cfg.Binary, cfg.Device)
		if err != nil {
			return nil, err
		}
		if cfg.DefaultModel == "" {
			return e, nil
		}
		wctx, cancel := context.WithTimeout(ctx, cfg.OpenTimeout)
		defer cancel()
		if err := e.Warm(wctx, cfg.DefaultModel); err != nil {
			return nil, err
		}
		return e, nil
	})
}

type Engine struct {
	binary string
	device string
	tmpDir string // "" => os.TempDir()
}

var _ engine.Engine = (*Engine)(nil)

// New resolves binary on PATH. An empty binary means "tts".
func New(binary, device string) (*Engine, error) {
	if binary == "" {
		binary = "tts"
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrUnavailable, err)
	}
	if device == "" {
		device = "cpu"
	}
	return &Engine{binary: path, device: device}, nil
}

// Warm synthesizes a short phrase with model, so a model that cannot be
// loaded or downloaded fails here instead of on the first request.
func (e *Engine) Warm(ctx context.Context, model string) error {
	if _, err := e.Synthesize(ctx, engine.Input{Text: warmText, Model: model}); err != nil {
		return fmt.Errorf("coqui: warm up %s: %w", model, err)
	}
	return nil
}

// args uses the --flag=value form throughout; as separate arguments, text
// starting with "-" would be parsed as another flag by the CLI.
func (e *Engine) args(in engine.Input, out string) []string {
	args := []string{
		"--text=" + in.Text,
		"--model_name=" + in.Model,
		"--device=" + e.device,
		"--out_path=" + out,
		"--progress_bar=false",
	}
	if in.Speaker != nil {
		args = append(args, "--speaker_idx="+*in.Speaker)
	}
	return args
}

func (e *Engine) Synthesize(ctx context.Context, in engine.Input) (*engine.Audio, error) {
	dir, err := os.MkdirTemp(e.tmpDir, "synthcache-coqui-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)
	out := filepath.Join(dir, "out.wav")

	cmd := exec.CommandContext(ctx, e.binary, e.args(in, out)...)
	cmd.WaitDelay = 5 * time.Second
	var stderr bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderr, n: maxStderr}

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if isUnknownModel(msg) {
			return nil, fmt.Errorf("%w: %s", engine.ErrUnknownModel, in.Model)
		}
		var ee *exec.ExitError
		if !errors.As(err, &ee) {
			return nil, fmt.Errorf("%w: %v", engine.ErrUnavailable, err)
		}
		return nil, fmt.Errorf("coqui: exit %d: %s", ee.ExitCode(), lastLine(msg))
	}

	b, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("%w: no output file: %v", engine.ErrInvalidOutput, err)
	}
	if !engine.IsWAV(b) {
		return nil, fmt.Errorf("%w: output is not RIFF/WAVE", engine.ErrInvalidOutput)
	}
	return &engine.Audio{Data: b, Format: "wav"}, nil
}

func (e *Engine) Close() error { return nil }

func isUnknownModel(stderr string) bool {
	s := strings.ToLower(stderr)
	return strings.Contains(s, "model") && strings.Contains(s, "not found")
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// limitedWriter keeps the first n bytes and discards the rest.
type limitedWriter struct {
	w *bytes.Buffer
	n int
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	if room := l.n - l.w.Len(); room > 0 {
		if len(p) > room {
			l.w.Write(p[:room])
		} else {
			l.w.Write(p)
		}
	}
	return len(p), nil
}
