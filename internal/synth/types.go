package synth

import (
	"context"
	"fmt"

	"github.com/babelcast-labs/babelcast-core/internal/config"
)

// Request describes one synthesis call for a single language.
type Request struct {
	SessionID  string
	Language   string
	Markup     string
	Voice      string
	SampleRate int
}

// Audio is the synthesized output for one language.
type Audio struct {
	PCM          []byte
	SampleRate   int
	DurationSecs float64
}

// Synthesizer defines a pluggable speech synthesis backend.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) (Audio, error)
}

// Failure reasons recorded in a Result.
const (
	ReasonTimeout      = "timeout"
	ReasonServiceError = "service_error"
)

// Result is the per-language outcome of a synthesis fan-out.
type Result struct {
	Language string
	Audio    Audio
	Success  bool
	Reason   string
}

// FromConfig builds the configured backend.
func FromConfig(cfg config.SynthesisConfig) (Synthesizer, error) {
	switch cfg.Mode {
	case "mock":
		return NewMockSynthesizer(cfg.SampleRate), nil
	case "exec":
		return NewExecSynthesizer(cfg.Command, cfg.SampleRate)
	default:
		return nil, fmt.Errorf("unknown synthesis mode %q", cfg.Mode)
	}
}
