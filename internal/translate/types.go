package translate

import (
	"context"
	"fmt"

	"github.com/babelcast-labs/babelcast-core/internal/config"
)

// Request describes one translation call.
type Request struct {
	SessionID  string
	Text       string
	SourceLang string
	TargetLang string
}

// Translator defines a pluggable translation backend.
type Translator interface {
	Translate(ctx context.Context, req Request) (string, error)
}

// Failure reasons recorded in a Result.
const (
	ReasonTimeout      = "timeout"
	ReasonServiceError = "service_error"
)

// Result is the per-language outcome of a translation fan-out. A failed
// language is dropped from the rest of the pipeline for that segment;
// siblings are unaffected.
type Result struct {
	Language string
	Text     string
	Success  bool
	CacheHit bool
	Reason   string
}

// FromConfig builds the configured backend.
func FromConfig(cfg config.TranslationConfig) (Translator, error) {
	switch cfg.Mode {
	case "mock":
		return NewMockTranslator(0, nil), nil
	case "http":
		return NewHTTPTranslator(cfg.Endpoint), nil
	case "exec":
		return NewExecTranslator(cfg.Command)
	default:
		return nil, fmt.Errorf("unknown translation mode %q", cfg.Mode)
	}
}
