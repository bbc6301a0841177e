package synth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeSynthesizer struct {
	calls     atomic.Int64
	failLangs map[string]error
	hang      map[string]bool
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, req Request) (Audio, error) {
	f.calls.Add(1)
	if f.hang[req.Language] {
		<-ctx.Done()
		return Audio{}, ctx.Err()
	}
	if err, ok := f.failLangs[req.Language]; ok {
		return Audio{}, err
	}
	return Audio{PCM: []byte{1, 2, 3, 4}, SampleRate: req.SampleRate, DurationSecs: 1.5}, nil
}

func TestSynthesizeAllLanguages(t *testing.T) {
	fs := &fakeSynthesizer{}
	p := NewParallel(fs, "default", 22050, time.Second, newLogger())

	results := p.Synthesize(context.Background(), "s1", map[string]string{
		"es": "<speak>hola</speak>",
		"fr": "<speak>bonjour</speak>",
	})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, lang := range []string{"es", "fr"} {
		r := results[lang]
		if !r.Success || r.Audio.DurationSecs != 1.5 {
			t.Fatalf("unexpected result for %s: %+v", lang, r)
		}
	}
	if got := fs.calls.Load(); got != 2 {
		t.Fatalf("expected 2 synthesis calls, got %d", got)
	}
}

func TestEmptyInputMakesNoCalls(t *testing.T) {
	fs := &fakeSynthesizer{}
	p := NewParallel(fs, "default", 22050, time.Second, newLogger())

	results := p.Synthesize(context.Background(), "s1", nil)
	if len(results) != 0 {
		t.Fatalf("expected empty map, got %v", results)
	}
	if got := fs.calls.Load(); got != 0 {
		t.Fatalf("expected zero calls, got %d", got)
	}
}

func TestFailureIsolatedToOneLanguage(t *testing.T) {
	fs := &fakeSynthesizer{failLangs: map[string]error{"fr": errors.New("voice unavailable")}}
	p := NewParallel(fs, "default", 22050, time.Second, newLogger())

	results := p.Synthesize(context.Background(), "s1", map[string]string{"es": "a", "fr": "b"})
	if !results["es"].Success {
		t.Fatal("es should succeed despite fr failing")
	}
	if results["fr"].Success || results["fr"].Reason != ReasonServiceError {
		t.Fatalf("unexpected fr result: %+v", results["fr"])
	}
}

func TestTimeoutReportedAsTimeout(t *testing.T) {
	fs := &fakeSynthesizer{hang: map[string]bool{"fr": true}}
	p := NewParallel(fs, "default", 22050, 20*time.Millisecond, newLogger())

	results := p.Synthesize(context.Background(), "s1", map[string]string{"es": "a", "fr": "b"})
	if !results["es"].Success {
		t.Fatal("es should succeed despite fr hanging")
	}
	if results["fr"].Reason != ReasonTimeout {
		t.Fatalf("expected timeout reason, got %+v", results["fr"])
	}
}

func TestMockSynthesizerDeterministic(t *testing.T) {
	m := NewMockSynthesizer(22050)
	req := Request{SessionID: "s1", Language: "es", Markup: "<speak>hola mundo</speak>", SampleRate: 22050}
	first, err := m.Synthesize(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := m.Synthesize(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.DurationSecs != second.DurationSecs || len(first.PCM) != len(second.PCM) {
		t.Fatalf("mock output not deterministic: %v vs %v", first.DurationSecs, second.DurationSecs)
	}
	if first.DurationSecs <= 0 {
		t.Fatal("expected positive duration")
	}
}
