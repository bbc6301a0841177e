package synth

import (
	"context"
	"strings"
)

type mockSynthesizer struct {
	sampleRate int
}

// NewMockSynthesizer produces silent PCM sized to an estimated speaking
// duration of the markup's visible text. Deterministic, for development and
// tests.
func NewMockSynthesizer(sampleRate int) Synthesizer {
	return &mockSynthesizer{sampleRate: sampleRate}
}

func (m *mockSynthesizer) Synthesize(ctx context.Context, req Request) (Audio, error) {
	if err := ctx.Err(); err != nil {
		return Audio{}, err
	}
	text := stripTags(req.Markup)
	// Rough speaking rate of 15 characters per second.
	duration := float64(len(text)) / 15.0
	if duration < 0.1 {
		duration = 0.1
	}
	samples := int(duration * float64(m.sampleRate))
	return Audio{
		PCM:          make([]byte, samples*2),
		SampleRate:   m.sampleRate,
		DurationSecs: duration,
	}, nil
}

func stripTags(markup string) string {
	var b strings.Builder
	inTag := false
	for _, r := range markup {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}
