package translate

import (
	"context"
	"fmt"
	"time"
)

type mockTranslator struct {
	delay      time.Duration
	dictionary map[string]map[string]string // targetLang -> sourceText -> translated
}

// NewMockTranslator returns a deterministic translator for development and
// tests. Unknown phrases are prefixed with the target language code.
func NewMockTranslator(delay time.Duration, dictionary map[string]map[string]string) Translator {
	return &mockTranslator{delay: delay, dictionary: dictionary}
}

func (m *mockTranslator) Translate(ctx context.Context, req Request) (string, error) {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if byLang, ok := m.dictionary[req.TargetLang]; ok {
		if translated, ok := byLang[req.Text]; ok {
			return translated, nil
		}
	}
	return fmt.Sprintf("[%s] %s", req.TargetLang, req.Text), nil
}
