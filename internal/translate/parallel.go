package translate

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/babelcast-labs/babelcast-core/internal/cache"
	"github.com/babelcast-labs/babelcast-core/internal/protocol"
)

// Parallel fans one segment out to every requested target language,
// cache-first, with per-language timeout and failure isolation. One
// language's failure never cancels its siblings, and there are no retries.
type Parallel struct {
	translator Translator
	cache      *cache.Cache
	timeout    time.Duration
	log        *slog.Logger
}

func NewParallel(translator Translator, c *cache.Cache, timeout time.Duration, log *slog.Logger) *Parallel {
	return &Parallel{
		translator: translator,
		cache:      c,
		timeout:    timeout,
		log:        log.With(slog.String("component", "parallel-translator")),
	}
}

// Translate returns one Result per requested language. An empty target set
// returns an empty map and makes zero external calls.
func (p *Parallel) Translate(ctx context.Context, seg protocol.TranscriptSegment, targets []string) map[string]Result {
	results := make(map[string]Result, len(targets))
	if len(targets) == 0 {
		return results
	}

	resultCh := make(chan Result, len(targets))
	for _, lang := range targets {
		go func(lang string) {
			resultCh <- p.translateOne(ctx, seg, lang)
		}(lang)
	}
	for range targets {
		r := <-resultCh
		results[r.Language] = r
	}
	return results
}

func (p *Parallel) translateOne(ctx context.Context, seg protocol.TranscriptSegment, lang string) Result {
	key := cache.Key(seg.SourceLanguage, lang, seg.Text)
	if text, ok := p.cache.Get(ctx, key); ok {
		return Result{Language: lang, Text: text, Success: true, CacheHit: true}
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	text, err := p.translator.Translate(callCtx, Request{
		SessionID:  seg.SessionID,
		Text:       seg.Text,
		SourceLang: seg.SourceLanguage,
		TargetLang: lang,
	})
	if err != nil {
		reason := ReasonServiceError
		if errors.Is(err, context.DeadlineExceeded) {
			reason = ReasonTimeout
		}
		p.log.Warn("translation failed",
			slog.String("session_id", seg.SessionID),
			slog.String("target_lang", lang),
			slog.String("reason", reason),
			slog.String("error", err.Error()))
		return Result{Language: lang, Reason: reason}
	}

	p.cache.Put(ctx, key, text)
	return Result{Language: lang, Text: text, Success: true}
}
