// Package prosody renders synthesis markup from translated text and the
// dynamics descriptor extracted upstream. Generation is pure and
// deterministic: identical input always yields byte-identical markup.
package prosody

import (
	"fmt"
	"strings"

	"github.com/babelcast-labs/babelcast-core/internal/protocol"
)

// emphasisThreshold is the minimum intensity at which a high-arousal
// emotion adds a strong emphasis wrapper.
const emphasisThreshold = 0.7

// sentencePause is inserted between sentences for subdued emotions.
const sentencePause = `<break time="400ms"/>`

var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// Generate renders the markup for one translated segment.
func Generate(text string, d protocol.Dynamics) string {
	body := escaper.Replace(text)

	switch {
	case isHighArousal(d.Emotion) && d.Intensity > emphasisThreshold:
		body = `<emphasis level="strong">` + body + `</emphasis>`
	case isSubdued(d.Emotion):
		body = strings.Join(splitSentences(body), sentencePause)
	}

	return fmt.Sprintf(`<speak><prosody rate="%s" volume="%s">%s</prosody></speak>`,
		rateBucket(d.RateWPM), volumeLevel(d.Volume), body)
}

func isHighArousal(emotion string) bool {
	switch emotion {
	case "anger", "excitement":
		return true
	}
	return false
}

func isSubdued(emotion string) bool {
	switch emotion {
	case "sadness", "fear":
		return true
	}
	return false
}

func rateBucket(wpm int) string {
	switch {
	case wpm < 80:
		return "x-slow"
	case wpm < 110:
		return "slow"
	case wpm <= 160:
		return "medium"
	case wpm <= 200:
		return "fast"
	default:
		return "x-fast"
	}
}

func volumeLevel(category string) string {
	switch category {
	case "whisper":
		return "x-soft"
	case "quiet":
		return "soft"
	case "loud":
		return "loud"
	case "shouting":
		return "x-loud"
	default:
		return "medium"
	}
}

// splitSentences breaks text after terminal punctuation. Trailing
// whitespace between sentences is dropped; punctuation is kept.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		current.WriteRune(runes[i])
		if runes[i] == '.' || runes[i] == '!' || runes[i] == '?' {
			for i+1 < len(runes) && runes[i+1] == ' ' {
				i++
			}
			if s := current.String(); strings.TrimSpace(s) != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := current.String(); strings.TrimSpace(s) != "" {
		sentences = append(sentences, s)
	}
	if len(sentences) == 0 {
		return []string{text}
	}
	return sentences
}
