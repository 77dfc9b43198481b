package chat

import (
	"strings"
)

// voiceDirective is the system turn prepended when voice mode is on. The
// model usually complies; TruncateToSentence enforces the single-sentence
// shape regardless.
const voiceDirective = "Voice mode is on. Reply with a single short sentence " +
	"suitable for spoken playback. Do not use lists, markdown, or more than " +
	"one sentence."

// voiceMaxTokens is the token budget for voice-mode completions.
const voiceMaxTokens = 100

// TruncateToSentence cuts the text at the first sentence terminator and
// ends it with a period.
//
// # Description
//
// The cut happens at the first of '.', '!', or '?'. Text without any
// terminator is kept whole. The result always ends with exactly one
// period, so applying the function twice yields the same output as
// applying it once.
func TruncateToSentence(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return "."
	}
	if idx := strings.IndexAny(text, ".!?"); idx >= 0 {
		text = strings.TrimSpace(text[:idx])
	}
	return text + "."
}
