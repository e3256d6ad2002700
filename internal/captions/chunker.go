package captions

import (
	"strings"
	"unicode"

	"clipcast/internal/jobs"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	// Display budget for the on-screen caption window
	MaxLineChars = 40
	MaxLines     = 3

	// Word matching searches inside this window around a chunk's
	// nominal mid-time
	matchWindowMs = 5000
)

// Chunk is one on-screen caption: display text and the clip-relative
// window in which it is visible. Words carry the provider timestamps
// of the matched words for future word-level highlighting.
type Chunk struct {
	Text    string           `json:"text"`
	StartMs int              `json:"startMs"`
	EndMs   int              `json:"endMs"`
	Words   []TranscriptWord `json:"words,omitempty"`

	// LastWordIndex is the global transcript index of this chunk's
	// last matched word; -1 when matching fell back to nominal timing
	LastWordIndex int `json:"-"`
}

var titleCaser = cases.Title(language.English)

// ApplyStyle folds the display text of each chunk. "normal" leaves the
// provider's formatting untouched. Word timestamps are unaffected.
func ApplyStyle(chunks []Chunk, style jobs.CaptionStyle) {
	for i := range chunks {
		switch style {
		case jobs.StyleUppercase:
			chunks[i].Text = strings.ToUpper(chunks[i].Text)
		case jobs.StyleLowercase:
			chunks[i].Text = strings.ToLower(chunks[i].Text)
		case jobs.StyleTitle:
			chunks[i].Text = titleCaser.String(chunks[i].Text)
		}
	}
}

// ChunkTranscript turns a completed transcript into ordered caption
// chunks sized for the display window. Utterance boundaries are
// respected (chunks never span a speaker change); oversized utterances
// split at the line budget. Each chunk's window comes from the actual
// matched word timestamps, found by text matching forward from a
// position cursor so repeated phrases cannot re-match an earlier
// occurrence.
func ChunkTranscript(t *Transcript) []Chunk {
	utterances := t.Utterances
	if len(utterances) == 0 && len(t.Words) > 0 {
		// Speaker labeling can come back empty; treat the whole clip
		// as one utterance and let the line budget do the splitting
		utterances = []Utterance{{
			Text:    t.Text,
			StartMs: t.Words[0].StartMs,
			EndMs:   t.Words[len(t.Words)-1].EndMs,
		}}
		if utterances[0].Text == "" {
			utterances[0].Text = joinWords(t.Words)
		}
	}

	var chunks []Chunk
	cursor := -1 // index of the last word consumed by any chunk

	for _, u := range utterances {
		segments := splitUtterance(u.Text)
		totalChars := len(u.Text)
		charPos := 0

		for _, seg := range segments {
			segStart := charPos
			charPos += len(seg)
			if trimmed := strings.TrimSpace(seg); trimmed != "" {
				seg = trimmed
			} else {
				continue
			}

			// Nominal window by proportional division; only used to
			// bound the text search and as a fallback
			nomStart := proportionalMs(u.StartMs, u.EndMs, segStart, totalChars)
			nomEnd := proportionalMs(u.StartMs, u.EndMs, charPos, totalChars)
			midMs := (nomStart + nomEnd) / 2

			chunk := Chunk{Text: seg, StartMs: nomStart, EndMs: nomEnd, LastWordIndex: -1}

			tokens := normalizeTokens(seg)
			if first, last, ok := matchWords(t.Words, tokens, cursor+1, midMs); ok {
				chunk.StartMs = t.Words[first].StartMs
				chunk.EndMs = t.Words[last].EndMs
				chunk.Words = t.Words[first : last+1]
				chunk.LastWordIndex = last
				cursor = last
			}

			chunks = append(chunks, chunk)
		}
	}
	return chunks
}

// splitUtterance cuts utterance text into display-sized segments, each
// fitting MaxLines wrapped lines. Splits happen on word boundaries;
// the returned segments concatenate back to the input.
func splitUtterance(text string) []string {
	if len(WrapLines(text)) <= MaxLines {
		return []string{text}
	}

	var segments []string
	var current strings.Builder
	for _, field := range splitKeepingSpace(text) {
		if strings.TrimSpace(field) != "" {
			candidate := current.String() + field
			if len(WrapLines(strings.TrimSpace(candidate))) > MaxLines && strings.TrimSpace(current.String()) != "" {
				segments = append(segments, current.String())
				current.Reset()
			}
		}
		current.WriteString(field)
	}
	if current.Len() > 0 {
		segments = append(segments, current.String())
	}
	return segments
}

// splitKeepingSpace splits text into alternating word and whitespace
// runs so segment lengths still add up to the original char count
func splitKeepingSpace(text string) []string {
	var parts []string
	start := 0
	inSpace := false
	for i, r := range text {
		isSpace := r == ' ' || r == '\n' || r == '\t'
		if i > 0 && isSpace != inSpace {
			parts = append(parts, text[start:i])
			start = i
		}
		inSpace = isSpace
	}
	if start < len(text) {
		parts = append(parts, text[start:])
	}
	return parts
}

// WrapLines greedily wraps text into display lines of at most
// MaxLineChars characters. Words longer than a line get a line of
// their own rather than being broken mid-word.
func WrapLines(text string) []string {
	var lines []string
	var current strings.Builder
	for _, word := range strings.Fields(text) {
		switch {
		case current.Len() == 0:
			current.WriteString(word)
		case current.Len()+1+len(word) <= MaxLineChars:
			current.WriteByte(' ')
			current.WriteString(word)
		default:
			lines = append(lines, current.String())
			current.Reset()
			current.WriteString(word)
		}
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}

// matchWords finds the first contiguous run of transcript words whose
// normalized text equals tokens, scanning forward from fromIdx and
// only considering words starting within the match window around
// midMs.
func matchWords(words []TranscriptWord, tokens []string, fromIdx, midMs int) (first, last int, ok bool) {
	if len(tokens) == 0 || fromIdx < 0 {
		return 0, 0, false
	}
	for i := fromIdx; i+len(tokens) <= len(words); i++ {
		startMs := words[i].StartMs
		if startMs > midMs+matchWindowMs {
			break
		}
		if startMs < midMs-matchWindowMs {
			continue
		}
		if tokensMatchAt(words, i, tokens) {
			return i, i + len(tokens) - 1, true
		}
	}
	return 0, 0, false
}

func tokensMatchAt(words []TranscriptWord, at int, tokens []string) bool {
	for j, tok := range tokens {
		if normalizeToken(words[at+j].Text) != tok {
			return false
		}
	}
	return true
}

// normalizeTokens lowercases and strips punctuation so "Customer," and
// "customer" compare equal. Tokens that normalize to nothing (bare
// punctuation) are dropped.
func normalizeTokens(text string) []string {
	var tokens []string
	for _, f := range strings.Fields(text) {
		if tok := normalizeToken(f); tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

func normalizeToken(word string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(word) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func proportionalMs(startMs, endMs, charPos, totalChars int) int {
	if totalChars == 0 {
		return startMs
	}
	return startMs + (endMs-startMs)*charPos/totalChars
}

func joinWords(words []TranscriptWord) string {
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.Text
	}
	return strings.Join(parts, " ")
}
