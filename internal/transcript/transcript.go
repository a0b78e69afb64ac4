// Package transcript normalizes noisy caption payloads into deduplicated,
// readable plain text. Two raw shapes are supported: timed caption entries
// (one fragment per spoken utterance) and markup caption text (WebVTT/SRT
// style). Both cleaners are pure functions.
package transcript

import (
	"regexp"
	"strings"
	"unicode"
)

// Fragments shorter than this many tokens are folded into the preceding
// buffered line instead of starting a new one.
const minFragmentTokens = 4

var (
	cueSettingRe   = regexp.MustCompile(`line:\d+%`)
	bracketTagRe   = regexp.MustCompile(`>>>|>>|\[\[.*?\]\]|\[.*?\]`)
	speakerTagRe   = regexp.MustCompile(`(Reporter|Speaker|Host|Narrator):\s*`)
	inlineStampRe  = regexp.MustCompile(`<\d{2}:\d{2}:\d{2}\.\d{3}>`)
	cueTagRe       = regexp.MustCompile(`</?c>`)
	sentenceEndRe  = regexp.MustCompile(`([.!?])\s+`)
	extraNewlineRe = regexp.MustCompile(`\n{3,}`)
)

// entityReplacer unescapes the three HTML entities caption systems emit.
var entityReplacer = strings.NewReplacer("&gt;", ">", "&lt;", "<", "&amp;", "&")

// normalForm reduces a line to its comparison-only representation: lowercase,
// punctuation stripped except apostrophes, all whitespace removed. Used
// purely for deduplication, never for output.
func normalForm(line string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(line) {
		switch {
		case unicode.IsSpace(r):
		case r == '\'':
			b.WriteRune(r)
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// overlaps reports whether two normal forms duplicate each other: equal, or
// one a prefix or suffix of the other. Caption systems re-emit overlapping
// windows, so either containment direction means the shorter line is part of
// the longer one.
func overlaps(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.HasPrefix(a, b) || strings.HasPrefix(b, a) ||
		strings.HasSuffix(a, b) || strings.HasSuffix(b, a)
}

// isContinuation reports whether current picks up mid-word from the previous
// fragment's final token.
func isContinuation(current, previous string) bool {
	fields := strings.Fields(previous)
	if len(fields) == 0 {
		return false
	}
	return strings.HasPrefix(current, fields[len(fields)-1])
}

// NormalizeTimedEntries merges and deduplicates timed caption fragments into
// readable lines. Short fragments and lexical continuations are folded into
// the preceding buffered line; a fragment whose normal form overlaps the
// buffer tail is dropped as a re-emitted caption window.
func NormalizeTimedEntries(entries []string) string {
	var buffer []string
	for _, entry := range entries {
		text := strings.TrimSpace(entry)
		if text == "" {
			continue
		}

		if len(buffer) > 0 {
			last := buffer[len(buffer)-1]
			if overlaps(normalForm(text), normalForm(last)) {
				continue
			}
			if len(strings.Fields(last)) < minFragmentTokens || isContinuation(text, last) {
				buffer[len(buffer)-1] = last + " " + text
				continue
			}
		}
		buffer = append(buffer, text)
	}

	var cleaned []string
	prevNormal := ""
	for _, line := range buffer {
		n := normalForm(line)
		if n == "" {
			continue
		}
		if n == prevNormal || overlaps(n, prevNormal) {
			continue
		}
		cleaned = append(cleaned, line)
		prevNormal = n
	}

	return strings.Join(cleaned, "\n")
}

// structuralNoise reports whether a raw caption line is header metadata,
// timing, an index, or a cue-setting line rather than spoken text.
func structuralNoise(line string) bool {
	for _, marker := range []string{"WEBVTT", "Kind:", "Language:"} {
		if strings.Contains(line, marker) {
			return true
		}
	}
	if strings.Contains(line, "-->") {
		return true
	}
	trimmed := strings.TrimSpace(line)
	if trimmed != "" && isAllDigits(trimmed) {
		return true
	}
	if cueSettingRe.MatchString(line) {
		return true
	}
	if strings.Contains(line, "align:") || strings.Contains(line, "position:") {
		return true
	}
	return false
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// NormalizeMarkup strips WebVTT/SRT structural noise from raw caption text
// and produces deduplicated, paragraph-broken plain text. Empty input yields
// empty output; the function never fails.
func NormalizeMarkup(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	seen := make(map[string]bool)
	var cleaned []string

	for _, line := range strings.Split(raw, "\n") {
		if structuralNoise(line) {
			continue
		}

		text := entityReplacer.Replace(line)
		text = bracketTagRe.ReplaceAllString(text, "")
		text = speakerTagRe.ReplaceAllString(text, "")
		text = inlineStampRe.ReplaceAllString(text, "")
		text = cueTagRe.ReplaceAllString(text, "")
		text = strings.TrimSpace(text)

		if text == "" || seen[text] {
			continue
		}
		seen[text] = true
		cleaned = append(cleaned, text)
	}

	out := strings.Join(cleaned, "\n")
	out = sentenceEndRe.ReplaceAllString(out, "$1\n\n")
	out = extraNewlineRe.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}
