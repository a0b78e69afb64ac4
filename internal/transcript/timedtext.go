package transcript

import (
	"encoding/xml"
	"html"
	"strings"
)

// timedTextDoc covers both timed-text XML shapes YouTube serves: the legacy
// `<transcript><text>` list and the srv3 `<timedtext><body><p>` layout.
type timedTextDoc struct {
	Texts      []timedTextLine `xml:"text"`
	Paragraphs []timedTextLine `xml:"body>p"`
}

type timedTextLine struct {
	Value string `xml:",chardata"`
}

// ParseTimedText extracts the spoken lines from a timed-text XML payload, one
// entry per cue in document order. Unparseable input yields no entries.
func ParseTimedText(raw string) []string {
	var doc timedTextDoc
	if err := xml.Unmarshal([]byte(raw), &doc); err != nil {
		return nil
	}

	lines := doc.Texts
	if len(lines) == 0 {
		lines = doc.Paragraphs
	}

	var entries []string
	for _, line := range lines {
		// Payloads double-escape entities, so one round survives the XML
		// decoder.
		text := strings.TrimSpace(html.UnescapeString(line.Value))
		if text != "" {
			entries = append(entries, text)
		}
	}
	return entries
}

// Normalize routes a caption payload to the cleaner matching its format.
// Timed-text XML becomes per-cue entries for the merge cleaner; everything
// else is treated as WebVTT/SRT-style markup.
func Normalize(format, raw string) string {
	switch strings.ToLower(format) {
	case "xml", "srv1", "srv2", "srv3", "ttml":
		return NormalizeTimedEntries(ParseTimedText(raw))
	default:
		return NormalizeMarkup(raw)
	}
}
