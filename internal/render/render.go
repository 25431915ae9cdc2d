// Package render turns loosely structured model output into typed display blocks.
//
// Classification is line based and first match wins: section heading, bullet,
// numbered item, inline emphasis, blank spacer, plain paragraph. Blocks carry
// text only; nothing here produces or interprets markup.
package render

import (
	"iter"
	"regexp"
	"strings"
)

// Kind identifies a display block.
type Kind string

const (
	KindHeading   Kind = "heading"
	KindBullet    Kind = "bullet"
	KindNumbered  Kind = "numbered"
	KindEmphasis  Kind = "emphasis"
	KindSpacer    Kind = "spacer"
	KindParagraph Kind = "paragraph"
)

// Segment is a run of text inside an emphasis paragraph.
type Segment struct {
	Text       string `json:"text"`
	Emphasized bool   `json:"emphasized"`
}

// Block is one rendered line.
type Block struct {
	Kind     Kind      `json:"kind"`
	Text     string    `json:"text,omitempty"`
	Marker   string    `json:"marker,omitempty"`
	Number   string    `json:"number,omitempty"`
	Segments []Segment `json:"segments,omitempty"`
}

// SectionMarkers open a heading line. They match the mandatory plan structure.
// Glyphs are listed without the emoji variation selector so both spellings match.
var SectionMarkers = []string{"🎬", "⏱", "📋", "🎙", "📝", "🔍"}

const (
	headingPrefix     = "##"
	emphasisMarker    = "**"
	variationSelector = "\uFE0F"
)

var numberedPattern = regexp.MustCompile(`^(\d+)\.\s*`)

// Blocks yields one block per line of text. The sequence can be ranged over
// any number of times and always yields the same blocks.
func Blocks(text string) iter.Seq[Block] {
	return func(yield func(Block) bool) {
		for line := range strings.SplitSeq(text, "\n") {
			if !yield(Classify(line)) {
				return
			}
		}
	}
}

// Collect materialises Blocks(text).
func Collect(text string) []Block {
	var out []Block
	for b := range Blocks(text) {
		out = append(out, b)
	}
	return out
}

// Classify renders a single line.
func Classify(line string) Block {
	line = strings.TrimSuffix(line, "\r")
	trimmed := strings.TrimSpace(line)

	if marker, ok := sectionMarker(trimmed); ok {
		body := strings.TrimPrefix(trimmed, marker)
		return Block{
			Kind:   KindHeading,
			Marker: strings.Trim(marker, "#"),
			Text:   strings.TrimSpace(strings.ReplaceAll(body, "#", "")),
		}
	}

	if strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* ") {
		return Block{Kind: KindBullet, Text: trimmed[2:]}
	}

	if m := numberedPattern.FindStringSubmatchIndex(trimmed); m != nil {
		return Block{
			Kind:   KindNumbered,
			Number: trimmed[m[2]:m[3]],
			Text:   trimmed[m[1]:],
		}
	}

	if segments, ok := emphasis(line); ok {
		return Block{Kind: KindEmphasis, Segments: segments}
	}

	if trimmed == "" {
		return Block{Kind: KindSpacer}
	}

	return Block{Kind: KindParagraph, Text: line}
}

func sectionMarker(trimmed string) (string, bool) {
	for _, m := range SectionMarkers {
		if strings.HasPrefix(trimmed, m) {
			if strings.HasPrefix(trimmed[len(m):], variationSelector) {
				m += variationSelector
			}
			return m, true
		}
	}
	if strings.HasPrefix(trimmed, headingPrefix) {
		return headingPrefix, true
	}
	return "", false
}

// emphasis splits on "**". An odd number of delimiters is unbalanced and is
// left to the paragraph rule.
func emphasis(line string) ([]Segment, bool) {
	parts := strings.Split(line, emphasisMarker)
	if len(parts) < 3 || len(parts)%2 == 0 {
		return nil, false
	}
	segments := make([]Segment, 0, len(parts))
	for i, part := range parts {
		if part == "" {
			continue
		}
		segments = append(segments, Segment{Text: part, Emphasized: i%2 == 1})
	}
	return segments, true
}
