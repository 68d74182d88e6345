package text

import (
	"regexp"
	"strings"
	"unicode"
)

// Cleaner normalizes extracted page text before segmentation. Unlike a
// whitespace-collapsing cleaner it preserves line structure, which the
// segmenter depends on for header and list detection.
type Cleaner struct {
	enabled bool

	inlineSpacesRegex     *regexp.Regexp
	multipleNewlinesRegex *regexp.Regexp
	controlCharsRegex     *regexp.Regexp
}

func NewCleaner(enabled bool) *Cleaner {
	return &Cleaner{
		enabled:               enabled,
		inlineSpacesRegex:     regexp.MustCompile(`[ \t]{2,}`),
		multipleNewlinesRegex: regexp.MustCompile(`\n{3,}`),
		controlCharsRegex:     regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`),
	}
}

func (c *Cleaner) Clean(text string) string {
	if !c.enabled {
		return text
	}

	cleaned := strings.ReplaceAll(text, "\r\n", "\n")
	cleaned = c.controlCharsRegex.ReplaceAllString(cleaned, "")
	cleaned = c.inlineSpacesRegex.ReplaceAllString(cleaned, " ")
	cleaned = c.multipleNewlinesRegex.ReplaceAllString(cleaned, "\n\n")

	lines := strings.Split(cleaned, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	cleaned = strings.Join(lines, "\n")

	return strings.TrimSpace(c.dropArtifactLines(cleaned))
}

// dropArtifactLines removes isolated single-character detritus that OCR
// tends to leave behind.
func (c *Cleaner) dropArtifactLines(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if c.isArtifact(strings.TrimSpace(line)) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func (c *Cleaner) isArtifact(trimmed string) bool {
	if len(trimmed) != 1 {
		return false
	}
	r := rune(trimmed[0])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func (c *Cleaner) CountWords(text string) int {
	return len(strings.Fields(text))
}
