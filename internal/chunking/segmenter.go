package chunking

import (
	"regexp"
	"strings"
)

var (
	headerRegex   = regexp.MustCompile(`^(#{1,6}\s+|[A-Z][A-Za-z0-9\s]{2,50}:$)`)
	listItemRegex = regexp.MustCompile(`^\s*(\d+\.|-|\*)\s+`)
	tableRowRegex = regexp.MustCompile(`\|.*\|`)
)

// StructuralUnits walks page texts in reading order and produces the
// intermediate representation both chunkers consume. Headers flush the
// running paragraph and become units of their own; list items and table
// rows keep their line structure; wrapped prose lines are joined with a
// space. The current section carries across pages until a new header
// overwrites it.
func StructuralUnits(pages []string) []StructuralUnit {
	var units []StructuralUnit
	currentSection := ""

	for i, pageText := range pages {
		page := i + 1
		var buf strings.Builder

		flush := func() {
			if text := strings.TrimSpace(buf.String()); text != "" {
				units = append(units, StructuralUnit{Text: text, Page: page, Section: currentSection})
			}
			buf.Reset()
		}

		for _, line := range strings.Split(pageText, "\n") {
			switch {
			case headerRegex.MatchString(line):
				flush()
				currentSection = strings.TrimSpace(line)
				units = append(units, StructuralUnit{Text: currentSection, Page: page, Section: currentSection})
			case strings.TrimSpace(line) == "":
				flush()
			case listItemRegex.MatchString(line) || tableRowRegex.MatchString(line):
				buf.WriteString(line)
				buf.WriteString("\n")
			default:
				buf.WriteString(strings.TrimSpace(line))
				buf.WriteString(" ")
			}
		}

		flush()
	}

	return units
}
