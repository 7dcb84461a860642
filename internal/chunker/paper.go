package chunker

import (
	"regexp"
	"strings"
)

// Paper is converted PDF text split into its front matter, abstract and
// sections.
type Paper struct {
	// Title holds everything before the first heading.
	Title    string
	Abstract string
	Sections []Section
}

// Section is one headed part of a paper.
type Section struct {
	Heading string
	Body    string
}

var markdownHeading = regexp.MustCompile(`^#{1,6}\s+(.+?)\s*#*$`)

// ParsePaper recognises the layout produced for research papers: front
// matter, an "Abstract" heading and numbered section headings. It reports
// false when the text has no abstract.
func ParsePaper(text string) (*Paper, bool) {
	p := &Paper{}
	var front, abstract []string
	var current *Section
	inAbstract, seenAbstract := false, false

	for _, line := range strings.Split(text, "\n") {
		m := markdownHeading.FindStringSubmatch(strings.TrimSpace(line))
		if m != nil {
			heading := m[1]
			if strings.EqualFold(strings.TrimRight(heading, ".:"), "abstract") && !seenAbstract && current == nil {
				inAbstract, seenAbstract = true, true
				continue
			}
			inAbstract = false
			p.Sections = append(p.Sections, Section{Heading: heading})
			current = &p.Sections[len(p.Sections)-1]
			continue
		}
		switch {
		case current != nil:
			current.Body += line + "\n"
		case inAbstract:
			abstract = append(abstract, line)
		default:
			front = append(front, line)
		}
	}

	p.Title = strings.TrimSpace(strings.Join(front, "\n"))
	p.Abstract = strings.TrimSpace(strings.Join(abstract, "\n"))
	for i := range p.Sections {
		p.Sections[i].Body = strings.TrimSpace(p.Sections[i].Body)
	}
	if p.Abstract == "" {
		return nil, false
	}
	return p, true
}
