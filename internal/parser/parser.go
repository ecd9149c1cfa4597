// Package parser reads Markdown itinerary outlines.
//
// An outline has optional YAML frontmatter (title, start_date) followed by
// one "## Day N" heading per day and one list item per place:
//
//	---
//	title: Lisbon
//	start_date: 2026-05-01
//	---
//	## Day 1
//	- 09:30-11:00 Belém Tower @ Belém, Lisbon #sight
//	- Pastéis de Belém
//	  > get there before noon
//
// A list item reads "[HH:MM[-HH:MM]] name [@ location] [#category]".
// Indented "> " lines become the notes of the item above.
package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/waypoint/internal/models"
)

var (
	dayRe      = regexp.MustCompile(`^##\s+Day\s+(\d+)\b`)
	timeRe     = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)(?:-([01]\d|2[0-3]):([0-5]\d))?\s+`)
	categoryRe = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_-]*)\s*$`)
)

// Outline is a parsed itinerary.
type Outline struct {
	Title     string
	StartDate string
	// Days holds the places of day i+1 at index i.
	Days [][]models.Place
}

// ItemCount returns the number of places across all days.
func (o *Outline) ItemCount() int {
	n := 0
	for _, d := range o.Days {
		n += len(d)
	}
	return n
}

type frontmatter struct {
	Title     string `yaml:"title"`
	StartDate string `yaml:"start_date"`
}

// Parse reads an outline. Places listed before the first day heading belong
// to day 1. Skipped day numbers become empty days.
func Parse(data []byte) (*Outline, error) {
	fm, body := splitFrontmatter(data)
	out := &Outline{Title: fm.Title, StartDate: fm.StartDate}

	day := 1
	var last *models.Place
	for i, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			continue
		case dayRe.MatchString(trimmed):
			n, _ := strconv.Atoi(dayRe.FindStringSubmatch(trimmed)[1])
			if n < 1 {
				return nil, fmt.Errorf("line %d: day numbers start at 1", i+1)
			}
			day, last = n, nil
			out.ensure(day)
		case strings.HasPrefix(trimmed, "# ") && out.Title == "":
			out.Title = strings.TrimSpace(trimmed[2:])
		case strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* "):
			p, ok := parseItem(strings.TrimSpace(trimmed[2:]))
			if !ok {
				continue
			}
			out.ensure(day)
			out.Days[day-1] = append(out.Days[day-1], p)
			last = &out.Days[day-1][len(out.Days[day-1])-1]
		case strings.HasPrefix(trimmed, ">") && last != nil && line != trimmed:
			note := strings.TrimSpace(strings.TrimPrefix(trimmed, ">"))
			if last.Notes != "" {
				last.Notes += "\n"
			}
			last.Notes += note
		}
	}
	if len(out.Days) == 0 {
		out.Days = [][]models.Place{{}}
	}
	return out, nil
}

func (o *Outline) ensure(day int) {
	for len(o.Days) < day {
		o.Days = append(o.Days, []models.Place{})
	}
}

func parseItem(s string) (models.Place, bool) {
	var p models.Place
	if m := timeRe.FindStringSubmatch(s); m != nil {
		p.StartTime = m[1] + ":" + m[2]
		if m[3] != "" {
			p.EndTime = m[3] + ":" + m[4]
		}
		s = s[len(m[0]):]
	}
	if m := categoryRe.FindStringSubmatchIndex(s); m != nil {
		p.Category = s[m[2]:m[3]]
		s = s[:m[0]]
	}
	if i := strings.Index(s, " @ "); i >= 0 {
		p.Location = strings.TrimSpace(s[i+3:])
		s = s[:i]
	}
	p.Name = strings.TrimSpace(s)
	return p, p.Name != ""
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body. Missing or invalid frontmatter leaves the whole
// content as body.
func splitFrontmatter(data []byte) (frontmatter, string) {
	const delim = "---"
	var fm frontmatter
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return fm, string(data)
	}
	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return fm, string(data)
	}
	if err := yaml.Unmarshal(rest[:idx], &fm); err != nil {
		return frontmatter{}, string(data)
	}
	body := strings.TrimLeft(string(rest[idx+1+len(delim):]), "\n\r")
	return fm, body
}
