package ics

import "strings"

// Line is one logical ICS property line after unfolding.
type Line struct {
	Name   string
	Params map[string]string
	Value  string
}

// Param returns the named parameter value, or "" when absent.
func (l Line) Param(name string) string {
	return l.Params[strings.ToUpper(name)]
}

const urlMarker = "https://"

// DecodeLines splits raw ICS text into logical property lines.
//
// Continuation lines start with a space or tab. Folding normally inserts a
// single space at the join; when either side contains a URL nothing is
// inserted, so links split across physical lines survive intact.
func DecodeLines(raw string) []Line {
	physical := strings.Split(raw, "\n")
	lines := make([]Line, 0, len(physical))

	var pending string
	var hasPending bool

	flush := func() {
		if !hasPending {
			return
		}
		if l, ok := parseLine(pending); ok {
			lines = append(lines, l)
		}
		pending, hasPending = "", false
	}

	for _, p := range physical {
		p = strings.TrimSuffix(p, "\r")

		if p != "" && (p[0] == ' ' || p[0] == '\t') {
			cont := p[1:]
			if !hasPending {
				pending, hasPending = cont, true
				continue
			}
			if strings.Contains(pending, urlMarker) || strings.Contains(cont, urlMarker) {
				pending += cont
			} else {
				pending += " " + cont
			}
			continue
		}

		flush()
		if p == "" {
			continue
		}
		pending, hasPending = p, true
	}
	flush()

	return lines
}

// parseLine splits "NAME;PARAM=x;P2=\"a:b\":value". Lines without an
// unquoted colon are rejected.
func parseLine(s string) (Line, bool) {
	colon := -1
	inQuotes := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuotes = !inQuotes
		case ':':
			if !inQuotes {
				colon = i
			}
		}
		if colon >= 0 {
			break
		}
	}
	if colon < 0 {
		return Line{}, false
	}

	head, value := s[:colon], s[colon+1:]
	parts := strings.Split(head, ";")

	l := Line{
		Name:  strings.ToUpper(strings.TrimSpace(parts[0])),
		Value: value,
	}
	if l.Name == "" {
		return Line{}, false
	}

	for _, p := range parts[1:] {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			continue
		}
		if l.Params == nil {
			l.Params = make(map[string]string, len(parts)-1)
		}
		l.Params[strings.ToUpper(strings.TrimSpace(k))] = strings.Trim(v, `"`)
	}

	return l, true
}
