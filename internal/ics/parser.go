package ics

import (
	"errors"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/heartmarshall/eventsync/internal/domain"
)

// ErrNotCalendar is returned for documents that are not iCalendar text.
var ErrNotCalendar = errors.New("not an iCalendar document")

var (
	descriptionURL     = regexp.MustCompile(`https?://[^\s<>"\\]+`)
	descriptionAddress = regexp.MustCompile(`(?im)^[ \t]*address:[ \t]*(.+?)[ \t]*$`)

	textUnescaper = strings.NewReplacer(`\\`, `\`, `\n`, "\n", `\N`, "\n", `\,`, ",", `\;`, ";")
)

const (
	layoutUTC      = "20060102T150405Z"
	layoutLocal    = "20060102T150405"
	layoutLocalMin = "20060102T1504"
	layoutDate     = "20060102"
)

// Parser extracts upcoming events from ICS documents.
type Parser struct {
	log *slog.Logger
	now func() time.Time
	loc *time.Location
}

// Option configures a Parser.
type Option func(*Parser)

// WithClock overrides the clock used for the upcoming-events cutoff.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) { p.now = now }
}

// WithLocation sets the zone for floating times and for "today".
func WithLocation(loc *time.Location) Option {
	return func(p *Parser) {
		if loc != nil {
			p.loc = loc
		}
	}
}

func NewParser(logger *slog.Logger, opts ...Option) *Parser {
	p := &Parser{
		log: logger.With("adapter", "ics"),
		now: time.Now,
		loc: time.Local,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// eventBuilder accumulates one VEVENT block.
type eventBuilder struct {
	title       string
	location    string
	start       time.Time
	hasStart    bool
	timezone    string
	sourceURL   string
	address     string
	latitude    string
	longitude   string
	rrule       string
	nestedDepth int
}

type admitted struct {
	event domain.ParsedEvent
	start time.Time
}

// Parse returns the events of raw that start on or after local midnight
// today, sorted by start time.
func (p *Parser) Parse(raw string) ([]domain.ParsedEvent, error) {
	if !strings.Contains(raw, "BEGIN:VCALENDAR") {
		return nil, ErrNotCalendar
	}

	midnight := p.midnight()
	var (
		out []admitted
		cur *eventBuilder
	)

	for _, line := range DecodeLines(raw) {
		switch {
		case line.Name == "BEGIN" && strings.EqualFold(line.Value, "VEVENT"):
			cur = &eventBuilder{}
			continue
		case line.Name == "END" && strings.EqualFold(line.Value, "VEVENT"):
			if cur != nil {
				if a, ok := p.finish(cur, midnight); ok {
					out = append(out, a)
				}
			}
			cur = nil
			continue
		}
		if cur == nil {
			continue
		}

		switch line.Name {
		case "BEGIN":
			cur.nestedDepth++
			continue
		case "END":
			if cur.nestedDepth > 0 {
				cur.nestedDepth--
			}
			continue
		}
		if cur.nestedDepth > 0 {
			continue
		}

		p.apply(cur, line)
	}

	slices.SortStableFunc(out, func(a, b admitted) int {
		return a.start.Compare(b.start)
	})

	events := make([]domain.ParsedEvent, len(out))
	for i, a := range out {
		events[i] = a.event
	}
	return events, nil
}

func (p *Parser) apply(b *eventBuilder, line Line) {
	switch line.Name {
	case "SUMMARY":
		b.title = strings.TrimSpace(unescapeText(line.Value))
	case "LOCATION":
		b.location = line.Value
	case "DTSTART":
		start, tz, err := p.parseStart(line)
		if err != nil {
			p.log.Warn("skip unparseable DTSTART",
				slog.String("value", line.Value),
				slog.String("error", err.Error()),
			)
			return
		}
		b.start, b.hasStart, b.timezone = start, true, tz
	case "DESCRIPTION":
		text := unescapeText(line.Value)
		if u := descriptionURL.FindString(text); u != "" {
			b.sourceURL = cleanURL(u)
		}
		if m := descriptionAddress.FindStringSubmatch(text); m != nil {
			b.address = m[1]
		}
	case "GEO":
		lat, lng, ok := strings.Cut(line.Value, ";")
		lat, lng = strings.TrimSpace(lat), strings.TrimSpace(lng)
		if ok && lat != "" && lng != "" {
			b.latitude, b.longitude = lat, lng
		}
	case "RRULE":
		b.rrule = line.Value
	}
}

func (p *Parser) finish(b *eventBuilder, midnight time.Time) (admitted, bool) {
	if b.address != "" && (b.location == "" || strings.HasPrefix(strings.ToLower(b.location), "http")) {
		b.location = b.address
	}
	if !b.hasStart || b.title == "" || b.location == "" {
		return admitted{}, false
	}

	start := b.start
	if start.Before(midnight) && b.rrule != "" {
		next, err := nextOccurrence(b.rrule, start, midnight)
		if err != nil {
			p.log.Warn("skip unparseable RRULE",
				slog.String("title", b.title),
				slog.String("rrule", b.rrule),
				slog.String("error", err.Error()),
			)
			return admitted{}, false
		}
		start = next
	}
	if start.IsZero() || start.Before(midnight) {
		return admitted{}, false
	}

	return admitted{
		event: domain.ParsedEvent{
			Title:     b.title,
			StartsAt:  domain.FormatTimestamp(start),
			Location:  b.location,
			Latitude:  b.latitude,
			Longitude: b.longitude,
			SourceURL: b.sourceURL,
			Timezone:  b.timezone,
		},
		start: start,
	}, true
}

// parseStart returns the instant and, when a loadable TZID was given, its
// zone name.
func (p *Parser) parseStart(line Line) (time.Time, string, error) {
	v := strings.TrimSpace(line.Value)
	if strings.HasSuffix(v, "Z") {
		t, err := time.Parse(layoutUTC, v)
		return t, "", err
	}

	loc, tz := p.loc, ""
	if id := line.Param("TZID"); id != "" {
		zone, err := time.LoadLocation(id)
		if err != nil {
			p.log.Warn("unknown TZID, using local zone", slog.String("tzid", id))
		} else {
			loc, tz = zone, id
		}
	}

	var (
		t   time.Time
		err error
	)
	for _, layout := range []string{layoutLocal, layoutLocalMin, layoutDate} {
		if len(v) != len(layout) {
			continue
		}
		if t, err = time.ParseInLocation(layout, v, loc); err == nil {
			return t, tz, nil
		}
	}
	if err == nil {
		err = errors.New("unrecognized date-time format")
	}
	return time.Time{}, "", err
}

func (p *Parser) midnight() time.Time {
	n := p.now().In(p.loc)
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, p.loc)
}

// nextOccurrence returns the first occurrence of rule at or after from, or
// the zero time when the rule is exhausted.
func nextOccurrence(rule string, dtstart, from time.Time) (time.Time, error) {
	r, err := rrule.StrToRRule(rule)
	if err != nil {
		return time.Time{}, err
	}
	r.DTStart(dtstart)
	return r.After(from, true), nil
}

func unescapeText(s string) string {
	return textUnescaper.Replace(s)
}

func cleanURL(u string) string {
	return strings.TrimRight(u, `\.,;:!?)]'"`)
}
