package ics

import (
	"strconv"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/heartmarshall/eventsync/internal/domain"
)

const (
	productID = "-//eventsync//canonical events//EN"
	uidSuffix = "@eventsync"
)

// Render builds a PUBLISH calendar with one VEVENT per canonical event.
// The VEVENT UID is derived from the canonical UID so re-exports update
// subscribers in place rather than duplicating entries.
func Render(events []domain.CanonicalEvent, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)

	for _, e := range events {
		ve := cal.AddEvent(e.CanonicalUID + uidSuffix)
		ve.SetDtStampTime(stamp.UTC())
		ve.SetStartAt(e.StartsAt.UTC())
		ve.SetSummary(e.Title)
		ve.SetLocation(e.LocationRaw)
		if e.Description != nil && *e.Description != "" {
			ve.SetDescription(*e.Description)
			ve.SetURL(*e.Description)
		}
		if e.HasCoordinates() {
			ve.SetProperty(ical.ComponentProperty("GEO"), formatCoord(*e.Lat)+";"+formatCoord(*e.Lng))
		}
		if !e.CreatedAt.IsZero() {
			ve.SetCreatedTime(e.CreatedAt.UTC())
		}
		if !e.UpdatedAt.IsZero() {
			ve.SetModifiedAt(e.UpdatedAt.UTC())
		}
		ve.SetProperty(ical.ComponentPropertySequence, strconv.Itoa(max(e.EventVersion-1, 0)))
	}

	return cal.Serialize()
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
