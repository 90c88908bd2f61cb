package ics

import (
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/eventsync/internal/domain"
)

func ptr[T any](v T) *T { return &v }

func TestRender(t *testing.T) {
	t.Parallel()

	stamp := time.Date(2025, 11, 15, 12, 0, 0, 0, time.UTC)
	events := []domain.CanonicalEvent{
		{
			CanonicalUID: "b6886cefa549",
			Title:        "Blockchain Meetup!",
			Description:  ptr("https://lu.ma/abc123"),
			LocationRaw:  "Zo House SF",
			Lat:          ptr(37.7817),
			Lng:          ptr(-122.4012),
			StartsAt:     time.Date(2025, 11, 15, 18, 0, 0, 0, time.UTC),
			EventVersion: 2,
		},
		{
			CanonicalUID: "0123456789ab",
			Title:        "Design Critique",
			LocationRaw:  "https://lu.ma/crit",
			StartsAt:     time.Date(2025, 11, 20, 17, 30, 0, 0, time.UTC),
			EventVersion: 1,
		},
	}

	out := Render(events, stamp)
	assert.Contains(t, out, "METHOD:PUBLISH")

	cal, err := ical.ParseCalendar(strings.NewReader(out))
	require.NoError(t, err)

	vevents := cal.Events()
	require.Len(t, vevents, 2)

	first := vevents[0]
	assert.Equal(t, "b6886cefa549@eventsync", first.Id())
	assert.Equal(t, "Blockchain Meetup!", first.GetProperty(ical.ComponentPropertySummary).Value)
	assert.Equal(t, "Zo House SF", first.GetProperty(ical.ComponentPropertyLocation).Value)
	assert.Equal(t, "https://lu.ma/abc123", first.GetProperty(ical.ComponentPropertyDescription).Value)
	assert.Equal(t, "37.7817;-122.4012", first.GetProperty(ical.ComponentProperty("GEO")).Value)
	assert.Equal(t, "1", first.GetProperty(ical.ComponentPropertySequence).Value)

	start, err := first.GetStartAt()
	require.NoError(t, err)
	assert.True(t, start.Equal(events[0].StartsAt))

	second := vevents[1]
	assert.Equal(t, "0123456789ab@eventsync", second.Id())
	assert.Nil(t, second.GetProperty(ical.ComponentPropertyDescription))
	assert.Nil(t, second.GetProperty(ical.ComponentProperty("GEO")))
	assert.Equal(t, "0", second.GetProperty(ical.ComponentPropertySequence).Value)
}

func TestRender_Empty(t *testing.T) {
	t.Parallel()

	out := Render(nil, time.Now())
	cal, err := ical.ParseCalendar(strings.NewReader(out))
	require.NoError(t, err)
	assert.Empty(t, cal.Events())
}
