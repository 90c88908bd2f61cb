package domain

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
)

// UIDLength is the number of hex characters kept from the digest.
const UIDLength = 12

var uidPattern = regexp.MustCompile(`^[0-9a-f]{12}$`)

// identity is the normalized triple that is hashed. Field order is the
// lexicographic key order, which keeps the serialized form stable.
type identity struct {
	Location string `json:"location"`
	StartsAt string `json:"startsAt"`
	Title    string `json:"title"`
}

// Fingerprint returns the canonical UID of an event. Events whose normalized
// title, location and start instant are equal always share a UID.
func Fingerprint(e ParsedEvent) (string, error) {
	startsAt, err := ParseTimestamp(e.StartsAt)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}

	id := identity{
		Location: NormalizeLocation(e.Location),
		StartsAt: FormatTimestamp(startsAt),
		Title:    NormalizeTitle(e.Title),
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(id); err != nil {
		return "", fmt.Errorf("fingerprint: encode identity: %w", err)
	}

	sum := sha256.Sum256(bytes.TrimRight(buf.Bytes(), "\n"))
	return hex.EncodeToString(sum[:])[:UIDLength], nil
}

// IsValidUID reports whether s is exactly 12 lowercase hex characters.
func IsValidUID(s string) bool {
	return uidPattern.MatchString(s)
}

// FingerprintGroup is the set of events in a batch that share one UID.
// Event is the first one encountered.
type FingerprintGroup struct {
	UID   string
	Event ParsedEvent
	Count int
}

// DedupByFingerprint groups a batch by canonical UID, keeping groups in
// first-seen order. Events whose UID cannot be computed are returned
// separately with their errors.
func DedupByFingerprint(events []ParsedEvent) ([]FingerprintGroup, []error) {
	groups := make([]FingerprintGroup, 0, len(events))
	index := make(map[string]int, len(events))
	var errs []error

	for _, e := range events {
		uid, err := Fingerprint(e)
		if err != nil {
			errs = append(errs, fmt.Errorf("%q: %w", e.Title, err))
			continue
		}
		if i, ok := index[uid]; ok {
			groups[i].Count++
			continue
		}
		index[uid] = len(groups)
		groups = append(groups, FingerprintGroup{UID: uid, Event: e, Count: 1})
	}

	return groups, errs
}
