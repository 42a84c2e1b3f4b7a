// ABOUTME: Identity key derivation used for deduplication
// ABOUTME: Maps events and contacts to keys and tracks the per-run key set
package sync

import (
	"strings"
)

// KeyFunc derives the identity key of a record. An empty key means the
// record cannot be deduplicated and is never created.
type KeyFunc[R any] func(R) string

// IndexFunc derives every key under which a destination record is present.
type IndexFunc[R any] func(R) []string

// keyDelimiter separates event title and start time.
const keyDelimiter = "|"

// EventKey joins summary and start (DateTime, else Date) unnormalized. The
// key is never empty: an event with neither is keyed by the bare delimiter.
func EventKey(e Event) string {
	return e.Summary + keyDelimiter + e.Start.Value()
}

// ContactKey is the first normalized email address, or "".
func ContactKey(c Contact) string {
	for _, email := range c.Emails {
		if n := normalizeEmail(email); n != "" {
			return n
		}
	}
	return ""
}

// ContactIndexKeys returns every address of a contact, so a source contact
// matches a destination contact on any of its addresses.
func ContactIndexKeys(c Contact) []string {
	keys := make([]string, 0, len(c.Emails))
	for _, email := range c.Emails {
		if n := normalizeEmail(email); n != "" {
			keys = append(keys, n)
		}
	}
	return keys
}

// singleKey adapts a KeyFunc into an IndexFunc.
func singleKey[R any](key KeyFunc[R]) IndexFunc[R] {
	return func(r R) []string {
		return []string{key(r)}
	}
}

// normalizeEmail converts email to lowercase for comparison.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// keySet is owned by a single run and never shared.
type keySet map[string]struct{}

func newKeySet(capacity int) keySet {
	return make(keySet, capacity)
}

func (s keySet) add(key string) {
	s[key] = struct{}{}
}

func (s keySet) has(key string) bool {
	_, ok := s[key]
	return ok
}
