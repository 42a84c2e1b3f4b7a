// ABOUTME: Record types enumerated from and created in remote collections
// ABOUTME: Events and contacts carry only the fields needed for keys and re-creation
package sync

// EventTime mirrors the provider's start/end shape: either an all-day Date or
// a DateTime, kept in the provider's native string form.
type EventTime struct {
	Date     string
	DateTime string
	TimeZone string
}

// Value returns DateTime when set, otherwise Date.
func (t EventTime) Value() string {
	if t.DateTime != "" {
		return t.DateTime
	}
	return t.Date
}

// Event is a calendar record.
type Event struct {
	// ID is provider-internal and never copied on create.
	ID          string
	Summary     string
	Description string
	Location    string
	Start       EventTime
	End         EventTime
}

// Contact is a person record. Emails are normalized and in provider order.
type Contact struct {
	// ResourceName is provider-internal and never copied on create.
	ResourceName string
	Names        []string
	Emails       []string
}

// DisplayName returns the first name or "".
func (c Contact) DisplayName() string {
	if len(c.Names) == 0 {
		return ""
	}
	return c.Names[0]
}
