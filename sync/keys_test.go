package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventKey(t *testing.T) {
	tests := []struct {
		name     string
		event    Event
		expected string
	}{
		{
			name:     "timed event",
			event:    Event{Summary: "Standup", Start: EventTime{DateTime: "2024-01-01T10:00:00Z"}},
			expected: "Standup|2024-01-01T10:00:00Z",
		},
		{
			name:     "all-day event uses date",
			event:    Event{Summary: "Offsite", Start: EventTime{Date: "2024-03-04"}},
			expected: "Offsite|2024-03-04",
		},
		{
			name:     "datetime wins over date",
			event:    Event{Summary: "Mixed", Start: EventTime{Date: "2024-03-04", DateTime: "2024-03-04T09:00:00Z"}},
			expected: "Mixed|2024-03-04T09:00:00Z",
		},
		{
			name:     "summary is not normalized",
			event:    Event{Summary: " standup ", Start: EventTime{DateTime: "t"}},
			expected: " standup |t",
		},
		{
			name:     "untitled event keeps start",
			event:    Event{Start: EventTime{Date: "2024-03-04"}},
			expected: "|2024-03-04",
		},
		{
			name:     "no summary and no start",
			event:    Event{Description: "orphan"},
			expected: "|",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, EventKey(tt.event))
		})
	}
}

func TestContactKey(t *testing.T) {
	assert.Equal(t, "alice@example.com", ContactKey(contact("Alice", "Alice@Example.com", "alt@example.com")))
	assert.Equal(t, "bob@example.com", ContactKey(contact("Bob", "  ", " BOB@example.com ")))
	assert.Equal(t, "", ContactKey(contact("Nobody")))
}

func TestContactIndexKeys(t *testing.T) {
	keys := ContactIndexKeys(contact("Alice", "Alice@Example.com", "", "alt@example.com"))
	assert.Equal(t, []string{"alice@example.com", "alt@example.com"}, keys)
	assert.Empty(t, ContactIndexKeys(contact("Nobody")))
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Alice@Example.com", "alice@example.com"},
		{"alice.smith@example.com", "alice.smith@example.com"},
		{"ALICE@EXAMPLE.COM", "alice@example.com"},
		{"  padded@example.com\t", "padded@example.com"},
	}

	for _, tt := range tests {
		result := normalizeEmail(tt.input)
		if result != tt.expected {
			t.Errorf("normalizeEmail(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}
