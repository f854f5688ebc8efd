package repository

import (
	"strings"
	"testing"
)

func TestQualifyColumns(t *testing.T) {
	got := qualifyColumns("id, name, created_at", "t")
	want := "t.id, t.name, t.created_at"
	if got != want {
		t.Fatalf("qualifyColumns = %q, want %q", got, want)
	}
}

// Columns ending in "id" (customer_id, created_by is fine, but the suffix
// cases) must come through intact; a naive string replace mangled them once.
func TestQualifyColumnsTicketSelectList(t *testing.T) {
	got := qualifyColumns(ticketColumns, "t")

	for _, want := range []string{"t.id", "t.customer_id", "t.ticket_number", "t.version", "t.updated_at"} {
		if !strings.Contains(got, want) {
			t.Errorf("select list missing %q: %s", want, got)
		}
	}
	if strings.Contains(got, "customer_t.id") || strings.Contains(got, "t.t.") {
		t.Errorf("select list is malformed: %s", got)
	}
}
