package service

import (
	"time"

	"github.com/spec-kit/field-service/internal/domain"
)

// AddBusinessDays advances from by n business days, skipping Saturdays and
// Sundays. No holiday calendar is applied.
func AddBusinessDays(from time.Time, n int) time.Time {
	t := from
	for n > 0 {
		t = t.AddDate(0, 0, 1)
		if wd := t.Weekday(); wd != time.Saturday && wd != time.Sunday {
			n--
		}
	}
	return t
}

// BusinessDaysFor returns the completion window for a priority.
func BusinessDaysFor(priority domain.TicketPriority) int {
	switch priority {
	case domain.TicketPriorityCritical:
		return 1
	case domain.TicketPriorityHigh:
		return 3
	case domain.TicketPriorityLow:
		return 14
	default:
		return 7
	}
}

// DefaultExpectedCompletion computes the due date applied when a ticket is
// created without an explicit expected completion date.
func DefaultExpectedCompletion(priority domain.TicketPriority, from time.Time) time.Time {
	return AddBusinessDays(from, BusinessDaysFor(priority))
}
