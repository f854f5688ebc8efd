package domain

import "time"

// TicketAssignment links a ticket to a responsible user. Removal is soft:
// the link stays with Active=false and a removal timestamp.
type TicketAssignment struct {
	ID         string
	TicketID   string
	UserID     string
	AssignedBy string
	AssignedAt time.Time
	Active     bool
	RemovedAt  *time.Time
}

// PrimaryAssignee returns the user id of the most recently assigned active
// link, or nil when nobody is assigned.
func PrimaryAssignee(assignments []TicketAssignment) *string {
	var latest *TicketAssignment
	for i := range assignments {
		a := &assignments[i]
		if !a.Active {
			continue
		}
		if latest == nil || a.AssignedAt.After(latest.AssignedAt) {
			latest = a
		}
	}
	if latest == nil {
		return nil
	}
	return &latest.UserID
}
