package rules

import (
	"fmt"
	"time"
)

// DeadlineStatus is the discrete urgency bucket for a due date.
type DeadlineStatus string

const (
	DeadlineCompleted      DeadlineStatus = "completed"
	DeadlineLate           DeadlineStatus = "late"
	DeadlineUnderHour      DeadlineStatus = "under_hour"
	DeadlineUnderDay       DeadlineStatus = "under_day"
	DeadlineUnderThreeDays DeadlineStatus = "under_three_days"
	DeadlineUnderWeek      DeadlineStatus = "under_week"
	DeadlineLater          DeadlineStatus = "later"
)

// Deadline couples the bucket with its French display label.
type Deadline struct {
	Status DeadlineStatus `json:"status"`
	Label  string         `json:"label"`
	Urgent bool           `json:"urgent"`
}

// ClassifyDeadline maps a due date to an urgency bucket and display label.
// Total over all inputs: past, future and exactly-now due dates are all
// classified, and a completed item is always TERMINÉ whatever the date.
func ClassifyDeadline(dueDate time.Time, completed bool, now time.Time) Deadline {
	if completed {
		return Deadline{Status: DeadlineCompleted, Label: "TERMINÉ"}
	}

	remaining := dueDate.Sub(now)
	switch {
	case remaining < 0:
		return Deadline{Status: DeadlineLate, Label: "EN RETARD", Urgent: true}
	case remaining < time.Hour:
		return Deadline{Status: DeadlineUnderHour, Label: "MOINS D'UNE HEURE", Urgent: true}
	case remaining < 24*time.Hour:
		hours := int(remaining / time.Hour)
		return Deadline{Status: DeadlineUnderDay, Label: fmt.Sprintf("DANS %d %s", hours, pluralize(hours, "HEURE")), Urgent: true}
	case remaining < 3*24*time.Hour:
		days := daysCeil(remaining)
		return Deadline{Status: DeadlineUnderThreeDays, Label: fmt.Sprintf("DANS %d %s", days, pluralize(days, "JOUR")), Urgent: true}
	case remaining < 7*24*time.Hour:
		days := daysCeil(remaining)
		return Deadline{Status: DeadlineUnderWeek, Label: fmt.Sprintf("DANS %d %s", days, pluralize(days, "JOUR"))}
	default:
		return Deadline{Status: DeadlineLater, Label: "POUR LE " + dueDate.Format("02/01/2006")}
	}
}

func daysCeil(d time.Duration) int {
	days := int(d / (24 * time.Hour))
	if d%(24*time.Hour) != 0 {
		days++
	}
	return days
}

func pluralize(n int, word string) string {
	if n > 1 {
		return word + "S"
	}
	return word
}
