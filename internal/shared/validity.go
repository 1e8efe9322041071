package shared

import "time"

// NeverEnds is the sentinel end of an open validity interval.
var NeverEnds = time.Date(9999, time.January, 1, 0, 0, 0, 0, time.UTC)

// Validity is a right-open [StartDate, EndDate) interval used for soft
// deletion of long-lived entities.
type Validity struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// NewValidity opens an interval starting now.
func NewValidity(now time.Time) Validity {
	return Validity{StartDate: now.UTC(), EndDate: NeverEnds}
}

// ActiveAt reports whether the interval covers t.
func (v Validity) ActiveAt(t time.Time) bool {
	return !t.Before(v.StartDate) && t.Before(v.EndDate)
}

// Retire closes the interval at t.
func (v *Validity) Retire(t time.Time) {
	v.EndDate = t.UTC()
}
