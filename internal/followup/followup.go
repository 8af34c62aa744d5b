// Package followup derives the follow-up state of a company from its most
// recent communication, its cadence, and the ordered list of communication
// methods: whether it is overdue, whether it is due today, and which method
// should be used next and when.
//
// Everything here is a pure function of its inputs. The evaluation instant is
// passed in explicitly so results are deterministic.
package followup

import (
	"errors"
	"sort"
	"time"

	"github.com/tbourn/go-followup-backend/internal/domain"
)

var (
	// ErrNoCommunicationMethods is returned when the method list is empty and
	// no next method can be suggested. It is a configuration error.
	ErrNoCommunicationMethods = errors.New("no communication methods configured")

	// ErrUnknownPeriodicity is returned for a cadence outside the supported set.
	ErrUnknownPeriodicity = errors.New("unknown periodicity")
)

const day = 24 * time.Hour

// LastCommunication is the subset of the newest log entry the scheduler needs.
type LastCommunication struct {
	MethodID  string
	CreatedAt time.Time
}

// Next is the suggested next outreach.
type Next struct {
	Method domain.CommunicationMethod
	Date   time.Time
}

// Status is the derived follow-up state of one company.
type Status struct {
	IsOverdue  bool
	IsDueToday bool
	Next       Next
}

// ThresholdDays returns the number of days after the last communication at
// which a company becomes due.
func ThresholdDays(p domain.Periodicity) (int, error) {
	switch p {
	case domain.Weekly:
		return 7, nil
	case domain.Biweekly:
		return 14, nil
	case domain.Monthly:
		return 30, nil
	case domain.Quarterly:
		return 90, nil
	case domain.Yearly:
		return 365, nil
	}
	return 0, ErrUnknownPeriodicity
}

// Advance moves t forward by one cadence period. Weekly and biweekly add a
// fixed number of days; the others step calendar months and clamp to the last
// day of the target month (Jan 31 + 1 month = Feb 28/29).
func Advance(t time.Time, p domain.Periodicity) (time.Time, error) {
	switch p {
	case domain.Weekly:
		return t.AddDate(0, 0, 7), nil
	case domain.Biweekly:
		return t.AddDate(0, 0, 14), nil
	case domain.Monthly:
		return addMonthsClamped(t, 1), nil
	case domain.Quarterly:
		return addMonthsClamped(t, 3), nil
	case domain.Yearly:
		return addMonthsClamped(t, 12), nil
	}
	return time.Time{}, ErrUnknownPeriodicity
}

// DaysSince returns the number of whole days elapsed between last and now.
// A last communication in the future yields a negative count.
func DaysSince(last, now time.Time) int {
	d := now.Sub(last)
	n := int(d / day)
	if d < 0 && d%day != 0 {
		n-- // floor, not truncation
	}
	return n
}

// IsOverdue reports whether more whole days than the cadence allows have
// elapsed since last. A nil last communication is never overdue.
func IsOverdue(last *LastCommunication, p domain.Periodicity, now time.Time) (bool, error) {
	limit, err := ThresholdDays(p)
	if err != nil {
		return false, err
	}
	if last == nil {
		return false, nil
	}
	return DaysSince(last.CreatedAt, now) > limit, nil
}

// IsDueToday reports whether exactly the cadence's number of whole days has
// elapsed since last. A nil last communication is never due.
func IsDueToday(last *LastCommunication, p domain.Periodicity, now time.Time) (bool, error) {
	limit, err := ThresholdDays(p)
	if err != nil {
		return false, err
	}
	if last == nil {
		return false, nil
	}
	return DaysSince(last.CreatedAt, now) == limit, nil
}

// NextCommunication suggests the method and date of the next outreach.
//
// The method following the last one used (by sequence, wrapping around) is
// chosen; a last method that no longer exists wraps to the first method.
// Without a last communication the first method is suggested for now.
func NextCommunication(last *LastCommunication, methods []domain.CommunicationMethod, p domain.Periodicity, now time.Time) (Next, error) {
	if len(methods) == 0 {
		return Next{}, ErrNoCommunicationMethods
	}
	ordered := sortedBySequence(methods)

	if last == nil {
		if !p.Valid() {
			return Next{}, ErrUnknownPeriodicity
		}
		return Next{Method: ordered[0], Date: now}, nil
	}

	date, err := Advance(last.CreatedAt, p)
	if err != nil {
		return Next{}, err
	}

	idx := len(ordered) - 1
	for i, m := range ordered {
		if m.ID == last.MethodID {
			idx = i
			break
		}
	}
	return Next{Method: ordered[(idx+1)%len(ordered)], Date: date}, nil
}

// Evaluate computes the complete follow-up status in one call.
func Evaluate(last *LastCommunication, methods []domain.CommunicationMethod, p domain.Periodicity, now time.Time) (Status, error) {
	next, err := NextCommunication(last, methods, p, now)
	if err != nil {
		return Status{}, err
	}
	overdue, err := IsOverdue(last, p, now)
	if err != nil {
		return Status{}, err
	}
	due, err := IsDueToday(last, p, now)
	if err != nil {
		return Status{}, err
	}
	return Status{IsOverdue: overdue, IsDueToday: due, Next: next}, nil
}

func sortedBySequence(methods []domain.CommunicationMethod) []domain.CommunicationMethod {
	out := make([]domain.CommunicationMethod, len(methods))
	copy(out, methods)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}

func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(first.Year(), first.Month(), t.Location()); d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

func daysIn(y int, m time.Month, loc *time.Location) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, loc).Day()
}
