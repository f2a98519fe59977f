// Package period parses reporting periods for the analytics API.
package period

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Named periods accepted in place of an explicit range.
const (
	LastMonth = "last-month"
	LastYear  = "last-year"
)

// ErrInvalidPeriod is wrapped by every parse failure.
var ErrInvalidPeriod = errors.New("invalid period")

// TimeProvider supplies the current time.
type TimeProvider interface {
	Now(loc *time.Location) time.Time
}

// DefaultTimeProvider uses the system clock.
type DefaultTimeProvider struct{}

func (p *DefaultTimeProvider) Now(loc *time.Location) time.Time {
	return time.Now().In(loc)
}

// Period is an inclusive range of calendar days.
type Period struct {
	From time.Time
	To   time.Time
}

// Parse reads a "YYYY-MM-DD,YYYY-MM-DD" range.
func Parse(value string) (Period, error) {
	start, end, ok := strings.Cut(value, ",")
	if !ok {
		return Period{}, fmt.Errorf("%w: expected YYYY-MM-DD,YYYY-MM-DD, got %q", ErrInvalidPeriod, value)
	}

	from, err := time.ParseInLocation(dateLayout, strings.TrimSpace(start), time.UTC)
	if err != nil {
		return Period{}, fmt.Errorf("%w: start date: %v", ErrInvalidPeriod, err)
	}
	to, err := time.ParseInLocation(dateLayout, strings.TrimSpace(end), time.UTC)
	if err != nil {
		return Period{}, fmt.Errorf("%w: end date: %v", ErrInvalidPeriod, err)
	}
	if from.After(to) {
		return Period{}, fmt.Errorf("%w: start %s is after end %s", ErrInvalidPeriod, from.Format(dateLayout), to.Format(dateLayout))
	}

	return Period{From: from, To: to}, nil
}

// Resolve parses value, also accepting the named periods, which are
// computed from the provider's current UTC date. A nil provider uses the
// system clock.
func Resolve(value string, provider TimeProvider) (Period, error) {
	if provider == nil {
		provider = &DefaultTimeProvider{}
	}

	switch strings.ToLower(strings.TrimSpace(value)) {
	case LastMonth:
		now := provider.Now(time.UTC)
		firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		return Period{From: firstOfMonth.AddDate(0, -1, 0), To: firstOfMonth.AddDate(0, 0, -1)}, nil
	case LastYear:
		year := provider.Now(time.UTC).Year() - 1
		return Period{
			From: time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
			To:   time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC),
		}, nil
	}

	return Parse(value)
}

// Param renders the period as the analytics API date parameter.
func (p Period) Param() string {
	return p.From.Format(dateLayout) + "," + p.To.Format(dateLayout)
}

// Label renders the period for report headings, e.g. "1.3.2024 - 31.3.2024".
func (p Period) Label() string {
	return fmt.Sprintf("%d.%d.%d - %d.%d.%d",
		p.From.Day(), p.From.Month(), p.From.Year(),
		p.To.Day(), p.To.Month(), p.To.Year())
}

func (p Period) String() string {
	return p.Param()
}
