package period_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finnastats/internal/period"
)

type TestTimeProvider struct {
	CurrentTime time.Time
}

func (p *TestTimeProvider) Now(loc *time.Location) time.Time {
	return p.CurrentTime.In(loc)
}

func TestParse(t *testing.T) {
	testCases := []struct {
		name        string
		value       string
		param       string
		label       string
		expectError bool
	}{
		{name: "month", value: "2024-03-01,2024-03-31", param: "2024-03-01,2024-03-31", label: "1.3.2024 - 31.3.2024"},
		{name: "spaces trimmed", value: " 2023-12-24 , 2024-01-06 ", param: "2023-12-24,2024-01-06", label: "24.12.2023 - 6.1.2024"},
		{name: "single day", value: "2024-02-29,2024-02-29", param: "2024-02-29,2024-02-29", label: "29.2.2024 - 29.2.2024"},
		{name: "missing end", value: "2024-03-01", expectError: true},
		{name: "bad date", value: "2024-13-01,2024-13-31", expectError: true},
		{name: "reversed", value: "2024-03-31,2024-03-01", expectError: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := period.Parse(tc.value)
			if tc.expectError {
				assert.ErrorIs(t, err, period.ErrInvalidPeriod)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.param, p.Param())
			assert.Equal(t, tc.label, p.Label())
		})
	}
}

func TestResolve(t *testing.T) {
	clock := &TestTimeProvider{CurrentTime: time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)}

	p, err := period.Resolve("last-month", clock)
	require.NoError(t, err)
	assert.Equal(t, "2024-02-01,2024-02-29", p.Param())

	p, err = period.Resolve("LAST-YEAR", clock)
	require.NoError(t, err)
	assert.Equal(t, "2023-01-01,2023-12-31", p.Param())

	clock.CurrentTime = time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	p, err = period.Resolve("last-month", clock)
	require.NoError(t, err)
	assert.Equal(t, "2023-12-01,2023-12-31", p.Param())

	p, err = period.Resolve("2024-01-01,2024-01-02", nil)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01,2024-01-02", p.String())
}
