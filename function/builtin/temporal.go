package builtin

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/flowquery-dev/flowquery/value"
)

// Clock backs the zero-argument "now" forms of datetime()/date()/time();
// swapping it for clock.NewMock in tests makes temporal scenarios
// deterministic, per SPEC_FULL.md §4's clock wiring.
var Clock clock.Clock = clock.New()

func init() {
	registerTemporalFuncs()
}

func registerTemporalFuncs() {
	scalar("datetime", variadic(0), false, "datetime", func(a []any) (any, error) {
		if len(a) == 0 {
			return Clock.Now().UTC(), nil
		}
		return parseTemporal(a[0], time.RFC3339)
	})
	scalar("localdatetime", variadic(0), false, "localdatetime", func(a []any) (any, error) {
		if len(a) == 0 {
			return Clock.Now(), nil
		}
		return parseTemporal(a[0], "2006-01-02T15:04:05")
	})
	scalar("date", variadic(0), false, "date", func(a []any) (any, error) {
		if len(a) == 0 {
			return Clock.Now().UTC().Truncate(24 * time.Hour), nil
		}
		return parseTemporal(a[0], "2006-01-02")
	})
	scalar("time", variadic(0), false, "time", func(a []any) (any, error) {
		if len(a) == 0 {
			return Clock.Now().UTC(), nil
		}
		return parseTemporal(a[0], "15:04:05.999999999")
	})
	scalar("localtime", variadic(0), false, "localtime", func(a []any) (any, error) {
		if len(a) == 0 {
			return Clock.Now(), nil
		}
		return parseTemporal(a[0], "15:04:05.999999999")
	})
	scalar("duration", exact(1), false, "duration", func(a []any) (any, error) {
		switch v := a[0].(type) {
		case string:
			return parseISODuration(v)
		case map[string]any:
			return durationFromComponents(v), nil
		default:
			return nil, fmt.Errorf("duration: unsupported input %T", v)
		}
	})
}

func parseTemporal(arg any, layout string) (any, error) {
	switch v := arg.(type) {
	case map[string]any:
		return temporalFromComponents(v), nil
	case string:
		t, err := time.Parse(layout, v)
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, fmt.Errorf("temporal literal: unsupported input %T", v)
	}
}

func temporalFromComponents(m map[string]any) time.Time {
	get := func(k string, def int) int {
		if v, ok := m[k]; ok {
			if n, ok := v.(int64); ok {
				return int(n)
			}
			if n, ok := v.(int); ok {
				return n
			}
			if n, ok := v.(float64); ok {
				return int(n)
			}
		}
		return def
	}
	return time.Date(get("year", 0), time.Month(get("month", 1)), get("day", 1),
		get("hour", 0), get("minute", 0), get("second", 0), get("nanosecond", 0), time.UTC)
}

// parseISODuration parses P1Y2M3DT4H5M6S, PT2H30M, P2W per spec.md §6.
func parseISODuration(s string) (value.Duration, error) {
	var d value.Duration
	if len(s) == 0 || s[0] != 'P' {
		return d, fmt.Errorf("duration: expected ISO-8601 duration, got %q", s)
	}
	i := 1
	inTime := false
	num := 0
	haveNum := false
	for i < len(s) {
		c := s[i]
		switch {
		case c == 'T':
			inTime = true
			i++
		case c >= '0' && c <= '9':
			num = num*10 + int(c-'0')
			haveNum = true
			i++
		default:
			if !haveNum {
				return d, fmt.Errorf("duration: malformed component at %d in %q", i, s)
			}
			switch c {
			case 'Y':
				d.Years = num
			case 'M':
				if inTime {
					d.Minutes = num
				} else {
					d.Months = num
				}
			case 'W':
				d.Weeks = num
			case 'D':
				d.Days = num
			case 'H':
				d.Hours = num
			case 'S':
				d.Seconds = num
			default:
				return d, fmt.Errorf("duration: unknown unit %q in %q", c, s)
			}
			num = 0
			haveNum = false
			i++
		}
	}
	return d, nil
}

func durationFromComponents(m map[string]any) value.Duration {
	geti := func(k string) int {
		switch v := m[k].(type) {
		case int64:
			return int(v)
		case int:
			return v
		case float64:
			return int(v)
		default:
			return 0
		}
	}
	return value.Duration{
		Years: geti("years"), Months: geti("months"), Weeks: geti("weeks"), Days: geti("days"),
		Hours: geti("hours"), Minutes: geti("minutes"), Seconds: geti("seconds"), Nanos: geti("nanoseconds"),
	}
}
