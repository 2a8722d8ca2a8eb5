package stats

import (
	"time"

	"github.com/uaifestas/festas-go/internal/apperr"
	"github.com/uaifestas/festas-go/internal/store"
)

const (
	DefaultDays = 30
	dateLayout  = "2006-01-02"
)

// ParseWindow turns the dashboard's start, end and days parameters into
// an inclusive window. Dates may be YYYY-MM-DD or RFC 3339; a date-only
// end covers its whole day. Missing bounds fall back to the last days
// days ending at now.
func ParseWindow(start, end string, days int, now time.Time) (store.Window, error) {
	if days == 0 {
		days = DefaultDays
	}
	if days < 0 {
		return store.Window{}, apperr.Validation("days", "must be positive")
	}

	w := store.Window{End: now}
	if end != "" {
		t, dateOnly, err := parseBound(end)
		if err != nil {
			return store.Window{}, apperr.Validation("end", "must be YYYY-MM-DD or RFC 3339")
		}
		if dateOnly {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		w.End = t
	}

	w.Start = w.End.AddDate(0, 0, -days)
	if start != "" {
		t, _, err := parseBound(start)
		if err != nil {
			return store.Window{}, apperr.Validation("start", "must be YYYY-MM-DD or RFC 3339")
		}
		w.Start = t
	}

	if w.Start.After(w.End) {
		return store.Window{}, apperr.Validation("start", "must not be after end")
	}
	return w, nil
}

func parseBound(s string) (time.Time, bool, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	return t, false, err
}
