package logging

import "time"

// Console lines carry milliseconds so paced API calls and retry backoffs can
// be told apart. Lines from today omit the date.
const (
	clockLayout = "15:04:05.000"
	dateLayout  = "2006-01-02 "
)

func formatTimestamp(ts time.Time) string {
	return formatTimestampAt(ts, time.Now())
}

func formatTimestampAt(ts, now time.Time) string {
	if ts.IsZero() {
		return ""
	}
	ts, now = ts.In(time.Local), now.In(time.Local)
	ty, tm, td := ts.Date()
	ny, nm, nd := now.Date()
	if ty == ny && tm == nm && td == nd {
		return ts.Format(clockLayout)
	}
	return ts.Format(dateLayout + clockLayout)
}
