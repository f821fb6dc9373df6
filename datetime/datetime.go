package datetime

// Run date resolution and the day-offset time arithmetic used by the netCDF time variable.
import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"regexp"
	"time"
)

const (
	DateFormat          = "2006-01-02"
	TimeFormatNoZone    = "2006-01-02T15:04:05" // yyyy-MM-ddThh:mm:ss without designator.
	LoggerTimeFormat    = "2006.01.02-15:04:05" // environment logger reading timestamps.
	GeostreamZoneSuffix = "-07:00"              // literal; not an offset computation.
	midnight            = "T00:00:00"
	secondsPerDay       = 86400.0
)

// TimeUnits is the CF units string of the netCDF time variable.
const TimeUnits = "days since 1970-01-01 00:00:00"

var ErrDateResolution = errors.New("unable to determine date to use as part of the output file names. Try the --override_date command line flag")

// ErrDayOffset reports a time value that is not a usable day count (NaN, fill value, overflow).
var ErrDayOffset = errors.New("day offset out of range")

// maxDayOffset is the largest day count a time.Duration can hold.
const maxDayOffset = float64(math.MaxInt64) / (secondsPerDay * 1e9)

var leadingDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

var epoch = time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)

// RunDate identifies the outputs of one run.
type RunDate struct {
	Date      string // yyyy-MM-dd
	Timestamp string // full ISO-like timestamp
}

// ResolveRunDate picks the date in increasing priority: supplied timestamp, else the first file name,
// then the override unconditionally.
func ResolveRunDate(files []string, suppliedTimestamp, overrideDate string) (RunDate, error) {
	var rd RunDate
	if suppliedTimestamp != "" {
		rd.Timestamp = suppliedTimestamp
		rd.Date = suppliedTimestamp
		if len(suppliedTimestamp) > len(DateFormat) {
			rd.Date = suppliedTimestamp[0:len(DateFormat)]
		}
	} else if len(files) > 0 {
		if match := leadingDate.FindString(filepath.Base(files[0])); match != "" {
			rd.Date = match
			rd.Timestamp = match + midnight
		}
	}
	if overrideDate != "" {
		rd.Date = overrideDate
		rd.Timestamp = overrideDate + midnight
	}
	if rd.Date == "" || rd.Timestamp == "" {
		return RunDate{}, ErrDateResolution
	}
	return rd, nil
}

// DayOffsetToTime adds a fractional day count to 1970-01-01T00:00:00, rounded to microseconds.
// days must be finite and within maxDayOffset.
func DayOffsetToTime(days float64) time.Time {
	d := time.Duration(math.Round(days * secondsPerDay * 1e6))
	return epoch.Add(d * time.Microsecond)
}

// TimeToDayOffset is the inverse of DayOffsetToTime.
func TimeToDayOffset(t time.Time) float64 {
	return float64(t.Sub(epoch).Microseconds()) / 1e6 / secondsPerDay
}

// FormatGeostreamTime renders a day offset as yyyy-MM-ddThh:mm:ss-07:00.
func FormatGeostreamTime(days float64) (string, error) {
	if math.IsNaN(days) || math.Abs(days) >= maxDayOffset {
		return "", fmt.Errorf("%w: %v", ErrDayOffset, days)
	}
	return DayOffsetToTime(days).Format(TimeFormatNoZone) + GeostreamZoneSuffix, nil
}

// ParseGeostreamTime reads back a FormatGeostreamTime value as UTC wall clock.
func ParseGeostreamTime(s string) (time.Time, error) {
	if len(s) > len(TimeFormatNoZone) {
		s = s[0:len(TimeFormatNoZone)]
	}
	return time.Parse(TimeFormatNoZone, s)
}

// ParseLoggerTimestamp: 2016.04.07-14:39:40, logger clock taken as UTC.
func ParseLoggerTimestamp(someTime string) (time.Time, error) {
	return time.Parse(LoggerTimeFormat, someTime)
}
