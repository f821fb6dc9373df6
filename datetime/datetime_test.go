package datetime

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestResolveRunDate(t *testing.T) {
	files := []string{"/data/2023-05-01_environmentlogger.json", "/data/2023-05-02_environmentlogger.json"}

	tests := []struct {
		name      string
		files     []string
		timestamp string
		override  string
		want      RunDate
	}{
		{
			name:  "file name",
			files: files,
			want:  RunDate{Date: "2023-05-01", Timestamp: "2023-05-01T00:00:00"},
		},
		{
			name:      "supplied timestamp beats file name",
			files:     files,
			timestamp: "2023-04-30T12:34:56-07:00",
			want:      RunDate{Date: "2023-04-30", Timestamp: "2023-04-30T12:34:56-07:00"},
		},
		{
			name:     "override beats file name",
			files:    files,
			override: "2023-06-15",
			want:     RunDate{Date: "2023-06-15", Timestamp: "2023-06-15T00:00:00"},
		},
		{
			name:      "override beats supplied timestamp",
			files:     files,
			timestamp: "2023-04-30T12:34:56",
			override:  "2023-06-15",
			want:      RunDate{Date: "2023-06-15", Timestamp: "2023-06-15T00:00:00"},
		},
		{
			name:     "override without usable file name",
			files:    []string{"/data/logger_environmentlogger.json"},
			override: "2023-06-15",
			want:     RunDate{Date: "2023-06-15", Timestamp: "2023-06-15T00:00:00"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveRunDate(tt.files, tt.timestamp, tt.override)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestResolveRunDateFails(t *testing.T) {
	_, err := ResolveRunDate([]string{"/data/logger_environmentlogger.json"}, "", "")
	if !errors.Is(err, ErrDateResolution) {
		t.Fatalf("expected ErrDateResolution, got %v", err)
	}
	_, err = ResolveRunDate(nil, "", "")
	if !errors.Is(err, ErrDateResolution) {
		t.Fatalf("expected ErrDateResolution for empty input, got %v", err)
	}
}

func TestResolveRunDateOnlyMatchesAtStartOfBaseName(t *testing.T) {
	_, err := ResolveRunDate([]string{"/2023-05-01/logger_2023-05-01_environmentlogger.json"}, "", "")
	if !errors.Is(err, ErrDateResolution) {
		t.Fatalf("expected ErrDateResolution, got %v", err)
	}
}

func TestFormatGeostreamTime(t *testing.T) {
	tests := []struct {
		days float64
		want string
	}{
		{0, "1970-01-01T00:00:00-07:00"},
		{19478, "2023-05-01T00:00:00-07:00"},
		{19478.25, "2023-05-01T06:00:00-07:00"},
		{19478.5 + 1.0/86400, "2023-05-01T12:00:01-07:00"},
	}
	for _, tt := range tests {
		got, err := FormatGeostreamTime(tt.days)
		if err != nil || got != tt.want {
			t.Errorf("FormatGeostreamTime(%v): expected %s, got %s %v", tt.days, tt.want, got, err)
		}
	}
}

func TestFormatGeostreamTimeRejectsUnusableOffsets(t *testing.T) {
	for _, days := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), 1e300, -1e300, 9.969209968386869e36} {
		got, err := FormatGeostreamTime(days)
		if !errors.Is(err, ErrDayOffset) {
			t.Errorf("FormatGeostreamTime(%v): expected ErrDayOffset, got %q %v", days, got, err)
		}
	}
	if _, err := FormatGeostreamTime(100000); err != nil {
		t.Errorf("expected year 2243 to format, got %v", err)
	}
}

func TestDayOffsetRoundTrip(t *testing.T) {
	ts, err := ParseLoggerTimestamp("2016.04.07-14:39:40")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	got := DayOffsetToTime(TimeToDayOffset(ts))
	if !got.Equal(ts) {
		t.Fatalf("expected %s, got %s", ts, got)
	}
	if got.Format(DateFormat) != "2016-04-07" {
		t.Fatalf("unexpected date %s", got.Format(DateFormat))
	}
}

func TestParseGeostreamTime(t *testing.T) {
	got, err := ParseGeostreamTime("2023-05-01T06:00:00-07:00")
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2023, 5, 1, 6, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}
