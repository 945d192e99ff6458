package weekplan

import (
	"errors"
	"testing"
	"time"
)

func TestExpandWeeks(t *testing.T) {
	cases := []struct {
		spec string
		want []int
	}{
		{"3, 7-9, 12", []int{3, 7, 8, 9, 12}},
		{"5-5", []int{5}},
		{"42", []int{42}},
		{"1,1, 2-3", []int{1, 1, 2, 3}},
	}

	for _, tc := range cases {
		got, err := ExpandWeeks(tc.spec)
		if err != nil {
			t.Fatalf("ExpandWeeks(%q) failed: %v", tc.spec, err)
		}
		if len(got) != len(tc.want) {
			t.Fatalf("ExpandWeeks(%q) = %v, want %v", tc.spec, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("ExpandWeeks(%q) = %v, want %v", tc.spec, got, tc.want)
			}
		}
	}
}

func TestExpandWeeks_Malformed(t *testing.T) {
	for _, spec := range []string{"9-7", "abc", "1,,2", "", "3-", "-4"} {
		if _, err := ExpandWeeks(spec); !errors.Is(err, ErrMalformedWeekSpec) {
			t.Errorf("ExpandWeeks(%q) = %v, want ErrMalformedWeekSpec", spec, err)
		}
	}
}

func TestResolveDate_WeekdayAndWeekAgree(t *testing.T) {
	now := time.Date(2023, time.October, 5, 12, 0, 0, 0, time.UTC)

	for week := 1; week <= 52; week++ {
		for day := time.Monday; day <= time.Friday; day++ {
			date, err := ResolveDate(week, day, now)
			if err != nil {
				t.Fatalf("ResolveDate(%d, %v) failed: %v", week, day, err)
			}
			if date.Weekday() != day {
				t.Fatalf("ResolveDate(%d, %v) fell on %v", week, day, date.Weekday())
			}
			if _, isoWeek := date.ISOWeek(); isoWeek != week {
				t.Fatalf("ResolveDate(%d, %v) = %v, ISO week %d", week, day, date, isoWeek)
			}
		}
	}
}

func TestResolveDate_AcademicYearHeuristic(t *testing.T) {
	now := time.Date(2023, time.October, 5, 12, 0, 0, 0, time.UTC)

	spring, err := ResolveDate(10, time.Monday, now)
	if err != nil {
		t.Fatalf("ResolveDate failed: %v", err)
	}
	if spring.Year() != 2024 {
		t.Errorf("week 10 resolved to year %d, want 2024", spring.Year())
	}

	autumn, err := ResolveDate(40, time.Monday, now)
	if err != nil {
		t.Fatalf("ResolveDate failed: %v", err)
	}
	if autumn.Year() != 2023 {
		t.Errorf("week 40 resolved to year %d, want 2023", autumn.Year())
	}
}

func TestResolveDate_Week53(t *testing.T) {
	// 2020 has 53 ISO weeks, 2023 does not.
	in2020 := time.Date(2020, time.September, 1, 0, 0, 0, 0, time.UTC)
	if _, err := ResolveDate(53, time.Monday, in2020); err != nil {
		t.Fatalf("week 53 should exist in 2020: %v", err)
	}

	in2023 := time.Date(2023, time.September, 1, 0, 0, 0, 0, time.UTC)
	if _, err := ResolveDate(53, time.Monday, in2023); !errors.Is(err, ErrInvalidWeekForYear) {
		t.Fatalf("week 53 in 2023 = %v, want ErrInvalidWeekForYear", err)
	}
}

func TestResolveDate_WeekOutOfRange(t *testing.T) {
	now := time.Now()
	for _, week := range []int{0, -3, 54} {
		if _, err := ResolveDate(week, time.Monday, now); err == nil {
			t.Errorf("ResolveDate(%d) succeeded, want error", week)
		}
	}
}
