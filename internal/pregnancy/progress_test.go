package pregnancy

import (
	"testing"
	"time"
)

func dayOffset(base time.Time, days int) *time.Time {
	t := base.AddDate(0, 0, days)
	return &t
}

func TestComputeFromLMPFullTerm(t *testing.T) {
	asOf := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
	got := Compute(dayOffset(asOf, -280), nil, asOf)
	if got.Week != 40 || got.DayInWeek != 7 {
		t.Fatalf("expected week 40 day 7, got week %d day %d", got.Week, got.DayInWeek)
	}
	if got.DaysRemaining != 0 {
		t.Fatalf("expected 0 days remaining, got %d", got.DaysRemaining)
	}
}

func TestComputeNormalizesCompletedWeek(t *testing.T) {
	asOf := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		elapsed int
		week    int
		day     int
	}{
		{elapsed: 1, week: 1, day: 1},
		{elapsed: 6, week: 1, day: 6},
		{elapsed: 7, week: 1, day: 7},
		{elapsed: 8, week: 2, day: 1},
		{elapsed: 10, week: 2, day: 3},
		{elapsed: 14, week: 2, day: 7},
		{elapsed: 100, week: 15, day: 2},
	}
	for _, tc := range cases {
		got := Compute(dayOffset(asOf, -tc.elapsed), nil, asOf)
		if got.Week != tc.week || got.DayInWeek != tc.day {
			t.Fatalf("elapsed %d: expected week %d day %d, got week %d day %d", tc.elapsed, tc.week, tc.day, got.Week, got.DayInWeek)
		}
		if got.DaysRemaining != TotalDays-tc.elapsed {
			t.Fatalf("elapsed %d: expected %d days remaining, got %d", tc.elapsed, TotalDays-tc.elapsed, got.DaysRemaining)
		}
	}
}

func TestComputeDueDateTakesPriority(t *testing.T) {
	asOf := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	lmp := dayOffset(asOf, -10)
	due := dayOffset(asOf, 180)

	got := Compute(lmp, due, asOf)
	if got.DaysRemaining != 180 {
		t.Fatalf("expected due date anchor with 180 days remaining, got %d", got.DaysRemaining)
	}
	// 100 elapsed days
	if got.Week != 15 || got.DayInWeek != 2 {
		t.Fatalf("expected week 15 day 2, got week %d day %d", got.Week, got.DayInWeek)
	}
}

func TestComputePastDue(t *testing.T) {
	asOf := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	if got := Compute(nil, dayOffset(asOf, -1), asOf); got != PastDue() {
		t.Fatalf("expected past-due sentinel, got %+v", got)
	}
	if got := Compute(dayOffset(asOf, -300), nil, asOf); got != PastDue() {
		t.Fatalf("expected past-due sentinel from LMP, got %+v", got)
	}
}

func TestComputeDueDateToday(t *testing.T) {
	asOf := time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC)
	due := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	got := Compute(nil, &due, asOf)
	if got.Week != 40 || got.DayInWeek != 7 || got.DaysRemaining != 0 {
		t.Fatalf("expected week 40 day 7 on the due date, got %+v", got)
	}
}

func TestComputeWithoutAnchors(t *testing.T) {
	asOf := time.Now().UTC()
	if got := Compute(nil, nil, asOf); got != NotStarted() {
		t.Fatalf("expected not-started sentinel, got %+v", got)
	}
	zero := time.Time{}
	if got := Compute(&zero, &zero, asOf); got != NotStarted() {
		t.Fatalf("expected zero times to be treated as absent, got %+v", got)
	}
}

func TestComputeFutureLMPClampsToZero(t *testing.T) {
	asOf := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	got := Compute(dayOffset(asOf, 5), nil, asOf)
	if got.Week != 0 || got.DayInWeek != 0 || got.DaysRemaining != TotalDays {
		t.Fatalf("expected clamped zero progress, got %+v", got)
	}
}

func TestComputeIsMonotonicInAsOf(t *testing.T) {
	lmp := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i <= TotalDays; i++ {
		got := Compute(&lmp, nil, lmp.AddDate(0, 0, i))
		ordinal := 0
		if got.Week > 0 {
			ordinal = (got.Week-1)*7 + got.DayInWeek
		}
		if ordinal != i {
			t.Fatalf("day %d: expected ordinal %d, got %+v", i, i, got)
		}
	}
}

func TestStageFor(t *testing.T) {
	cases := map[int]Stage{0: StageNotStarted, 1: StageEarly, 13: StageEarly, 14: StageMiddle, 27: StageMiddle, 28: StageLate, 40: StageLate}
	for week, want := range cases {
		if got := StageFor(week); got != want {
			t.Fatalf("week %d: expected %s, got %s", week, want, got)
		}
	}
}

func TestContextFor(t *testing.T) {
	asOf := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	if ContextFor(nil, asOf) != nil {
		t.Fatalf("expected nil context without record")
	}
	if ContextFor(&Record{UserID: "u1"}, asOf) != nil {
		t.Fatalf("expected nil context without anchors")
	}
	got := ContextFor(&Record{UserID: "u1", LMP: dayOffset(asOf, -100)}, asOf)
	if got == nil || got.CurrentWeek != 15 || got.Stage != StageMiddle {
		t.Fatalf("unexpected context: %+v", got)
	}
}
