package services

import (
	"testing"
	"time"

	"github.com/abdelrahman-hamdy/itqan-platform-sub013/internal/models"
)

var testSettings = models.AttendanceSettings{
	LateToleranceMinutes:     15,
	MinimumAttendanceMinutes: 10,
	PresentThresholdPercent:  90,
}

func event(eventType models.AttendanceEventType, at time.Time) models.AttendanceEvent {
	return models.AttendanceEvent{EventType: eventType, OccurredAt: at}
}

func TestAttendedMinutesSingleInterval(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(60 * time.Minute)

	events := []models.AttendanceEvent{
		event(models.EventJoin, start.Add(5*time.Minute)),
		event(models.EventLeave, start.Add(50*time.Minute)),
	}

	if got := attendedMinutes(events, start, end); got != 45 {
		t.Fatalf("expected 45 minutes, got %d", got)
	}
}

func TestAttendedMinutesMultipleIntervals(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(60 * time.Minute)

	events := []models.AttendanceEvent{
		event(models.EventJoin, start),
		event(models.EventLeave, start.Add(20*time.Minute)),
		event(models.EventJoin, start.Add(30*time.Minute)),
		event(models.EventLeave, start.Add(55*time.Minute)),
	}

	if got := attendedMinutes(events, start, end); got != 45 {
		t.Fatalf("expected 45 minutes, got %d", got)
	}
}

func TestAttendedMinutesDanglingJoinClosedAtSessionEnd(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(60 * time.Minute)

	events := []models.AttendanceEvent{
		event(models.EventJoin, start.Add(10*time.Minute)),
	}

	if got := attendedMinutes(events, start, end); got != 50 {
		t.Fatalf("expected 50 minutes, got %d", got)
	}
}

func TestAttendedMinutesClipsToSessionWindow(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(60 * time.Minute)

	// Joined before the session started and left after it ended.
	events := []models.AttendanceEvent{
		event(models.EventJoin, start.Add(-20*time.Minute)),
		event(models.EventLeave, end.Add(30*time.Minute)),
	}

	if got := attendedMinutes(events, start, end); got != 60 {
		t.Fatalf("expected 60 minutes, got %d", got)
	}
}

func TestAttendedMinutesDuplicateJoinsIgnored(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(60 * time.Minute)

	events := []models.AttendanceEvent{
		event(models.EventJoin, start),
		event(models.EventJoin, start.Add(5*time.Minute)),
		event(models.EventLeave, start.Add(30*time.Minute)),
	}

	if got := attendedMinutes(events, start, end); got != 30 {
		t.Fatalf("expected 30 minutes, got %d", got)
	}
}

func TestAttendedMinutesLeaveWithoutJoin(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(60 * time.Minute)

	events := []models.AttendanceEvent{
		event(models.EventLeave, start.Add(30*time.Minute)),
	}

	if got := attendedMinutes(events, start, end); got != 0 {
		t.Fatalf("expected 0 minutes, got %d", got)
	}
}

func TestDeriveAttendanceAbsentWithoutJoin(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	status, pct := deriveAttendance(nil, 0, 60, start, testSettings)
	if status != models.AttendanceAbsent || pct != 0 {
		t.Fatalf("expected absent/0, got %s/%.1f", status, pct)
	}
}

func TestDeriveAttendancePresentAboveThreshold(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	joined := start.Add(2 * time.Minute)

	status, pct := deriveAttendance(&joined, 55, 60, start, testSettings)
	if status != models.AttendancePresent {
		t.Fatalf("expected present, got %s", status)
	}
	if pct < 91 || pct > 92 {
		t.Fatalf("expected ~91.7%%, got %.1f", pct)
	}
}

func TestDeriveAttendanceLateJoinerStillLate(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	// Joined 20 minutes in, past the 15 minute tolerance, but stayed the
	// rest of the session.
	joined := start.Add(20 * time.Minute)

	status, _ := deriveAttendance(&joined, 40, 60, start, testSettings)
	if status != models.AttendanceLate {
		t.Fatalf("expected late, got %s", status)
	}
}

func TestDeriveAttendancePartialBelowThreshold(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	joined := start.Add(1 * time.Minute)

	status, pct := deriveAttendance(&joined, 30, 60, start, testSettings)
	if status != models.AttendancePartial {
		t.Fatalf("expected partial, got %s", status)
	}
	if pct != 50 {
		t.Fatalf("expected 50%%, got %.1f", pct)
	}
}

func TestDeriveAttendancePercentageCappedAtHundred(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	joined := start

	// Overtime: attended longer than the planned duration.
	_, pct := deriveAttendance(&joined, 75, 60, start, testSettings)
	if pct != 100 {
		t.Fatalf("expected capped 100%%, got %.1f", pct)
	}
}

func TestDeriveAttendanceZeroDuration(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	joined := start

	status, pct := deriveAttendance(&joined, 5, 0, start, testSettings)
	if pct != 0 {
		t.Fatalf("expected 0%% for zero duration, got %.1f", pct)
	}
	if status != models.AttendanceAbsent {
		t.Fatalf("expected absent at zero percent, got %s", status)
	}
}
