package repository

import (
	"testing"
	"time"
)

func TestOccurrenceRecordEnded(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	open := &OccurrenceRecord{EndsAt: now.Add(time.Hour)}
	if open.Ended(now) {
		t.Fatalf("occurrence ending at %v must not be ended at %v", open.EndsAt, now)
	}

	past := &OccurrenceRecord{EndsAt: now.Add(-time.Hour)}
	if !past.Ended(now) {
		t.Fatalf("occurrence ending at %v must be ended at %v", past.EndsAt, now)
	}

	// The end instant itself counts as ended.
	boundary := &OccurrenceRecord{EndsAt: now}
	if !boundary.Ended(now) {
		t.Fatalf("occurrence ending exactly at %v must be ended", now)
	}
}
