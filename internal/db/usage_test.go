package db

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRecordUsageAccumulates(t *testing.T) {
	d := testDB(t)

	first := record(t, d,
		"alice", "chrome.exe", "YouTube", 120, "2025-06-01T09:00:00Z")
	second := record(t, d,
		"alice", "chrome.exe", "YouTube", 30, "2025-06-01T15:00:00Z")

	if first.AppID != second.AppID {
		t.Errorf("app IDs differ: %d vs %d", first.AppID, second.AppID)
	}
	if first.ActivityDate != "2025-06-01" {
		t.Errorf("activity date = %q, want 2025-06-01", first.ActivityDate)
	}

	rows, err := d.ListUsage(
		context.Background(), UsageFilter{AppID: first.AppID},
	)
	if err != nil {
		t.Fatalf("ListUsage: %v", err)
	}
	want := []UsageRow{{
		ID:           rows[0].ID,
		AppID:        first.AppID,
		UserID:       "alice",
		AppName:      "chrome.exe",
		WindowTitle:  "YouTube",
		ActivityDate: "2025-06-01",
		Duration:     150,
	}}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("usage rows mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordUsageRejectsNegativeDuration(t *testing.T) {
	d := testDB(t)

	_, err := d.RecordUsage(
		context.Background(),
		"alice", "chrome.exe", "YouTube", -5, "",
	)
	if !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("err = %v, want ErrInvalidDuration", err)
	}
	if got := countRows(t, d, "apps"); got != 0 {
		t.Errorf("apps rows after rejected write = %d, want 0", got)
	}
}

func TestRecordUsageDateTruncation(t *testing.T) {
	d := testDB(t)

	// Same calendar date at both ends of the day lands in one row.
	record(t, d, "bob", "Code.exe", "tracker", 10, "2025-09-12T23:59:00Z")
	record(t, d, "bob", "Code.exe", "tracker", 20, "2025-09-12T00:00:01Z")

	rows, err := d.ListUsage(context.Background(), UsageFilter{})
	if err != nil {
		t.Fatalf("ListUsage: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].ActivityDate != "2025-09-12" || rows[0].Duration != 30 {
		t.Errorf("got (%s, %d), want (2025-09-12, 30)",
			rows[0].ActivityDate, rows[0].Duration)
	}
}

func TestRecordUsageBadTimestampFallsBackToToday(t *testing.T) {
	d := testDB(t)

	res := record(t, d, "alice", "slack.exe", "Team Chat", 45, "???")
	if res.ActivityDate != "2025-06-15" {
		t.Errorf("activity date = %q, want today (2025-06-15)",
			res.ActivityDate)
	}
}

func TestRecordUsageSeparateKeysSeparateRows(t *testing.T) {
	d := testDB(t)

	record(t, d, "alice", "chrome.exe", "YouTube", 10, "2025-06-01T09:00:00Z")
	record(t, d, "bob", "chrome.exe", "YouTube", 10, "2025-06-01T09:00:00Z")
	record(t, d, "alice", "chrome.exe", "Gmail", 10, "2025-06-01T09:00:00Z")
	record(t, d, "alice", "chrome.exe", "YouTube", 10, "2025-06-02T09:00:00Z")

	if got := countRows(t, d, "apps"); got != 3 {
		t.Errorf("apps rows = %d, want 3", got)
	}
	if got := countRows(t, d, "activity_logs"); got != 4 {
		t.Errorf("activity_logs rows = %d, want 4", got)
	}
}

func TestRecordUsageConcurrentSameKey(t *testing.T) {
	d := testDB(t)

	const workers = 16
	const perCall = int64(5)

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := d.RecordUsage(
				context.Background(),
				"alice", "chrome.exe", "YouTube",
				perCall, "2025-06-01T09:00:00Z",
			)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent RecordUsage: %v", err)
		}
	}

	// Exactly one identity row, and no increment lost.
	if got := countRows(t, d, "apps"); got != 1 {
		t.Errorf("apps rows = %d, want 1", got)
	}
	rows, err := d.ListUsage(context.Background(), UsageFilter{})
	if err != nil {
		t.Fatalf("ListUsage: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d usage rows, want 1", len(rows))
	}
	if rows[0].Duration != perCall*workers {
		t.Errorf("total duration = %d, want %d",
			rows[0].Duration, perCall*workers)
	}
}

func TestListApplicationsOrdered(t *testing.T) {
	d := testDB(t)

	record(t, d, "carol", "zoom.exe", "Meetings", 1, "")
	record(t, d, "alice", "slack.exe", "Team Chat", 1, "")
	record(t, d, "alice", "chrome.exe", "YouTube", 1, "")

	apps, err := d.ListApplications(context.Background())
	if err != nil {
		t.Fatalf("ListApplications: %v", err)
	}
	var got []string
	for _, a := range apps {
		got = append(got, a.UserID+"/"+a.AppName)
	}
	want := []string{
		"alice/chrome.exe", "alice/slack.exe", "carol/zoom.exe",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("application order mismatch (-want +got):\n%s", diff)
	}
}

func TestListUsageFiltersAndOrder(t *testing.T) {
	d := testDB(t)

	record(t, d, "alice", "chrome.exe", "YouTube", 100, "2025-06-01T08:00:00Z")
	record(t, d, "alice", "chrome.exe", "YouTube", 300, "2025-06-02T08:00:00Z")
	record(t, d, "bob", "Code.exe", "tracker", 500, "2025-06-02T08:00:00Z")
	record(t, d, "bob", "Code.exe", "tracker", 50, "2025-06-03T08:00:00Z")

	rows, err := d.ListUsage(context.Background(), UsageFilter{
		StartDate: "2025-06-02",
		EndDate:   "2025-06-03",
	})
	if err != nil {
		t.Fatalf("ListUsage: %v", err)
	}

	// Date descending, then duration descending.
	var got []int64
	for _, r := range rows {
		got = append(got, r.Duration)
	}
	if diff := cmp.Diff([]int64{50, 500, 300}, got); diff != "" {
		t.Errorf("usage order mismatch (-want +got):\n%s", diff)
	}
}
