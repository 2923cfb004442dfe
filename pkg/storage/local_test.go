package storage

import (
	"context"
	"testing"
	"time"
)

func TestLocalArchiveRoundTrip(t *testing.T) {
	a := NewLocalArchive(t.TempDir())
	ctx := context.Background()

	key := SnapshotKey("baseline")
	if err := a.Put(ctx, key, []byte(`{"meta":{}}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	data, err := a.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(data) != `{"meta":{}}` {
		t.Errorf("Get returned %q", data)
	}
}

func TestLocalArchiveListScopedByPrefix(t *testing.T) {
	a := NewLocalArchive(t.TempDir())
	ctx := context.Background()

	at := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	if err := a.Put(ctx, SnapshotKey("a"), []byte("{}")); err != nil {
		t.Fatal(err)
	}
	if err := a.Put(ctx, SnapshotKey("b"), []byte("{}")); err != nil {
		t.Fatal(err)
	}
	if err := a.Put(ctx, ReportKey("aws", at, "json"), []byte("{}")); err != nil {
		t.Fatal(err)
	}

	keys, err := ListSnapshots(ctx, a)
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("ListSnapshots = %v, want 2 snapshot keys", keys)
	}
	for _, k := range keys {
		if k != SnapshotKey("a") && k != SnapshotKey("b") {
			t.Errorf("unexpected key %q", k)
		}
	}
}

func TestLocalArchiveListMissingPrefix(t *testing.T) {
	a := NewLocalArchive(t.TempDir())
	keys, err := a.List(context.Background(), "nothing-here")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("List = %v, want empty", keys)
	}
}

func TestReportKeyFormat(t *testing.T) {
	at := time.Date(2026, 8, 28, 10, 30, 0, 0, time.UTC)
	got := ReportKey("aws", at, "csv")
	want := "reports/aws-20260828T103000Z.csv"
	if got != want {
		t.Errorf("ReportKey = %q, want %q", got, want)
	}
}
