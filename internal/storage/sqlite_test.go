package storage

import (
	"context"
	"testing"
	"time"

	"github.com/kalambet/feedtrack/internal/feedback"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRecords() []feedback.Record {
	t0 := time.Date(2025, 1, 2, 3, 4, 5, 678_000_000, time.UTC)
	return []feedback.Record{
		{
			ID: "b-second-id", Title: "Bug on login", Description: "Cannot log in on Safari",
			Category: feedback.CategoryBug, Priority: feedback.PriorityHigh, Status: feedback.StatusOpen,
			CreatedAt: t0, UpdatedAt: t0,
		},
		{
			ID: "a-first-id", Title: "Dark mode", Description: "Please add a dark theme",
			Category: feedback.CategoryFeature, Priority: feedback.PriorityLow, Status: feedback.StatusInProgress,
			CreatedAt: t0.Add(time.Minute), UpdatedAt: t0.Add(time.Hour),
		},
		{
			ID: "c-third-id", Title: "Thanks", Description: "Great app",
			Category: feedback.CategoryGeneral, Priority: feedback.PriorityMedium, Status: feedback.StatusResolved,
			CreatedAt: t0.Add(2 * time.Minute), UpdatedAt: t0.Add(2 * time.Minute),
		},
	}
}

// TestMigrationsIdempotent runs OpenSQLite twice on the same directory and
// verifies the schema_version count stays the same.
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := OpenSQLite(dir)
	if err != nil {
		t.Fatalf("first OpenSQLite failed: %v", err)
	}
	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := OpenSQLite(dir)
	if err != nil {
		t.Fatalf("second OpenSQLite failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

func TestMigrationsOrdered(t *testing.T) {
	s := openTestStore(t)

	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(versions) == 0 {
		t.Fatal("expected at least one applied migration")
	}
	for i := 1; i < len(versions); i++ {
		if versions[i] <= versions[i-1] {
			t.Errorf("migrations not in ascending order: %v", versions)
			break
		}
	}
}

func TestSQLite_LoadEmpty(t *testing.T) {
	s := openTestStore(t)

	records, err := s.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if records == nil || len(records) != 0 {
		t.Errorf("LoadAll on empty db = %#v, want empty non-nil slice", records)
	}
}

func TestSQLite_RoundTripPreservesOrder(t *testing.T) {
	s := openTestStore(t)
	want := sampleRecords()

	if err := s.SaveAll(context.Background(), want); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}
	got, err := s.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}

	if len(got) != len(want) {
		t.Fatalf("got %d records, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i].ID {
			t.Errorf("records[%d].ID = %q, want %q", i, got[i].ID, want[i].ID)
		}
		if got[i].Title != want[i].Title || got[i].Description != want[i].Description {
			t.Errorf("records[%d] text mismatch: %+v", i, got[i])
		}
		if got[i].Category != want[i].Category || got[i].Priority != want[i].Priority || got[i].Status != want[i].Status {
			t.Errorf("records[%d] enum mismatch: %+v", i, got[i])
		}
		if !got[i].CreatedAt.Equal(want[i].CreatedAt) || !got[i].UpdatedAt.Equal(want[i].UpdatedAt) {
			t.Errorf("records[%d] timestamps = %v/%v, want %v/%v", i, got[i].CreatedAt, got[i].UpdatedAt, want[i].CreatedAt, want[i].UpdatedAt)
		}
	}
}

func TestSQLite_SaveReplaces(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	records := sampleRecords()

	if err := s.SaveAll(ctx, records); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}
	if err := s.SaveAll(ctx, records[1:2]); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}

	got, err := s.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(got) != 1 || got[0].ID != records[1].ID {
		t.Errorf("after replace got %+v, want only %q", got, records[1].ID)
	}
}

// TestSQLite_DuplicateIDRollsBack verifies a failed SaveAll leaves the
// previous collection intact.
func TestSQLite_DuplicateIDRollsBack(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	records := sampleRecords()

	if err := s.SaveAll(ctx, records); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}

	dup := append(sampleRecords(), records[0])
	if err := s.SaveAll(ctx, dup); err == nil {
		t.Fatal("expected error saving duplicate ids")
	}

	got, err := s.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(got) != len(records) {
		t.Errorf("got %d records after failed save, want %d", len(got), len(records))
	}
}

func TestSQLite_WithService(t *testing.T) {
	s := openTestStore(t)
	svc := feedback.NewService(s)
	ctx := context.Background()

	rec, err := svc.Create(ctx, feedback.NewRecord{Title: "t", Description: "d"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.Delete(ctx, rec.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	list, err := svc.List(ctx, feedback.Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("List = %d records, want 0", len(list))
	}
}
