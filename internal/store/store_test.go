package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ppiankov/reportlens/internal/model"
)

func openTestStore(t *testing.T) *ReportStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "reports.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMigrate(t *testing.T) {
	s := openTestStore(t)

	version, err := schemaVersion(s.db)
	if err != nil {
		t.Fatalf("schemaVersion: %v", err)
	}
	if version != latestVersion() {
		t.Errorf("expected version %d, got %d", latestVersion(), version)
	}

	if err := migrate(s.db); err != nil {
		t.Errorf("second migrate should be a no-op, got %v", err)
	}
}

func TestRecordGetDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	report := &model.Report{ID: "r1", Filename: "annual.pdf", Size: 1024, SHA256: "abc", UploadedAt: at}
	if err := s.Record(ctx, report); err != nil {
		t.Fatalf("Record: %v", err)
	}

	got, err := s.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Filename != "annual.pdf" || got.Size != 1024 || got.SHA256 != "abc" || !got.UploadedAt.Equal(at) {
		t.Errorf("unexpected report %+v", got)
	}

	if err := s.Delete(ctx, "r1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "r1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.Delete(ctx, "r1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestRecord_ReplacesSameFilename(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := &model.Report{ID: "a", Filename: "annual.pdf", Size: 1, SHA256: "one", UploadedAt: time.Now().UTC()}
	second := &model.Report{ID: "b", Filename: "annual.pdf", Size: 2, SHA256: "two", UploadedAt: time.Now().UTC()}
	if err := s.Record(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := s.Record(ctx, second); err != nil {
		t.Fatal(err)
	}

	reports, err := s.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(reports) != 1 || reports[0].ID != "b" || reports[0].SHA256 != "two" {
		t.Errorf("expected the replacement row only, got %+v", reports)
	}
}

func TestList_NewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, name := range []string{"q1.pdf", "q2.pdf", "q3.pdf"} {
		r := &model.Report{ID: name, Filename: name, Size: int64(i), SHA256: "x", UploadedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := s.Record(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	reports, err := s.List(ctx, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(reports))
	}
	if reports[0].Filename != "q3.pdf" || reports[1].Filename != "q2.pdf" {
		t.Errorf("unexpected order: %s, %s", reports[0].Filename, reports[1].Filename)
	}
}

func TestRecord_Invalid(t *testing.T) {
	s := openTestStore(t)
	if err := s.Record(context.Background(), &model.Report{Filename: "x.pdf"}); err == nil {
		t.Error("expected error for a report without an id")
	}
}
