//go:build integration

package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/testserver"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vidfriends/uploader/internal/db"
	"github.com/vidfriends/uploader/internal/models"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	server, err := testserver.NewTestServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "start cockroach test server: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, server.PGURL().String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to cockroach test server: %v\n", err)
		server.Stop()
		os.Exit(1)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		pool.Close()
		server.Stop()
		os.Exit(1)
	}

	testPool = pool

	code := m.Run()

	pool.Close()
	server.Stop()

	os.Exit(code)
}

func TestPostgresUploadLedger_RecordAndRecent(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	ledger := NewPostgresUploadLedger(testPool)
	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond)

	for i, name := range []string{"first.mp4", "second.mov", "third.webm"} {
		record := models.UploadRecord{
			OwnerID:     "owner-a",
			FileID:      "file-" + name,
			FileName:    name,
			MediaType:   "video/mp4",
			Size:        int64(10 * (i + 1)),
			WebViewLink: "https://drive.google.com/file/d/" + name,
			Provider:    "drive",
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		if err := ledger.Record(ctx, record); err != nil {
			t.Fatalf("record %s: %v", name, err)
		}
	}

	recent, err := ledger.Recent(ctx, "owner-a", 2)
	if err != nil {
		t.Fatalf("recent uploads: %v", err)
	}

	if len(recent) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recent))
	}
	if recent[0].FileName != "third.webm" || recent[1].FileName != "second.mov" {
		t.Fatalf("unexpected order: %+v", recent)
	}
	if recent[0].ID == "" {
		t.Fatalf("expected generated id")
	}
	if recent[1].Size != 20 {
		t.Fatalf("expected size 20, got %d", recent[1].Size)
	}
	if !timesClose(recent[0].CreatedAt, base.Add(2*time.Minute), time.Millisecond) {
		t.Fatalf("unexpected created_at %v", recent[0].CreatedAt)
	}
}

func TestPostgresUploadLedger_RecentIsScopedToOwner(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	ledger := NewPostgresUploadLedger(testPool)
	for _, owner := range []string{"owner-a", "owner-b"} {
		record := models.UploadRecord{
			OwnerID:   owner,
			FileID:    "file-" + owner,
			FileName:  owner + ".mp4",
			MediaType: "video/mp4",
			Provider:  "drive",
		}
		if err := ledger.Record(ctx, record); err != nil {
			t.Fatalf("record %s: %v", owner, err)
		}
	}

	recent, err := ledger.Recent(ctx, "owner-a", 10)
	if err != nil {
		t.Fatalf("recent uploads: %v", err)
	}
	if len(recent) != 1 || recent[0].FileName != "owner-a.mp4" || recent[0].OwnerID != "owner-a" {
		t.Fatalf("expected only owner-a's upload, got %+v", recent)
	}

	recent, err = ledger.Recent(ctx, "owner-c", 10)
	if err != nil {
		t.Fatalf("recent uploads: %v", err)
	}
	if len(recent) != 0 {
		t.Fatalf("expected no uploads for owner-c, got %+v", recent)
	}
}

func TestPostgresUploadLedger_DuplicateID(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	ledger := NewPostgresUploadLedger(testPool)
	record := models.UploadRecord{
		ID:        uuid.NewString(),
		OwnerID:   "owner-a",
		FileID:    "file-1",
		FileName:  "clip.mp4",
		MediaType: "video/mp4",
		Provider:  "drive",
	}

	if err := ledger.Record(ctx, record); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := ledger.Record(ctx, record); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestMigrator_StatusAfterUp(t *testing.T) {
	ctx := context.Background()

	migrator, err := NewMigrator(db.SQL(testPool))
	if err != nil {
		t.Fatalf("new migrator: %v", err)
	}

	states, err := migrator.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if len(states) == 0 {
		t.Fatalf("expected at least one migration")
	}
	for _, s := range states {
		if !s.Applied {
			t.Fatalf("migration %s not applied", s.Source)
		}
	}
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrator, err := NewMigrator(db.SQL(pool))
	if err != nil {
		return err
	}
	_, err = migrator.Up(ctx)
	return err
}

func resetDatabase(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	conn, err := testPool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire connection: %v", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "TRUNCATE TABLE uploads"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func timesClose(a, b time.Time, delta time.Duration) bool {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= delta
}
