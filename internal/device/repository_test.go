package device

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const testSchema = `
CREATE TABLE devices (
    id_string        TEXT PRIMARY KEY,
    protocol         TEXT NOT NULL,
    address          TEXT NOT NULL,
    group_id         TEXT NOT NULL DEFAULT '',
    model            TEXT NOT NULL DEFAULT '',
    profile_name     TEXT NOT NULL DEFAULT '',
    redirect_address TEXT NOT NULL DEFAULT '',
    first_seen       TEXT NOT NULL,
    last_seen        TEXT NOT NULL,
    last_state       TEXT NOT NULL DEFAULT '{}'
) STRICT;
`

func openTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening in-memory database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(testSchema); err != nil {
		t.Fatalf("creating schema: %v", err)
	}
	return NewSQLiteRepository(db)
}

func testRecord(id string) *Record {
	now := time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC)
	return &Record{
		IDString:  id,
		Protocol:  "OREGON",
		Address:   "39168",
		Model:     "PCR800",
		FirstSeen: now,
		LastSeen:  now,
	}
}

func TestRepositoryCreateAndGet(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	rec := testRecord("OREGON-39168")
	rec.LastState = map[string]string{"total rain": "978.25"}

	if err := repo.Create(ctx, rec); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "OREGON-39168")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}

	if got.Protocol != "OREGON" || got.Address != "39168" || got.Model != "PCR800" {
		t.Errorf("GetByID() = %+v, identity fields mismatch", got)
	}
	if got.LastState["total rain"] != "978.25" {
		t.Errorf("LastState = %v, want total rain 978.25", got.LastState)
	}
	if !got.FirstSeen.Equal(rec.FirstSeen) {
		t.Errorf("FirstSeen = %v, want %v", got.FirstSeen, rec.FirstSeen)
	}
}

func TestRepositoryCreateDuplicate(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, testRecord("X10-A3")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	err := repo.Create(ctx, testRecord("X10-A3"))
	if !errors.Is(err, ErrExists) {
		t.Errorf("Create() duplicate error = %v, want ErrExists", err)
	}
}

func TestRepositoryCreateEmptyIdentity(t *testing.T) {
	repo := openTestRepo(t)

	err := repo.Create(context.Background(), &Record{})
	if !errors.Is(err, ErrInvalidIdentity) {
		t.Errorf("Create() error = %v, want ErrInvalidIdentity", err)
	}
}

func TestRepositoryGetMissing(t *testing.T) {
	repo := openTestRepo(t)

	_, err := repo.GetByID(context.Background(), "RTS-1234")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestRepositoryUpdate(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	rec := testRecord("OREGON-39168")
	if err := repo.Create(ctx, rec); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	rec.ProfileName = "Oregon Rain Sensor"
	rec.RedirectAddress = ""
	if err := repo.Update(ctx, rec); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := repo.GetByID(ctx, rec.IDString)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.ProfileName != "Oregon Rain Sensor" {
		t.Errorf("ProfileName = %q, want %q", got.ProfileName, "Oregon Rain Sensor")
	}
}

func TestRepositoryUpdateMissing(t *testing.T) {
	repo := openTestRepo(t)

	err := repo.Update(context.Background(), testRecord("BLYSS-FE5040"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Update() error = %v, want ErrNotFound", err)
	}
}

func TestRepositoryDelete(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, testRecord("X10-A3")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.Delete(ctx, "X10-A3"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := repo.GetByID(ctx, "X10-A3"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() after delete error = %v, want ErrNotFound", err)
	}

	if err := repo.Delete(ctx, "X10-A3"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() missing error = %v, want ErrNotFound", err)
	}
}

func TestRepositoryList(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	ids := []string{"X10-A3", "OREGON-39168", "RTS-70000"}
	for _, id := range ids {
		rec := testRecord(id)
		if err := repo.Create(ctx, rec); err != nil {
			t.Fatalf("Create(%s) error = %v", id, err)
		}
	}

	records, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("List() = %d records, want 3", len(records))
	}

	// Ordered by identity string.
	if records[0].IDString != "OREGON-39168" {
		t.Errorf("List()[0] = %s, want OREGON-39168", records[0].IDString)
	}
}

func TestRepositoryListByProtocol(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	a := testRecord("X10-A3")
	a.Protocol = "X10"
	b := testRecord("OREGON-39168")
	for _, rec := range []*Record{a, b} {
		if err := repo.Create(ctx, rec); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	records, err := repo.ListByProtocol(ctx, "X10")
	if err != nil {
		t.Fatalf("ListByProtocol() error = %v", err)
	}
	if len(records) != 1 || records[0].IDString != "X10-A3" {
		t.Errorf("ListByProtocol(X10) = %+v, want single X10-A3", records)
	}
}

func TestRepositoryUpdateSeen(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	rec := testRecord("OREGON-39168")
	if err := repo.Create(ctx, rec); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	later := rec.LastSeen.Add(time.Hour)
	if err := repo.UpdateSeen(ctx, rec.IDString, later); err != nil {
		t.Fatalf("UpdateSeen() error = %v", err)
	}

	got, err := repo.GetByID(ctx, rec.IDString)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if !got.LastSeen.Equal(later) {
		t.Errorf("LastSeen = %v, want %v", got.LastSeen, later)
	}
	if !got.FirstSeen.Equal(rec.FirstSeen) {
		t.Errorf("FirstSeen changed to %v", got.FirstSeen)
	}

	if err := repo.UpdateSeen(ctx, "GHOST-1", later); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateSeen() missing error = %v, want ErrNotFound", err)
	}
}

func TestRepositoryUpdateState(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	rec := testRecord("BLYSS-FE5040")
	if err := repo.Create(ctx, rec); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	state := map[string]string{"state": "on", "low battery": "0"}
	if err := repo.UpdateState(ctx, rec.IDString, state); err != nil {
		t.Fatalf("UpdateState() error = %v", err)
	}

	got, err := repo.GetByID(ctx, rec.IDString)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.LastState["state"] != "on" || got.LastState["low battery"] != "0" {
		t.Errorf("LastState = %v", got.LastState)
	}
}
