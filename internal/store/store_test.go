package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/roach88/idocore/internal/ido"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	tables := []string{"projects", "roster", "accounts", "tickets", "journal"}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &SQLite{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name, want string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"}, // NORMAL
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
	}
	for _, tt := range tests {
		if err := s.verifyPragma(tt.name, tt.want); err != nil {
			t.Error(err)
		}
	}
}

func TestMigrations_SetUserVersion(t *testing.T) {
	s := createTestStore(t)

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("query user_version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, currentSchemaVersion)
	}

	for _, index := range []string{"idx_projects_status", "idx_journal_project"} {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='index' AND name=?", index).Scan(&name)
		if err != nil {
			t.Errorf("index %q missing: %v", index, err)
		}
	}
}

func TestForeignKeys_RosterNeedsProject(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.Update(ctx, func(tx Tx) error {
		return tx.AddToRoster(ctx, 99, "alice")
	})
	if err == nil {
		t.Fatal("expected foreign key violation, got nil")
	}
}

func TestAccountRecord_IsJSONText(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	p := &ido.Project{Name: "alpha", TokenRaisedAmount: ido.NewAmount(1), TokenSaleRate: ido.Rate{Numerator: 1, Denominator: 1},
		Gate: ido.OpenGate{}, Sale: ido.SharedPool{Min: ido.NewAmount(1), Max: ido.NewAmount(2)}}
	p.Normalize()

	err := s.Update(ctx, func(tx Tx) error {
		id, err := tx.CreateProject(ctx, p)
		if err != nil {
			return err
		}
		p.ID = id
		a := ido.NewProjectAccount(p, "alice")
		a.Sale.Committed = ido.NewAmount(2)
		return tx.PutAccount(ctx, a)
	})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}

	var record string
	if err := s.db.QueryRow("SELECT record FROM accounts WHERE account = 'alice'").Scan(&record); err != nil {
		t.Fatalf("query record: %v", err)
	}
	if want := `{"sale":{"committed":"2","kind":"shared"}}`; record != want {
		t.Errorf("record = %s, want %s", record, want)
	}
}
