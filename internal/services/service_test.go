package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"buste/internal/core"
	"buste/internal/storage"
)

// newTestRepo opens a throwaway SQLite database with migrations applied.
func newTestRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "buste_test.db"))
	if err != nil {
		t.Fatalf("open test repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedEnvelope(t *testing.T, repo *storage.SQLiteRepository, e core.Envelope) core.Envelope {
	t.Helper()
	out, err := repo.Queries().InsertEnvelope(context.Background(), e)
	if err != nil {
		t.Fatalf("seed envelope: %v", err)
	}
	return out
}

func seedAccount(t *testing.T, repo *storage.SQLiteRepository, a core.Account) core.Account {
	t.Helper()
	out, err := repo.Queries().InsertAccount(context.Background(), a)
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return out
}

func seedTransaction(t *testing.T, repo *storage.SQLiteRepository, tx core.Transaction) core.Transaction {
	t.Helper()
	out, err := repo.Queries().InsertTransaction(context.Background(), tx)
	if err != nil {
		t.Fatalf("seed transaction: %v", err)
	}
	return out
}

func mustEnvelope(t *testing.T, repo *storage.SQLiteRepository, ownerID, id string) core.Envelope {
	t.Helper()
	e, err := repo.Queries().GetEnvelope(context.Background(), ownerID, id)
	if err != nil {
		t.Fatalf("get envelope %s: %v", id, err)
	}
	return e
}

func mustAccount(t *testing.T, repo *storage.SQLiteRepository, ownerID, id string) core.Account {
	t.Helper()
	a, err := repo.Queries().GetAccount(context.Background(), ownerID, id)
	if err != nil {
		t.Fatalf("get account %s: %v", id, err)
	}
	return a
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func cents(n int64) core.Money { return core.FromCents(n) }
