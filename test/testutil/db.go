package testutil

import (
	"database/sql"
	"os"
	"testing"

	"github.com/esgpipe/esgpipe/internal/config"
	"github.com/esgpipe/esgpipe/internal/db"
)

func OpenTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set, skipping postgres test")
	}
	conn, err := db.Open(config.DatabaseConfig{
		Host:     host,
		Port:     5432,
		User:     "esgpipe",
		Password: "esgpipe_pass",
		DBName:   "esgpipe_test",
		SSLMode:  "disable",
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return conn, func() {
		_, _ = conn.Exec("DELETE FROM chunk_embeddings")
		_, _ = conn.Exec("DELETE FROM chunks")
		_, _ = conn.Exec("DELETE FROM documents")
		_, _ = conn.Exec("DELETE FROM embedding_cache")
		_ = conn.Close()
	}
}
