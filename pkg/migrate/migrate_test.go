package migrate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/angelmondragon/viylo-storefront/pkg/config"
	"github.com/angelmondragon/viylo-storefront/pkg/db"
)

const migrationsDir = "migrations"

func TestValidateDir_ShippedMigrations(t *testing.T) {
	if err := ValidateDir(migrationsDir); err != nil {
		t.Fatalf("shipped migrations invalid: %v", err)
	}
}

func TestValidateDir_RejectsBadFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "orders.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := ValidateDir(dir); err == nil || !strings.Contains(err.Error(), "invalid migration filename") {
		t.Fatalf("expected filename error, got %v", err)
	}

	dir = t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "20260101000000_orders.sql"), []byte("-- +goose Up\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := ValidateDir(dir); err == nil || !strings.Contains(err.Error(), "goose Down") {
		t.Fatalf("expected missing down error, got %v", err)
	}

	dir = t.TempDir()
	unbalanced := "-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\n"
	if err := os.WriteFile(filepath.Join(dir, "20260101000000_orders.sql"), []byte(unbalanced), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := ValidateDir(dir); err == nil || !strings.Contains(err.Error(), "StatementEnd") {
		t.Fatalf("expected unbalanced statement error, got %v", err)
	}

	dir = t.TempDir()
	body := []byte("-- +goose Up\n-- +goose Down\n")
	for _, name := range []string{"20260101000000_orders.sql", "20260102000000_orders.sql"} {
		if err := os.WriteFile(filepath.Join(dir, name), body, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := ValidateDir(dir); err == nil || !strings.Contains(err.Error(), "reused") {
		t.Fatalf("expected reused name error, got %v", err)
	}
}

func TestCreateSQLMigration(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Add Order Index!")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(path, "_add_order_index.sql") {
		t.Fatalf("unexpected filename %q", path)
	}
	if err := ValidateDir(dir); err != nil {
		t.Fatalf("generated migration invalid: %v", err)
	}
	if _, err := CreateSQLMigration(dir, "add order index"); err == nil {
		t.Fatal("expected error for a reused name")
	}
	if _, err := CreateSQLMigration(dir, "!!!"); err == nil {
		t.Fatal("expected error for empty sanitized name")
	}
}

func TestDialect(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"":         "postgres",
		"postgres": "postgres",
		"SQLite":   "sqlite3",
		"sqlite3":  "sqlite3",
	}
	for in, want := range cases {
		if got := Dialect(in); got != want {
			t.Errorf("Dialect(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRun_SentOrdersUpAndDown(t *testing.T) {
	ctx := context.Background()
	client, err := db.New(ctx, config.DBConfig{
		DSN:          "file:" + filepath.Join(t.TempDir(), "archive.db"),
		Driver:       db.DriverSQLite,
		MaxOpenConns: 1,
	}, nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	sqlDB, err := client.DB().DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}

	if err := Run(ctx, sqlDB, Dialect(client.Driver()), migrationsDir, "up"); err != nil {
		t.Fatalf("goose up: %v", err)
	}
	if !client.DB().Migrator().HasTable("sent_orders") {
		t.Fatal("expected sent_orders table after up")
	}
	if !client.DB().Migrator().HasIndex("sent_orders", "sent_orders_order_id_idx") {
		t.Fatal("expected order id index after up")
	}

	if err := MigrateToVersion(ctx, sqlDB, Dialect(client.Driver()), migrationsDir, "0"); err != nil {
		t.Fatalf("migrate to 0: %v", err)
	}
	if client.DB().Migrator().HasTable("sent_orders") {
		t.Fatal("expected sent_orders dropped after down")
	}
}

func TestRun_RequiresArguments(t *testing.T) {
	t.Parallel()

	if err := Run(context.Background(), nil, "postgres", migrationsDir, "up"); err == nil {
		t.Fatal("expected db required error")
	}
}
