package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shoplist/shoplist/internal/auth"
	"github.com/shoplist/shoplist/internal/config"
	"github.com/shoplist/shoplist/internal/database"
)

func TestReadPassword(t *testing.T) {
	got, err := readPassword(strings.NewReader("hunter2\r\nignored\n"))
	if err != nil {
		t.Fatal(err)
	}
	if got != "hunter2" {
		t.Fatalf("readPassword = %q, want %q", got, "hunter2")
	}

	got, err = readPassword(strings.NewReader("no-newline"))
	if err != nil || got != "no-newline" {
		t.Fatalf("readPassword without newline = %q, %v", got, err)
	}

	if _, err := readPassword(strings.NewReader("\n")); err == nil {
		t.Fatal("expected empty password to fail")
	}
}

func TestCreateUserRejectsDuplicates(t *testing.T) {
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "cli.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	authSvc := auth.NewService("cli-test-secret-123", time.Hour)

	user, err := createUser(ctx, db, authSvc, " bob ", "pw")
	if err != nil {
		t.Fatal(err)
	}
	if user.Username != "bob" || user.ID == 0 {
		t.Fatalf("unexpected user %+v", user)
	}
	if err := authSvc.CheckPassword(user.PasswordHash, "pw"); err != nil {
		t.Fatalf("stored hash does not match: %v", err)
	}

	if _, err := createUser(ctx, db, authSvc, "bob", "other"); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if _, err := createUser(ctx, db, authSvc, "  ", "pw"); err == nil {
		t.Fatal("expected blank username to fail")
	}
}

func TestCreateUserCommand(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "cmd.db")
	t.Setenv("SHOPLIST_DB_DRIVER", "sqlite")
	t.Setenv("SHOPLIST_DB_DSN", dsn)

	root := newRootCmd()
	root.SetIn(bytes.NewBufferString("s3cret\n"))
	root.SetArgs([]string{"create-user", "--username", "carol"})
	if err := root.Execute(); err != nil {
		t.Fatalf("create-user: %v", err)
	}

	db, err := database.OpenSQLite(dsn)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if _, err := db.GetUserByUsername(context.Background(), "carol"); err != nil {
		t.Fatalf("expected carol to exist: %v", err)
	}

	root = newRootCmd()
	root.SetArgs([]string{"create-user"})
	if err := root.Execute(); err == nil {
		t.Fatal("expected missing --username to fail")
	}
}

func TestOpenDBRejectsUnknownDriver(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Driver = "mysql"
	if _, err := openDB(cfg); err == nil {
		t.Fatal("expected unsupported driver error")
	}
}

func TestExporterOptions(t *testing.T) {
	t.Setenv("SHOPLIST_OTEL_EXPORTER_OTLP_ENDPOINT", "")
	if _, ok := exporterOptions(); ok {
		t.Fatal("expected tracing to stay disabled without an endpoint")
	}

	t.Setenv("SHOPLIST_OTEL_EXPORTER_OTLP_ENDPOINT", "http://collector:4318/v1/traces")
	opts, ok := exporterOptions()
	if !ok {
		t.Fatal("expected tracing to be enabled")
	}
	if len(opts) != 3 {
		t.Fatalf("expected endpoint, path and insecure options, got %d", len(opts))
	}

	shutdown, err := initTracing(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
}
