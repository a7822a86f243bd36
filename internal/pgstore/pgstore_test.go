package pgstore

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"testing"
)

func TestOpenRequiresDSN(t *testing.T) {
	if _, err := Open(context.Background(), Config{}); !errors.Is(err, ErrDSNRequired) {
		t.Fatalf("expected ErrDSNRequired, got %v", err)
	}
}

func TestOpenRejectsMalformedDSN(t *testing.T) {
	if _, err := Open(context.Background(), Config{DSN: "postgres://%zz"}); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestConfigDefaults(t *testing.T) {
	var c Config
	c.defaults()
	if c.MaxConns != 10 || c.MinConns != 1 || c.MaxConnLifetime == 0 {
		t.Fatalf("unexpected defaults %+v", c)
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	fsys, err := migrationsFS()
	if err != nil {
		t.Fatalf("sub fs: %v", err)
	}
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("expected 2 migrations, got %v", names)
	}
	for _, name := range names {
		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if !strings.Contains(string(body), "-- +goose Up") || !strings.Contains(string(body), "-- +goose Down") {
			t.Fatalf("%s lacks goose annotations", name)
		}
	}
}
