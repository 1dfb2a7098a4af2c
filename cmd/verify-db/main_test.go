package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestDiscoverMigrations_SortedWithChecksums(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"002_bags.sql":  "CREATE TABLE bags();",
		"001_init.sql":  "CREATE TABLE receives();",
		"README.md":     "ignored",
		"apply_note.go": "package x",
	})

	got, err := discoverMigrations(dir)
	if err != nil {
		t.Fatalf("discoverMigrations: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(got))
	}
	if got[0].Version != "001" || got[1].Filename != "002_bags.sql" {
		t.Errorf("unexpected order: %+v", got)
	}
	if len(got[0].Checksum) != 64 || got[0].Checksum == got[1].Checksum {
		t.Errorf("unexpected checksums: %q %q", got[0].Checksum, got[1].Checksum)
	}
}

func TestDiscoverMigrations_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
	}{
		{"duplicate version", map[string]string{"001_a.sql": "", "001_b.sql": ""}},
		{"no underscore", map[string]string{"init.sql": ""}},
		{"empty version", map[string]string{"_init.sql": ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := discoverMigrations(writeFiles(t, tt.files)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}
