package config

import (
	"testing"
	"time"
)

func TestIntEnv(t *testing.T) {
	t.Setenv("TEST_INT", "12")
	if got := intEnv("TEST_INT", 5); got != 12 {
		t.Fatalf("intEnv = %d, want 12", got)
	}
	t.Setenv("TEST_INT", "garbage")
	if got := intEnv("TEST_INT", 5); got != 5 {
		t.Fatalf("bad value should keep default, got %d", got)
	}
	t.Setenv("TEST_INT", "-3")
	if got := intEnv("TEST_INT", 5); got != 5 {
		t.Fatalf("negative value should keep default, got %d", got)
	}
}

func TestDurationEnv(t *testing.T) {
	t.Setenv("TEST_DUR", "90s")
	if got := durationEnv("TEST_DUR", time.Minute); got != 90*time.Second {
		t.Fatalf("durationEnv = %v, want 90s", got)
	}
	t.Setenv("TEST_DUR", "")
	if got := durationEnv("TEST_DUR", time.Minute); got != time.Minute {
		t.Fatalf("empty value should keep default, got %v", got)
	}
}

func TestLoadInterestingOverride(t *testing.T) {
	t.Setenv("INTERESTING_TESTS", " a, b ,,c ")
	got := loadInteresting()
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("unexpected list: %v", got)
	}

	t.Setenv("INTERESTING_TESTS", "")
	if got := loadInteresting(); len(got) != len(defaultInteresting) {
		t.Fatalf("expected built-in list, got %d entries", len(got))
	}
}

func TestArchiveConfigLocalMode(t *testing.T) {
	t.Setenv("ARCHIVE_MINIO_ENDPOINT", "minio:9000")
	cfg := loadArchiveConfig("local")
	if !cfg.Enabled || cfg.Endpoint != "minio:9000" {
		t.Fatalf("local endpoint should enable the archive: %+v", cfg)
	}
	if cfg.UseSSL {
		t.Fatalf("local mode never uses SSL")
	}

	t.Setenv("ARCHIVE_MINIO_ENDPOINT", "")
	cfg = loadArchiveConfig("local")
	if cfg.Enabled {
		t.Fatalf("no endpoint, archive should be disabled: %+v", cfg)
	}
}
