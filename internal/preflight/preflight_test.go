package preflight

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"kotoba/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if result := CheckFreeSpace("scratch", dir, 1); !result.Passed {
		t.Fatalf("expected pass with a 1 byte minimum, got %s", result.Detail)
	}
	result := CheckFreeSpace("scratch", dir, math.MaxUint64)
	if result.Passed || !strings.Contains(result.Detail, "need") {
		t.Fatalf("expected failure for impossible minimum, got %+v", result)
	}
	if result := CheckFreeSpace("scratch", filepath.Join(dir, "missing"), 1); result.Passed {
		t.Fatal("expected failure for missing path")
	}
}

func TestCheckOpenAI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	if result := CheckOpenAI(context.Background(), config.OpenAI{APIKey: "good-key", BaseURL: srv.URL}); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	result := CheckOpenAI(context.Background(), config.OpenAI{APIKey: "bad-key", BaseURL: srv.URL})
	if result.Passed || !strings.Contains(result.Detail, "auth failed") {
		t.Fatalf("expected auth failure, got %+v", result)
	}
	if result := CheckOpenAI(context.Background(), config.OpenAI{BaseURL: srv.URL}); result.Passed {
		t.Fatal("expected failure for missing key")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_ReportsMissingBinaries(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	cfg := config.Default()
	cfg.Paths.OutputDir = t.TempDir()
	cfg.Paths.ScratchDir = t.TempDir()

	results := RunAll(context.Background(), &cfg)
	// output, scratch, free space, ffmpeg, ffprobe
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d: %+v", len(results), results)
	}
	for _, r := range results[:3] {
		if !r.Passed {
			t.Errorf("check %q failed: %s", r.Name, r.Detail)
		}
	}
	err := Failed(results)
	if err == nil || !strings.Contains(err.Error(), "FFmpeg") || !strings.Contains(err.Error(), "FFprobe") {
		t.Fatalf("expected missing binaries in error, got %v", err)
	}
}

func TestRunAll_PassesWithStubbedBinaries(t *testing.T) {
	binDir := t.TempDir()
	for _, name := range []string{"ffmpeg", "ffprobe"} {
		if err := os.WriteFile(filepath.Join(binDir, name), []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	t.Setenv("PATH", binDir)
	cfg := config.Default()
	cfg.Paths.OutputDir = t.TempDir()
	cfg.Paths.ScratchDir = t.TempDir()

	if err := Failed(RunAll(context.Background(), &cfg)); err != nil {
		t.Fatalf("expected all checks to pass: %v", err)
	}
}
