package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestExecuteWithEmptyDataDir(t *testing.T) {
	dir := t.TempDir()
	opts := Options{
		DataDir:     filepath.Join(dir, "data"),
		Sources:     filepath.Join(dir, "missing-sources.csv"),
		RedisPrefix: "proxywarden:",
	}

	if err := Execute(context.Background(), opts); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	for _, name := range []string{"settings.json", "proxy_validation_log.csv", "http.txt", "socks5.txt"} {
		if _, err := os.Stat(filepath.Join(opts.DataDir, name)); err != nil {
			t.Fatalf("expected %s after a run: %v", name, err)
		}
	}
}

func TestExecuteCancelledBeforeStart(t *testing.T) {
	dir := t.TempDir()
	opts := Options{
		DataDir: dir,
		Sources: filepath.Join(dir, "sources.csv"),
	}
	if err := os.WriteFile(filepath.Join(dir, "http.txt"), []byte("1.1.1.1:80\n"), 0o644); err != nil {
		t.Fatalf("write pool fixture: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := Execute(ctx, opts); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "http.txt"))
	if err != nil || string(data) != "1.1.1.1:80\n" {
		t.Fatalf("pool file changed by a cancelled run: %q %v", data, err)
	}
}

func TestExecuteFailsWhenDataDirCannotBeCreated(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if err := Execute(context.Background(), Options{DataDir: filepath.Join(file, "data")}); err == nil {
		t.Fatal("expected error when the data directory cannot be created")
	}
}
