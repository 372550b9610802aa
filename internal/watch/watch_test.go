package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRun_FiresOnFileChange(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer w.Close()

	fired := make(chan struct{}, 16)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, Options{Debounce: 10 * time.Millisecond, PollInterval: time.Hour}, func() error {
			fired <- struct{}{}
			return nil
		})
	}()

	// Give the loop a moment to start, then touch a file.
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(dir, "log"), []byte("x\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case <-fired:
	case <-ctx.Done():
		t.Fatal("callback not fired after file change")
	}

	cancel()
	if err := <-done; err != context.Canceled && err != context.DeadlineExceeded {
		t.Errorf("Run() returned %v", err)
	}
}

func TestRun_SeesNewSubdirectories(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer w.Close()

	fired := make(chan struct{}, 16)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go func() {
		_ = w.Run(ctx, Options{Debounce: 10 * time.Millisecond, PollInterval: time.Hour}, func() error {
			fired <- struct{}{}
			return nil
		})
	}()

	time.Sleep(50 * time.Millisecond)
	sub := filepath.Join(dir, "new-entries", "app-a")
	if err := os.MkdirAll(sub, 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	select {
	case <-fired:
	case <-ctx.Done():
		t.Fatal("callback not fired after directory creation")
	}

	// Drain, then write inside the new directory; the watcher must have
	// registered it.
	drain(fired)
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(sub, "feeds"), []byte("x\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case <-fired:
	case <-ctx.Done():
		t.Fatal("callback not fired for file in new directory")
	}
}

func TestRun_PollFallback(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer w.Close()

	fired := make(chan struct{}, 16)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go func() {
		_ = w.Run(ctx, Options{Debounce: time.Hour, PollInterval: 20 * time.Millisecond}, func() error {
			fired <- struct{}{}
			return nil
		})
	}()

	select {
	case <-fired:
	case <-ctx.Done():
		t.Fatal("poll fallback never fired")
	}
}

func drain(ch chan struct{}) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}
