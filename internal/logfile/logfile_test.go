package logfile

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestAppendReadFrom(t *testing.T) {
	file := filepath.Join(t.TempDir(), "sub", "log")

	if err := Append(file, []string{"one\n", "two\n"}); err != nil {
		t.Fatalf("Append() error: %v", err)
	}
	if err := Append(file, []string{"three\n"}); err != nil {
		t.Fatalf("Append() error: %v", err)
	}

	tests := []struct {
		name  string
		after int
		want  []Line
	}{
		{"all", 0, []Line{{1, "one"}, {2, "two"}, {3, "three"}}},
		{"from two", 1, []Line{{2, "two"}, {3, "three"}}},
		{"none left", 3, nil},
		{"past end", 10, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadFrom(file, tt.after)
			if err != nil {
				t.Fatalf("ReadFrom(%d) error: %v", tt.after, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ReadFrom(%d) = %v, want %v", tt.after, got, tt.want)
			}
		})
	}
}

func TestAppend_Empty(t *testing.T) {
	file := filepath.Join(t.TempDir(), "log")
	if err := Append(file, nil); err != nil {
		t.Fatalf("Append(nil) error: %v", err)
	}
	if _, err := os.Stat(file); !os.IsNotExist(err) {
		t.Errorf("Append(nil) created %s", file)
	}
}

func TestReadFrom_SkipsUnterminatedFragment(t *testing.T) {
	file := filepath.Join(t.TempDir(), "log")
	if err := os.WriteFile(file, []byte("one\ntwo\npart"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := ReadFrom(file, 0)
	if err != nil {
		t.Fatalf("ReadFrom() error: %v", err)
	}
	want := []Line{{1, "one"}, {2, "two"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ReadFrom() = %v, want %v", got, want)
	}

	// The fragment becomes visible once the newline lands.
	if err := Append(file, []string{"ial\n"}); err != nil {
		t.Fatalf("Append() error: %v", err)
	}
	got, err = ReadFrom(file, 2)
	if err != nil {
		t.Fatalf("ReadFrom() error: %v", err)
	}
	if want := []Line{{3, "partial"}}; !reflect.DeepEqual(got, want) {
		t.Errorf("ReadFrom() after completion = %v, want %v", got, want)
	}
}

func TestCountLines(t *testing.T) {
	file := filepath.Join(t.TempDir(), "log")
	if n, err := CountLines(file); err == nil || n != 0 {
		t.Errorf("CountLines(missing) = %d, %v; want error", n, err)
	}

	if err := Append(file, []string{"a\n", "b\n"}); err != nil {
		t.Fatalf("Append() error: %v", err)
	}
	n, err := CountLines(file)
	if err != nil {
		t.Fatalf("CountLines() error: %v", err)
	}
	if n != 2 {
		t.Errorf("CountLines() = %d, want 2", n)
	}
}

func TestCursor_RoundTrip(t *testing.T) {
	file := filepath.Join(t.TempDir(), "cursors", "app-b", "feeds")

	if got := LoadCursor(file); got != 0 {
		t.Errorf("LoadCursor(missing) = %d, want 0", got)
	}
	if err := StoreCursor(file, 42); err != nil {
		t.Fatalf("StoreCursor() error: %v", err)
	}
	if got := LoadCursor(file); got != 42 {
		t.Errorf("LoadCursor() = %d, want 42", got)
	}
	if err := StoreCursor(file, 43); err != nil {
		t.Fatalf("StoreCursor() error: %v", err)
	}
	if got := LoadCursor(file); got != 43 {
		t.Errorf("LoadCursor() after update = %d, want 43", got)
	}
}

func TestLoadCursor_Garbage(t *testing.T) {
	file := filepath.Join(t.TempDir(), "cursor")
	if err := os.WriteFile(file, []byte("not a number"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := LoadCursor(file); got != 0 {
		t.Errorf("LoadCursor(garbage) = %d, want 0", got)
	}
}
