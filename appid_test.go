package decsync

import (
	"strings"
	"testing"
)

func TestGetAppID(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	id, err := GetAppID("Reader")
	if err != nil {
		t.Fatalf("GetAppID() error: %v", err)
	}
	if !strings.HasPrefix(id, "Reader-") {
		t.Errorf("GetAppID() = %q, want Reader- prefix", id)
	}
	if len(id) < len("Reader-")+8 {
		t.Errorf("GetAppID() = %q, device part too short", id)
	}

	again, err := GetAppID("Reader")
	if err != nil {
		t.Fatalf("GetAppID() error: %v", err)
	}
	if again != id {
		t.Errorf("GetAppID() not stable: %q then %q", id, again)
	}
}

func TestGetAppIDWithID(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	id, err := GetAppIDWithID("Reader", 42)
	if err != nil {
		t.Fatalf("GetAppIDWithID() error: %v", err)
	}
	if !strings.HasSuffix(id, "-00042") {
		t.Errorf("GetAppIDWithID() = %q, want -00042 suffix", id)
	}

	for _, bad := range []int{-1, 100000, 1 << 20} {
		if _, err := GetAppIDWithID("Reader", bad); err == nil {
			t.Errorf("GetAppIDWithID(%d) succeeded, want range error", bad)
		}
	}
}

func TestGenerateAppID(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	id, err := GenerateAppID("Reader")
	if err != nil {
		t.Fatalf("GenerateAppID() error: %v", err)
	}
	parts := strings.Split(id, "-")
	if len(parts) != 3 {
		t.Fatalf("GenerateAppID() = %q, want app-device-id shape", id)
	}
	if len(parts[2]) != 5 {
		t.Errorf("instance id %q not padded to 5 digits", parts[2])
	}
}
