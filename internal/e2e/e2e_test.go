package e2e

import (
	"strings"
	"testing"
)

func TestVersion(t *testing.T) {
	h := NewHarness(t)
	res := h.Run("version")
	if !res.Success() {
		t.Fatalf("version failed: %v", res.Err)
	}
	if !strings.Contains(res.Stdout, "decsync") {
		t.Errorf("version output = %q", res.Stdout)
	}
}

func TestCheck_CreatesInfo(t *testing.T) {
	h := NewHarness(t)
	res := h.Run("check", h.DecsyncDir())
	if !res.Success() {
		t.Fatalf("check failed: %v", res.Err)
	}
	if !strings.Contains(res.Stdout, h.DecsyncDir()) {
		t.Errorf("check output = %q", res.Stdout)
	}

	// A second run against the now-initialized directory also succeeds.
	res = h.Run("check", h.DecsyncDir())
	if !res.Success() {
		t.Fatalf("second check failed: %v", res.Err)
	}
}

func TestAppID(t *testing.T) {
	h := NewHarness(t)
	res := h.Run("app-id", "--name", "Reader")
	if !res.Success() {
		t.Fatalf("app-id failed: %v", res.Err)
	}
	if !strings.HasPrefix(strings.TrimSpace(res.Stdout), "Reader-") {
		t.Errorf("app-id output = %q", res.Stdout)
	}

	res = h.Run("app-id", "--name", "Reader", "--id", "7")
	if !res.Success() {
		t.Fatalf("app-id --id failed: %v", res.Err)
	}
	if !strings.HasSuffix(strings.TrimSpace(res.Stdout), "-00007") {
		t.Errorf("app-id --id output = %q", res.Stdout)
	}
}

func TestSetAndGet(t *testing.T) {
	h := NewHarness(t)

	res := h.Run("set", "--type", "rss", "name", `"My Feeds"`)
	if !res.Success() {
		t.Fatalf("set failed: %v", res.Err)
	}

	res = h.Run("get", "--type", "rss", "name")
	if !res.Success() {
		t.Fatalf("get failed: %v", res.Err)
	}
	if got := strings.TrimSpace(res.Stdout); got != `"My Feeds"` {
		t.Errorf("get output = %q, want %q", got, `"My Feeds"`)
	}

	// An unset key reads as the JSON literal null.
	res = h.Run("get", "--type", "rss", "color")
	if !res.Success() {
		t.Fatalf("get failed: %v", res.Err)
	}
	if got := strings.TrimSpace(res.Stdout); got != "null" {
		t.Errorf("get of unset key = %q, want null", got)
	}
}

func TestCollections(t *testing.T) {
	h := NewHarness(t)

	res := h.Run("set", "--type", "contacts", "--collection", "work", "name", `"Work"`)
	if !res.Success() {
		t.Fatalf("set failed: %v", res.Err)
	}
	res = h.Run("set", "--type", "contacts", "--collection", "home", "name", `"Home"`)
	if !res.Success() {
		t.Fatalf("set failed: %v", res.Err)
	}

	res = h.Run("collections", "--type", "contacts")
	if !res.Success() {
		t.Fatalf("collections failed: %v", res.Err)
	}
	for _, want := range []string{"work", "home", `"Work"`, `"Home"`} {
		if !strings.Contains(res.Stdout, want) {
			t.Errorf("collections output %q missing %q", res.Stdout, want)
		}
	}
}

func TestEntries_DumpsWinningValues(t *testing.T) {
	h := NewHarness(t)

	res := h.Run("set", "--type", "rss", "--path", "feeds,1", "name", `"Foo"`)
	if !res.Success() {
		t.Fatalf("set failed: %v", res.Err)
	}
	res = h.Run("set", "--type", "rss", "--path", "feeds,1", "name", `"Bar"`)
	if !res.Success() {
		t.Fatalf("set failed: %v", res.Err)
	}

	res = h.Run("entries", "--type", "rss", "--rebuild")
	if !res.Success() {
		t.Fatalf("entries failed: %v", res.Err)
	}
	if !strings.Contains(res.Stdout, `"Bar"`) {
		t.Errorf("entries output %q missing the winning value", res.Stdout)
	}
	if strings.Contains(res.Stdout, `"Foo"`) {
		t.Errorf("entries output %q includes a superseded value", res.Stdout)
	}
	if !strings.Contains(res.Stdout, "/feeds/1") {
		t.Errorf("entries output %q missing the path", res.Stdout)
	}
}

func TestGet_RequiresKey(t *testing.T) {
	h := NewHarness(t)
	res := h.Run("get", "--type", "rss")
	if res.Success() {
		t.Error("get without KEY succeeded")
	}
}
