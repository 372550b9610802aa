package decsync

import "testing"

func TestListenerMatches(t *testing.T) {
	tests := []struct {
		name    string
		subpath []string
		path    []string
		want    bool
	}{
		{"empty matches everything", nil, []string{"a", "b"}, true},
		{"empty matches empty", nil, nil, true},
		{"exact", []string{"a", "b"}, []string{"a", "b"}, true},
		{"proper prefix", []string{"a"}, []string{"a", "b"}, true},
		{"mismatch", []string{"a"}, []string{"b"}, false},
		{"longer than path", []string{"a", "b"}, []string{"a"}, false},
		{"segment mismatch", []string{"a", "x"}, []string{"a", "b", "c"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := listener{subpath: tt.subpath}
			if got := l.matches(tt.path); got != tt.want {
				t.Errorf("matches(%v, %v) = %v, want %v", tt.subpath, tt.path, got, tt.want)
			}
		})
	}
}

func TestNotifyListeners_RegistrationOrder(t *testing.T) {
	d := newTestDecsync(t, t.TempDir(), "app-id")

	var calls []string
	d.AddListener(nil, func([]string, string, string, string, any) {
		calls = append(calls, "first")
	})
	d.AddListener(nil, func([]string, string, string, string, any) {
		calls = append(calls, "second")
	})

	if ok := d.notifyListeners([]string{"p"}, "2024-01-01T00:00:00.000", `"k"`, `"v"`, nil); !ok {
		t.Fatal("notifyListeners() = false, want true")
	}
	if len(calls) != 2 || calls[0] != "first" || calls[1] != "second" {
		t.Errorf("calls = %v, want [first second]", calls)
	}
}

func TestNotifyListeners_FailureStopsChain(t *testing.T) {
	d := newTestDecsync(t, t.TempDir(), "app-id")

	var reached bool
	d.AddListenerWithSuccess(nil, func([]string, string, string, string, any) bool {
		return false
	})
	d.AddListener(nil, func([]string, string, string, string, any) {
		reached = true
	})

	if ok := d.notifyListeners([]string{"p"}, "2024-01-01T00:00:00.000", `"k"`, `"v"`, nil); ok {
		t.Error("notifyListeners() = true, want false")
	}
	if reached {
		t.Error("later listener invoked after failure")
	}
}

func TestDominates(t *testing.T) {
	tests := []struct {
		name                     string
		dt, app, otherDt, otherApp string
		want                     bool
	}{
		{"later datetime", "2024-01-02T00:00:00.000", "a", "2024-01-01T00:00:00.000", "z", true},
		{"earlier datetime", "2024-01-01T00:00:00.000", "z", "2024-01-02T00:00:00.000", "a", false},
		{"tie greater app", "2024-01-01T00:00:00.000", "b", "2024-01-01T00:00:00.000", "a", true},
		{"tie smaller app", "2024-01-01T00:00:00.000", "a", "2024-01-01T00:00:00.000", "b", false},
		{"identical", "2024-01-01T00:00:00.000", "a", "2024-01-01T00:00:00.000", "a", false},
		{"tie against empty app", "2024-01-01T00:00:00.000", "a", "2024-01-01T00:00:00.000", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := dominates(tt.dt, tt.app, tt.otherDt, tt.otherApp); got != tt.want {
				t.Errorf("dominates() = %v, want %v", got, tt.want)
			}
		})
	}
}
