package runid

import (
	"regexp"
	"testing"
	"time"
)

// idPattern matches the full format: run_<YYYYMMDD>T<HHmmss>Z_<8hex>
var idPattern = regexp.MustCompile(`^run_\d{8}T\d{6}Z_[0-9a-f]{8}$`)

func TestNew(t *testing.T) {
	t.Run("valid format", func(t *testing.T) {
		id := New()
		if !idPattern.MatchString(id) {
			t.Fatalf("New() = %q, does not match expected pattern run_<timestamp>_<8hex>", id)
		}
	})

	t.Run("timestamp is close to now", func(t *testing.T) {
		before := time.Now().UTC()
		id := New()
		after := time.Now().UTC()

		ts, err := Parse(id)
		if err != nil {
			t.Fatalf("Parse(%q) returned error: %v", id, err)
		}

		if ts.Before(before.Truncate(time.Second)) {
			t.Errorf("parsed time %v is before test start %v", ts, before)
		}
		// after + 1s to account for truncation to seconds
		if ts.After(after.Add(time.Second)) {
			t.Errorf("parsed time %v is after test end %v", ts, after)
		}
	})

	t.Run("unique IDs", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 100; i++ {
			id := New()
			if seen[id] {
				t.Fatalf("New() produced duplicate ID %q", id)
			}
			seen[id] = true
		}
	})
}

func TestParse(t *testing.T) {
	cases := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"valid", "run_20260826T143012Z_6f2c9a1b", false},
		{"wrong prefix", "dep_20260826T143012Z_6f2c9a1b", true},
		{"missing random", "run_20260826T143012Z", true},
		{"bad timestamp", "run_2026-08-26_6f2c9a1b", true},
		{"short random", "run_20260826T143012Z_6f2c", true},
		{"non-hex random", "run_20260826T143012Z_6f2c9a1z", true},
		{"empty", "", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.id)
			if tc.wantErr && err == nil {
				t.Errorf("Parse(%q) should have failed", tc.id)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Parse(%q) returned error: %v", tc.id, err)
			}
		})
	}
}

func TestIsValid(t *testing.T) {
	if !IsValid(New()) {
		t.Error("IsValid should accept a freshly generated ID")
	}
	if IsValid("run_bogus") {
		t.Error("IsValid should reject a malformed ID")
	}
}
