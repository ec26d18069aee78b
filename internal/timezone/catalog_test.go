package timezone

import (
	"errors"
	"slices"
	"testing"
	"testing/fstest"
)

func TestDefault_ContainsCommonZones(t *testing.T) {
	t.Parallel()

	catalog, _ := Default()

	if catalog.Len() < 400 {
		t.Fatalf("expected several hundred zones, got %d", catalog.Len())
	}

	for _, name := range []string{"UTC", "America/New_York", "Europe/Belgrade", "Asia/Tokyo", "Asia/Kolkata"} {
		if _, err := catalog.Validate(name); err != nil {
			t.Errorf("Validate(%q) error = %v", name, err)
		}
	}
}

func TestCatalog_ListIsSortedCopy(t *testing.T) {
	t.Parallel()

	catalog, _ := Default()
	names := catalog.List()

	if !slices.IsSorted(names) {
		t.Error("List should be sorted alphabetically")
	}

	names[0] = "mutated"
	if catalog.List()[0] == "mutated" {
		t.Error("List should return a copy")
	}
}

func TestCatalog_Validate(t *testing.T) {
	t.Parallel()

	catalog, _ := NewCatalog([]string{"Europe/Belgrade", "UTC"})

	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"known zone", "Europe/Belgrade", false},
		{"utc", "UTC", false},
		{"wrong case", "europe/belgrade", true},
		{"not in catalog", "America/New_York", true},
		{"invalid", "Invalid/Timezone", true},
		{"empty", "", true},
		{"local is not a zone", "Local", true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			zone, err := catalog.Validate(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownZone) {
					t.Errorf("Validate(%q) error = %v, want ErrUnknownZone", tt.raw, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate(%q) unexpected error: %v", tt.raw, err)
			}
			if zone.Name() != tt.raw {
				t.Errorf("Name() = %q, want %q", zone.Name(), tt.raw)
			}
			if zone.Location() == nil {
				t.Error("Location() should not be nil")
			}
		})
	}
}

func TestNewCatalog_SkipsUnloadable(t *testing.T) {
	t.Parallel()

	catalog, skipped := NewCatalog([]string{"# comment", "", "UTC", "Not/AZone", "UTC"})

	if catalog.Len() != 1 {
		t.Errorf("expected 1 zone, got %d", catalog.Len())
	}
	if !slices.Equal(skipped, []string{"Not/AZone"}) {
		t.Errorf("skipped = %v, want [Not/AZone]", skipped)
	}
}

func TestLoadDir(t *testing.T) {
	t.Parallel()

	tzif := &fstest.MapFile{Data: []byte("TZif2 fake body")}
	fsys := fstest.MapFS{
		"Europe/Belgrade":       tzif,
		"America/New_York":      tzif,
		"posix/Europe/Belgrade": tzif,
		"right/UTC":             tzif,
		"localtime":             tzif,
		"zone.tab":              {Data: []byte("# not a zone file")},
		"Fake/Zone":             tzif,
	}

	catalog, skipped, err := LoadDir(fsys)
	if err != nil {
		t.Fatalf("LoadDir failed: %v", err)
	}

	want := []string{"America/New_York", "Europe/Belgrade"}
	if !slices.Equal(catalog.List(), want) {
		t.Errorf("List() = %v, want %v", catalog.List(), want)
	}
	if !slices.Equal(skipped, []string{"Fake/Zone"}) {
		t.Errorf("skipped = %v, want [Fake/Zone]", skipped)
	}
}

func TestLoadDir_Empty(t *testing.T) {
	t.Parallel()

	_, _, err := LoadDir(fstest.MapFS{"README": {Data: []byte("hello")}})
	if err == nil {
		t.Fatal("expected error for tree without zone files")
	}
}
