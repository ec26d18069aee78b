// Package timezone resolves IANA zone identifiers and converts instants and
// naive datetimes between zones.
package timezone

import (
	"bufio"
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"time"
	_ "time/tzdata" // zone data for hosts without /usr/share/zoneinfo
)

//go:embed zones.txt
var embeddedZones []byte

// tzifMagic is the header every compiled zoneinfo file starts with.
var tzifMagic = []byte("TZif")

// Zone is a validated IANA zone. The zero value is not valid; obtain one
// from Catalog.Validate.
type Zone struct {
	name string
	loc  *time.Location
}

// Name returns the IANA identifier.
func (z Zone) Name() string {
	return z.name
}

// Location returns the loaded location.
func (z Zone) Location() *time.Location {
	return z.loc
}

// Catalog is the read-only set of known zones. Safe for concurrent use.
type Catalog struct {
	zones map[string]Zone
	names []string
}

// NewCatalog loads every identifier in names. Identifiers the linked
// timezone database cannot load are skipped and returned in skipped.
func NewCatalog(names []string) (catalog *Catalog, skipped []string) {
	c := &Catalog{zones: make(map[string]Zone, len(names))}

	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || strings.HasPrefix(name, "#") {
			continue
		}
		if _, dup := c.zones[name]; dup {
			continue
		}

		loc, err := time.LoadLocation(name)
		if err != nil || name == "Local" {
			skipped = append(skipped, name)
			continue
		}

		c.zones[name] = Zone{name: name, loc: loc}
		c.names = append(c.names, name)
	}

	slices.Sort(c.names)
	return c, skipped
}

// Default builds the catalog from the embedded identifier table.
func Default() (*Catalog, []string) {
	var names []string
	scanner := bufio.NewScanner(bytes.NewReader(embeddedZones))
	for scanner.Scan() {
		names = append(names, scanner.Text())
	}
	return NewCatalog(names)
}

// LoadDir builds the catalog from a zoneinfo tree such as
// os.DirFS("/usr/share/zoneinfo"). Only TZif files are considered; the
// posix/ and right/ mirrors are ignored.
func LoadDir(fsys fs.FS) (*Catalog, []string, error) {
	var names []string

	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == "posix" || path == "right" {
				return fs.SkipDir
			}
			return nil
		}
		if path == "localtime" || path == "posixrules" || path == "Factory" {
			return nil
		}

		ok, err := isTZif(fsys, path)
		if err != nil {
			return err
		}
		if ok {
			names = append(names, path)
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("walk zoneinfo: %w", err)
	}
	if len(names) == 0 {
		return nil, nil, errors.New("walk zoneinfo: no zone files found")
	}

	catalog, skipped := NewCatalog(names)
	return catalog, skipped, nil
}

func isTZif(fsys fs.FS, path string) (bool, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return false, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	header := make([]byte, len(tzifMagic))
	n, _ := f.Read(header)
	return bytes.Equal(header[:n], tzifMagic), nil
}

// List returns all identifiers in alphabetical order. The returned slice
// is a copy.
func (c *Catalog) List() []string {
	return slices.Clone(c.names)
}

// Len returns the number of known zones.
func (c *Catalog) Len() int {
	return len(c.names)
}

// Validate returns the zone for raw, or ErrUnknownZone.
func (c *Catalog) Validate(raw string) (Zone, error) {
	zone, ok := c.zones[raw]
	if !ok {
		return Zone{}, fmt.Errorf("%w: %q", ErrUnknownZone, raw)
	}
	return zone, nil
}
