package timezone

import (
	"fmt"
	"math"

	"github.com/ringsaturn/tzf"
)

// Finder maps a coordinate to an IANA identifier, or "" when the point is
// outside every known polygon. tzf.F satisfies it.
type Finder interface {
	GetTimezoneName(lng float64, lat float64) string
}

// Locator resolves coordinates to catalog zones.
type Locator struct {
	finder  Finder
	catalog *Catalog
}

// NewLocator wraps finder so that every answer is checked against catalog.
func NewLocator(catalog *Catalog, finder Finder) *Locator {
	return &Locator{finder: finder, catalog: catalog}
}

// NewDefaultLocator loads the embedded tzf boundary data. It takes about a second
// and roughly 100 MB while decoding, so build it once at startup.
func NewDefaultLocator(catalog *Catalog) (*Locator, error) {
	finder, err := tzf.NewDefaultFinder()
	if err != nil {
		return nil, fmt.Errorf("load tzf boundaries: %w", err)
	}
	return NewLocator(catalog, finder), nil
}

// validateCoordinates reports ErrInvalidCoordinates unless lat is in
// [-90, 90] and lng in [-180, 180].
func validateCoordinates(lat, lng float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return fmt.Errorf("%w: latitude %v not in [-90, 90]", ErrInvalidCoordinates, lat)
	}
	if math.IsNaN(lng) || lng < -180 || lng > 180 {
		return fmt.Errorf("%w: longitude %v not in [-180, 180]", ErrInvalidCoordinates, lng)
	}
	return nil
}

// Locate returns the zone covering (lat, lng). A name the finder knows but
// the catalog does not is reported as ErrUnknownZone.
func (l *Locator) Locate(lat, lng float64) (Zone, error) {
	if err := validateCoordinates(lat, lng); err != nil {
		return Zone{}, err
	}

	name := l.finder.GetTimezoneName(lng, lat)
	if name == "" {
		return Zone{}, fmt.Errorf("%w: no timezone at %v,%v", ErrUnknownZone, lat, lng)
	}
	return l.catalog.Validate(name)
}
