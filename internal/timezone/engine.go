package timezone

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// unixToInternal is the number of seconds from 0001-01-01 to 1970-01-01.
// time.Unix adds it to its argument in int64.
const unixToInternal int64 = 62135596800

// Instants time.Time can hold and compute calendar fields for, about
// 292 billion years either side of 1970. Below minTimestamp the package's
// unsigned calendar arithmetic wraps; the slack keeps the widest zone
// offsets inside it.
const (
	minTimestamp int64 = -9223372028683828992 + 2*offsetWindow
	maxTimestamp int64 = math.MaxInt64 - unixToInternal
)

// offsetWindow bounds how far apart the offsets on either side of a local
// time are sampled. Transitions of one zone are always further apart.
const offsetWindow = 24 * 60 * 60

// ZoneInfo describes a zone at one instant.
type ZoneInfo struct {
	Identifier       string
	UTCOffsetSeconds int
	Abbreviation     string
	IsDST            bool
	Local            time.Time
}

// UTCOffset formats the offset as UTC+HH:MM.
func (z ZoneInfo) UTCOffset() string {
	sign := '+'
	offset := z.UTCOffsetSeconds
	if offset < 0 {
		sign = '-'
		offset = -offset
	}
	return fmt.Sprintf("UTC%c%02d:%02d", sign, offset/3600, (offset%3600)/60)
}

// Timestamp returns the unix seconds of the instant described.
func (z ZoneInfo) Timestamp() int64 {
	return z.Local.Unix()
}

// ConversionResult is the outcome of Engine.Convert.
type ConversionResult struct {
	UTC  time.Time
	From ZoneInfo
	To   ZoneInfo
	// Ambiguous is set when the local datetime occurred twice and the
	// earlier instant was chosen.
	Ambiguous bool
	// Shifted is set when the local datetime fell in a gap and was moved
	// forward by the gap length.
	Shifted bool
}

// Engine computes zone info and conversions against a Catalog. It holds no
// mutable state.
type Engine struct {
	catalog *Catalog
}

// NewEngine creates an Engine backed by catalog.
func NewEngine(catalog *Catalog) *Engine {
	return &Engine{catalog: catalog}
}

// Catalog returns the catalog the engine validates against.
func (e *Engine) Catalog() *Catalog {
	return e.catalog
}

// ZoneInfo describes zone at the instant at.
func (e *Engine) ZoneInfo(zone Zone, at time.Time) ZoneInfo {
	local := at.In(zone.loc)
	abbr, offset := local.Zone()

	return ZoneInfo{
		Identifier:       zone.name,
		UTCOffsetSeconds: offset,
		Abbreviation:     abbreviation(abbr),
		IsDST:            local.IsDST(),
		Local:            local,
	}
}

// Lookup validates name and describes it at the instant at.
func (e *Engine) Lookup(name string, at time.Time) (ZoneInfo, error) {
	zone, err := e.catalog.Validate(name)
	if err != nil {
		return ZoneInfo{}, err
	}
	return e.ZoneInfo(zone, at), nil
}

// Convert resolves req to a UTC instant and describes it in the target zone.
//
// Ambiguous local times resolve to the earlier instant. Local times inside
// a spring-forward gap are read with the offset in effect before the
// transition, which moves them forward by the length of the gap.
func (e *Engine) Convert(req ConversionRequest) (ConversionResult, error) {
	to, err := e.side("target", req.target())
	if err != nil {
		return ConversionResult{}, err
	}

	switch r := req.(type) {
	case ByTimestamp:
		utc, err := TimestampToUTC(r.Timestamp)
		if err != nil {
			return ConversionResult{}, err
		}
		return ConversionResult{
			UTC:  utc,
			From: e.ZoneInfo(Zone{name: "UTC", loc: time.UTC}, utc),
			To:   e.ZoneInfo(to, utc),
		}, nil

	case ByDatetime:
		from, err := e.side("source", r.From)
		if err != nil {
			return ConversionResult{}, err
		}
		utc, ambiguous, shifted := resolveLocal(r.Datetime, from.loc)
		if _, err := TimestampToUTC(utc.Unix()); err != nil {
			return ConversionResult{}, err
		}
		return ConversionResult{
			UTC:       utc,
			From:      e.ZoneInfo(from, utc),
			To:        e.ZoneInfo(to, utc),
			Ambiguous: ambiguous,
			Shifted:   shifted,
		}, nil

	default:
		return ConversionResult{}, fmt.Errorf("%w: unsupported request %T", ErrInvalidRequest, req)
	}
}

// TimestampToUTC converts unix seconds to a UTC time. Only values within
// tens of billions of seconds of the int64 limits are rejected, because
// time.Time cannot represent them.
func TimestampToUTC(ts int64) (time.Time, error) {
	if ts < minTimestamp || ts > maxTimestamp {
		return time.Time{}, fmt.Errorf("%w: %d", ErrInvalidTimestamp, ts)
	}
	return time.Unix(ts, 0).UTC(), nil
}

// FormatInstant renders t as RFC 3339. Years past 9999 get a leading
// "+" and years before 0000 a leading "-", the ISO 8601 expanded form.
func FormatInstant(t time.Time) string {
	s := t.Format(time.RFC3339Nano)
	if t.Year() > 9999 {
		return "+" + s
	}
	return s
}

func (e *Engine) side(role, name string) (Zone, error) {
	zone, err := e.catalog.Validate(name)
	if err != nil {
		return Zone{}, fmt.Errorf("%s: %w", role, err)
	}
	return zone, nil
}

// resolveLocal maps a wall-clock datetime in loc to a UTC instant.
func resolveLocal(naive NaiveDateTime, loc *time.Location) (utc time.Time, ambiguous, shifted bool) {
	wall := naive.wall()
	wallSec := wall.Unix()

	before := offsetAt(wallSec-offsetWindow, loc)
	candidates := []int{before, offsetAt(wallSec, loc), offsetAt(wallSec+offsetWindow, loc)}

	// An offset o is valid when the instant wall-o really has offset o.
	var valid []int64
	seen := make(map[int]bool, len(candidates))
	for _, off := range candidates {
		if seen[off] {
			continue
		}
		seen[off] = true

		sec := wallSec - int64(off)
		if offsetAt(sec, loc) == off {
			valid = append(valid, sec)
		}
	}

	nano := int64(wall.Nanosecond())
	switch len(valid) {
	case 0:
		return time.Unix(wallSec-int64(before), nano).UTC(), false, true
	case 1:
		return time.Unix(valid[0], nano).UTC(), false, false
	default:
		earliest := valid[0]
		for _, sec := range valid[1:] {
			earliest = min(earliest, sec)
		}
		return time.Unix(earliest, nano).UTC(), true, false
	}
}

func offsetAt(sec int64, loc *time.Location) int {
	_, offset := time.Unix(sec, 0).In(loc).Zone()
	return offset
}

// abbreviation hides numeric designations such as "+03", which the
// database uses for zones without a customary abbreviation.
func abbreviation(name string) string {
	if name == "" || strings.HasPrefix(name, "+") || strings.HasPrefix(name, "-") {
		return "N/A"
	}
	return name
}
