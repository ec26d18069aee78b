package timezone

import (
	"fmt"
	"strings"
	"time"
)

// ConversionRequest is either ByTimestamp or ByDatetime.
type ConversionRequest interface {
	target() string
}

// ByTimestamp converts a unix instant into the To zone.
type ByTimestamp struct {
	Timestamp int64
	To        string
}

func (r ByTimestamp) target() string { return r.To }

// ByDatetime interprets a wall-clock datetime in From and converts it into To.
type ByDatetime struct {
	Datetime NaiveDateTime
	From     string
	To       string
}

func (r ByDatetime) target() string { return r.To }

// NaiveDateTime is a civil date and time without zone or offset.
type NaiveDateTime struct {
	Year   int
	Month  time.Month
	Day    int
	Hour   int
	Minute int
	Second int
	Nano   int
}

// naiveLayouts are tried in order; none of them accepts a zone suffix.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
}

// ParseNaiveDateTime parses YYYY-MM-DDTHH:MM[:SS[.fraction]]. A space may
// be used instead of the T separator.
func ParseNaiveDateTime(s string) (NaiveDateTime, error) {
	normalized := s
	if len(normalized) > 10 && normalized[10] == ' ' {
		normalized = normalized[:10] + "T" + normalized[11:]
	}

	for _, layout := range naiveLayouts {
		t, err := time.Parse(layout, normalized)
		if err != nil {
			continue
		}
		return NaiveDateTime{
			Year:   t.Year(),
			Month:  t.Month(),
			Day:    t.Day(),
			Hour:   t.Hour(),
			Minute: t.Minute(),
			Second: t.Second(),
			Nano:   t.Nanosecond(),
		}, nil
	}

	return NaiveDateTime{}, fmt.Errorf("%w: %q is not an ISO-8601 date and time without offset", ErrInvalidDatetime, s)
}

// String formats the datetime as YYYY-MM-DDTHH:MM:SS with an optional
// fraction.
func (n NaiveDateTime) String() string {
	return n.wall().Format("2006-01-02T15:04:05.999999999")
}

// wall returns the datetime as if it were UTC.
func (n NaiveDateTime) wall() time.Time {
	return time.Date(n.Year, n.Month, n.Day, n.Hour, n.Minute, n.Second, n.Nano, time.UTC)
}

// RequestInput is the wire shape of a conversion request, where every
// field is optional and the variant is decided by which fields are set.
type RequestInput struct {
	Timestamp *int64
	Datetime  *string
	From      *string
	To        string
}

// NewRequest decides the variant of in. Exactly one of Timestamp or
// Datetime+From must be provided.
func NewRequest(in RequestInput) (ConversionRequest, error) {
	if strings.TrimSpace(in.To) == "" {
		return nil, fmt.Errorf("%w: 'to' timezone is required", ErrInvalidRequest)
	}

	switch {
	case in.Timestamp != nil && (in.Datetime != nil || in.From != nil):
		return nil, fmt.Errorf("%w: provide either 'timestamp' or 'datetime'+'from', not both", ErrInvalidRequest)
	case in.Timestamp != nil:
		return ByTimestamp{Timestamp: *in.Timestamp, To: in.To}, nil
	case in.Datetime == nil:
		return nil, fmt.Errorf("%w: either 'timestamp' or 'datetime'+'from' is required", ErrInvalidRequest)
	case in.From == nil:
		return nil, fmt.Errorf("%w: 'from' timezone is required when using 'datetime'", ErrInvalidRequest)
	}

	naive, err := ParseNaiveDateTime(*in.Datetime)
	if err != nil {
		return nil, err
	}
	return ByDatetime{Datetime: naive, From: *in.From, To: in.To}, nil
}
