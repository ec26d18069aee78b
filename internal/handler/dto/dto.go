// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import "github.com/epochzone/epochzone/internal/timezone"

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries a stable code and a human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ConvertRequest is the body of POST /api/convert. Exactly one of
// Timestamp or Datetime+From must be present.
type ConvertRequest struct {
	Timestamp *int64  `json:"timestamp,omitempty"`
	Datetime  *string `json:"datetime,omitempty"`
	From      *string `json:"from,omitempty"`
	To        string  `json:"to"`
}

// ToInput converts the wire body to the engine's request input.
func (r ConvertRequest) ToInput() timezone.RequestInput {
	return timezone.RequestInput{
		Timestamp: r.Timestamp,
		Datetime:  r.Datetime,
		From:      r.From,
		To:        r.To,
	}
}

// ZoneInfoResponse describes a zone at one instant.
type ZoneInfoResponse struct {
	Identifier       string `json:"identifier"`
	UTCOffsetSeconds int    `json:"utc_offset_seconds"`
	UTCOffset        string `json:"utc_offset"`
	Abbreviation     string `json:"abbreviation"`
	IsDST            bool   `json:"is_dst"`
	Datetime         string `json:"datetime"`
	Timestamp        int64  `json:"timestamp"`
}

// ConversionResponse is the body returned by POST /api/convert.
type ConversionResponse struct {
	UTC       string           `json:"utc"`
	Timestamp int64            `json:"timestamp"`
	From      ZoneInfoResponse `json:"from"`
	To        ZoneInfoResponse `json:"to"`
	Ambiguous bool             `json:"ambiguous"`
	Shifted   bool             `json:"shifted"`
}

// ToZoneInfoResponse converts engine zone info to its wire form.
func ToZoneInfoResponse(info timezone.ZoneInfo) ZoneInfoResponse {
	return ZoneInfoResponse{
		Identifier:       info.Identifier,
		UTCOffsetSeconds: info.UTCOffsetSeconds,
		UTCOffset:        info.UTCOffset(),
		Abbreviation:     info.Abbreviation,
		IsDST:            info.IsDST,
		Datetime:         timezone.FormatInstant(info.Local),
		Timestamp:        info.Timestamp(),
	}
}

// ToConversionResponse converts an engine result to its wire form.
func ToConversionResponse(res timezone.ConversionResult) ConversionResponse {
	return ConversionResponse{
		UTC:       timezone.FormatInstant(res.UTC),
		Timestamp: res.UTC.Unix(),
		From:      ToZoneInfoResponse(res.From),
		To:        ToZoneInfoResponse(res.To),
		Ambiguous: res.Ambiguous,
		Shifted:   res.Shifted,
	}
}
