package lookup

import (
	"errors"

	"clientlookup/brand"
)

// ErrNetwork reports a failed request or a non-success response.
var ErrNetwork = errors.New("fetch app details")

// ErrorKind classifies lookup failures.
type ErrorKind string

const (
	KindNetwork        ErrorKind = "network"
	KindMarkerNotFound ErrorKind = "marker_not_found"
	KindAttributeEmpty ErrorKind = "attribute_empty"
	KindDecode         ErrorKind = "decode"
	KindUnknown        ErrorKind = "unknown"
)

// KindOf maps an error returned by a Resolver onto its kind.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrNetwork):
		return KindNetwork
	case errors.Is(err, brand.ErrMarkerNotFound):
		return KindMarkerNotFound
	case errors.Is(err, brand.ErrAttributeEmpty):
		return KindAttributeEmpty
	case errors.Is(err, brand.ErrDecode):
		return KindDecode
	default:
		return KindUnknown
	}
}

// Message returns the user facing text for a failure.
func Message(err error) string {
	switch KindOf(err) {
	case KindNetwork:
		return "Failed to fetch app details"
	case KindMarkerNotFound:
		return "Could not find app details"
	case KindAttributeEmpty:
		return "Could not find app configuration"
	case KindDecode:
		return "Could not decode app configuration"
	default:
		return "An unknown error occurred"
	}
}
