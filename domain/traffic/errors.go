package traffic

import (
	"errors"
	"fmt"
)

// ErrNoAPIKey is returned when a live query is requested without a key.
var ErrNoAPIKey = errors.New("no API key configured")

// ErrorKind classifies a failed query.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindNetwork
	KindUnauthorized
	KindRateLimited
	KindAPI
	KindParse
	KindNoData
)

// String returns the metric/log label of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindUnauthorized:
		return "unauthorized"
	case KindRateLimited:
		return "rate_limited"
	case KindAPI:
		return "api_error"
	case KindParse:
		return "parse_failure"
	case KindNoData:
		return "no_data"
	default:
		return "unknown"
	}
}

// QueryError is the error returned by every remote traffic query.
type QueryError struct {
	Kind   ErrorKind
	Status int    // HTTP status, zero for transport and decode errors
	Op     string // endpoint path, e.g. "traffic/details"
	Err    error
}

func (e *QueryError) Error() string {
	var msg string
	switch e.Kind {
	case KindNetwork:
		msg = "network error"
	case KindUnauthorized:
		msg = "invalid API key"
	case KindRateLimited:
		msg = "rate limit exceeded, please wait a moment"
	case KindAPI:
		msg = fmt.Sprintf("API error: HTTP %d", e.Status)
	case KindParse:
		msg = "failed to parse traffic data"
	case KindNoData:
		msg = "no data received"
	default:
		msg = "query failed"
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a *QueryError anywhere in err's chain.
func KindOf(err error) ErrorKind {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Kind
	}
	return KindUnknown
}

// IsUnauthorized returns true if err is a 401 query failure.
func IsUnauthorized(err error) bool {
	return KindOf(err) == KindUnauthorized
}

// IsRateLimited returns true if err is a 429 query failure.
func IsRateLimited(err error) bool {
	return KindOf(err) == KindRateLimited
}

// KindForStatus maps a non-2xx HTTP status to an error kind.
func KindForStatus(status int) ErrorKind {
	switch status {
	case 401:
		return KindUnauthorized
	case 429:
		return KindRateLimited
	default:
		return KindAPI
	}
}
