package news

import "errors"

var (
	// ErrSourceUnavailable reports that the search API could not serve a request.
	ErrSourceUnavailable = errors.New("news source unavailable")
	// ErrInvalidCursor is returned when a pagination cursor cannot be decoded.
	ErrInvalidCursor = errors.New("invalid cursor")
	// ErrUnsupportedIndex is returned for index names a store does not maintain.
	ErrUnsupportedIndex = errors.New("unsupported index")
	// ErrUnsupportedField is returned for scan fields a store does not expose.
	ErrUnsupportedField = errors.New("unsupported scan field")
)
