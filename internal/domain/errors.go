package domain

import "errors"

// Error classes shared across stages. Components wrap them with fmt.Errorf("...: %w")
// so callers can branch with errors.Is.
var (
	// ErrTransport covers feed, enrichment and sink network failures.
	ErrTransport = errors.New("transport error")
	// ErrParse covers malformed feed JSON and unexpected page structure.
	ErrParse = errors.New("parse error")
	// ErrConfiguration covers missing or invalid startup settings.
	ErrConfiguration = errors.New("configuration error")
	// ErrDelivery is returned when a specific sink rejected a notification.
	ErrDelivery = errors.New("delivery error")
	// ErrExtraction is returned when a reference URL does not have the expected shape.
	ErrExtraction = errors.New("extraction error")
)

// Recoverable reports whether err belongs to a class the loop tolerates
// without entering backoff.
func Recoverable(err error) bool {
	return errors.Is(err, ErrTransport) || errors.Is(err, ErrParse)
}
