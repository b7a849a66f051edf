package identity

import "fmt"

// ParseError reports an unparsable WHO_AM_I reply. It carries the raw
// device text so failures can be diagnosed without reproducing them.
type ParseError struct {
	// Reason describes what was missing or malformed.
	Reason string

	// Raw is the full reply text as received (after UTF-8 repair).
	Raw string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("identity: %s (raw: %q)", e.Reason, e.Raw)
}
