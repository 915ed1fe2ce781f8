package remote

import (
	"errors"
	"fmt"
)

// ErrNoMasterID signals that an operation needs a staff/master identity and
// neither the caller nor configuration supplied one.
var ErrNoMasterID = errors.New("remote: no master id supplied and no default configured")

// ErrBadResponse signals a 2xx response whose body could not be interpreted.
var ErrBadResponse = errors.New("remote: unparsable response")

// maxBodyDiagnostic bounds how much of an error response body is retained.
const maxBodyDiagnostic = 500

// RequestError carries the HTTP status and a truncated response body for a
// failed remote call. Callers must not retry automatically.
type RequestError struct {
	Status int
	Body   string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("remote: request failed with status %d: %s", e.Status, e.Body)
}

func truncateBody(b []byte) string {
	if len(b) > maxBodyDiagnostic {
		return string(b[:maxBodyDiagnostic])
	}
	return string(b)
}
