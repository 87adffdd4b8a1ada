package filmweb

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthExpired means the session cookies were rejected. Every later
	// request would fail the same way, so the whole run aborts on it.
	ErrAuthExpired = errors.New("session expired or invalid credentials")

	// ErrNotFound marks a page past the end of a list. It is the normal
	// end-of-pagination signal, not a failure.
	ErrNotFound = errors.New("page not found")

	// ErrMalformedPage means the response did not look like a votes page at
	// all. The page is skipped with a warning; the run continues.
	ErrMalformedPage = errors.New("unexpected page structure")
)

// TransientError covers timeouts, resets, 429 and 5xx answers. These are
// retried with backoff before a page is given up on.
type TransientError struct {
	Status int
	Err    error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transient fetch error: %v", e.Err)
	}
	return fmt.Sprintf("transient fetch error: status %d", e.Status)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// classifyStatus maps an HTTP status to the error taxonomy. 401/403 kill the
// run, 404/410 end pagination, 429 and 5xx are retryable, anything else
// unexpected is treated as retryable too.
func classifyStatus(status int) error {
	switch {
	case status == 200:
		return nil
	case status == 401 || status == 403:
		return ErrAuthExpired
	case status == 404 || status == 410:
		return ErrNotFound
	default:
		return &TransientError{Status: status}
	}
}
