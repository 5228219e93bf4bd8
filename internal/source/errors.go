package source

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSourceUnavailable is returned when a provider stays unreachable after retries.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrCredentialsInvalid is returned when live feed credentials are missing or malformed.
	ErrCredentialsInvalid = errors.New("credentials invalid")
)

// UnavailableError describes a fetch that failed after the provider's retry policy.
type UnavailableError struct {
	Source string
	Forum  string
	Window Window
	Err    error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: r/%s %s: %v", e.Source, e.Forum, e.Window, e.Err)
}

func (e *UnavailableError) Unwrap() []error {
	return []error{ErrSourceUnavailable, e.Err}
}

// CredentialsError lists the credential fields that could not be resolved.
type CredentialsError struct {
	Missing []string
}

func (e *CredentialsError) Error() string {
	return fmt.Sprintf("live feed credentials: missing %s", strings.Join(e.Missing, ", "))
}

func (e *CredentialsError) Is(target error) bool {
	return target == ErrCredentialsInvalid
}
