package models

import (
	"errors"
	"fmt"
)

// Failure taxonomy shared by the fetch, live and submission paths.
var (
	ErrNetworkFailure     = errors.New("collaborator unreachable")
	ErrApplicationFailure = errors.New("collaborator reported failure")
	ErrStaleResult        = errors.New("stale snapshot result discarded")
	ErrChannelDisconnect  = errors.New("live channel disconnected")
)

// FetchError describes a failed snapshot pull for one device. Kind is one of
// ErrNetworkFailure or ErrApplicationFailure.
type FetchError struct {
	Device string
	Kind   error
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch %s: %v", e.Device, e.Kind)
	}
	return fmt.Sprintf("fetch %s: %v: %v", e.Device, e.Kind, e.Err)
}

// Unwrap exposes both the kind sentinel and the cause to errors.Is.
func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
