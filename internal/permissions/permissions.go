// Package permissions checks OS consent for microphone capture.
package permissions

import "errors"

// ErrMicrophoneDenied is returned when capture has not been authorized.
var ErrMicrophoneDenied = errors.New("microphone permission not granted")

// Status mirrors AVAuthorizationStatus.
type Status int

const (
	NotDetermined Status = 0
	Restricted    Status = 1
	Denied        Status = 2
	Authorized    Status = 3
)

func (s Status) String() string {
	switch s {
	case NotDetermined:
		return "not determined"
	case Restricted:
		return "restricted"
	case Denied:
		return "denied"
	case Authorized:
		return "authorized"
	}
	return "unknown"
}

// EnsureMicrophone returns nil when capture is authorized. Otherwise it asks
// the OS to prompt the user and returns ErrMicrophoneDenied.
func EnsureMicrophone() error {
	return ensure(CheckMicrophone, RequestMicrophone)
}

func ensure(check func() Status, request func()) error {
	switch check() {
	case Authorized:
		return nil
	case NotDetermined:
		request()
	}
	return ErrMicrophoneDenied
}
