package plug

import (
	"errors"
	"fmt"
)

var (
	// ErrDeviceNotFound matches any DeviceNotFoundError via errors.Is
	ErrDeviceNotFound = errors.New("device not found")

	// ErrAuthentication is returned by Setup when login yields no session
	ErrAuthentication = errors.New("authentication failed")

	// ErrMissingCredentials is returned by Setup when username or password is empty
	ErrMissingCredentials = errors.New("missing username or password")
)

// DeviceNotFoundError reports that no device on the account has Serial
type DeviceNotFoundError struct {
	Serial string
}

func (e *DeviceNotFoundError) Error() string {
	return fmt.Sprintf("device %s not found", e.Serial)
}

// Is lets errors.Is(err, ErrDeviceNotFound) match.
func (e *DeviceNotFoundError) Is(target error) bool {
	return target == ErrDeviceNotFound
}
