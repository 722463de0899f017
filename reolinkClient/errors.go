package reolinkclient

import (
	"errors"
	"fmt"
	"net/url"
)

// query parameters carrying credentials
var secretParams = []string{"password", "token"}

// redactURL masks credentials in the request URL that *url.Error prints. The
// Snap request authenticates with user/password query parameters and every
// other command carries the session token.
func redactURL(err error) error {
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return err
	}
	u, perr := url.Parse(urlErr.URL)
	if perr != nil {
		urlErr.URL = "<redacted>"
		return err
	}
	if u.User != nil {
		u.User = url.User(u.User.Username())
	}
	q := u.Query()
	for _, k := range secretParams {
		if q.Has(k) {
			q.Set(k, "xxxxx")
		}
	}
	u.RawQuery = q.Encode()
	urlErr.URL = u.String()
	return err
}

// TransportError is returned when the camera could not be reached at all:
// connection refused, DNS failure, timeout or cancelled context.
type TransportError struct {
	Command string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error on %s: %v", e.Command, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError is returned when the camera answered with a body that does not
// have the expected shape.
type ProtocolError struct {
	Command string
	Body    []byte
	Err     error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error on %s: %v", e.Command, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// DeviceCommandError is either a non-200 HTTP status (StatusCode set, Body holds the
// raw response) or a command the device reported as failed (Code != 0).
type DeviceCommandError struct {
	Command    string
	StatusCode int
	Body       []byte

	Code    int
	RspCode int
	Detail  string
}

func (e *DeviceCommandError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("device returned status %d on %s: %s", e.StatusCode, e.Command, string(e.Body))
	}
	return fmt.Sprintf("device rejected %s: code %d, rspCode %d: %s", e.Command, e.Code, e.RspCode, e.Detail)
}

// AuthenticationError means the device refused the login credentials.
type AuthenticationError struct {
	Username string
	RspCode  int
	Detail   string
}

func (e *AuthenticationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("login rejected for user %q (rspCode %d)", e.Username, e.RspCode)
	}
	return fmt.Sprintf("login rejected for user %q: %s (rspCode %d)", e.Username, e.Detail, e.RspCode)
}
