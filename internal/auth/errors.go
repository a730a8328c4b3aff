package auth

import "errors"

// Reason classifies an authentication failure.
type Reason string

const (
	ReasonMissingHeader Reason = "MissingHeader"
	ReasonUnknownClient Reason = "UnknownClient"
	ReasonBadKey        Reason = "BadKey"
)

// Failure is returned by Store.Authenticate.
type Failure struct {
	Reason Reason
}

func (f *Failure) Error() string {
	return "authentication failed: " + string(f.Reason)
}

// ReasonOf extracts the failure reason from err, if any.
func ReasonOf(err error) (Reason, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f.Reason, true
	}
	return "", false
}
