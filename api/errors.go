package api

// AuthError wraps failures of the access token endpoint.
type AuthError struct {
	Err error
}

func (err AuthError) Error() string {
	return "failed to obtain access token: " + err.Err.Error()
}

func (err AuthError) Unwrap() error { return err.Err }

// GatewayURLError wraps failures of the gateway discovery endpoint.
type GatewayURLError struct {
	Err error
}

func (err GatewayURLError) Error() string {
	return "failed to get gateway URL: " + err.Err.Error()
}

func (err GatewayURLError) Unwrap() error { return err.Err }

// PostMessageError wraps failures to send a message. The HTTP status and
// response body ride in the wrapped httputil.HTTPError.
type PostMessageError struct {
	Err error
}

func (err PostMessageError) Error() string {
	return "failed to post message: " + err.Err.Error()
}

func (err PostMessageError) Unwrap() error { return err.Err }
