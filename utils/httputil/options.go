package httputil

import (
	"bytes"
	"io"
	"net/http"

	"github.com/aojiaoxiaolinlin/bot-go/utils/json"
)

type RequestOption func(*http.Request) error

func PrependOptions(opts []RequestOption, prepend ...RequestOption) []RequestOption {
	if len(opts) == 0 {
		return prepend
	}
	return append(prepend, opts...)
}

func JSONRequest(r *http.Request) error {
	r.Header.Set("Content-Type", "application/json")
	return nil
}

func WithHeaders(headers http.Header) RequestOption {
	return func(r *http.Request) error {
		for key, values := range headers {
			r.Header[key] = append(r.Header[key], values...)
		}
		return nil
	}
}

// WithAuthorization sets the Authorization header.
func WithAuthorization(value string) RequestOption {
	return func(r *http.Request) error {
		r.Header.Set("Authorization", value)
		return nil
	}
}

// WithJSONBody attaches v, JSON-encoded, as the request body. The encoding is
// done once, so the option is safe across retries.
func WithJSONBody(v interface{}) RequestOption {
	if v == nil {
		return func(*http.Request) error {
			return nil
		}
	}

	var buf bytes.Buffer
	err := json.EncodeStream(&buf, v)

	return func(r *http.Request) error {
		if err != nil {
			return err
		}

		r.Header.Set("Content-Type", "application/json")
		r.Body = io.NopCloser(bytes.NewReader(buf.Bytes()))
		r.ContentLength = int64(buf.Len())
		return nil
	}
}
