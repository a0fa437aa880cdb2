// Package httputil provides abstractions around the common needs of HTTP.
package httputil

import (
	"context"
	"io"
	"net/http"

	"github.com/pkg/errors"

	"github.com/aojiaoxiaolinlin/bot-go/utils/json"
)

// StatusTooManyRequests is the status code the platform sends when
// rate-limited.
const StatusTooManyRequests = 429

// Retries is the default attempts to retry if the API returns a server error
// before giving up. If the value is smaller than 1, then requests will retry
// forever.
var Retries uint = 5

type Client struct {
	*http.Client

	// OnRequest, if not nil, is applied to each request before any
	// per-request options.
	OnRequest []RequestOption

	// Retries defaults to the global Retries variable.
	Retries uint
}

func NewClient() *Client {
	return &Client{
		Client:  &http.Client{},
		Retries: Retries,
	}
}

// Copy returns a shallow copy of the client.
func (c *Client) Copy() *Client {
	cl := new(Client)
	*cl = *c
	return cl
}

func (c *Client) applyOptions(r *http.Request, extra []RequestOption) error {
	for _, opt := range c.OnRequest {
		if err := opt(r); err != nil {
			return err
		}
	}
	for _, opt := range extra {
		if err := opt(r); err != nil {
			return err
		}
	}

	return nil
}

// FastRequest performs a request and discards the body.
func (c *Client) FastRequest(
	ctx context.Context, method, url string, opts ...RequestOption) error {

	r, err := c.Request(ctx, method, url, opts...)
	if err != nil {
		return err
	}

	return r.Body.Close()
}

// RequestJSON performs a request and decodes the response body into to.
func (c *Client) RequestJSON(
	ctx context.Context, to interface{},
	method, url string, opts ...RequestOption) error {

	opts = PrependOptions(opts, JSONRequest)

	r, err := c.Request(ctx, method, url, opts...)
	if err != nil {
		return err
	}
	defer r.Body.Close()

	// No content, working as intended (tm)
	if r.StatusCode == http.StatusNoContent || to == nil {
		return nil
	}

	if err := json.DecodeStream(r.Body, to); err != nil {
		return JSONError{err}
	}

	return nil
}

// Request performs the request, retrying on server errors and rate limits.
// Responses with a failure status are turned into *HTTPError.
func (c *Client) Request(
	ctx context.Context, method, url string,
	opts ...RequestOption) (*http.Response, error) {

	var r *http.Response
	var doErr error

	for i := uint(0); ; i++ {
		q, err := http.NewRequestWithContext(ctx, method, url, nil)
		if err != nil {
			return nil, RequestError{err}
		}

		if err := c.applyOptions(q, opts); err != nil {
			return nil, errors.Wrap(err, "failed to apply options")
		}

		r, doErr = c.Client.Do(q)

		if doErr == nil && r.StatusCode != StatusTooManyRequests && r.StatusCode < 500 {
			break
		}

		last := (c.Retries >= 1 && i+1 >= c.Retries) || ctx.Err() != nil
		if last {
			break
		}

		if doErr == nil {
			r.Body.Close()
		}
	}

	// If all retries failed:
	if doErr != nil {
		return nil, RequestError{doErr}
	}

	// Response received, but with a failure status code:
	if r.StatusCode < 200 || r.StatusCode > 299 {
		defer r.Body.Close()

		body, _ := io.ReadAll(r.Body)

		httpErr := &HTTPError{
			Status: r.StatusCode,
			Body:   body,
		}

		// Optionally unmarshal the error.
		json.Unmarshal(body, httpErr)

		return nil, httpErr
	}

	return r, nil
}
