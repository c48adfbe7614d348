// Package httpclient provides the outbound HTTP client used for provider
// calls. It bounds timeouts and redirects and rejects non-HTTP schemes;
// provider endpoints are operator-configured, so unlike a general fetcher
// it deliberately allows localhost (local TTS services are common).
package httpclient

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hirevox/hirevox/errors"
)

const maxRedirects = 5

// Client wraps http.Client with scheme validation and a redirect bound.
type Client struct {
	*http.Client
}

// New returns a client with the given overall request timeout.
func New(timeout time.Duration) *Client {
	c := &Client{
		Client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return errors.Newf("stopped after %d redirects", maxRedirects)
		}
		return validateURL(req.URL)
	}
	return c
}

func validateURL(u *url.URL) error {
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return errors.Newf("scheme %q not allowed", scheme)
	}
	if u.Hostname() == "" {
		return errors.New("URL missing hostname")
	}
	if u.User != nil {
		return errors.New("URL must not carry credentials")
	}
	return nil
}

// Do executes a request after validating its URL.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if err := validateURL(req.URL); err != nil {
		return nil, err
	}
	return c.Client.Do(req)
}
