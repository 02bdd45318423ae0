package retryhttp

import (
	"context"
	"crypto/x509"
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"slices"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/lcalzada-xor/cvewatch/internal/logger"
)

var (
	DefaultTimeout = 30 * time.Second
	DefaultRetries = 4

	// net/http does not type these errors, so they are matched on text.
	redirectsErrorRe = regexp.MustCompile(`stopped after \d+ redirects\z`)
	schemeErrorRe    = regexp.MustCompile(`unsupported protocol scheme`)

	retryableStatusCodes = []int{
		http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusTooEarly,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
	}
)

// NewClient returns a retrying HTTP client on a pooled transport. A nil log
// silences retry logging.
func NewClient(timeout time.Duration, retries int, log *logger.Logger) *retryablehttp.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if retries < 0 {
		retries = DefaultRetries
	}

	client := retryablehttp.NewClient()
	client.Logger = nil
	if log != nil {
		client.Logger = log.Named("http")
	}
	client.HTTPClient = &http.Client{
		Transport: cleanhttp.DefaultPooledTransport(),
		Timeout:   timeout,
	}
	client.RetryMax = retries
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 30 * time.Second
	client.CheckRetry = retryPolicy
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return client
}

// retryPolicy is retryablehttp.DefaultRetryPolicy restricted to transient
// status codes. Plain 500s are not retried.
func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	if err != nil {
		var v *url.Error
		if errors.As(err, &v) {
			if redirectsErrorRe.MatchString(v.Error()) {
				return false, nil
			}
			if schemeErrorRe.MatchString(v.Error()) {
				return false, nil
			}
			var unknownAuthority x509.UnknownAuthorityError
			if errors.As(v.Err, &unknownAuthority) {
				return false, nil
			}
		}
		return true, err
	}

	return IsRetryableStatus(resp.StatusCode), nil
}

// IsRetryableStatus reports whether a response status is worth retrying.
func IsRetryableStatus(status int) bool {
	return slices.Contains(retryableStatusCodes, status)
}
