package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"sqsbridge/internal/logger"
)

// ErrBuildRequest wraps failures to construct a request, as opposed to
// failures to deliver it.
var ErrBuildRequest = errors.New("failed to build request")

func IsBuildRequestError(err error) bool {
	return errors.Is(err, ErrBuildRequest)
}

// Poster sends one request body and reports the response status.
type Poster interface {
	Post(ctx context.Context, url, contentType string, body []byte) (int, error)
}

// Options configures the pooled client.
type Options struct {
	// Timeout bounds a whole request, connection setup included.
	Timeout time.Duration
	// MaxConnections caps connections per host. It should equal the number of
	// concurrent callers so a free caller always finds a connection.
	MaxConnections int
}

var _ Poster = (*HTTPClient)(nil)

// HTTPClient is a connection-pooling Poster. It is safe for concurrent use.
type HTTPClient struct {
	client *http.Client
	logger logger.Logger
}

func NewHTTPClient(opts Options, log logger.Logger) *HTTPClient {
	dialer := &net.Dialer{
		Timeout:   opts.Timeout,
		KeepAlive: 30 * time.Second,
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer.DialContext
	transport.MaxConnsPerHost = opts.MaxConnections
	transport.MaxIdleConnsPerHost = opts.MaxConnections
	transport.MaxIdleConns = opts.MaxConnections
	transport.ResponseHeaderTimeout = opts.Timeout

	return &HTTPClient{
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
		logger: log.With(logger.String("component", "http_client")),
	}
}

// Post issues a POST and returns the response status code. The response body
// is drained and closed so the connection returns to the pool.
func (c *HTTPClient) Post(ctx context.Context, url, contentType string, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBuildRequest, err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("post failed: %w", err)
	}
	defer resp.Body.Close()

	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		c.logger.Debug("failed to drain response body",
			logger.Int("status_code", resp.StatusCode),
			logger.Error(err))
	}

	return resp.StatusCode, nil
}

// CloseIdleConnections releases pooled connections.
func (c *HTTPClient) CloseIdleConnections() {
	c.client.CloseIdleConnections()
}
