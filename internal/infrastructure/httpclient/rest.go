package httpclient

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"portfolio_dashboard/internal/domain/entity"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// RESTClient is the shared fasthttp wrapper all provider adapters use for
// outbound JSON calls. It honors the caller's context deadline when one is
// set and falls back to its own default timeout otherwise.
type RESTClient struct {
	client  *fasthttp.Client
	timeout time.Duration
	logger  *zap.Logger
}

// NewRESTClient creates a RESTClient with the given default timeout.
func NewRESTClient(timeout time.Duration, logger *zap.Logger) *RESTClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RESTClient{
		client:  &fasthttp.Client{},
		timeout: timeout,
		logger:  logger.Named("RESTClient"),
	}
}

// DoJSON executes one HTTP request and decodes the response body into out.
// A transport failure maps to a transient error, a non-2xx status to the
// status-derived kind, and an undecodable body to a validation error; all
// failures come back as a *entity.FetchError attributed to source.
func (c *RESTClient) DoJSON(ctx context.Context, source, method, url string, headers map[string]string, body []byte, out any) error {
	status, raw, err := c.Do(ctx, source, method, url, headers, body)
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		return entity.FetchErrorFromStatus(source, status, truncate(raw, 256))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.logger.Error("Failed to unmarshal provider response",
			zap.String("source", source),
			zap.String("url", url),
			zap.ByteString("responseBody", raw),
			zap.Error(err))
		return entity.NewValidationError(source, fmt.Sprintf("malformed response from %s: %s", url, truncate(raw, 256)), err)
	}
	return nil
}

// Do executes one HTTP request and returns the raw status and body.
func (c *RESTClient) Do(ctx context.Context, source, method, url string, headers map[string]string, body []byte) (int, []byte, error) {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(url)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if len(body) > 0 {
		req.SetBody(body)
	}

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = c.client.DoDeadline(req, resp, deadline)
	} else {
		err = c.client.DoTimeout(req, resp, c.timeout)
	}
	if err != nil {
		c.logger.Error("Failed to execute provider request",
			zap.String("source", source),
			zap.String("url", url),
			zap.Error(err))
		return 0, nil, entity.NewTransientError(source, fmt.Sprintf("request to %s failed", url), err)
	}

	raw := append([]byte(nil), resp.Body()...)
	return resp.StatusCode(), raw, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
