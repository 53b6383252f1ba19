package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/erp/erpcore/internal/domain/integration"
)

// maxResponseSize is the maximum allowed response size from an ERP API (10MB)
const maxResponseSize = 10 * 1024 * 1024

// apiResponse is a fully read backend response
type apiResponse struct {
	Status int
	Header http.Header
	Body   []byte
}

// OK returns true for 2xx responses
func (r *apiResponse) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// restClient performs JSON requests against one backend, throttled by its rate limiter
type restClient struct {
	name       string
	baseURL    *url.URL
	httpClient *http.Client
	limiter    *RateLimiter
	// authorize sets credentials on every request
	authorize func(req *http.Request)
}

func newRESTClient(name, baseURL string, httpClient *http.Client, limiter *RateLimiter, authorize func(*http.Request)) (*restClient, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, integration.NewValidationError(CodeInvalidConnectorConfig,
			fmt.Sprintf("%s: invalid base URL: %v", name, err))
	}
	if authorize == nil {
		authorize = func(*http.Request) {}
	}
	return &restClient{
		name:       name,
		baseURL:    u,
		httpClient: httpClient,
		limiter:    limiter,
		authorize:  authorize,
	}, nil
}

// do sends a request and reads the whole body. Transport failures are
// returned as connection errors; HTTP status handling is left to the caller.
func (c *restClient) do(ctx context.Context, method, path string, query url.Values, body any, header http.Header) (*apiResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to encode request: %w", c.name, err)
		}
		reader = bytes.NewReader(raw)
	}

	u := c.baseURL.JoinPath(path)
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create request: %w", c.name, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s: %w", c.name, ctxErr)
		}
		return nil, integration.NewConnectionError(fmt.Errorf("%s: %w", c.name, err))
	}
	defer resp.Body.Close()

	c.limiter.UpdateFromResponse(resp)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, integration.NewConnectionError(fmt.Errorf("%s: failed to read response: %w", c.name, err))
	}

	return &apiResponse{Status: resp.StatusCode, Header: resp.Header, Body: raw}, nil
}

// decodeJSON unmarshals a response body, mapping garbage to a backend failure
func decodeJSON[T any](name string, resp *apiResponse) (T, *integration.Failure) {
	var out T
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return out, &integration.Failure{
			Code:    integration.CodeBackendError,
			Message: fmt.Sprintf("%s: failed to parse response: %v", name, err),
		}
	}
	return out, nil
}

// statusFailure maps a non-2xx status to a structured failure. detail is the
// backend's own error code and message, when it sent one.
func statusFailure(name string, resp *apiResponse, code, message string) *integration.Failure {
	if message == "" {
		message = http.StatusText(resp.Status)
	}
	message = fmt.Sprintf("%s: HTTP %d: %s", name, resp.Status, message)

	f := &integration.Failure{Code: code, Message: message}
	switch {
	case resp.Status == http.StatusBadRequest, resp.Status == http.StatusUnprocessableEntity,
		resp.Status == http.StatusNotFound:
		f.Code = orDefault(code, integration.CodeValidationFailed)
	case resp.Status == http.StatusUnauthorized, resp.Status == http.StatusForbidden:
		f.Code = orDefault(code, CodeAuthFailed)
	case resp.Status == http.StatusConflict, resp.Status == http.StatusPreconditionFailed:
		f.Code = orDefault(code, integration.CodeConflict)
	case resp.Status == http.StatusLocked:
		f.Code = integration.CodeLocked
		f.Retryable = true
	case resp.Status == http.StatusTooManyRequests:
		f.Code = integration.CodeRateLimited
		f.Retryable = true
	case resp.Status == http.StatusServiceUnavailable:
		f.Code = integration.CodeBackendBusy
		f.Retryable = true
	case resp.Status >= 500:
		f.Code = orDefault(code, integration.CodeBackendError)
		f.Retryable = true
	default:
		f.Code = orDefault(code, integration.CodeBackendError)
	}
	return f
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
