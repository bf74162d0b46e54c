package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"runtime"
)

// maxBodySize caps how much of a response body is read.
const maxBodySize = 1 << 20

// Client identification headers sent on every request.
const (
	HeaderTenantID     = "X-Tenant-ID"
	HeaderClientSource = "X-Client-Source"
	HeaderPlatform     = "X-Platform"
	HeaderAppType      = "X-App-Type"
)

// response is a fully read HTTP response. Bodies are read inside the
// per-attempt timeout so nothing outlives the cancellation.
type response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// url builds a complete URL by appending the path to the base URL.
func (c *SDKClient) url(path string) string {
	return c.BaseURL + path
}

// doRequest performs a single attempt: JSON encode, send with timeout, read
// the body and classify. A nil error means a 2xx, non-HTML response.
func (c *SDKClient) doRequest(
	ctx context.Context,
	op Operation,
	method, path string,
	payload any,
	bearer string,
) (*response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, &Error{Kind: KindUnknown, Op: op, Message: "failed to marshal request", Err: err}
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return nil, &Error{Kind: KindUnknown, Op: op, Message: "failed to create request", Err: err}
	}

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	c.setClientHeaders(req)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(op, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, classifyTransportError(op, err)
	}

	out := &response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       bodyBytes,
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || isHTML(resp.Header, bodyBytes) {
		return nil, parseErrorResponse(op, out)
	}

	return out, nil
}

// call runs one operation under its retry policy and decodes the 2xx body
// into target (which may be nil).
func (c *SDKClient) call(
	ctx context.Context,
	op Operation,
	method, path string,
	payload any,
	bearer string,
	target any,
) error {
	return c.withRetry(ctx, op, func(ctx context.Context) error {
		resp, err := c.doRequest(ctx, op, method, path, payload, bearer)
		if err != nil {
			return err
		}
		return decodeJSON(op, resp, target)
	})
}

func (c *SDKClient) setClientHeaders(req *http.Request) {
	if c.TenantID != "" {
		req.Header.Set(HeaderTenantID, c.TenantID)
	}
	req.Header.Set(HeaderClientSource, firstNonEmpty(c.Info.ClientSource, "mobile-app"))
	req.Header.Set(HeaderPlatform, firstNonEmpty(c.Info.Platform, runtime.GOOS))
	if c.Info.AppType != "" {
		req.Header.Set(HeaderAppType, c.Info.AppType)
	}
	req.Header.Set("User-Agent", c.Info.UserAgent())
}

// decodeJSON decodes a successful response body into target. An empty body
// leaves target untouched; decode failures are reported as KindUnknown.
func decodeJSON(op Operation, resp *response, target any) error {
	if target == nil || len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil
	}

	if err := json.Unmarshal(resp.Body, target); err != nil {
		return &Error{
			Kind:       KindUnknown,
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("failed to decode response: %v", err),
			Err:        err,
		}
	}

	return nil
}
