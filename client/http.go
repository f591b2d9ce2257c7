package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"ReserveGate/internal/api"
)

// maxResponseSize bounds response bodies read by the client.
const maxResponseSize = 16 << 20

// APIError is a non-2xx response from the node.
type APIError struct {
	Status  int    // Status is the HTTP status code
	Message string // Message is the server's error text
	Class   string // Class is the controller error class, if any
}

func (e *APIError) Error() string {
	if e.Class != "" {
		return fmt.Sprintf("status %d (%s): %s", e.Status, e.Class, e.Message)
	}

	return fmt.Sprintf("status %d: %s", e.Status, e.Message)
}

// do sends a request and returns the body of a 2xx response.
func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader

	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body:\n%w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request:\n%w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s:\n%w", method, path, err)
	}
	defer func() { io.Copy(io.Discard, resp.Body); resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read %s response:\n%w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Message: string(data)}

		var e api.ErrorResponse
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			apiErr.Message = e.Error
			apiErr.Class = e.Class
		}

		return nil, apiErr
	}

	return data, nil
}

// doJSON sends a request and decodes a JSON response into result.
func (c *Client) doJSON(ctx context.Context, method, path string, body, result any) error {
	data, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("decode %s response:\n%w", path, err)
	}

	return nil
}
