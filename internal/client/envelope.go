package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Envelope is the Aido response wrapper every endpoint uses.
type Envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
	Error     *APIError       `json:"error,omitempty"`
}

// APIError is a structured error returned by the Aido backend.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("aido api error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("aido api error %d: %s", e.Status, e.Message)
}

// DoJSON sends the request and decodes the envelope's data field into out.
// A non-2xx status or success:false becomes an *APIError. Pass a nil out
// to discard the data.
func (c *Client) DoJSON(ctx context.Context, req *Request, out interface{}) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	var envelope Envelope
	if unmarshalErr := json.Unmarshal(body, &envelope); unmarshalErr != nil {
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return fmt.Errorf("failed to decode response envelope: %w", unmarshalErr)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 || !envelope.Success {
		apiErr := envelope.Error
		if apiErr == nil {
			apiErr = &APIError{Message: http.StatusText(resp.StatusCode)}
		}
		apiErr.Status = resp.StatusCode
		return apiErr
	}

	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}
	return nil
}
