package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// doJSON sends req and decodes a 2xx JSON response into out.
func doJSON(ctx context.Context, client *http.Client, req *http.Request, out interface{}) error {
	req = req.WithContext(ctx)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("unmarshaling response (body: %s): %w", string(body), err)
	}
	return nil
}
