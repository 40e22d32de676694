package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// portsResponse mirrors the JSON body of GET /ports.
type portsResponse struct {
	Ports []portEntry `json:"ports"`
}

type portEntry struct {
	Port  uint8 `json:"port"`
	Bound bool  `json:"bound"`
}

// socketsResponse mirrors the JSON body of GET /sockets.
type socketsResponse struct {
	Sockets []socketEntry `json:"sockets"`
}

type socketEntry struct {
	Port  uint8  `json:"port"`
	State string `json:"state"`
}

// getJSON issues a GET request against the daemon's admin API and decodes
// the JSON body into out.
func getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+serverAddr+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request %s: unexpected status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", path, err)
	}

	return nil
}
