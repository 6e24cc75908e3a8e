package kube

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// maxManifestSize bounds a downloaded manifest.
const maxManifestSize = 16 << 20

// FetchManifest downloads a manifest. Non-2xx responses are errors.
func FetchManifest(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", url, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", url, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestSize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	if len(data) > maxManifestSize {
		return nil, fmt.Errorf("fetch %s: manifest exceeds %d bytes", url, maxManifestSize)
	}
	return data, nil
}
