// Package capability exchanges a region's seed capability URL for the
// named HTTP capability endpoints and fetches assets through them.
package capability

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/osgrid/metaviewer/internal/httputil"
	"github.com/osgrid/metaviewer/internal/wire/llsd"
)

// AssetCategory selects the query parameter FetchAsset issues against a
// capability URL.
type AssetCategory string

const (
	CategoryMesh     AssetCategory = "mesh"
	CategoryTexture  AssetCategory = "texture"
	CategoryBodyPart AssetCategory = "bodypart"
	CategoryClothing AssetCategory = "clothing"
	CategoryObject   AssetCategory = "object"
)

// CapabilityError wraps a non-2xx HTTP response or a malformed LLSD-XML
// reply from the capability server.
type CapabilityError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *CapabilityError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("capability: %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("capability: %s: unexpected status %d", e.URL, e.StatusCode)
}

func (e *CapabilityError) Unwrap() error { return e.Err }

// SeedClient exchanges capability names for their URLs against a region's
// seed capability, and fetches assets through the resulting capability
// URLs.
type SeedClient struct {
	http httputil.HTTPClient
}

// New wraps an HTTPClient in a SeedClient.
func New(client httputil.HTTPClient) *SeedClient {
	return &SeedClient{http: client}
}

// RequestCapabilities POSTs an LLSD-XML array of requested capability
// names to seedURL and returns the name -> URL map the region grants.
func (c *SeedClient) RequestCapabilities(ctx context.Context, seedURL string, names []string) (map[string]string, error) {
	reqArray := make([]llsd.Value, len(names))
	for i, n := range names {
		reqArray[i] = llsd.Value{Kind: llsd.KindString, Str: n}
	}
	body := llsd.EncodeXML(llsd.Value{Kind: llsd.KindArray, Array: reqArray})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, seedURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("capability: build seed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/llsd+xml")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &CapabilityError{URL: seedURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &CapabilityError{URL: seedURL, StatusCode: resp.StatusCode}
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &CapabilityError{URL: seedURL, Err: fmt.Errorf("read response: %w", err)}
	}

	val, err := llsd.DecodeXML(respBody)
	if err != nil {
		return nil, &CapabilityError{URL: seedURL, Err: fmt.Errorf("decode response: %w", err)}
	}
	if val.Kind != llsd.KindMap {
		return nil, &CapabilityError{URL: seedURL, Err: fmt.Errorf("expected top-level map, got kind %d", val.Kind)}
	}

	out := make(map[string]string, len(val.Map))
	for k, v := range val.Map {
		if v.Kind != llsd.KindString {
			return nil, &CapabilityError{URL: seedURL, Err: fmt.Errorf("capability %q value is not a string", k)}
		}
		out[k] = v.Str
	}
	return out, nil
}

// FetchAsset issues GET <capURL>/?<category>_id=<id> and returns the raw
// asset body.
func (c *SeedClient) FetchAsset(ctx context.Context, capURL string, category AssetCategory, id uuid.UUID) ([]byte, error) {
	url := fmt.Sprintf("%s/?%s_id=%s", capURL, category, id.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("capability: build asset request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &CapabilityError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &CapabilityError{URL: url, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &CapabilityError{URL: url, Err: fmt.Errorf("read response: %w", err)}
	}
	return data, nil
}
