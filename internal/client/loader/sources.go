package loader

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/GriffinCanCode/nodegraph/internal/shared/types"
)

// HTTPFetcher downloads module source over HTTP. It never retries; a hung
// request blocks only the load that issued it.
type HTTPFetcher struct {
	client *resty.Client
}

// NewHTTPFetcher creates a fetcher; relative module URLs resolve against baseURL
func NewHTTPFetcher(baseURL string) *HTTPFetcher {
	client := resty.New().
		SetHeader("Accept", "application/javascript, text/javascript, */*").
		SetRetryCount(0)
	if baseURL != "" {
		client.SetBaseURL(strings.TrimRight(baseURL, "/"))
	}
	return &HTTPFetcher{client: client}
}

// NewHTTPFetcherWithClient wraps an existing resty client
func NewHTTPFetcherWithClient(client *resty.Client) *HTTPFetcher {
	return &HTTPFetcher{client: client}
}

// Fetch implements ModuleFetcher
func (f *HTTPFetcher) Fetch(ctx context.Context, moduleURL string) ([]byte, error) {
	resp, err := f.client.R().SetContext(ctx).Get(moduleURL)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode())
	}
	return resp.Body(), nil
}

// AssetReader reads files from installed components
type AssetReader interface {
	ReadAsset(id, rel string) ([]byte, string, error)
}

// EmbeddedFetcher serves extension:// URLs straight from an in-process catalog.
type EmbeddedFetcher struct {
	assets AssetReader
}

// NewEmbeddedFetcher creates a fetcher over assets
func NewEmbeddedFetcher(assets AssetReader) *EmbeddedFetcher {
	return &EmbeddedFetcher{assets: assets}
}

// Fetch implements ModuleFetcher
func (f *EmbeddedFetcher) Fetch(_ context.Context, moduleURL string) ([]byte, error) {
	u, err := url.Parse(moduleURL)
	if err != nil {
		return nil, fmt.Errorf("invalid module URL: %w", err)
	}
	if u.Scheme != EmbeddedScheme {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	data, _, err := f.assets.ReadAsset(u.Host, strings.TrimPrefix(u.Path, "/"))
	return data, err
}

// EntryGetter looks up catalog entries in process
type EntryGetter interface {
	Get(id string) (types.CatalogEntry, error)
}

// CatalogMetadata adapts an in-process catalog to MetadataSource
type CatalogMetadata struct {
	Catalog EntryGetter
}

// Metadata implements MetadataSource
func (c CatalogMetadata) Metadata(_ context.Context, id string) (*types.CatalogEntry, error) {
	e, err := c.Catalog.Get(id)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
