// Package fetcher downloads sheet CSV exports over HTTP with retry, backoff,
// and per-host rate limiting.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/url"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

// SheetCSVURL builds the public CSV export URL for a Google spreadsheet and
// worksheet gid.
func SheetCSVURL(sheetID string, gid int) string {
	return fmt.Sprintf(
		"https://docs.google.com/spreadsheets/d/%s/export?format=csv&gid=%d",
		url.PathEscape(sheetID), gid,
	)
}
