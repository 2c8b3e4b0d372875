// Package music provides the background music catalog client and the track
// selection policy. Catalog failures never abort a narration run; callers
// fall back to narration-only audio.
package music

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/book-expert/narration-service/internal/core"
)

// API endpoints and paths.
const (
	apiTracks = "/v1/tracks"
)

// HTTP headers.
const (
	headerAccept    = "Accept"
	contentTypeJSON = "application/json"
)

// Static errors.
var (
	ErrNoTracks      = errors.New("catalog returned no tracks")
	ErrTrackURLEmpty = errors.New("track has no URL")
)

// Catalog is an HTTP client for the background music catalog service.
type Catalog struct {
	httpClient *http.Client
	baseURL    string
}

// NewCatalog creates an HTTP client for the catalog service.
func NewCatalog(baseURL string, timeout time.Duration) *Catalog {
	return &Catalog{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// TracksForMood lists the catalog tracks tagged with the given mood.
func (c *Catalog) TracksForMood(
	ctx context.Context,
	mood core.Mood,
) ([]core.MusicTrack, error) {
	endpoint := fmt.Sprintf("%s%s?mood=%s", c.baseURL, apiTracks,
		url.QueryEscape(string(mood)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog request: %w", err)
	}

	req.Header.Set(headerAccept, contentTypeJSON)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf(
			"failed to query catalog at %s: %w",
			c.baseURL,
			err,
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog returned non-OK status: %s", resp.Status)
	}

	var tracks []core.MusicTrack

	err = json.NewDecoder(resp.Body).Decode(&tracks)
	if err != nil {
		return nil, fmt.Errorf("failed to decode track list: %w", err)
	}

	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w for mood %q", ErrNoTracks, mood)
	}

	return tracks, nil
}

// Fetch downloads the encoded audio for a catalog track.
func (c *Catalog) Fetch(ctx context.Context, track core.MusicTrack) ([]byte, error) {
	if track.URL == "" {
		return nil, ErrTrackURLEmpty
	}

	endpoint := track.URL
	if strings.HasPrefix(endpoint, "/") {
		endpoint = c.baseURL + endpoint
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create track request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch track %q: %w", track.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf(
			"track fetch for %q returned non-OK status: %s",
			track.ID,
			resp.Status,
		)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read track %q: %w", track.ID, err)
	}

	return data, nil
}
