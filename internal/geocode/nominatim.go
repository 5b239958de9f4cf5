package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/example/ride-exchange/internal/models"
)

// Resolver turns free-form address text into coordinates. Used only when a
// ride request is being composed; accuracy is the provider's problem.
type Resolver interface {
	Resolve(ctx context.Context, address string) (models.Coord, error)
}

// Client queries a Nominatim-compatible search endpoint and picks the first
// match, the same way the rider form did.
type Client struct {
	Endpoint string
	HTTP     *http.Client
}

func NewClient(endpoint string) *Client {
	return &Client{Endpoint: endpoint, HTTP: &http.Client{Timeout: 3 * time.Second}}
}

func (c *Client) Resolve(ctx context.Context, address string) (models.Coord, error) {
	q := url.Values{"q": {address}, "format": {"json"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Endpoint+"/search?"+q.Encode(), nil)
	if err != nil {
		return models.Coord{}, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return models.Coord{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return models.Coord{}, fmt.Errorf("geocoder status %d", resp.StatusCode)
	}
	var out []struct {
		Lat string `json:"lat"`
		Lon string `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.Coord{}, err
	}
	if len(out) == 0 {
		return models.Coord{}, fmt.Errorf("no match for %q", address)
	}
	lat, err := strconv.ParseFloat(out[0].Lat, 64)
	if err != nil {
		return models.Coord{}, fmt.Errorf("bad lat %q: %w", out[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(out[0].Lon, 64)
	if err != nil {
		return models.Coord{}, fmt.Errorf("bad lon %q: %w", out[0].Lon, err)
	}
	return models.Coord{Lat: lat, Lon: lon}, nil
}
