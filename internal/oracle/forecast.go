package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dhruthiaithal/Microlabs-Triage/internal/models"
)

type forecastResponse struct {
	Forecast []models.ForecastPoint `json:"forecast"`
}

type ForecastClient struct {
	url    string
	client *http.Client
}

func NewForecastClient(url string, timeout time.Duration) *ForecastClient {
	return &ForecastClient{
		url:    url,
		client: newHTTPClient(timeout),
	}
}

// Fetch requests a projection covering the next hours hours. The returned
// points arrive ordered, one per future hour.
func (c *ForecastClient) Fetch(ctx context.Context, hours int) ([]models.ForecastPoint, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	q := req.URL.Query()
	q.Set("hours", strconv.Itoa(hours))
	req.URL.RawQuery = q.Encode()

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error while doing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d - status: %s", resp.StatusCode, resp.Status)
	}

	var data forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("error decoding resp.Body: %w", err)
	}

	return data.Forecast, nil
}
