// Package coinmetrics fetches daily asset metrics from the Coin Metrics API.
package coinmetrics

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"decred-onchain-lab/internal/frame"
	"decred-onchain-lab/internal/sources"
)

// DefaultPageSize is the largest page the community API serves.
const DefaultPageSize = 10000

// Client wraps the shared upstream client with the asset-metrics endpoint.
type Client struct {
	api      *sources.Client
	pageSize int
}

// New creates a client; pageSize <= 0 selects DefaultPageSize.
func New(api *sources.Client, pageSize int) *Client {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Client{api: api, pageSize: pageSize}
}

type page struct {
	Data        []map[string]json.RawMessage `json:"data"`
	NextPageURL string                       `json:"next_page_url"`
}

// AssetMetrics returns one series per requested metric for asset, from
// start onwards, following pagination until exhausted. Values arrive as
// decimal strings; a missing or null value becomes NaN. A metric absent
// from every row is a schema error.
func (c *Client) AssetMetrics(ctx context.Context, asset string, metrics []string, start time.Time) ([]frame.Series, error) {
	if len(metrics) == 0 {
		return nil, fmt.Errorf("coinmetrics: no metrics requested")
	}
	q := url.Values{
		"assets":     {asset},
		"metrics":    {strings.Join(metrics, ",")},
		"frequency":  {"1d"},
		"page_size":  {strconv.Itoa(c.pageSize)},
		"start_time": {start.UTC().Format("2006-01-02")},
	}

	var p page
	if err := c.api.GetJSON(ctx, "/timeseries/asset-metrics", q, &p); err != nil {
		return nil, err
	}

	var dates []time.Time
	values := make([][]float64, len(metrics))
	present := make([]bool, len(metrics))
	for {
		for _, row := range p.Data {
			d, err := parseTime(row["time"])
			if err != nil {
				return nil, fmt.Errorf("coinmetrics %s: %w", asset, err)
			}
			dates = append(dates, d)
			for j, m := range metrics {
				v, ok, err := parseValue(row[m])
				if err != nil {
					return nil, fmt.Errorf("coinmetrics %s %s on %s: %w", asset, m, d.Format("2006-01-02"), err)
				}
				present[j] = present[j] || ok
				values[j] = append(values[j], v)
			}
		}
		if p.NextPageURL == "" {
			break
		}
		next := p.NextPageURL
		p = page{}
		if err := c.api.GetURL(ctx, next, &p); err != nil {
			return nil, err
		}
	}

	out := make([]frame.Series, len(metrics))
	for j, m := range metrics {
		if !present[j] {
			return nil, fmt.Errorf("%w: coinmetrics %s has no %s", sources.ErrSchema, asset, m)
		}
		out[j] = frame.Series{Name: m, Dates: dates, Values: values[j]}
	}
	return out, nil
}

func parseTime(raw json.RawMessage) (time.Time, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || s == "" {
		return time.Time{}, fmt.Errorf("%w: row without time", sources.ErrSchema)
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: time %q", sources.ErrSchema, s)
	}
	return frame.Day(t), nil
}

// parseValue accepts a decimal string, a bare number or null.
func parseValue(raw json.RawMessage) (float64, bool, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return math.NaN(), false, nil
	}
	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false, err
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%w: value %q", sources.ErrSchema, s)
	}
	return v, true, nil
}
