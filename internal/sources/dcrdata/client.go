// Package dcrdata fetches Decred chain charts, treasury flows and the live
// block tip from a dcrdata explorer.
package dcrdata

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"decred-onchain-lab/internal/frame"
	"decred-onchain-lab/internal/metrics"
	"decred-onchain-lab/internal/sources"
)

// Field maps one array of a chart response to a table column.
type Field struct {
	Chart  string
	Key    string
	Column string
	Atoms  bool // value is in atoms and is converted to DCR
}

// DefaultFields are the explorer inputs of the metric table.
var DefaultFields = []Field{
	{Chart: "ticket-price", Key: "price", Column: metrics.ColTicPriceAvg, Atoms: true},
	{Chart: "ticket-volume", Key: "volume", Column: metrics.ColTicVol, Atoms: true},
	{Chart: "transfer-volume", Key: "volume", Column: metrics.ColTfrVol, Atoms: true},
	{Chart: "privacy-participation", Key: "mixed", Column: metrics.ColAnonMixVol, Atoms: true},
}

// Client reads daily chart series from the dcrdata explorer API.
type Client struct {
	api *sources.Client
}

// New creates a client over the shared upstream client.
func New(api *sources.Client) *Client {
	return &Client{api: api}
}

// Series fetches every chart named by fields once and returns one series
// per field, in field order.
func (c *Client) Series(ctx context.Context, fields []Field) ([]frame.Series, error) {
	charts := map[string]map[string]json.RawMessage{}
	out := make([]frame.Series, 0, len(fields))
	for _, f := range fields {
		body, ok := charts[f.Chart]
		if !ok {
			body = map[string]json.RawMessage{}
			if err := c.api.GetJSON(ctx, "/chart/"+url.PathEscape(f.Chart), url.Values{"bin": {"day"}, "axis": {"time"}}, &body); err != nil {
				return nil, err
			}
			charts[f.Chart] = body
		}
		s, err := decodeChart(body, f)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func decodeChart(body map[string]json.RawMessage, f Field) (frame.Series, error) {
	rawT, ok := body["t"]
	if !ok {
		return frame.Series{}, fmt.Errorf("%w: chart %s has no t axis", sources.ErrSchema, f.Chart)
	}
	rawV, ok := body[f.Key]
	if !ok {
		return frame.Series{}, fmt.Errorf("%w: chart %s has no %s", sources.ErrSchema, f.Chart, f.Key)
	}
	var stamps []int64
	if err := json.Unmarshal(rawT, &stamps); err != nil {
		return frame.Series{}, fmt.Errorf("%w: chart %s t: %v", sources.ErrSchema, f.Chart, err)
	}
	vals, err := decodeNumbers(rawV, f.Atoms)
	if err != nil {
		return frame.Series{}, fmt.Errorf("chart %s %s: %w", f.Chart, f.Key, err)
	}
	if len(vals) != len(stamps) {
		return frame.Series{}, fmt.Errorf("%w: chart %s: %d times, %d %s values", sources.ErrSchema, f.Chart, len(stamps), len(vals), f.Key)
	}
	dates := make([]time.Time, len(stamps))
	for i, s := range stamps {
		dates[i] = frame.Day(time.Unix(s, 0))
	}
	return frame.Series{Name: f.Column, Dates: dates, Values: vals}, nil
}

// decodeNumbers converts a JSON array of numbers or nulls, scaling atoms
// to coins with exact decimal arithmetic.
func decodeNumbers(raw json.RawMessage, atoms bool) ([]float64, error) {
	var nums []*json.Number
	if err := json.Unmarshal(raw, &nums); err != nil {
		return nil, fmt.Errorf("%w: %v", sources.ErrSchema, err)
	}
	out := make([]float64, len(nums))
	for i, n := range nums {
		if n == nil {
			out[i] = math.NaN()
			continue
		}
		d, err := decimal.NewFromString(n.String())
		if err != nil {
			return nil, fmt.Errorf("%w: value %q", sources.ErrSchema, n.String())
		}
		if atoms {
			d = d.Shift(-8)
		}
		out[i] = d.InexactFloat64()
	}
	return out, nil
}
