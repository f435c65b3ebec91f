package coinmetrics

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"decred-onchain-lab/internal/sources"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/timeseries/asset-metrics" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("page") == "2" {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"data": []map[string]interface{}{
					{"asset": "dcr", "time": "2021-01-03T00:00:00.000000000Z", "PriceUSD": "30.5", "SplyCur": "12000200"},
				},
			})
			return
		}
		q := r.URL.Query()
		if q.Get("assets") != "dcr" || q.Get("frequency") != "1d" || q.Get("metrics") != "PriceUSD,SplyCur" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{"asset": "dcr", "time": "2021-01-01T00:00:00.000000000Z", "PriceUSD": "28.1", "SplyCur": "12000000"},
				{"asset": "dcr", "time": "2021-01-02T00:00:00.000000000Z", "SplyCur": "12000100"},
			},
			"next_page_url": server.URL + "/timeseries/asset-metrics?page=2",
		})
	}))
	return server
}

func TestAssetMetrics_Paginates(t *testing.T) {
	server := newServer(t)
	defer server.Close()

	c := New(sources.New("coinmetrics", server.URL, sources.WithRateLimit(100, 1)), 2)
	series, err := c.AssetMetrics(context.Background(), "dcr", []string{"PriceUSD", "SplyCur"}, time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("AssetMetrics: %v", err)
	}
	if len(series) != 2 {
		t.Fatalf("expected 2 series, got %d", len(series))
	}
	price := series[0]
	if price.Len() != 3 {
		t.Fatalf("expected 3 points, got %d", price.Len())
	}
	if price.Values[0] != 28.1 || price.Values[2] != 30.5 {
		t.Errorf("unexpected prices %v", price.Values)
	}
	if !math.IsNaN(price.Values[1]) {
		t.Errorf("missing value should be NaN, got %v", price.Values[1])
	}
	if !price.Dates[2].Equal(time.Date(2021, 1, 3, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected date %v", price.Dates[2])
	}
}

func TestAssetMetrics_AbsentMetricIsSchemaError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"asset":"dcr","time":"2021-01-01T00:00:00Z","PriceUSD":"1"}]}`))
	}))
	defer server.Close()

	c := New(sources.New("coinmetrics", server.URL, sources.WithRateLimit(100, 1)), 0)
	_, err := c.AssetMetrics(context.Background(), "dcr", []string{"PriceUSD", "CapRealUSD"}, time.Now())
	if !errors.Is(err, sources.ErrSchema) {
		t.Errorf("expected schema error, got %v", err)
	}
}

func TestAssetMetrics_BadValue(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"asset":"dcr","time":"2021-01-01T00:00:00Z","PriceUSD":"n/a"}]}`))
	}))
	defer server.Close()

	c := New(sources.New("coinmetrics", server.URL, sources.WithRateLimit(100, 1)), 0)
	_, err := c.AssetMetrics(context.Background(), "dcr", []string{"PriceUSD"}, time.Now())
	if !errors.Is(err, sources.ErrSchema) {
		t.Errorf("expected schema error, got %v", err)
	}
}

func TestAssetMetrics_UpstreamStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	c := New(sources.New("coinmetrics", server.URL, sources.WithRateLimit(100, 1)), 0)
	_, err := c.AssetMetrics(context.Background(), "dcr", []string{"PriceUSD"}, time.Now())
	var ue *sources.UpstreamError
	if !errors.As(err, &ue) || ue.Status != http.StatusForbidden {
		t.Errorf("expected 403 upstream error, got %v", err)
	}
}
