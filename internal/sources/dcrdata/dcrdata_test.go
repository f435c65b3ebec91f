package dcrdata

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mr-tron/base58"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"decred-onchain-lab/internal/metrics"
	"decred-onchain-lab/internal/sources"
)

func testAddress(prefix0, prefix1 byte, n int) string {
	b := make([]byte, n)
	b[0], b[1] = prefix0, prefix1
	for i := 2; i < n; i++ {
		b[i] = byte(i)
	}
	return base58.Encode(b)
}

func newClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	return New(sources.New("dcrdata", server.URL, sources.WithRateLimit(100, 1)))
}

func TestSeries_SharesChartRequests(t *testing.T) {
	var calls atomic.Int32
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "day", r.URL.Query().Get("bin"))
		switch r.URL.Path {
		case "/chart/ticket-price":
			w.Write([]byte(`{"t":[1609459200,1609545600],"price":[15000000000,null],"count":[10,12]}`))
		default:
			http.NotFound(w, r)
		}
	})
	fields := []Field{
		{Chart: "ticket-price", Key: "price", Column: metrics.ColTicPriceAvg, Atoms: true},
		{Chart: "ticket-price", Key: "count", Column: "tic_cnt"},
	}
	series, err := c.Series(context.Background(), fields)
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, int32(1), calls.Load())

	price := series[0]
	assert.Equal(t, metrics.ColTicPriceAvg, price.Name)
	assert.Equal(t, 150.0, price.Values[0])
	assert.True(t, math.IsNaN(price.Values[1]))
	assert.Equal(t, time.Date(2021, 1, 2, 0, 0, 0, 0, time.UTC), price.Dates[1])
	assert.Equal(t, 12.0, series[1].Values[1])
}

func TestSeries_MissingField(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"t":[1609459200],"price":[1]}`))
	})
	_, err := c.Series(context.Background(), []Field{{Chart: "ticket-price", Key: "volume", Column: "x"}})
	assert.True(t, errors.Is(err, sources.ErrSchema))
}

func TestValidateAddress(t *testing.T) {
	assert.NoError(t, ValidateAddress(testAddress(0x07, 0x1a, addressLen)))
	assert.True(t, errors.Is(ValidateAddress(testAddress(0x07, 0x3f, addressLen)), ErrBadAddress))
	assert.True(t, errors.Is(ValidateAddress(testAddress(0x07, 0x1a, 30)), ErrBadAddress))
	assert.True(t, errors.Is(ValidateAddress("0OIl"), ErrBadAddress))
}

func TestTreasury(t *testing.T) {
	addr := testAddress(0x07, 0x1a, addressLen)
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/address/"+addr+"/amountflow/day", r.URL.Path)
		w.Write([]byte(`{
			"time": ["2021-01-01T00:00:00Z", "2021-01-02T00:00:00Z", "2021-01-03T00:00:00Z"],
			"received": [100, 50, 0],
			"sent": [0, 20, 40.5],
			"net": [100, 30, -40.5]
		}`))
	})
	tbl, err := c.Treasury(context.Background(), addr)
	require.NoError(t, err)
	bal, err := tbl.Column(metrics.ColTreasuryBal)
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 130, 89.5}, bal)
	sent, _ := tbl.Column(metrics.ColTreasuryOut)
	assert.Equal(t, 40.5, sent[2])
}

func TestTreasury_LengthMismatch(t *testing.T) {
	addr := testAddress(0x07, 0x1a, addressLen)
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"time":["2021-01-01T00:00:00Z"],"received":[1,2],"sent":[0],"net":[1]}`))
	})
	_, err := c.Treasury(context.Background(), addr)
	assert.True(t, errors.Is(err, sources.ErrSchema))
}

func TestTipWatcher_FirstBlock(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var req psRequest
		if err := conn.ReadJSON(&req); err != nil {
			t.Errorf("read subscribe: %v", err)
			return
		}
		if req.Event != "subscribe" || req.Message.Message != "newblock" {
			t.Errorf("unexpected subscribe %+v", req)
		}
		conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"ping","message":"1"}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"newblock","message":"{\"block\":{\"height\":812345,\"time\":1700000000}}"}`))
		// keep the connection open until the client leaves
		conn.ReadMessage()
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ps"
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tip, err := NewTipWatcher(url, nil, zerolog.Nop()).Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(812345), tip.Height)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), tip.Time)
}

func TestTipWatcher_ContextDone(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err := NewTipWatcher("ws"+strings.TrimPrefix(server.URL, "http"), nil, zerolog.Nop()).Next(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
