package dcrdata

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// TipConfig configures the pubsub connection.
type TipConfig struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ReadTimeout      time.Duration
}

// DefaultTipConfig returns default websocket timeouts.
func DefaultTipConfig() TipConfig {
	return TipConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		ReadTimeout:      10 * time.Minute,
	}
}

// TipWatcher reads the chain tip from the explorer pubsub endpoint.
type TipWatcher struct {
	endpoint string
	config   TipConfig
	log      zerolog.Logger
}

// NewTipWatcher creates a watcher for the pubsub endpoint; a nil cfg
// selects DefaultTipConfig.
func NewTipWatcher(endpoint string, cfg *TipConfig, log zerolog.Logger) *TipWatcher {
	c := DefaultTipConfig()
	if cfg != nil {
		c = *cfg
	}
	return &TipWatcher{endpoint: endpoint, config: c, log: log}
}

type psRequest struct {
	Event   string    `json:"event"`
	Message psMessage `json:"message"`
}

type psMessage struct {
	RequestID int64  `json:"request_id"`
	Message   string `json:"message"`
}

type psEvent struct {
	Event   string          `json:"event"`
	Message json.RawMessage `json:"message"`
}

type newBlock struct {
	Block struct {
		Height int64 `json:"height"`
		Time   int64 `json:"time"`
	} `json:"block"`
}

// Tip is a block announced by the explorer.
type Tip struct {
	Height int64
	Time   time.Time
}

// Next subscribes to newblock and returns the first block announced.
func (w *TipWatcher) Next(ctx context.Context) (Tip, error) {
	dialer := websocket.Dialer{HandshakeTimeout: w.config.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, w.endpoint, nil)
	if err != nil {
		return Tip{}, fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	conn.SetWriteDeadline(time.Now().Add(w.config.WriteTimeout))
	sub := psRequest{Event: "subscribe", Message: psMessage{RequestID: 1, Message: "newblock"}}
	if err := conn.WriteJSON(sub); err != nil {
		return Tip{}, fmt.Errorf("write subscribe: %w", err)
	}

	for {
		conn.SetReadDeadline(time.Now().Add(w.config.ReadTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return Tip{}, ctx.Err()
			}
			return Tip{}, fmt.Errorf("websocket read: %w", err)
		}
		var ev psEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			w.log.Debug().Err(err).Msg("skipping malformed pubsub frame")
			continue
		}
		if ev.Event != "newblock" {
			continue
		}
		tip, err := decodeBlock(ev.Message)
		if err != nil {
			return Tip{}, err
		}
		w.log.Info().Int64("height", tip.Height).Msg("chain tip")
		return tip, nil
	}
}

// decodeBlock accepts the event payload either inline or as a JSON string.
func decodeBlock(raw json.RawMessage) (Tip, error) {
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Tip{}, fmt.Errorf("newblock payload: %w", err)
		}
		raw = json.RawMessage(s)
	}
	var nb newBlock
	if err := json.Unmarshal(raw, &nb); err != nil {
		return Tip{}, fmt.Errorf("newblock payload: %w", err)
	}
	if nb.Block.Height <= 0 {
		return Tip{}, fmt.Errorf("newblock payload without height")
	}
	return Tip{Height: nb.Block.Height, Time: time.Unix(nb.Block.Time, 0).UTC()}, nil
}
