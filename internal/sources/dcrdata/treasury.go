package dcrdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/mr-tron/base58"

	"decred-onchain-lab/internal/frame"
	"decred-onchain-lab/internal/metrics"
	"decred-onchain-lab/internal/sources"
)

// ErrBadAddress is returned for strings that are not mainnet script-hash addresses.
var ErrBadAddress = errors.New("invalid treasury address")

// Mainnet pay-to-script-hash prefix ("Dc").
var scriptHashPrefix = [2]byte{0x07, 0x1a}

// addressLen is prefix, 20-byte hash and 4-byte checksum.
const addressLen = 26

// ValidateAddress checks the base58 payload length and network prefix of a
// Decred mainnet script-hash address. The checksum is not verified.
func ValidateAddress(addr string) error {
	b, err := base58.Decode(addr)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrBadAddress, addr, err)
	}
	if len(b) != addressLen {
		return fmt.Errorf("%w: %q decodes to %d bytes", ErrBadAddress, addr, len(b))
	}
	if b[0] != scriptHashPrefix[0] || b[1] != scriptHashPrefix[1] {
		return fmt.Errorf("%w: %q has prefix %#04x", ErrBadAddress, addr, uint16(b[0])<<8|uint16(b[1]))
	}
	return nil
}

type amountFlow struct {
	Time     []string        `json:"time"`
	Received json.RawMessage `json:"received"`
	Sent     json.RawMessage `json:"sent"`
	Net      json.RawMessage `json:"net"`
}

// Treasury returns the daily received, sent and net DCR of the treasury
// address, with balance as the running sum of net.
func (c *Client) Treasury(ctx context.Context, addr string) (*frame.Table, error) {
	if err := ValidateAddress(addr); err != nil {
		return nil, err
	}
	var flow amountFlow
	path := "/address/" + url.PathEscape(addr) + "/amountflow/day"
	if err := c.api.GetJSON(ctx, path, nil, &flow); err != nil {
		return nil, err
	}
	n := len(flow.Time)
	if n == 0 {
		return nil, fmt.Errorf("%w: treasury amountflow has no rows", sources.ErrSchema)
	}

	dates := make([]time.Time, n)
	for i, s := range flow.Time {
		d, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, fmt.Errorf("%w: treasury time %q", sources.ErrSchema, s)
		}
		dates[i] = frame.Day(d)
	}
	cols := make([]frame.Col, 0, 4)
	for _, c := range []struct {
		name string
		raw  json.RawMessage
	}{
		{metrics.ColTreasuryIn, flow.Received},
		{metrics.ColTreasuryOut, flow.Sent},
		{metrics.ColTreasuryNet, flow.Net},
	} {
		if len(c.raw) == 0 {
			return nil, fmt.Errorf("%w: treasury amountflow has no %s", sources.ErrSchema, c.name)
		}
		v, err := decodeNumbers(c.raw, false)
		if err != nil {
			return nil, fmt.Errorf("treasury %s: %w", c.name, err)
		}
		if len(v) != n {
			return nil, fmt.Errorf("%w: treasury %s has %d values for %d days", sources.ErrSchema, c.name, len(v), n)
		}
		cols = append(cols, frame.Col{Name: c.name, Values: v})
	}
	cols = append(cols, frame.Col{Name: metrics.ColTreasuryBal, Values: frame.CumSum(cols[2].Values)})

	t, err := frame.New(dates)
	if err != nil {
		return nil, fmt.Errorf("treasury: %w", err)
	}
	return t.WithColumns(cols...)
}
