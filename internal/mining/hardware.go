// Package mining estimates the hardware fleet and economics needed to match
// the observed network hashrate.
package mining

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"decred-onchain-lab/internal/frame"
)

// Device is one mining hardware model from the reference table.
type Device struct {
	Model       string  `json:"model"`
	HashrateTHs float64 `json:"hashrate_THs"`
	PowerKW     float64 `json:"power_kWh"` // draw in kW, named as in the source table
	PriceUSD    float64 `json:"device_price_usd"`
	BlkStart    int64   `json:"blk_start"` // launch block height
}

// THPerKW returns the device efficiency.
func (d Device) THPerKW() float64 {
	if d.PowerKW == 0 {
		return 0
	}
	return d.HashrateTHs / d.PowerKW
}

var hardwareHeader = []string{"model", "hashrate_THs", "power_kWh", "device_price_usd", "blk_start"}

// LoadHardwareFile reads the hardware table from path.
func LoadHardwareFile(path string) ([]Device, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open hardware table: %w", err)
	}
	defer f.Close()
	return LoadHardwareCSV(f)
}

// LoadHardwareCSV parses a hardware table with the columns
// model,hashrate_THs,power_kWh,device_price_usd,blk_start in any order.
// Extra columns are ignored.
func LoadHardwareCSV(r io.Reader) ([]Device, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("hardware table is empty")
		}
		return nil, fmt.Errorf("read hardware header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	for _, h := range hardwareHeader {
		if _, ok := idx[h]; !ok {
			return nil, fmt.Errorf("hardware table: %w", &frame.MissingColumnError{Column: h})
		}
	}

	var out []Device
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("hardware table line %d: %w", line, err)
		}

		num := func(col string) (float64, error) {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[idx[col]]), 64)
			if err != nil {
				return 0, fmt.Errorf("hardware table line %d column %s: %w", line, col, err)
			}
			return v, nil
		}
		d := Device{Model: strings.TrimSpace(rec[idx["model"]])}
		if d.Model == "" {
			return nil, fmt.Errorf("hardware table line %d: empty model", line)
		}
		if d.HashrateTHs, err = num("hashrate_THs"); err != nil {
			return nil, err
		}
		if d.PowerKW, err = num("power_kWh"); err != nil {
			return nil, err
		}
		if d.PriceUSD, err = num("device_price_usd"); err != nil {
			return nil, err
		}
		blk, err := num("blk_start")
		if err != nil {
			return nil, err
		}
		d.BlkStart = int64(blk)
		if d.HashrateTHs <= 0 {
			return nil, fmt.Errorf("hardware table line %d: hashrate must be positive", line)
		}
		out = append(out, d)
	}
	return out, nil
}
