package mining

import (
	"math"

	"decred-onchain-lab/internal/frame"
	"decred-onchain-lab/internal/metrics"
)

// Costs are the operating assumptions applied to every device.
type Costs struct {
	Overhead       float64 `yaml:"overhead"`          // facility CAPEX as a share of hardware cost
	PowerUSDPerKWh float64 `yaml:"power_usd_per_kwh"` // electricity price
	OpOverhead     float64 `yaml:"op_overhead"`       // yearly upkeep as a share of hardware cost
}

// DefaultCosts returns 5% overhead, $0.05/kWh and 5% yearly upkeep.
func DefaultCosts() Costs {
	return Costs{Overhead: 0.05, PowerUSDPerKWh: 0.05, OpOverhead: 0.05}
}

// minHashrateTHs excludes the first days of the chain where the reported
// hashrate is effectively zero.
const minHashrateTHs = 1

// Column suffixes added per device.
const (
	SuffixCount   = "_cnt"
	SuffixCost    = "_cost"
	SuffixPower   = "_power_kWh"
	SuffixCAPEX   = "_CAPEX"
	SuffixOPEX    = "_OPEX"
	SuffixProf    = "_pow_prof"
	SuffixProfCum = "_pow_prof_cum"
)

// Apply adds per-device fleet columns:
//   - cnt          = ceil(network hashrate / device hashrate)
//   - cost         = cnt * device price
//   - power_kWh    = cnt * device kW * 24
//   - CAPEX        = cost * (1 + overhead)
//   - OPEX         = power_kWh * $/kWh + op_overhead/365 * cost
//   - pow_prof     = (PoW income - OPEX) / CAPEX
//   - pow_prof_cum = running sum of pow_prof from launch
//
// Rows before the device's launch height, or with hashrate <= 1 TH/s, are NaN.
func Apply(t *frame.Table, devices []Device, c Costs) (*frame.Table, error) {
	if err := t.Require(metrics.ColHashrateTHs, metrics.ColPoWIncomeUSD, metrics.ColBlk); err != nil {
		return nil, err
	}
	hash, _ := t.Column(metrics.ColHashrateTHs)
	income, _ := t.Column(metrics.ColPoWIncomeUSD)
	blk, _ := t.Column(metrics.ColBlk)

	var out []frame.Col
	for _, d := range devices {
		cnt := frame.NaNs(t.Len())
		cost := frame.NaNs(t.Len())
		power := frame.NaNs(t.Len())
		capex := frame.NaNs(t.Len())
		opex := frame.NaNs(t.Len())
		prof := frame.NaNs(t.Len())

		for i := range hash {
			if !(hash[i] > minHashrateTHs) || math.IsNaN(blk[i]) || blk[i] < float64(d.BlkStart) {
				continue
			}
			cnt[i] = math.Ceil(hash[i] / d.HashrateTHs)
			cost[i] = cnt[i] * d.PriceUSD
			power[i] = cnt[i] * d.PowerKW * 24
			capex[i] = cost[i] * (1 + c.Overhead)
			opex[i] = power[i]*c.PowerUSDPerKWh + c.OpOverhead/365*cost[i]
			if capex[i] > 0 {
				prof[i] = (income[i] - opex[i]) / capex[i]
			}
		}

		out = append(out,
			frame.Col{Name: d.Model + SuffixCount, Values: cnt},
			frame.Col{Name: d.Model + SuffixCost, Values: cost},
			frame.Col{Name: d.Model + SuffixPower, Values: power},
			frame.Col{Name: d.Model + SuffixCAPEX, Values: capex},
			frame.Col{Name: d.Model + SuffixOPEX, Values: opex},
			frame.Col{Name: d.Model + SuffixProf, Values: prof},
			frame.Col{Name: d.Model + SuffixProfCum, Values: frame.CumSum(prof)},
		)
	}
	if len(out) == 0 {
		return t, nil
	}
	return t.WithColumns(out...)
}

// Summary is the per-device fleet summary.
type Summary struct {
	Device
	THPerKW      float64      `json:"TH_per_kWh"`
	MaxCount     int64        `json:"max_cnt"`
	AvgCount     int64        `json:"avg_cnt"`
	MaxCAPEX     frame.Number `json:"max_CAPEX"`
	MaxOPEX      frame.Number `json:"max_OPEX"`
	MaxOPEXRatio frame.Number `json:"max_OPEX_ratio"`
}

// Summarize reports the peak and average fleet sizes after Apply.
// MaxOPEX counts power cost only.
func Summarize(t *frame.Table, devices []Device, c Costs) ([]Summary, error) {
	out := make([]Summary, 0, len(devices))
	for _, d := range devices {
		cnt, err := t.Column(d.Model + SuffixCount)
		if err != nil {
			return nil, err
		}
		maxCnt, avg := frame.Max(cnt), frame.Mean(cnt)
		s := Summary{Device: d, THPerKW: d.THPerKW()}
		if !math.IsNaN(maxCnt) {
			s.MaxCount = int64(maxCnt)
			s.AvgCount = int64(avg)
		}
		capex := float64(s.MaxCount) * d.PriceUSD * (1 + c.Overhead)
		opex := float64(s.MaxCount) * d.PowerKW * 24 * c.PowerUSDPerKWh
		s.MaxCAPEX = frame.Number(capex)
		s.MaxOPEX = frame.Number(opex)
		s.MaxOPEXRatio = frame.Number(math.NaN())
		if capex > 0 {
			s.MaxOPEXRatio = frame.Number(opex / capex)
		}
		out = append(out, s)
	}
	return out, nil
}
