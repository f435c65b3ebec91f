package subsidy

import "time"

// Genesis is the mainnet genesis block time.
var Genesis = time.Date(2016, 2, 8, 20, 32, 25, 0, time.UTC)

const (
	premineAtoms          = 168_000_000_000_000 // block 1 pays 1.68M DCR
	stakeValidationHeight = 4096
	targetBlockTime       = 5 * time.Minute
)

// SupplyPoint is the ideal issued supply at a height assuming every block
// carries a full set of votes.
type SupplyPoint struct {
	Height int64     `json:"blk"`
	Date   time.Time `json:"date"`
	Supply float64   `json:"SplyIdeal"` // DCR
	S2F    float64   `json:"S2F_ideal"` // supply over annualised issuance at this height
}

// Curve returns the ideal supply every step blocks up to maxHeight.
// Blocks before stake validation pay no stake reward.
func (s *Schedule) Curve(maxHeight, step int64) []SupplyPoint {
	if step <= 0 {
		step = BlocksPerDay
	}
	var out []SupplyPoint
	var supply int64
	var sub int64
	for h := int64(1); h <= maxHeight; h++ {
		if h == 1 {
			supply = premineAtoms
		} else {
			if sub == 0 || h%s.ReductionInterval == 0 {
				sub = s.Subsidy(h)
			}
			sp := s.splitOf(sub, h)
			paid := sp.Work + sp.Treasury
			if h >= stakeValidationHeight {
				paid += sp.Stake
			}
			supply += paid
		}
		if h%step == 0 {
			annual := s.splitOf(s.Subsidy(h), h)
			flow := float64(annual.Work+annual.Stake+annual.Treasury) * BlocksPerYear
			out = append(out, SupplyPoint{
				Height: h,
				Date:   Genesis.Add(time.Duration(h) * targetBlockTime),
				Supply: Coins(supply),
				S2F:    float64(supply) / flow,
			})
		}
	}
	return out
}

func (s *Schedule) splitOf(total, height int64) Split {
	e := s.era(height)
	return Split{
		Total:    total,
		Work:     total * e.Work / 10,
		Stake:    total * e.Stake / 10,
		Treasury: total * e.Treasury / 10,
	}
}
