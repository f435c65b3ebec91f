// Package subsidy implements the Decred block reward schedule.
package subsidy

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Protocol constants for Decred mainnet.
const (
	AtomsPerCoin      = 1e8
	BlocksPerDay      = 288
	BlocksPerYear     = 105120
	DefaultVoteDelay  = 8064 // average blocks between ticket purchase and vote
	baseSubsidyAtoms  = 3119582664
	reductionInterval = 6144
	mulSubsidy        = 100
	divSubsidy        = 101
	votesPerBlock     = 5
)

// SplitEra is a reward split, in tenths, active from Height onwards.
type SplitEra struct {
	Height   int64
	Work     int64
	Stake    int64
	Treasury int64
}

// Split is the per-block reward breakdown in atoms.
type Split struct {
	Total    int64
	Work     int64
	Stake    int64
	Treasury int64
}

// Schedule computes subsidy amounts. The zero value is not usable; use Mainnet.
type Schedule struct {
	BaseSubsidy       int64
	ReductionInterval int64
	MulSubsidy        int64
	DivSubsidy        int64
	VotesPerBlock     int64
	Eras              []SplitEra
}

// Mainnet returns the mainnet schedule with the split change at changeHeight.
// A changeHeight <= 0 uses the DCP-0010 activation height 657280.
func Mainnet(changeHeight int64) *Schedule {
	if changeHeight <= 0 {
		changeHeight = 657280
	}
	return &Schedule{
		BaseSubsidy:       baseSubsidyAtoms,
		ReductionInterval: reductionInterval,
		MulSubsidy:        mulSubsidy,
		DivSubsidy:        divSubsidy,
		VotesPerBlock:     votesPerBlock,
		Eras: []SplitEra{
			{Height: 0, Work: 6, Stake: 3, Treasury: 1},
			{Height: changeHeight, Work: 1, Stake: 8, Treasury: 1},
		},
	}
}

// Validate checks the schedule parameters.
func (s *Schedule) Validate() error {
	if s.BaseSubsidy <= 0 || s.ReductionInterval <= 0 || s.MulSubsidy <= 0 || s.DivSubsidy <= 0 {
		return fmt.Errorf("subsidy schedule: non-positive parameter")
	}
	if s.VotesPerBlock <= 0 {
		return fmt.Errorf("subsidy schedule: votes per block must be positive")
	}
	if len(s.Eras) == 0 {
		return fmt.Errorf("subsidy schedule: no split eras")
	}
	for i, e := range s.Eras {
		if e.Work+e.Stake+e.Treasury != 10 {
			return fmt.Errorf("subsidy schedule: era %d split does not sum to 10", i)
		}
		if i > 0 && e.Height <= s.Eras[i-1].Height {
			return fmt.Errorf("subsidy schedule: era %d height not increasing", i)
		}
	}
	return nil
}

// Subsidy returns the full block subsidy at height in atoms.
// Reductions are applied iteratively with integer math as the consensus code does.
func (s *Schedule) Subsidy(height int64) int64 {
	if height < 0 {
		return 0
	}
	sub := s.BaseSubsidy
	for i := int64(0); i < height/s.ReductionInterval; i++ {
		sub = sub * s.MulSubsidy / s.DivSubsidy
		if sub == 0 {
			break
		}
	}
	return sub
}

func (s *Schedule) era(height int64) SplitEra {
	i := sort.Search(len(s.Eras), func(i int) bool { return s.Eras[i].Height > height })
	if i == 0 {
		return s.Eras[0]
	}
	return s.Eras[i-1]
}

// Split returns the work/stake/treasury breakdown at height.
func (s *Schedule) Split(height int64) Split {
	return s.splitOf(s.Subsidy(height), height)
}

// VoteReward returns the reward paid to a single vote at height in atoms.
func (s *Schedule) VoteReward(height int64) int64 {
	return s.Split(height).Stake / s.VotesPerBlock
}

// Coins converts atoms to DCR.
func Coins(atoms int64) float64 {
	return decimal.New(atoms, -8).InexactFloat64()
}

// Shares returns the work, stake and treasury fractions at height.
func (s *Schedule) Shares(height int64) (work, stake, treasury float64) {
	e := s.era(height)
	return float64(e.Work) / 10, float64(e.Stake) / 10, float64(e.Treasury) / 10
}
