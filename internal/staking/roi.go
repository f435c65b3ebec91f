// Package staking projects ticket staking rewards forward from a start height.
package staking

import (
	"errors"
	"fmt"
	"time"

	"decred-onchain-lab/internal/frame"
	"decred-onchain-lab/internal/subsidy"
)

// ErrInvalidParams is returned when projection parameters are out of range.
var ErrInvalidParams = errors.New("invalid staking parameters")

const blockTime = 5 * time.Minute

// Params configures a projection.
type Params struct {
	Tickets         int       // number of tickets, each reported as tic_1..tic_n
	StartHeight     int64     // purchase height; must be resolved by the caller
	StartDate       time.Time // date of StartHeight
	TicketPrice     float64   // DCR locked per ticket
	VoteDelayBlocks int64     // blocks from purchase to vote; stake is re-locked after each vote
	HorizonBlocks   int64
	StepBlocks      int64
}

// DefaultParams returns a one-year projection of five tickets.
func DefaultParams() Params {
	return Params{
		Tickets:         5,
		VoteDelayBlocks: subsidy.DefaultVoteDelay,
		HorizonBlocks:   subsidy.BlocksPerYear,
		StepBlocks:      subsidy.BlocksPerDay,
	}
}

// Validate checks parameter ranges.
func (p Params) Validate() error {
	switch {
	case p.Tickets < 1:
		return fmt.Errorf("%w: tickets %d", ErrInvalidParams, p.Tickets)
	case p.StartHeight <= 0:
		return fmt.Errorf("%w: start height %d", ErrInvalidParams, p.StartHeight)
	case !(p.TicketPrice > 0):
		return fmt.Errorf("%w: ticket price %v", ErrInvalidParams, p.TicketPrice)
	case p.VoteDelayBlocks <= 0:
		return fmt.Errorf("%w: vote delay %d", ErrInvalidParams, p.VoteDelayBlocks)
	case p.HorizonBlocks <= 0 || p.StepBlocks <= 0:
		return fmt.Errorf("%w: horizon %d step %d", ErrInvalidParams, p.HorizonBlocks, p.StepBlocks)
	}
	return nil
}

// Point is the projection at one height.
type Point struct {
	Height      int64          `json:"blk"`
	Date        time.Time      `json:"date"`
	Votes       int            `json:"votes"`
	Reward      frame.Number   `json:"reward"` // cumulative DCR per ticket
	Stacked     []frame.Number `json:"tickets"`
	TicketPrice frame.Number   `json:"tic_price"`
	ROICum      frame.Number   `json:"tic_roi_cum"`
	ROIAnnual   frame.Number   `json:"tic_roi"`
}

// Projection is the result of Project.
type Projection struct {
	Params Params  `json:"-"`
	Points []Point `json:"points"`
}

// Project accrues vote rewards from the subsidy schedule. Each ticket votes
// once every VoteDelayBlocks and is immediately bought again at the same
// price, so rewards are not compounded into extra tickets.
func Project(s *subsidy.Schedule, p Params) (*Projection, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("%w: no subsidy schedule", ErrInvalidParams)
	}

	proj := &Projection{Params: p}
	end := p.StartHeight + p.HorizonBlocks
	nextVote := p.StartHeight + p.VoteDelayBlocks
	var reward float64
	votes := 0

	for h := p.StartHeight + p.StepBlocks; h <= end; h += p.StepBlocks {
		for nextVote <= h {
			reward += subsidy.Coins(s.VoteReward(nextVote))
			votes++
			nextVote += p.VoteDelayBlocks
		}

		elapsed := h - p.StartHeight
		roi := reward / p.TicketPrice
		stacked := make([]frame.Number, p.Tickets)
		for i := range stacked {
			stacked[i] = frame.Number(float64(i+1) * reward)
		}

		proj.Points = append(proj.Points, Point{
			Height:      h,
			Date:        p.StartDate.Add(time.Duration(elapsed) * blockTime),
			Votes:       votes,
			Reward:      frame.Number(reward),
			Stacked:     stacked,
			TicketPrice: frame.Number(p.TicketPrice),
			ROICum:      frame.Number(roi),
			ROIAnnual:   frame.Number(roi * float64(subsidy.BlocksPerYear) / float64(elapsed)),
		})
	}
	return proj, nil
}

// Columns flattens the projection into named columns: blk, tic_1..tic_n,
// tic_roi_cum and tic_roi.
func (pr *Projection) Columns() map[string][]float64 {
	out := map[string][]float64{
		"blk":         make([]float64, len(pr.Points)),
		"tic_roi_cum": make([]float64, len(pr.Points)),
		"tic_roi":     make([]float64, len(pr.Points)),
	}
	for i := 1; i <= pr.Params.Tickets; i++ {
		out[fmt.Sprintf("tic_%d", i)] = make([]float64, len(pr.Points))
	}
	for j, pt := range pr.Points {
		out["blk"][j] = float64(pt.Height)
		out["tic_roi_cum"][j] = pt.ROICum.Float()
		out["tic_roi"][j] = pt.ROIAnnual.Float()
		for i, v := range pt.Stacked {
			out[fmt.Sprintf("tic_%d", i+1)][j] = v.Float()
		}
	}
	return out
}

// Latest returns the final point; ok is false for an empty projection.
func (pr *Projection) Latest() (Point, bool) {
	if pr == nil || len(pr.Points) == 0 {
		return Point{}, false
	}
	return pr.Points[len(pr.Points)-1], true
}
