package metrics

import (
	"math"

	"decred-onchain-lab/internal/frame"
	"decred-onchain-lab/internal/regression"
)

// applyIncome values daily issuance in USD and splits it by recipient
// using the subsidy split in force at the row's block height.
func applyIncome(t *frame.Table, p Params, _ *Artifacts) (*frame.Table, error) {
	c, err := cols(t, ColIssContNtv, ColPriceUSD, ColBlk)
	if err != nil {
		return nil, err
	}
	iss, price, blk := c[0], c[1], c[2]

	usd := frame.Mul(iss, price)
	pow := frame.NaNs(t.Len())
	pos := frame.NaNs(t.Len())
	fund := frame.NaNs(t.Len())
	for i, h := range blk {
		if math.IsNaN(h) || math.IsNaN(usd[i]) {
			continue
		}
		w, s, tr := p.Schedule.Shares(int64(h))
		pow[i] = usd[i] * w
		pos[i] = usd[i] * s
		fund[i] = usd[i] * tr
	}

	return t.WithColumns(
		frame.Col{Name: ColDailyIssuedNtv, Values: iss},
		frame.Col{Name: ColDailyIssuedUSD, Values: usd},
		frame.Col{Name: ColPoWIncomeUSD, Values: pow},
		frame.Col{Name: ColPoSIncomeUSD, Values: pos},
		frame.Col{Name: ColFundIncomeUSD, Values: fund},
		frame.Col{Name: ColTotalIncomeUSD, Values: frame.Add(frame.Add(pow, pos), fund)},
	)
}

// applyCommitments accumulates what each stakeholder group has been paid
// and what has been spent on tickets.
func applyCommitments(t *frame.Table, _ Params, _ *Artifacts) (*frame.Table, error) {
	c, err := cols(t, ColDailyIssuedUSD, ColSplyCur, ColTicUSDCost, ColPoWIncomeUSD, ColPoSIncomeUSD, ColFundIncomeUSD)
	if err != nil {
		return nil, err
	}
	issuedCap := frame.CumSum(c[0])
	return t.WithColumns(
		frame.Col{Name: ColIssuedCapUSD, Values: issuedCap},
		frame.Col{Name: ColIssuedPriceUSD, Values: frame.Div(issuedCap, c[1])},
		frame.Col{Name: ColTicBoundCapUSD, Values: frame.CumSum(c[2])},
		frame.Col{Name: ColPoWIncomeUSD + "_cum", Values: frame.CumSum(c[3])},
		frame.Col{Name: ColPoSIncomeUSD + "_cum", Values: frame.CumSum(c[4])},
		frame.Col{Name: ColFundIncomeUSD + "_cum", Values: frame.CumSum(c[5])},
	)
}

// StockToFlow returns supply over annualised issuance, where issuance is
// the trailing window-day mean of daily issuance.
func StockToFlow(supply, issuance []float64, window int) []float64 {
	flow := frame.Scale(frame.RollingMean(issuance, window), 365)
	return frame.Div(supply, flow)
}

// applyS2F computes S2F, fits ln(CapMrktCurUSD) ~ ln(S2F) over the whole
// table and attaches the model columns.
func applyS2F(t *frame.Table, p Params, a *Artifacts) (*frame.Table, error) {
	c, err := cols(t, ColSplyCur, ColIssContNtv)
	if err != nil {
		return nil, err
	}
	sply := c[0]
	t, err = t.With(ColS2F, StockToFlow(sply, c[1], p.S2FFlowWindow))
	if err != nil {
		return nil, err
	}

	fit, err := regression.FitLogLog(t, ColS2F, ColCapMrktCurUSD)
	if err != nil {
		return nil, err
	}
	a.S2F = &fit

	t, err = regression.Attach(t, fit, ColS2FPrefix)
	if err != nil {
		return nil, err
	}
	pred, err := t.Column(ColS2FCapPredict)
	if err != nil {
		return nil, err
	}
	return t.With(ColS2FPricePredict, frame.Div(pred, sply))
}
