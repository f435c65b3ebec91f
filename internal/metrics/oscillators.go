package metrics

import (
	"fmt"
	"math"

	"decred-onchain-lab/internal/frame"
)

// applyPuell computes Puell_Multiple = DailyIssuedUSD / SMA(DailyIssuedUSD, PuellWindow).
// The mean is strictly trailing, so the first PuellWindow-1 rows are NaN.
func applyPuell(t *frame.Table, p Params, _ *Artifacts) (*frame.Table, error) {
	issued, err := t.Column(ColDailyIssuedUSD)
	if err != nil {
		return nil, err
	}
	avg := frame.RollingMean(issued, p.PuellWindow)
	return t.WithColumns(
		frame.Col{Name: fmt.Sprintf("%s_%davg", ColDailyIssuedUSD, p.PuellWindow), Values: avg},
		frame.Col{Name: ColPuell, Values: frame.Div(issued, avg)},
	)
}

// applyGradient computes the day-over-day change of the N-day mean market
// and realised caps. MrktGradient is the market gradient minus the realised one.
func applyGradient(t *frame.Table, p Params, _ *Artifacts) (*frame.Table, error) {
	c, err := cols(t, ColCapMrktCurUSD, ColCapRealUSD)
	if err != nil {
		return nil, err
	}
	mrktGrad := frame.Diff(frame.RollingMean(c[0], p.GradientWindow), 1)
	realGrad := frame.Diff(frame.RollingMean(c[1], p.GradientWindow), 1)
	return t.WithColumns(
		frame.Col{Name: ColCapMrktGrad, Values: mrktGrad},
		frame.Col{Name: ColCapRealGrad, Values: realGrad},
		frame.Col{Name: ColMrktGradient, Values: frame.Sub(mrktGrad, realGrad)},
	)
}

// TVWAPColumn names the N-day ticket volume weighted average price.
func TVWAPColumn(window int) string { return fmt.Sprintf("TVWAP_%d", window) }

// TVWAP returns sum(price*volume)/sum(volume) over trailing windows.
// A window with zero total volume yields NaN.
func TVWAP(price, volume []float64, window int) []float64 {
	num := frame.RollingSum(frame.Mul(price, volume), window)
	den := frame.RollingSum(volume, window)
	return frame.Div(num, den)
}

func applyTVWAP(t *frame.Table, p Params, _ *Artifacts) (*frame.Table, error) {
	c, err := cols(t, ColPriceUSD, ColTicVol)
	if err != nil {
		return nil, err
	}
	price, vol := c[0], c[1]

	var out []frame.Col
	for _, w := range p.TVWAPWindows {
		v := TVWAP(price, vol, w)
		out = append(out,
			frame.Col{Name: TVWAPColumn(w), Values: v},
			frame.Col{Name: TVWAPColumn(w) + "_ratio", Values: frame.Div(price, v)},
		)
	}
	return t.WithColumns(out...)
}

// applyTicketMultiple compares price with the ticket spend of the last
// TicketWindow days per coin, assuming TicketLockedShare of it is still bound.
//   - tic_usd_cost_142sum = sum(tic_usd_cost, 142) / SplyCur
//   - 142d_tic            = PriceUSD / (tic_usd_cost_142sum * 0.5)
func applyTicketMultiple(t *frame.Table, p Params, _ *Artifacts) (*frame.Table, error) {
	c, err := cols(t, ColPriceUSD, ColTicUSDCost, ColSplyCur)
	if err != nil {
		return nil, err
	}
	perCoin := frame.Div(frame.RollingSum(c[1], p.TicketWindow), c[2])
	return t.WithColumns(
		frame.Col{Name: ColTicCost142Sum, Values: perCoin},
		frame.Col{Name: ColTic142d, Values: frame.Div(c[0], frame.Scale(perCoin, p.TicketLockedShare))},
	)
}

// applyNVT computes network value and realised value to transactions ratios
// against the trailing mean of adjusted transfer value in USD.
func applyNVT(t *frame.Table, p Params, _ *Artifacts) (*frame.Table, error) {
	c, err := cols(t, ColCapMrktCurUSD, ColCapRealUSD, ColTxTfrValAdjUSD)
	if err != nil {
		return nil, err
	}
	tx := frame.RollingMean(c[2], p.NVTWindow)
	return t.WithColumns(
		frame.Col{Name: ColNVT, Values: frame.Div(c[0], tx)},
		frame.Col{Name: ColRVT, Values: frame.Div(c[1], tx)},
	)
}

// RibbonColumn names one band of the difficulty ribbon.
func RibbonColumn(window int) string { return fmt.Sprintf("DiffMean_%d", window) }

func applyRibbon(t *frame.Table, p Params, _ *Artifacts) (*frame.Table, error) {
	diff, err := t.Column(ColDiffMean)
	if err != nil {
		return nil, err
	}
	out := make([]frame.Col, 0, len(p.RibbonWindows))
	for _, w := range p.RibbonWindows {
		out = append(out, frame.Col{Name: RibbonColumn(w), Values: frame.RollingMean(diff, w)})
	}
	return t.WithColumns(out...)
}

// EWM returns the exponentially weighted mean with centre of mass com,
// bias-corrected from the first observation: weights (1-a)^k with a = 1/(1+com)
// and k counted in rows. A NaN row still ages earlier observations and
// carries the previous mean forward; rows before the first observation are NaN.
func EWM(x []float64, com float64) []float64 {
	out := frame.NaNs(len(x))
	if com < 0 {
		return out
	}
	decay := 1 - 1/(1+com)
	var num, den float64
	for i, v := range x {
		if math.IsNaN(v) {
			num *= decay
			den *= decay
		} else {
			num = v + decay*num
			den = 1 + decay*den
		}
		if den > 0 {
			out[i] = num / den
		}
	}
	return out
}

// applyMACD computes the price MACD, its signal line and histogram.
func applyMACD(t *frame.Table, p Params, _ *Artifacts) (*frame.Table, error) {
	price, err := t.Column(ColPriceUSD)
	if err != nil {
		return nil, err
	}
	macd := frame.Sub(EWM(price, p.MACDFast), EWM(price, p.MACDSlow))
	signal := EWM(macd, p.MACDSignal)
	return t.WithColumns(
		frame.Col{Name: ColMACD, Values: macd},
		frame.Col{Name: ColMACDSignal, Values: signal},
		frame.Col{Name: ColMACDHist, Values: frame.Sub(macd, signal)},
	)
}
