package metrics

import (
	"fmt"

	"decred-onchain-lab/internal/frame"
)

// applyBase computes market cap, realised price and block height.
//   - CapMrktCurUSD = PriceUSD * SplyCur
//   - PriceRealUSD  = CapRealUSD / SplyCur
//   - blk           = HeightOffset + cumsum(BlkCnt)
func applyBase(t *frame.Table, p Params, _ *Artifacts) (*frame.Table, error) {
	c, err := cols(t, ColPriceUSD, ColSplyCur, ColCapRealUSD, ColBlkCnt)
	if err != nil {
		return nil, err
	}
	price, sply, realCap, blkCnt := c[0], c[1], c[2], c[3]

	height := frame.Map(frame.CumSum(blkCnt), func(v float64) float64 { return v + float64(p.HeightOffset) })

	return t.WithColumns(
		frame.Col{Name: ColCapMrktCurUSD, Values: frame.Mul(price, sply)},
		frame.Col{Name: ColPriceRealUSD, Values: frame.Div(realCap, sply)},
		frame.Col{Name: ColBlk, Values: height},
	)
}

// applyFlows derives transfer and ticket volumes.
func applyFlows(t *frame.Table, _ Params, _ *Artifacts) (*frame.Table, error) {
	c, err := cols(t, ColPriceUSD, ColTicVol, ColTfrVol, ColAnonMixVol, ColTxCnt, ColTxTfrValAdjNtv)
	if err != nil {
		return nil, err
	}
	price, tic, tfr, mix, txCnt, adj := c[0], c[1], c[2], c[3], c[4], c[5]

	return t.WithColumns(
		frame.Col{Name: ColTfrReg, Values: frame.Sub(tfr, mix)},
		frame.Col{Name: ColTicUSDCost, Values: frame.Mul(tic, price)},
		frame.Col{Name: ColTxTfrValMean, Values: frame.Div(adj, txCnt)},
		frame.Col{Name: ColTxTfrValAdjUSD, Values: frame.Mul(adj, price)},
	)
}

func applyHashrate(t *frame.Table, _ Params, _ *Artifacts) (*frame.Table, error) {
	h, err := t.Column(ColHashRate)
	if err != nil {
		return nil, err
	}
	return t.With(ColHashrateTHs, h)
}

// applyMVRV computes CapMVRVCur = CapMrktCurUSD / CapRealUSD.
func applyMVRV(t *frame.Table, _ Params, _ *Artifacts) (*frame.Table, error) {
	c, err := cols(t, ColCapMrktCurUSD, ColCapRealUSD)
	if err != nil {
		return nil, err
	}
	return t.With(ColMVRV, frame.Div(c[0], c[1]))
}

// applyRelativeMVRV compares Decred MVRV with Bitcoin MVRV.
// DCRBTC_MVRV = CapMVRVCur / BTC_CapMVRVCur, plus trailing means per window.
func applyRelativeMVRV(t *frame.Table, p Params, _ *Artifacts) (*frame.Table, error) {
	c, err := cols(t, ColMVRV, ColBTCCapMrktCur, ColBTCCapRealUSD)
	if err != nil {
		return nil, err
	}
	btc := frame.Div(c[1], c[2])
	rel := frame.Div(c[0], btc)

	out := []frame.Col{
		{Name: ColBTCMVRV, Values: btc},
		{Name: ColRelMVRV, Values: rel},
	}
	for _, w := range p.RelativeWindows {
		out = append(out, frame.Col{Name: fmt.Sprintf("%s_%davg", ColRelMVRV, w), Values: frame.RollingMean(rel, w)})
	}
	return t.WithColumns(out...)
}

// applyBTCDenominated expresses caps in Bitcoin.
func applyBTCDenominated(t *frame.Table, _ Params, _ *Artifacts) (*frame.Table, error) {
	c, err := cols(t, ColPriceBTC, ColSplyCur, ColPriceRealUSD, ColCapRealUSD, ColBTCPriceUSD)
	if err != nil {
		return nil, err
	}
	priceBTC, sply, realPrice, realCap, btcUSD := c[0], c[1], c[2], c[3], c[4]
	return t.WithColumns(
		frame.Col{Name: ColCapMrktCurBTC, Values: frame.Mul(priceBTC, sply)},
		frame.Col{Name: ColPriceRealBTC, Values: frame.Div(realPrice, btcUSD)},
		frame.Col{Name: ColCapRealBTC, Values: frame.Div(realCap, btcUSD)},
	)
}

// applyUnrealisedPnL computes (CapMrktCurUSD - CapRealUSD) / CapMrktCurUSD.
func applyUnrealisedPnL(t *frame.Table, _ Params, _ *Artifacts) (*frame.Table, error) {
	c, err := cols(t, ColCapMrktCurUSD, ColCapRealUSD)
	if err != nil {
		return nil, err
	}
	return t.With(ColUnrealisedPnL, frame.Div(frame.Sub(c[0], c[1]), c[0]))
}

// MayerColumn names the moving average used by the Mayer multiple.
func MayerColumn(window int) string { return fmt.Sprintf("%dDMA", window) }

// applyMayer computes Mayer_Multiple = PriceUSD / SMA(PriceUSD, MayerWindow).
func applyMayer(t *frame.Table, p Params, _ *Artifacts) (*frame.Table, error) {
	price, err := t.Column(ColPriceUSD)
	if err != nil {
		return nil, err
	}
	sma := frame.RollingMean(price, p.MayerWindow)
	return t.WithColumns(
		frame.Col{Name: MayerColumn(p.MayerWindow), Values: sma},
		frame.Col{Name: ColMayer, Values: frame.Div(price, sma)},
	)
}

// applyContractor computes Contractor_Multiple = PriceUSD / SMA(PriceUSD, ContractorWindow).
func applyContractor(t *frame.Table, p Params, _ *Artifacts) (*frame.Table, error) {
	price, err := t.Column(ColPriceUSD)
	if err != nil {
		return nil, err
	}
	sma := frame.RollingMean(price, p.ContractorWindow)
	return t.WithColumns(
		frame.Col{Name: MayerColumn(p.ContractorWindow), Values: sma},
		frame.Col{Name: ColContractor, Values: frame.Div(price, sma)},
	)
}
