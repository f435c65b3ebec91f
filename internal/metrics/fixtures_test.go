package metrics

import (
	"testing"
	"time"

	"decred-onchain-lab/internal/frame"
)

// syntheticTable builds n days with every input column present.
// Supply grows by issuance, price and caps are smooth positive series.
func syntheticTable(t *testing.T, n int) *frame.Table {
	t.Helper()
	start := time.Date(2016, 2, 8, 0, 0, 0, 0, time.UTC)
	dates := make([]time.Time, n)
	for i := range dates {
		dates[i] = start.AddDate(0, 0, i)
	}
	tbl, err := frame.New(dates)
	if err != nil {
		t.Fatalf("new table: %v", err)
	}

	col := func(f func(i int) float64) []float64 {
		out := make([]float64, n)
		for i := range out {
			out[i] = f(i)
		}
		return out
	}
	issuance := col(func(i int) float64 { return 8000 - float64(i) })
	supply := make([]float64, n)
	s := 1_700_000.0
	for i := range supply {
		s += issuance[i]
		supply[i] = s
	}

	tbl, err = tbl.WithColumns(
		frame.Col{Name: ColPriceUSD, Values: col(func(i int) float64 { return 10 + float64(i%50) })},
		frame.Col{Name: ColPriceBTC, Values: col(func(i int) float64 { return 0.001 })},
		frame.Col{Name: ColSplyCur, Values: supply},
		frame.Col{Name: ColCapRealUSD, Values: col(func(i int) float64 { return 5e6 + float64(i)*1e4 })},
		frame.Col{Name: ColIssContNtv, Values: issuance},
		frame.Col{Name: ColBlkCnt, Values: col(func(int) float64 { return 288 })},
		frame.Col{Name: ColHashRate, Values: col(func(i int) float64 { return 1000 + float64(i)*10 })},
		frame.Col{Name: ColDiffMean, Values: col(func(i int) float64 { return 1e9 + float64(i) })},
		frame.Col{Name: ColTxCnt, Values: col(func(int) float64 { return 4000 })},
		frame.Col{Name: ColAdrActCnt, Values: col(func(int) float64 { return 1500 })},
		frame.Col{Name: ColTxTfrValAdjNtv, Values: col(func(int) float64 { return 80000 })},
		frame.Col{Name: ColTicVol, Values: col(func(i int) float64 { return 20000 + float64(i%7)*100 })},
		frame.Col{Name: ColTfrVol, Values: col(func(int) float64 { return 90000 })},
		frame.Col{Name: ColAnonMixVol, Values: col(func(int) float64 { return 30000 })},
		frame.Col{Name: ColTicPriceAvg, Values: col(func(int) float64 { return 120 })},
		frame.Col{Name: ColBTCPriceUSD, Values: col(func(int) float64 { return 10000 })},
		frame.Col{Name: ColBTCCapMrktCur, Values: col(func(int) float64 { return 2e11 })},
		frame.Col{Name: ColBTCCapRealUSD, Values: col(func(int) float64 { return 1e11 })},
	)
	if err != nil {
		t.Fatalf("build table: %v", err)
	}
	return tbl
}

func mustColumn(t *testing.T, tbl *frame.Table, name string) []float64 {
	t.Helper()
	v, err := tbl.Column(name)
	if err != nil {
		t.Fatalf("column %s: %v", name, err)
	}
	return v
}
