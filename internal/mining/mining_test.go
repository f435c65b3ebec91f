package mining

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"decred-onchain-lab/internal/frame"
	"decred-onchain-lab/internal/metrics"
)

const sampleCSV = `model,hashrate_THs,power_kWh,device_price_usd,blk_start
DR3,7.8,1.41,2450,1000
D1,44,2.2,4000,3000
`

func fleetTable(t *testing.T) *frame.Table {
	t.Helper()
	n := 10
	start := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	dates := make([]time.Time, n)
	hash := make([]float64, n)
	income := make([]float64, n)
	blk := make([]float64, n)
	for i := range dates {
		dates[i] = start.AddDate(0, 0, i)
		hash[i] = 100 + float64(i)*50
		income[i] = 50000
		blk[i] = float64(i+1) * 500
	}
	hash[0] = 0.5
	tbl, err := frame.New(dates)
	require.NoError(t, err)
	tbl, err = tbl.WithColumns(
		frame.Col{Name: metrics.ColHashrateTHs, Values: hash},
		frame.Col{Name: metrics.ColPoWIncomeUSD, Values: income},
		frame.Col{Name: metrics.ColBlk, Values: blk},
	)
	require.NoError(t, err)
	return tbl
}

func TestLoadHardwareCSV(t *testing.T) {
	devices, err := LoadHardwareCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, Device{Model: "DR3", HashrateTHs: 7.8, PowerKW: 1.41, PriceUSD: 2450, BlkStart: 1000}, devices[0])
	assert.InDelta(t, 20.0, devices[1].THPerKW(), 1e-12)
}

func TestLoadHardwareCSV_MissingColumn(t *testing.T) {
	_, err := LoadHardwareCSV(strings.NewReader("model,hashrate_THs,power_kWh,blk_start\nX,1,1,1\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, frame.ErrMissingColumn))
	assert.Contains(t, err.Error(), "device_price_usd")
}

func TestLoadHardwareCSV_BadNumber(t *testing.T) {
	_, err := LoadHardwareCSV(strings.NewReader("model,hashrate_THs,power_kWh,device_price_usd,blk_start\nX,fast,1,1,1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2 column hashrate_THs")
}

func TestApply_DeviceCountAndCosts(t *testing.T) {
	devices, err := LoadHardwareCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	tbl := fleetTable(t)
	c := DefaultCosts()

	out, err := Apply(tbl, devices, c)
	require.NoError(t, err)

	hash, _ := tbl.Column(metrics.ColHashrateTHs)
	blk, _ := tbl.Column(metrics.ColBlk)
	for _, d := range devices {
		cnt, err := out.Column(d.Model + SuffixCount)
		require.NoError(t, err)
		for i := range cnt {
			if blk[i] < float64(d.BlkStart) || hash[i] <= 1 {
				assert.True(t, math.IsNaN(cnt[i]), "%s row %d before launch", d.Model, i)
				continue
			}
			assert.Equal(t, math.Trunc(cnt[i]), cnt[i], "count is an integer")
			assert.GreaterOrEqual(t, cnt[i], math.Ceil(hash[i]/d.HashrateTHs))
			assert.GreaterOrEqual(t, cnt[i], 0.0)
		}
	}

	// row 5: blk 3000, hash 350
	cnt, _ := out.Column("DR3" + SuffixCount)
	assert.Equal(t, 45.0, cnt[5])
	cost, _ := out.Column("DR3" + SuffixCost)
	assert.Equal(t, 45*2450.0, cost[5])
	power, _ := out.Column("DR3" + SuffixPower)
	assert.InDelta(t, 45*1.41*24, power[5], 1e-9)
	capex, _ := out.Column("DR3" + SuffixCAPEX)
	opex, _ := out.Column("DR3" + SuffixOPEX)
	prof, _ := out.Column("DR3" + SuffixProf)
	assert.InDelta(t, cost[5]*1.05, capex[5], 1e-9)
	assert.InDelta(t, power[5]*0.05+0.05/365*cost[5], opex[5], 1e-9)
	assert.InDelta(t, (50000-opex[5])/capex[5], prof[5], 1e-12)

	cum, _ := out.Column("D1" + SuffixProfCum)
	d1prof, _ := out.Column("D1" + SuffixProf)
	assert.True(t, math.IsNaN(cum[4]))
	assert.InDelta(t, d1prof[5]+d1prof[6], cum[6], 1e-12)
}

func TestSummarize(t *testing.T) {
	devices, _ := LoadHardwareCSV(strings.NewReader(sampleCSV))
	c := DefaultCosts()
	out, err := Apply(fleetTable(t), devices, c)
	require.NoError(t, err)

	sum, err := Summarize(out, devices, c)
	require.NoError(t, err)
	require.Len(t, sum, 2)

	// DR3 live from row 1; max hash 550 at row 9
	assert.Equal(t, int64(math.Ceil(550/7.8)), sum[0].MaxCount)
	assert.InDelta(t, float64(sum[0].MaxCount)*2450*1.05, sum[0].MaxCAPEX.Float(), 1e-9)
	assert.InDelta(t, sum[0].MaxOPEX.Float()/sum[0].MaxCAPEX.Float(), sum[0].MaxOPEXRatio.Float(), 1e-12)
}

func TestApply_MissingInput(t *testing.T) {
	tbl, err := frame.New([]time.Time{time.Now()})
	require.NoError(t, err)
	_, err = Apply(tbl, nil, DefaultCosts())
	assert.True(t, errors.Is(err, frame.ErrMissingColumn))
}
