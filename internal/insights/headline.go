package insights

import (
	"math"

	"decred-onchain-lab/internal/frame"
	"decred-onchain-lab/internal/metrics"
)

var nan = math.NaN()

// Insight is a headline stat with a status bar percentage.
type Insight struct {
	Name        string       `json:"name"`
	Primary     frame.Number `json:"primary"`
	Secondary   frame.Number `json:"secondary"`
	StatusBar   frame.Number `json:"statusbar"`
	Description string       `json:"description"`
}

const monthRows = 30

// Headlines returns the treasury, price and realised cap insights.
func Headlines(t, treasury *frame.Table) ([]Insight, error) {
	var out []Insight
	if treasury != nil {
		ti, err := treasuryInsight(treasury)
		if err != nil {
			return nil, err
		}
		out = append(out, ti)
	}

	price, err := monthlyChange(t, metrics.ColPriceUSD, "Decred Power",
		"Primary: Today Price, Secondary: Last Month Price, Statusbar: MonthlyChange%")
	if err != nil {
		return nil, err
	}
	realCap, err := monthlyChange(t, metrics.ColCapRealUSD, "Realised Cap",
		"Primary: Today RealisedCapUSD, Secondary: LastMonth RealisedCapUSD, Statusbar: MonthlyChange%")
	if err != nil {
		return nil, err
	}
	return append(out, price, realCap), nil
}

func monthlyChange(t *frame.Table, column, name, desc string) (Insight, error) {
	v, err := t.Column(column)
	if err != nil {
		return Insight{}, err
	}
	now, then := at(v, 1), at(v, monthRows)
	return Insight{
		Name:        name,
		Primary:     frame.Number(now),
		Secondary:   frame.Number(then),
		StatusBar:   frame.Number(pctChange(now, then)),
		Description: desc,
	}, nil
}

// treasuryInsight compares today's balance with 30 rows ago. The status
// bar is the net flow over the last 30 rows as a share of income.
func treasuryInsight(t *frame.Table) (Insight, error) {
	if err := t.Require(metrics.ColTreasuryBal, metrics.ColTreasuryIn, metrics.ColTreasuryOut); err != nil {
		return Insight{}, err
	}
	bal, _ := t.Column(metrics.ColTreasuryBal)
	in, _ := t.Column(metrics.ColTreasuryIn)
	sent, _ := t.Column(metrics.ColTreasuryOut)

	from := len(in) - monthRows
	if from < 0 {
		from = 0
	}
	var income, spent float64
	for i := from; i < len(in); i++ {
		income += in[i]
		spent += sent[i]
	}
	status := nan
	if income != 0 {
		status = (income - spent) / income * 100
	}
	return Insight{
		Name:        "Treasury Growth",
		Primary:     frame.Number(at(bal, 1)),
		Secondary:   frame.Number(at(bal, monthRows)),
		StatusBar:   frame.Number(status),
		Description: "Primary: Today Balance, Secondary: Last Month Balance, Statusbar: IncomeSpent%",
	}, nil
}

func pctChange(now, then float64) float64 {
	if then == 0 || math.IsNaN(then) {
		return nan
	}
	return (now - then) / then * 100
}
