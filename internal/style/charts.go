package style

import (
	"fmt"

	"decred-onchain-lab/internal/metrics"
)

// Axis places a series on the primary or secondary y axis.
type Axis string

const (
	Primary   Axis = "y"
	Secondary Axis = "y2"
)

// Series binds a table column to a style.
type Series struct {
	Column string      `json:"column"`
	Name   string      `json:"name"`
	Axis   Axis        `json:"axis"`
	Style  SeriesStyle `json:"style"`
}

// Chart is a declarative chart definition.
type Chart struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	YType    string   `json:"y_type"`  // linear or log
	Y2Type   string   `json:"y2_type"` // linear or log
	Requires []string `json:"-"`       // metric steps that produce the series
	Series   []Series `json:"series"`
}

// Columns lists the table columns the chart reads.
func (c Chart) Columns() []string {
	out := make([]string, len(c.Series))
	for i, s := range c.Series {
		out[i] = s.Column
	}
	return out
}

func line(col, name string, axis Axis, color string, invert bool) Series {
	return Series{Column: col, Name: name, Axis: axis, Style: SeriesStyle{Color: color, Width: 2, Dash: "solid", Opacity: 1, Invert: invert}}
}

func dashed(s Series) Series {
	s.Style.Dash = "dash"
	return s
}

// priceSeries is the price line shared by most charts, white on dark and
// black on light.
func priceSeries() Series {
	return line(metrics.ColPriceUSD, "DCR/USD Price", Primary, "rgb(255, 255, 255)", true)
}

// Registry returns the default chart definitions.
func Registry() []Chart {
	return []Chart{
		{
			ID: "mvrv", Title: "Decred MVRV Ratio", YType: "log", Y2Type: "linear",
			Requires: []string{"mvrv"},
			Series: []Series{
				line(metrics.ColCapMrktCurUSD, "Market Cap", Primary, "rgb(255, 255, 255)", true),
				line(metrics.ColCapRealUSD, "Realised Cap", Primary, "rgb(46, 214, 161)", false),
				line(metrics.ColMVRV, "MVRV Ratio", Secondary, "rgb(255, 102, 0)", false),
			},
		},
		{
			ID: "mayer", Title: "Decred Mayer Multiple", YType: "log", Y2Type: "linear",
			Requires: []string{"mayer"},
			Series: []Series{
				priceSeries(),
				line(metrics.MayerColumn(200), "200 Day MA", Primary, "rgb(255, 204, 102)", false),
				line(metrics.ColMayer, "Mayer Multiple", Secondary, "rgb(65, 191, 83)", false),
			},
		},
		{
			ID: "puell", Title: "Decred Puell Multiple", YType: "log", Y2Type: "linear",
			Requires: []string{"puell"},
			Series: []Series{
				priceSeries(),
				line(metrics.ColPuell, "Puell Multiple", Secondary, "rgb(237, 109, 71)", false),
			},
		},
		{
			ID: "contractor", Title: "Decred Contractor Multiple", YType: "log", Y2Type: "linear",
			Requires: []string{"contractor"},
			Series: []Series{
				priceSeries(),
				line(metrics.ColContractor, "Contractor Multiple", Secondary, "rgb(156, 225, 143)", false),
			},
		},
		{
			ID: "tvwap", Title: "Decred Ticket Volume Weighted Average Price", YType: "log", Y2Type: "linear",
			Requires: []string{"tvwap"},
			Series: []Series{
				priceSeries(),
				line(metrics.TVWAPColumn(14), "14-Day TVWAP", Primary, "rgb(153, 255, 102)", false),
				line(metrics.TVWAPColumn(28), "28-Day TVWAP", Primary, "rgb(255, 153, 102)", false),
				line(metrics.TVWAPColumn(142), "142-Day TVWAP", Primary, "rgb(237, 109, 71)", false),
				dashed(line(metrics.TVWAPColumn(142)+"_ratio", "142-Day TVWAP Ratio", Secondary, "rgb(65, 191, 83)", false)),
			},
		},
		{
			ID: "s2f", Title: "Decred Stock-to-Flow Model", YType: "log", Y2Type: "log",
			Requires: []string{"s2f"},
			Series: []Series{
				line(metrics.ColCapMrktCurUSD, "Market Cap", Primary, "rgb(255, 255, 255)", true),
				dashed(line(metrics.ColS2FCapPredict, "S2F Model", Primary, "rgb(156, 225, 143)", false)),
				line(metrics.ColS2FCapMultiple, "S2F Multiple", Secondary, "rgb(255, 80, 80)", false),
			},
		},
		{
			ID: "mrkt_real_gradient", Title: "Decred Market-Realised Gradient", YType: "log", Y2Type: "linear",
			Requires: []string{"gradient"},
			Series: []Series{
				priceSeries(),
				line(metrics.ColMrktGradient, "Market-Realised Gradient", Secondary, "rgb(255, 102, 0)", false),
			},
		},
		{
			ID: "unrealised_pnl", Title: "Decred Net Unrealised Profit/Loss", YType: "log", Y2Type: "linear",
			Requires: []string{"unrealised_pnl"},
			Series: []Series{
				priceSeries(),
				line(metrics.ColUnrealisedPnL, "Net Unrealised PnL", Secondary, "rgb(46, 214, 161)", false),
			},
		},
		{
			ID: "mvrv_relative_btc", Title: "Decred MVRV Relative to Bitcoin", YType: "linear", Y2Type: "linear",
			Requires: []string{"relative_mvrv"},
			Series: []Series{
				line(metrics.ColRelMVRV, "DCR/BTC MVRV", Primary, "rgb(255, 255, 255)", true),
				line(fmt.Sprintf("%s_%davg", metrics.ColRelMVRV, 28), "28-Day Average", Primary, "rgb(255, 153, 102)", false),
				line(fmt.Sprintf("%s_%davg", metrics.ColRelMVRV, 142), "142-Day Average", Primary, "rgb(237, 109, 71)", false),
			},
		},
		{
			ID: "ticket_multiple", Title: "Decred 142-Day Ticket Multiple", YType: "log", Y2Type: "linear",
			Requires: []string{"ticket_multiple"},
			Series: []Series{
				priceSeries(),
				line(metrics.ColTic142d, "142-Day Ticket Multiple", Secondary, "rgb(153, 255, 102)", false),
			},
		},
		{
			ID: "difficulty_ribbon", Title: "Decred Difficulty Ribbon", YType: "log", Y2Type: "log",
			Requires: []string{"difficulty_ribbon"},
			Series: []Series{
				line(metrics.RibbonColumn(9), "9-Day", Primary, "rgb(255, 80, 80)", false),
				line(metrics.RibbonColumn(40), "40-Day", Primary, "rgb(255, 153, 102)", false),
				line(metrics.RibbonColumn(128), "128-Day", Primary, "rgb(153, 255, 102)", false),
				line(metrics.RibbonColumn(200), "200-Day", Primary, "rgb(46, 214, 161)", false),
			},
		},
		{
			ID: "macd", Title: "Decred MACD", YType: "log", Y2Type: "linear",
			Requires: []string{"macd"},
			Series: []Series{
				priceSeries(),
				line(metrics.ColMACD, "MACD", Secondary, "rgb(255, 153, 102)", false),
				dashed(line(metrics.ColMACDSignal, "Signal", Secondary, "rgb(46, 214, 161)", false)),
			},
		},
		{
			ID: "nvt_rvt", Title: "Decred NVT and RVT Ratios", YType: "log", Y2Type: "log",
			Requires: []string{"nvt_rvt"},
			Series: []Series{
				priceSeries(),
				line(metrics.ColNVT, "NVT Ratio", Secondary, "rgb(255, 102, 0)", false),
				line(metrics.ColRVT, "RVT Ratio", Secondary, "rgb(153, 255, 102)", false),
			},
		},
	}
}

// Select returns the registry charts with the given ids, all when ids is empty.
func Select(ids []string) ([]Chart, error) {
	all := Registry()
	if len(ids) == 0 {
		return all, nil
	}
	byID := make(map[string]Chart, len(all))
	for _, c := range all {
		byID[c.ID] = c
	}
	out := make([]Chart, 0, len(ids))
	for _, id := range ids {
		c, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: chart %q", metrics.ErrUnsupportedOption, id)
		}
		out = append(out, c)
	}
	return out, nil
}
