package reporting

import (
	"encoding/json"

	"decred-onchain-lab/internal/frame"
	"decred-onchain-lab/internal/style"
)

type chartLine struct {
	Color string  `json:"color"`
	Width float64 `json:"width"`
	Dash  string  `json:"dash"`
}

type chartTrace struct {
	Type    string         `json:"type"`
	Mode    string         `json:"mode"`
	Name    string         `json:"name"`
	X       []string       `json:"x"`
	Y       []frame.Number `json:"y"`
	YAxis   style.Axis     `json:"yaxis"`
	Line    chartLine      `json:"line"`
	Opacity float64        `json:"opacity"`
}

type chartText struct {
	Text string `json:"text"`
}

type chartFont struct {
	Color string `json:"color"`
}

type chartAxis struct {
	Type       string `json:"type"`
	Overlaying string `json:"overlaying,omitempty"`
	Side       string `json:"side,omitempty"`
}

type chartLayout struct {
	Title  chartText `json:"title"`
	Paper  string    `json:"paper_bgcolor"`
	Plot   string    `json:"plot_bgcolor"`
	Font   chartFont `json:"font"`
	YAxis  chartAxis `json:"yaxis"`
	YAxis2 chartAxis `json:"yaxis2"`
}

type chartDoc struct {
	ID     string       `json:"id"`
	Data   []chartTrace `json:"data"`
	Layout chartLayout  `json:"layout"`
}

// RenderChartJSON renders one chart definition against the table as a
// plotly figure with the theme's colors applied.
func RenderChartJSON(c style.Chart, t *frame.Table, th style.Theme) ([]byte, error) {
	if err := t.Require(c.Columns()...); err != nil {
		return nil, err
	}
	x := make([]string, t.Len())
	for i := range x {
		x[i] = t.Date(i).Format(isoDay)
	}

	paper, font := th.Background()
	doc := chartDoc{
		ID:   c.ID,
		Data: make([]chartTrace, 0, len(c.Series)),
		Layout: chartLayout{
			Title:  chartText{Text: c.Title},
			Paper:  paper,
			Plot:   paper,
			Font:   chartFont{Color: font},
			YAxis:  chartAxis{Type: c.YType},
			YAxis2: chartAxis{Type: c.Y2Type, Overlaying: string(style.Primary), Side: "right"},
		},
	}
	for _, s := range c.Series {
		v, _ := t.Column(s.Column)
		st := th.Resolve(s.Style)
		doc.Data = append(doc.Data, chartTrace{
			Type:    "scatter",
			Mode:    "lines",
			Name:    s.Name,
			X:       x,
			Y:       frame.Numbers(v),
			YAxis:   s.Axis,
			Line:    chartLine{Color: st.Color, Width: st.Width, Dash: st.Dash},
			Opacity: st.Opacity,
		})
	}
	return json.Marshal(doc)
}
