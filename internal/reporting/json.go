package reporting

import (
	"encoding/json"

	"decred-onchain-lab/internal/frame"
	"decred-onchain-lab/internal/insights"
)

// isoDay is the timestamp layout of split-orient indexes.
const isoDay = "2006-01-02T15:04:05.000Z"

type splitTable struct {
	Columns []string         `json:"columns"`
	Index   []string         `json:"index"`
	Data    [][]frame.Number `json:"data"`
}

// RenderTableJSON renders the table in split orientation:
// {"columns": [...], "index": [dates], "data": [[row]...]}. NaN is null.
func RenderTableJSON(t *frame.Table) ([]byte, error) {
	names := t.Columns()
	cols, err := columns(t, names)
	if err != nil {
		return nil, err
	}
	doc := splitTable{
		Columns: names,
		Index:   make([]string, t.Len()),
		Data:    make([][]frame.Number, t.Len()),
	}
	for i := range doc.Index {
		doc.Index[i] = t.Date(i).Format(isoDay)
		row := make([]frame.Number, len(cols))
		for j, c := range cols {
			row[j] = frame.Number(c[i])
		}
		doc.Data[i] = row
	}
	return json.Marshal(doc)
}

type schemaField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type tableSchema struct {
	Fields     []schemaField `json:"fields"`
	PrimaryKey []string      `json:"primaryKey"`
}

type overviewRow struct {
	Index int `json:"index"`
	insights.Row
}

type overviewTable struct {
	Schema tableSchema   `json:"schema"`
	Data   []overviewRow `json:"data"`
}

var overviewSchema = tableSchema{
	Fields: []schemaField{
		{Name: "index", Type: "integer"},
		{Name: "name", Type: "string"},
		{Name: "today", Type: "number"},
		{Name: "yesterday", Type: "number"},
		{Name: "past_week", Type: "number"},
		{Name: "28dayMA", Type: "number"},
	},
	PrimaryKey: []string{"index"},
}

// RenderOverviewJSON renders insight rows in table orientation with a
// schema block and an integer index.
func RenderOverviewJSON(rows []insights.Row) ([]byte, error) {
	doc := overviewTable{Schema: overviewSchema, Data: make([]overviewRow, len(rows))}
	for i, r := range rows {
		doc.Data[i] = overviewRow{Index: i, Row: r}
	}
	return json.Marshal(doc)
}
