package reporting

import (
	"bytes"
	"math"

	"github.com/parquet-go/parquet-go"

	"decred-onchain-lab/internal/frame"
)

// MetricRow is one long-format parquet row.
type MetricRow struct {
	DateMs int64   `parquet:"date_ms,delta"`
	Metric string  `parquet:"metric,dict"`
	Value  float64 `parquet:"value"`
}

// RenderTableParquet writes the finite cells of the table as long-format
// rows ordered by column, then date.
func RenderTableParquet(t *frame.Table) ([]byte, error) {
	names := t.Columns()
	cols, err := columns(t, names)
	if err != nil {
		return nil, err
	}

	var rows []MetricRow
	for j, c := range cols {
		for i, v := range c {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			rows = append(rows, MetricRow{DateMs: t.Date(i).UnixMilli(), Metric: names[j], Value: v})
		}
	}

	var buf bytes.Buffer
	w := parquet.NewGenericWriter[MetricRow](&buf, parquet.Compression(&parquet.Zstd))
	if _, err := w.Write(rows); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
