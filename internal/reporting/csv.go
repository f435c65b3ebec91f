package reporting

import (
	"bytes"
	"encoding/csv"
	"math"
	"strconv"
	"time"

	"decred-onchain-lab/internal/frame"
)

// RenderTableCSV renders the table with a leading date column.
// NaN and infinite values are written as empty fields.
func RenderTableCSV(t *frame.Table) ([]byte, error) {
	names := t.Columns()
	cols, err := columns(t, names)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(append([]string{"date"}, names...)); err != nil {
		return nil, err
	}
	record := make([]string, len(names)+1)
	for i := 0; i < t.Len(); i++ {
		record[0] = t.Date(i).Format(time.DateOnly)
		for j, c := range cols {
			record[j+1] = formatFloat(c[i])
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatFloat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func columns(t *frame.Table, names []string) ([][]float64, error) {
	out := make([][]float64, len(names))
	for i, n := range names {
		c, err := t.Column(n)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}
