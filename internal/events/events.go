// Package events holds the curated market cycle dates and segments the
// daily table into comparable cycles.
package events

import (
	"fmt"
	"math"
	"time"

	"decred-onchain-lab/internal/frame"
	"decred-onchain-lab/internal/metrics"
)

// Kind labels a cycle event.
type Kind string

const (
	KindGenesis Kind = "genesis"
	KindBottom  Kind = "btm"
	KindTop     Kind = "top"
)

// Event is one curated row.
type Event struct {
	Date  time.Time `json:"date"`
	Kind  Kind      `json:"event"`
	Epoch int       `json:"epoch"`
}

// Label returns e.g. "btm1".
func (e Event) Label() string { return fmt.Sprintf("%s%d", e.Kind, e.Epoch) }

// Table returns the static event table in date order.
func Table() []Event {
	d := func(y int, m time.Month, day int) time.Time { return time.Date(y, m, day, 0, 0, 0, 0, time.UTC) }
	return []Event{
		{Date: d(2016, time.February, 8), Kind: KindGenesis, Epoch: 0},
		{Date: d(2016, time.December, 26), Kind: KindBottom, Epoch: 1},
		{Date: d(2018, time.January, 13), Kind: KindTop, Epoch: 1},
		{Date: d(2020, time.May, 16), Kind: KindBottom, Epoch: 2},
	}
}

// PricedEvent is an event with the price on its date.
type PricedEvent struct {
	Event
	Price frame.Number `json:"PriceUSD_event"`
}

// Join looks up PriceUSD on every event date.
// An event outside the table range is an error.
func Join(t *frame.Table, evs []Event) ([]PricedEvent, error) {
	price, err := t.Column(metrics.ColPriceUSD)
	if err != nil {
		return nil, err
	}
	out := make([]PricedEvent, 0, len(evs))
	for _, e := range evs {
		i := t.Index(e.Date)
		if i < 0 {
			return nil, fmt.Errorf("event %s on %s is outside the table", e.Label(), e.Date.Format(time.DateOnly))
		}
		out = append(out, PricedEvent{Event: e, Price: frame.Number(price[i])})
	}
	return out, nil
}

// CyclePoint is one row of a cycle comparison.
type CyclePoint struct {
	Date           time.Time    `json:"date"`
	Epoch          int          `json:"epoch"`
	DaysSinceEvent int          `json:"days_since_event"`
	Price          frame.Number `json:"PriceUSD"`
	EventPrice     frame.Number `json:"PriceUSD_event"`
	Delta          frame.Number `json:"event_delta"`
}

// Cycles forward fills the most recent event of kind onto every row and
// reports the days and price multiple since it. Genesis counts as a
// bottom. Events outside the table are ignored and rows before the first
// remaining event are left out.
func Cycles(t *frame.Table, evs []Event, kind Kind) ([]CyclePoint, error) {
	var selected []Event
	for _, e := range evs {
		if t.Index(e.Date) < 0 {
			continue
		}
		if e.Kind == kind || (kind == KindBottom && e.Kind == KindGenesis) {
			selected = append(selected, e)
		}
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("%w: no events of kind %q in range", metrics.ErrUnsupportedOption, kind)
	}
	priced, err := Join(t, selected)
	if err != nil {
		return nil, err
	}
	price, _ := t.Column(metrics.ColPriceUSD)

	var out []CyclePoint
	cur := -1
	for i := 0; i < t.Len(); i++ {
		d := t.Date(i)
		for cur+1 < len(priced) && !d.Before(priced[cur+1].Date) {
			cur++
		}
		if cur < 0 {
			continue
		}
		ev := priced[cur]
		delta := math.NaN()
		if ev.Price.Float() != 0 {
			delta = price[i] / ev.Price.Float()
		}
		out = append(out, CyclePoint{
			Date:           d,
			Epoch:          ev.Epoch,
			DaysSinceEvent: int(d.Sub(ev.Date).Hours() / 24),
			Price:          frame.Number(price[i]),
			EventPrice:     ev.Price,
			Delta:          frame.Number(delta),
		})
	}
	return out, nil
}

// ParseKind validates a cycle kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindBottom, KindTop, KindGenesis:
		return Kind(s), nil
	}
	return "", fmt.Errorf("%w: cycle kind %q", metrics.ErrUnsupportedOption, s)
}
