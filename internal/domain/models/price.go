package models

import "time"

// Quote is a live price tick from the streaming feed.
type Quote struct {
	Instrument string
	Price      float64
	Volume     float64
	Timestamp  int64 // unix milliseconds
}

// PricePoint is one daily OHLCV bar.
type PricePoint struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// PriceSeries is a date-ascending daily history for one instrument.
type PriceSeries struct {
	Instrument string
	Points     []PricePoint
}

func (s *PriceSeries) Len() int { return len(s.Points) }

// Closes returns the close prices in date order.
func (s *PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Close
	}
	return out
}

// AlignSeries intersects series on dates shared by every input and
// returns one close column per series, all the same length and in date
// order. Rows missing from any series are dropped.
func AlignSeries(series ...*PriceSeries) ([][]float64, []time.Time) {
	if len(series) == 0 {
		return nil, nil
	}

	counts := make(map[time.Time]int)
	for _, s := range series {
		for _, p := range s.Points {
			counts[p.Date.UTC().Truncate(24*time.Hour)]++
		}
	}

	base := series[0]
	var dates []time.Time
	for _, p := range base.Points {
		d := p.Date.UTC().Truncate(24 * time.Hour)
		if counts[d] == len(series) {
			dates = append(dates, d)
		}
	}

	cols := make([][]float64, len(series))
	for i, s := range series {
		byDate := make(map[time.Time]float64, len(s.Points))
		for _, p := range s.Points {
			byDate[p.Date.UTC().Truncate(24*time.Hour)] = p.Close
		}
		col := make([]float64, len(dates))
		for j, d := range dates {
			col[j] = byDate[d]
		}
		cols[i] = col
	}

	return cols, dates
}
