package market

import "time"

// Bar is a single OHLCV observation. VWAP is optional; zero means the
// provider did not supply one.
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
	VWAP   float64   `json:"vwap,omitempty"`
}

// TypicalPrice is the (H+L+C)/3 average, used as a vwap substitute when the
// bar carries no vwap of its own.
func (b Bar) TypicalPrice() float64 {
	return (b.High + b.Low + b.Close) / 3
}

// Series is a finite, time-ordered bar sequence for one symbol.
// Bars are gap-tolerant: there is no contiguity invariant.
type Series struct {
	Symbol   string `json:"symbol"`
	Interval string `json:"interval"`
	Bars     []Bar  `json:"bars"`
}

// FilterRange returns the bars within [start, end], where end is inclusive
// of that date's full day. A zero start or end leaves that side unbounded.
func (s *Series) FilterRange(start, end time.Time) []Bar {
	if start.IsZero() && end.IsZero() {
		return s.Bars
	}

	var cutoff time.Time
	if !end.IsZero() {
		y, m, d := end.Date()
		cutoff = time.Date(y, m, d, 0, 0, 0, 0, end.Location()).AddDate(0, 0, 1)
	}

	out := make([]Bar, 0, len(s.Bars))
	for _, b := range s.Bars {
		if !start.IsZero() && b.Time.Before(start) {
			continue
		}
		if !cutoff.IsZero() && !b.Time.Before(cutoff) {
			continue
		}
		out = append(out, b)
	}
	return out
}
