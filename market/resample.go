package market

import (
	"fmt"
	"time"
)

// Resample aggregates a series into coarser buckets of the given width:
// open from the first bar of a bucket, high/low from the extremes, close
// from the last bar, volumes summed. VWAP is the volume-weighted average of
// the source vwaps, falling back to typical price for bars without one.
// Buckets with no source bars are simply absent; gaps stay gaps.
func Resample(s *Series, width time.Duration, interval string) (*Series, error) {
	if width <= 0 {
		return nil, fmt.Errorf("resample width must be positive, got %s", width)
	}

	out := &Series{Symbol: s.Symbol, Interval: interval}

	var (
		cur    Bar
		curKey int64
		open   bool
		pv     float64 // price*volume accumulator for the bucket vwap
	)
	flush := func() {
		if !open {
			return
		}
		if cur.Volume > 0 {
			cur.VWAP = pv / cur.Volume
		}
		out.Bars = append(out.Bars, cur)
		open = false
	}

	for _, b := range s.Bars {
		// Bucket by nanoseconds so widths under one second stay valid.
		key := b.Time.UnixNano() / int64(width)
		if !open || key != curKey {
			flush()
			curKey = key
			cur = Bar{
				Time:   time.Unix(0, key*int64(width)).UTC(),
				Open:   b.Open,
				High:   b.High,
				Low:    b.Low,
				Close:  b.Close,
				Volume: b.Volume,
			}
			pv = bucketPrice(b) * b.Volume
			open = true
			continue
		}

		if b.High > cur.High {
			cur.High = b.High
		}
		if b.Low < cur.Low {
			cur.Low = b.Low
		}
		cur.Close = b.Close
		cur.Volume += b.Volume
		pv += bucketPrice(b) * b.Volume
	}
	flush()

	return out, nil
}

func bucketPrice(b Bar) float64 {
	if b.VWAP > 0 {
		return b.VWAP
	}
	return b.TypicalPrice()
}
