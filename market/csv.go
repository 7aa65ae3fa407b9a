package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadCSV reads a bar series from a CSV file with rows of the form
//
//	time,open,high,low,close,volume[,vwap]
//
// Timestamps may be RFC3339 or unix seconds. A header row is skipped if the
// first field does not parse as a timestamp.
func LoadCSV(path, symbol, interval string) (*Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bars: %w", err)
	}
	defer f.Close()

	s := &Series{Symbol: symbol, Interval: interval}

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	line := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read bars: %w", err)
		}
		line++
		if len(rec) < 6 {
			return nil, fmt.Errorf("line %d: expected at least 6 fields, got %d", line, len(rec))
		}

		ts, err := parseTime(strings.TrimSpace(rec[0]))
		if err != nil {
			if line == 1 {
				continue // header row
			}
			return nil, fmt.Errorf("line %d: bad timestamp %q", line, rec[0])
		}

		vals := make([]float64, 0, 6)
		for _, field := range rec[1:] {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad number %q", line, field)
			}
			vals = append(vals, v)
		}

		b := Bar{
			Time:   ts,
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: vals[4],
		}
		if len(vals) > 5 {
			b.VWAP = vals[5]
		}
		s.Bars = append(s.Bars, b)
	}

	if len(s.Bars) == 0 {
		return nil, fmt.Errorf("no bars in %s", path)
	}
	return s, nil
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}
