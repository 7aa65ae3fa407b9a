// Package indicators provides the streaming moving averages used by the
// built-in strategies.
package indicators

import "fmt"

// SMA is a streaming Simple Moving Average over a fixed window.
type SMA struct {
	n      int
	window []float64
	sum    float64
	name   string
}

func NewSMA(period int) *SMA {
	if period <= 0 {
		panic("SMA period must be > 0")
	}
	return &SMA{n: period, name: fmt.Sprintf("SMA(%d)", period)}
}

func (s *SMA) Name() string { return s.name }
func (s *SMA) Ready() bool  { return len(s.window) == s.n }

func (s *SMA) Reset() {
	s.window = nil
	s.sum = 0
}

func (s *SMA) Update(x float64) {
	s.window = append(s.window, x)
	s.sum += x
	if len(s.window) > s.n {
		s.sum -= s.window[0]
		s.window = s.window[1:]
	}
}

func (s *SMA) Value() float64 {
	if len(s.window) == 0 {
		return 0
	}
	return s.sum / float64(len(s.window))
}

// EMA is a streaming Exponential Moving Average seeded with the first
// observation.
type EMA struct {
	n     int
	alpha float64
	seen  int
	value float64
	name  string
}

func NewEMA(period int) *EMA {
	if period <= 0 {
		panic("EMA period must be > 0")
	}
	return &EMA{
		n:     period,
		alpha: 2.0 / float64(period+1),
		name:  fmt.Sprintf("EMA(%d)", period),
	}
}

func (e *EMA) Name() string { return e.name }
func (e *EMA) Ready() bool  { return e.seen >= e.n }

func (e *EMA) Reset() {
	e.seen = 0
	e.value = 0
}

func (e *EMA) Update(x float64) {
	e.seen++
	if e.seen == 1 {
		e.value = x
		return
	}
	e.value = (x-e.value)*e.alpha + e.value
}

func (e *EMA) Value() float64 { return e.value }
