package strategy

import (
	"fmt"

	"github.com/quantlab/backtest/indicators"
	"github.com/quantlab/backtest/market"
	"github.com/quantlab/backtest/portfolio"
)

func init() {
	Register("ema-cross", func() Strategy { return NewEMACross(12, 26, 0) })
	Register("ema-cross-adx", func() Strategy { return NewEMACross(12, 26, 14) })
}

// EMACross trades fast/slow EMA cross events. With a nonzero ADX period it
// additionally requires a trending market: entries are suppressed while the
// ADX sits below the threshold, exits always go through.
type EMACross struct {
	fastPeriod int
	slowPeriod int
	adxPeriod  int
	adxMin     float64

	fast *indicators.EMA
	slow *indicators.EMA
	adx  *indicators.ADX

	prevRel int
	long    bool
}

func NewEMACross(fast, slow, adxPeriod int) *EMACross {
	s := &EMACross{
		fastPeriod: fast,
		slowPeriod: slow,
		adxPeriod:  adxPeriod,
		adxMin:     20,
	}
	s.rebuild()
	return s
}

func (s *EMACross) rebuild() {
	s.fast = indicators.NewEMA(s.fastPeriod)
	s.slow = indicators.NewEMA(s.slowPeriod)
	s.adx = nil
	if s.adxPeriod > 0 {
		s.adx = indicators.NewADX(s.adxPeriod)
	}
}

func (s *EMACross) Name() string {
	if s.adx != nil {
		return fmt.Sprintf("EMA_CROSS_ADX(%d,%d,%d)", s.fastPeriod, s.slowPeriod, s.adxPeriod)
	}
	return fmt.Sprintf("EMA_CROSS(%d,%d)", s.fastPeriod, s.slowPeriod)
}

func (s *EMACross) SetParams(params map[string]float64) error {
	for k, v := range params {
		switch k {
		case "fast":
			s.fastPeriod = int(v)
		case "slow":
			s.slowPeriod = int(v)
		case "adx_period":
			s.adxPeriod = int(v)
		case "adx_min":
			s.adxMin = v
		default:
			return fmt.Errorf("unknown parameter: %s", k)
		}
	}
	if s.fastPeriod <= 0 || s.slowPeriod <= 0 || s.fastPeriod >= s.slowPeriod {
		return fmt.Errorf("require 0 < fast < slow, got fast=%d slow=%d", s.fastPeriod, s.slowPeriod)
	}
	if s.adxPeriod < 0 {
		return fmt.Errorf("adx_period must be >= 0, got %d", s.adxPeriod)
	}
	s.rebuild()
	return nil
}

func (s *EMACross) Init(bars []market.Bar, symbol string) error {
	s.fast.Reset()
	s.slow.Reset()
	if s.adx != nil {
		s.adx.Reset()
	}
	s.prevRel = 0
	s.long = false
	return nil
}

func (s *EMACross) Execute(bar market.Bar, index int, bars []market.Bar, symbol string) ([]portfolio.Signal, error) {
	s.fast.Update(bar.Close)
	s.slow.Update(bar.Close)
	if s.adx != nil {
		s.adx.Update(bar.High, bar.Low, bar.Close)
	}
	if !s.fast.Ready() || !s.slow.Ready() {
		return nil, nil
	}

	rel := 0
	switch {
	case s.fast.Value() > s.slow.Value():
		rel = 1
	case s.fast.Value() < s.slow.Value():
		rel = -1
	}

	defer func() { s.prevRel = rel }()

	if s.prevRel == 0 || rel == 0 || rel == s.prevRel {
		return nil, nil
	}

	if rel > 0 && !s.long {
		if s.adx != nil && (!s.adx.Ready() || s.adx.Value() < s.adxMin) {
			return nil, nil
		}
		s.long = true
		return []portfolio.Signal{{
			Symbol: symbol,
			Side:   portfolio.Buy,
			Type:   portfolio.Market,
			Price:  bar.Close,
			Time:   bar.Time,
			Tag:    "ema-cross-up",
		}}, nil
	}
	if rel < 0 && s.long {
		s.long = false
		return []portfolio.Signal{{
			Symbol: symbol,
			Side:   portfolio.Sell,
			Type:   portfolio.Market,
			Price:  bar.Close,
			Time:   bar.Time,
			Tag:    "ema-cross-down",
		}}, nil
	}
	return nil, nil
}

func (s *EMACross) End(bars []market.Bar, symbol string) error { return nil }
