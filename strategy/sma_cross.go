package strategy

import (
	"fmt"

	"github.com/quantlab/backtest/indicators"
	"github.com/quantlab/backtest/market"
	"github.com/quantlab/backtest/portfolio"
)

func init() {
	Register("sma-cross", func() Strategy { return NewSMACross(10, 30) })
	Register("buy-hold", func() Strategy { return &BuyHold{} })
}

// SMACross buys on a golden cross (fast SMA crossing above slow) and sells
// on a death cross. It signals only on the cross event, not on every bar
// while the averages remain crossed.
type SMACross struct {
	fastPeriod int
	slowPeriod int
	fast       *indicators.SMA
	slow       *indicators.SMA

	// -1 fast below slow, 0 unknown, +1 fast above slow
	prevRel int
	long    bool
}

func NewSMACross(fast, slow int) *SMACross {
	return &SMACross{
		fastPeriod: fast,
		slowPeriod: slow,
		fast:       indicators.NewSMA(fast),
		slow:       indicators.NewSMA(slow),
	}
}

func (s *SMACross) Name() string {
	return fmt.Sprintf("SMA_CROSS(%d,%d)", s.fastPeriod, s.slowPeriod)
}

func (s *SMACross) SetParams(params map[string]float64) error {
	for k, v := range params {
		switch k {
		case "fast":
			s.fastPeriod = int(v)
		case "slow":
			s.slowPeriod = int(v)
		default:
			return fmt.Errorf("unknown parameter: %s", k)
		}
	}
	if s.fastPeriod <= 0 || s.slowPeriod <= 0 || s.fastPeriod >= s.slowPeriod {
		return fmt.Errorf("require 0 < fast < slow, got fast=%d slow=%d", s.fastPeriod, s.slowPeriod)
	}
	s.fast = indicators.NewSMA(s.fastPeriod)
	s.slow = indicators.NewSMA(s.slowPeriod)
	return nil
}

func (s *SMACross) Init(bars []market.Bar, symbol string) error {
	s.fast.Reset()
	s.slow.Reset()
	s.prevRel = 0
	s.long = false
	return nil
}

func (s *SMACross) Execute(bar market.Bar, index int, bars []market.Bar, symbol string) ([]portfolio.Signal, error) {
	s.fast.Update(bar.Close)
	s.slow.Update(bar.Close)
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
		s.long = true
		return []portfolio.Signal{{
			Symbol: symbol,
			Side:   portfolio.Buy,
			Type:   portfolio.Market,
			Price:  bar.Close,
			Time:   bar.Time,
			Tag:    "golden-cross",
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
			Tag:    "death-cross",
		}}, nil
	}
	return nil, nil
}

func (s *SMACross) End(bars []market.Bar, symbol string) error { return nil }

// BuyHold opens a single market position at the first bar and holds it for
// the rest of the run. A baseline for comparing anything else against.
type BuyHold struct {
	opened bool
}

func (b *BuyHold) Name() string { return "BUY_HOLD" }

func (b *BuyHold) SetParams(params map[string]float64) error {
	if len(params) > 0 {
		return fmt.Errorf("buy-hold takes no parameters")
	}
	return nil
}

func (b *BuyHold) Init(bars []market.Bar, symbol string) error {
	b.opened = false
	return nil
}

func (b *BuyHold) Execute(bar market.Bar, index int, bars []market.Bar, symbol string) ([]portfolio.Signal, error) {
	if b.opened {
		return nil, nil
	}
	b.opened = true
	return []portfolio.Signal{{
		Symbol: symbol,
		Side:   portfolio.Buy,
		Type:   portfolio.Market,
		Price:  bar.Close,
		Time:   bar.Time,
		Tag:    "entry",
	}}, nil
}

func (b *BuyHold) End(bars []market.Bar, symbol string) error { return nil }
