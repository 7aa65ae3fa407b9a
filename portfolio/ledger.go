package portfolio

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/quantlab/backtest/market"
)

// Reference price used for sizing when a signal carries no price.
const defaultReferencePrice = 100.0

const (
	reasonInsufficientFunds = "insufficient funds"
	reasonNoPosition        = "no position to sell"
)

// Ledger owns cash, positions, the order book, trade history, and the
// equity curve for a single simulation run. It is not safe for concurrent
// use; the driver runs it strictly bar by bar.
type Ledger struct {
	cfg            Config
	initialCapital float64

	cash      float64
	positions map[string]*Position
	orders    []*Order
	pending   []*Order
	trades    []Trade
	equity    []EquityPoint
	peak      float64

	nextOrderID int64
	nextTradeID int64
}

func NewLedger(cfg Config, initialCapital float64) *Ledger {
	l := &Ledger{cfg: cfg, initialCapital: initialCapital}
	l.Reset()
	return l
}

// Reset discards all state, including id counters, so that two successive
// runs over the same data produce identical trade and equity sequences.
func (l *Ledger) Reset() {
	l.cash = l.initialCapital
	l.positions = make(map[string]*Position)
	l.orders = nil
	l.pending = nil
	l.trades = nil
	l.equity = nil
	l.peak = l.initialCapital
	l.nextOrderID = 0
	l.nextTradeID = 0
}

func (l *Ledger) newOrderID() string {
	l.nextOrderID++
	return fmt.Sprintf("ord-%d", l.nextOrderID)
}

func (l *Ledger) newTradeID() string {
	l.nextTradeID++
	return fmt.Sprintf("trd-%d", l.nextTradeID)
}

// SubmitOrder translates a signal into an order, sizing and validating it.
// Invalid orders are recorded with status rejected and never queued.
func (l *Ledger) SubmitOrder(sig Signal, barIndex int) *Order {
	ref := sig.Price
	if ref <= 0 {
		ref = defaultReferencePrice
	}

	qty := sig.Quantity
	if qty <= 0 {
		if pos, ok := l.positions[sig.Symbol]; ok && opposite(sig.Side, pos.Quantity) {
			// Close the existing opposite-direction position in full.
			qty = math.Abs(pos.Quantity)
		} else {
			qty = math.Floor(l.cash * l.cfg.MaxPositionSize / ref)
		}
	}

	o := &Order{
		ID:        l.newOrderID(),
		Symbol:    sig.Symbol,
		Side:      sig.Side,
		Type:      sig.Type,
		Quantity:  qty,
		Price:     sig.Price,
		StopPrice: sig.StopPrice,
		Status:    StatusPending,
		CreatedAt: sig.Time,
		Tag:       sig.Tag,
	}
	l.orders = append(l.orders, o)

	if reason := l.validate(o, ref); reason != "" {
		o.Status = StatusRejected
		o.Reason = reason
		return o
	}

	o.Status = StatusSubmitted
	l.pending = append(l.pending, o)
	return o
}

func (l *Ledger) validate(o *Order, ref float64) string {
	if o.Quantity <= 0 {
		return reasonInsufficientFunds
	}
	switch o.Side {
	case Buy:
		required := o.Quantity * ref * (1 + l.cfg.CommissionRate) * l.cfg.MarginRate
		if l.cash < required {
			return reasonInsufficientFunds
		}
	case Sell:
		if _, ok := l.positions[o.Symbol]; !ok && !l.cfg.MarginEnabled {
			return reasonNoPosition
		}
	}
	return ""
}

// CancelOrder cancels a pending or partially filled order. Unknown or
// already terminal orders are left untouched and reported as false.
func (l *Ledger) CancelOrder(id string, at time.Time) bool {
	for i, o := range l.pending {
		if o.ID != id {
			continue
		}
		o.Status = StatusCancelled
		o.CancelledAt = at
		l.pending = append(l.pending[:i], l.pending[i+1:]...)
		return true
	}
	return false
}

// ProcessOrders attempts to fill every pending order against the bar.
// Filled quantity is applied to cash and positions immediately; orders that
// do not fill stay pending for the next bar.
func (l *Ledger) ProcessOrders(bar market.Bar, barIndex int) []Trade {
	var fills []Trade
	remaining := l.pending[:0]

	for _, o := range l.pending {
		price, ok := l.fillPrice(o, bar)
		if !ok {
			remaining = append(remaining, o)
			continue
		}

		raw := price
		if o.Side == Buy {
			price += price * l.cfg.SlippageRate
		} else {
			price -= price * l.cfg.SlippageRate
		}

		qty := o.Quantity - o.FilledQuantity
		if l.cfg.VolumeCheck {
			maxQty := math.Floor(bar.Volume * l.cfg.MaxVolumeFraction)
			if qty > maxQty {
				if !l.cfg.AllowPartialFills || maxQty <= 0 {
					remaining = append(remaining, o)
					continue
				}
				qty = maxQty
			}
		}

		t := l.createTrade(o, qty, price, raw, bar.Time, barIndex)
		l.applyTrade(t)

		o.FilledQuantity += qty
		if o.FilledQuantity > 0 {
			o.AvgFillPrice = ((o.FilledQuantity-qty)*o.AvgFillPrice + qty*price) / o.FilledQuantity
		}
		o.Commission += t.Commission
		if o.FilledQuantity >= o.Quantity {
			o.Status = StatusFilled
			o.FilledAt = bar.Time
		} else {
			o.Status = StatusPartial
			remaining = append(remaining, o)
		}

		fills = append(fills, t)
	}

	l.pending = remaining
	return fills
}

// fillPrice returns the achieved execution price for the order on this bar,
// before slippage, or false if the order does not fill.
func (l *Ledger) fillPrice(o *Order, bar market.Bar) (float64, bool) {
	switch o.Type {
	case Market:
		switch l.cfg.FillModel {
		case FillNextOpen:
			return bar.Open, true
		case FillVWAP:
			if bar.VWAP > 0 {
				return bar.VWAP, true
			}
			return bar.TypicalPrice(), true
		default:
			return bar.Close, true
		}

	case Limit:
		if o.Side == Buy && bar.Low <= o.Price {
			return math.Min(o.Price, bar.High), true
		}
		if o.Side == Sell && bar.High >= o.Price {
			return math.Max(o.Price, bar.Low), true
		}

	case Stop:
		if o.Side == Buy && bar.High >= o.StopPrice {
			return math.Max(o.StopPrice, bar.Open), true
		}
		if o.Side == Sell && bar.Low <= o.StopPrice {
			return math.Min(o.StopPrice, bar.Open), true
		}

	case StopLimit:
		limit := o.Price
		if limit <= 0 {
			limit = o.StopPrice
		}
		if o.Side == Buy && bar.High >= o.StopPrice && bar.Low <= limit {
			return limit, true
		}
		if o.Side == Sell && bar.Low <= o.StopPrice && bar.High >= limit {
			return limit, true
		}
	}
	return 0, false
}

func (l *Ledger) createTrade(o *Order, qty, price, rawPrice float64, at time.Time, barIndex int) Trade {
	value := qty * price
	t := Trade{
		ID:         l.newTradeID(),
		OrderID:    o.ID,
		Symbol:     o.Symbol,
		Side:       o.Side,
		Quantity:   qty,
		Price:      price,
		Commission: value * l.cfg.CommissionRate,
		Time:       at,
		BarIndex:   barIndex,
		Tag:        o.Tag,
	}
	if o.Type == Market {
		t.Slippage = qty * rawPrice * l.cfg.SlippageRate
	}

	// Realized P&L exists only when the fill reduces or closes an
	// opposite-signed position.
	if pos, ok := l.positions[o.Symbol]; ok && opposite(o.Side, pos.Quantity) {
		closed := math.Min(math.Abs(pos.Quantity), qty)
		pnl := (price-pos.AvgPrice)*closed*sign(pos.Quantity) - t.Commission
		t.PnL = &pnl
		pct := 0.0
		if pos.AvgPrice != 0 && closed != 0 {
			pct = pnl / (pos.AvgPrice * closed) * 100
		}
		t.PnLPct = &pct
	}
	return t
}

func (l *Ledger) applyTrade(t Trade) {
	value := t.Quantity * t.Price
	signed := t.Quantity
	if t.Side == Sell {
		signed = -t.Quantity
		l.cash += value - t.Commission
	} else {
		l.cash -= value + t.Commission
	}

	pos, ok := l.positions[t.Symbol]
	if !ok {
		l.positions[t.Symbol] = &Position{
			Symbol:    t.Symbol,
			Quantity:  signed,
			AvgPrice:  t.Price,
			OpenedAt:  t.Time,
			UpdatedAt: t.Time,
		}
		l.trades = append(l.trades, t)
		return
	}

	oldQty := pos.Quantity
	newQty := oldQty + signed
	switch {
	case oldQty != 0 && oldQty*newQty < 0:
		// Sign flip: the fill closed the old position and opened a new one
		// in the other direction at the fill price.
		pos.AvgPrice = t.Price
		if t.PnL != nil {
			pos.RealizedPnL += *t.PnL
		}
	case math.Abs(newQty) > math.Abs(oldQty):
		pos.AvgPrice = (math.Abs(oldQty)*pos.AvgPrice + t.Quantity*t.Price) / math.Abs(newQty)
	default:
		// Shrinking: average entry stays put, P&L realizes.
		if t.PnL != nil {
			pos.RealizedPnL += *t.PnL
		}
	}
	pos.Quantity = newQty
	pos.UpdatedAt = t.Time

	if newQty == 0 {
		delete(l.positions, t.Symbol)
	}

	l.trades = append(l.trades, t)
}

// RecordEquity appends one mark-to-market equity point. Positions without a
// supplied price are marked at their average entry price.
func (l *Ledger) RecordEquity(at time.Time, barIndex int, prices map[string]float64) EquityPoint {
	// Symbols are visited in sorted order so that equity sums are
	// reproducible across runs.
	posValue := 0.0
	for _, sym := range l.symbols() {
		pos := l.positions[sym]
		mark := pos.AvgPrice
		if p, ok := prices[pos.Symbol]; ok && p > 0 {
			mark = p
		}
		pos.MarketValue = math.Abs(pos.Quantity) * mark
		pos.UnrealizedPnL = (mark - pos.AvgPrice) * pos.Quantity
		if pos.AvgPrice != 0 {
			pos.UnrealizedPnLPct = (mark - pos.AvgPrice) / pos.AvgPrice * 100 * sign(pos.Quantity)
		} else {
			pos.UnrealizedPnLPct = 0
		}
		posValue += pos.MarketValue
	}

	equity := l.cash + posValue
	if equity > l.peak {
		l.peak = equity
	}

	dd := 0.0
	ddPct := 0.0
	if equity < l.peak {
		dd = l.peak - equity
		if l.peak > 0 {
			ddPct = dd / l.peak * 100
		}
	}

	pt := EquityPoint{
		Time:          at,
		BarIndex:      barIndex,
		Equity:        equity,
		Cash:          l.cash,
		PositionValue: posValue,
		Drawdown:      dd,
		DrawdownPct:   ddPct,
	}
	l.equity = append(l.equity, pt)
	return pt
}

func (l *Ledger) Cash() float64 { return l.cash }

// Equity returns the latest recorded equity, or current cash plus marked
// position value if nothing has been recorded yet.
func (l *Ledger) Equity() float64 {
	if len(l.equity) == 0 {
		posValue := 0.0
		for _, sym := range l.symbols() {
			pos := l.positions[sym]
			posValue += math.Abs(pos.Quantity) * pos.AvgPrice
		}
		return l.cash + posValue
	}
	return l.equity[len(l.equity)-1].Equity
}

// CurrentDrawdownPct is the drawdown percent of the latest equity point.
func (l *Ledger) CurrentDrawdownPct() float64 {
	if len(l.equity) == 0 {
		return 0
	}
	return l.equity[len(l.equity)-1].DrawdownPct
}

func (l *Ledger) Position(symbol string) (Position, bool) {
	pos, ok := l.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

func (l *Ledger) Positions() []Position {
	out := make([]Position, 0, len(l.positions))
	for _, sym := range l.symbols() {
		out = append(out, *l.positions[sym])
	}
	return out
}

func (l *Ledger) symbols() []string {
	syms := make([]string, 0, len(l.positions))
	for sym := range l.positions {
		syms = append(syms, sym)
	}
	sort.Strings(syms)
	return syms
}

func (l *Ledger) Orders() []Order {
	out := make([]Order, 0, len(l.orders))
	for _, o := range l.orders {
		out = append(out, *o)
	}
	return out
}

func (l *Ledger) PendingOrders() int { return len(l.pending) }

func (l *Ledger) Trades() []Trade { return append([]Trade(nil), l.trades...) }

func (l *Ledger) EquityCurve() []EquityPoint { return append([]EquityPoint(nil), l.equity...) }

// opposite reports whether the side trades against the signed quantity.
func opposite(s Side, qty float64) bool {
	return (s == Buy && qty < 0) || (s == Sell && qty > 0)
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
