package portfolio

import "time"

type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

type OrderType string

const (
	Market    OrderType = "market"
	Limit     OrderType = "limit"
	Stop      OrderType = "stop"
	StopLimit OrderType = "stop_limit"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusSubmitted OrderStatus = "submitted"
	StatusFilled    OrderStatus = "filled"
	StatusPartial   OrderStatus = "partial"
	StatusRejected  OrderStatus = "rejected"
	StatusCancelled OrderStatus = "cancelled"
	StatusExpired   OrderStatus = "expired"
)

// FillModel selects the execution price for market orders.
type FillModel string

const (
	FillClose    FillModel = "close"
	FillNextOpen FillModel = "next_open"
	FillVWAP     FillModel = "vwap"
)

// Signal is a trading intent produced by a strategy. Quantity 0 asks the
// ledger to size the order itself.
type Signal struct {
	Symbol    string    `json:"symbol"`
	Side      Side      `json:"side"`
	Type      OrderType `json:"type"`
	Quantity  float64   `json:"quantity,omitempty"`
	Price     float64   `json:"price,omitempty"`
	StopPrice float64   `json:"stop_price,omitempty"`
	Time      time.Time `json:"time"`
	Tag       string    `json:"tag,omitempty"`
}

type Order struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Side      Side      `json:"side"`
	Type      OrderType `json:"type"`
	Quantity  float64   `json:"quantity"`
	Price     float64   `json:"price,omitempty"`      // limit price
	StopPrice float64   `json:"stop_price,omitempty"` // stop trigger

	Status         OrderStatus `json:"status"`
	FilledQuantity float64     `json:"filled_quantity"`
	AvgFillPrice   float64     `json:"avg_fill_price"`
	Commission     float64     `json:"commission"`
	Reason         string      `json:"reason,omitempty"` // rejection reason

	CreatedAt   time.Time `json:"created_at"`
	FilledAt    time.Time `json:"filled_at,omitempty"`
	CancelledAt time.Time `json:"cancelled_at,omitempty"`
	Tag         string    `json:"tag,omitempty"`
}

// Trade is an executed fill. PnL and PnLPct are set only when the fill
// reduced or closed an opposite-signed position.
type Trade struct {
	ID         string    `json:"id"`
	OrderID    string    `json:"order_id"`
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	Quantity   float64   `json:"quantity"`
	Price      float64   `json:"price"`
	Commission float64   `json:"commission"`
	Slippage   float64   `json:"slippage"`
	Time       time.Time `json:"time"`
	BarIndex   int       `json:"bar_index"`
	PnL        *float64  `json:"pnl,omitempty"`
	PnLPct     *float64  `json:"pnl_pct,omitempty"`
	Tag        string    `json:"tag,omitempty"`
}

// Position is the net holding for one symbol. Quantity is signed: positive
// long, negative short. A position with quantity 0 is deleted, never stored.
type Position struct {
	Symbol           string    `json:"symbol"`
	Quantity         float64   `json:"quantity"`
	AvgPrice         float64   `json:"avg_price"`
	MarketValue      float64   `json:"market_value"`
	UnrealizedPnL    float64   `json:"unrealized_pnl"`
	UnrealizedPnLPct float64   `json:"unrealized_pnl_pct"`
	RealizedPnL      float64   `json:"realized_pnl"`
	OpenedAt         time.Time `json:"opened_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// EquityPoint is one mark-to-market snapshot, appended per bar.
type EquityPoint struct {
	Time          time.Time `json:"time"`
	BarIndex      int       `json:"bar_index"`
	Equity        float64   `json:"equity"`
	Cash          float64   `json:"cash"`
	PositionValue float64   `json:"position_value"`
	Drawdown      float64   `json:"drawdown"`
	DrawdownPct   float64   `json:"drawdown_pct"`
}

// Config holds the ledger's execution parameters. It is immutable per run.
type Config struct {
	CommissionRate    float64
	SlippageRate      float64
	MarginEnabled     bool
	MarginRate        float64
	FillModel         FillModel
	AllowPartialFills bool
	VolumeCheck       bool
	MaxVolumeFraction float64
	MaxPositionSize   float64
}
