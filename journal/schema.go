package journal

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	strategy TEXT NOT NULL,
	symbol TEXT NOT NULL,
	interval TEXT NOT NULL,
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	started_at DATETIME NOT NULL,
	finished_at DATETIME NOT NULL,
	bars_processed INTEGER NOT NULL,
	total_bars INTEGER NOT NULL,
	final_cash REAL NOT NULL,
	final_equity REAL NOT NULL,
	total_return_pct REAL NOT NULL,
	cagr REAL NOT NULL,
	sharpe_ratio REAL NOT NULL,
	sortino_ratio REAL NOT NULL,
	max_drawdown_pct REAL NOT NULL,
	total_trades INTEGER NOT NULL,
	win_rate REAL NOT NULL,
	profit_factor REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	trade_id TEXT NOT NULL,
	run_id TEXT NOT NULL,
	order_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	quantity REAL NOT NULL,
	price REAL NOT NULL,
	commission REAL NOT NULL,
	slippage REAL NOT NULL,
	time DATETIME NOT NULL,
	bar_index INTEGER NOT NULL,
	pnl REAL,
	pnl_pct REAL,
	PRIMARY KEY (run_id, trade_id)
);

CREATE TABLE IF NOT EXISTS equity (
	run_id TEXT NOT NULL,
	bar_index INTEGER NOT NULL,
	time DATETIME NOT NULL,
	equity REAL NOT NULL,
	cash REAL NOT NULL,
	position_value REAL NOT NULL,
	drawdown REAL NOT NULL,
	drawdown_pct REAL NOT NULL,
	PRIMARY KEY (run_id, bar_index)
);

CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run_id);
CREATE INDEX IF NOT EXISTS idx_equity_run ON equity(run_id);
`
