package journal

const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	created DATETIME NOT NULL,
	strategy TEXT NOT NULL,
	symbol TEXT NOT NULL,
	start_time DATETIME NOT NULL,
	end_time DATETIME NOT NULL,
	initial_value REAL NOT NULL,
	final_value REAL NOT NULL,
	total_return REAL NOT NULL,
	max_drawdown REAL NOT NULL,
	ratio REAL NOT NULL,
	trades INTEGER NOT NULL,
	rejections INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	run_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	time DATETIME NOT NULL,
	strategy TEXT NOT NULL,
	symbol TEXT NOT NULL,
	action TEXT NOT NULL,
	quantity REAL NOT NULL,
	price REAL NOT NULL,
	cash_delta REAL NOT NULL,
	realized_pl REAL NOT NULL,
	intent_id TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS snapshots (
	run_id TEXT NOT NULL,
	time DATETIME NOT NULL,
	total_value REAL NOT NULL,
	cash REAL NOT NULL,
	positions_value REAL NOT NULL,
	peak REAL NOT NULL,
	drawdown REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS rejections (
	run_id TEXT NOT NULL,
	time DATETIME NOT NULL,
	strategy TEXT NOT NULL,
	symbol TEXT NOT NULL,
	action TEXT NOT NULL,
	quantity REAL NOT NULL,
	status TEXT NOT NULL,
	reason TEXT NOT NULL,
	detail TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_run_time ON snapshots(run_id, time);
CREATE INDEX IF NOT EXISTS idx_rejections_run_time ON rejections(run_id, time);
`
