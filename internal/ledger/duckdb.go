package ledger

import (
	"database/sql"
	"fmt"
	"path/filepath"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"

	"github.com/tradekit-lab/tradekit/internal/types"
	"github.com/tradekit-lab/tradekit/pkg/errors"
)

const createJournalTables = `
CREATE TABLE IF NOT EXISTS trades (
	id VARCHAR,
	symbol VARCHAR,
	direction VARCHAR,
	size DOUBLE,
	entry_price DOUBLE,
	exit_price DOUBLE,
	opened_at TIMESTAMP,
	closed_at TIMESTAMP,
	realized_pnl DOUBLE,
	fee DOUBLE,
	exit_reason VARCHAR,
	strategy VARCHAR
);

CREATE TABLE IF NOT EXISTS equity (
	time TIMESTAMP,
	balance DOUBLE,
	equity DOUBLE,
	unrealized_pnl DOUBLE,
	margin_used DOUBLE,
	free_margin DOUBLE,
	peak_equity DOUBLE,
	max_drawdown_pct DOUBLE,
	open_positions INTEGER
);
`

// DuckDBLedger journals trades and equity into an embedded DuckDB
// database, queryable with SQL and exportable to Parquet.
type DuckDBLedger struct {
	db *sql.DB
}

// NewDuckDBLedger opens an in-memory journal. Pass a file path to keep
// the journal on disk instead.
func NewDuckDBLedger(path string) (*DuckDBLedger, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeLedgerWriteFailed, "failed to open journal database", err)
	}

	if _, err := db.Exec(createJournalTables); err != nil {
		db.Close()

		return nil, errors.Wrap(errors.ErrCodeLedgerWriteFailed, "failed to create journal tables", err)
	}

	return &DuckDBLedger{db: db}, nil
}

func (l *DuckDBLedger) AppendTrade(trade types.Trade) error {
	_, err := sq.Insert("trades").
		Columns("id", "symbol", "direction", "size", "entry_price", "exit_price",
			"opened_at", "closed_at", "realized_pnl", "fee", "exit_reason", "strategy").
		Values(trade.ID, trade.Symbol, string(trade.Direction), trade.Size, trade.EntryPrice, trade.ExitPrice,
			trade.OpenedAt, trade.ClosedAt, trade.RealizedPnL, trade.Fee, string(trade.ExitReason), trade.Strategy).
		RunWith(l.db).
		Exec()
	if err != nil {
		return errors.Wrap(errors.ErrCodeLedgerWriteFailed, "failed to append trade", err)
	}

	return nil
}

func (l *DuckDBLedger) AppendEquity(snapshot types.AccountSnapshot) error {
	_, err := sq.Insert("equity").
		Columns("time", "balance", "equity", "unrealized_pnl", "margin_used",
			"free_margin", "peak_equity", "max_drawdown_pct", "open_positions").
		Values(snapshot.Time, snapshot.Balance, snapshot.Equity, snapshot.UnrealizedPnL, snapshot.MarginUsed,
			snapshot.FreeMargin, snapshot.PeakEquity, snapshot.MaxDrawdownPct, snapshot.OpenPositions).
		RunWith(l.db).
		Exec()
	if err != nil {
		return errors.Wrap(errors.ErrCodeLedgerWriteFailed, "failed to append equity snapshot", err)
	}

	return nil
}

// Trades returns the journaled trades in close order.
func (l *DuckDBLedger) Trades() ([]types.Trade, error) {
	rows, err := sq.Select("id", "symbol", "direction", "size", "entry_price", "exit_price",
		"opened_at", "closed_at", "realized_pnl", "fee", "exit_reason", "strategy").
		From("trades").
		OrderBy("closed_at ASC").
		RunWith(l.db).
		Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeLedgerQueryFailed, "failed to query trades", err)
	}
	defer rows.Close()

	var trades []types.Trade

	for rows.Next() {
		var trade types.Trade

		var direction, exitReason string

		if err := rows.Scan(&trade.ID, &trade.Symbol, &direction, &trade.Size, &trade.EntryPrice, &trade.ExitPrice,
			&trade.OpenedAt, &trade.ClosedAt, &trade.RealizedPnL, &trade.Fee, &exitReason, &trade.Strategy); err != nil {
			return nil, errors.Wrap(errors.ErrCodeLedgerQueryFailed, "failed to scan trade", err)
		}

		trade.Direction = types.Direction(direction)
		trade.ExitReason = types.ExitReason(exitReason)
		trade.OpenedAt = trade.OpenedAt.UTC()
		trade.ClosedAt = trade.ClosedAt.UTC()
		trades = append(trades, trade)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeLedgerQueryFailed, "trade iteration failed", err)
	}

	return trades, nil
}

// EquityCurve returns the journaled snapshots in time order.
func (l *DuckDBLedger) EquityCurve() ([]types.AccountSnapshot, error) {
	rows, err := sq.Select("time", "balance", "equity", "unrealized_pnl", "margin_used",
		"free_margin", "peak_equity", "max_drawdown_pct", "open_positions").
		From("equity").
		OrderBy("time ASC").
		RunWith(l.db).
		Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeLedgerQueryFailed, "failed to query equity curve", err)
	}
	defer rows.Close()

	var curve []types.AccountSnapshot

	for rows.Next() {
		var snapshot types.AccountSnapshot

		if err := rows.Scan(&snapshot.Time, &snapshot.Balance, &snapshot.Equity, &snapshot.UnrealizedPnL,
			&snapshot.MarginUsed, &snapshot.FreeMargin, &snapshot.PeakEquity, &snapshot.MaxDrawdownPct,
			&snapshot.OpenPositions); err != nil {
			return nil, errors.Wrap(errors.ErrCodeLedgerQueryFailed, "failed to scan equity snapshot", err)
		}

		snapshot.Time = snapshot.Time.UTC()
		curve = append(curve, snapshot)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeLedgerQueryFailed, "equity iteration failed", err)
	}

	return curve, nil
}

// ExportParquet writes trades.parquet and equity.parquet into dir.
func (l *DuckDBLedger) ExportParquet(dir string) error {
	for _, table := range []string{"trades", "equity"} {
		target := filepath.Join(dir, table+".parquet")
		query := fmt.Sprintf("COPY %s TO '%s' (FORMAT PARQUET);", table, target)

		if _, err := l.db.Exec(query); err != nil {
			return errors.Wrapf(errors.ErrCodeLedgerWriteFailed, err, "failed to export %s", target)
		}
	}

	return nil
}

func (l *DuckDBLedger) Close() error {
	return l.db.Close()
}
