package ledger

import (
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/tradekit-lab/tradekit/internal/types"
	"github.com/tradekit-lab/tradekit/pkg/errors"
)

// CSVLedger buffers the journal in memory and writes trades.csv and
// equity.csv on Close.
type CSVLedger struct {
	dir    string
	trades []types.Trade
	equity []types.AccountSnapshot
}

func NewCSVLedger(dir string) (*CSVLedger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeLedgerWriteFailed, err, "failed to create %s", dir)
	}

	return &CSVLedger{dir: dir}, nil
}

func (l *CSVLedger) AppendTrade(trade types.Trade) error {
	l.trades = append(l.trades, trade)

	return nil
}

func (l *CSVLedger) AppendEquity(snapshot types.AccountSnapshot) error {
	l.equity = append(l.equity, snapshot)

	return nil
}

// Close flushes both files. An empty journal still produces files with
// headers only.
func (l *CSVLedger) Close() error {
	if err := writeCSV(filepath.Join(l.dir, "trades.csv"), &l.trades); err != nil {
		return err
	}

	return writeCSV(filepath.Join(l.dir, "equity.csv"), &l.equity)
}

func writeCSV(path string, records any) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeLedgerWriteFailed, err, "failed to create %s", path)
	}
	defer file.Close()

	if err := gocsv.MarshalFile(records, file); err != nil {
		return errors.Wrapf(errors.ErrCodeLedgerWriteFailed, err, "failed to write %s", path)
	}

	return nil
}
