package dispatch

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

var ledgerHeader = []string{
	"index",
	"start",
	"end",
	"hours",
	"storage",
	"action",
	"energy_start_kwh",
	"energy_end_kwh",
	"power_kw",
	"value",
}

// WriteLedgerCSV writes the ledger to path, creating parent directories.
func WriteLedgerCSV(path string, ledger []LedgerRow) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteLedger(f, ledger); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func WriteLedger(out io.Writer, ledger []LedgerRow) error {
	w := csv.NewWriter(out)
	if err := w.Write(ledgerHeader); err != nil {
		return err
	}
	for _, r := range ledger {
		row := []string{
			strconv.Itoa(r.Index),
			fmtTime(r.Start),
			fmtTime(r.End),
			fmtFloat(r.Hours),
			r.Storage,
			string(r.Action),
			fmtFloat(r.EnergyStart),
			fmtFloat(r.EnergyEnd),
			fmtFloat(r.Power),
			fmtFloat(r.Value),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func fmtFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
