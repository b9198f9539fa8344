package csvholders

// Parser for holder CSV exports (Solscan "Export CSV" and compatible dumps).
// The address column is found by content first: any cell holding a base58
// string that decodes to a 32 byte public key. Named columns are the fallback.

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"holders-api/internal/store"

	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"
)

var (
	addressHeaders    = []string{"owner", "address", "wallet", "account"}
	balanceHeaders    = []string{"quantity", "amount", "balance"}
	percentageHeaders = []string{"percentage", "percent", "share"}
)

// IsAddress reports whether s is a base58 encoded 32 byte key.
func IsAddress(s string) bool {
	if len(s) < 32 || len(s) > 44 {
		return false
	}
	raw, err := base58.Decode(s)
	return err == nil && len(raw) == 32
}

// ParseNumber accepts "1,234.5", "12.5%", " 7 " and returns a float.
func ParseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "%")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "_", "")
	if s == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", s, err)
	}
	f, _ := d.Float64()
	return f, nil
}

// Parse reads a CSV with a header row into holder entries. Rows without a
// valid address are skipped; Rank is the 1-based position among kept rows.
func Parse(r io.Reader) ([]store.HolderEntry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	cols := columns{
		address:    findColumn(header, addressHeaders),
		balance:    findColumn(header, balanceHeaders),
		percentage: findColumn(header, percentageHeaders),
	}

	var out []store.HolderEntry
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return out, fmt.Errorf("failed to read CSV line %d: %w", line, err)
		}
		if entry, ok := cols.entry(row); ok {
			entry.Rank = len(out) + 1
			out = append(out, entry)
		}
	}
	return out, nil
}

type columns struct {
	address    int
	balance    int
	percentage int
}

func (c columns) entry(row []string) (store.HolderEntry, bool) {
	var e store.HolderEntry

	for _, v := range row {
		if v = strings.TrimSpace(v); IsAddress(v) {
			e.Address = v
			break
		}
	}
	if e.Address == "" {
		if v := cell(row, c.address); IsAddress(v) {
			e.Address = v
		}
	}
	if e.Address == "" {
		return e, false
	}

	if v := cell(row, c.balance); v != "" {
		if f, err := ParseNumber(v); err == nil {
			e.Balance = f
		}
	}
	if v := cell(row, c.percentage); v != "" {
		if f, err := ParseNumber(v); err == nil {
			e.Percentage = f
		}
	}
	return e, true
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func findColumn(header []string, names []string) int {
	for _, name := range names {
		for i, h := range header {
			h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
			if h == name || strings.HasPrefix(h, name+" ") || strings.HasPrefix(h, name+"(") {
				return i
			}
		}
	}
	return -1
}
