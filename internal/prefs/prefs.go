package prefs

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/jask/ledgerview/internal/ledger"
)

const prefsFile = "prefs.json"

// Prefs are the UI choices that survive a restart.
type Prefs struct {
	PageSize int     `json:"page_size"`
	Filters  Filters `json:"filters"`
}

// Filters is the persisted form of ledger.TransactionFilters.
type Filters struct {
	Type  string    `json:"type,omitempty"`
	Start time.Time `json:"start,omitempty"`
	End   time.Time `json:"end,omitempty"`
	Actor string    `json:"actor,omitempty"`
}

// FromFilters copies f for persistence.
func FromFilters(f ledger.TransactionFilters) Filters {
	return Filters{Type: string(f.Type), Start: f.Start, End: f.End, Actor: f.Actor}
}

// Ledger converts the persisted filters back.
func (f Filters) Ledger() ledger.TransactionFilters {
	return ledger.TransactionFilters{Type: ledger.TxType(f.Type), Start: f.Start, End: f.End, Actor: f.Actor}
}

// DefaultPath is prefs.json under the user config dir.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "ledgerview", prefsFile), nil
}

// Save writes p to path atomically. An empty path uses DefaultPath.
func Save(path string, p Prefs) error {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Load reads path. A missing file yields zero Prefs.
func Load(path string) (Prefs, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return Prefs{}, err
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Prefs{}, nil
		}
		return Prefs{}, err
	}
	var p Prefs
	if err := json.Unmarshal(data, &p); err != nil {
		return Prefs{}, err
	}
	return p, nil
}
