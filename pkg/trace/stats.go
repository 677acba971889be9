package trace

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"
	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/pagetemp/internal/constants"
)

// Stats summarizes a trace.
type Stats struct {
	Loads  uint64  `json:"loads"`
	Stores uint64  `json:"stores"`
	Ratio  float64 `json:"ratio"`
	Count  uint64  `json:"count"`
}

// Scan reads every access of r and returns its Stats.
// Ratio is loads/stores rounded to four decimals, or 0 without stores.
func Scan(ctx context.Context, r *Reader) (Stats, error) {
	var stats Stats

	err := r.Each(ctx, func(a Access) error {
		if a.Load {
			stats.Loads++
		} else {
			stats.Stores++
		}

		return nil
	})
	if err != nil {
		return Stats{}, err
	}

	stats.Count = stats.Loads + stats.Stores
	stats.Ratio = Ratio(stats.Loads, stats.Stores)

	return stats, nil
}

// Ratio returns loads/stores rounded to four decimals, or 0 when stores is 0.
func Ratio(loads, stores uint64) float64 {
	if stores == 0 {
		return 0
	}

	scale := math.Pow10(constants.RatioPrecision)

	return math.Round(float64(loads)/float64(stores)*scale) / scale
}

// StatsDB caches trace Stats in a JSON file keyed by absolute trace path.
type StatsDB struct {
	mu      sync.Mutex
	path    string
	entries map[string]Stats
}

// OpenStatsDB loads the database at path. A missing file yields an empty database.
func OpenStatsDB(path string) (*StatsDB, error) {
	db := &StatsDB{path: path, entries: make(map[string]Stats)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return db, nil
	}

	if err != nil {
		return nil, ewrap.Wrapf(err, "failed to read stats db %s", path)
	}

	if len(data) == 0 {
		return db, nil
	}

	err = json.Unmarshal(data, &db.entries)
	if err != nil {
		return nil, ewrap.Wrapf(err, "failed to parse stats db %s", path)
	}

	return db, nil
}

// Get returns the cached Stats of tracePath.
func (db *StatsDB) Get(tracePath string) (Stats, bool, error) {
	key, err := filepath.Abs(tracePath)
	if err != nil {
		return Stats{}, false, ewrap.Wrapf(err, "failed to resolve %s", tracePath)
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	stats, ok := db.entries[key]

	return stats, ok, nil
}

// GetOrScan returns the cached Stats of tracePath, scanning the trace and
// persisting the database when they are missing.
func (db *StatsDB) GetOrScan(ctx context.Context, tracePath string) (Stats, error) {
	stats, ok, err := db.Get(tracePath)
	if err != nil || ok {
		return stats, err
	}

	reader, err := Open(tracePath)
	if err != nil {
		return Stats{}, err
	}

	stats, err = Scan(ctx, reader)

	closeErr := reader.Close()
	if err != nil {
		return Stats{}, err
	}

	if closeErr != nil {
		return Stats{}, closeErr
	}

	key, err := filepath.Abs(tracePath)
	if err != nil {
		return Stats{}, ewrap.Wrapf(err, "failed to resolve %s", tracePath)
	}

	db.mu.Lock()
	db.entries[key] = stats
	err = db.save()
	db.mu.Unlock()

	if err != nil {
		return Stats{}, err
	}

	return stats, nil
}

// save writes the database; the caller holds mu.
func (db *StatsDB) save() error {
	data, err := json.Marshal(db.entries)
	if err != nil {
		return ewrap.Wrap(err, "failed to encode stats db")
	}

	tmp := db.path + ".tmp"

	err = os.WriteFile(tmp, data, 0o600)
	if err != nil {
		return ewrap.Wrapf(err, "failed to write stats db %s", tmp)
	}

	err = os.Rename(tmp, db.path)
	if err != nil {
		return ewrap.Wrapf(err, "failed to replace stats db %s", db.path)
	}

	return nil
}
