package limits

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/tidwall/buntdb"
)

const rangeKey = "limits:range"

var (
	// ErrInvalidRange rejects bounds that are unordered or non-positive.
	ErrInvalidRange = errors.New("limits: invalid range")
)

// Range is the acceptable rate interval. Lower never exceeds Upper for any
// Range held by a Store.
type Range struct {
	Lower decimal.Decimal `json:"lower"`
	Upper decimal.Decimal `json:"upper"`
}

// Contains reports whether the rate lies within the closed interval.
func (r Range) Contains(rate decimal.Decimal) bool {
	return rate.GreaterThanOrEqual(r.Lower) && rate.LessThanOrEqual(r.Upper)
}

func (r Range) String() string {
	return fmt.Sprintf("[%s, %s]", r.Lower, r.Upper)
}

// NewRange validates bounds into a Range.
func NewRange(lower, upper decimal.Decimal) (Range, error) {
	if err := validateBounds(lower, upper); err != nil {
		return Range{}, err
	}
	return Range{Lower: lower, Upper: upper}, nil
}

func validateBounds(lower, upper decimal.Decimal) error {
	if lower.Sign() <= 0 || upper.Sign() <= 0 {
		return fmt.Errorf("%w: bounds must be greater than zero", ErrInvalidRange)
	}
	if lower.GreaterThan(upper) {
		return fmt.Errorf("%w: lower %s above upper %s", ErrInvalidRange, lower, upper)
	}
	return nil
}

// Store holds the current Range in memory and writes it through to an
// embedded buntdb file so the range survives restarts. The driver loop is
// the only writer at runtime, so access is not synchronised.
type Store struct {
	db      *buntdb.DB
	current Range
	logger  zerolog.Logger
}

// Open loads the persisted Range from path, seeding with fallback when the
// file holds none. Pass ":memory:" to keep the range in process memory only.
func Open(path string, fallback Range, logger zerolog.Logger) (*Store, error) {
	if err := validateBounds(fallback.Lower, fallback.Upper); err != nil {
		return nil, fmt.Errorf("default range: %w", err)
	}
	if path == "" {
		path = ":memory:"
	}

	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open limits db: %w", err)
	}
	if err := db.SetConfig(buntdb.Config{SyncPolicy: buntdb.Always}); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure limits db: %w", err)
	}

	store := &Store{
		db:     db,
		logger: logger.With().Str("component", "limits_store").Logger(),
	}

	loaded, found, err := store.load()
	if err != nil {
		db.Close()
		return nil, err
	}

	switch {
	case !found:
		store.current = fallback
		if err := store.persist(fallback); err != nil {
			db.Close()
			return nil, err
		}
		store.logger.Info().Str("range", fallback.String()).Msg("seeded default limits")
	case validateBounds(loaded.Lower, loaded.Upper) != nil:
		store.current = fallback
		if err := store.persist(fallback); err != nil {
			db.Close()
			return nil, err
		}
		store.logger.Warn().Str("range", loaded.String()).Msg("stored limits invalid, reset to defaults")
	default:
		store.current = loaded
		store.logger.Info().Str("range", loaded.String()).Msg("loaded persisted limits")
	}

	return store, nil
}

// Get returns the current Range.
func (s *Store) Get() Range {
	return s.current
}

// Set validates and stores new bounds. The new Range is visible to Get
// immediately after a nil return.
func (s *Store) Set(lower, upper decimal.Decimal) error {
	next, err := NewRange(lower, upper)
	if err != nil {
		return err
	}
	if err := s.persist(next); err != nil {
		return err
	}
	s.current = next
	return nil
}

// Close releases the underlying database.
func (s *Store) Close() {
	if s == nil || s.db == nil {
		return
	}
	if err := s.db.Close(); err != nil {
		s.logger.Error().Err(err).Msg("close limits db")
	}
}

func (s *Store) load() (Range, bool, error) {
	var raw string
	err := s.db.View(func(tx *buntdb.Tx) error {
		value, err := tx.Get(rangeKey)
		if err != nil {
			return err
		}
		raw = value
		return nil
	})
	if errors.Is(err, buntdb.ErrNotFound) {
		return Range{}, false, nil
	}
	if err != nil {
		return Range{}, false, fmt.Errorf("read limits: %w", err)
	}

	var stored Range
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return Range{}, false, fmt.Errorf("decode limits: %w", err)
	}
	return stored, true, nil
}

func (s *Store) persist(r Range) error {
	content, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode limits: %w", err)
	}
	err = s.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(rangeKey, string(content), nil)
		return err
	})
	if err != nil {
		return fmt.Errorf("write limits: %w", err)
	}
	return nil
}
