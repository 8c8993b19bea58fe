package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/ethdb/leveldb"
)

const (
	// StoreCacheMB is the LevelDB block cache size in MB.
	StoreCacheMB = 16

	// StoreHandles is the maximum number of open file handles for LevelDB.
	StoreHandles = 16

	// DefaultReadCacheBytes sizes the in-process record cache.
	DefaultReadCacheBytes = 32 * 1024 * 1024
)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("registry store is closed")

// Record describes one compact a sponsor has signed through this service,
// keyed by its registration slot.
type Record struct {
	Slot      common.Hash    `json:"slot"`
	Sponsor   common.Address `json:"sponsor"`
	ClaimHash common.Hash    `json:"claimHash"`
	TypeHash  common.Hash    `json:"typeHash"`
	Expires   string         `json:"expires"`
	RequestID string         `json:"requestId,omitempty"`
}

// Store keeps registration records. Records are written once per slot;
// a second Put for the same slot overwrites the first.
type Store struct {
	db     ethdb.Database
	cache  *fastcache.Cache
	mu     sync.RWMutex
	closed bool
}

// NewStore opens a LevelDB-backed store at path. An empty path, or a path
// that cannot be opened, falls back to in-memory storage.
func NewStore(path string, cacheBytes int) (*Store, error) {
	var db ethdb.Database

	if path != "" {
		if mkErr := os.MkdirAll(path, 0755); mkErr != nil {
			log.Printf("[Registry] Failed to create directory %s: %v, using in-memory", path, mkErr)
			db = rawdb.NewMemoryDatabase()
		} else {
			ldb, ldbErr := leveldb.New(path, StoreCacheMB, StoreHandles, "", false)
			if ldbErr != nil {
				log.Printf("[Registry] Failed to open LevelDB at %s: %v, using in-memory", path, ldbErr)
				db = rawdb.NewMemoryDatabase()
			} else {
				db = rawdb.NewDatabase(ldb)
				log.Printf("[Registry] Opened persistent storage at %s", path)
			}
		}
	} else {
		db = rawdb.NewMemoryDatabase()
		log.Printf("[Registry] Using in-memory storage (no path specified)")
	}

	if cacheBytes <= 0 {
		cacheBytes = DefaultReadCacheBytes
	}
	return &Store{
		db:    db,
		cache: fastcache.New(cacheBytes),
	}, nil
}

// slotKey returns the database key for a registration slot
func slotKey(slot common.Hash) []byte {
	return append([]byte("reg:"), slot.Bytes()...)
}

// Put stores rec under rec.Slot.
func (s *Store) Put(rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	key := slotKey(rec.Slot)
	if err := s.db.Put(key, data); err != nil {
		return fmt.Errorf("write record %s: %w", rec.Slot.Hex(), err)
	}
	s.cache.Set(key, data)
	return nil
}

// Get returns the record for slot, or nil if none is stored.
func (s *Store) Get(slot common.Hash) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	key := slotKey(slot)
	data, ok := s.cache.HasGet(nil, key)
	if !ok {
		has, err := s.db.Has(key)
		if err != nil {
			return nil, err
		}
		if !has {
			return nil, nil
		}
		if data, err = s.db.Get(key); err != nil {
			return nil, err
		}
		s.cache.Set(key, data)
	}

	// Decoding yields a fresh value, so callers never alias stored data.
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", slot.Hex(), err)
	}
	return &rec, nil
}

// Has reports whether a record exists for slot. Database errors are returned,
// not reported as absence.
func (s *Store) Has(slot common.Hash) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false, ErrClosed
	}
	key := slotKey(slot)
	if s.cache.Has(key) {
		return true, nil
	}
	return s.db.Has(key)
}

// Close gracefully closes the underlying database
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	s.cache.Reset()
	return s.db.Close()
}
