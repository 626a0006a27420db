// SPDX-License-Identifier: MPL-2.0

// Package httpcache persists HTTP responses in a local badger store.
//
// Entries have two lifetimes: a freshness TTL, after which a cached
// response must be revalidated against the origin, and a longer stale
// window during which an expired entry may still be served when the origin
// is unreachable. Badger's own entry TTL covers the sum of both, so stale
// entries age out of the store without explicit sweeping.
package httpcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const (
	// DefaultStaleWindow is how long past freshness an entry remains
	// servable as stale.
	DefaultStaleWindow = 24 * time.Hour

	keyPrefix = "resp:"
)

// ErrClosed is returned when the store is used after Close.
var ErrClosed = errors.New("http cache is closed")

type (
	// Entry is a cached HTTP response.
	Entry struct {
		Status     int         `json:"status"`
		Header     http.Header `json:"header"`
		Body       []byte      `json:"body"`
		StoredAt   time.Time   `json:"stored_at"`
		FreshUntil time.Time   `json:"fresh_until"`
	}

	// Store is a badger-backed response cache. Safe for concurrent use.
	Store struct {
		db          *badger.DB
		ttl         time.Duration
		staleWindow time.Duration
	}

	// Options configures a Store.
	Options struct {
		// TTL is the freshness lifetime of entries.
		TTL time.Duration
		// StaleWindow extends entry retention past freshness for
		// serve-stale. Zero means DefaultStaleWindow.
		StaleWindow time.Duration
		// InMemory runs badger without disk persistence (tests).
		InMemory bool
	}
)

// Fresh reports whether the entry may be served without contacting the
// origin.
func (e *Entry) Fresh(now time.Time) bool {
	return now.Before(e.FreshUntil)
}

// Open opens (or creates) a cache store at dir.
func Open(dir string, opts Options) (*Store, error) {
	if opts.StaleWindow <= 0 {
		opts.StaleWindow = DefaultStaleWindow
	}

	var badgerOpts badger.Options
	if opts.InMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		badgerOpts = badger.DefaultOptions(dir)
	}
	badgerOpts = badgerOpts.WithLogger(nil)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open http cache at %s: %w", dir, err)
	}

	return &Store{db: db, ttl: opts.TTL, staleWindow: opts.StaleWindow}, nil
}

// Close releases the underlying store.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Key derives the cache key for a request. Query parameters are folded in
// sorted order so equivalent URLs share an entry.
func Key(method, rawURL string, params url.Values) string {
	h := sha256.New()
	h.Write([]byte(strings.ToUpper(method)))
	h.Write([]byte{0})
	h.Write([]byte(rawURL))
	if len(params) > 0 {
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			vals := append([]string(nil), params[k]...)
			sort.Strings(vals)
			for _, v := range vals {
				h.Write([]byte{0})
				h.Write([]byte(k))
				h.Write([]byte{'='})
				h.Write([]byte(v))
			}
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached entry for key, or nil when absent. Expired-but-
// stale entries are returned; callers decide via Entry.Fresh.
func (s *Store) Get(key string) (*Entry, error) {
	if s.db == nil {
		return nil, ErrClosed
	}

	var entry *Entry
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var e Entry
			if err := json.Unmarshal(val, &e); err != nil {
				return err
			}
			entry = &e
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read http cache entry: %w", err)
	}
	return entry, nil
}

// Put stores a response under key. The entry stays fresh for the store TTL
// and remains retrievable as stale for the stale window beyond that.
func (s *Store) Put(key string, status int, header http.Header, body []byte) error {
	if s.db == nil {
		return ErrClosed
	}

	now := time.Now()
	e := Entry{
		Status:     status,
		Header:     header,
		Body:       body,
		StoredAt:   now,
		FreshUntil: now.Add(s.ttl),
	}
	buf, err := json.Marshal(&e)
	if err != nil {
		return fmt.Errorf("failed to encode http cache entry: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(keyPrefix+key), buf).WithTTL(s.ttl + s.staleWindow)
		return txn.SetEntry(entry)
	})
}

// Delete removes the entry for key, if present.
func (s *Store) Delete(key string) error {
	if s.db == nil {
		return ErrClosed
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(keyPrefix + key))
	})
}
