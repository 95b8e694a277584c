// Package kvstore is the embedded ordered key-value store holding post
// content, metadata and the secondary indices. All eight logical tables live
// in one badger instance, separated by key prefixes, so a single write
// transaction can span a content table and its indices.
package kvstore

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/ident"
)

// Logical table names. These double as the names the table browser exposes.
const (
	TablePosts           = "posts"
	TableMetadata        = "metadata"
	TablePendingPosts    = "pending_posts"
	TablePendingMetadata = "pending_metadata"
	TableTagIndex        = "tag_index"
	TableKeywordIndex    = "search_keyword_index"
	TableChronoIndex     = "chronological_index"
	TableAvailableTags   = "available_tags"
)

type DB struct {
	badger *badger.DB
	log    *logrus.Logger
}

// Open opens (or creates) the content database at path.
func Open(path string, logger *logrus.Logger) (*DB, error) {
	if logger == nil {
		logger = logrus.New()
	}
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open content db: %w", err)
	}
	return &DB{badger: db, log: logger}, nil
}

// OpenInMemory opens a throwaway in-memory instance, used by tests.
func OpenInMemory(logger *logrus.Logger) (*DB, error) {
	if logger == nil {
		logger = logrus.New()
	}
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open in-memory content db: %w", err)
	}
	return &DB{badger: db, log: logger}, nil
}

func (d *DB) Close() error {
	return d.badger.Close()
}

// tablePrefix returns the key prefix for a logical table. The trailing slash
// keeps tables with a common name prefix (posts / pending_posts) disjoint.
func tablePrefix(table string) []byte {
	return []byte(table + "/")
}

func rowKey(table string, id ident.ID) []byte {
	return append(tablePrefix(table), id[:]...)
}

// invertTimestamp encodes a creation time so that ascending key order yields
// descending chronological order. Ties on equal seconds fall through to the
// identifier bytes appended after it.
func invertTimestamp(t time.Time) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(math.MaxInt64-t.Unix()))
	return buf
}
