package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketBlocks             = []byte("blocks_by_hash")
	bucketAccounts           = []byte("account_info")
	bucketPending            = []byte("pending_by_dest_hash")
	bucketConfirmationHeight = []byte("confirmation_height")
	bucketFrontiers          = []byte("frontiers_by_head")
	bucketUnchecked          = []byte("unchecked_by_dep_hash")
	bucketOnlineWeight       = []byte("online_weight_by_time")
	bucketPeers              = []byte("peers_by_endpoint")
	bucketPruned             = []byte("pruned_by_hash")
	bucketFinalVotes         = []byte("final_vote_by_root")
	bucketMeta               = []byte("meta")
)

var allBuckets = [][]byte{
	bucketBlocks, bucketAccounts, bucketPending, bucketConfirmationHeight,
	bucketFrontiers, bucketUnchecked, bucketOnlineWeight, bucketPeers,
	bucketPruned, bucketFinalVotes, bucketMeta,
}

// Store wraps the bbolt environment behind the ledger's transactional
// table interface. bbolt already enforces one writer; the write token on
// top makes the single-writer discipline explicit across the logical
// writers (block processor, confirmation processing, maintenance) and
// observable by tests.
type Store struct {
	db         *bolt.DB
	writeToken chan struct{}
}

func Open(datadir string) (*Store, error) {
	if datadir == "" {
		return nil, fmt.Errorf("datadir required")
	}
	if err := os.MkdirAll(datadir, 0o700); err != nil {
		return nil, errors.Wrap(err, "create datadir")
	}
	path := filepath.Join(datadir, "ledger.db")
	bdb, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "open bbolt")
	}
	s := &Store{db: bdb, writeToken: make(chan struct{}, 1)}
	s.writeToken <- struct{}{}
	if err := bdb.Update(func(tx *bolt.Tx) error {
		for _, b := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return errors.Wrapf(err, "create bucket %s", string(b))
			}
		}
		return nil
	}); err != nil {
		_ = bdb.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Txn is one read or write transaction. Reads snapshot and run concurrently
// with the writer; at most one write transaction is outstanding.
type Txn struct {
	tx    *bolt.Tx
	write bool
	store *Store
	done  bool
}

func (s *Store) BeginRead() (*Txn, error) {
	tx, err := s.db.Begin(false)
	if err != nil {
		return nil, errors.Wrap(err, "begin read")
	}
	return &Txn{tx: tx, store: s}, nil
}

// BeginWrite blocks until the write token is available.
func (s *Store) BeginWrite() (*Txn, error) {
	<-s.writeToken
	tx, err := s.db.Begin(true)
	if err != nil {
		s.writeToken <- struct{}{}
		return nil, errors.Wrap(err, "begin write")
	}
	return &Txn{tx: tx, write: true, store: s}, nil
}

func (t *Txn) IsWrite() bool { return t.write }

// Commit commits a write transaction; for reads it releases the snapshot.
func (t *Txn) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	if !t.write {
		return t.tx.Rollback()
	}
	err := t.tx.Commit()
	t.store.writeToken <- struct{}{}
	if err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}

// Discard rolls the transaction back. Safe to call after Commit.
func (t *Txn) Discard() {
	if t.done {
		return
	}
	t.done = true
	_ = t.tx.Rollback()
	if t.write {
		t.store.writeToken <- struct{}{}
	}
}

func (t *Txn) bucket(name []byte) *bolt.Bucket {
	return t.tx.Bucket(name)
}

func count(t *Txn, name []byte) uint64 {
	var n uint64
	c := t.bucket(name).Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		n++
	}
	return n
}
