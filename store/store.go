package store

import (
	"encoding/binary"
	"path/filepath"

	"github.com/canopy-network/bftsim/lib"
	"github.com/dgraph-io/badger/v4"
)

/*
	The Ledger is the durable record of every batch a node finalized.

	Batches are written under a length prefixed key of (prefix, node, epoch) where the epoch is big endian, so a prefix
	iteration over a node returns its batches in ascending epoch order. Values are the canonical batch encoding.
	Only finalized batches are recorded: queues and in flight messages are never persisted.
*/

var batchPrefix = []byte("b/") // prefix designated for finalized batches

// StoredBatch is a finalized batch as read back from the ledger
type StoredBatch struct {
	Epoch         uint64   `json:"epoch"`
	Contributions [][]byte `json:"contributions"`
}

// Ledger is a badger backed store of finalized batches keyed by node and epoch
type Ledger struct {
	db  *badger.DB
	log lib.LoggerI
}

// New() creates a new Ledger either in memory or at DataDirPath/DBName
func New(config lib.StoreConfig, log lib.LoggerI) (*Ledger, lib.ErrorI) {
	if config.InMemory {
		return NewInMemory(log)
	}
	return NewLedger(filepath.Join(config.DataDirPath, config.DBName), log)
}

// NewLedger() opens (or creates) an on disk ledger
func NewLedger(path string, log lib.LoggerI) (*Ledger, lib.ErrorI) {
	return open(badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR), log)
}

// NewInMemory() creates a ledger that is lost on Close(), only for testing
func NewInMemory(log lib.LoggerI) (*Ledger, lib.ErrorI) {
	return open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR), log)
}

func open(opts badger.Options, log lib.LoggerI) (*Ledger, lib.ErrorI) {
	if log == nil {
		log = lib.NewNullLogger()
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, ErrOpenDB(err)
	}
	return &Ledger{db: db, log: log.Named("store")}, nil
}

// SaveBatch() records one finalized batch of a node, overwriting any batch stored for the same epoch
func (l *Ledger) SaveBatch(node string, epoch uint64, contributions [][]byte) lib.ErrorI {
	err := l.db.Update(func(txn *badger.Txn) error {
		return txn.Set(batchKey(node, epoch), lib.EncodeBatch(epoch, contributions))
	})
	if err != nil {
		return ErrStoreSet(err)
	}
	return nil
}

// SaveBatches() records every batch of a node in a single write batch
func SaveBatches[C lib.Contribution](l *Ledger, node string, batches []lib.Batch[C]) lib.ErrorI {
	wb := l.db.NewWriteBatch()
	defer wb.Cancel()
	for _, b := range batches {
		if err := wb.Set(batchKey(node, b.Epoch), b.Encode()); err != nil {
			return ErrStoreSet(err)
		}
	}
	if err := wb.Flush(); err != nil {
		return ErrStoreSet(err)
	}
	l.log.Debugf("Saved %d batches of %s", len(batches), node)
	return nil
}

// GetBatch() returns the batch a node finalized for the epoch, ok is false if there is none
func (l *Ledger) GetBatch(node string, epoch uint64) (batch StoredBatch, ok bool, err lib.ErrorI) {
	e := l.db.View(func(txn *badger.Txn) error {
		item, er := txn.Get(batchKey(node, epoch))
		if er != nil {
			if er == badger.ErrKeyNotFound {
				return nil
			}
			return ErrStoreGet(er)
		}
		value, er := item.ValueCopy(nil)
		if er != nil {
			return ErrStoreGet(er)
		}
		batch, err = decodeStoredBatch(node, epoch, value)
		ok = err == nil
		return nil
	})
	if e != nil {
		return StoredBatch{}, false, asErrorI(e, ErrStoreGet)
	}
	return
}

// LoadBatches() returns every batch of a node in ascending epoch order
func (l *Ledger) LoadBatches(node string) (batches []StoredBatch, err lib.ErrorI) {
	err = l.iterate(batchNodePrefix(node), true, func(epoch uint64, value []byte) lib.ErrorI {
		batch, e := decodeStoredBatch(node, epoch, value)
		if e != nil {
			return e
		}
		batches = append(batches, batch)
		return nil
	})
	return
}

// Epochs() returns the epochs a node has a batch for in ascending order
func (l *Ledger) Epochs(node string) (epochs []uint64, err lib.ErrorI) {
	err = l.iterate(batchNodePrefix(node), false, func(epoch uint64, _ []byte) lib.ErrorI {
		epochs = append(epochs, epoch)
		return nil
	})
	return
}

// Close() flushes and closes the underlying database
func (l *Ledger) Close() lib.ErrorI {
	if err := l.db.Close(); err != nil {
		return ErrCloseDB(err)
	}
	return nil
}

// iterate() calls the callback for every batch key under the prefix, values are only read when requested
func (l *Ledger) iterate(prefix []byte, values bool, callback func(epoch uint64, value []byte) lib.ErrorI) lib.ErrorI {
	err := l.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: values})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			_, epoch, e := parseBatchKey(item.KeyCopy(nil))
			if e != nil {
				return e
			}
			var value []byte
			if values {
				var err error
				if value, err = item.ValueCopy(nil); err != nil {
					return ErrStoreIter(err)
				}
			}
			if e = callback(epoch, value); e != nil {
				return e
			}
		}
		return nil
	})
	if err != nil {
		return asErrorI(err, ErrStoreIter)
	}
	return nil
}

// batchKey() returns the key of a node's batch for an epoch
func batchKey(node string, epoch uint64) []byte {
	return lib.JoinLenPrefix(batchPrefix, []byte(node), binary.BigEndian.AppendUint64(nil, epoch))
}

// batchNodePrefix() returns the key prefix of every batch of a node
func batchNodePrefix(node string) []byte { return lib.JoinLenPrefix(batchPrefix, []byte(node)) }

// parseBatchKey() is the inverse of batchKey()
func parseBatchKey(key []byte) (node string, epoch uint64, err lib.ErrorI) {
	segments, err := lib.DecodeLengthPrefixed(key)
	if err != nil || len(segments) != 3 || len(segments[2]) != 8 {
		return "", 0, ErrInvalidDBKey()
	}
	return string(segments[1]), binary.BigEndian.Uint64(segments[2]), nil
}

// decodeStoredBatch() decodes a value and checks it belongs to the epoch of its key
func decodeStoredBatch(node string, epoch uint64, value []byte) (StoredBatch, lib.ErrorI) {
	e, contributions, err := lib.DecodeBatch(value)
	if err != nil {
		return StoredBatch{}, ErrCorruptedBatch(node, epoch, err)
	}
	if e != epoch {
		return StoredBatch{}, ErrCorruptedBatch(node, epoch, lib.ErrInvalidArgument())
	}
	return StoredBatch{Epoch: epoch, Contributions: contributions}, nil
}

// asErrorI() keeps an ErrorI returned from inside a badger transaction or wraps a badger error
func asErrorI(err error, wrap func(error) lib.ErrorI) lib.ErrorI {
	if e, ok := err.(lib.ErrorI); ok {
		return e
	}
	return wrap(err)
}
