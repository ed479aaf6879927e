package chain

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/crytic/medusa-geth/common"
	"github.com/crytic/plum/utils"
	"github.com/fxamacker/cbor"
	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
	"golang.org/x/exp/slices"
)

// journalBucket is the bucket journal entries are stored in, keyed by transaction hash.
var journalBucket = []byte("transactions")

// JournalEntry describes the last known state of a submitted transaction.
type JournalEntry struct {
	// TxHash is the hex-encoded transaction hash.
	TxHash string

	// Session is the deployment session the transaction was submitted in.
	Session string

	// Description describes what the transaction does, such as the contract it deploys.
	Description string

	// State is the last confirmation state reached.
	State string

	// Error is the error the confirmation ended with, if any.
	Error string

	// Submitted is when the transaction was first recorded, in milliseconds since the epoch.
	Submitted int64

	// Updated is when the entry was last changed, in milliseconds since the epoch.
	Updated int64
}

// Journal is a persistent record of every transaction submitted during deployments and the state each one reached.
// Transactions which timed out can be looked up there and investigated out of band.
type Journal struct {
	// db is the underlying database.
	db *bbolt.DB

	// descriptions holds the descriptions of transactions that were not recorded yet.
	descriptions map[common.Hash]string

	// descriptionsLock guards descriptions.
	descriptionsLock sync.Mutex

	// now returns the current time.
	now func() time.Time
}

// OpenJournal opens the journal at the provided path, creating it if it does not exist.
func OpenJournal(path string) (*Journal, error) {
	if err := utils.MakeDirectory(filepath.Dir(path)); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "could not open transaction journal %s", path)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(journalBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.WithStack(err)
	}

	return &Journal{
		db:           db,
		descriptions: make(map[common.Hash]string),
		now:          time.Now,
	}, nil
}

// Close closes the journal.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Describe attaches a description to a transaction. It is stored with the next entry recorded for it.
func (j *Journal) Describe(txHash common.Hash, description string) {
	j.descriptionsLock.Lock()
	defer j.descriptionsLock.Unlock()
	j.descriptions[txHash] = description
}

// Record stores the state of a transaction, keeping the submission time and description of an existing entry.
func (j *Journal) Record(session string, event StateChangedEvent) error {
	j.descriptionsLock.Lock()
	description, hasDescription := j.descriptions[event.TxHash]
	if event.State.IsTerminal() {
		delete(j.descriptions, event.TxHash)
	}
	j.descriptionsLock.Unlock()

	now := j.now().UnixMilli()
	return j.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(journalBucket)
		key := event.TxHash.Bytes()

		entry := JournalEntry{
			TxHash:    event.TxHash.Hex(),
			Session:   session,
			Submitted: now,
		}
		if data := bucket.Get(key); data != nil {
			if err := cbor.Unmarshal(data, &entry); err != nil {
				return errors.Wrapf(err, "corrupt journal entry for transaction %s", event.TxHash.Hex())
			}
		}
		if hasDescription {
			entry.Description = description
		}
		entry.State = event.State.String()
		entry.Updated = now
		entry.Error = ""
		if event.Err != nil {
			entry.Error = event.Err.Error()
		}

		data, err := cbor.Marshal(entry, cbor.EncOptions{Canonical: true})
		if err != nil {
			return errors.WithStack(err)
		}
		return bucket.Put(key, data)
	})
}

// Subscribe records every state change published by the confirmer under the provided session.
func (j *Journal) Subscribe(confirmer *Confirmer, session string) {
	confirmer.StateChanged.Subscribe(func(event StateChangedEvent) error {
		return j.Record(session, event)
	})
}

// Get returns the entry of a transaction, if one was recorded.
func (j *Journal) Get(txHash common.Hash) (*JournalEntry, bool, error) {
	var entry *JournalEntry
	err := j.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(journalBucket).Get(txHash.Bytes())
		if data == nil {
			return nil
		}
		entry = &JournalEntry{}
		return cbor.Unmarshal(data, entry)
	})
	if err != nil {
		return nil, false, errors.WithStack(err)
	}
	return entry, entry != nil, nil
}

// Entries returns every recorded entry, oldest submission first.
func (j *Journal) Entries() ([]*JournalEntry, error) {
	entries := make([]*JournalEntry, 0)
	err := j.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(journalBucket).ForEach(func(_, data []byte) error {
			entry := &JournalEntry{}
			if err := cbor.Unmarshal(data, entry); err != nil {
				return err
			}
			entries = append(entries, entry)
			return nil
		})
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	slices.SortFunc(entries, func(a, b *JournalEntry) int {
		if a.Submitted != b.Submitted {
			if a.Submitted < b.Submitted {
				return -1
			}
			return 1
		}
		return strings.Compare(a.TxHash, b.TxHash)
	})
	return entries, nil
}
