package eventbus

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// historyBucket is the single bbolt bucket DumpHistory writes into: one
// key per retained HistoryEntry, ordered by insertion.
var historyBucket = []byte("history")

// DumpHistory snapshots the current history ring into a bbolt file at
// path, one record per key, so the CLI's "bus history --dump" debug
// command leaves behind a durable, independently inspectable copy of what
// would otherwise be lost when the process exits (§4.5's history ring is
// in-memory only). Any existing bucket contents are replaced.
func (b *Bus) DumpHistory(path string) error {
	entries := b.History(0)

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return fmt.Errorf("eventbus: opening bbolt dump file: %w", err)
	}
	defer db.Close()

	return db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(historyBucket); err != nil && err != bbolt.ErrBucketNotFound {
			return err
		}
		bucket, err := tx.CreateBucket(historyBucket)
		if err != nil {
			return fmt.Errorf("eventbus: creating history bucket: %w", err)
		}
		for i, entry := range entries {
			data, err := json.Marshal(entry)
			if err != nil {
				return fmt.Errorf("eventbus: encoding history entry %d: %w", i, err)
			}
			key := []byte(fmt.Sprintf("%08d", i))
			if err := bucket.Put(key, data); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadHistoryDump reads back a history snapshot written by DumpHistory, in
// insertion order. Used by the CLI to print a previously dumped file
// without needing a live Bus.
func LoadHistoryDump(path string) ([]HistoryEntry, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("eventbus: opening bbolt dump file: %w", err)
	}
	defer db.Close()

	var out []HistoryEntry
	err = db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(historyBucket)
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(_, v []byte) error {
			var entry HistoryEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			out = append(out, entry)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
