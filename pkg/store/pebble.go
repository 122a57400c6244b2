package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"chatrelay/pkg/logger"
	"chatrelay/pkg/models"
)

var (
	db     *pebble.DB
	dbPath string

	// createMu serializes token record creation so that at most one record
	// exists per (room, contact) pair even under concurrent resolve calls.
	createMu sync.Mutex
)

// Key layout:
//   tok:pair:<roomID>:<contactID> -> TokenRecord JSON
//   tok:room:<token>              -> TokenRecord JSON (reverse index)
func pairKey(roomID, contactID string) []byte {
	return []byte(fmt.Sprintf("tok:pair:%s:%s", roomID, contactID))
}

func tokenKey(token string) []byte {
	return []byte("tok:room:" + token)
}

// Open opens (or creates) a Pebble database at the given path and keeps a
// global handle for simple usage in this package.
func Open(path string) error {
	var err error
	logger.Info("opening_token_store", "path", path)
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("token_store_open_failed", "path", path, "error", err)
		return err
	}
	dbPath = path
	logger.Info("token_store_opened", "path", path)
	return nil
}

// Close closes the opened pebble DB if present.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	logger.Info("token_store_closed")
	return nil
}

// Ready reports whether the store is opened and ready.
func Ready() bool {
	return db != nil
}

// FindTokenRecord looks up the record for a (room, contact) pair.
func FindTokenRecord(roomID, contactID string) (models.TokenRecord, bool, error) {
	var rec models.TokenRecord
	if db == nil {
		return rec, false, fmt.Errorf("token store not opened; call store.Open first")
	}
	opsTotal.WithLabelValues("find_pair").Inc()
	v, closer, err := db.Get(pairKey(roomID, contactID))
	if err == pebble.ErrNotFound {
		return rec, false, nil
	}
	if err != nil {
		return rec, false, err
	}
	defer closer.Close()
	if err := json.Unmarshal(v, &rec); err != nil {
		return rec, false, fmt.Errorf("corrupt token record for room %s: %w", roomID, err)
	}
	return rec, true, nil
}

// FindTokenRecordByToken reverse-looks-up a record by its token value.
func FindTokenRecordByToken(token string) (models.TokenRecord, bool, error) {
	var rec models.TokenRecord
	if db == nil {
		return rec, false, fmt.Errorf("token store not opened; call store.Open first")
	}
	opsTotal.WithLabelValues("find_token").Inc()
	v, closer, err := db.Get(tokenKey(token))
	if err == pebble.ErrNotFound {
		return rec, false, nil
	}
	if err != nil {
		return rec, false, err
	}
	defer closer.Close()
	if err := json.Unmarshal(v, &rec); err != nil {
		return rec, false, fmt.Errorf("corrupt token record for token %s: %w", token, err)
	}
	return rec, true, nil
}

// CreateTokenRecord inserts rec unless a record for its (room, contact)
// pair already exists. The check and insert run under a single lock, so
// concurrent callers racing on the same pair all observe the winner's
// record. Returns the stored record and whether this call created it.
func CreateTokenRecord(rec models.TokenRecord) (models.TokenRecord, bool, error) {
	if db == nil {
		return rec, false, fmt.Errorf("token store not opened; call store.Open first")
	}
	createMu.Lock()
	defer createMu.Unlock()

	existing, found, err := FindTokenRecord(rec.RoomID, rec.ContactID)
	if err != nil {
		return rec, false, err
	}
	if found {
		return existing, false, nil
	}

	if rec.CreatedTS == 0 {
		rec.CreatedTS = time.Now().UTC().UnixNano()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return rec, false, fmt.Errorf("failed to marshal token record: %w", err)
	}
	b := db.NewBatch()
	if err := b.Set(pairKey(rec.RoomID, rec.ContactID), data, nil); err != nil {
		_ = b.Close()
		return rec, false, err
	}
	if err := b.Set(tokenKey(rec.Token), data, nil); err != nil {
		_ = b.Close()
		return rec, false, err
	}
	if err := b.Commit(pebble.Sync); err != nil {
		logger.Error("token_record_create_failed", "room", rec.RoomID, "contact", rec.ContactID, "error", err)
		return rec, false, err
	}
	opsTotal.WithLabelValues("create").Inc()
	recordsCreated.Inc()
	logger.Info("token_record_created", "room", rec.RoomID, "contact", rec.ContactID)
	return rec, true, nil
}

// CountTokenRecords returns the number of stored token records.
func CountTokenRecords() (int, error) {
	if db == nil {
		return 0, fmt.Errorf("token store not opened; call store.Open first")
	}
	prefix := []byte("tok:pair:")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return 0, err
	}
	defer iter.Close()
	n := 0
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		n++
	}
	return n, nil
}
