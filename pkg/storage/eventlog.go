// Package storage provides the durable, append-only event journal. The
// journal is what an external indexer replays to rebuild the full order,
// trade and balance history, so records are keyed by sequence number and
// chained with a keccak hash to make truncation or reordering detectable.
package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
	"golang.org/x/crypto/sha3"

	"github.com/jwhyun/limitbook/pkg/events"
)

const (
	evtPrefix = "evt:"
	headKey   = "meta:head"
	seqKey    = "meta:seq"
)

// EventLog is a pebble-backed events.Sink.
type EventLog struct {
	db *pebble.DB

	lastSeq uint64
	head    [32]byte
}

// OpenEventLog opens (or creates) the journal and recovers the last
// sequence number and chain head.
func OpenEventLog(dbPath string) (*EventLog, error) {
	db, err := pebble.Open(dbPath, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open event log at %s: %w", dbPath, err)
	}

	l := &EventLog{db: db}

	if data, closer, err := db.Get([]byte(seqKey)); err == nil {
		l.lastSeq = binary.BigEndian.Uint64(data)
		closer.Close()
	} else if err != pebble.ErrNotFound {
		db.Close()
		return nil, err
	}
	if data, closer, err := db.Get([]byte(headKey)); err == nil {
		copy(l.head[:], data)
		closer.Close()
	} else if err != pebble.ErrNotFound {
		db.Close()
		return nil, err
	}

	return l, nil
}

func (l *EventLog) Close() error {
	return l.db.Close()
}

// LastSeq returns the sequence number of the newest record, 0 if empty.
func (l *EventLog) LastSeq() uint64 { return l.lastSeq }

// Head returns the current chain-head hash.
func (l *EventLog) Head() [32]byte { return l.head }

func eventKey(seq uint64) []byte {
	k := make([]byte, len(evtPrefix)+8)
	copy(k, evtPrefix)
	binary.BigEndian.PutUint64(k[len(evtPrefix):], seq)
	return k
}

// Publish appends one event. Events must arrive in Seq order with no
// gaps; anything else is a programming error upstream.
func (l *EventLog) Publish(e events.Event) error {
	if e.Seq != l.lastSeq+1 {
		return fmt.Errorf("event log: got seq %d, want %d", e.Seq, l.lastSeq+1)
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("event log: marshal: %w", err)
	}

	// head' = keccak(head || record)
	h := sha3.NewLegacyKeccak256()
	h.Write(l.head[:])
	h.Write(data)
	var newHead [32]byte
	h.Sum(newHead[:0])

	var seqBuf [8]byte
	binary.BigEndian.PutUint64(seqBuf[:], e.Seq)

	b := l.db.NewBatch()
	defer b.Close()
	if err := b.Set(eventKey(e.Seq), data, nil); err != nil {
		return err
	}
	if err := b.Set([]byte(seqKey), seqBuf[:], nil); err != nil {
		return err
	}
	if err := b.Set([]byte(headKey), newHead[:], nil); err != nil {
		return err
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("event log: commit seq %d: %w", e.Seq, err)
	}

	l.lastSeq = e.Seq
	l.head = newHead
	return nil
}

// Replay streams events with Seq >= from, in order. The payload comes
// back as raw JSON in Event.Data (a map after unmarshalling); indexers
// that want typed payloads re-decode by Kind.
func (l *EventLog) Replay(from uint64, fn func(events.Event) error) error {
	if from == 0 {
		from = 1
	}
	iter, err := l.db.NewIter(&pebble.IterOptions{
		LowerBound: eventKey(from),
		UpperBound: eventKey(^uint64(0)),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		var e events.Event
		if err := json.Unmarshal(iter.Value(), &e); err != nil {
			return fmt.Errorf("event log: corrupt record at %x: %w", iter.Key(), err)
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return iter.Error()
}

var _ events.Sink = (*EventLog)(nil)
