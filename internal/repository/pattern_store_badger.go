package repository

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"

	"mindmatch/internal/domain"
	"mindmatch/internal/metrics"
)

// Claves: "tp\x00<user>\x00t\x00<topic>" y "tp\x00<user>\x00s\x00<sentiment>".
const (
	badgerPatternPrefix = "tp\x00"
	badgerSep           = "\x00"
	badgerTopicKind     = "t"
	badgerSentimentKind = "s"
)

// badgerCellStripes es la cantidad de mutex que reparten las celdas.
const badgerCellStripes = 256

// BadgerPatternStore hace read-modify-write por celda. Los escritores de una misma
// celda se turnan con un mutex por franja (hash de la clave), asi que la transaccion
// optimista de badger no pierde incrementos por conflicto. El reintento acotado queda
// para conflictos que no pasan por este proceso.
type BadgerPatternStore struct {
	db      *badger.DB
	retry   retryConfig
	stripes [badgerCellStripes]sync.Mutex
}

func NewBadgerPatternStore(db *badger.DB, attempts int) *BadgerPatternStore {
	cfg := defaultRetry
	if attempts > 0 {
		cfg.attempts = attempts
	}
	return &BadgerPatternStore{db: db, retry: cfg}
}

// OpenBadger abre la base en path; con path vacio usa modo en memoria.
func OpenBadger(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	return badger.Open(opts)
}

func badgerUserPrefix(userID string) []byte {
	return []byte(badgerPatternPrefix + userID + badgerSep)
}

func badgerCellKey(userID, kind, name string) []byte {
	return []byte(badgerPatternPrefix + userID + badgerSep + kind + badgerSep + name)
}

func (s *BadgerPatternStore) IncrementTopic(ctx context.Context, userID, topic string) error {
	if err := validateCell(userID, topic); err != nil {
		return err
	}
	if strings.Contains(userID, badgerSep) {
		return ErrReservedUserID
	}
	key := badgerCellKey(userID, badgerTopicKind, topic)
	return s.update(ctx, [][]byte{key}, func(txn *badger.Txn) error {
		return incrementBadgerCell(txn, key)
	})
}

func (s *BadgerPatternStore) IncrementSentiment(ctx context.Context, userID string, sentiment domain.Sentiment) error {
	if err := validateSentimentCell(userID, sentiment); err != nil {
		return err
	}
	if strings.Contains(userID, badgerSep) {
		return ErrReservedUserID
	}
	key := badgerCellKey(userID, badgerSentimentKind, string(sentiment))
	return s.update(ctx, [][]byte{key}, func(txn *badger.Txn) error {
		return incrementBadgerCell(txn, key)
	})
}

func (s *BadgerPatternStore) ApplyThought(ctx context.Context, userID string, topics []string, sentiment domain.Sentiment) error {
	if err := validateThought(userID, topics, sentiment); err != nil {
		return err
	}
	if strings.Contains(userID, badgerSep) {
		return ErrReservedUserID
	}
	keys := make([][]byte, 0, len(topics)+1)
	for _, t := range topics {
		keys = append(keys, badgerCellKey(userID, badgerTopicKind, t))
	}
	keys = append(keys, badgerCellKey(userID, badgerSentimentKind, string(sentiment)))
	return s.update(ctx, keys, func(txn *badger.Txn) error {
		for _, key := range keys {
			if err := incrementBadgerCell(txn, key); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BadgerPatternStore) update(ctx context.Context, keys [][]byte, fn func(txn *badger.Txn) error) error {
	unlock := s.lockCells(keys)
	defer unlock()
	return withRetry(ctx, s.retry, func(err error) bool {
		return errors.Is(err, badger.ErrConflict)
	}, func() {
		metrics.StoreConflictRetries.WithLabelValues("badger").Inc()
	}, func() error {
		return s.db.Update(fn)
	})
}

// lockCells toma las franjas de las claves en orden ascendente para evitar deadlocks
// entre pensamientos que comparten celdas.
func (s *BadgerPatternStore) lockCells(keys [][]byte) func() {
	idx := make([]int, 0, len(keys))
	for _, key := range keys {
		idx = append(idx, badgerStripe(key))
	}
	slices.Sort(idx)
	idx = slices.Compact(idx)
	for _, i := range idx {
		s.stripes[i].Lock()
	}
	return func() {
		for j := len(idx) - 1; j >= 0; j-- {
			s.stripes[idx[j]].Unlock()
		}
	}
}

func badgerStripe(key []byte) int {
	return int(xxhash.Sum64(key) % badgerCellStripes)
}

func incrementBadgerCell(txn *badger.Txn, key []byte) error {
	var current uint64
	item, err := txn.Get(key)
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
	case err != nil:
		return fmt.Errorf("read cell: %w", err)
	default:
		if err := item.Value(func(val []byte) error {
			if len(val) != 8 {
				return fmt.Errorf("corrupt cell value of %d bytes", len(val))
			}
			current = binary.BigEndian.Uint64(val)
			return nil
		}); err != nil {
			return err
		}
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, current+1)
	return txn.Set(key, buf)
}

func (s *BadgerPatternStore) GetPattern(_ context.Context, userID string) (domain.ThoughtPattern, error) {
	if userID == "" {
		return domain.ThoughtPattern{}, ErrEmptyUserID
	}
	pattern := domain.NewThoughtPattern()
	err := s.db.View(func(txn *badger.Txn) error {
		return scanBadgerCells(txn, badgerUserPrefix(userID), func(_, kind, name string, count int64) {
			applyBadgerCell(pattern, kind, name, count)
		})
	})
	if err != nil {
		return domain.ThoughtPattern{}, err
	}
	return pattern, nil
}

// ListCandidatePatterns lee todas las celdas dentro de una sola transaccion de lectura,
// asi que el pool es un snapshot consistente.
func (s *BadgerPatternStore) ListCandidatePatterns(_ context.Context, excludeUserID string) ([]domain.UserPattern, error) {
	patterns := make(map[string]domain.ThoughtPattern)
	err := s.db.View(func(txn *badger.Txn) error {
		return scanBadgerCells(txn, []byte(badgerPatternPrefix), func(userID, kind, name string, count int64) {
			if userID == excludeUserID {
				return
			}
			p, ok := patterns[userID]
			if !ok {
				p = domain.NewThoughtPattern()
				patterns[userID] = p
			}
			applyBadgerCell(p, kind, name, count)
		})
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.UserPattern, 0, len(patterns))
	for userID, p := range patterns {
		out = append(out, domain.UserPattern{UserID: userID, Pattern: p})
	}
	sortUserPatterns(out)
	return out, nil
}

func scanBadgerCells(txn *badger.Txn, prefix []byte, visit func(userID, kind, name string, count int64)) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		key := item.KeyCopy(nil)
		parts := bytes.SplitN(bytes.TrimPrefix(key, []byte(badgerPatternPrefix)), []byte(badgerSep), 3)
		if len(parts) != 3 {
			continue
		}
		var count uint64
		if err := item.Value(func(val []byte) error {
			if len(val) != 8 {
				return fmt.Errorf("corrupt cell %q", key)
			}
			count = binary.BigEndian.Uint64(val)
			return nil
		}); err != nil {
			return err
		}
		visit(string(parts[0]), string(parts[1]), string(parts[2]), int64(count))
	}
	return nil
}

func applyBadgerCell(p domain.ThoughtPattern, kind, name string, count int64) {
	switch kind {
	case badgerTopicKind:
		p.Topics[name] = count
	case badgerSentimentKind:
		p.Sentiments[domain.Sentiment(name)] = count
	}
}
