package bolt

import (
	"encoding/binary"
	"errors"
	"time"

	bbolt "go.etcd.io/bbolt"
	bberrors "go.etcd.io/bbolt/errors"

	"github.com/haukened/keyword-filter/internal/filter/common/clock"
	"github.com/haukened/keyword-filter/internal/filter/domain"
	"github.com/haukened/keyword-filter/internal/filter/services/rulestore"
)

var (
	bucketMeta = []byte("meta")
	keyVersion = []byte("version")
	keyUpdated = []byte("updated")
)

// ruleBuckets returns one bucket name per category, in precedence order.
func ruleBuckets() [][]byte {
	out := make([][]byte, 0, len(domain.RuleCategories))
	for _, c := range domain.RuleCategories {
		out = append(out, []byte(c.StorageKey()))
	}
	return out
}

// Store implements rulestore.Backend using bbolt.
// Each category lives in its own bucket keyed by the rule's 8-byte big-endian
// position, so cursor order is rule order.
type Store struct {
	db    *bbolt.DB
	clock clock.Clock
}

// Stats captures per-category counts and save metadata.
type Stats struct {
	Prefixes    uint64
	Keywords    uint64
	Suffixes    uint64
	Version     uint64 // number of saves since the file was created
	UpdatedUnix int64  // seconds since epoch of the last save, 0 if never saved
}

// bucketCreator is the subset of *bbolt.Tx used to create buckets.
type bucketCreator interface {
	CreateBucketIfNotExists(name []byte) (*bbolt.Bucket, error)
}

// bucketDeleter is the subset of *bbolt.Tx used to drop buckets.
type bucketDeleter interface {
	DeleteBucket(name []byte) error
}

type bucketDeleterFunc func(name []byte) error

func (f bucketDeleterFunc) DeleteBucket(name []byte) error { return f(name) }

// ensureBucketsFn is a seam for tests.
var ensureBucketsFn = func(tx bucketCreator) error { return ensureBuckets(tx) }

func ensureBuckets(tx bucketCreator) error {
	for _, name := range append(ruleBuckets(), bucketMeta) {
		if _, err := tx.CreateBucketIfNotExists(name); err != nil {
			return err
		}
	}
	return nil
}

// deleteBuckets drops the named buckets, ignoring ones that do not exist.
func deleteBuckets(tx bucketDeleter, names ...[]byte) error {
	for _, name := range names {
		if err := tx.DeleteBucket(name); err != nil && !errors.Is(err, bberrors.ErrBucketNotFound) {
			return err
		}
	}
	return nil
}

// New opens (or creates) a Bolt database at path and ensures buckets exist.
// A nil clk uses the wall clock.
func New(path string, clk clock.Clock) (*Store, error) {
	if clk == nil {
		clk = clock.RealClock{}
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		return ensureBucketsFn(tx)
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, clock: clk}, nil
}

// Load reads all three sequences. Missing buckets load as empty sequences.
func (s *Store) Load() (domain.RuleSet, error) {
	rs := domain.EmptyRuleSet()
	err := s.db.View(func(tx *bbolt.Tx) error {
		for _, c := range domain.RuleCategories {
			b := tx.Bucket([]byte(c.StorageKey()))
			if b == nil {
				continue
			}
			rules := make([]string, 0, b.Stats().KeyN)
			cur := b.Cursor()
			for k, v := cur.First(); k != nil; k, v = cur.Next() {
				rules = append(rules, string(v))
			}
			rs = rs.WithRules(c, rules)
		}
		return nil
	})
	return rs, err
}

// Save replaces all three sequences and bumps the save metadata in one transaction.
func (s *Store) Save(rs domain.RuleSet) error {
	now := s.clock.Now().Unix()
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := deleteBuckets(tx, ruleBuckets()...); err != nil {
			return err
		}
		if err := ensureBucketsFn(tx); err != nil {
			return err
		}
		for _, c := range domain.RuleCategories {
			b := tx.Bucket([]byte(c.StorageKey()))
			for i, r := range rs.Rules(c) {
				if err := b.Put(positionKey(uint64(i)), []byte(r)); err != nil {
					return err
				}
			}
		}
		meta := tx.Bucket(bucketMeta)
		var version uint64
		if v := meta.Get(keyVersion); len(v) == 8 {
			version = binary.BigEndian.Uint64(v)
		}
		if err := meta.Put(keyVersion, positionKey(version+1)); err != nil {
			return err
		}
		return meta.Put(keyUpdated, positionKey(uint64(now)))
	})
}

// Stats reads per-category counts and save metadata in a read-only transaction.
func (s *Store) Stats() Stats {
	st := Stats{}
	_ = s.db.View(func(tx *bbolt.Tx) error {
		counts := make([]uint64, 0, len(domain.RuleCategories))
		for _, name := range ruleBuckets() {
			var n uint64
			if b := tx.Bucket(name); b != nil {
				n = uint64(b.Stats().KeyN)
			}
			counts = append(counts, n)
		}
		st.Prefixes, st.Keywords, st.Suffixes = counts[0], counts[1], counts[2]
		if b := tx.Bucket(bucketMeta); b != nil {
			if v := b.Get(keyVersion); len(v) == 8 {
				st.Version = binary.BigEndian.Uint64(v)
			}
			if v := b.Get(keyUpdated); len(v) == 8 {
				st.UpdatedUnix = int64(binary.BigEndian.Uint64(v))
			}
		}
		return nil
	})
	return st
}

// Close releases the database file lock.
func (s *Store) Close() error { return s.db.Close() }

func positionKey(i uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, i)
	return buf
}

var _ rulestore.Backend = (*Store)(nil)
