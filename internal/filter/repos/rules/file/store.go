// Package file persists the rule set as a TOML document:
//
//	block_prefixes = ["广告"]
//	block_keywords = ["测试"]
//	block_suffixes = []
//
// The document is read through koanf and rewritten in full on every save.
package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/knadh/koanf/parsers/toml"
	kfile "github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/haukened/keyword-filter/internal/filter/domain"
	"github.com/haukened/keyword-filter/internal/filter/services/rulestore"
)

// Store implements rulestore.Backend on a single TOML file.
type Store struct {
	mu   sync.Mutex
	path string
}

// writeFileFn is a seam for tests.
var writeFileFn = writeFileAtomic

// New returns a Store for path. The file is created on the first save.
func New(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("rule file path must not be empty")
	}
	return &Store{path: path}, nil
}

// Load reads the three sequences. A missing file or key loads as empty.
func (s *Store) Load() (domain.RuleSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rs := domain.EmptyRuleSet()
	if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
		return rs, nil
	}

	k := koanf.New(".")
	if err := k.Load(kfile.Provider(s.path), toml.Parser()); err != nil {
		return rs, fmt.Errorf("error reading rule file %s: %w", s.path, err)
	}
	for _, c := range domain.RuleCategories {
		key := c.StorageKey()
		if !k.Exists(key) {
			continue
		}
		rules := k.Strings(key)
		if rules == nil {
			rules = []string{}
		}
		rs = rs.WithRules(c, rules)
	}
	return rs, nil
}

// Save rewrites the file with all three sequences.
func (s *Store) Save(rs domain.RuleSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := koanf.New(".")
	for _, c := range domain.RuleCategories {
		rules := rs.Rules(c)
		if rules == nil {
			rules = []string{}
		}
		if err := k.Set(c.StorageKey(), rules); err != nil {
			return err
		}
	}
	b, err := k.Marshal(toml.Parser())
	if err != nil {
		return fmt.Errorf("error encoding rule file: %w", err)
	}
	return writeFileFn(s.path, b)
}

// Close is a no-op; the file is not held open between operations.
func (s *Store) Close() error { return nil }

// writeFileAtomic writes data to a temp file in the target directory and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

var _ rulestore.Backend = (*Store)(nil)
