package fetch

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	lru "github.com/hashicorp/golang-lru/v2"
)

// memEntries bounds the in-memory front of the cache
const memEntries = 16

// CacheKey identifies one cached index
type CacheKey struct {
	Repo      string
	Ref       string
	IndexPath string
}

func (k CacheKey) String() string {
	return fmt.Sprintf("%s@%s:%s", k.Repo, k.Ref, k.IndexPath)
}

func keyFilename(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:]) + ".json"
}

// CachedIndex is the last index body seen for a key.
// Records never expire; a configuration change simply selects another key.
type CachedIndex struct {
	Key         string    `json:"key"`
	ETag        string    `json:"etag,omitempty"`
	Body        []byte    `json:"body"`
	FetchedAt   time.Time `json:"fetchedAt"`   // when Body last changed
	ValidatedAt time.Time `json:"validatedAt"` // last successful 200 or 304
}

// CacheStore persists CachedIndex records on disk with an LRU in front
type CacheStore struct {
	dir string
	mem *lru.Cache[string, *CachedIndex]
}

// DefaultCacheDir returns $XDG_CACHE_HOME/folio/index
func DefaultCacheDir() string {
	return filepath.Join(xdg.CacheHome, "folio", "index")
}

// NewCacheStore creates a cache rooted at dir (DefaultCacheDir when empty)
func NewCacheStore(dir string) (*CacheStore, error) {
	if dir == "" {
		dir = DefaultCacheDir()
	}
	mem, err := lru.New[string, *CachedIndex](memEntries)
	if err != nil {
		return nil, err
	}
	return &CacheStore{dir: dir, mem: mem}, nil
}

// Dir returns the cache directory
func (s *CacheStore) Dir() string { return s.dir }

// Get returns the record for key, or nil if none is stored.
// An unreadable record is returned as an error; callers treat it as absent.
func (s *CacheStore) Get(key CacheKey) (*CachedIndex, error) {
	if e, ok := s.mem.Get(key.String()); ok {
		return e, nil
	}

	data, err := os.ReadFile(filepath.Join(s.dir, keyFilename(key.String())))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading index cache: %w", err)
	}

	var entry CachedIndex
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decoding index cache: %w", err)
	}
	// hash collisions or hand edits
	if entry.Key != key.String() {
		return nil, nil
	}

	s.mem.Add(key.String(), &entry)
	return &entry, nil
}

// Put stores a record, replacing the file atomically
func (s *CacheStore) Put(entry *CachedIndex) error {
	if entry == nil {
		return nil
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".index-*.tmp")
	if err != nil {
		return fmt.Errorf("writing index cache: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing index cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing index cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, keyFilename(entry.Key))); err != nil {
		return fmt.Errorf("writing index cache: %w", err)
	}

	s.mem.Add(entry.Key, entry)
	return nil
}
