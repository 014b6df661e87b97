// Package snapshot persists one timeline document per repository.
package snapshot

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/huangsam/issuetrend/internal/contract"
	"github.com/huangsam/issuetrend/schema"
)

const documentExt = ".json"

// FileStore keeps documents under <root>/<owner>/<name>.json.
type FileStore struct {
	root string
	now  func() time.Time
}

var _ contract.SnapshotStore = &FileStore{} // Compile-time check

// NewFileStore returns a store rooted at dir. The directory is created on first save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{root: dir, now: time.Now}
}

// Path returns the document path of a repository.
func (s *FileStore) Path(repo schema.RepoID) string {
	return filepath.Join(s.root, repo.Owner, repo.Name+documentExt)
}

// resolve returns the document path of a repository whose name is safe to use on disk.
func (s *FileStore) resolve(repo schema.RepoID) (string, error) {
	if err := repo.Validate(); err != nil {
		return "", err
	}
	return s.Path(repo), nil
}

// Load reads the stored document. A missing file yields (nil, nil).
// Unparseable or misordered documents fail with ErrDataCorruption.
func (s *FileStore) Load(repo schema.RepoID) (*schema.PersistedTimeline, error) {
	path, err := s.resolve(repo)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	doc, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Decode parses and validates a document.
func Decode(data []byte) (*schema.PersistedTimeline, error) {
	var doc schema.PersistedTimeline
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("malformed document: %v: %w", err, schema.ErrDataCorruption)
	}
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid timeline: %v: %w", err, schema.ErrDataCorruption)
	}
	if doc.Labels == nil {
		doc.Labels = []string{}
	}
	if doc.Timeline == nil {
		doc.Timeline = []schema.DayBucket{}
	}
	for i := range doc.Timeline {
		doc.Timeline[i].Normalize()
	}
	return &doc, nil
}

// Encode renders a document as indented JSON with a trailing newline.
func Encode(doc schema.PersistedTimeline) ([]byte, error) {
	if doc.Labels == nil {
		doc.Labels = []string{}
	}
	if doc.Timeline == nil {
		doc.Timeline = []schema.DayBucket{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Save writes the document to a temporary file and renames it into place.
func (s *FileStore) Save(repo schema.RepoID, doc schema.PersistedTimeline) error {
	for i := range doc.Timeline {
		doc.Timeline[i].Normalize()
	}
	data, err := Encode(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", repo, err)
	}

	path, err := s.resolve(repo)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	file, err := os.CreateTemp(dir, "."+repo.Name+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpFile := file.Name()

	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpFile)
		return fmt.Errorf("write %s: %w", tmpFile, err)
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpFile)
		return fmt.Errorf("sync %s: %w", tmpFile, err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpFile)
		return fmt.Errorf("close %s: %w", tmpFile, err)
	}
	if err := os.Chmod(tmpFile, 0o644); err != nil {
		_ = os.Remove(tmpFile)
		return fmt.Errorf("chmod %s: %w", tmpFile, err)
	}
	if err := os.Rename(tmpFile, path); err != nil {
		_ = os.Remove(tmpFile)
		return fmt.Errorf("rename %s: %w", tmpFile, err)
	}
	return nil
}

// Quarantine renames the document to <name>.json.corrupt-<unix> and returns the new path.
func (s *FileStore) Quarantine(repo schema.RepoID) (string, error) {
	path, err := s.resolve(repo)
	if err != nil {
		return "", err
	}
	target := path + ".corrupt-" + strconv.FormatInt(s.now().Unix(), 10)
	if err := os.Rename(path, target); err != nil {
		return "", fmt.Errorf("quarantine %s: %w", path, err)
	}
	return target, nil
}

// List returns every stored repository sorted by owner/name.
func (s *FileStore) List() ([]schema.RepoID, error) {
	owners, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []schema.RepoID{}, nil
		}
		return nil, fmt.Errorf("list %s: %w", s.root, err)
	}

	repos := []schema.RepoID{}
	for _, owner := range owners {
		if !owner.IsDir() || strings.HasPrefix(owner.Name(), ".") {
			continue
		}
		entries, err := os.ReadDir(filepath.Join(s.root, owner.Name()))
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", owner.Name(), err)
		}
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, documentExt) {
				continue
			}
			repos = append(repos, schema.RepoID{Owner: owner.Name(), Name: strings.TrimSuffix(name, documentExt)})
		}
	}
	sort.Slice(repos, func(i, j int) bool {
		return repos[i].String() < repos[j].String()
	})
	return repos, nil
}
