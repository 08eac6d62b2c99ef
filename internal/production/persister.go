// Package production provides the adapters a deployed runtime plugs into
// core machines: snapshot persisters, transition publishers and graph
// exporters.
package production

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/comalice/hfsm/internal/core"
)

// fileStore keeps one file per entity in dir.
type fileStore struct {
	dir       string
	ext       string
	marshal   func(any) ([]byte, error)
	unmarshal func([]byte, any) error
}

func newFileStore(dir, ext string, marshal func(any) ([]byte, error), unmarshal func([]byte, any) error) (fileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fileStore{}, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return fileStore{dir: dir, ext: ext, marshal: marshal, unmarshal: unmarshal}, nil
}

// ErrInvalidEntityID rejects ids that cannot name a file inside the store
// directory.
var ErrInvalidEntityID = errors.New("entity id is not a valid file name")

func (s fileStore) path(entityID string) (string, error) {
	if entityID == "" || entityID == "." || entityID == ".." ||
		strings.ContainsAny(entityID, `/\`) || strings.ContainsRune(entityID, os.PathSeparator) {
		return "", fmt.Errorf("%w: %q", ErrInvalidEntityID, entityID)
	}
	return filepath.Join(s.dir, entityID+s.ext), nil
}

func (s fileStore) save(snapshot core.Snapshot) error {
	fn, err := s.path(snapshot.EntityID)
	if err != nil {
		return err
	}
	data, err := s.marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	tmp := fn + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, fn); err != nil {
		return fmt.Errorf("rename %s: %w", fn, err)
	}
	return nil
}

func (s fileStore) load(entityID string) (core.Snapshot, error) {
	fn, err := s.path(entityID)
	if err != nil {
		return core.Snapshot{}, err
	}
	data, err := os.ReadFile(fn)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return core.Snapshot{}, fmt.Errorf("entity %q: %w", entityID, core.ErrNotFound)
		}
		return core.Snapshot{}, fmt.Errorf("read %s: %w", fn, err)
	}
	var snapshot core.Snapshot
	if err := s.unmarshal(data, &snapshot); err != nil {
		return core.Snapshot{}, fmt.Errorf("unmarshal %s: %w", fn, err)
	}
	snapshot.EntityID = entityID
	return snapshot, nil
}

func (s fileStore) delete(entityID string) error {
	fn, err := s.path(entityID)
	if err != nil {
		return err
	}
	if err := os.Remove(fn); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// JSONPersister stores snapshots as <dir>/<entity>.json.
type JSONPersister struct {
	store fileStore
}

func NewJSONPersister(dir string) (*JSONPersister, error) {
	marshal := func(v any) ([]byte, error) { return json.MarshalIndent(v, "", "  ") }
	store, err := newFileStore(dir, ".json", marshal, json.Unmarshal)
	if err != nil {
		return nil, err
	}
	return &JSONPersister{store: store}, nil
}

func (p *JSONPersister) Save(_ context.Context, snapshot core.Snapshot) error {
	return p.store.save(snapshot)
}

func (p *JSONPersister) Load(_ context.Context, entityID string) (core.Snapshot, error) {
	return p.store.load(entityID)
}

func (p *JSONPersister) Delete(_ context.Context, entityID string) error {
	return p.store.delete(entityID)
}

// YAMLPersister stores snapshots as <dir>/<entity>.yaml.
type YAMLPersister struct {
	store fileStore
}

func NewYAMLPersister(dir string) (*YAMLPersister, error) {
	store, err := newFileStore(dir, ".yaml", yaml.Marshal, yaml.Unmarshal)
	if err != nil {
		return nil, err
	}
	return &YAMLPersister{store: store}, nil
}

func (p *YAMLPersister) Save(_ context.Context, snapshot core.Snapshot) error {
	return p.store.save(snapshot)
}

func (p *YAMLPersister) Load(_ context.Context, entityID string) (core.Snapshot, error) {
	return p.store.load(entityID)
}

func (p *YAMLPersister) Delete(_ context.Context, entityID string) error {
	return p.store.delete(entityID)
}

// MemoryPersister keeps snapshots in process memory.
type MemoryPersister struct {
	mu        sync.RWMutex
	snapshots map[string]core.Snapshot
}

func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{snapshots: make(map[string]core.Snapshot)}
}

func (p *MemoryPersister) Save(_ context.Context, snapshot core.Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots[snapshot.EntityID] = snapshot
	return nil
}

func (p *MemoryPersister) Load(_ context.Context, entityID string) (core.Snapshot, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	snap, ok := p.snapshots[entityID]
	if !ok {
		return core.Snapshot{}, fmt.Errorf("entity %q: %w", entityID, core.ErrNotFound)
	}
	return snap, nil
}

func (p *MemoryPersister) Delete(_ context.Context, entityID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.snapshots, entityID)
	return nil
}

func (p *MemoryPersister) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.snapshots)
}
