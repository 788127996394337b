package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

var (
	ErrPreconditionFailed = errors.New("storage precondition failed")
	ErrViewClosed         = errors.New("storage view closed")
)

// Change describes a mutation made through another view (or by another
// process sharing the same file).
type Change struct {
	Keys []string
}

// Medium is a shared key-value store. Every consumer opens its own View; a
// write through one view is reported to all the other views, never to the
// writer itself.
type Medium struct {
	lock  sync.RWMutex
	data  map[string]string
	views map[*View]struct{}

	path     string // empty for in-memory media
	lastStat fileStamp
}

type fileStamp struct {
	modTime time.Time
	size    int64
}

func NewMemoryMedium() *Medium {
	return &Medium{
		data:  make(map[string]string),
		views: make(map[*View]struct{}),
	}
}

// NewFileMedium opens (or creates on first write) a JSON file backed medium.
func NewFileMedium(path string) (*Medium, error) {
	m := NewMemoryMedium()
	m.path = path

	data, stamp, err := readFile(path)
	if err != nil {
		return nil, fmt.Errorf("[NewFileMedium] %w", err)
	}
	m.data = data
	m.lastStat = stamp
	return m, nil
}

// Open attaches a new view to the medium.
func (m *Medium) Open() *View {
	v := &View{
		medium:   m,
		watchers: make(map[uint64]func(Change)),
	}
	m.lock.Lock()
	m.views[v] = struct{}{}
	m.lock.Unlock()
	return v
}

func (m *Medium) detach(v *View) {
	m.lock.Lock()
	delete(m.views, v)
	m.lock.Unlock()
}

func (m *Medium) get(key string) (string, bool) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	value, ok := m.data[key]
	return value, ok
}

func (m *Medium) getMany(keys []string) map[string]string {
	m.lock.RLock()
	defer m.lock.RUnlock()
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if value, ok := m.data[k]; ok {
			out[k] = value
		}
	}
	return out
}

func (m *Medium) apply(origin *View, b *Batch) error {
	m.lock.Lock()

	// Writes made by other processes since the last reload become the base
	// of this batch, so preconditions see them and the write keeps them.
	external, err := m.syncFileLocked()
	if err != nil {
		m.lock.Unlock()
		return fmt.Errorf("[Medium.apply] %w", err)
	}
	everyone := m.viewsExcept(nil)

	for k, want := range b.preconditions {
		if got := m.data[k]; got != want {
			m.lock.Unlock()
			deliverIfAny(everyone, external)
			return ErrPreconditionFailed
		}
	}

	next := make(map[string]string, len(m.data))
	for k, v := range m.data {
		next[k] = v
	}
	for _, o := range b.ops {
		if o.remove {
			delete(next, o.key)
		} else {
			next[o.key] = o.value
		}
	}

	changed := diffKeys(m.data, next)
	if len(changed) == 0 {
		m.lock.Unlock()
		deliverIfAny(everyone, external)
		return nil
	}

	if m.path != "" {
		stamp, err := writeFile(m.path, next)
		if err != nil {
			m.lock.Unlock()
			deliverIfAny(everyone, external)
			return fmt.Errorf("[Medium.apply] %w", err)
		}
		m.lastStat = stamp
	}
	m.data = next
	targets := m.viewsExcept(origin)
	m.lock.Unlock()

	deliverIfAny(everyone, external)
	deliver(targets, Change{Keys: changed})
	return nil
}

// syncFileLocked replaces the cached data with the file's contents when the
// file changed behind this medium, returning the keys that differ. It must
// be called with the lock held.
func (m *Medium) syncFileLocked() ([]string, error) {
	if m.path == "" {
		return nil, nil
	}
	data, stamp, err := readFile(m.path)
	if err != nil {
		return nil, err
	}
	if stamp == m.lastStat {
		return nil, nil
	}
	changed := diffKeys(m.data, data)
	m.data = data
	m.lastStat = stamp
	return changed, nil
}

func deliverIfAny(targets []*View, keys []string) {
	if len(keys) > 0 {
		deliver(targets, Change{Keys: keys})
	}
}

// viewsExcept must be called with the lock held.
func (m *Medium) viewsExcept(origin *View) []*View {
	targets := make([]*View, 0, len(m.views))
	for v := range m.views {
		if v != origin {
			targets = append(targets, v)
		}
	}
	return targets
}

func deliver(targets []*View, c Change) {
	for _, v := range targets {
		v.notify(c)
	}
}

func diffKeys(before, after map[string]string) []string {
	keys := make([]string, 0)
	for k, v := range before {
		if nv, ok := after[k]; !ok || nv != v {
			keys = append(keys, k)
		}
	}
	for k := range after {
		if _, ok := before[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func readFile(path string) (map[string]string, fileStamp, error) {
	data := make(map[string]string)
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return data, fileStamp{}, nil
	}
	if err != nil {
		return nil, fileStamp{}, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fileStamp{}, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fileStamp{}, fmt.Errorf("decoding %s: %w", path, err)
		}
	}
	return data, fileStamp{modTime: info.ModTime(), size: info.Size()}, nil
}

func writeFile(path string, data map[string]string) (fileStamp, error) {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fileStamp{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fileStamp{}, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".session-*")
	if err != nil {
		return fileStamp{}, err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fileStamp{}, err
	}
	if err := tmp.Close(); err != nil {
		return fileStamp{}, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fileStamp{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return fileStamp{}, err
	}
	return fileStamp{modTime: info.ModTime(), size: info.Size()}, nil
}
