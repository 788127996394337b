package storage_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jrsteele09/go-learnhub-client/storage"
	"github.com/stretchr/testify/require"
)

type changeRecorder struct {
	lock    sync.Mutex
	changes []storage.Change
}

func (r *changeRecorder) record(c storage.Change) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.changes = append(r.changes, c)
}

func (r *changeRecorder) all() []storage.Change {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]storage.Change(nil), r.changes...)
}

func TestApply_NotifiesOtherViewsOnly(t *testing.T) {
	m := storage.NewMemoryMedium()
	writer := m.Open()
	reader := m.Open()

	var writerSaw, readerSaw changeRecorder
	writer.Watch(writerSaw.record)
	reader.Watch(readerSaw.record)

	err := writer.Apply(storage.NewBatch().Set("a", "1").Set("b", "2"))
	require.NoError(t, err)

	require.Empty(t, writerSaw.all(), "the writer must not see its own change")
	require.Equal(t, []storage.Change{{Keys: []string{"a", "b"}}}, readerSaw.all())

	value, ok := reader.Get("a")
	require.True(t, ok)
	require.Equal(t, "1", value)
}

func TestApply_NoopWritesAreSilent(t *testing.T) {
	m := storage.NewMemoryMedium()
	writer := m.Open()
	reader := m.Open()
	var saw changeRecorder
	reader.Watch(saw.record)

	require.NoError(t, writer.Apply(storage.NewBatch().Remove("missing")))
	require.NoError(t, writer.Apply(storage.NewBatch().Set("k", "v")))
	require.NoError(t, writer.Apply(storage.NewBatch().Set("k", "v")))

	require.Len(t, saw.all(), 1)
}

func TestApply_Precondition(t *testing.T) {
	m := storage.NewMemoryMedium()
	v := m.Open()
	require.NoError(t, v.Apply(storage.NewBatch().Set("token", "old")))

	err := v.Apply(storage.NewBatch().IfEquals("token", "other").Remove("token"))
	require.ErrorIs(t, err, storage.ErrPreconditionFailed)
	_, ok := v.Get("token")
	require.True(t, ok, "failed batch must not write")

	require.NoError(t, v.Apply(storage.NewBatch().IfEquals("token", "old").Remove("token")))
	_, ok = v.Get("token")
	require.False(t, ok)
}

func TestWatch_CancelAndClose(t *testing.T) {
	m := storage.NewMemoryMedium()
	writer := m.Open()
	reader := m.Open()

	var saw changeRecorder
	cancel := reader.Watch(saw.record)
	cancel()
	cancel()

	require.NoError(t, writer.Apply(storage.NewBatch().Set("a", "1")))
	require.Empty(t, saw.all())

	reader.Close()
	require.ErrorIs(t, reader.Apply(storage.NewBatch().Set("a", "2")), storage.ErrViewClosed)
}

func TestFileMedium_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")

	first, err := storage.NewFileMedium(path)
	require.NoError(t, err)
	require.NoError(t, first.Open().Apply(storage.NewBatch().Set("accessToken", "abc")))

	second, err := storage.NewFileMedium(path)
	require.NoError(t, err)
	value, ok := second.Open().Get("accessToken")
	require.True(t, ok)
	require.Equal(t, "abc", value)
}

func TestFileMedium_ReloadSeesOtherProcessWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	ours, err := storage.NewFileMedium(path)
	require.NoError(t, err)
	view := ours.Open()
	var saw changeRecorder
	view.Watch(saw.record)

	// Nothing changed on disk yet.
	require.NoError(t, ours.Reload())
	require.Empty(t, saw.all())

	// Another process writes the file.
	require.NoError(t, os.WriteFile(path, []byte(`{"refreshToken":"r1"}`), 0o600))
	require.NoError(t, ours.Reload())

	require.Equal(t, []storage.Change{{Keys: []string{"refreshToken"}}}, saw.all())
	value, _ := view.Get("refreshToken")
	require.Equal(t, "r1", value)
}

func TestFileMedium_WriteKeepsOtherProcessWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	ours, err := storage.NewFileMedium(path)
	require.NoError(t, err)
	theirs, err := storage.NewFileMedium(path)
	require.NoError(t, err)
	view := ours.Open()
	var saw changeRecorder
	view.Watch(saw.record)

	require.NoError(t, theirs.Open().Apply(storage.NewBatch().Set("accessToken", "from-other-process")))
	require.NoError(t, view.Apply(storage.NewBatch().Set("refreshToken", "r1")))

	reread, err := storage.NewFileMedium(path)
	require.NoError(t, err)
	got := reread.Open().GetMany("accessToken", "refreshToken")
	require.Equal(t, map[string]string{"accessToken": "from-other-process", "refreshToken": "r1"}, got)
	require.Equal(t, []storage.Change{{Keys: []string{"accessToken"}}}, saw.all(), "the writer learns about the other process's write")
}

func TestFileMedium_PreconditionSeesOtherProcessWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	ours, err := storage.NewFileMedium(path)
	require.NoError(t, err)
	view := ours.Open()
	require.NoError(t, view.Apply(storage.NewBatch().Set("refreshToken", "r1")))

	theirs, err := storage.NewFileMedium(path)
	require.NoError(t, err)
	require.NoError(t, theirs.Open().Apply(storage.NewBatch().Set("refreshToken", "r2-rotated")))

	err = view.Apply(storage.NewBatch().IfEquals("refreshToken", "r1").Remove("refreshToken"))
	require.ErrorIs(t, err, storage.ErrPreconditionFailed)

	value, ok := view.Get("refreshToken")
	require.True(t, ok)
	require.Equal(t, "r2-rotated", value)
}

func TestFileMedium_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := storage.NewFileMedium(path)
	require.Error(t, err)
}

func TestGetMany(t *testing.T) {
	v := storage.NewMemoryMedium().Open()
	require.NoError(t, v.Apply(storage.NewBatch().Set("a", "1").Set("b", "2")))

	require.Equal(t, map[string]string{"a": "1"}, v.GetMany("a", "missing"))
}
