package receipt

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kennyg/folio/internal/artifact"
)

func entry(id, dest string) artifact.InstalledEntry {
	return artifact.InstalledEntry{ID: id, Kind: artifact.KindPrompt, SourcePath: "prompts/" + id + ".prompt.md", DestPath: dest}
}

func TestRead_NoWorkspaceOrNoFile(t *testing.T) {
	r, err := New("", nil).Read()
	assert.NoError(t, err)
	assert.Nil(t, r)

	r, err = New(t.TempDir(), nil).Read()
	assert.NoError(t, err)
	assert.Nil(t, r)
}

func TestWriteRead_RoundTrip(t *testing.T) {
	root := t.TempDir()
	s := New(root, nil)

	want := &artifact.Receipt{
		Repo:    "github/awesome-copilot",
		Ref:     "main",
		Entries: []artifact.InstalledEntry{entry("foo", ".github/prompts/foo.prompt.md")},
	}
	require.NoError(t, s.Write(want))

	assert.Equal(t, filepath.Join(root, ".github", ".folio", "receipt.json"), s.Path())
	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), "}\n"), "trailing newline")
	assert.Contains(t, string(data), "\n  \"schemaVersion\": 1")

	got, err := s.Read()
	require.NoError(t, err)
	assert.Equal(t, want.Entries, got.Entries)
	assert.Equal(t, "main", got.Ref)
}

func TestRead_Corrupt(t *testing.T) {
	root := t.TempDir()
	s := New(root, nil)
	require.NoError(t, os.MkdirAll(s.Dir(), 0755))

	require.NoError(t, os.WriteFile(s.Path(), []byte("{nope"), 0644))
	r, err := s.Read()
	assert.Nil(t, r)
	assert.True(t, errors.Is(err, artifact.ErrManifestReadFailure))

	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"schemaVersion":9,"entries":[]}`), 0644))
	_, err = s.Read()
	assert.True(t, errors.Is(err, artifact.ErrManifestReadFailure))
}

func TestUpdate_CorruptReceiptIsReplaced(t *testing.T) {
	root := t.TempDir()
	core, logs := observer.New(zapcore.WarnLevel)
	s := New(root, zap.New(core))
	require.NoError(t, os.MkdirAll(s.Dir(), 0755))
	require.NoError(t, os.WriteFile(s.Path(), []byte("garbage"), 0644))

	err := s.Update(context.Background(), func(r *artifact.Receipt) error {
		assert.Empty(t, r.Entries)
		r.Entries = append(r.Entries, entry("foo", ".github/prompts/foo.prompt.md"))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("ignoring unreadable receipt").Len())

	got, err := s.Read()
	require.NoError(t, err)
	assert.Len(t, got.Entries, 1)
}

func TestUpdate_SetsUpdatedAtAndSkipWrite(t *testing.T) {
	root := t.TempDir()
	ts := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)
	s := New(root, nil)
	s.Now = func() time.Time { return ts }

	require.NoError(t, s.Update(context.Background(), func(r *artifact.Receipt) error { return nil }))
	got, err := s.Read()
	require.NoError(t, err)
	assert.True(t, ts.Equal(got.UpdatedAt))

	s.Now = func() time.Time { return ts.Add(time.Hour) }
	require.NoError(t, s.Update(context.Background(), func(r *artifact.Receipt) error { return SkipWrite }))
	got, err = s.Read()
	require.NoError(t, err)
	assert.True(t, ts.Equal(got.UpdatedAt), "skipped write leaves file alone")
}

func TestUpdate_CallbackErrorDoesNotWrite(t *testing.T) {
	s := New(t.TempDir(), nil)
	boom := errors.New("boom")
	err := s.Update(context.Background(), func(r *artifact.Receipt) error { return boom })
	assert.ErrorIs(t, err, boom)
	_, statErr := os.Stat(s.Path())
	assert.True(t, os.IsNotExist(statErr))
}

func TestUpdate_Serialized(t *testing.T) {
	root := t.TempDir()
	const writers = 8

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := New(root, nil)
			err := s.Update(context.Background(), func(r *artifact.Receipt) error {
				dest := filepath.ToSlash(filepath.Join(".github", "prompts", string(rune('a'+i))+".prompt.md"))
				r.Entries = Merge(r.Entries, []artifact.InstalledEntry{entry(string(rune('a'+i)), dest)})
				return nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := New(root, nil).Read()
	require.NoError(t, err)
	assert.Len(t, got.Entries, writers, "no update was lost")
}

func TestLock_WaitIsCancellable(t *testing.T) {
	root := t.TempDir()
	unlock, err := New(root, nil).Lock(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = New(root, nil).Lock(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock2, err := New(root, nil).Lock(context.Background())
	require.NoError(t, err)
	unlock2()
}

func TestLockAndWrite_RefuseLinkedReceiptDir(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".github"), 0755))
	require.NoError(t, os.Symlink(outside, filepath.Join(root, ".github", ".folio")))
	s := New(root, nil)

	_, err := s.Lock(context.Background())
	assert.ErrorIs(t, err, artifact.ErrManifestWriteFailure)
	assert.ErrorIs(t, err, artifact.ErrPathTraversal)

	err = s.Write(&artifact.Receipt{})
	assert.ErrorIs(t, err, artifact.ErrManifestWriteFailure)
	assert.ErrorIs(t, err, artifact.ErrPathTraversal)

	entries, err := os.ReadDir(outside)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// the in-process lock was released on failure
	require.NoError(t, os.Remove(filepath.Join(root, ".github", ".folio")))
	unlock, err := s.Lock(context.Background())
	require.NoError(t, err)
	unlock()
}

func TestLockAndWrite_RefuseLinkedSandbox(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(root, ".github")))
	s := New(root, nil)

	_, err := s.Lock(context.Background())
	assert.ErrorIs(t, err, artifact.ErrPathTraversal)
	assert.ErrorIs(t, s.Write(&artifact.Receipt{}), artifact.ErrPathTraversal)
	assert.NoDirExists(t, filepath.Join(outside, ".folio"))
}

func TestMerge(t *testing.T) {
	a := entry("a", ".github/prompts/a.prompt.md")
	b := entry("b", ".github/prompts/b.prompt.md")
	c := entry("c", ".github/prompts/c.prompt.md")
	b2 := b
	b2.Version = "2"

	tests := []struct {
		name    string
		prev    []artifact.InstalledEntry
		entries []artifact.InstalledEntry
		want    []artifact.InstalledEntry
	}{
		{"empty", nil, nil, []artifact.InstalledEntry{}},
		{"append", []artifact.InstalledEntry{a}, []artifact.InstalledEntry{b}, []artifact.InstalledEntry{a, b}},
		{"replace keeps survivors first", []artifact.InstalledEntry{a, b, c}, []artifact.InstalledEntry{b2}, []artifact.InstalledEntry{a, c, b2}},
		{"idempotent", []artifact.InstalledEntry{a, b}, []artifact.InstalledEntry{a, b}, []artifact.InstalledEntry{a, b}},
		{"duplicate in batch keeps last", nil, []artifact.InstalledEntry{b, b2}, []artifact.InstalledEntry{b2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Merge(tt.prev, tt.entries))
		})
	}
}

func TestRemove(t *testing.T) {
	root := t.TempDir()
	s := New(root, nil)

	promptDir := filepath.Join(root, ".github", "prompts")
	require.NoError(t, os.MkdirAll(promptDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(promptDir, "a.prompt.md"), []byte("a"), 0644))
	outside := filepath.Join(root, "README.md")
	require.NoError(t, os.WriteFile(outside, []byte("keep"), 0644))

	elsewhere := t.TempDir()
	linked := filepath.Join(elsewhere, "x.prompt.md")
	require.NoError(t, os.WriteFile(linked, []byte("keep"), 0644))
	require.NoError(t, os.Symlink(elsewhere, filepath.Join(root, ".github", "linked")))

	require.NoError(t, s.Write(&artifact.Receipt{Entries: []artifact.InstalledEntry{
		entry("a", ".github/prompts/a.prompt.md"),
		entry("gone", ".github/prompts/gone.prompt.md"),
		entry("evil", "README.md"),
		entry("link", ".github/linked/x.prompt.md"),
		entry("b", ".github/prompts/b.prompt.md"),
	}}))

	res, err := s.Remove(context.Background(), []string{"a", "gone", "evil", "link"})
	require.NoError(t, err)

	var removed []string
	for _, e := range res.Removed {
		removed = append(removed, e.ID)
	}
	assert.Equal(t, []string{"a", "gone"}, removed)

	require.Len(t, res.Refused, 2)
	assert.Equal(t, "evil", res.Refused[0].Entry.ID)
	assert.Equal(t, "link", res.Refused[1].Entry.ID)
	for _, r := range res.Refused {
		assert.ErrorIs(t, r.Err, artifact.ErrPathTraversal)
	}

	assert.NoFileExists(t, filepath.Join(promptDir, "a.prompt.md"))
	assert.FileExists(t, outside, "entries outside the sandbox are never deleted")
	assert.FileExists(t, linked, "files behind an escaping link are never deleted")

	got, err := s.Read()
	require.NoError(t, err)
	require.Len(t, got.Entries, 1)
	assert.Equal(t, "b", got.Entries[0].ID)
}

func TestRemove_NothingMatches(t *testing.T) {
	s := New(t.TempDir(), nil)
	res, err := s.Remove(context.Background(), []string{"nope"})
	assert.NoError(t, err)
	assert.Empty(t, res.Removed)
	assert.Empty(t, res.Refused)
	_, statErr := os.Stat(s.Path())
	assert.True(t, os.IsNotExist(statErr))
}
