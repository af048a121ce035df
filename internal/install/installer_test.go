package install

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kennyg/folio/internal/artifact"
	"github.com/kennyg/folio/internal/integrity"
	"github.com/kennyg/folio/internal/receipt"
)

// fakeFetcher serves payloads keyed by URL
type fakeFetcher struct {
	mu       sync.Mutex
	bodies   map[string]string
	errs     map[string]error
	calls    []string
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
	onFetch  func()
}

func (f *fakeFetcher) FetchItem(ctx context.Context, url string, maxBytes int64, timeout time.Duration) ([]byte, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, url)
	hook := f.onFetch
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	body, ok := f.bodies[url]
	if !ok {
		return nil, &artifact.FetchError{Status: 404, URL: url}
	}
	return []byte(body), nil
}

func trusted(string) bool { return true }

func newInstaller(t *testing.T, root string, f Fetcher, r Resolver) *Installer {
	t.Helper()
	return New(Options{
		WorkspaceRoot: root,
		Repo:          "github/awesome-copilot",
		Ref:           "main",
		Fetcher:       f,
		Resolver:      r,
		Trust:         trusted,
		Timeout:       time.Second,
	})
}

func prompt(id, path string) artifact.CatalogItem {
	return artifact.CatalogItem{Kind: artifact.KindPrompt, ID: id, Name: id, Path: path}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestInstall_EndToEndPrompt(t *testing.T) {
	root := t.TempDir()
	f := &fakeFetcher{bodies: map[string]string{"prompts/foo.prompt.md": "# foo\n"}}

	report, err := newInstaller(t, root, f, nil).Install(context.Background(), []artifact.CatalogItem{
		prompt("foo", "prompts/foo.prompt.md"),
	})
	require.NoError(t, err)
	require.Len(t, report.Installed, 1)
	assert.NotEmpty(t, report.Batch)
	assert.Empty(t, report.Failed)

	dest := filepath.Join(root, ".github", "prompts", "foo.prompt.md")
	assert.Equal(t, "# foo\n", readFile(t, dest))

	got := report.Installed[0]
	assert.Equal(t, ".github/prompts/foo.prompt.md", got.DestPath)
	assert.Equal(t, integrity.Digest([]byte("# foo\n")), got.SHA256)

	rec, err := receipt.New(root, nil).Read()
	require.NoError(t, err)
	require.Len(t, rec.Entries, 1)
	assert.Equal(t, "github/awesome-copilot", rec.Repo)
	assert.Equal(t, "foo", rec.Entries[0].ID)

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(fileMode), info.Mode().Perm())
}

func TestInstall_AllKinds(t *testing.T) {
	root := t.TempDir()
	f := &fakeFetcher{bodies: map[string]string{
		"agents/rev.agent.md":              "agent",
		"instructions/go.instructions.md":  "instr",
		"instructions/house.md":            "always",
		"prompts/nested/dir/bar.prompt.md": "prompt",
	}}
	items := []artifact.CatalogItem{
		{Kind: artifact.KindAgent, ID: "rev", Name: "rev", Path: "agents/rev.agent.md"},
		{Kind: artifact.KindInstruction, ID: "go", Name: "go", Path: "instructions/go.instructions.md"},
		{Kind: artifact.KindAlwaysOnInstruction, ID: "house", Name: "house", Path: "instructions/house.md"},
		prompt("bar", "prompts/nested/dir/bar.prompt.md"),
	}

	report, err := newInstaller(t, root, f, nil).Install(context.Background(), items)
	require.NoError(t, err)
	require.Empty(t, report.Failed)

	gh := filepath.Join(root, ".github")
	assert.Equal(t, "agent", readFile(t, filepath.Join(gh, "agents", "rev.agent.md")))
	assert.Equal(t, "instr", readFile(t, filepath.Join(gh, "instructions", "go.instructions.md")))
	assert.Equal(t, "always", readFile(t, filepath.Join(gh, "copilot-instructions.md")))
	assert.Equal(t, "prompt", readFile(t, filepath.Join(gh, "prompts", "bar.prompt.md")))
}

func TestInstall_RenameNumbering(t *testing.T) {
	root := t.TempDir()
	f := &fakeFetcher{bodies: map[string]string{
		"a/foo.prompt.md": "one",
		"b/foo.prompt.md": "two",
		"c/foo.prompt.md": "three",
	}}
	r := &ScriptedResolver{Decisions: []Decision{DecisionRename, DecisionRename}}

	report, err := newInstaller(t, root, f, r).Install(context.Background(), []artifact.CatalogItem{
		prompt("a", "a/foo.prompt.md"),
		prompt("b", "b/foo.prompt.md"),
		prompt("c", "c/foo.prompt.md"),
	})
	require.NoError(t, err)
	require.Len(t, report.Installed, 3)

	dir := filepath.Join(root, ".github", "prompts")
	assert.Equal(t, "one", readFile(t, filepath.Join(dir, "foo.prompt.md")))
	assert.Equal(t, "two", readFile(t, filepath.Join(dir, "foo.copy-1.prompt.md")))
	assert.Equal(t, "three", readFile(t, filepath.Join(dir, "foo.copy-2.prompt.md")))
	assert.Equal(t, []string{".github/prompts/foo.prompt.md", ".github/prompts/foo.prompt.md"}, r.Asked)
}

func TestInstall_RenameSkipsExistingCopies(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, ".github", "prompts")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "foo.prompt.md"), []byte("mine"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "foo.copy-1.prompt.md"), []byte("mine too"), 0644))

	f := &fakeFetcher{bodies: map[string]string{"prompts/foo.prompt.md": "theirs"}}
	report, err := newInstaller(t, root, f, FixedResolver(DecisionRename)).Install(context.Background(),
		[]artifact.CatalogItem{prompt("foo", "prompts/foo.prompt.md")})
	require.NoError(t, err)
	require.Len(t, report.Installed, 1)
	assert.Equal(t, ".github/prompts/foo.copy-2.prompt.md", report.Installed[0].DestPath)
	assert.Equal(t, "mine", readFile(t, filepath.Join(dir, "foo.prompt.md")))
}

func TestInstall_ConflictDecisions(t *testing.T) {
	tests := []struct {
		name      string
		resolver  Resolver
		want      string
		installed int
		skipped   int
	}{
		{"overwrite", FixedResolver(DecisionOverwrite), "new", 1, 0},
		{"skip", FixedResolver(DecisionSkip), "old", 0, 1},
		{"non-answer is skip", FixedResolver(DecisionNone), "old", 0, 1},
		{"resolver error is skip", ResolverFunc(func(context.Context, string) (Decision, error) {
			return DecisionOverwrite, errors.New("dialog closed")
		}), "old", 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			dest := filepath.Join(root, ".github", "prompts", "foo.prompt.md")
			require.NoError(t, os.MkdirAll(filepath.Dir(dest), 0755))
			require.NoError(t, os.WriteFile(dest, []byte("old"), 0644))

			f := &fakeFetcher{bodies: map[string]string{"prompts/foo.prompt.md": "new"}}
			report, err := newInstaller(t, root, f, tt.resolver).Install(context.Background(),
				[]artifact.CatalogItem{prompt("foo", "prompts/foo.prompt.md")})
			require.NoError(t, err)

			assert.Equal(t, tt.want, readFile(t, dest))
			assert.Len(t, report.Installed, tt.installed)
			assert.Len(t, report.Skipped, tt.skipped)
		})
	}
}

func TestInstall_SkipLeavesReceiptUntouched(t *testing.T) {
	root := t.TempDir()
	dest := filepath.Join(root, ".github", "prompts", "foo.prompt.md")
	require.NoError(t, os.MkdirAll(filepath.Dir(dest), 0755))
	require.NoError(t, os.WriteFile(dest, []byte("old"), 0644))

	f := &fakeFetcher{bodies: map[string]string{"prompts/foo.prompt.md": "new"}}
	_, err := newInstaller(t, root, f, FixedResolver(DecisionSkip)).Install(context.Background(),
		[]artifact.CatalogItem{prompt("foo", "prompts/foo.prompt.md")})
	require.NoError(t, err)

	_, statErr := os.Stat(receipt.New(root, nil).Path())
	assert.True(t, os.IsNotExist(statErr))
}

func TestInstall_IntegrityMismatchFailsOnlyThatItem(t *testing.T) {
	root := t.TempDir()
	f := &fakeFetcher{bodies: map[string]string{
		"prompts/bad.prompt.md":  "tampered",
		"prompts/good.prompt.md": "hello world",
	}}
	bad := prompt("bad", "prompts/bad.prompt.md")
	bad.SHA256 = integrity.Digest([]byte("original"))
	good := prompt("good", "prompts/good.prompt.md")
	good.SHA256 = "sha256:" + strings.ToUpper(integrity.Digest([]byte("hello world")))

	report, err := newInstaller(t, root, f, nil).Install(context.Background(), []artifact.CatalogItem{bad, good})
	require.NoError(t, err)

	require.Len(t, report.Failed, 1)
	assert.Equal(t, "bad", report.Failed[0].ItemID)
	assert.True(t, errors.Is(report.Failed[0].Err, artifact.ErrIntegrityMismatch))
	assert.True(t, errors.Is(report.Err(), artifact.ErrIntegrityMismatch))
	assert.NoFileExists(t, filepath.Join(root, ".github", "prompts", "bad.prompt.md"))

	require.Len(t, report.Installed, 1)
	assert.Equal(t, "good", report.Installed[0].ID)
}

func TestInstall_IntegrityMismatchLeavesExistingFile(t *testing.T) {
	root := t.TempDir()
	dest := filepath.Join(root, ".github", "prompts", "foo.prompt.md")
	require.NoError(t, os.MkdirAll(filepath.Dir(dest), 0755))
	require.NoError(t, os.WriteFile(dest, []byte("old"), 0644))

	item := prompt("foo", "prompts/foo.prompt.md")
	item.SHA256 = integrity.Digest([]byte("expected"))
	f := &fakeFetcher{bodies: map[string]string{"prompts/foo.prompt.md": "other"}}

	report, err := newInstaller(t, root, f, FixedResolver(DecisionOverwrite)).Install(context.Background(), []artifact.CatalogItem{item})
	require.NoError(t, err)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "old", readFile(t, dest))
}

func TestInstall_Idempotent(t *testing.T) {
	root := t.TempDir()
	f := &fakeFetcher{bodies: map[string]string{
		"prompts/foo.prompt.md": "foo",
		"agents/a.agent.md":     "a",
	}}
	items := []artifact.CatalogItem{
		prompt("foo", "prompts/foo.prompt.md"),
		{Kind: artifact.KindAgent, ID: "a", Name: "a", Path: "agents/a.agent.md"},
	}

	in := newInstaller(t, root, f, FixedResolver(DecisionOverwrite))
	for i := 0; i < 2; i++ {
		report, err := in.Install(context.Background(), items)
		require.NoError(t, err)
		require.Len(t, report.Installed, 2)
	}

	rec, err := receipt.New(root, nil).Read()
	require.NoError(t, err)
	require.Len(t, rec.Entries, 2)
	dests := []string{rec.Entries[0].DestPath, rec.Entries[1].DestPath}
	sort.Strings(dests)
	assert.Equal(t, []string{".github/agents/a.agent.md", ".github/prompts/foo.prompt.md"}, dests)
}

func TestInstall_PreservesUntouchedEntries(t *testing.T) {
	root := t.TempDir()
	store := receipt.New(root, nil)
	require.NoError(t, store.Write(&artifact.Receipt{Entries: []artifact.InstalledEntry{
		{ID: "older", Kind: artifact.KindAgent, DestPath: ".github/agents/older.agent.md"},
	}}))

	f := &fakeFetcher{bodies: map[string]string{"prompts/foo.prompt.md": "foo"}}
	_, err := newInstaller(t, root, f, nil).Install(context.Background(), []artifact.CatalogItem{prompt("foo", "prompts/foo.prompt.md")})
	require.NoError(t, err)

	rec, err := store.Read()
	require.NoError(t, err)
	require.Len(t, rec.Entries, 2)
	assert.Equal(t, "older", rec.Entries[0].ID)
	assert.Equal(t, "foo", rec.Entries[1].ID)
}

func TestInstall_TraversalAbortsBatch(t *testing.T) {
	for _, evil := range []string{"../etc/passwd.prompt.md", "/abs/x.prompt.md", "prompts/%2e%2e/%2e%2e/x.prompt.md", `..\x.prompt.md`} {
		t.Run(evil, func(t *testing.T) {
			root := t.TempDir()
			f := &fakeFetcher{bodies: map[string]string{"prompts/ok.prompt.md": "ok"}}

			_, err := newInstaller(t, root, f, nil).Install(context.Background(), []artifact.CatalogItem{
				prompt("ok", "prompts/ok.prompt.md"),
				prompt("evil", evil),
			})
			assert.True(t, errors.Is(err, artifact.ErrPathTraversal), "got %v", err)
			assert.Empty(t, f.calls, "nothing is fetched")
			assert.NoDirExists(t, filepath.Join(root, ".github"))
		})
	}
}

func TestInstall_PerItemMappingFailures(t *testing.T) {
	root := t.TempDir()
	f := &fakeFetcher{bodies: map[string]string{"prompts/ok.prompt.md": "ok"}}

	report, err := newInstaller(t, root, f, nil).Install(context.Background(), []artifact.CatalogItem{
		{Kind: "skill", ID: "odd", Name: "odd", Path: "skills/odd.md"},
		prompt("wrong-suffix", "prompts/wrong.md"),
		prompt("ok", "prompts/ok.prompt.md"),
	})
	require.NoError(t, err)
	require.Len(t, report.Failed, 2)
	assert.True(t, errors.Is(report.Failed[0].Err, artifact.ErrUnsupportedKind))
	assert.True(t, errors.Is(report.Failed[1].Err, artifact.ErrInvalidItemShape))
	require.Len(t, report.Installed, 1)
	assert.Equal(t, []string{"prompts/ok.prompt.md"}, f.calls)
}

func TestInstall_FetchFailureIsPerItem(t *testing.T) {
	root := t.TempDir()
	f := &fakeFetcher{
		bodies: map[string]string{"prompts/ok.prompt.md": "ok"},
		errs:   map[string]error{"prompts/slow.prompt.md": artifact.ErrFetchTimeout},
	}

	report, err := newInstaller(t, root, f, nil).Install(context.Background(), []artifact.CatalogItem{
		prompt("slow", "prompts/slow.prompt.md"),
		prompt("missing", "prompts/missing.prompt.md"),
		prompt("ok", "prompts/ok.prompt.md"),
	})
	require.NoError(t, err)
	require.Len(t, report.Failed, 2)
	assert.True(t, errors.Is(report.Failed[0].Err, artifact.ErrFetchTimeout))
	var fe *artifact.FetchError
	assert.True(t, errors.As(report.Failed[1].Err, &fe))
	assert.Len(t, report.Installed, 1)
}

func TestInstall_UsesURLForAndConcurrencyLimit(t *testing.T) {
	root := t.TempDir()
	bodies := map[string]string{}
	var items []artifact.CatalogItem
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		bodies["https://raw.example/"+id+".prompt.md"] = id
		items = append(items, prompt(id, id+".prompt.md"))
	}
	f := &fakeFetcher{bodies: bodies, delay: 20 * time.Millisecond}

	in := New(Options{
		WorkspaceRoot: root,
		Fetcher:       f,
		Trust:         trusted,
		MaxConcurrent: 2,
		URLFor:        func(p string) string { return "https://raw.example/" + p },
	})
	report, err := in.Install(context.Background(), items)
	require.NoError(t, err)
	assert.Len(t, report.Installed, 6)
	assert.LessOrEqual(t, f.peak.Load(), int32(2))

	// commit order follows input order regardless of fetch order
	for i, e := range report.Installed {
		assert.Equal(t, items[i].ID, e.ID)
	}
}

func TestInstall_Untrusted(t *testing.T) {
	root := t.TempDir()
	f := &fakeFetcher{bodies: map[string]string{"prompts/foo.prompt.md": "x"}}

	for name, trust := range map[string]func(string) bool{
		"nil gate":   nil,
		"gate false": func(string) bool { return false },
	} {
		t.Run(name, func(t *testing.T) {
			in := New(Options{WorkspaceRoot: root, Fetcher: f, Trust: trust})
			_, err := in.Install(context.Background(), []artifact.CatalogItem{prompt("foo", "prompts/foo.prompt.md")})
			assert.True(t, errors.Is(err, artifact.ErrUntrustedWorkspace))
			assert.Contains(t, artifact.Describe(err), "not trusted")
		})
	}
	assert.Empty(t, f.calls)
	assert.NoDirExists(t, filepath.Join(root, ".github"))
}

func TestInstall_NoWorkspace(t *testing.T) {
	f := &fakeFetcher{}
	for name, root := range map[string]string{
		"empty":   "",
		"missing": filepath.Join(t.TempDir(), "nope"),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := newInstaller(t, root, f, nil).Install(context.Background(), []artifact.CatalogItem{prompt("foo", "prompts/foo.prompt.md")})
			assert.True(t, errors.Is(err, artifact.ErrNoWorkspace), "got %v", err)
		})
	}
}

func TestInstall_CancelledLeavesNoFiles(t *testing.T) {
	root := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := &fakeFetcher{
		bodies:  map[string]string{"prompts/foo.prompt.md": "x"},
		onFetch: cancel,
	}
	report, err := newInstaller(t, root, f, nil).Install(ctx, []artifact.CatalogItem{prompt("foo", "prompts/foo.prompt.md")})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, report.Installed)
	assert.NoDirExists(t, filepath.Join(root, ".github"))
}

func TestInstall_ReceiptWriteFailureStillReportsFiles(t *testing.T) {
	root := t.TempDir()
	store := receipt.New(root, nil)
	require.NoError(t, os.MkdirAll(store.Dir(), 0755))
	// a directory where the receipt file should go makes the rename fail
	require.NoError(t, os.MkdirAll(filepath.Join(store.Path(), "blocker"), 0755))

	f := &fakeFetcher{bodies: map[string]string{"prompts/foo.prompt.md": "x"}}
	report, err := newInstaller(t, root, f, nil).Install(context.Background(), []artifact.CatalogItem{prompt("foo", "prompts/foo.prompt.md")})
	assert.True(t, errors.Is(err, artifact.ErrManifestWriteFailure), "got %v", err)
	require.Len(t, report.Installed, 1)
	assert.FileExists(t, filepath.Join(root, ".github", "prompts", "foo.prompt.md"))
}

func TestInstall_SymlinkedKindDirFails(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".github"), 0755))
	require.NoError(t, os.Symlink(outside, filepath.Join(root, ".github", "prompts")))

	f := &fakeFetcher{bodies: map[string]string{"prompts/foo.prompt.md": "x"}}
	report, err := newInstaller(t, root, f, nil).Install(context.Background(), []artifact.CatalogItem{prompt("foo", "prompts/foo.prompt.md")})
	require.NoError(t, err)
	require.Len(t, report.Failed, 1)
	assert.True(t, errors.Is(report.Failed[0].Err, artifact.ErrPathTraversal))
	assert.NoFileExists(t, filepath.Join(outside, "foo.prompt.md"))
}

func TestInstall_SymlinkedReceiptDirFails(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".github"), 0755))
	require.NoError(t, os.Symlink(outside, filepath.Join(root, ".github", ".folio")))

	f := &fakeFetcher{bodies: map[string]string{"prompts/foo.prompt.md": "x"}}
	report, err := newInstaller(t, root, f, nil).Install(context.Background(), []artifact.CatalogItem{prompt("foo", "prompts/foo.prompt.md")})
	assert.True(t, errors.Is(err, artifact.ErrManifestWriteFailure), "got %v", err)
	assert.True(t, errors.Is(err, artifact.ErrPathTraversal), "got %v", err)
	assert.Empty(t, report.Installed)

	assert.NoFileExists(t, filepath.Join(outside, "receipt.json"))
	assert.NoFileExists(t, filepath.Join(outside, "receipt.lock"))
	assert.NoFileExists(t, filepath.Join(root, ".github", "prompts", "foo.prompt.md"))
}

func TestInstall_NothingFetchedLeavesWorkspaceAlone(t *testing.T) {
	root := t.TempDir()
	f := &fakeFetcher{bodies: map[string]string{}}

	report, err := newInstaller(t, root, f, nil).Install(context.Background(), []artifact.CatalogItem{
		prompt("foo", "prompts/foo.prompt.md"),
		prompt("bar", "prompts/bar.prompt.md"),
	})
	require.NoError(t, err)
	assert.Len(t, report.Failed, 2)
	assert.NoDirExists(t, filepath.Join(root, ".github"))
}

func TestInstall_LogsBatch(t *testing.T) {
	root := t.TempDir()
	core, logs := observer.New(zapcore.InfoLevel)
	f := &fakeFetcher{bodies: map[string]string{"prompts/foo.prompt.md": "x"}}

	in := New(Options{WorkspaceRoot: root, Fetcher: f, Trust: trusted, Logger: zap.New(core)})
	report, err := in.Install(context.Background(), []artifact.CatalogItem{prompt("foo", "prompts/foo.prompt.md")})
	require.NoError(t, err)

	entries := logs.FilterMessage("item installed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, report.Batch, entries[0].ContextMap()["batch"])
	assert.Equal(t, "foo", entries[0].ContextMap()["item"])
}

func TestWriteAtomic_CancelledBeforeRename(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.md")
	require.NoError(t, os.WriteFile(dest, []byte("old"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := writeAtomic(ctx, dest, []byte("new"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "old", readFile(t, dest))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "staging file removed")
}

func TestParseDecision(t *testing.T) {
	for in, want := range map[string]Decision{"overwrite": DecisionOverwrite, "Rename": DecisionRename, " skip ": DecisionSkip} {
		got, err := ParseDecision(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseDecision("ask")
	assert.Error(t, err)
	assert.Equal(t, "none", DecisionNone.String())
}

func TestScriptedResolver_RunsOut(t *testing.T) {
	r := &ScriptedResolver{Decisions: []Decision{DecisionOverwrite}}
	d, _ := r.Resolve(context.Background(), "a")
	assert.Equal(t, DecisionOverwrite, d)
	d, _ = r.Resolve(context.Background(), "b")
	assert.Equal(t, DecisionNone, d)
	assert.Equal(t, []string{"a", "b"}, r.Asked)
}
