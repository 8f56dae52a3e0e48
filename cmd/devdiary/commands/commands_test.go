package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/devdiary/internal/ai"
	"github.com/kittclouds/devdiary/internal/config"
	"github.com/kittclouds/devdiary/internal/logger"
	"github.com/kittclouds/devdiary/internal/store"
)

// fakeGenerator returns a fixed note and records the last request.
type fakeGenerator struct {
	note ai.GeneratedNote
	last ai.NoteRequest
}

func (g *fakeGenerator) Generate(_ context.Context, req ai.NoteRequest) ai.GeneratedNote {
	g.last = req
	return g.note
}

func newTestApp(t *testing.T, gen ai.Generator) *app {
	t.Helper()
	s := store.NewMemory(store.WithLocation(time.UTC))
	t.Cleanup(func() { _ = s.Close() })

	return &app{
		cfg: &config.Config{
			Storage: config.StorageConfig{Key: config.DefaultStorageKey},
			Sync:    config.SyncConfig{Mode: config.SyncNone},
		},
		log:   logger.NewNop(),
		store: s,
		newGenerator: func(config.AIConfig, *logger.Logger) (ai.Generator, error) {
			return gen, nil
		},
		preset: true,
	}
}

// run executes the command line args against a and returns stdout.
func run(t *testing.T, a *app, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(a)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func decode[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(out), &v), out)
	return v
}

func addProject(t *testing.T, a *app, title string) store.Project {
	t.Helper()
	out, err := run(t, a, "project", "add", title)
	require.NoError(t, err)
	return decode[store.Project](t, out)
}

func TestProjectCommands(t *testing.T) {
	a := newTestApp(t, nil)

	p := addProject(t, a, "Work")
	assert.Equal(t, "Work", p.Title)
	assert.NotEmpty(t, p.ID)

	_, err := run(t, a, "project", "add", "work")
	assert.ErrorIs(t, err, store.ErrDuplicateProject)

	out, err := run(t, a, "project", "rename", p.ID, "Day", "Job")
	require.NoError(t, err)
	assert.Equal(t, "Day Job", decode[store.Project](t, out).Title)

	out, err = run(t, a, "project", "list")
	require.NoError(t, err)
	list := decode[[]projectOutput](t, out)
	require.Len(t, list, 1)
	assert.Equal(t, "Day Job", list[0].Title)

	_, err = run(t, a, "project", "rename", "missing", "X")
	assert.Error(t, err)

	_, err = run(t, a, "project", "delete", p.ID)
	require.NoError(t, err)
	assert.Empty(t, a.store.Projects())

	_, err = run(t, a, "project", "delete", p.ID)
	assert.Error(t, err)
}

func TestTaskCommands(t *testing.T) {
	a := newTestApp(t, nil)
	p := addProject(t, a, "Work")

	today := time.Now().UTC().Format(dateLayout)
	out, err := run(t, a, "task", "add", "-p", p.ID, "-t", "Ship it", "--end", today)
	require.NoError(t, err)
	task := decode[store.Task](t, out)
	require.NotNil(t, task.EndDate)
	assert.False(t, task.IsDone)

	_, err = run(t, a, "task", "add", "-p", p.ID, "-t", "Later", "--start", "2030-01-01")
	require.NoError(t, err)

	out, err = run(t, a, "task", "list", "-p", p.ID)
	require.NoError(t, err)
	tasks := decode[[]store.Task](t, out)
	require.Len(t, tasks, 2)

	out, err = run(t, a, "task", "today")
	require.NoError(t, err)
	due := decode[[]todayOutput](t, out)
	require.Len(t, due, 1)
	assert.Equal(t, task.ID, due[0].ID)
	assert.Equal(t, "Work", due[0].Project)

	out, err = run(t, a, "task", "done", task.ID)
	require.NoError(t, err)
	assert.True(t, decode[store.Task](t, out).IsDone)

	out, err = run(t, a, "task", "today")
	require.NoError(t, err)
	assert.Empty(t, decode[[]todayOutput](t, out))

	out, err = run(t, a, "task", "undone", task.ID)
	require.NoError(t, err)
	assert.False(t, decode[store.Task](t, out).IsDone)

	_, err = run(t, a, "task", "delete", task.ID)
	require.NoError(t, err)
	_, err = run(t, a, "task", "done", task.ID)
	assert.Error(t, err)
}

func TestTaskAddRejectsBadInput(t *testing.T) {
	a := newTestApp(t, nil)
	p := addProject(t, a, "Work")

	_, err := run(t, a, "task", "add", "-p", p.ID, "-t", "x", "--end", "tomorrow")
	assert.ErrorContains(t, err, "invalid --end date")

	_, err = run(t, a, "task", "add", "-p", p.ID, "-t", "x", "--start", "2024-02-02", "--end", "2024-02-01")
	var verr *store.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = run(t, a, "task", "add", "-p", "missing", "-t", "x")
	assert.ErrorContains(t, err, "not found")
}

func TestNoteCommands(t *testing.T) {
	a := newTestApp(t, nil)
	p := addProject(t, a, "Work")

	out, err := run(t, a, "note", "add", "-p", p.ID, "--content", "remember the milk")
	require.NoError(t, err)
	n := decode[store.Note](t, out)

	out, err = run(t, a, "note", "list", "-p", p.ID)
	require.NoError(t, err)
	list := decode[[]noteSummary](t, out)
	require.Len(t, list, 1)
	assert.Equal(t, "Untitled Note", list[0].Title)

	out, err = run(t, a, "note", "show", n.ID)
	require.NoError(t, err)
	assert.Equal(t, "remember the milk", decode[store.Note](t, out).Content)

	_, err = run(t, a, "note", "delete", n.ID)
	require.NoError(t, err)
	_, err = run(t, a, "note", "show", n.ID)
	assert.Error(t, err)
}

func TestNoteGenerate(t *testing.T) {
	gen := &fakeGenerator{note: ai.GeneratedNote{Title: "Plan", Content: "1. do it"}}
	a := newTestApp(t, gen)
	p := addProject(t, a, "Work")
	a.store.SetAPIKey("secret")

	existing, err := a.store.AddNote(store.NewNote{ProjectID: p.ID, Title: "Old", Content: "old content"})
	require.NoError(t, err)
	edited, err := a.store.AddNote(store.NewNote{ProjectID: p.ID, Title: "Draft", Content: "being edited"})
	require.NoError(t, err)

	out, err := run(t, a, "note", "generate", "-p", p.ID, "--prompt", "write a plan",
		"--exclude", edited.ID, "--save")
	require.NoError(t, err)

	res := decode[generatedOutput](t, out)
	assert.Equal(t, "Plan", res.Title)
	require.NotNil(t, res.Saved)
	assert.Equal(t, 1, res.Context)

	assert.Equal(t, "write a plan", gen.last.Prompt)
	assert.Equal(t, "secret", gen.last.Credential)
	assert.Equal(t, []string{ai.FormatContextNote(existing.Title, existing.Content)}, gen.last.ContextNotes)

	assert.Len(t, a.store.GetNotesByProjectID(p.ID), 3)
}

func TestNoteGenerateFailures(t *testing.T) {
	gen := &fakeGenerator{note: ai.GeneratedNote{Title: ai.ErrorTitle, Content: "quota exceeded"}}
	a := newTestApp(t, gen)
	p := addProject(t, a, "Work")

	_, err := run(t, a, "note", "generate", "-p", p.ID, "--prompt", "x")
	assert.ErrorIs(t, err, ai.ErrMissingCredential)

	a.store.SetAPIKey("secret")
	_, err = run(t, a, "note", "generate", "-p", p.ID, "--prompt", "   ")
	assert.ErrorIs(t, err, ai.ErrEmptyPrompt)

	out, err := run(t, a, "note", "generate", "-p", p.ID, "--prompt", "x", "--save")
	assert.EqualError(t, err, "quota exceeded")
	assert.Equal(t, ai.ErrorTitle, decode[generatedOutput](t, out).Title)
	assert.Empty(t, a.store.GetNotesByProjectID(p.ID))
}

func TestNoteGenerateClipsLongTitle(t *testing.T) {
	long := strings.Repeat("é", 150)
	gen := &fakeGenerator{note: ai.GeneratedNote{Title: long, Content: "body"}}
	a := newTestApp(t, gen)
	p := addProject(t, a, "Work")
	a.store.SetAPIKey("secret")

	out, err := run(t, a, "note", "generate", "-p", p.ID, "--prompt", "x", "--save")
	require.NoError(t, err)

	res := decode[generatedOutput](t, out)
	assert.Equal(t, long, res.Title)
	require.NotNil(t, res.Saved)
	assert.Equal(t, strings.Repeat("é", maxNoteTitle), res.Saved.Title)
	assert.Equal(t, "body", res.Saved.Content)
}

// closeRecorder counts how often the store released it.
type closeRecorder struct {
	closed int
}

func (c *closeRecorder) Close() error {
	c.closed++
	return nil
}

func TestFailingCommandClosesStore(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DEVDIARY_DATA_DIR", t.TempDir())
	t.Setenv("DEVDIARY_SYNC_MODE", config.SyncNone)

	rec := &closeRecorder{}
	a := &app{
		openStore: func(context.Context, *config.Config, *logger.Logger) (*store.Store, error) {
			return store.NewMemory(store.WithClosers(rec)), nil
		},
		newGenerator: geminiGenerator,
	}
	root := newRootCmd(a)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"task", "delete", "missing"})

	err := a.execute(root)
	assert.ErrorContains(t, err, "not found")
	assert.Equal(t, 1, rec.closed)
	assert.Nil(t, a.store)

	assert.NoError(t, a.close())
	assert.Equal(t, 1, rec.closed)
}

func TestAPIKeyCommands(t *testing.T) {
	a := newTestApp(t, nil)

	out, err := run(t, a, "apikey", "set", "abcdefgh")
	require.NoError(t, err)
	assert.Equal(t, "****efgh", decode[map[string]string](t, out)["apiKey"])

	out, err = run(t, a, "apikey", "show", "--reveal")
	require.NoError(t, err)
	assert.Equal(t, "abcdefgh", decode[map[string]string](t, out)["apiKey"])
}

func TestMask(t *testing.T) {
	assert.Equal(t, "", mask(""))
	assert.Equal(t, "***", mask("abc"))
	assert.Equal(t, "**cdef", mask("abcdef"))
}

func TestExportImport(t *testing.T) {
	src := newTestApp(t, nil)
	p := addProject(t, src, "Work")
	_, err := run(t, src, "note", "add", "-p", p.ID, "--content", "hello")
	require.NoError(t, err)

	backup, err := run(t, src, "export", "--output", "-")
	require.NoError(t, err)

	file := filepath.Join(t.TempDir(), "backup.json")
	_, err = run(t, src, "export", "-o", file)
	require.NoError(t, err)
	written, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.JSONEq(t, backup, string(written))

	dst := newTestApp(t, nil)
	out, err := run(t, dst, "import", file)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"projects": 1, "tasks": 0, "notes": 1}, decode[map[string]int](t, out))
	assert.Equal(t, src.store.Data(), dst.store.Data())

	root := newRootCmd(dst)
	root.SetIn(strings.NewReader(`{"projects": "nope"}`))
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"import", "-"})
	assert.ErrorIs(t, root.Execute(), store.ErrInvalidImport)
	assert.Len(t, dst.store.Projects(), 1)
}
