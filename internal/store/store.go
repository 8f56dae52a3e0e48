package store

import (
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/kittclouds/devdiary/internal/logger"
	"github.com/kittclouds/devdiary/pkg/persist"
)

// ErrDuplicateProject is returned when a project title collides, ignoring
// case, with another project.
var ErrDuplicateProject = errors.New("store: a project with this title already exists")

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for createdAt and the today filter.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLocation sets the location that defines calendar days. Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) { s.loc = loc }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithClosers registers resources released by Close after the final flush.
func WithClosers(c ...io.Closer) Option {
	return func(s *Store) { s.closers = append(s.closers, c...) }
}

// Store is the handle consumers use to read and mutate AppData.
// Create one per process and Close it on shutdown.
type Store struct {
	value    *persist.Value[AppData]
	validate *validator.Validate
	now      func() time.Time
	loc      *time.Location
	log      *logger.Logger

	// closers are released after the value is flushed, in order.
	closers []io.Closer
}

// New wraps an already loaded value.
func New(value *persist.Value[AppData], opts ...Option) *Store {
	s := &Store{
		value:    value,
		validate: validator.New(),
		now:      time.Now,
		loc:      time.Local,
		log:      logger.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithComponent("store")
	return s
}

// NewMemory returns a store that is not persisted anywhere.
func NewMemory(opts ...Option) *Store {
	return New(persist.Load(context.Background(), "memory", DefaultAppData()), opts...)
}

// Close flushes the aggregate and releases the backend and bus.
func (s *Store) Close() error {
	errs := []error{s.value.Close()}
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// Location is the calendar zone used for "today".
func (s *Store) Location() *time.Location {
	return s.loc
}

// Data returns a snapshot of the aggregate.
func (s *Store) Data() AppData {
	return s.value.Get().Clone()
}

// OnChange registers fn to run after every local or remote change.
func (s *Store) OnChange(fn func(AppData)) func() {
	return s.value.OnChange(func(d AppData) { fn(d.Clone()) })
}

// Reload re-reads the persisted aggregate.
func (s *Store) Reload() {
	s.value.Reload()
}

// mutate applies fn to a copy of the aggregate. fn returns false to leave
// the aggregate untouched.
func (s *Store) mutate(fn func(d *AppData) bool) bool {
	return s.value.UpdateIf(func(prev AppData) (AppData, bool) {
		next := prev.Clone()
		if !fn(&next) {
			return prev, false
		}
		return next, true
	})
}

// =============================================================================
// Configuration
// =============================================================================

// SetAPIKey replaces the stored AI credential.
func (s *Store) SetAPIKey(key string) {
	s.mutate(func(d *AppData) bool {
		d.APIKey = key
		return true
	})
}

// APIKey returns the stored AI credential.
func (s *Store) APIKey() string {
	return s.value.Get().APIKey
}

// =============================================================================
// Projects
// =============================================================================

// AddProject creates a project with a trimmed title.
func (s *Store) AddProject(title string) (Project, error) {
	p := Project{
		ID:        uuid.NewString(),
		Title:     strings.TrimSpace(title),
		CreatedAt: utc(s.now()),
	}
	if err := s.check(p); err != nil {
		return Project{}, err
	}

	var dup bool
	s.mutate(func(d *AppData) bool {
		if hasTitle(d.Projects, p.Title, "") {
			dup = true
			return false
		}
		d.Projects = append(d.Projects, p)
		return true
	})
	if dup {
		s.log.Debugw("Rejected duplicate project", "title", p.Title)
		return Project{}, ErrDuplicateProject
	}

	s.log.Debugw("Added project", "id", p.ID)
	return p, nil
}

// UpdateProject renames the project with p.ID. Other fields of p are
// ignored. An unknown id is a no-op.
func (s *Store) UpdateProject(p Project) error {
	p.Title = strings.TrimSpace(p.Title)

	var err error
	s.mutate(func(d *AppData) bool {
		i := slices.IndexFunc(d.Projects, func(x Project) bool { return x.ID == p.ID })
		if i < 0 {
			return false
		}
		if err = s.check(p); err != nil {
			return false
		}
		if hasTitle(d.Projects, p.Title, p.ID) {
			err = ErrDuplicateProject
			return false
		}
		if d.Projects[i].Title == p.Title {
			return false
		}
		d.Projects[i].Title = p.Title
		return true
	})
	return err
}

// DeleteProject removes the project with its tasks and notes. It reports
// whether the project existed.
func (s *Store) DeleteProject(id string) bool {
	return s.mutate(func(d *AppData) bool {
		n := len(d.Projects)
		d.Projects = slices.DeleteFunc(d.Projects, func(p Project) bool { return p.ID == id })
		if len(d.Projects) == n {
			return false
		}
		d.Tasks = slices.DeleteFunc(d.Tasks, func(t Task) bool { return t.ProjectID == id })
		d.Notes = slices.DeleteFunc(d.Notes, func(n Note) bool { return n.ProjectID == id })
		s.log.Debugw("Deleted project", "id", id)
		return true
	})
}

// GetProjectByID looks up a project.
func (s *Store) GetProjectByID(id string) (Project, bool) {
	for _, p := range s.value.Get().Projects {
		if p.ID == id {
			return p, true
		}
	}
	return Project{}, false
}

// Projects returns every project in creation order.
func (s *Store) Projects() []Project {
	return slices.Clone(s.value.Get().Projects)
}

func hasTitle(projects []Project, title, exceptID string) bool {
	return slices.ContainsFunc(projects, func(p Project) bool {
		return p.ID != exceptID && strings.EqualFold(p.Title, title)
	})
}

// =============================================================================
// Tasks
// =============================================================================

// AddTask creates a task that is not done.
func (s *Store) AddTask(in NewTask) (Task, error) {
	t := Task{
		ID:          uuid.NewString(),
		ProjectID:   in.ProjectID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		StartDate:   utcPtr(in.StartDate),
		EndDate:     utcPtr(in.EndDate),
		CreatedAt:   utc(s.now()),
	}
	if err := s.checkTask(t); err != nil {
		return Task{}, err
	}

	s.mutate(func(d *AppData) bool {
		d.Tasks = append(d.Tasks, t)
		return true
	})
	return t.clone(), nil
}

// UpdateTask replaces the task with t.ID wholesale, keeping its id and
// createdAt. An unknown id is a no-op.
func (s *Store) UpdateTask(t Task) error {
	t = t.clone()
	t.Title = strings.TrimSpace(t.Title)
	t.StartDate = utcPtr(t.StartDate)
	t.EndDate = utcPtr(t.EndDate)

	var err error
	s.mutate(func(d *AppData) bool {
		i := slices.IndexFunc(d.Tasks, func(x Task) bool { return x.ID == t.ID })
		if i < 0 {
			return false
		}
		if err = s.checkTask(t); err != nil {
			return false
		}
		t.CreatedAt = d.Tasks[i].CreatedAt
		d.Tasks[i] = t
		return true
	})
	return err
}

// SetTaskDone flips the done flag of one task. An unknown id is a no-op.
func (s *Store) SetTaskDone(id string, done bool) bool {
	return s.mutate(func(d *AppData) bool {
		i := slices.IndexFunc(d.Tasks, func(x Task) bool { return x.ID == id })
		if i < 0 || d.Tasks[i].IsDone == done {
			return false
		}
		d.Tasks[i].IsDone = done
		return true
	})
}

// DeleteTask removes a task and reports whether it existed.
func (s *Store) DeleteTask(id string) bool {
	return s.mutate(func(d *AppData) bool {
		n := len(d.Tasks)
		d.Tasks = slices.DeleteFunc(d.Tasks, func(t Task) bool { return t.ID == id })
		return len(d.Tasks) != n
	})
}

// GetTaskByID looks up a task.
func (s *Store) GetTaskByID(id string) (Task, bool) {
	for _, t := range s.value.Get().Tasks {
		if t.ID == id {
			return t.clone(), true
		}
	}
	return Task{}, false
}

// GetTasksByProjectID returns the project's tasks, newest first.
func (s *Store) GetTasksByProjectID(projectID string) []Task {
	out := []Task{}
	for _, t := range s.value.Get().Tasks {
		if t.ProjectID == projectID {
			out = append(out, t.clone())
		}
	}
	slices.SortStableFunc(out, func(a, b Task) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out
}

// GetTodaysTasks returns open tasks whose due date falls on the current
// calendar day in the store's location.
func (s *Store) GetTodaysTasks() []Task {
	today := s.now().In(s.loc)
	out := []Task{}
	for _, t := range s.value.Get().Tasks {
		if t.IsDone {
			continue
		}
		due := t.DueDate()
		if due == nil || !sameDay(due.In(s.loc), today) {
			continue
		}
		out = append(out, t.clone())
	}
	return out
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// =============================================================================
// Notes
// =============================================================================

// AddNote creates a note.
func (s *Store) AddNote(in NewNote) (Note, error) {
	n := Note{
		ID:        uuid.NewString(),
		ProjectID: in.ProjectID,
		Title:     strings.TrimSpace(in.Title),
		Content:   in.Content,
		CreatedAt: utc(s.now()),
	}
	if err := s.check(n); err != nil {
		return Note{}, err
	}

	s.mutate(func(d *AppData) bool {
		d.Notes = append(d.Notes, n)
		return true
	})
	return n, nil
}

// UpdateNote replaces the note with n.ID wholesale, keeping its id and
// createdAt. An unknown id is a no-op.
func (s *Store) UpdateNote(n Note) error {
	n.Title = strings.TrimSpace(n.Title)

	var err error
	s.mutate(func(d *AppData) bool {
		i := slices.IndexFunc(d.Notes, func(x Note) bool { return x.ID == n.ID })
		if i < 0 {
			return false
		}
		if err = s.check(n); err != nil {
			return false
		}
		n.CreatedAt = d.Notes[i].CreatedAt
		d.Notes[i] = n
		return true
	})
	return err
}

// DeleteNote removes a note and reports whether it existed.
func (s *Store) DeleteNote(id string) bool {
	return s.mutate(func(d *AppData) bool {
		n := len(d.Notes)
		d.Notes = slices.DeleteFunc(d.Notes, func(x Note) bool { return x.ID == id })
		return len(d.Notes) != n
	})
}

// GetNoteByID looks up a note.
func (s *Store) GetNoteByID(id string) (Note, bool) {
	for _, n := range s.value.Get().Notes {
		if n.ID == id {
			return n, true
		}
	}
	return Note{}, false
}

// GetNotesByProjectID returns the project's notes, newest first.
func (s *Store) GetNotesByProjectID(projectID string) []Note {
	out := []Note{}
	for _, n := range s.value.Get().Notes {
		if n.ProjectID == projectID {
			out = append(out, n)
		}
	}
	slices.SortStableFunc(out, func(a, b Note) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out
}
