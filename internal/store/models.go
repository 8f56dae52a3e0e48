// Package store owns the DevDiary aggregate: projects, their tasks and notes,
// and the AI credential. Every mutation is a pure transform of the previous
// aggregate handed to a persist.Value, so there are no partial writes.
package store

import (
	"encoding/json"
	"slices"
	"time"
)

// Project groups tasks and notes. Titles are unique ignoring case.
type Project struct {
	ID        string    `json:"id"`
	Title     string    `json:"title" validate:"required,max=50"`
	CreatedAt time.Time `json:"createdAt"`
}

// Task is a unit of work inside a project.
type Task struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"projectId"`
	Title       string     `json:"title" validate:"required,max=100"`
	Description string     `json:"description" validate:"max=500"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
	IsDone      bool       `json:"isDone"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// UnmarshalJSON accepts the single-date task shape, mapping dueDate to
// EndDate when endDate is absent.
func (t *Task) UnmarshalJSON(data []byte) error {
	type plain Task
	var aux struct {
		plain
		DueDate *time.Time `json:"dueDate"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*t = Task(aux.plain)
	if t.EndDate == nil && aux.DueDate != nil {
		t.EndDate = aux.DueDate
	}
	return nil
}

// DueDate is the date a task is scheduled for: its end date, or its start
// date when no end date is set.
func (t Task) DueDate() *time.Time {
	if t.EndDate != nil {
		return t.EndDate
	}
	return t.StartDate
}

// Note is free text attached to a project. An empty title is stored as is.
type Note struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	Title     string    `json:"title" validate:"max=100"`
	Content   string    `json:"content" validate:"required"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewTask is the caller-supplied part of a Task.
type NewTask struct {
	ProjectID   string     `json:"projectId"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
}

// NewNote is the caller-supplied part of a Note.
type NewNote struct {
	ProjectID string `json:"projectId"`
	Title     string `json:"title"`
	Content   string `json:"content"`
}

// AppData is the aggregate persisted under a single storage key.
type AppData struct {
	Projects []Project `json:"projects"`
	Tasks    []Task    `json:"tasks"`
	Notes    []Note    `json:"notes"`
	APIKey   string    `json:"apiKey"`
}

// DefaultAppData is the empty aggregate used on first run.
func DefaultAppData() AppData {
	return AppData{
		Projects: []Project{},
		Tasks:    []Task{},
		Notes:    []Note{},
	}
}

// MarshalJSON writes empty arrays instead of null.
func (d AppData) MarshalJSON() ([]byte, error) {
	type plain AppData
	p := plain(d.normalized())
	return json.Marshal(p)
}

func (d AppData) normalized() AppData {
	if d.Projects == nil {
		d.Projects = []Project{}
	}
	if d.Tasks == nil {
		d.Tasks = []Task{}
	}
	if d.Notes == nil {
		d.Notes = []Note{}
	}
	return d
}

// Clone returns a deep copy.
func (d AppData) Clone() AppData {
	out := AppData{
		Projects: slices.Clone(d.Projects),
		Tasks:    make([]Task, len(d.Tasks)),
		Notes:    slices.Clone(d.Notes),
		APIKey:   d.APIKey,
	}
	for i, t := range d.Tasks {
		out.Tasks[i] = t.clone()
	}
	return out.normalized()
}

func (t Task) clone() Task {
	t.StartDate = cloneTime(t.StartDate)
	t.EndDate = cloneTime(t.EndDate)
	return t
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// utc strips the monotonic reading and location so values survive a JSON
// round trip unchanged.
func utc(t time.Time) time.Time {
	return t.UTC().Round(0)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := utc(*t)
	return &u
}
