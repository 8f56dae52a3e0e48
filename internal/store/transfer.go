package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrInvalidImport is returned when an import payload does not have the
// AppData shape. The aggregate is left unchanged.
var ErrInvalidImport = errors.New("store: invalid import data")

// importSchema accepts any document with projects, tasks and notes arrays.
// Extra fields are allowed everywhere.
const importSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["projects", "tasks", "notes"],
  "properties": {
    "projects": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "title"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "title": {"type": "string"},
          "createdAt": {"type": "string"}
        }
      }
    },
    "tasks": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "projectId", "title"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "projectId": {"type": "string"},
          "title": {"type": "string"},
          "description": {"type": "string"},
          "isDone": {"type": "boolean"},
          "startDate": {"type": ["string", "null"]},
          "endDate": {"type": ["string", "null"]},
          "dueDate": {"type": ["string", "null"]},
          "createdAt": {"type": "string"}
        }
      }
    },
    "notes": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "projectId", "content"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "projectId": {"type": "string"},
          "title": {"type": "string"},
          "content": {"type": "string"},
          "createdAt": {"type": "string"}
        }
      }
    },
    "apiKey": {"type": ["string", "null"]}
  }
}`

var compiledImportSchema = jsonschema.MustCompileString("devdiary-import.json", importSchema)

// Export returns the aggregate as indented JSON, the same shape that is
// persisted.
func (s *Store) Export() ([]byte, error) {
	data, err := json.MarshalIndent(s.value.Get(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("store: failed to export: %w", err)
	}
	return data, nil
}

// BackupFileName is the suggested file name for an export taken at t.
func BackupFileName(t time.Time) string {
	return "devdiary_backup_" + t.Format(time.DateOnly) + ".json"
}

// ImportData replaces the whole aggregate with payload. A missing or empty
// apiKey keeps the current one.
func (s *Store) ImportData(payload []byte) error {
	imported, err := decodeImport(payload)
	if err != nil {
		s.log.Warnw("Rejected import", "error", err)
		return err
	}

	s.mutate(func(d *AppData) bool {
		if imported.APIKey == "" {
			imported.APIKey = d.APIKey
		}
		*d = imported
		return true
	})
	s.log.Debugw("Imported data",
		"projects", len(imported.Projects),
		"tasks", len(imported.Tasks),
		"notes", len(imported.Notes))
	return nil
}

func decodeImport(payload []byte) (AppData, error) {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return AppData{}, fmt.Errorf("%w: %w", ErrInvalidImport, err)
	}
	if err := compiledImportSchema.Validate(doc); err != nil {
		return AppData{}, fmt.Errorf("%w: %w", ErrInvalidImport, err)
	}

	var d AppData
	if err := json.Unmarshal(payload, &d); err != nil {
		return AppData{}, fmt.Errorf("%w: %w", ErrInvalidImport, err)
	}

	d = d.normalized()
	if err := checkAggregate(d); err != nil {
		return AppData{}, fmt.Errorf("%w: %w", ErrInvalidImport, err)
	}
	for i := range d.Projects {
		d.Projects[i].CreatedAt = utc(d.Projects[i].CreatedAt)
	}
	for i := range d.Tasks {
		t := &d.Tasks[i]
		t.CreatedAt = utc(t.CreatedAt)
		t.StartDate = utcPtr(t.StartDate)
		t.EndDate = utcPtr(t.EndDate)
	}
	for i := range d.Notes {
		d.Notes[i].CreatedAt = utc(d.Notes[i].CreatedAt)
	}
	return d, nil
}

// checkAggregate enforces the invariants the store keeps on every write:
// ids are unique within each collection and project titles are unique
// ignoring case.
func checkAggregate(d AppData) error {
	projectIDs := make(map[string]struct{}, len(d.Projects))
	for i, p := range d.Projects {
		if _, dup := projectIDs[p.ID]; dup {
			return fmt.Errorf("duplicate project id %q", p.ID)
		}
		projectIDs[p.ID] = struct{}{}
		if hasTitle(d.Projects[:i], p.Title, "") {
			return fmt.Errorf("duplicate project title %q", p.Title)
		}
	}

	taskIDs := make(map[string]struct{}, len(d.Tasks))
	for _, t := range d.Tasks {
		if _, dup := taskIDs[t.ID]; dup {
			return fmt.Errorf("duplicate task id %q", t.ID)
		}
		taskIDs[t.ID] = struct{}{}
	}

	noteIDs := make(map[string]struct{}, len(d.Notes))
	for _, n := range d.Notes {
		if _, dup := noteIDs[n.ID]; dup {
			return fmt.Errorf("duplicate note id %q", n.ID)
		}
		noteIDs[n.ID] = struct{}{}
	}
	return nil
}
