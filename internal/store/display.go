package store

import "time"

const (
	untitledNote   = "Untitled Note"
	unknownProject = "Unknown Project"
	noDate         = "No date"
)

// DisplayTitle is the title shown for the note; empty titles render as
// "Untitled Note".
func (n Note) DisplayTitle() string {
	if n.Title == "" {
		return untitledNote
	}
	return n.Title
}

// FormatDate renders a date like "Jan 2, 2006", or "No date" for nil.
func FormatDate(t *time.Time, loc *time.Location) string {
	if t == nil || t.IsZero() {
		return noDate
	}
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format("Jan 2, 2006")
}

// ProjectTitleOr returns the title of project id, or "Unknown Project".
func (s *Store) ProjectTitleOr(id string) string {
	if p, ok := s.GetProjectByID(id); ok {
		return p.Title
	}
	return unknownProject
}
