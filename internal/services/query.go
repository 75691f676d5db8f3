package services

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"afterschool-toast/internal/models"
)

// StudentsAt splits the students at locID into settled and awaiting confirmation
func StudentsAt(ss []models.Student, locID string) (settled, awaiting []models.Student) {
	for _, s := range ss {
		if !s.IsAt(locID) {
			continue
		}
		if s.AwaitingConfirmation {
			awaiting = append(awaiting, s)
		} else {
			settled = append(settled, s)
		}
	}
	return settled, awaiting
}

// TeachersAt returns the teachers at locID
func TeachersAt(ts []models.Teacher, locID string) []models.Teacher {
	var out []models.Teacher
	for _, t := range ts {
		if t.IsAt(locID) {
			out = append(out, t)
		}
	}
	return out
}

func PresentStudents(ss []models.Student) []models.Student {
	present, _ := partition(ss, func(s models.Student) string { return s.CurrentLocID })
	return present
}

func AbsentStudents(ss []models.Student) []models.Student {
	_, absent := partition(ss, func(s models.Student) string { return s.CurrentLocID })
	return absent
}

func PresentTeachers(ts []models.Teacher) []models.Teacher {
	present, _ := partition(ts, func(t models.Teacher) string { return t.CurrentLocID })
	return present
}

func AbsentTeachers(ts []models.Teacher) []models.Teacher {
	_, absent := partition(ts, func(t models.Teacher) string { return t.CurrentLocID })
	return absent
}

func partition[T any](items []T, locOf func(T) string) (present, absent []T) {
	for _, it := range items {
		if !models.IsNowhere(locOf(it)) {
			present = append(present, it)
		} else {
			absent = append(absent, it)
		}
	}
	return present, absent
}

// SortByName returns a copy of items ordered by first name, then last name
func SortByName[T models.Named](items []T) []T {
	out := append([]T(nil), items...)
	// Collator keeps internal buffers, one per call.
	c := collate.New(language.English)
	sort.SliceStable(out, func(i, j int) bool {
		fi, li := out[i].NameParts()
		fj, lj := out[j].NameParts()
		if cmp := c.CompareString(fi, fj); cmp != 0 {
			return cmp < 0
		}
		return c.CompareString(li, lj) < 0
	})
	return out
}

// FilterByName keeps items whose first or last name contains query, ignoring case.
// A blank query keeps everything.
func FilterByName[T models.Named](items []T, query string) []T {
	if strings.TrimSpace(query) == "" {
		return items
	}
	q := strings.ToLower(query)
	var out []T
	for _, it := range items {
		first, last := it.NameParts()
		if strings.Contains(strings.ToLower(first), q) || strings.Contains(strings.ToLower(last), q) {
			out = append(out, it)
		}
	}
	return out
}

// FilterByGroups keeps students whose group is in groupIDs. An empty selection keeps nobody.
func FilterByGroups(ss []models.Student, groupIDs []string) []models.Student {
	selected := make(map[string]struct{}, len(groupIDs))
	for _, id := range groupIDs {
		selected[id] = struct{}{}
	}
	var out []models.Student
	for _, s := range ss {
		if _, ok := selected[s.GroupID]; ok {
			out = append(out, s)
		}
	}
	return out
}

// MoveTargets lists the active locations a group currently at fromLocIDs can be moved to
func MoveTargets(locs []models.Location, fromLocIDs ...string) []models.Location {
	exclude := make(map[string]bool, len(fromLocIDs))
	for _, id := range fromLocIDs {
		exclude[id] = true
	}
	var out []models.Location
	for _, l := range locs {
		if l.IsActive && !exclude[l.ID] {
			out = append(out, l)
		}
	}
	return out
}

// ScheduledOn returns the students and teachers whose usual days include day
func ScheduledOn(ss []models.Student, ts []models.Teacher, day string) ([]models.Student, []models.Teacher) {
	var students []models.Student
	for _, s := range ss {
		if s.AttendsOn(day) {
			students = append(students, s)
		}
	}
	var teachers []models.Teacher
	for _, t := range ts {
		if t.AttendsOn(day) {
			teachers = append(teachers, t)
		}
	}
	return students, teachers
}

// LocationSummary is the occupancy and ratio of one location
type LocationSummary struct {
	Location models.Location
	Settled  []models.Student
	Awaiting []models.Student
	Teachers []models.Teacher
	Ratio    Ratio
	Level    Level
}

// Summarize builds the summary of every active location in the snapshot
func (snap *Snapshot) Summarize() []LocationSummary {
	var out []LocationSummary
	for _, loc := range snap.Locations {
		if !loc.IsActive {
			continue
		}
		settled, awaiting := StudentsAt(snap.Students, loc.ID)
		teachers := TeachersAt(snap.Teachers, loc.ID)
		r := NewRatio(len(settled), len(teachers))
		out = append(out, LocationSummary{
			Location: loc,
			Settled:  SortByName(settled),
			Awaiting: SortByName(awaiting),
			Teachers: SortByName(teachers),
			Ratio:    r,
			Level:    r.Classify(snap.Settings),
		})
	}
	return out
}

// LocationSummaries returns the summary of every active location
func (s *RosterService) LocationSummaries(ctx context.Context) ([]LocationSummary, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Summarize(), nil
}

// FindPeople returns the students and teachers matching query, sorted by name
func (s *RosterService) FindPeople(ctx context.Context, query string) ([]models.Person, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	var people []models.Person
	for _, st := range SortByName(FilterByName(snap.Students, query)) {
		people = append(people, models.StudentPerson(st))
	}
	for _, t := range SortByName(FilterByName(snap.Teachers, query)) {
		people = append(people, models.TeacherPerson(t))
	}
	return people, nil
}

// ResolvePeople looks every id up among students first, then teachers
func (s *RosterService) ResolvePeople(ctx context.Context, ids []string) ([]models.Person, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.resolve(ids)
}

func (snap *Snapshot) resolve(ids []string) ([]models.Person, error) {
	students := indexStudents(snap.Students)
	people := make([]models.Person, 0, len(ids))
	for _, id := range ids {
		if i, ok := students[id]; ok {
			people = append(people, models.StudentPerson(snap.Students[i]))
			continue
		}
		found := false
		for _, t := range snap.Teachers {
			if t.ID == id {
				people = append(people, models.TeacherPerson(t))
				found = true
				break
			}
		}
		if !found {
			return nil, errors.Wrapf(ErrEntityNotFound, "person %s", id)
		}
	}
	return people, nil
}
