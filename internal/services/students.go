package services

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"afterschool-toast/internal/models"
)

// StudentProfileUpdate carries the profile fields to merge. Nil fields are left untouched.
type StudentProfileUpdate struct {
	FirstName *string  `json:"firstName" validate:"omitnil,min=1,max=50"`
	LastName  *string  `json:"lastName" validate:"omitnil,max=50"`
	DOB       *string  `json:"dob" validate:"omitnil,datetime=2006-01-02"`
	GroupID   *string  `json:"groupID" validate:"omitnil,min=1"`
	HasMeds   *bool    `json:"hasMeds"`
	Days      []string `json:"days" validate:"omitempty,dive,weekday"`
}

func indexStudents(ss []models.Student) map[string]int {
	idx := make(map[string]int, len(ss))
	for i, s := range ss {
		idx[s.ID] = i
	}
	return idx
}

// updateStudent applies fn to a single student inside one collection update
func (s *RosterService) updateStudent(ctx context.Context, id string, fn func(*models.Student) error) error {
	return s.store.Students.Update(ctx, func(ss []models.Student) ([]models.Student, error) {
		i, ok := indexStudents(ss)[id]
		if !ok {
			return nil, studentNotFound(id)
		}
		if err := fn(&ss[i]); err != nil {
			return nil, err
		}
		return ss, nil
	})
}

// defaultLocationID returns the id of the location flagged isDefault
func (s *RosterService) defaultLocationID(ctx context.Context) (string, error) {
	locs, err := s.store.Locations.Read(ctx)
	if err != nil {
		return "", err
	}
	for _, l := range locs {
		if l.IsDefault {
			return l.ID, nil
		}
	}
	return "", ErrNoDefaultLocation
}

// MarkStudentPresent places the student at the default location
func (s *RosterService) MarkStudentPresent(ctx context.Context, id string) error {
	locID, err := s.defaultLocationID(ctx)
	if err != nil {
		return err
	}
	if err := s.updateStudent(ctx, id, func(st *models.Student) error {
		st.CurrentLocID = locID
		st.Present = true
		return nil
	}); err != nil {
		return err
	}
	s.logger.Info("student marked present", zap.String("student", id), zap.String("location", locID))
	return nil
}

// MarkStudentAbsent clears every presence field of the student
func (s *RosterService) MarkStudentAbsent(ctx context.Context, id string) error {
	if err := s.updateStudent(ctx, id, func(st *models.Student) error {
		st.CurrentLocID = models.LocationNone
		st.PreviousLocID = models.LocationNone
		st.AwaitingConfirmation = false
		st.Present = false
		return nil
	}); err != nil {
		return err
	}
	s.logger.Info("student marked absent", zap.String("student", id))
	return nil
}

// MoveStudents moves every listed student to newLocID and flags them as awaiting
// confirmation. An unknown id aborts the whole batch before anything is written.
func (s *RosterService) MoveStudents(ctx context.Context, ids []string, newLocID string) error {
	err := s.store.Students.Update(ctx, func(ss []models.Student) ([]models.Student, error) {
		idx := indexStudents(ss)
		seen := make(map[string]bool, len(ids))
		for _, id := range ids {
			i, ok := idx[id]
			if !ok {
				return nil, studentNotFound(id)
			}
			// a repeated id would overwrite previousLocID with newLocID
			if seen[id] {
				continue
			}
			seen[id] = true
			ss[i].PreviousLocID = ss[i].CurrentLocID
			ss[i].CurrentLocID = newLocID
			ss[i].AwaitingConfirmation = true
		}
		return ss, nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("students moved",
		zap.Strings("students", ids),
		zap.String("location", newLocID))
	return nil
}

// ConfirmArrival settles a student at the current location
func (s *RosterService) ConfirmArrival(ctx context.Context, id string) error {
	return s.updateStudent(ctx, id, func(st *models.Student) error {
		st.AwaitingConfirmation = false
		return nil
	})
}

// RejectArrival sends an awaiting student back to the previous location.
// A student who is not awaiting is left unchanged.
func (s *RosterService) RejectArrival(ctx context.Context, id string) error {
	return s.updateStudent(ctx, id, func(st *models.Student) error {
		if !st.AwaitingConfirmation {
			return nil
		}
		st.CurrentLocID = st.PreviousLocID
		st.AwaitingConfirmation = false
		return nil
	})
}

// UpdateStudentProfile merges the non-nil fields of upd into the student
func (s *RosterService) UpdateStudentProfile(ctx context.Context, id string, upd StudentProfileUpdate) error {
	if err := validateStruct(upd); err != nil {
		return err
	}
	if upd.GroupID != nil {
		groups, err := s.store.Groups.Read(ctx)
		if err != nil {
			return err
		}
		if !hasGroup(groups, *upd.GroupID) {
			return errors.Wrapf(ErrGroupNotFound, "group %s", *upd.GroupID)
		}
	}

	return s.updateStudent(ctx, id, func(st *models.Student) error {
		if upd.FirstName != nil {
			st.FirstName = *upd.FirstName
		}
		if upd.LastName != nil {
			st.LastName = *upd.LastName
		}
		if upd.DOB != nil {
			st.DOB = *upd.DOB
		}
		if upd.GroupID != nil {
			st.GroupID = *upd.GroupID
		}
		if upd.HasMeds != nil {
			st.HasMeds = *upd.HasMeds
		}
		if upd.Days != nil {
			st.Days = append([]string{}, upd.Days...)
		}
		return nil
	})
}

func hasGroup(groups []models.Group, id string) bool {
	for _, g := range groups {
		if g.ID == id {
			return true
		}
	}
	return false
}
