package services

import (
	"context"

	"go.uber.org/zap"

	"afterschool-toast/internal/models"
)

// TeacherProfileUpdate carries the teacher fields to merge. Nil fields are left untouched.
type TeacherProfileUpdate struct {
	FirstName *string  `json:"firstName" validate:"omitnil,min=1,max=50"`
	LastName  *string  `json:"lastName" validate:"omitnil,max=50"`
	DOB       *string  `json:"dob" validate:"omitnil,datetime=2006-01-02"`
	Days      []string `json:"days" validate:"omitempty,dive,weekday"`
}

func (s *RosterService) updateTeacher(ctx context.Context, id string, fn func(*models.Teacher)) error {
	return s.store.Teachers.Update(ctx, func(ts []models.Teacher) ([]models.Teacher, error) {
		for i := range ts {
			if ts[i].ID == id {
				fn(&ts[i])
				return ts, nil
			}
		}
		return nil, teacherNotFound(id)
	})
}

// MarkTeacherPresent places the teacher at the default location. Teachers arriving
// never go through move gating.
func (s *RosterService) MarkTeacherPresent(ctx context.Context, id string) error {
	locID, err := s.defaultLocationID(ctx)
	if err != nil {
		return err
	}
	if err := s.updateTeacher(ctx, id, func(t *models.Teacher) {
		t.CurrentLocID = locID
		t.Present = true
	}); err != nil {
		return err
	}
	s.logger.Info("teacher marked present", zap.String("teacher", id), zap.String("location", locID))
	return nil
}

func (s *RosterService) MarkTeacherAbsent(ctx context.Context, id string) error {
	if err := s.updateTeacher(ctx, id, func(t *models.Teacher) {
		t.CurrentLocID = models.LocationNone
		t.Present = false
	}); err != nil {
		return err
	}
	s.logger.Info("teacher marked absent", zap.String("teacher", id))
	return nil
}

// MoveTeacher moves a single teacher. The move applies immediately.
func (s *RosterService) MoveTeacher(ctx context.Context, id, newLocID string) error {
	if err := s.updateTeacher(ctx, id, func(t *models.Teacher) {
		t.CurrentLocID = newLocID
	}); err != nil {
		return err
	}
	s.logger.Info("teacher moved", zap.String("teacher", id), zap.String("location", newLocID))
	return nil
}

func (s *RosterService) UpdateTeacherProfile(ctx context.Context, id string, upd TeacherProfileUpdate) error {
	if err := validateStruct(upd); err != nil {
		return err
	}
	return s.updateTeacher(ctx, id, func(t *models.Teacher) {
		if upd.FirstName != nil {
			t.FirstName = *upd.FirstName
		}
		if upd.LastName != nil {
			t.LastName = *upd.LastName
		}
		if upd.DOB != nil {
			t.DOB = *upd.DOB
		}
		if upd.Days != nil {
			t.Days = append([]string{}, upd.Days...)
		}
	})
}
