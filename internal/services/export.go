package services

import (
	"bytes"
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"afterschool-toast/internal/models"
)

const (
	rosterSheet = "Roster"
	ratioSheet  = "Ratios"
)

// ExportRoster writes every person and every active location ratio to an xlsx workbook
func (s *RosterService) ExportRoster(ctx context.Context) (*bytes.Buffer, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", rosterSheet); err != nil {
		return nil, errors.Wrap(err, "renaming sheet")
	}
	if err := writeRosterSheet(f, snap); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet(ratioSheet); err != nil {
		return nil, errors.Wrap(err, "creating ratio sheet")
	}
	if err := writeRatioSheet(f, snap); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, errors.Wrap(err, "writing workbook")
	}
	return buf, nil
}

func writeRosterSheet(f *excelize.File, snap *Snapshot) error {
	groups := make(map[string]string, len(snap.Groups))
	for _, g := range snap.Groups {
		groups[g.ID] = g.Name
	}

	header := []interface{}{"ID", "Type", "First Name", "Last Name", "Group", "Location", "Status", "Meds"}
	if err := f.SetSheetRow(rosterSheet, "A1", &header); err != nil {
		return errors.Wrap(err, "writing roster header")
	}

	row := 2
	for _, st := range SortByName(snap.Students) {
		meds := "No"
		if st.HasMeds {
			meds = "Yes"
		}
		values := []interface{}{
			st.ID, models.KindStudent.String(), st.FirstName, st.LastName,
			groups[st.GroupID], locationLabel(snap, st.CurrentLocID), string(st.Status()), meds,
		}
		if err := f.SetSheetRow(rosterSheet, fmt.Sprintf("A%d", row), &values); err != nil {
			return errors.Wrapf(err, "writing student %s", st.ID)
		}
		row++
	}
	for _, t := range SortByName(snap.Teachers) {
		status := string(models.StatusAbsent)
		if !models.IsNowhere(t.CurrentLocID) {
			status = "PRESENT"
		}
		values := []interface{}{
			t.ID, models.KindTeacher.String(), t.FirstName, t.LastName,
			"", locationLabel(snap, t.CurrentLocID), status, "",
		}
		if err := f.SetSheetRow(rosterSheet, fmt.Sprintf("A%d", row), &values); err != nil {
			return errors.Wrapf(err, "writing teacher %s", t.ID)
		}
		row++
	}
	return nil
}

func writeRatioSheet(f *excelize.File, snap *Snapshot) error {
	header := []interface{}{"Location", "Students", "Awaiting", "Teachers", "Ratio", "Level"}
	if err := f.SetSheetRow(ratioSheet, "A1", &header); err != nil {
		return errors.Wrap(err, "writing ratio header")
	}
	for i, sum := range snap.Summarize() {
		values := []interface{}{
			sum.Location.LocationName, len(sum.Settled), len(sum.Awaiting), len(sum.Teachers),
			sum.Ratio.Display(), string(sum.Level),
		}
		if err := f.SetSheetRow(ratioSheet, fmt.Sprintf("A%d", i+2), &values); err != nil {
			return errors.Wrapf(err, "writing ratio for %s", sum.Location.ID)
		}
	}
	return nil
}

func locationLabel(snap *Snapshot, locID string) string {
	if models.IsNowhere(locID) {
		return ""
	}
	return snap.LocationName(locID)
}
