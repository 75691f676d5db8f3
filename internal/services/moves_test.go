package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"afterschool-toast/internal/models"
)

// crowdedRoster has ten settled students and one teacher in the gym and a
// queue of students waiting in the cafeteria
func crowdedRoster(settings models.Settings) rosterData {
	students := append(studentsAt("gym", 10, "loc2"), studentsAt("caf", 6, "loc1")...)
	return rosterData{
		locations: []models.Location{loc("loc1", "Cafeteria", true), loc("loc2", "Gym", false)},
		students:  students,
		teachers:  []models.Teacher{teacherAt("t1", "loc1"), teacherAt("t2", "loc2")},
		settings:  settings,
	}
}

func TestRequestMove_AtMaxProceeds(t *testing.T) {
	f := newFixture(t, crowdedRoster(notifyingSettings()))
	movers := []string{"caf01", "caf02", "caf03"}

	out, err := f.svc.RequestMove(f.ctx, movers, "loc2")
	require.NoError(t, err)
	assert.True(t, out.Applied)
	assert.Nil(t, out.Pending)
	assert.False(t, out.Plan.RequiresConfirmation)
	assert.Equal(t, NewRatio(13, 1), out.Plan.Projections[0].After)

	for _, id := range movers {
		s := f.student(t, id)
		assert.Equal(t, "loc2", s.CurrentLocID)
		assert.True(t, s.AwaitingConfirmation)
	}
	assert.Empty(t, f.notifier.sent())
}

func TestRequestMove_OverMaxIsHeld(t *testing.T) {
	f := newFixture(t, crowdedRoster(notifyingSettings()))
	movers := []string{"caf01", "caf02", "caf03", "caf04"}

	out, err := f.svc.RequestMove(f.ctx, movers, "loc2")
	require.NoError(t, err)
	assert.False(t, out.Applied)
	require.NotNil(t, out.Pending)
	assert.True(t, out.Plan.RequiresConfirmation)
	assert.Equal(t, NewRatio(14, 1), out.Plan.Projections[0].After)
	assert.Contains(t, out.Plan.Message, "maximum ratio of 13:1")

	// nothing moved yet
	for _, id := range movers {
		assert.Equal(t, "loc1", f.student(t, id).CurrentLocID)
	}
	assert.Len(t, f.svc.PendingMoves(), 1)

	plan, err := f.svc.ConfirmPendingMove(f.ctx, out.Pending.ID)
	require.NoError(t, err)
	assert.Equal(t, "loc2", plan.TargetID)
	for _, id := range movers {
		assert.Equal(t, "loc2", f.student(t, id).CurrentLocID)
	}
	assert.Empty(t, f.svc.PendingMoves())

	sent := f.notifier.sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "Gym")
	assert.Contains(t, sent[0], "14.0:1")

	_, err = f.svc.ConfirmPendingMove(f.ctx, out.Pending.ID)
	assert.True(t, errors.Is(err, ErrPendingMoveNotFound))
}

func TestDeclinePendingMove_NoMutation(t *testing.T) {
	f := newFixture(t, crowdedRoster(notifyingSettings()))

	out, err := f.svc.RequestMove(f.ctx, []string{"caf01", "caf02", "caf03", "caf04"}, "loc2")
	require.NoError(t, err)
	require.NotNil(t, out.Pending)

	before, err := f.svc.Snapshot(f.ctx)
	require.NoError(t, err)

	require.NoError(t, f.svc.DeclinePendingMove(out.Pending.ID))
	after, err := f.svc.Snapshot(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, before.Students, after.Students)

	assert.True(t, errors.Is(f.svc.DeclinePendingMove(out.Pending.ID), ErrPendingMoveNotFound))
}

func TestRequestMove_NotGatedWithoutNotify(t *testing.T) {
	tests := []struct {
		name     string
		settings func(s *models.Settings)
	}{
		{name: "notify off", settings: func(s *models.Settings) { s.NotifyThresholdPassed = false }},
		{name: "max disabled", settings: func(s *models.Settings) { s.MaxThresholdEnabled = false }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := notifyingSettings()
			tt.settings(&settings)
			f := newFixture(t, crowdedRoster(settings))

			out, err := f.svc.RequestMove(f.ctx, []string{"caf01", "caf02", "caf03", "caf04", "caf05"}, "loc2")
			require.NoError(t, err)
			assert.True(t, out.Applied)
			assert.Empty(t, f.notifier.sent())
		})
	}
}

func TestRequestMove_NoTeachersNeverGates(t *testing.T) {
	f := newFixture(t, rosterData{
		locations: []models.Location{loc("loc1", "Cafeteria", true), loc("loc2", "Gym", false)},
		students:  append(studentsAt("a", 5, "loc1"), studentsAt("b", 20, "loc2")...),
		settings:  notifyingSettings(),
	})

	summaries, err := f.svc.LocationSummaries(f.ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, 0, len(summaries[0].Teachers))
	assert.Equal(t, "N/A", summaries[0].Ratio.Display())
	assert.Equal(t, LevelNA, summaries[0].Level)

	out, err := f.svc.RequestMove(f.ctx, ids(studentsAt("b", 20, "loc2")), "loc1")
	require.NoError(t, err)
	assert.True(t, out.Applied)
}

func TestPlanMove_TeacherLeavingGatesSource(t *testing.T) {
	f := newFixture(t, rosterData{
		locations: []models.Location{loc("loc1", "Cafeteria", true), loc("loc2", "Gym", false)},
		students:  studentsAt("s", 20, "loc1"),
		teachers:  []models.Teacher{teacherAt("t1", "loc1"), teacherAt("t2", "loc1")},
		settings:  notifyingSettings(),
	})

	plan, err := f.svc.PlanMove(f.ctx, []string{"t1"}, "loc2")
	require.NoError(t, err)
	assert.True(t, plan.RequiresConfirmation)
	assert.Equal(t, []string{"t1"}, plan.TeacherIDs)
	require.Len(t, plan.Projections, 2)

	target, source := plan.Projections[0], plan.Projections[1]
	assert.Equal(t, "loc2", target.LocationID)
	assert.Equal(t, NewRatio(0, 1), target.After)
	assert.Equal(t, "loc1", source.LocationID)
	assert.Equal(t, NewRatio(20, 2), source.Before)
	assert.Equal(t, NewRatio(20, 1), source.After)
	assert.Equal(t, LevelDanger, source.Level)
	assert.Contains(t, plan.Message, "this teacher")
}

func TestPlanMove_Errors(t *testing.T) {
	f := newFixture(t, rosterData{
		locations: []models.Location{
			loc("loc1", "Cafeteria", true),
			{ID: "loc9", LocationName: "Library", IsActive: false},
		},
		students: []models.Student{studentAt("s1", "loc1"), studentAt("home", models.LocationNone)},
	})

	tests := []struct {
		name    string
		ids     []string
		target  string
		wantErr error
	}{
		{name: "unknown location", ids: []string{"s1"}, target: "nowhere", wantErr: ErrLocationNotFound},
		{name: "inactive location", ids: []string{"s1"}, target: "loc9", wantErr: ErrLocationNotFound},
		{name: "unknown person", ids: []string{"ghost"}, target: "loc1", wantErr: ErrEntityNotFound},
		{name: "absent person", ids: []string{"home"}, target: "loc1", wantErr: ErrNotPresent},
		{name: "already there", ids: []string{"s1"}, target: "loc1", wantErr: ErrNothingToMove},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.PlanMove(f.ctx, tt.ids, tt.target)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestConfirmPendingMove_ReplansAgainstCurrentRoster(t *testing.T) {
	f := newFixture(t, crowdedRoster(notifyingSettings()))

	out, err := f.svc.RequestMove(f.ctx, []string{"caf01", "caf02", "caf03", "caf04"}, "loc2")
	require.NoError(t, err)
	require.NotNil(t, out.Pending)

	require.NoError(t, f.svc.MarkStudentAbsent(f.ctx, "caf02"))

	_, err = f.svc.ConfirmPendingMove(f.ctx, out.Pending.ID)
	assert.True(t, errors.Is(err, ErrNotPresent))
	assert.Equal(t, models.LocationNone, f.student(t, "caf02").CurrentLocID)
	assert.Equal(t, "loc1", f.student(t, "caf01").CurrentLocID)
}

func TestPendingMoves_Expire(t *testing.T) {
	f := newFixture(t, crowdedRoster(notifyingSettings()))
	now := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return now }

	out, err := f.svc.RequestMove(f.ctx, []string{"caf01", "caf02", "caf03", "caf04"}, "loc2")
	require.NoError(t, err)
	require.NotNil(t, out.Pending)

	now = now.Add(pendingMoveTTL + time.Second)
	assert.Empty(t, f.svc.PendingMoves())
	_, err = f.svc.ConfirmPendingMove(f.ctx, out.Pending.ID)
	assert.True(t, errors.Is(err, ErrPendingMoveNotFound))
}
