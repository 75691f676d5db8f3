package handlers

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"afterschool-toast/internal/models"
	"afterschool-toast/internal/repository"
	"afterschool-toast/internal/seed"
	"afterschool-toast/internal/services"
)

func newTestHandler(t *testing.T, settings models.Settings, students []models.Student) (*CommandHandler, *services.RosterService) {
	t.Helper()
	bundle, err := seed.FromRecords(
		[]models.Location{
			{ID: "loc1", LocationName: "Cafeteria", IsActive: true, IsDefault: true},
			{ID: "loc2", LocationName: "Gym", IsActive: true},
		},
		students,
		[]models.Teacher{
			{ID: "t1", FirstName: "Maria", LastName: "Lopez", CurrentLocID: "loc1", Present: true},
			{ID: "t2", FirstName: "John", LastName: "Marsh", CurrentLocID: "loc2", Present: true},
		},
		[]models.Group{{ID: "g1", Name: "K"}},
		settings,
	)
	require.NoError(t, err)

	store := repository.NewRosterStore(repository.NewMemoryKV(), bundle)
	require.NoError(t, store.InitializeAll(context.Background()))
	svc := services.NewRosterService(store, nil, zap.NewNop())
	return NewCommandHandler(svc, zap.NewNop()), svc
}

func basicStudents() []models.Student {
	return []models.Student{
		{ID: "s1", FirstName: "Ava", LastName: "Lee", GroupID: "g1", CurrentLocID: "loc1", PreviousLocID: models.LocationNone, Present: true},
		{ID: "s2", FirstName: "Ben", LastName: "Ortiz", GroupID: "g1", CurrentLocID: "loc1", PreviousLocID: models.LocationNone, Present: true},
		{ID: "s3", FirstName: "Cleo", LastName: "Park", GroupID: "g1", CurrentLocID: models.LocationNone, PreviousLocID: models.LocationNone},
	}
}

func TestHandle(t *testing.T) {
	tests := []struct {
		name     string
		command  string
		args     []string
		contains []string
	}{
		{name: "start", command: "start", contains: []string{"Afterschool Toast", "/move"}},
		{name: "locations", command: "locations", contains: []string{"Cafeteria", "Ava Lee, Ben Ortiz", "John Marsh"}},
		{name: "ratios", command: "ratios", contains: []string{"Cafeteria: 2.0:1", "Gym: 0.0:1"}},
		{name: "where", command: "where", args: []string{"cleo"}, contains: []string{"Cleo Park [student, s3]: not here"}},
		{name: "where teacher", command: "where", args: []string{"marsh"}, contains: []string{"[teacher, t2]: Gym"}},
		{name: "where nobody", command: "where", args: []string{"zed"}, contains: []string{"Nobody matches"}},
		{name: "where usage", command: "where", contains: []string{"Usage: /where <name>"}},
		{name: "present", command: "present", contains: []string{"2 students, 2 teachers"}},
		{name: "absent", command: "absent", contains: []string{"1 students", "Cleo Park"}},
		{name: "awaiting none", command: "awaiting", contains: []string{"No arrivals"}},
		{name: "unknown id", command: "here", args: []string{"zz"}, contains: []string{"No such student or teacher"}},
		{name: "unknown location", command: "move", args: []string{"loc9", "s1"}, contains: []string{"No such location"}},
		{name: "absent mover", command: "move", args: []string{"loc2", "s3"}, contains: []string{"present can be moved"}},
		{name: "move usage", command: "move", args: []string{"loc2"}, contains: []string{"Usage: /move", "loc1 (Cafeteria), loc2 (Gym)"}},
		{name: "unknown command", command: "dance", contains: []string{"Unknown command"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHandler(t, models.DefaultSettings(), basicStudents())
			reply := h.Handle(context.Background(), tt.command, tt.args)
			for _, want := range tt.contains {
				assert.Contains(t, reply.Text, want)
			}
			assert.Empty(t, reply.PendingMoveID)
		})
	}
}

func TestHandle_MoveConfirmReject(t *testing.T) {
	ctx := context.Background()
	h, svc := newTestHandler(t, models.DefaultSettings(), basicStudents())

	reply := h.Handle(ctx, "move", []string{"loc2", "s1", "s2"})
	assert.Contains(t, reply.Text, "Moving 2 to Gym")

	reply = h.Handle(ctx, "awaiting", []string{"loc2"})
	assert.Contains(t, reply.Text, "Ava Lee [s1] → Gym")
	assert.Contains(t, reply.Text, "Ben Ortiz [s2] → Gym")

	reply = h.Handle(ctx, "confirm", []string{"s1"})
	assert.Contains(t, reply.Text, "1 arrival(s) confirmed")
	reply = h.Handle(ctx, "reject", []string{"s2"})
	assert.Contains(t, reply.Text, "sent back")

	snap, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "loc2", snap.Students[0].CurrentLocID)
	assert.False(t, snap.Students[0].AwaitingConfirmation)
	assert.Equal(t, "loc1", snap.Students[1].CurrentLocID)
}

func TestHandle_HereAndGone(t *testing.T) {
	ctx := context.Background()
	h, svc := newTestHandler(t, models.DefaultSettings(), basicStudents())

	assert.Contains(t, h.Handle(ctx, "here", []string{"s3"}).Text, "Cleo Park signed in")
	assert.Contains(t, h.Handle(ctx, "gone", []string{"t2"}).Text, "John Marsh signed out")

	snap, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "loc1", snap.Students[2].CurrentLocID)
	assert.Equal(t, models.LocationNone, snap.Teachers[1].CurrentLocID)
}

func TestHandle_GatedMoveCallbacks(t *testing.T) {
	ctx := context.Background()
	settings := models.DefaultSettings()
	settings.NotifyThresholdPassed = true
	settings.MaxThreshold = 1

	h, svc := newTestHandler(t, settings, basicStudents())

	reply := h.Handle(ctx, "move", []string{"loc2", "s1", "s2"})
	require.NotEmpty(t, reply.PendingMoveID)
	assert.Contains(t, reply.Text, "Are you sure")

	declined := h.HandleCallback(ctx, CallbackDeclineMove+reply.PendingMoveID)
	assert.Contains(t, declined.Text, "Nobody was moved")
	again := h.HandleCallback(ctx, CallbackDeclineMove+reply.PendingMoveID)
	assert.Contains(t, again.Text, "already answered")

	reply = h.Handle(ctx, "move", []string{"loc2", "s1", "s2"})
	require.NotEmpty(t, reply.PendingMoveID)
	confirmed := h.HandleCallback(ctx, CallbackConfirmMove+reply.PendingMoveID)
	assert.Contains(t, confirmed.Text, "Moved 2 to Gym")

	snap, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "loc2", snap.Students[0].CurrentLocID)
	assert.Equal(t, "loc2", snap.Students[1].CurrentLocID)

	assert.Equal(t, "Unknown action.", h.HandleCallback(ctx, "xx").Text)
}

// failingRoster fails every snapshot read
type failingRoster struct {
	services.RosterOperator
}

func (failingRoster) Snapshot(context.Context) (*services.Snapshot, error) {
	return nil, errors.New("disk on fire")
}

func TestHandle_InternalErrorIsHidden(t *testing.T) {
	h := NewCommandHandler(failingRoster{}, zap.NewNop())
	reply := h.Handle(context.Background(), "present", nil)
	assert.True(t, strings.HasPrefix(reply.Text, "⚠️"))
	assert.NotContains(t, reply.Text, "disk on fire")
}
