package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"afterschool-toast/internal/models"
	"afterschool-toast/internal/repository"
	"afterschool-toast/internal/seed"
)

// mockBotNotifier records notifications
type mockBotNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (m *mockBotNotifier) SendNotification(message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, message)
}

func (m *mockBotNotifier) sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.messages...)
}

type fixture struct {
	ctx      context.Context
	kv       *repository.MemoryKV
	svc      *RosterService
	notifier *mockBotNotifier
}

type rosterData struct {
	locations []models.Location
	students  []models.Student
	teachers  []models.Teacher
	groups    []models.Group
	settings  models.Settings
}

func newFixture(t *testing.T, data rosterData) *fixture {
	t.Helper()
	if data.settings == (models.Settings{}) {
		data.settings = models.DefaultSettings()
	}
	bundle, err := seed.FromRecords(data.locations, data.students, data.teachers, data.groups, data.settings)
	require.NoError(t, err)

	ctx := context.Background()
	kv := repository.NewMemoryKV()
	store := repository.NewRosterStore(kv, bundle)
	require.NoError(t, store.InitializeAll(ctx))

	notifier := &mockBotNotifier{}
	return &fixture{
		ctx:      ctx,
		kv:       kv,
		svc:      NewRosterService(store, notifier, zap.NewNop()),
		notifier: notifier,
	}
}

func (f *fixture) student(t *testing.T, id string) models.Student {
	t.Helper()
	snap, err := f.svc.Snapshot(f.ctx)
	require.NoError(t, err)
	for _, s := range snap.Students {
		if s.ID == id {
			return s
		}
	}
	t.Fatalf("student %s not found", id)
	return models.Student{}
}

func (f *fixture) teacher(t *testing.T, id string) models.Teacher {
	t.Helper()
	snap, err := f.svc.Snapshot(f.ctx)
	require.NoError(t, err)
	for _, tc := range snap.Teachers {
		if tc.ID == id {
			return tc
		}
	}
	t.Fatalf("teacher %s not found", id)
	return models.Teacher{}
}

func loc(id, name string, isDefault bool) models.Location {
	return models.Location{ID: id, LocationName: name, IsActive: true, IsDefault: isDefault}
}

func studentAt(id, locID string) models.Student {
	present := locID != models.LocationNone
	return models.Student{
		ID:            id,
		FirstName:     "Student",
		LastName:      id,
		GroupID:       "g1",
		CurrentLocID:  locID,
		PreviousLocID: models.LocationNone,
		Present:       present,
	}
}

func studentsAt(prefix string, n int, locID string) []models.Student {
	out := make([]models.Student, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, studentAt(fmt.Sprintf("%s%02d", prefix, i), locID))
	}
	return out
}

func teacherAt(id, locID string) models.Teacher {
	return models.Teacher{
		ID:           id,
		FirstName:    "Teacher",
		LastName:     id,
		CurrentLocID: locID,
		Present:      locID != models.LocationNone,
	}
}

func ids(ss []models.Student) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		out = append(out, s.ID)
	}
	return out
}

func notifyingSettings() models.Settings {
	s := models.DefaultSettings()
	s.NotifyThresholdPassed = true
	return s
}
