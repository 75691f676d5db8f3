// Package services implements the roster business logic
package services

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"afterschool-toast/internal/models"
	"afterschool-toast/internal/repository"
)

// BotNotifier defines the interface for bot notifications
type BotNotifier interface {
	SendNotification(message string)
}

// RosterService exposes the lifecycle, query and ratio operations over a RosterStore
type RosterService struct {
	store       *repository.RosterStore
	botNotifier BotNotifier
	logger      *zap.Logger
	pending     *pendingMoves
	now         func() time.Time
}

// NewRosterService creates a new roster service. botNotifier may be nil.
func NewRosterService(store *repository.RosterStore, botNotifier BotNotifier, logger *zap.Logger) *RosterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterService{
		store:       store,
		botNotifier: botNotifier,
		logger:      logger,
		pending:     newPendingMoves(),
		now:         time.Now,
	}
}

// Snapshot is a point-in-time copy of every collection
type Snapshot struct {
	Locations []models.Location
	Students  []models.Student
	Teachers  []models.Teacher
	Groups    []models.Group
	Settings  models.Settings
}

// Snapshot reads all collections concurrently
func (s *RosterService) Snapshot(ctx context.Context) (*Snapshot, error) {
	var snap Snapshot
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		snap.Locations, err = s.store.Locations.Read(ctx)
		return err
	})
	g.Go(func() (err error) {
		snap.Students, err = s.store.Students.Read(ctx)
		return err
	})
	g.Go(func() (err error) {
		snap.Teachers, err = s.store.Teachers.Read(ctx)
		return err
	})
	g.Go(func() (err error) {
		snap.Groups, err = s.store.Groups.Read(ctx)
		return err
	})
	g.Go(func() (err error) {
		snap.Settings, err = s.store.Settings.Read(ctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *RosterService) notify(message string) {
	if s.botNotifier == nil {
		return
	}
	s.botNotifier.SendNotification(message)
}

// Location returns the location with the given id
func (snap *Snapshot) Location(id string) (models.Location, bool) {
	return findLocation(snap.Locations, id)
}

// LocationName returns the display name of id, or id itself when unknown
func (snap *Snapshot) LocationName(id string) string {
	if loc, ok := snap.Location(id); ok {
		return loc.LocationName
	}
	return id
}

func findLocation(locs []models.Location, id string) (models.Location, bool) {
	for _, l := range locs {
		if l.ID == id {
			return l, true
		}
	}
	return models.Location{}, false
}

// RosterOperator is the roster surface driven by chat commands
type RosterOperator interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
	LocationSummaries(ctx context.Context) ([]LocationSummary, error)
	FindPeople(ctx context.Context, query string) ([]models.Person, error)
	ResolvePeople(ctx context.Context, ids []string) ([]models.Person, error)
	MarkStudentPresent(ctx context.Context, id string) error
	MarkStudentAbsent(ctx context.Context, id string) error
	MarkTeacherPresent(ctx context.Context, id string) error
	MarkTeacherAbsent(ctx context.Context, id string) error
	ConfirmArrival(ctx context.Context, id string) error
	RejectArrival(ctx context.Context, id string) error
	RequestMove(ctx context.Context, ids []string, targetID string) (*MoveOutcome, error)
	ConfirmPendingMove(ctx context.Context, id string) (*MovePlan, error)
	DeclinePendingMove(id string) error
}

var _ RosterOperator = (*RosterService)(nil)
