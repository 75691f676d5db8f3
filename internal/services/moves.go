package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"afterschool-toast/internal/models"
)

// pendingMoveTTL bounds how long a gated move waits for an answer
const pendingMoveTTL = 30 * time.Minute

// Projection is the ratio of one location before and after a planned move
type Projection struct {
	LocationID   string
	LocationName string
	Before       Ratio
	After        Ratio
	Level        Level
}

// MovePlan describes a move and whether it must be confirmed before it is applied
type MovePlan struct {
	TargetID             string
	TargetName           string
	StudentIDs           []string
	TeacherIDs           []string
	Projections          []Projection
	RequiresConfirmation bool
	Message              string
}

// PendingMove is a gated move waiting for confirmation
type PendingMove struct {
	ID          string
	Plan        MovePlan
	RequestedAt time.Time
}

// MoveOutcome is the result of RequestMove. Exactly one of Applied or Pending is set.
type MoveOutcome struct {
	Plan    *MovePlan
	Applied bool
	Pending *PendingMove
}

// PlanMove computes the projected ratios of moving people to targetID.
//
// Student movers count towards the settled population of the target. Teacher
// movers also change the staffing of the locations they leave, so those are
// projected too.
func (snap *Snapshot) PlanMove(people []models.Person, targetID string) (*MovePlan, error) {
	target, ok := snap.Location(targetID)
	if !ok {
		return nil, errors.Wrapf(ErrLocationNotFound, "location %s", targetID)
	}
	if !target.IsActive {
		return nil, errors.Wrapf(ErrLocationNotFound, "location %s is inactive", targetID)
	}

	plan := &MovePlan{TargetID: target.ID, TargetName: target.LocationName}
	seen := make(map[string]bool, len(people))
	studentsLeaving := make(map[string]int)
	teachersLeaving := make(map[string]int)
	var sources []string

	for _, p := range people {
		if seen[p.ID()] {
			continue
		}
		seen[p.ID()] = true

		from := p.CurrentLocID()
		if models.IsNowhere(from) {
			return nil, errors.Wrapf(ErrNotPresent, "%s %s", p.Kind, p.ID())
		}
		if from == targetID {
			continue
		}

		switch p.Kind {
		case models.KindStudent:
			plan.StudentIDs = append(plan.StudentIDs, p.ID())
			if !p.Student.AwaitingConfirmation {
				studentsLeaving[from]++
			}
		case models.KindTeacher:
			plan.TeacherIDs = append(plan.TeacherIDs, p.ID())
			if teachersLeaving[from] == 0 {
				sources = append(sources, from)
			}
			teachersLeaving[from]++
		default:
			panic(fmt.Sprintf("services: unknown person kind %v", p.Kind))
		}
	}
	if len(plan.StudentIDs)+len(plan.TeacherIDs) == 0 {
		return nil, ErrNothingToMove
	}

	before := snap.ratioAt(targetID)
	plan.Projections = append(plan.Projections, snap.project(targetID, before, NewRatio(
		before.Students+len(plan.StudentIDs),
		before.Teachers+len(plan.TeacherIDs),
	)))
	sort.Strings(sources)
	for _, from := range sources {
		b := snap.ratioAt(from)
		plan.Projections = append(plan.Projections, snap.project(from, b, NewRatio(
			b.Students-studentsLeaving[from],
			b.Teachers-teachersLeaving[from],
		)))
	}

	var over []string
	for _, pr := range plan.Projections {
		if pr.After.exceedsMax(snap.Settings) {
			over = append(over, fmt.Sprintf("%s (%s:1)", pr.LocationName, pr.After.Display()))
		}
	}
	if len(over) > 0 {
		plan.RequiresConfirmation = true
		plan.Message = fmt.Sprintf(
			"Moving %s to %s will cause the ratio to go above the maximum ratio of %d:1 at %s.",
			moverLabel(len(plan.StudentIDs), len(plan.TeacherIDs)),
			plan.TargetName, snap.Settings.MaxThreshold, strings.Join(over, ", "))
	}
	return plan, nil
}

func (snap *Snapshot) ratioAt(locID string) Ratio {
	settled, _ := StudentsAt(snap.Students, locID)
	return NewRatio(len(settled), len(TeachersAt(snap.Teachers, locID)))
}

func (snap *Snapshot) project(locID string, before, after Ratio) Projection {
	return Projection{
		LocationID:   locID,
		LocationName: snap.LocationName(locID),
		Before:       before,
		After:        after,
		Level:        after.Classify(snap.Settings),
	}
}

func moverLabel(students, teachers int) string {
	switch {
	case students == 1 && teachers == 0:
		return "this student"
	case teachers == 0:
		return "these students"
	case students == 0 && teachers == 1:
		return "this teacher"
	case students == 0:
		return "these teachers"
	default:
		return "these people"
	}
}

// PlanMove resolves ids and plans moving them to targetID without applying anything
func (s *RosterService) PlanMove(ctx context.Context, ids []string, targetID string) (*MovePlan, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	people, err := snap.resolve(ids)
	if err != nil {
		return nil, err
	}
	return snap.PlanMove(people, targetID)
}

// RequestMove applies the move right away unless it pushes a ratio over the
// maximum, in which case it is held until ConfirmPendingMove or DeclinePendingMove.
func (s *RosterService) RequestMove(ctx context.Context, ids []string, targetID string) (*MoveOutcome, error) {
	plan, err := s.PlanMove(ctx, ids, targetID)
	if err != nil {
		return nil, err
	}
	if plan.RequiresConfirmation {
		pm := s.pending.add(*plan, s.now())
		s.logger.Info("move held for confirmation",
			zap.String("pending", pm.ID),
			zap.String("location", plan.TargetID))
		return &MoveOutcome{Plan: plan, Pending: pm}, nil
	}
	if err := s.applyMove(ctx, plan); err != nil {
		return nil, err
	}
	return &MoveOutcome{Plan: plan, Applied: true}, nil
}

// ConfirmPendingMove applies a held move. The move is planned again against the
// current roster so people marked absent meanwhile are rejected.
func (s *RosterService) ConfirmPendingMove(ctx context.Context, id string) (*MovePlan, error) {
	pm, ok := s.pending.take(id, s.now())
	if !ok {
		return nil, errors.Wrapf(ErrPendingMoveNotFound, "pending move %s", id)
	}
	ids := append(append([]string{}, pm.Plan.StudentIDs...), pm.Plan.TeacherIDs...)
	plan, err := s.PlanMove(ctx, ids, pm.Plan.TargetID)
	if err != nil {
		return nil, err
	}
	if err := s.applyMove(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// DeclinePendingMove drops a held move without touching the roster
func (s *RosterService) DeclinePendingMove(id string) error {
	if _, ok := s.pending.take(id, s.now()); !ok {
		return errors.Wrapf(ErrPendingMoveNotFound, "pending move %s", id)
	}
	s.logger.Info("pending move declined", zap.String("pending", id))
	return nil
}

// PendingMoves lists the held moves, oldest first
func (s *RosterService) PendingMoves() []PendingMove {
	return s.pending.list(s.now())
}

func (s *RosterService) applyMove(ctx context.Context, plan *MovePlan) error {
	if len(plan.StudentIDs) > 0 {
		if err := s.MoveStudents(ctx, plan.StudentIDs, plan.TargetID); err != nil {
			return err
		}
	}
	// Teachers move one at a time; a failure leaves earlier teachers moved.
	for _, id := range plan.TeacherIDs {
		if err := s.MoveTeacher(ctx, id, plan.TargetID); err != nil {
			return err
		}
	}

	settings, err := s.store.Settings.Read(ctx)
	if err != nil {
		s.logger.Warn("could not read settings for ratio alert", zap.Error(err))
		return nil
	}
	if !settings.NotifyThresholdPassed {
		return nil
	}
	for _, pr := range plan.Projections {
		if pr.Level != LevelDanger {
			continue
		}
		s.notify(fmt.Sprintf(
			"%s *Ratio alert*\n📍 Location: `%s`\n👥 Ratio: `%s:1` (max %d:1)",
			pr.Level.Emoji(), pr.LocationName, pr.After.Display(), settings.MaxThreshold,
		))
	}
	return nil
}

type pendingMoves struct {
	mu    sync.Mutex
	items map[string]PendingMove
}

func newPendingMoves() *pendingMoves {
	return &pendingMoves{items: make(map[string]PendingMove)}
}

func (p *pendingMoves) add(plan MovePlan, now time.Time) *PendingMove {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expire(now)

	pm := PendingMove{ID: uuid.NewString(), Plan: plan, RequestedAt: now}
	p.items[pm.ID] = pm
	return &pm
}

func (p *pendingMoves) take(id string, now time.Time) (PendingMove, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expire(now)

	pm, ok := p.items[id]
	if ok {
		delete(p.items, id)
	}
	return pm, ok
}

func (p *pendingMoves) list(now time.Time) []PendingMove {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expire(now)

	out := make([]PendingMove, 0, len(p.items))
	for _, pm := range p.items {
		out = append(out, pm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.Before(out[j].RequestedAt) })
	return out
}

// expire must be called with mu held
func (p *pendingMoves) expire(now time.Time) {
	for id, pm := range p.items {
		if now.Sub(pm.RequestedAt) > pendingMoveTTL {
			delete(p.items, id)
		}
	}
}
