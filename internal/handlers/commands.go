// Package handlers turns chat commands into roster operations
package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"afterschool-toast/internal/models"
	"afterschool-toast/internal/services"
)

// Callback data prefixes of the pending move keyboard
const (
	CallbackConfirmMove = "pm:yes:"
	CallbackDeclineMove = "pm:no:"
)

// Reply is the answer to a command. PendingMoveID is set when a move waits for confirmation.
type Reply struct {
	Text          string
	PendingMoveID string
}

// CommandHandler dispatches chat commands
type CommandHandler struct {
	service services.RosterOperator
	logger  *zap.Logger
}

// NewCommandHandler creates a new command handler
func NewCommandHandler(service services.RosterOperator, logger *zap.Logger) *CommandHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommandHandler{service: service, logger: logger}
}

// Handle runs command (without the leading slash) with its arguments
func (h *CommandHandler) Handle(ctx context.Context, command string, args []string) Reply {
	var (
		reply Reply
		err   error
	)

	switch command {
	case "start", "help":
		reply, err = h.start(ctx)
	case "locations":
		reply, err = h.locations(ctx)
	case "ratios":
		reply, err = h.ratios(ctx)
	case "where":
		reply, err = h.where(ctx, args)
	case "present":
		reply, err = h.present(ctx)
	case "absent":
		reply, err = h.absent(ctx)
	case "awaiting":
		reply, err = h.awaiting(ctx, args)
	case "here":
		reply, err = h.markPresence(ctx, args, true)
	case "gone":
		reply, err = h.markPresence(ctx, args, false)
	case "move":
		reply, err = h.move(ctx, args)
	case "confirm":
		reply, err = h.settle(ctx, args, true)
	case "reject":
		reply, err = h.settle(ctx, args, false)
	default:
		return Reply{Text: "Unknown command. Send /start for the list of commands."}
	}

	if err != nil {
		return h.errorReply(command, err)
	}
	return reply
}

// HandleCallback answers a press on the pending move keyboard
func (h *CommandHandler) HandleCallback(ctx context.Context, data string) Reply {
	switch {
	case strings.HasPrefix(data, CallbackConfirmMove):
		id := strings.TrimPrefix(data, CallbackConfirmMove)
		plan, err := h.service.ConfirmPendingMove(ctx, id)
		if err != nil {
			return h.errorReply("confirm move", err)
		}
		return Reply{Text: fmt.Sprintf("✅ Moved %d to %s.", len(plan.StudentIDs)+len(plan.TeacherIDs), plan.TargetName)}
	case strings.HasPrefix(data, CallbackDeclineMove):
		id := strings.TrimPrefix(data, CallbackDeclineMove)
		if err := h.service.DeclinePendingMove(id); err != nil {
			return h.errorReply("decline move", err)
		}
		return Reply{Text: "Move cancelled. Nobody was moved."}
	default:
		return Reply{Text: "Unknown action."}
	}
}

func (h *CommandHandler) errorReply(command string, err error) Reply {
	var uerr usageError
	switch {
	case errors.As(err, &uerr):
		return Reply{Text: string(uerr)}
	case errors.Is(err, services.ErrEntityNotFound):
		return Reply{Text: "❌ No such student or teacher."}
	case errors.Is(err, services.ErrLocationNotFound):
		return Reply{Text: "❌ No such location."}
	case errors.Is(err, services.ErrNoDefaultLocation):
		return Reply{Text: "❌ No default location is configured."}
	case errors.Is(err, services.ErrNotPresent):
		return Reply{Text: "❌ Only people who are present can be moved."}
	case errors.Is(err, services.ErrNothingToMove):
		return Reply{Text: "Everyone is already there."}
	case errors.Is(err, services.ErrPendingMoveNotFound):
		return Reply{Text: "This move was already answered or has expired."}
	}
	h.logger.Error("command failed", zap.String("command", command), zap.Error(err))
	return Reply{Text: "⚠️ Something went wrong, please try again."}
}

// usageError is answered verbatim
type usageError string

func (e usageError) Error() string { return string(e) }

func usage(text string) error { return usageError(text) }

func (h *CommandHandler) start(ctx context.Context) (Reply, error) {
	snap, err := h.service.Snapshot(ctx)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: fmt.Sprintf("👋 %s roster\n\n"+
		"/locations - who is where\n"+
		"/ratios - students per teacher\n"+
		"/where <name> - find someone\n"+
		"/present, /absent - attendance\n"+
		"/awaiting [locationID] - arrivals to confirm\n"+
		"/here <id>, /gone <id> - sign in or out\n"+
		"/move <locationID> <id...> - move people\n"+
		"/confirm <id>, /reject <id> - answer an arrival",
		snap.Settings.SiteName)}, nil
}

func (h *CommandHandler) locations(ctx context.Context) (Reply, error) {
	summaries, err := h.service.LocationSummaries(ctx)
	if err != nil {
		return Reply{}, err
	}
	if len(summaries) == 0 {
		return Reply{Text: "No active locations."}, nil
	}

	var b strings.Builder
	for _, sum := range summaries {
		fmt.Fprintf(&b, "📍 %s (%s)\n", sum.Location.LocationName, sum.Location.ID)
		fmt.Fprintf(&b, "   👩‍🏫 %s\n", joinNames(sum.Teachers))
		fmt.Fprintf(&b, "   🧒 %s\n", joinNames(sum.Settled))
		if len(sum.Awaiting) > 0 {
			fmt.Fprintf(&b, "   ⏳ %s\n", joinNames(sum.Awaiting))
		}
	}
	return Reply{Text: strings.TrimRight(b.String(), "\n")}, nil
}

func (h *CommandHandler) ratios(ctx context.Context) (Reply, error) {
	summaries, err := h.service.LocationSummaries(ctx)
	if err != nil {
		return Reply{}, err
	}
	lines := make([]string, 0, len(summaries))
	for _, sum := range summaries {
		lines = append(lines, fmt.Sprintf("%s %s: %s:1 (%d students, %d teachers)",
			sum.Level.Emoji(), sum.Location.LocationName, sum.Ratio.Display(),
			sum.Ratio.Students, sum.Ratio.Teachers))
	}
	if len(lines) == 0 {
		return Reply{Text: "No active locations."}, nil
	}
	return Reply{Text: strings.Join(lines, "\n")}, nil
}

func (h *CommandHandler) where(ctx context.Context, args []string) (Reply, error) {
	if len(args) == 0 {
		return Reply{}, usage("Usage: /where <name>")
	}
	query := strings.Join(args, " ")
	people, err := h.service.FindPeople(ctx, query)
	if err != nil {
		return Reply{}, err
	}
	if len(people) == 0 {
		return Reply{Text: fmt.Sprintf("Nobody matches %q.", query)}, nil
	}
	snap, err := h.service.Snapshot(ctx)
	if err != nil {
		return Reply{}, err
	}

	lines := make([]string, 0, len(people))
	for _, p := range people {
		lines = append(lines, fmt.Sprintf("%s [%s, %s]: %s", p.FullName(), p.Kind, p.ID(), whereabouts(snap, p)))
	}
	return Reply{Text: strings.Join(lines, "\n")}, nil
}

func whereabouts(snap *services.Snapshot, p models.Person) string {
	locID := p.CurrentLocID()
	if models.IsNowhere(locID) {
		return "not here"
	}
	where := snap.LocationName(locID)
	if p.Kind == models.KindStudent && p.Student.AwaitingConfirmation {
		where += fmt.Sprintf(" (on the way from %s)", snap.LocationName(p.Student.PreviousLocID))
	}
	return where
}

func (h *CommandHandler) present(ctx context.Context) (Reply, error) {
	snap, err := h.service.Snapshot(ctx)
	if err != nil {
		return Reply{}, err
	}
	students := services.SortByName(services.PresentStudents(snap.Students))
	teachers := services.SortByName(services.PresentTeachers(snap.Teachers))
	return Reply{Text: fmt.Sprintf("Present: %d students, %d teachers\n🧒 %s\n👩‍🏫 %s",
		len(students), len(teachers), joinNames(students), joinNames(teachers))}, nil
}

func (h *CommandHandler) absent(ctx context.Context) (Reply, error) {
	snap, err := h.service.Snapshot(ctx)
	if err != nil {
		return Reply{}, err
	}
	students := services.SortByName(services.AbsentStudents(snap.Students))
	return Reply{Text: fmt.Sprintf("Not here: %d students\n🧒 %s", len(students), joinNames(students))}, nil
}

func (h *CommandHandler) awaiting(ctx context.Context, args []string) (Reply, error) {
	summaries, err := h.service.LocationSummaries(ctx)
	if err != nil {
		return Reply{}, err
	}
	var b strings.Builder
	for _, sum := range summaries {
		if len(args) > 0 && sum.Location.ID != args[0] {
			continue
		}
		for _, s := range sum.Awaiting {
			fmt.Fprintf(&b, "⏳ %s %s [%s] → %s\n", s.FirstName, s.LastName, s.ID, sum.Location.LocationName)
		}
	}
	if b.Len() == 0 {
		return Reply{Text: "No arrivals waiting for confirmation."}, nil
	}
	return Reply{Text: strings.TrimRight(b.String(), "\n")}, nil
}

func (h *CommandHandler) markPresence(ctx context.Context, args []string, present bool) (Reply, error) {
	if len(args) != 1 {
		if present {
			return Reply{}, usage("Usage: /here <id>")
		}
		return Reply{}, usage("Usage: /gone <id>")
	}
	people, err := h.service.ResolvePeople(ctx, args)
	if err != nil {
		return Reply{}, err
	}
	p := people[0]

	switch {
	case p.Kind == models.KindStudent && present:
		err = h.service.MarkStudentPresent(ctx, p.ID())
	case p.Kind == models.KindStudent:
		err = h.service.MarkStudentAbsent(ctx, p.ID())
	case p.Kind == models.KindTeacher && present:
		err = h.service.MarkTeacherPresent(ctx, p.ID())
	case p.Kind == models.KindTeacher:
		err = h.service.MarkTeacherAbsent(ctx, p.ID())
	}
	if err != nil {
		return Reply{}, err
	}

	if present {
		return Reply{Text: fmt.Sprintf("✅ %s signed in.", p.FullName())}, nil
	}
	return Reply{Text: fmt.Sprintf("👋 %s signed out.", p.FullName())}, nil
}

func (h *CommandHandler) move(ctx context.Context, args []string) (Reply, error) {
	if len(args) < 2 {
		snap, err := h.service.Snapshot(ctx)
		if err != nil {
			return Reply{}, err
		}
		targets := services.MoveTargets(snap.Locations)
		lines := make([]string, 0, len(targets))
		for _, l := range targets {
			lines = append(lines, fmt.Sprintf("%s (%s)", l.ID, l.LocationName))
		}
		return Reply{}, usage("Usage: /move <locationID> <id...>\nLocations: " + strings.Join(lines, ", "))
	}
	out, err := h.service.RequestMove(ctx, args[1:], args[0])
	if err != nil {
		return Reply{}, err
	}
	if out.Pending != nil {
		return Reply{
			Text:          "⚠️ " + out.Plan.Message + " Are you sure you want to continue?",
			PendingMoveID: out.Pending.ID,
		}, nil
	}

	text := fmt.Sprintf("➡️ Moving %d to %s.", len(out.Plan.StudentIDs)+len(out.Plan.TeacherIDs), out.Plan.TargetName)
	if n := len(out.Plan.StudentIDs); n > 0 {
		text += fmt.Sprintf(" %d arrival(s) to confirm.", n)
	}
	return Reply{Text: text}, nil
}

func (h *CommandHandler) settle(ctx context.Context, args []string, confirm bool) (Reply, error) {
	if len(args) == 0 {
		if confirm {
			return Reply{}, usage("Usage: /confirm <studentID...>")
		}
		return Reply{}, usage("Usage: /reject <studentID...>")
	}
	for _, id := range args {
		var err error
		if confirm {
			err = h.service.ConfirmArrival(ctx, id)
		} else {
			err = h.service.RejectArrival(ctx, id)
		}
		if err != nil {
			return Reply{}, err
		}
	}
	if confirm {
		return Reply{Text: fmt.Sprintf("✅ %d arrival(s) confirmed.", len(args))}, nil
	}
	return Reply{Text: fmt.Sprintf("↩️ %d arrival(s) sent back.", len(args))}, nil
}

func joinNames[T models.Named](items []T) string {
	if len(items) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(items))
	for _, it := range items {
		first, last := it.NameParts()
		parts = append(parts, strings.TrimSpace(first+" "+last))
	}
	return strings.Join(parts, ", ")
}
