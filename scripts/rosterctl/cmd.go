package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cast"

	"afterschool-toast/internal/models"
	"afterschool-toast/internal/repository"
	"afterschool-toast/internal/services"
	"afterschool-toast/migrations"
)

var (
	writeFileFunc = os.WriteFile // mockable

	errHelp      = errors.New("help provided")
	errNeedsSQL  = errors.New("migrate needs the sqlite store backend")
	errMoveGated = errors.New("move held: ratio above maximum, re-run with -force to move anyway")
)

type commandLine struct {
	kv    repository.KVStore
	store *repository.RosterStore
	svc   *services.RosterService
	out   io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  seed                                  - write the bundled roster for missing collections")
	fmt.Fprintln(cli.out, "  reset                                 - wipe the store and write the bundled roster")
	fmt.Fprintln(cli.out, "  migrate up|down|status                - manage sqlite schema migrations")
	fmt.Fprintln(cli.out, "  list [-loc ID] [-q NAME] [-groups G1,G2] [-day Mon] - list students and teachers")
	fmt.Fprintln(cli.out, "  present -id ID                        - sign a student or teacher in")
	fmt.Fprintln(cli.out, "  absent -id ID                         - sign a student or teacher out")
	fmt.Fprintln(cli.out, "  move -to LOC -ids ID,ID [-force]      - move people, honoring the ratio gate")
	fmt.Fprintln(cli.out, "  confirm -id ID                        - confirm a student's arrival")
	fmt.Fprintln(cli.out, "  reject -id ID                         - send a student back")
	fmt.Fprintln(cli.out, "  teacher-move -id ID -to LOC [-force]  - move one teacher, honoring the ratio gate")
	fmt.Fprintln(cli.out, "  edit-student -id ID [-first S] [-last S] [-dob YYYY-MM-DD] [-group G] [-meds B] [-days Mon,Wed]")
	fmt.Fprintln(cli.out, "  edit-teacher -id ID [-first S] [-last S] [-dob YYYY-MM-DD] [-days Mon,Wed]")
	fmt.Fprintln(cli.out, "  ratios                                - students per teacher for every location")
	fmt.Fprintln(cli.out, "  settings [-site S] [-warn N] [-max N] [-warn-enabled B] [-max-enabled B] [-notify B]")
	fmt.Fprintln(cli.out, "  export -o FILE                        - write the roster to an Excel workbook")
}

func (cli *commandLine) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "seed":
		if err := cli.store.InitializeAll(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cli.out, "roster seeded")
		return nil

	case "reset":
		if err := cli.store.Reset(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cli.out, "roster reset to bundled defaults")
		return nil

	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(ctx, args[2])

	case "list":
		cmd := cli.flagSet("list")
		locID := cmd.String("loc", "", "Only people at this location id")
		query := cmd.String("q", "", "Name filter")
		groups := cmd.String("groups", "", "Comma separated group ids")
		day := cmd.String("day", "", "Only people scheduled on this weekday (Mon..Sun)")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.list(ctx, *locID, *query, splitList(*groups), *day)

	case "present", "absent", "confirm", "reject":
		cmd := cli.flagSet(args[1])
		id := cmd.String("id", "", "Student or teacher id")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *id == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.person(ctx, args[1], *id)

	case "move":
		cmd := cli.flagSet("move")
		to := cmd.String("to", "", "Target location id")
		ids := cmd.String("ids", "", "Comma separated student/teacher ids")
		force := cmd.Bool("force", false, "Move even when the ratio goes above the maximum")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *ids == "" {
			cmd.Usage()
			return errHelp
		}
		if *to == "" {
			return cli.printMoveTargets(ctx, splitList(*ids))
		}
		return cli.move(ctx, splitList(*ids), *to, *force)

	case "teacher-move":
		cmd := cli.flagSet("teacher-move")
		id := cmd.String("id", "", "Teacher id")
		to := cmd.String("to", "", "Target location id")
		force := cmd.Bool("force", false, "Move even when a ratio goes above the maximum")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *id == "" {
			cmd.Usage()
			return errHelp
		}
		if *to == "" {
			return cli.printMoveTargets(ctx, []string{*id})
		}
		people, err := cli.svc.ResolvePeople(ctx, []string{*id})
		if err != nil {
			return err
		}
		if people[0].Kind != models.KindTeacher {
			return fmt.Errorf("%s is a student, use move", *id)
		}
		return cli.move(ctx, []string{*id}, *to, *force)

	case "edit-student", "edit-teacher":
		cmd := cli.flagSet(args[1])
		var f profileFlags
		cmd.StringVar(&f.id, "id", "", "Student or teacher id")
		cmd.StringVar(&f.first, "first", "", "First name")
		cmd.StringVar(&f.last, "last", "", "Last name")
		cmd.StringVar(&f.dob, "dob", "", "Date of birth (YYYY-MM-DD)")
		cmd.StringVar(&f.days, "days", "", "Comma separated weekday codes")
		if args[1] == "edit-student" {
			cmd.StringVar(&f.group, "group", "", "Group id")
			cmd.StringVar(&f.meds, "meds", "", "Has medication (true/false)")
		}
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if f.id == "" {
			cmd.Usage()
			return errHelp
		}
		if args[1] == "edit-student" {
			return cli.editStudent(ctx, f)
		}
		return cli.editTeacher(ctx, f)

	case "ratios":
		return cli.ratios(ctx)

	case "settings":
		cmd := cli.flagSet("settings")
		site := cmd.String("site", "", "Site name")
		warn := cmd.String("warn", "", "Warning threshold")
		maxThr := cmd.String("max", "", "Maximum threshold")
		warnEnabled := cmd.String("warn-enabled", "", "true/false")
		maxEnabled := cmd.String("max-enabled", "", "true/false")
		notify := cmd.String("notify", "", "Hold moves above the maximum and alert (true/false)")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.settings(ctx, settingsFlags{
			site: *site, warn: *warn, max: *maxThr,
			warnEnabled: *warnEnabled, maxEnabled: *maxEnabled, notify: *notify,
		})

	case "export":
		cmd := cli.flagSet("export")
		out := cmd.String("o", "roster.xlsx", "Output file")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.export(ctx, *out)

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) migrate(ctx context.Context, sub string) error {
	sqlKV, ok := cli.kv.(*repository.SQLiteKV)
	if !ok {
		return errNeedsSQL
	}
	db := sqlKV.DB()

	switch sub {
	case "up":
		applied, err := migrations.Up(ctx, db)
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			fmt.Fprintln(cli.out, "no pending migrations")
		}
		for _, name := range applied {
			fmt.Fprintf(cli.out, "applied %s\n", name)
		}
	case "down":
		name, err := migrations.Down(ctx, db)
		if err != nil {
			return err
		}
		if name == "" {
			fmt.Fprintln(cli.out, "nothing to revert")
		} else {
			fmt.Fprintf(cli.out, "reverted %s\n", name)
		}
	case "status":
		states, err := migrations.Status(ctx, db)
		if err != nil {
			return err
		}
		for _, st := range states {
			mark := "pending"
			if st.Applied {
				mark = "applied"
			}
			fmt.Fprintf(cli.out, "%-8s %d_%s\n", mark, st.Version, st.Name)
		}
	default:
		return fmt.Errorf("%q: no such migrate command", sub)
	}
	return nil
}

func (cli *commandLine) list(ctx context.Context, locID, query string, groups []string, day string) error {
	snap, err := cli.svc.Snapshot(ctx)
	if err != nil {
		return err
	}

	students, teachers := snap.Students, snap.Teachers
	if day != "" {
		students, teachers = services.ScheduledOn(students, teachers, day)
	}
	if locID != "" {
		settled, awaiting := services.StudentsAt(students, locID)
		students = append(settled, awaiting...)
		teachers = services.TeachersAt(teachers, locID)
	}
	if len(groups) > 0 {
		students = services.FilterByGroups(students, groups)
	}
	students = services.SortByName(services.FilterByName(students, query))
	teachers = services.SortByName(services.FilterByName(teachers, query))

	for _, t := range teachers {
		fmt.Fprintf(cli.out, "%-8s teacher  %-24s %s\n", t.ID, t.FirstName+" "+t.LastName, placeOf(snap, t.CurrentLocID, false))
	}
	for _, s := range students {
		fmt.Fprintf(cli.out, "%-8s student  %-24s %s\n", s.ID, s.FirstName+" "+s.LastName, placeOf(snap, s.CurrentLocID, s.AwaitingConfirmation))
	}
	return nil
}

func placeOf(snap *services.Snapshot, locID string, awaiting bool) string {
	if models.IsNowhere(locID) {
		return "-"
	}
	if awaiting {
		return snap.LocationName(locID) + " (awaiting)"
	}
	return snap.LocationName(locID)
}

func (cli *commandLine) person(ctx context.Context, action, id string) error {
	people, err := cli.svc.ResolvePeople(ctx, []string{id})
	if err != nil {
		return err
	}
	p := people[0]

	switch {
	case action == "present" && p.Kind == models.KindStudent:
		err = cli.svc.MarkStudentPresent(ctx, id)
	case action == "present":
		err = cli.svc.MarkTeacherPresent(ctx, id)
	case action == "absent" && p.Kind == models.KindStudent:
		err = cli.svc.MarkStudentAbsent(ctx, id)
	case action == "absent":
		err = cli.svc.MarkTeacherAbsent(ctx, id)
	case p.Kind != models.KindStudent:
		return fmt.Errorf("%s is a teacher, only student arrivals can be answered", id)
	case action == "confirm":
		err = cli.svc.ConfirmArrival(ctx, id)
	default:
		err = cli.svc.RejectArrival(ctx, id)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%s: %s %s\n", action, p.Kind, p.FullName())
	return nil
}

func (cli *commandLine) move(ctx context.Context, ids []string, to string, force bool) error {
	out, err := cli.svc.RequestMove(ctx, ids, to)
	if err != nil {
		return err
	}
	if out.Pending != nil {
		fmt.Fprintln(cli.out, out.Plan.Message)
		if !force {
			if err := cli.svc.DeclinePendingMove(out.Pending.ID); err != nil {
				return err
			}
			return errMoveGated
		}
		if _, err := cli.svc.ConfirmPendingMove(ctx, out.Pending.ID); err != nil {
			return err
		}
	}
	for _, pr := range out.Plan.Projections {
		fmt.Fprintf(cli.out, "%s: %s:1 -> %s:1\n", pr.LocationName, pr.Before.Display(), pr.After.Display())
	}
	fmt.Fprintf(cli.out, "moved %d to %s\n", len(out.Plan.StudentIDs)+len(out.Plan.TeacherIDs), out.Plan.TargetName)
	return nil
}

// printMoveTargets lists where the given people can be moved to
func (cli *commandLine) printMoveTargets(ctx context.Context, ids []string) error {
	snap, err := cli.svc.Snapshot(ctx)
	if err != nil {
		return err
	}
	people, err := cli.svc.ResolvePeople(ctx, ids)
	if err != nil {
		return err
	}
	from := make([]string, 0, len(people))
	for _, p := range people {
		from = append(from, p.CurrentLocID())
	}
	fmt.Fprintln(cli.out, "missing -to, move targets:")
	for _, l := range services.MoveTargets(snap.Locations, from...) {
		fmt.Fprintf(cli.out, "  %-8s %s\n", l.ID, l.LocationName)
	}
	return errHelp
}

func (cli *commandLine) ratios(ctx context.Context) error {
	summaries, err := cli.svc.LocationSummaries(ctx)
	if err != nil {
		return err
	}
	for _, sum := range summaries {
		levelColor(sum.Level).Fprintf(cli.out, "%-12s %6s:1  %-6s (%d students, %d awaiting, %d teachers)\n",
			sum.Location.LocationName, sum.Ratio.Display(), sum.Level,
			len(sum.Settled), len(sum.Awaiting), len(sum.Teachers))
	}
	return nil
}

func levelColor(l services.Level) *color.Color {
	switch l {
	case services.LevelDanger:
		return color.New(color.FgRed, color.Bold)
	case services.LevelWarn:
		return color.New(color.FgYellow)
	case services.LevelOK:
		return color.New(color.FgGreen)
	default:
		return color.New(color.FgHiBlack)
	}
}

type settingsFlags struct {
	site, warn, max, warnEnabled, maxEnabled, notify string
}

func (f settingsFlags) empty() bool {
	return f == (settingsFlags{})
}

func (cli *commandLine) settings(ctx context.Context, f settingsFlags) error {
	current, err := cli.svc.Settings(ctx)
	if err != nil {
		return err
	}
	if f.empty() {
		printSettings(cli.out, current)
		return nil
	}

	upd := services.SettingsUpdate{
		SiteName:              current.SiteName,
		WarnThresholdEnabled:  current.WarnThresholdEnabled,
		WarnThreshold:         current.WarnThreshold,
		MaxThresholdEnabled:   current.MaxThresholdEnabled,
		MaxThreshold:          current.MaxThreshold,
		NotifyThresholdPassed: current.NotifyThresholdPassed,
	}
	if f.site != "" {
		upd.SiteName = f.site
	}
	if f.warn != "" {
		if upd.WarnThreshold, err = cast.ToIntE(f.warn); err != nil {
			return fmt.Errorf("-warn: %w", err)
		}
	}
	if f.max != "" {
		if upd.MaxThreshold, err = cast.ToIntE(f.max); err != nil {
			return fmt.Errorf("-max: %w", err)
		}
	}
	if f.warnEnabled != "" {
		if upd.WarnThresholdEnabled, err = cast.ToBoolE(f.warnEnabled); err != nil {
			return fmt.Errorf("-warn-enabled: %w", err)
		}
	}
	if f.maxEnabled != "" {
		if upd.MaxThresholdEnabled, err = cast.ToBoolE(f.maxEnabled); err != nil {
			return fmt.Errorf("-max-enabled: %w", err)
		}
	}
	if f.notify != "" {
		if upd.NotifyThresholdPassed, err = cast.ToBoolE(f.notify); err != nil {
			return fmt.Errorf("-notify: %w", err)
		}
	}

	saved, err := cli.svc.UpdateSettings(ctx, upd)
	if err != nil {
		return err
	}
	printSettings(cli.out, saved)
	return nil
}

func printSettings(w io.Writer, s models.Settings) {
	fmt.Fprintf(w, "site:   %s\n", s.SiteName)
	fmt.Fprintf(w, "warn:   %d (enabled: %t)\n", s.WarnThreshold, s.WarnThresholdEnabled)
	fmt.Fprintf(w, "max:    %d (enabled: %t)\n", s.MaxThreshold, s.MaxThresholdEnabled)
	fmt.Fprintf(w, "notify: %t\n", s.NotifyThresholdPassed)
}

func (cli *commandLine) export(ctx context.Context, path string) error {
	buf, err := cli.svc.ExportRoster(ctx)
	if err != nil {
		return err
	}
	if err := writeFileFunc(path, buf.Bytes(), 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "wrote %s\n", path)
	return nil
}

type profileFlags struct {
	id, first, last, dob, group, meds, days string
}

// optional maps an unset flag to nil
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (cli *commandLine) editStudent(ctx context.Context, f profileFlags) error {
	upd := services.StudentProfileUpdate{
		FirstName: optional(f.first),
		LastName:  optional(f.last),
		DOB:       optional(f.dob),
		GroupID:   optional(f.group),
		Days:      splitList(f.days),
	}
	if f.meds != "" {
		meds, err := cast.ToBoolE(f.meds)
		if err != nil {
			return fmt.Errorf("-meds: %w", err)
		}
		upd.HasMeds = &meds
	}
	if err := cli.svc.UpdateStudentProfile(ctx, f.id, upd); err != nil {
		return profileError(err, f)
	}
	return cli.printPerson(ctx, "edited", f.id)
}

func (cli *commandLine) editTeacher(ctx context.Context, f profileFlags) error {
	upd := services.TeacherProfileUpdate{
		FirstName: optional(f.first),
		LastName:  optional(f.last),
		DOB:       optional(f.dob),
		Days:      splitList(f.days),
	}
	if err := cli.svc.UpdateTeacherProfile(ctx, f.id, upd); err != nil {
		return profileError(err, f)
	}
	return cli.printPerson(ctx, "edited", f.id)
}

// profileError turns validation and lookup failures into one readable line
func profileError(err error, f profileFlags) error {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		msgs := make([]string, 0, len(verr.Fields))
		for _, fe := range verr.Fields {
			msgs = append(msgs, fe.Error)
		}
		return fmt.Errorf("profile of %s not saved: %s", f.id, strings.Join(msgs, "; "))
	case errors.Is(err, services.ErrGroupNotFound):
		return fmt.Errorf("no such group %s", f.group)
	case errors.Is(err, services.ErrEntityNotFound):
		return fmt.Errorf("no such person %s", f.id)
	}
	return err
}

func (cli *commandLine) printPerson(ctx context.Context, action, id string) error {
	people, err := cli.svc.ResolvePeople(ctx, []string{id})
	if err != nil {
		return err
	}
	p := people[0]
	fmt.Fprintf(cli.out, "%s: %s %s\n", action, p.Kind, p.FullName())
	switch p.Kind {
	case models.KindStudent:
		fmt.Fprintf(cli.out, "  dob %s, group %s, meds %t, days %s\n",
			p.Student.DOB, p.Student.GroupID, p.Student.HasMeds, strings.Join(p.Student.Days, ","))
	case models.KindTeacher:
		fmt.Fprintf(cli.out, "  dob %s, days %s\n", p.Teacher.DOB, strings.Join(p.Teacher.Days, ","))
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
