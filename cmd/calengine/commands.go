package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sonroyaalmerol/calendar-engine/internal/drag"
	"github.com/sonroyaalmerol/calendar-engine/internal/edit"
	"github.com/sonroyaalmerol/calendar-engine/internal/engine"
	"github.com/sonroyaalmerol/calendar-engine/internal/layout"
	"github.com/sonroyaalmerol/calendar-engine/internal/occurrence"
	"github.com/sonroyaalmerol/calendar-engine/internal/storage"
	"github.com/sonroyaalmerol/calendar-engine/internal/tasks"
)

var errUsage = errors.New("usage")

// parseTime accepts unix seconds or RFC 3339.
func parseTime(s string) (int64, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: want unix seconds or RFC 3339", s)
	}
	return t.Unix(), nil
}

type timeFlag struct {
	value int64
	set   bool
}

func (f *timeFlag) String() string {
	if !f.set {
		return ""
	}
	return strconv.FormatInt(f.value, 10)
}

func (f *timeFlag) Set(s string) error {
	v, err := parseTime(s)
	if err != nil {
		return err
	}
	f.value, f.set = v, true
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

func runOccurrences(ctx context.Context, e *engine.Engine, args []string) error {
	fs := flag.NewFlagSet("occurrences", flag.ContinueOnError)
	var from, to timeFlag
	account := fs.String("account", "", "account whose calendars are read-only checked")
	calendars := fs.String("calendars", "", "comma-separated calendar IDs (default: all)")
	fs.Var(&from, "from", "window start (unix or RFC 3339, required)")
	fs.Var(&to, "to", "window end (unix or RFC 3339, required)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if !from.set || !to.set || to.value < from.value {
		fs.Usage()
		return errUsage
	}

	occs, err := e.Feed.Load(ctx, occurrence.Window{
		CalendarIDs: splitList(*calendars),
		Start:       from.value,
		End:         to.value,
	})
	if err != nil {
		return err
	}
	var access drag.CalendarAccess
	if *account != "" {
		a, err := e.Access(ctx, *account)
		if err != nil {
			return err
		}
		access = a
	}

	loc := e.Config.Location()
	buckets := layout.Partition(occs, loc)
	lay := layout.ForBuckets(buckets)
	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()

	if len(buckets.AllDay) > 0 {
		fmt.Fprintf(w, "all-day (%d rows)\n", lay.AllDayRows)
		for _, o := range buckets.AllDay {
			printOccurrence(w, o, lay.AllDay[o.ID], access, loc)
		}
	}
	for _, day := range buckets.DayKeys {
		fmt.Fprintln(w, day)
		list := append([]occurrence.EventOccurrence(nil), buckets.Days[day]...)
		sort.SliceStable(list, func(i, j int) bool { return list[i].Start < list[j].Start })
		for _, o := range list {
			printOccurrence(w, o, lay.Days[day][o.ID], access, loc)
		}
	}
	return nil
}

func printOccurrence(w io.Writer, o occurrence.EventOccurrence, ov layout.Overlap, access drag.CalendarAccess, loc *time.Location) {
	var flags []string
	if o.IsException {
		flags = append(flags, "exception")
	}
	if o.IsCancelled {
		flags = append(flags, "cancelled")
	}
	if access != nil && !drag.CanDragEvent(&o, access) {
		flags = append(flags, "locked")
	}
	fmt.Fprintf(w, "  %s  %s-%s  col %d/%d  %-30s start=%d [%s]\n",
		o.ID,
		time.Unix(o.Start, 0).In(loc).Format("01-02 15:04"),
		time.Unix(o.End, 0).In(loc).Format("01-02 15:04"),
		ov.Order, ov.ConcurrentEvents,
		o.Title, o.Start,
		strings.Join(flags, ","))
}

// promptConfirmer asks on the terminal which part of a series to change.
type promptConfirmer struct {
	in  *bufio.Reader
	out io.Writer
}

func (p promptConfirmer) ConfirmRecurringEdit(ctx context.Context, opts edit.TimeChangeOptions) (edit.Scope, error) {
	fmt.Fprintf(p.out, "%q is a recurring event. Change (t)his occurrence, (a)ll occurrences or (c)ancel? ", opts.Description)
	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "t", "this":
		return edit.ScopeThisOccurrence, nil
	case "a", "all":
		return edit.ScopeAllOccurrences, nil
	default:
		return edit.ScopeCancel, nil
	}
}

func confirmerFor(scope string) (edit.Confirmer, error) {
	if scope == "" {
		return promptConfirmer{in: bufio.NewReader(os.Stdin), out: os.Stderr}, nil
	}
	s, err := edit.ParseScope(scope)
	if err != nil {
		return nil, err
	}
	return edit.ConfirmFunc(func(context.Context, edit.TimeChangeOptions) (edit.Scope, error) {
		return s, nil
	}), nil
}

// findOccurrence materializes record around start and returns the
// occurrence displayed at start.
func findOccurrence(ctx context.Context, e *engine.Engine, rec *storage.Event, start int64) (*occurrence.EventOccurrence, error) {
	records, err := e.Store.ListEventsByICSUID(ctx, rec.CalendarID, rec.ICSUID)
	if err != nil {
		return nil, err
	}
	for _, o := range e.Materializer.Materialize(records, start, start) {
		if o.Start == start && o.EventID == rec.ID {
			return &o, nil
		}
	}
	return nil, fmt.Errorf("no occurrence of %s starts at %d", rec.ID, start)
}

type changeRequest struct {
	recordID    string
	original    int64
	description string
	scope       string
	allDay      bool
}

func (r changeRequest) load(ctx context.Context, e *engine.Engine) (*storage.Event, *occurrence.EventOccurrence, error) {
	rec, err := e.Store.GetEvent(ctx, r.recordID)
	if err != nil {
		return nil, nil, err
	}
	occ, err := findOccurrence(ctx, e, rec, r.original)
	if err != nil {
		return nil, nil, err
	}
	access, err := e.Access(ctx, rec.AccountID)
	if err != nil {
		return nil, nil, err
	}
	if !drag.CanDragEvent(occ, access) {
		return nil, nil, fmt.Errorf("occurrence %s cannot be changed", occ.ID)
	}
	return rec, occ, nil
}

func (r changeRequest) apply(ctx context.Context, e *engine.Engine, rec *storage.Event, occ *occurrence.EventOccurrence, start, end int64) error {
	confirm, err := confirmerFor(r.scope)
	if err != nil {
		return err
	}
	desc := r.description
	if desc == "" {
		desc = fmt.Sprintf("Move %s", occ.Title)
	}

	res, err := e.Coordinator(confirm).ChangeEventTime(ctx, edit.TimeChangeOptions{
		Event:         rec,
		OriginalStart: occ.Start,
		OriginalEnd:   occ.End,
		NewStart:      start,
		NewEnd:        end,
		AllDay:        r.allDay || occ.IsAllDay(),
		Description:   desc,
	})
	if err != nil {
		return err
	}
	if res.Cancelled {
		fmt.Println("cancelled")
		return nil
	}
	fmt.Printf("updated %s [%d, %d]\n", res.MasterEvent.ID, res.MasterEvent.RecurrenceStart, res.MasterEvent.RecurrenceEnd)
	if res.ExceptionEvent != nil {
		fmt.Printf("created exception %s recurrence-id=%s\n", res.ExceptionEvent.ID, res.ExceptionEvent.RecurrenceID)
	}
	return nil
}

func changeFlags(fs *flag.FlagSet, r *changeRequest, original *timeFlag) {
	fs.StringVar(&r.recordID, "event", "", "source record ID (required)")
	fs.Var(original, "occurrence", "start of the occurrence being changed (required)")
	fs.StringVar(&r.description, "desc", "", "description recorded in the undo log")
	fs.StringVar(&r.scope, "scope", "", "this | all | cancel (prompts when empty)")
	fs.BoolVar(&r.allDay, "all-day", false, "write the new times as dates")
}

func runMove(ctx context.Context, e *engine.Engine, args []string) error {
	fs := flag.NewFlagSet("move", flag.ContinueOnError)
	var req changeRequest
	var original, start, end timeFlag
	changeFlags(fs, &req, &original)
	fs.Var(&start, "start", "new start (required)")
	fs.Var(&end, "end", "new end (required)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if req.recordID == "" || !original.set || !start.set || !end.set {
		fs.Usage()
		return errUsage
	}
	req.original = original.value

	rec, occ, err := req.load(ctx, e)
	if err != nil {
		return err
	}
	return req.apply(ctx, e, rec, occ, start.value, end.value)
}

func runDrag(ctx context.Context, e *engine.Engine, args []string) error {
	fs := flag.NewFlagSet("drag", flag.ContinueOnError)
	var req changeRequest
	var original, grab, drop timeFlag
	changeFlags(fs, &req, &original)
	mode := fs.String("mode", string(drag.ModeMove), "move | resize-start | resize-end")
	view := fs.String("view", "week", "week | month")
	fs.Var(&grab, "grab", "time under the pointer on press (required)")
	fs.Var(&drop, "drop", "time under the pointer on release (required)")
	pixels := fs.Float64("pixels", 40, "distance the pointer travels")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if req.recordID == "" || !original.set || !grab.set || !drop.set {
		fs.Usage()
		return errUsage
	}
	req.original = original.value

	cfg, err := e.DragConfig(*view)
	if err != nil {
		return err
	}
	rec, occ, err := req.load(ctx, e)
	if err != nil {
		return err
	}

	var s *drag.State
	switch drag.Mode(*mode) {
	case drag.ModeMove, drag.ModeResizeStart, drag.ModeResizeEnd:
		s = drag.NewState(occ, drag.HitZone{Mode: drag.Mode(*mode)}, grab.value, 0, 0)
	default:
		return fmt.Errorf("unknown mode %q", *mode)
	}
	dx, dy := 0.0, *pixels
	if cfg.Direction == drag.Horizontal {
		dx, dy = *pixels, 0
	}
	s = drag.Update(s, drop.value, dx, dy, cfg)

	release := drag.Commit(s)
	switch {
	case release.Click:
		fmt.Println("click: pointer did not pass the drag threshold")
		return nil
	case !release.Changed:
		fmt.Println("no change")
		return nil
	}
	preview := drag.PreviewOccurrence(release.State)
	fmt.Printf("preview %s [%d, %d]\n", preview.ID, preview.Start, preview.End)
	return req.apply(ctx, e, rec, occ, release.Start, release.End)
}

func runUndo(ctx context.Context, e *engine.Engine, args []string) error {
	fs := flag.NewFlagSet("undo", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	ev, err := e.Runner.Undo(ctx)
	if errors.Is(err, tasks.ErrNothingToUndo) {
		fmt.Println("nothing to undo")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Printf("restored %s [%d, %d]\n", ev.ID, ev.RecurrenceStart, ev.RecurrenceEnd)
	return nil
}
