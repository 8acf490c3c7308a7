package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"reaper-go/internal/reaper"
	"reaper-go/internal/ux"
)

const shellHelp = `commands:
  scan [ROOT]             scan and classify ROOT (default: scan_root)
  list                    show the last scan's results
  banish N|PATH           move a listed file or a path to the graveyard
  undo [ID]               reverse a recent banish (default: the newest)
  pending                 show banishes that can still be undone
  clear [ID]              drop a pending undo (default: all of them)
  restore GRAVE ORIG      move a graveyard file back to ORIG
  resurrect N|PATH        never classify this file again
  whitelist               show resurrected paths
  graveyard               show the graveyard's contents
  log [ACTION]            show the operation log, newest first
  help                    show this text
  quit                    leave the shell`

// Shell is a line-oriented interactive session over a ReaperApp. It keeps
// the last scan so files can be referred to by number.
type Shell struct {
	// Root is scanned when scan is given no argument. Empty means scan_root.
	Root string

	app    *ReaperApp
	in     *bufio.Scanner
	out    *ux.Printer
	prompt io.Writer
	clock  reaper.Clock
	report *ScanReport
}

// NewShell reads commands from in and writes results to out. The prompt
// is written to out only when interactive is set.
func NewShell(a *ReaperApp, in io.Reader, out io.Writer, plain, interactive bool) *Shell {
	s := &Shell{
		app:   a,
		in:    bufio.NewScanner(in),
		out:   ux.NewPrinter(out, plain),
		clock: reaper.RealClock{},
	}
	if interactive {
		s.prompt = out
	}
	return s
}

// Run processes commands until quit, end of input or ctx is done.
func (s *Shell) Run(ctx context.Context) error {
	if err := s.app.StartBackground(ctx); err != nil {
		return err
	}
	for {
		if s.prompt != nil {
			fmt.Fprint(s.prompt, "reaper> ")
		}
		if !s.in.Scan() {
			return s.in.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		fields := strings.Fields(s.in.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			return nil
		}
		if err := s.exec(ctx, fields[0], fields[1:]); err != nil {
			s.out.Error(err.Error())
		}
	}
}

func (s *Shell) exec(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help", "?":
		s.out.Info(shellHelp)
		return nil
	case "scan":
		return s.scan(ctx, strings.Join(args, " "))
	case "list", "ls":
		return s.list()
	case "banish":
		return s.banish(ctx, args)
	case "undo":
		return s.undo(ctx, args)
	case "pending":
		return s.pending()
	case "clear":
		return s.clear(args)
	case "restore":
		return s.restore(ctx, args)
	case "resurrect":
		return s.resurrect(args)
	case "whitelist":
		return s.whitelist()
	case "graveyard":
		return s.graveyard(ctx)
	case "log":
		return s.log(args)
	default:
		return fmt.Errorf("unknown command %q (try help)", cmd)
	}
}

func (s *Shell) scan(ctx context.Context, root string) error {
	if root == "" {
		root = s.Root
	}
	report, err := s.app.Scan(ctx, root, nil)
	if err != nil {
		return err
	}
	s.report = report
	if report.Scan.Cancelled {
		s.out.Warning("scan cancelled")
		return nil
	}
	s.out.Title(fmt.Sprintf("%s: %d files scanned, %d classified", report.Root, len(report.Scan.Records), len(report.Files)))
	if report.Scan.Truncated {
		s.out.Warning(fmt.Sprintf("stopped after %d files", len(report.Scan.Records)))
	}
	if n := len(report.Scan.Errors) + len(report.HashErrors); n > 0 {
		s.out.Warning(fmt.Sprintf("%d entries could not be read", n))
	}
	return s.list()
}

func (s *Shell) list() error {
	if s.report == nil {
		return errors.New("nothing scanned yet")
	}
	if len(s.report.Files) == 0 {
		s.out.Muted("nothing to reap")
		return nil
	}
	for i, f := range s.report.Files {
		s.out.File(i+1, f)
	}
	return nil
}

// pick resolves a 1-based result number from the last scan.
func (s *Shell) pick(arg string) (reaper.ClassifiedFile, bool, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return reaper.ClassifiedFile{}, false, nil
	}
	if s.report == nil {
		return reaper.ClassifiedFile{}, false, errors.New("nothing scanned yet")
	}
	if n < 1 || n > len(s.report.Files) {
		return reaper.ClassifiedFile{}, false, fmt.Errorf("no result %d", n)
	}
	return s.report.Files[n-1], true, nil
}

// forget drops path from the last scan's results, renumbering the rest.
func (s *Shell) forget(path string) {
	if s.report == nil {
		return
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	path = reaper.NormalizePath(path)

	kept := s.report.Files[:0]
	for _, f := range s.report.Files {
		if reaper.NormalizePath(f.Path) != path {
			kept = append(kept, f)
		}
	}
	s.report.Files = kept
}

func (s *Shell) banish(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: banish N|PATH")
	}
	arg := strings.Join(args, " ")

	f, picked, err := s.pick(arg)
	if err != nil {
		return err
	}

	var res *reaper.BanishResult
	var src string
	if picked {
		src = f.Path
		res, err = s.app.BanishFile(ctx, f, s.report.Root)
	} else {
		src = arg
		root := ""
		if s.report != nil {
			root = s.report.Root
		}
		res, err = s.app.Banish(ctx, arg, root)
	}
	if err != nil {
		return err
	}

	s.forget(src)
	s.out.Moved(src, res.GraveyardPath)
	if res.Undo != nil {
		s.out.Muted(fmt.Sprintf("undo %s within %s", res.Undo.ID, res.Undo.ExpiresAt.Sub(res.Undo.Timestamp)))
	}
	return nil
}

func (s *Shell) undo(ctx context.Context, args []string) error {
	var id string
	if len(args) > 0 {
		id = args[0]
	} else {
		pending := s.app.PendingUndo()
		if len(pending) == 0 {
			return errors.New("nothing to undo")
		}
		id = pending[len(pending)-1].ID
	}

	restored, err := s.app.Undo(ctx, id)
	if err != nil {
		return err
	}
	s.out.Success("restored " + restored)
	return nil
}

func (s *Shell) pending() error {
	pending := s.app.PendingUndo()
	if len(pending) == 0 {
		s.out.Muted("nothing to undo")
		return nil
	}
	now := s.clock.Now()
	for _, e := range pending {
		s.out.Pending(e, now)
	}
	return nil
}

func (s *Shell) clear(args []string) error {
	id := ""
	if len(args) > 0 {
		id = args[0]
	}
	n, err := s.app.ClearUndo(id)
	if err != nil {
		return err
	}
	s.out.Success(fmt.Sprintf("cleared %d pending undo(s)", n))
	return nil
}

func (s *Shell) restore(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: restore GRAVE ORIG")
	}
	restored, err := s.app.Restore(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	s.out.Success("restored " + restored)
	return nil
}

func (s *Shell) resurrect(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: resurrect N|PATH")
	}
	arg := strings.Join(args, " ")

	f, picked, err := s.pick(arg)
	if err != nil {
		return err
	}
	path, labels := arg, reaper.ClassificationSet(0)
	if picked {
		path, labels = f.Path, f.Classifications
	}

	p, err := s.app.Resurrect(path, labels)
	if err != nil {
		return err
	}
	s.forget(p)
	s.out.Success("resurrected " + p)
	return nil
}

func (s *Shell) whitelist() error {
	paths, err := s.app.Whitelisted()
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		s.out.Muted("whitelist is empty")
	}
	for _, p := range paths {
		s.out.Info(p)
	}
	return nil
}

func (s *Shell) graveyard(ctx context.Context) error {
	root, files, err := s.app.Graveyard(ctx)
	if err != nil {
		return err
	}
	s.out.Title(root)
	if len(files) == 0 {
		s.out.Muted("empty")
	}
	for _, f := range files {
		s.out.Info("  " + f)
	}
	return nil
}

func (s *Shell) log(args []string) error {
	var filter reaper.LogFilter
	if len(args) > 0 {
		a, err := reaper.ParseAction(args[0])
		if err != nil {
			return err
		}
		filter.Action = &a
	}
	entries, err := s.app.QueryLog(filter)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		s.out.Muted("no operations recorded")
	}
	for _, e := range entries {
		s.out.LogEntry(e)
	}
	return nil
}
