package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/JonMunkholm/cpleditor/internal/audit"
	"github.com/JonMunkholm/cpleditor/internal/core"
	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
)

type editOptions struct {
	creates []string
	updates []string
	deletes []int
	output  string
	dryRun  bool
}

func newEditCommand(global *globalOptions) *cobra.Command {
	opts := &editOptions{}

	cmd := &cobra.Command{
		Use:   "edit <file>",
		Short: "Add, rename or remove players in a commentary list",
		Long: `Apply changes to a commentary list and write it back.

Creates run first, then updates, then deletes. The file is written only
when every change succeeds:
  cplist edit list.bin --create "104512=Lionel Messi" --delete 100003 -o out.bin`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEdit(cmd, global, opts, args[0])
		},
	}

	cmd.Flags().StringArrayVar(&opts.creates, "create", nil, "Add a player as id=name (repeatable)")
	cmd.Flags().StringArrayVar(&opts.updates, "update", nil, "Rename the player under id as id=name (repeatable)")
	cmd.Flags().IntSliceVar(&opts.deletes, "delete", nil, "Remove the player under id (repeatable)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Write to this path instead of overwriting the input")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Apply the changes in memory without writing")

	return cmd
}

func runEdit(cmd *cobra.Command, global *globalOptions, opts *editOptions, path string) error {
	if len(opts.creates)+len(opts.updates)+len(opts.deletes) == 0 {
		return errors.New("nothing to change: pass --create, --update or --delete")
	}

	unlock, err := lockFile(path)
	if err != nil {
		return err
	}
	defer unlock()

	ctx := cmd.Context()
	trail := audit.NewMemoryStore(audit.MaxLimit)
	sess, err := openSession(ctx, path, global.preset, trail)
	if err != nil {
		return err
	}

	if err := applyEdits(ctx, sess, opts); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if err := printChanges(ctx, cmd, trail); err != nil {
		return err
	}

	if opts.dryRun {
		fmt.Fprintf(out, "dry run: %d records, nothing written\n", sess.State().Records)
		return nil
	}

	target := opts.output
	if target == "" {
		target = path
	}
	saved, err := sess.Save(ctx, core.FileExporter{Dir: filepath.Dir(target), Name: filepath.Base(target)})
	if err != nil {
		return err
	}
	if !saved {
		return core.ErrNotLoaded
	}
	fmt.Fprintf(out, "wrote %d records to %s\n", sess.State().Records, target)
	return nil
}

// lockFile takes an exclusive lock beside path so two edits of the same
// list cannot interleave their read and write.
func lockFile(path string) (func(), error) {
	lockPath := path + ".lock"
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s is being edited by another process", path)
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			slog.Warn("release edit lock", "path", lockPath, "error", err)
			return
		}
		_ = os.Remove(lockPath)
	}, nil
}

func applyEdits(ctx context.Context, sess *core.Session, opts *editOptions) error {
	for _, raw := range opts.creates {
		in, err := parseAssignment(raw)
		if err != nil {
			return fmt.Errorf("create %w", err)
		}
		if err := sess.Create(ctx, in); err != nil {
			return err
		}
	}
	for _, raw := range opts.updates {
		in, err := parseAssignment(raw)
		if err != nil {
			return fmt.Errorf("update %w", err)
		}
		if err := sess.Update(ctx, in); err != nil {
			return err
		}
	}
	for _, id := range opts.deletes {
		if err := sess.Delete(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// printChanges renders the mutations recorded in trail, oldest first.
func printChanges(ctx context.Context, cmd *cobra.Command, trail audit.Store) error {
	result, err := trail.List(ctx, audit.Query{Limit: audit.MaxLimit})
	if err != nil {
		return err
	}

	entries := slices.Clone(result.Entries)
	slices.Reverse(entries)

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		if e.CommentaryID == nil {
			continue
		}
		rows = append(rows, []string{string(e.Action), strconv.Itoa(*e.CommentaryID), e.OldValue, e.NewValue})
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderTable(
		[]string{"Action", "Commentary ID", "Before", "After"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft},
		shouldColorize(out),
	))
	return nil
}
