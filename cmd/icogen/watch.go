package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"git.sr.ht/~jackmordaunt/icogen"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

// settle is how long a source must stay quiet before it is regenerated;
// editors often save in several writes.
const settle = 250 * time.Millisecond

func newWatchCmd() *cobra.Command {
	var flags jobFlags
	cmd := &cobra.Command{
		Use:   "watch [source]",
		Short: "Regenerate the container whenever the source changes",
		Args:  args(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, a []string) error {
			source, err := findSource(a)
			if err != nil {
				return err
			}
			source, err = filepath.Abs(source)
			if err != nil {
				return err
			}
			g, err := flags.generator(cmd)
			if err != nil {
				return err
			}
			req, err := flags.request(cmd, source)
			if err != nil {
				return err
			}
			w, err := fsnotify.NewWatcher()
			if err != nil {
				return fmt.Errorf("creating watcher: %w", err)
			}
			defer w.Close()
			// Watch the directory: editors that replace files would drop a
			// watch on the file itself.
			if err := w.Add(filepath.Dir(source)); err != nil {
				return fmt.Errorf("watching %s: %w", source, err)
			}
			ws := icogen.NewWorkspace(g, 0)
			run := func() {
				if err := ws.Load(source); err != nil {
					logger.Error("loading source", "error", err)
					return
				}
				res, err := ws.Generate(cmd.Context(), req)
				var running *icogen.AlreadyRunningError
				switch {
				case errors.As(err, &running):
					logger.Warn("generation already running", "job", running.JobID)
				case err != nil:
					logger.Error("generating", "error", err)
				default:
					fmt.Fprintln(cmd.OutOrStdout(), res.Message)
				}
			}
			run()
			logger.Info("watching", "source", source)
			var (
				timer   = time.NewTimer(settle)
				pending bool
			)
			timer.Stop()
			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case ev, ok := <-w.Events:
					if !ok {
						return nil
					}
					if filepath.Clean(ev.Name) != source || !ev.Has(fsnotify.Write|fsnotify.Create) {
						continue
					}
					logger.Debug("source changed", "op", ev.Op.String())
					pending = true
					timer.Reset(settle)
				case err, ok := <-w.Errors:
					if !ok {
						return nil
					}
					logger.Warn("watch error", "error", err)
				case <-timer.C:
					if pending {
						pending = false
						run()
					}
				}
			}
		},
	}
	flags.register(cmd)
	return cmd
}
