package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/eiannone/keyboard"
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/chmdznr/odoo-recruit-sync/internal/sync"
	"github.com/chmdznr/odoo-recruit-sync/pkg/models"
	"github.com/chmdznr/odoo-recruit-sync/pkg/utils"
)

func syncFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{Name: "no-attachments", Usage: "Do not download candidate attachments"},
		&cli.BoolFlag{Name: "interactive", Aliases: []string{"i"}, Usage: "Press 'q' or ESC to stop the sync"},
	}
}

// syncFunc runs one sync pass and returns its report.
type syncFunc func(ctx context.Context, e *env, s *sync.Syncer) (*models.SyncReport, error)

func runSync(c *cli.Context, opts sync.Options, run syncFunc) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if c.Bool("interactive") {
		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(ctx)
		defer cancel()
		if err := watchKeyboard(ctx, cancel, e.logger); err != nil {
			e.logger.Warn("keyboard input unavailable", "error", err)
		} else {
			defer keyboard.Close()
			fmt.Println("Press 'q' or ESC to stop the sync")
		}
	}

	opts.SkipAttachments = c.Bool("no-attachments")
	syncer, err := e.newSyncer(ctx, opts, os.Stderr)
	if err != nil {
		return err
	}

	report, err := run(ctx, e, syncer)
	if report != nil {
		// The run is recorded even when interrupted; use a fresh context for it.
		if _, serr := e.db.SaveSyncRun(context.WithoutCancel(ctx), report); serr != nil {
			e.logger.Error("failed to save sync run", "error", serr)
		}
		printReport(report)
	}
	if errors.Is(err, context.Canceled) {
		color.Yellow("Sync stopped before completion")
		return nil
	}
	return err
}

// watchKeyboard cancels the sync when the user presses 'q', ESC or Ctrl+C.
func watchKeyboard(ctx context.Context, cancel context.CancelFunc, logger *slog.Logger) error {
	keys, err := keyboard.GetKeys(10)
	if err != nil {
		return err
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-keys:
				if !ok {
					return
				}
				if ev.Err != nil {
					logger.Debug("keyboard read failed", "error", ev.Err)
					continue
				}
				if ev.Rune == 'q' || ev.Rune == 'Q' || ev.Key == keyboard.KeyEsc || ev.Key == keyboard.KeyCtrlC {
					fmt.Println("\nStopping sync...")
					cancel()
					return
				}
			}
		}
	}()
	return nil
}

func syncCompanies(c *cli.Context) error {
	opts := sync.Options{
		SyncJobs:       c.Bool("jobs"),
		SyncCandidates: c.Bool("candidates"),
	}
	return runSync(c, opts, func(ctx context.Context, e *env, s *sync.Syncer) (*models.SyncReport, error) {
		r, err := resolveRecruiter(ctx, e.db, c.String("recruiter"))
		if err != nil {
			return nil, err
		}
		_, report, err := s.SyncCompanies(ctx, r.ID)
		return report, err
	})
}

func syncJobs(c *cli.Context) error {
	opts := sync.Options{SyncCandidates: c.Bool("candidates")}
	return runSync(c, opts, func(ctx context.Context, e *env, s *sync.Syncer) (*models.SyncReport, error) {
		_, report, err := s.SyncJobs(ctx, c.Int64("company"))
		return report, err
	})
}

func syncCandidates(c *cli.Context) error {
	jobID, companyID := c.Int64("job"), c.Int64("company")
	if (jobID == 0) == (companyID == 0) {
		return errors.New("exactly one of --job or --company is required")
	}
	return runSync(c, sync.Options{}, func(ctx context.Context, e *env, s *sync.Syncer) (*models.SyncReport, error) {
		var (
			report *models.SyncReport
			err    error
		)
		if jobID != 0 {
			_, report, err = s.SyncCandidates(ctx, jobID)
		} else {
			_, report, err = s.SyncCompanyCandidates(ctx, companyID)
		}
		return report, err
	})
}

func syncAttachments(c *cli.Context) error {
	return runSync(c, sync.Options{}, func(ctx context.Context, e *env, s *sync.Syncer) (*models.SyncReport, error) {
		_, report, err := s.SyncAttachments(ctx, c.Int64("candidate"))
		return report, err
	})
}

func printReport(r *models.SyncReport) {
	fmt.Printf("\nSync %s finished in %s\n", r.Scope, utils.FormatDuration(r.FinishedAt.Sub(r.StartedAt)))
	for _, row := range []struct {
		name   string
		counts models.Counts
	}{
		{"Companies", r.Companies},
		{"Jobs", r.Jobs},
		{"Candidates", r.Candidates},
		{"Attachments", r.Attachments},
	} {
		if row.counts == (models.Counts{}) {
			continue
		}
		fmt.Printf("  %-12s created %d, updated %d, unchanged %d, deactivated %d, skipped %d, failed %s\n",
			row.name+":",
			row.counts.Created,
			row.counts.Updated,
			row.counts.Unchanged,
			row.counts.Deactivated,
			row.counts.Skipped,
			failedCount(row.counts.Failed),
		)
	}
	for _, s := range r.Skipped {
		color.Yellow("  skipped %s %d: %s", s.Entity, s.ExternalID, s.Reason)
	}
}

func failedCount(n int) string {
	if n == 0 {
		return "0"
	}
	return color.RedString("%d", n)
}
