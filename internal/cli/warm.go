package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	prefetch "github.com/bragbook2/brag-book-gallery-sub005"
)

// ErrWarmFailed is returned when at least one warmed case could not be loaded.
var ErrWarmFailed = errors.New("some cases failed to preload")

func newWarmCmd(a *app) *cobra.Command {
	var (
		timeout  time.Duration
		progress time.Duration
	)

	cmd := &cobra.Command{
		Use:   "warm <case-id>...",
		Short: "Preload cases at normal priority and wait for the queue to drain",
		Args:  cobra.MinimumNArgs(1),
		RunE: a.runE(func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			queued := a.session.Warmup(args...)
			a.logger.Debug().Str("component", "cli").Int("queued", queued).Msg("warmup started")

			if err := waitWithProgress(ctx, a.session, cmd.ErrOrStderr(), progress); err != nil {
				return err
			}

			return report(cmd.OutOrStdout(), a.session, len(args))
		}),
	}

	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "maximum time to wait for the queue to drain")
	cmd.Flags().DurationVar(&progress, "progress", 0, "print queue stats at this interval (0 disables)")

	return cmd
}

// waitWithProgress blocks until the session is idle, printing stats every interval.
func waitWithProgress(ctx context.Context, s *prefetch.Session[string], w io.Writer, interval time.Duration) error {
	idle := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(idle)
		return s.WaitIdle(gctx)
	})

	if interval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				select {
				case <-idle:
					return nil
				case <-ticker.C:
					st := s.Stats()
					_, _ = fmt.Fprintf(w, "queued=%d in_flight=%d cached=%d\n", st.Queued, st.InFlight, st.Cached)
				}
			}
		})
	}

	return g.Wait()
}

func report(w io.Writer, s *prefetch.Session[string], requested int) error {
	st := s.Stats()
	_, _ = fmt.Fprintf(w, "cached %d of %d cases (preloaded=%d failed=%d)\n",
		st.Cached, requested, st.Preloaded, st.PreloadFailed)

	failures := s.RecentFailures()
	for _, f := range failures {
		_, _ = fmt.Fprintf(w, "  %s: %v\n", f.ID, f.Err)
	}

	if st.PreloadFailed > 0 {
		return fmt.Errorf("%w: %d", ErrWarmFailed, st.PreloadFailed)
	}

	return nil
}
