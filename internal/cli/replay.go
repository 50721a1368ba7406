package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	prefetch "github.com/bragbook2/brag-book-gallery-sub005"
)

// ErrBadScript is returned for a malformed replay line.
var ErrBadScript = errors.New("invalid replay script")

func newReplayCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "replay <script|->",
		Short: "Replay a scripted browsing session against the prefetch session",
		Long: `Replay reads one event per line. Blank lines and lines starting with # are ignored.

  card <id> <top> <bottom>   add a summary card to the page
  scroll <top> <height>      move the viewport
  enter <id> / leave <id>    pointer enters or leaves a card
  open <id>                  click a card
  back <id>                  history navigation
  deeplink <id>              initial page load with a case in the URL
  preload <id> <priority>    preload at normal, hover or high
  warm <id>...               warm up cases at normal priority
  wait <duration>            sleep, letting timers and preloads run
  idle                       wait until the preload queue drains
  state <id>                 print the cache state of a case
  stats                      print session counters`,
		Args: cobra.ExactArgs(1),
		RunE: a.runE(func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open script: %w", err)
				}
				defer f.Close()
				in = f
			}

			return newPlayer(a, cmd.OutOrStdout()).Run(cmd.Context(), in)
		}),
	}
}

// box is a card element with fixed page coordinates.
type box struct {
	top, bottom float64
}

func (b box) Bounds() (float64, float64) { return b.top, b.bottom }

// player drives the session's triggers and navigator from script lines.
type player struct {
	a        *app
	out      io.Writer
	registry *prefetch.CardRegistry[string]
	viewport *prefetch.ViewportTrigger[string]
	hover    *prefetch.HoverTrigger[string]
	nav      *prefetch.Navigator[string]
}

func newPlayer(a *app, out io.Writer) *player {
	registry := prefetch.NewCardRegistry[string]()

	return &player{
		a:        a,
		out:      out,
		registry: registry,
		viewport: prefetch.NewViewportTrigger(a.session, registry),
		hover:    prefetch.NewHoverTrigger(a.session),
		nav:      a.navigator(),
	}
}

// Run executes the script line by line and stops at the first error.
func (p *player) Run(ctx context.Context, in io.Reader) error {
	sc := bufio.NewScanner(in)
	lineNo := 0

	for sc.Scan() {
		lineNo++

		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if err := p.exec(ctx, strings.Fields(line)); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
	}

	return sc.Err()
}

func (p *player) exec(ctx context.Context, f []string) error {
	cmd, args := f[0], f[1:]

	switch cmd {
	case "card":
		if len(args) != 3 {
			return usage(cmd, "<id> <top> <bottom>")
		}

		top, bottom, err := floats(args[1], args[2])
		if err != nil {
			return err
		}

		p.registry.Add(prefetch.Card[string]{ID: args[0], Element: box{top: top, bottom: bottom}})
	case "scroll":
		if len(args) != 2 {
			return usage(cmd, "<top> <height>")
		}

		top, height, err := floats(args[0], args[1])
		if err != nil {
			return err
		}

		n := p.viewport.Scroll(prefetch.Viewport{Top: top, Height: height})
		p.printf("scroll %g: %d enqueued\n", top, n)
	case "enter", "leave":
		if len(args) != 1 {
			return usage(cmd, "<id>")
		}

		if cmd == "enter" {
			p.hover.PointerEnter(args[0])
		} else {
			p.hover.PointerLeave(args[0])
		}
	case "open", "back", "deeplink":
		if len(args) != 1 {
			return usage(cmd, "<id>")
		}

		outcome, err := p.nav.Navigate(ctx, args[0], sources[cmd])
		p.printf("%s %s: %s\n", cmd, args[0], outcome)

		// a failed navigation is rendered, not fatal to the replay
		if err != nil && outcome != prefetch.OutcomeFailed {
			return err
		}
	case "preload":
		if len(args) != 2 {
			return usage(cmd, "<id> <priority>")
		}

		priority, err := prefetch.ParsePriority(args[1])
		if err != nil {
			return err
		}

		p.a.session.Preload(args[0], priority)
	case "warm":
		if len(args) == 0 {
			return usage(cmd, "<id>...")
		}

		p.printf("warm: %d enqueued\n", p.a.session.Warmup(args...))
	case "wait":
		if len(args) != 1 {
			return usage(cmd, "<duration>")
		}

		d, err := time.ParseDuration(args[0])
		if err != nil {
			return fmt.Errorf("%w: %w", ErrBadScript, err)
		}

		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
	case "idle":
		return p.a.session.WaitIdle(ctx)
	case "state":
		if len(args) != 1 {
			return usage(cmd, "<id>")
		}

		p.printf("state %s: %s\n", args[0], p.a.session.State(args[0]))
	case "stats":
		st := p.a.session.Stats()
		p.printf("stats: cached=%d queued=%d in_flight=%d hits=%d misses=%d preloaded=%d failed=%d\n",
			st.Cached, st.Queued, st.InFlight, st.Hits, st.Misses, st.Preloaded, st.PreloadFailed)
	default:
		return fmt.Errorf("%w: unknown command %q", ErrBadScript, cmd)
	}

	return nil
}

var sources = map[string]prefetch.Source{
	"open":     prefetch.SourceClick,
	"back":     prefetch.SourceHistory,
	"deeplink": prefetch.SourceDeepLink,
}

func (p *player) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.out, format, args...)
}

func usage(cmd, args string) error {
	return fmt.Errorf("%w: usage: %s %s", ErrBadScript, cmd, args)
}

func floats(a, b string) (float64, float64, error) {
	x, err := strconv.ParseFloat(a, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrBadScript, err)
	}

	y, err := strconv.ParseFloat(b, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrBadScript, err)
	}

	return x, y, nil
}
