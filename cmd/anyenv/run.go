// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/phil65/anyenv/internal/watch"
	"github.com/phil65/anyenv/pkg/procman"
)

var (
	runDir         string
	runEnvPairs    []string
	runOutputLimit int
	runTimeout     time.Duration
	runGrace       time.Duration
	runWatch       []string
	runWatchIgnore []string
	runWatchClear  bool

	runCmd = &cobra.Command{
		Use:   "run [flags] -- COMMAND [ARGS...]",
		Short: "Run a command on the host with managed output",
		Long: `Run a command on the host under the process manager.

With arguments the command is executed directly; a single argument is
run through the system shell, so pipelines and conjunctions work:

  anyenv run -- 'du -sh * | sort -h'

Output is streamed as it arrives and the command's exit code becomes
anyenv's exit code.

With --watch, the command is re-run whenever files matching the glob
pattern change:

  anyenv run --watch '**/*.py' -- pytest -q`,
		Args: cobra.MinimumNArgs(1),
		RunE: runRun,
	}
)

func init() {
	runCmd.Flags().StringVar(&runDir, "dir", "", "working directory")
	runCmd.Flags().StringArrayVar(&runEnvPairs, "env", nil, "extra environment variable as KEY=VALUE (repeatable)")
	runCmd.Flags().IntVar(&runOutputLimit, "output-limit", 0, "max bytes of captured output per stream (0 = unlimited)")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "kill the command after this duration (0 = no limit)")
	runCmd.Flags().DurationVar(&runGrace, "grace", 5*time.Second, "grace period between SIGTERM and SIGKILL")
	runCmd.Flags().StringArrayVar(&runWatch, "watch", nil, "re-run when files matching this glob change (repeatable)")
	runCmd.Flags().StringArrayVar(&runWatchIgnore, "watch-ignore", nil, "glob of paths that never trigger a re-run (repeatable)")
	runCmd.Flags().BoolVar(&runWatchClear, "watch-clear", false, "clear the screen before each re-run")
	runCmd.Flags().SetInterspersed(false)
}

func runRun(cmd *cobra.Command, args []string) error {
	mgr := procman.NewManager()
	mgr.Events.Connect(func(_ context.Context, ev procman.Event) error {
		if ev.Kind != procman.EventOutput {
			return nil
		}
		if ev.Stream == procman.StreamStderr {
			fmt.Fprint(os.Stderr, ev.Data)
		} else {
			fmt.Print(ev.Data)
		}
		return nil
	})

	env, err := parseEnvPairs(runEnvPairs)
	if err != nil {
		return err
	}

	var opts []procman.StartOption
	if runDir != "" {
		opts = append(opts, procman.WithDir(runDir))
	}
	if len(env) > 0 {
		opts = append(opts, procman.WithEnv(env))
	}
	if runOutputLimit > 0 {
		opts = append(opts, procman.WithOutputLimit(runOutputLimit))
	}

	if len(runWatch) > 0 {
		return runWatched(cmd.Context(), mgr, args, opts)
	}

	code, err := runOnce(cmd.Context(), mgr, args, opts)
	if err != nil {
		return err
	}
	if code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}

// runOnce starts the command and waits for it, honoring --timeout.
func runOnce(ctx context.Context, mgr *procman.Manager, args []string, opts []procman.StartOption) (int, error) {
	if runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runTimeout)
		defer cancel()
	}

	id, err := mgr.Start(ctx, args[0], args[1:], opts...)
	if err != nil {
		return 0, fmt.Errorf("starting command: %w", err)
	}

	code, err := mgr.Wait(ctx, id)
	if err != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), runGrace+5*time.Second)
		defer cancel()
		_ = mgr.Stop(stopCtx, id, procman.WithStopGrace(runGrace))
		if ctx.Err() == context.DeadlineExceeded {
			return 0, &ExitError{Code: 124, Err: fmt.Errorf("command timed out after %s", runTimeout)}
		}
		return 0, err
	}
	_ = mgr.Release(id)
	return code, nil
}

// runWatched runs the command once, then re-runs it whenever files
// matching the watch patterns change. Exit codes of individual runs are
// reported but do not stop the watch loop; only context cancellation
// (Ctrl-C) or a fatal watcher error ends it.
func runWatched(ctx context.Context, mgr *procman.Manager, args []string, opts []procman.StartOption) error {
	rerun := func(ctx context.Context, changed []string) error {
		if len(changed) > 0 {
			fmt.Fprintln(os.Stderr, SubtitleStyle.Render(fmt.Sprintf("changed: %s", strings.Join(changed, ", "))))
		}
		code, err := runOnce(ctx, mgr, args, opts)
		if err != nil {
			return err
		}
		if code != 0 {
			fmt.Fprintln(os.Stderr, WarningStyle.Render(fmt.Sprintf("exit %d", code)))
		}
		return nil
	}

	watcher, err := watch.New(watch.Config{
		Patterns:    runWatch,
		Ignore:      runWatchIgnore,
		ClearScreen: runWatchClear,
		BaseDir:     runDir,
		OnChange:    rerun,
	})
	if err != nil {
		return err
	}

	if err := rerun(ctx, nil); err != nil {
		return err
	}
	return watcher.Run(ctx)
}

func parseEnvPairs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	env := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --env value %q, expected KEY=VALUE", pair)
		}
		env[key] = value
	}
	return env, nil
}
