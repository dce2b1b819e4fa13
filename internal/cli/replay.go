package cli

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rumscope/internal/config"
	"github.com/roach88/rumscope/internal/engine"
	"github.com/roach88/rumscope/internal/harness"
	"github.com/roach88/rumscope/internal/rum"
	"github.com/roach88/rumscope/internal/store"
	"github.com/roach88/rumscope/internal/testutil"
)

// replayApplicationID is used when replay runs without a config.
const replayApplicationID = "rumctl-replay"

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Config   string
	AfterSeq int64
}

// ReplayResult holds the replay result.
type ReplayResult struct {
	Events        int            `json:"events"`
	AfterSeq      int64          `json:"after_seq"`
	Documents     map[string]int `json:"documents"`
	Deterministic bool           `json:"deterministic"`

	// FirstDifference is the index of the first document that differs
	// between the two replays, when they differ.
	FirstDifference *int `json:"first_difference,omitempty"`
}

// String renders the result as text.
func (r ReplayResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Replayed %d event(s) after seq %d\n", r.Events, r.AfterSeq)
	fmt.Fprintln(&b, "Documents:")
	writeCounts(&b, r.Documents)
	if r.Deterministic {
		fmt.Fprintf(&b, "%s Replay verified deterministic", mark(true))
		return b.String()
	}
	fmt.Fprintf(&b, "%s Determinism verification failed", mark(false))
	if r.FirstDifference != nil {
		fmt.Fprintf(&b, " at document %d", *r.FirstDifference)
	}
	return b.String()
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay the event log and verify determinism",
		Long: `Replay the event log of a database into memory twice and compare the
document streams.

Replays keep every session and draw sequential ids. Logged acknowledgements
are fed back in place; the engine does not produce new ones.

Exit codes:
  0 - Both replays produced the same documents
  1 - Determinism verification failed
  2 - Command error (database not found, etc.)

Examples:
  rumctl replay --db rum.db
  rumctl replay --db rum.db --config rum.toml --after 120 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Config, "config", "", "path to TOML config")
	cmd.Flags().Int64Var(&opts.AfterSeq, "after", 0, "replay events with seq above this value")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := loadConfig(opts.Config, replayApplicationID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	if _, err := os.Stat(opts.Database); err != nil {
		return WrapExitError(ExitCommandError, "database not found", err)
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	first, fed, err := replayOnce(ctx, cfg, st, opts.AfterSeq, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "first replay failed", err)
	}
	second, _, err := replayOnce(ctx, cfg, st, opts.AfterSeq, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "second replay failed", err)
	}

	result := ReplayResult{
		Events:        fed,
		AfterSeq:      opts.AfterSeq,
		Documents:     recordCounts(first),
		Deterministic: true,
	}
	if idx, same, err := compareRecords(first, second); err != nil {
		return WrapExitError(ExitCommandError, "failed to compare replays", err)
	} else if !same {
		result.Deterministic = false
		result.FirstDifference = &idx
	}

	if result.Deterministic {
		return out.Success(result)
	}
	if err := out.Failure(CodeDeterminism, "determinism verification failed", result); err != nil {
		return err
	}
	return NewExitError(ExitFailure, "determinism verification failed")
}

// replayOnce feeds the event log into a fresh in-memory engine.
func replayOnce(ctx context.Context, cfg *config.Config, src engine.EventSource, afterSeq int64, logger *slog.Logger) ([]harness.DocumentRecord, int, error) {
	writer := testutil.NewMemoryWriter(cfg.Snapshot())
	env := cfg.ScopeEnv(logger)
	env.WriteContext = writer
	makeDeterministic(&env)

	eng := engine.New(env, writer)
	fed, err := eng.Replay(ctx, src, afterSeq)
	if err != nil {
		return nil, fed, err
	}
	records, err := harness.Records(writer.Documents())
	if err != nil {
		return nil, fed, err
	}
	return records, fed, nil
}

// compareRecords returns the index of the first differing record.
func compareRecords(a, b []harness.DocumentRecord) (int, bool, error) {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		left, err := rum.MarshalCanonical(a[i])
		if err != nil {
			return 0, false, err
		}
		right, err := rum.MarshalCanonical(b[i])
		if err != nil {
			return 0, false, err
		}
		if !bytes.Equal(left, right) {
			return i, false, nil
		}
	}
	if len(a) != len(b) {
		return n, false, nil
	}
	return 0, true, nil
}

func recordCounts(records []harness.DocumentRecord) map[string]int {
	counts := make(map[string]int)
	for _, r := range records {
		counts[string(r.Kind)]++
	}
	return counts
}
