package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rumscope/internal/engine"
	"github.com/roach88/rumscope/internal/rum"
	"github.com/roach88/rumscope/internal/scope"
	"github.com/roach88/rumscope/internal/store"
)

// idPrefix numbers the ids of a deterministic run.
const idPrefix = "rum"

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Config   string
	Database string

	// Deterministic keeps every session and draws sequential ids. Ids
	// restart at rum-1 on every run.
	Deterministic bool

	// Now overrides the base time of the events file (for testing).
	Now func() rum.Time
}

// RunSummary is the result of one run.
type RunSummary struct {
	Database  string         `json:"database"`
	Events    int            `json:"events"`
	Handled   int            `json:"handled"`
	FirstSeq  int64          `json:"first_seq"`
	LastSeq   int64          `json:"last_seq"`
	Documents map[string]int `json:"documents"`
}

// String renders the summary as text.
func (s RunSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %d events handled (%d with acknowledgements), seq %d..%d\n",
		mark(true), s.Events, s.Handled, s.FirstSeq, s.LastSeq)
	fmt.Fprintf(&b, "Documents in %s:\n", s.Database)
	writeCounts(&b, s.Documents)
	return strings.TrimRight(b.String(), "\n")
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <events.jsonl>",
		Short: "Aggregate an events file into stored documents",
		Long: `Feed a JSON Lines events file through the aggregation engine.

Every handled event, write acknowledgements included, is appended to the
event log of the database, numbered after the last event already there.
Documents are written to the same database.

Each line names an event and its fields:
  {"event": "start_view", "offset": "0s", "fields": {"key": {"id": "home", "name": "Home"}}}

Example:
  rumctl run --config rum.toml events.jsonl
  rumctl run --config rum.toml --db /tmp/rum.db --deterministic events.jsonl`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvents(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to TOML config (required)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default: store.path of the config)")
	cmd.Flags().BoolVar(&opts.Deterministic, "deterministic", false, "keep every session and use sequential ids")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func runEvents(opts *RunOptions, eventsPath string, cmd *cobra.Command) error {
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := loadConfig(opts.Config, "")
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	now := rum.Now
	if opts.Now != nil {
		now = opts.Now
	}
	events, err := ReadEventsFile(eventsPath, now())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read events", err)
	}

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = cfg.Store.Path
	}
	enc, err := store.ParseEncoding(cfg.Store.Encoding)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid store encoding", err)
	}

	out.VerboseLog("opening database %s", dbPath)
	st, err := store.Open(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	lastSeq, err := st.GetLastSeq(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read event log", err)
	}

	sink := store.NewSink(st, rum.StaticSnapshot(cfg.Snapshot()),
		store.WithEncoding(enc),
		store.WithLogger(logger),
	)
	env := cfg.ScopeEnv(logger)
	env.WriteContext = sink
	if opts.Deterministic {
		makeDeterministic(&env)
	}

	eng := engine.New(env, sink,
		engine.WithEventLog(st),
		engine.WithClock(engine.NewClockAt(lastSeq)),
		engine.WithNow(now),
	)
	for _, ev := range events {
		eng.Enqueue(ev)
	}
	handled := eng.ProcessPending(ctx)
	if err := ctx.Err(); err != nil {
		return WrapExitError(ExitFailure, "run interrupted", err)
	}

	counts, err := st.CountByKind(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to count documents", err)
	}

	return out.Success(RunSummary{
		Database:  dbPath,
		Events:    len(events),
		Handled:   handled,
		FirstSeq:  lastSeq + 1,
		LastSeq:   eng.Clock().Current(),
		Documents: kindCounts(counts),
	})
}

// makeDeterministic keeps every session and numbers ids sequentially.
func makeDeterministic(env *scope.Env) {
	env.Sampler = func() float64 { return 0 }
	env.IDs = rum.NewSequenceGenerator(idPrefix)
}

func kindCounts(counts map[rum.DocumentKind]int) map[string]int {
	out := make(map[string]int, len(counts))
	for kind, n := range counts {
		out[string(kind)] = n
	}
	return out
}

// writeCounts writes one "kind: n" line per kind, sorted by kind.
func writeCounts(w io.Writer, counts map[string]int) {
	if len(counts) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	kinds := make([]string, 0, len(counts))
	for kind := range counts {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		fmt.Fprintf(w, "  %-10s %d\n", kindColor.Sprint(kind), counts[kind])
	}
}
