package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rumscope/internal/rum"
	"github.com/roach88/rumscope/internal/store"
)

// DocsOptions holds flags for the docs command.
type DocsOptions struct {
	*RootOptions
	Database string
	View     string
	Kind     string
	Limit    int
	Latest   bool
}

// DocumentOutput is one stored document as printed by docs.
type DocumentOutput struct {
	Seq      int64           `json:"seq"`
	Kind     string          `json:"kind"`
	ViewID   string          `json:"view_id"`
	Version  int64           `json:"document_version"`
	DateMs   int64           `json:"date_ms"`
	Encoding string          `json:"encoding"`
	Body     json.RawMessage `json:"body"`
}

// ViewOutput is the latest state of one view.
type ViewOutput struct {
	ViewID   string `json:"view_id"`
	Name     string `json:"name"`
	Version  int64  `json:"document_version"`
	IsActive bool   `json:"is_active"`
	Seq      int64  `json:"seq"`
}

// DocsResult is the output of docs.
type DocsResult struct {
	Documents []DocumentOutput `json:"documents,omitempty"`
	Views     []ViewOutput     `json:"views,omitempty"`
	Counts    map[string]int   `json:"counts"`

	verbose bool
}

// String renders the result as text.
func (r DocsResult) String() string {
	var b strings.Builder
	for _, d := range r.Documents {
		fmt.Fprintf(&b, "%6d  %-10s %s v%d\n",
			d.Seq, kindColor.Sprint(d.Kind), dimColor.Sprintf("view=%s", d.ViewID), d.Version)
		if r.verbose {
			fmt.Fprintf(&b, "        %s\n", d.Body)
		}
	}
	for _, v := range r.Views {
		state := "closed"
		if v.IsActive {
			state = "active"
		}
		fmt.Fprintf(&b, "%-40s %-20s v%-4d %s\n", v.ViewID, v.Name, v.Version, state)
	}
	fmt.Fprintln(&b, "Documents:")
	writeCounts(&b, r.Counts)
	return strings.TrimRight(b.String(), "\n")
}

// NewDocsCommand creates the docs command.
func NewDocsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DocsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "docs",
		Short: "List stored documents",
		Long: `List the documents stored in a database, in write order.

With --latest, print the latest version of every view instead.

Examples:
  rumctl docs --db rum.db
  rumctl docs --db rum.db --kind resource --limit 20
  rumctl docs --db rum.db --view 0190a5c2-... --verbose
  rumctl docs --db rum.db --latest --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDocs(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.View, "view", "", "only documents of this view id")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "only documents of this kind (view|resource|action|error|long_task)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of documents (0 = all)")
	cmd.Flags().BoolVar(&opts.Latest, "latest", false, "print the latest version of every view")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runDocs(opts *DocsOptions, cmd *cobra.Command) error {
	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	kind := rum.DocumentKind(opts.Kind)
	if opts.Kind != "" && !isDocumentKind(kind) {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown document kind %q", opts.Kind))
	}
	if opts.Limit < 0 {
		return NewExitError(ExitCommandError, "--limit must be non-negative")
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

	result := DocsResult{verbose: opts.Verbose}
	if opts.Latest {
		result.Views, err = latestViews(ctx, st)
	} else {
		result.Documents, err = listDocuments(ctx, st, store.DocumentFilter{
			ViewID: opts.View,
			Kind:   kind,
			Limit:  opts.Limit,
		})
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read documents", err)
	}

	counts, err := st.CountByKind(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to count documents", err)
	}
	result.Counts = kindCounts(counts)

	return out.Success(result)
}

func listDocuments(ctx context.Context, st *store.Store, f store.DocumentFilter) ([]DocumentOutput, error) {
	rows, err := st.ListDocuments(ctx, f)
	if err != nil {
		return nil, err
	}
	docs := make([]DocumentOutput, 0, len(rows))
	for _, row := range rows {
		body, err := row.CanonicalJSON()
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", row.Seq, err)
		}
		docs = append(docs, DocumentOutput{
			Seq:      row.Seq,
			Kind:     string(row.Kind),
			ViewID:   row.ViewID,
			Version:  row.Version,
			DateMs:   row.DateMs,
			Encoding: string(row.Encoding),
			Body:     body,
		})
	}
	return docs, nil
}

func latestViews(ctx context.Context, st *store.Store) ([]ViewOutput, error) {
	latest, err := st.LatestViews(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]ViewOutput, 0, len(latest))
	for _, v := range latest {
		body, err := v.Row.Decode()
		if err != nil {
			return nil, fmt.Errorf("view %s: %w", v.ViewID, err)
		}
		out := ViewOutput{ViewID: v.ViewID, Version: v.Version, Seq: v.Seq}
		if view, ok := body["view"].(map[string]any); ok {
			out.Name, _ = view["name"].(string)
		}
		if detail, ok := body["view_detail"].(map[string]any); ok {
			out.IsActive, _ = detail["is_active"].(bool)
		}
		views = append(views, out)
	}
	return views, nil
}

func isDocumentKind(kind rum.DocumentKind) bool {
	switch kind {
	case rum.KindView, rum.KindResource, rum.KindAction, rum.KindError, rum.KindLongTask:
		return true
	default:
		return false
	}
}
