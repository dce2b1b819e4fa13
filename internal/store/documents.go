package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"fortio.org/safecast"

	"github.com/roach88/rumscope/internal/rum"
)

// DocumentRow is one stored document.
type DocumentRow struct {
	Seq      int64
	BatchID  string
	Kind     rum.DocumentKind
	ViewID   string
	Version  int64
	DateMs   int64
	Encoding Encoding
	Payload  []byte
}

// Decode returns the payload as a generic document tree.
func (r DocumentRow) Decode() (map[string]any, error) {
	return DecodePayload(r.Encoding, r.Payload)
}

// CanonicalJSON returns the payload as canonical JSON whatever the stored
// encoding.
func (r DocumentRow) CanonicalJSON() ([]byte, error) {
	if r.Encoding == EncodingJSON {
		return r.Payload, nil
	}
	tree, err := r.Decode()
	if err != nil {
		return nil, err
	}
	return rum.MarshalCanonical(tree)
}

// DocumentFilter narrows ListDocuments. Zero fields match everything.
type DocumentFilter struct {
	ViewID string
	Kind   rum.DocumentKind

	// Limit caps the number of rows returned; 0 means no limit.
	Limit int
}

// ViewVersion is the latest stored state of one view.
type ViewVersion struct {
	ViewID  string
	Version int64
	Seq     int64
	Row     DocumentRow
}

// OpenBatch records a write context. Re-opening an existing id is a no-op.
func (s *Store) OpenBatch(ctx context.Context, id string, openedAtMs int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO batches (id, opened_at_ms, engine_version)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, openedAtMs, rum.EngineVersion)
	if err != nil {
		return fmt.Errorf("open batch: %w", err)
	}
	return nil
}

// WriteDocument appends row and returns its seq. row.Seq is ignored.
// The batch must have been opened (foreign key constraint).
func (s *Store) WriteDocument(ctx context.Context, row DocumentRow) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO documents
		(batch_id, kind, view_id, document_version, date_ms, encoding, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		row.BatchID,
		string(row.Kind),
		row.ViewID,
		row.Version,
		row.DateMs,
		string(row.Encoding),
		row.Payload,
	)
	if err != nil {
		return 0, fmt.Errorf("write document: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("write document: last insert id: %w", err)
	}
	return seq, nil
}

// ListDocuments returns stored documents in write order.
func (s *Store) ListDocuments(ctx context.Context, f DocumentFilter) ([]DocumentRow, error) {
	var (
		where []string
		args  []any
	)
	if f.ViewID != "" {
		where = append(where, "view_id = ?")
		args = append(args, f.ViewID)
	}
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(f.Kind))
	}

	query := `
		SELECT seq, batch_id, kind, view_id, document_version, date_ms, encoding, payload
		FROM documents`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []DocumentRow
	for rows.Next() {
		row, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("list documents: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return out, nil
}

// CountByKind returns the number of stored documents per kind. Kinds with
// no document are absent.
func (s *Store) CountByKind(ctx context.Context) (map[rum.DocumentKind]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, COUNT(*) FROM documents
		GROUP BY kind
		ORDER BY kind
	`)
	if err != nil {
		return nil, fmt.Errorf("count by kind: %w", err)
	}
	defer rows.Close()

	counts := make(map[rum.DocumentKind]int)
	for rows.Next() {
		var (
			kind string
			n    int64
		)
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("count by kind: %w", err)
		}
		c, err := safecast.Conv[int](n)
		if err != nil {
			return nil, fmt.Errorf("count by kind %s: %w", kind, err)
		}
		counts[rum.DocumentKind(kind)] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count by kind: %w", err)
	}
	return counts, nil
}

// LatestViews returns the highest-version view document of every view,
// ordered by view id.
func (s *Store) LatestViews(ctx context.Context) ([]ViewVersion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.seq, d.batch_id, d.kind, d.view_id, d.document_version, d.date_ms, d.encoding, d.payload
		FROM documents d
		WHERE d.kind = ?
		  AND d.seq = (
		    SELECT seq FROM documents
		    WHERE kind = d.kind AND view_id = d.view_id
		    ORDER BY document_version DESC, seq DESC
		    LIMIT 1
		  )
		ORDER BY d.view_id COLLATE BINARY ASC
	`, string(rum.KindView))
	if err != nil {
		return nil, fmt.Errorf("latest views: %w", err)
	}
	defer rows.Close()

	var out []ViewVersion
	for rows.Next() {
		row, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("latest views: %w", err)
		}
		out = append(out, ViewVersion{
			ViewID:  row.ViewID,
			Version: row.Version,
			Seq:     row.Seq,
			Row:     row,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("latest views: %w", err)
	}
	return out, nil
}

func scanDocument(rows *sql.Rows) (DocumentRow, error) {
	var (
		row      DocumentRow
		kind     string
		encoding string
	)
	err := rows.Scan(
		&row.Seq,
		&row.BatchID,
		&kind,
		&row.ViewID,
		&row.Version,
		&row.DateMs,
		&encoding,
		&row.Payload,
	)
	if err != nil {
		return DocumentRow{}, fmt.Errorf("scan document: %w", err)
	}
	row.Kind = rum.DocumentKind(kind)
	row.Encoding = Encoding(encoding)
	return row, nil
}

func jsonDecoder(payload []byte) *json.Decoder {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	return dec
}
