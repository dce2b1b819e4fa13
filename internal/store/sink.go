package store

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/roach88/rumscope/internal/rum"
)

// Encoding selects the payload format of stored documents.
type Encoding string

const (
	EncodingJSON    Encoding = "json"
	EncodingMsgpack Encoding = "msgpack"
)

// ParseEncoding validates a configured encoding name. Empty means JSON.
func ParseEncoding(name string) (Encoding, error) {
	switch Encoding(name) {
	case "", EncodingJSON:
		return EncodingJSON, nil
	case EncodingMsgpack:
		return EncodingMsgpack, nil
	default:
		return "", fmt.Errorf("unknown encoding %q", name)
	}
}

// batch is the handle given to the scope tree for one write context.
type batch struct {
	id string
}

// BatchID implements rum.Batch.
func (b batch) BatchID() string { return b.id }

// Sink writes documents into the store. It is both the rum.Writer and the
// rum.WriteContextProvider of the scope tree.
//
// Thread-safety: Sink is safe for concurrent use; the underlying connection
// pool is limited to one connection.
type Sink struct {
	store    *Store
	source   rum.SnapshotSource
	encoding Encoding
	logger   *slog.Logger
}

// SinkOption configures a Sink.
type SinkOption func(*Sink)

// WithEncoding sets the payload encoding. Default: EncodingJSON.
func WithEncoding(enc Encoding) SinkOption {
	return func(s *Sink) {
		s.encoding = enc
	}
}

// WithLogger sets the logger used for write failures.
func WithLogger(l *slog.Logger) SinkOption {
	return func(s *Sink) {
		s.logger = l
	}
}

// NewSink creates a Sink over s. source supplies the ambient snapshot of
// every write context; nil means an empty snapshot.
func NewSink(s *Store, source rum.SnapshotSource, opts ...SinkOption) *Sink {
	sink := &Sink{
		store:    s,
		source:   source,
		encoding: EncodingJSON,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(sink)
	}
	return sink
}

// WithWriteContext implements rum.WriteContextProvider.
//
// A batch row is opened before fn runs. If it cannot be opened, fn still
// runs with a batch whose id the store does not know, so every write in it
// fails and is reported as dropped.
func (k *Sink) WithWriteContext(fn func(snap rum.Snapshot, b rum.Batch)) {
	var snap rum.Snapshot
	if k.source != nil {
		snap = k.source.Snapshot()
	}

	b := batch{id: uuid.Must(uuid.NewV7()).String()}
	if err := k.store.OpenBatch(context.Background(), b.id, rum.Now().TimestampMs); err != nil {
		k.logger.Error("open batch failed", "batch_id", b.id, "error", err)
	}
	fn(snap, b)
}

// Write implements rum.Writer.
func (k *Sink) Write(b rum.Batch, doc rum.Document) bool {
	payload, err := EncodeDocument(k.encoding, doc)
	if err != nil {
		k.logger.Error("encode document failed",
			"kind", doc.Kind(),
			"view_id", doc.OwnerViewID(),
			"error", err,
		)
		return false
	}

	row := DocumentRow{
		BatchID:  b.BatchID(),
		Kind:     doc.Kind(),
		ViewID:   doc.OwnerViewID(),
		Encoding: k.encoding,
		Payload:  payload,
	}
	if env := rum.DocumentEnvelope(doc); env != nil {
		row.DateMs = env.Date
		row.Version = env.DD.DocumentVersion
	}

	if _, err := k.store.WriteDocument(context.Background(), row); err != nil {
		k.logger.Error("write document failed",
			"kind", doc.Kind(),
			"view_id", doc.OwnerViewID(),
			"batch_id", b.BatchID(),
			"error", err,
		)
		return false
	}
	return true
}

// EncodeDocument serializes doc with enc.
func EncodeDocument(enc Encoding, doc rum.Document) ([]byte, error) {
	switch enc {
	case EncodingJSON, "":
		return rum.MarshalCanonical(doc)
	case EncodingMsgpack:
		var buf bytes.Buffer
		e := msgpack.NewEncoder(&buf)
		e.SetCustomStructTag("json")
		e.SetSortMapKeys(true)
		if err := e.Encode(doc); err != nil {
			return nil, fmt.Errorf("encode msgpack: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unknown encoding %q", enc)
	}
}

// DecodePayload turns a stored payload back into a generic document tree.
func DecodePayload(enc Encoding, payload []byte) (map[string]any, error) {
	var out map[string]any
	switch enc {
	case EncodingJSON, "":
		dec := jsonDecoder(payload)
		if err := dec.Decode(&out); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	case EncodingMsgpack:
		d := msgpack.NewDecoder(bytes.NewReader(payload))
		d.SetCustomStructTag("json")
		if err := d.Decode(&out); err != nil {
			return nil, fmt.Errorf("decode msgpack: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown encoding %q", enc)
	}
	return out, nil
}
