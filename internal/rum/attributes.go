package rum

import (
	"strings"
	"sync"
)

// Internal attribute keys. They are consumed by the engine and stripped
// from the user context of every document.
const (
	AttrResourceTimings   = "_dd.resource_timings"
	AttrTraceID           = "_dd.trace_id"
	AttrSpanID            = "_dd.span_id"
	AttrRulePSR           = "_dd.rule_psr"
	AttrErrorSourceType   = "_dd.error.source_type"
	AttrErrorFingerprint  = "_dd.error.fingerprint"
	internalAttrKeyPrefix = "_dd."
)

// MergeAttributes combines attribute layers into a new map.
// Later layers take precedence on conflicting keys. Nil layers are skipped
// and the result is never nil.
func MergeAttributes(layers ...map[string]any) map[string]any {
	size := 0
	for _, layer := range layers {
		size += len(layer)
	}

	merged := make(map[string]any, size)
	for _, layer := range layers {
		for k, v := range layer {
			merged[k] = v
		}
	}
	return merged
}

// CopyAttributes returns a shallow copy of attrs, or nil when attrs is nil.
func CopyAttributes(attrs map[string]any) map[string]any {
	if attrs == nil {
		return nil
	}
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

// UserContext returns attrs without internal keys, or nil when nothing is
// left.
func UserContext(attrs map[string]any) map[string]any {
	var out map[string]any
	for k, v := range attrs {
		if strings.HasPrefix(k, internalAttrKeyPrefix) {
			continue
		}
		if out == nil {
			out = make(map[string]any, len(attrs))
		}
		out[k] = v
	}
	return out
}

// StringAttribute returns attrs[key] when it holds a non-empty string.
func StringAttribute(attrs map[string]any, key string) string {
	if s, ok := attrs[key].(string); ok {
		return s
	}
	return ""
}

// FloatAttribute returns attrs[key] as a float64 when it holds a number.
func FloatAttribute(attrs map[string]any, key string) (float64, bool) {
	switch v := attrs[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// GlobalAttributes is a concurrency-safe attribute map with copy-on-read
// semantics. It implements AttributesProvider.
type GlobalAttributes struct {
	mu    sync.RWMutex
	attrs map[string]any
}

// NewGlobalAttributes creates a store seeded with initial (copied).
func NewGlobalAttributes(initial map[string]any) *GlobalAttributes {
	return &GlobalAttributes{attrs: MergeAttributes(initial)}
}

// Set adds or replaces one attribute.
func (g *GlobalAttributes) Set(key string, value any) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.attrs[key] = value
}

// Remove deletes one attribute.
func (g *GlobalAttributes) Remove(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.attrs, key)
}

// GlobalAttributes implements AttributesProvider.
func (g *GlobalAttributes) GlobalAttributes() map[string]any {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return CopyAttributes(g.attrs)
}
