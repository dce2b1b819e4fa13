package rum

import "sync"

// Feature names used in the feature context store.
const (
	FeatureRUM           = "rum"
	FeatureSessionReplay = "session-replay"

	// replayRecordsSuffix is appended to a view id to store the replay
	// record count next to its has-replay marker.
	replayRecordsSuffix = ".records_count"
)

// FeatureContexts is the shared store sibling features read from and write
// to. Every feature owns one map; readers always get a copy.
type FeatureContexts struct {
	mu       sync.RWMutex
	features map[string]map[string]any
}

// NewFeatureContexts creates an empty store.
func NewFeatureContexts() *FeatureContexts {
	return &FeatureContexts{features: make(map[string]map[string]any)}
}

// Update mutates the map of one feature under the store lock.
func (f *FeatureContexts) Update(feature string, fn func(ctx map[string]any)) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ctx, ok := f.features[feature]
	if !ok {
		ctx = make(map[string]any)
		f.features[feature] = ctx
	}
	fn(ctx)
}

// Get returns a copy of one feature's map. The result is never nil.
func (f *FeatureContexts) Get(feature string) map[string]any {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return MergeAttributes(f.features[feature])
}

// MarkReplay records that session replay captured records for viewID.
// This is the write side used by the replay feature.
func (f *FeatureContexts) MarkReplay(viewID string, records int64) {
	f.Update(FeatureSessionReplay, func(ctx map[string]any) {
		ctx[viewID] = true
		ctx[viewID+replayRecordsSuffix] = records
	})
}

// ReplayStats looks up the has-replay marker and record count for viewID.
func (f *FeatureContexts) ReplayStats(viewID string) (hasReplay bool, records int64) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	ctx := f.features[FeatureSessionReplay]
	if ctx == nil {
		return false, 0
	}
	hasReplay, _ = ctx[viewID].(bool)
	records, _ = ctx[viewID+replayRecordsSuffix].(int64)
	return hasReplay, records
}

// ClearReplay removes the replay marker of a terminated view.
func (f *FeatureContexts) ClearReplay(viewID string) {
	f.Update(FeatureSessionReplay, func(ctx map[string]any) {
		delete(ctx, viewID)
		delete(ctx, viewID+replayRecordsSuffix)
	})
}
