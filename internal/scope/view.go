package scope

import (
	"github.com/roach88/rumscope/internal/rum"
	"github.com/roach88/rumscope/internal/vitals"
)

// ViewScope aggregates everything that happens while one view is displayed.
//
// It owns at most one active action and a map of live resources keyed by the
// caller-supplied resource key. The view document it writes is a running
// summary: every visible mutation writes a new version of it.
type ViewScope struct {
	env *Env

	// session is the parent context read once at creation; a draining view
	// keeps reporting the session it was started in.
	session rum.Context

	key        rum.ViewKey
	viewID     string
	viewType   string
	start      rum.Time
	sampleRate float64

	// attributes holds the view's own attributes (start merged with stop).
	attributes map[string]any

	// frozenAttributes is global@stop merged with attributes, set once at
	// stop; later documents never observe global attribute changes.
	frozenAttributes map[string]any

	// discard routes every write of an unsampled view to a discarding
	// writer, so its state machine still drains.
	discard bool

	version         int64
	stopped         bool
	stoppedDuration int64
	sessionActive   bool
	terminated      bool

	actionCount      int64
	resourceCount    int64
	errorCount       int64
	crashCount       int64
	longTaskCount    int64
	frozenFrameCount int64
	frustrationCount int64

	pendingResource    int64
	pendingAction      int64
	pendingError       int64
	pendingLongTask    int64
	pendingFrozenFrame int64

	activeAction *ActionScope
	resources    map[string]*ResourceScope

	featureFlags  map[string]any
	customTimings map[string]int64
	perfMetrics   map[rum.PerformanceMetric]vitals.Info

	vitals *viewVitals
	guard  durationGuard
}

// NewViewScope starts a foreground view. Vital listeners are registered and
// the feature context is published before it returns.
func NewViewScope(parent ParentScope, env *Env, ev rum.StartView, sampleRate float64) *ViewScope {
	return newViewScope(parent, env, ev, sampleRate, ViewTypeForeground)
}

func newViewScope(parent ParentScope, env *Env, ev rum.StartView, sampleRate float64, viewType string) *ViewScope {
	v := &ViewScope{
		env:           env,
		session:       parent.RumContext(),
		key:           ev.Key,
		viewID:        env.IDs.Generate(),
		viewType:      viewType,
		start:         ev.Time,
		sampleRate:    sampleRate,
		attributes:    rum.MergeAttributes(ev.Attributes),
		sessionActive: true,
		resources:     make(map[string]*ResourceScope),
		featureFlags:  make(map[string]any),
		customTimings: make(map[string]int64),
		perfMetrics:   make(map[rum.PerformanceMetric]vitals.Info),
	}
	v.vitals = newViewVitals(env)
	v.publishContext()

	env.Logger.Debug("view started",
		"view_id", v.viewID,
		"view_name", v.key.Name,
		"view_type", viewType,
	)
	return v
}

// ViewID returns the generated id of the view.
func (v *ViewScope) ViewID() string { return v.viewID }

// Key returns the key the view was started with.
func (v *ViewScope) Key() rum.ViewKey { return v.key }

// IsActive reports whether the view still accepts new work. A stopped view
// stays alive (but inactive) until its pending work drains.
func (v *ViewScope) IsActive() bool {
	return !v.stopped
}

// IsStopped reports whether StopView (explicit or implicit) was handled.
func (v *ViewScope) IsStopped() bool { return v.stopped }

// RumContext returns the parent context extended with the view linkage and
// the active action id.
func (v *ViewScope) RumContext() rum.Context {
	ctx := v.session
	ctx.SessionActive = v.sessionActive
	ctx.ViewID = v.viewID
	ctx.ViewName = v.key.Name
	ctx.ViewURL = v.key.ReportedURL()
	ctx.ViewType = v.viewType
	if v.activeAction != nil {
		ctx.ActionID = v.activeAction.actionID
	}
	return ctx
}

// Handle implements Scope.
func (v *ViewScope) Handle(ev rum.Event, w rum.Writer) Scope {
	if v.terminated {
		return nil
	}
	if v.discard {
		w = discardWriter{}
	}

	switch e := ev.(type) {
	case rum.StopResourceWithError:
		v.moveResourceToError(e.Key)
	case rum.StopResourceWithStackTrace:
		v.moveResourceToError(e.Key)
	}

	// Capture the action linkage before children react; a non-waiting
	// action may resolve on this very event.
	actionID := ""
	if v.activeAction != nil {
		actionID = v.activeAction.actionID
	}
	v.delegateToChildren(ev, w)

	switch e := ev.(type) {
	case rum.StartView:
		v.onStartView(e, w)
	case rum.StopView:
		v.onStopView(e, w)
	case rum.StartResource:
		v.onStartResource(e)
	case rum.AddError:
		v.onAddError(e, actionID, w)
	case rum.StartAction:
		v.onStartAction(e, w)
	case rum.AddLongTask:
		v.onAddLongTask(e, actionID, w)
	case rum.AddCustomTiming:
		v.onAddCustomTiming(e, w)
	case rum.AddFeatureFlagEvaluation:
		v.onFeatureFlags(map[string]any{e.Name: e.Value}, e.Time, w)
	case rum.AddFeatureFlagEvaluations:
		v.onFeatureFlags(e.Flags, e.Time, w)
	case rum.UpdatePerformanceMetric:
		v.onUpdatePerformanceMetric(e)
	case rum.KeepAlive:
		if !v.stopped {
			v.sendViewUpdate(e.Time, w)
		}
	case rum.StopSession:
		v.sessionActive = false
		v.sendViewUpdate(e.Time, w)
	case rum.ApplicationStarted:
		v.onApplicationStarted(e, w)
	case rum.ResourceSent:
		if e.ViewID == v.viewID && v.release(&v.pendingResource, "resource") {
			v.resourceCount++
			v.sendViewUpdate(e.Time, w)
		}
	case rum.ResourceDropped:
		if e.ViewID == v.viewID && v.release(&v.pendingResource, "resource") {
			v.sendViewUpdate(e.Time, w)
		}
	case rum.ActionSent:
		if e.ViewID == v.viewID && v.release(&v.pendingAction, "action") {
			v.actionCount++
			v.frustrationCount += int64(e.FrustrationCount)
			v.sendViewUpdate(e.Time, w)
		}
	case rum.ActionDropped:
		if e.ViewID == v.viewID && v.release(&v.pendingAction, "action") {
			v.sendViewUpdate(e.Time, w)
		}
	case rum.ErrorSent:
		if e.ViewID == v.viewID && v.release(&v.pendingError, "error") {
			v.sendViewUpdate(e.Time, w)
		}
	case rum.ErrorDropped:
		if e.ViewID == v.viewID && v.release(&v.pendingError, "error") {
			// The error was counted when reported; it never reached storage.
			if v.errorCount > 0 {
				v.errorCount--
			}
			v.sendViewUpdate(e.Time, w)
		}
	case rum.LongTaskSent:
		if e.ViewID == v.viewID && v.release(&v.pendingLongTask, "long_task") {
			v.longTaskCount++
			if e.IsFrozenFrame && v.release(&v.pendingFrozenFrame, "frozen_frame") {
				v.frozenFrameCount++
			}
			v.sendViewUpdate(e.Time, w)
		}
	case rum.LongTaskDropped:
		if e.ViewID == v.viewID && v.release(&v.pendingLongTask, "long_task") {
			if e.IsFrozenFrame {
				v.release(&v.pendingFrozenFrame, "frozen_frame")
			}
			v.sendViewUpdate(e.Time, w)
		}
	}

	if v.isComplete() {
		v.terminate()
		return nil
	}
	return v
}

// delegateToChildren forwards ev to the active action and to every live
// resource, evicting the ones that die.
func (v *ViewScope) delegateToChildren(ev rum.Event, w rum.Writer) {
	if v.activeAction != nil {
		if v.activeAction.Handle(ev, w) == nil {
			v.activeAction = nil
			v.publishContext()
		}
	}
	for key, r := range v.resources {
		if r.Handle(ev, w) == nil {
			delete(v.resources, key)
		}
	}
}

// moveResourceToError transfers one pending unit from resource to error
// for a resource failing with an error. Unknown keys change nothing.
func (v *ViewScope) moveResourceToError(key string) {
	if _, ok := v.resources[key]; !ok {
		return
	}
	v.release(&v.pendingResource, "resource")
	v.pendingError++
	v.errorCount++
}

func (v *ViewScope) onStartView(e rum.StartView, w rum.Writer) {
	if v.stopped {
		return
	}
	// A new view implicitly stops the current one, whatever its key.
	v.stop(e.Time, nil, w)
}

func (v *ViewScope) onStopView(e rum.StopView, w rum.Writer) {
	if v.stopped || !v.key.Matches(e.Key) {
		return
	}
	v.stop(e.Time, e.Attributes, w)
}

func (v *ViewScope) stop(at rum.Time, attrs map[string]any, w rum.Writer) {
	v.attributes = rum.MergeAttributes(v.attributes, attrs)
	v.frozenAttributes = rum.MergeAttributes(v.env.Attributes.GlobalAttributes(), v.attributes)
	v.stopped = true
	v.stoppedDuration = v.guard.clamp(v.env.Logger, at.Since(v.start), "view", v.key.Name)

	// The delegation pass already forwarded the stop to the action; a
	// waiting action that ignored it is forced closed here.
	if v.activeAction != nil {
		v.activeAction.forceSend(at, w)
		v.activeAction = nil
	}

	v.sendViewUpdate(at, w)
	v.publishContext()

	v.env.Logger.Debug("view stopped",
		"view_id", v.viewID,
		"duration_ns", v.stoppedDuration,
		"pending", v.pendingTotal(),
	)
}

func (v *ViewScope) onStartResource(e rum.StartResource) {
	if v.stopped {
		return
	}
	if _, exists := v.resources[e.Key]; exists {
		v.env.Logger.Warn("resource key already in use, start ignored",
			"view_id", v.viewID,
			"resource_key", e.Key,
		)
		return
	}
	v.resources[e.Key] = newResourceScope(v, v.env, e, v.attributes, v.sampleRate)
	v.pendingResource++
}

func (v *ViewScope) onAddError(e rum.AddError, actionID string, w rum.Writer) {
	if v.stopped {
		return
	}

	ctx := v.RumContext()
	ctx.ActionID = actionID
	attrs := rum.MergeAttributes(v.env.Attributes.GlobalAttributes(), v.attributes, e.Attributes)

	ok := v.env.write(w, func(snap rum.Snapshot) rum.Document {
		doc := &rum.ErrorDocument{
			Envelope: newEnvelope(ctx, snap, e.Time, attrs, v.sampleRate),
			Type:     string(rum.KindError),
			Action:   actionRef(actionID),
			Error: rum.ErrorDetail{
				ID:          v.env.IDs.Generate(),
				Message:     e.Message,
				Source:      e.Source,
				SourceType:  rum.StringAttribute(attrs, rum.AttrErrorSourceType),
				Type:        e.ErrorType,
				Stack:       e.Stack,
				IsCrash:     e.IsFatal,
				Fingerprint: rum.StringAttribute(attrs, rum.AttrErrorFingerprint),
			},
		}
		doc.Session.IsActive = boolPtr(v.sessionActive)
		return doc
	})

	v.errorCount++
	if e.IsFatal {
		// The process may die before an acknowledgement could round-trip,
		// so the crash is reflected in the view right away and holds no
		// pending unit.
		v.crashCount++
		if !ok {
			v.env.Logger.Warn("crash document dropped", "view_id", v.viewID)
		}
		v.sendViewUpdate(e.Time, w)
		return
	}

	v.pendingError++
	v.env.notify(ok, v.viewID, rum.StorageEvent{Kind: rum.KindError})
}

func (v *ViewScope) onStartAction(e rum.StartAction, w rum.Writer) {
	if v.stopped {
		return
	}
	if e.Type == rum.ActionTypeCustom && !e.WaitForStop {
		v.sendInstantAction(e.Type, e.Name, e.Time, e.Attributes, w)
		return
	}
	if v.activeAction != nil {
		v.env.Logger.Warn("action already active, start ignored",
			"view_id", v.viewID,
			"active_action_id", v.activeAction.actionID,
			"action_type", e.Type,
			"action_name", e.Name,
		)
		return
	}
	v.activeAction = newActionScope(v, v.env, e, v.attributes, v.sampleRate)
	v.pendingAction++
	v.publishContext()
}

func (v *ViewScope) onApplicationStarted(e rum.ApplicationStarted, w rum.Writer) {
	if v.stopped {
		return
	}
	v.sendInstantAction(rum.ActionTypeApplicationStart, "", e.Time, nil, w)
}

// sendInstantAction writes an action that completes at the moment it is
// reported (custom non-waiting actions and application start).
func (v *ViewScope) sendInstantAction(kind rum.ActionType, name string, at rum.Time, attrs map[string]any, w rum.Writer) {
	ctx := v.RumContext()
	merged := rum.MergeAttributes(v.env.Attributes.GlobalAttributes(), v.attributes, attrs)
	actionID := v.env.IDs.Generate()

	ok := v.env.write(w, func(snap rum.Snapshot) rum.Document {
		doc := &rum.ActionDocument{
			Envelope: newEnvelope(ctx, snap, at, merged, v.sampleRate),
			Type:     string(rum.KindAction),
			Action: rum.ActionDetail{
				ID:          actionID,
				Type:        kind,
				Loading:     1,
				Frustration: rum.Frustration{Type: []string{}},
			},
		}
		if name != "" {
			doc.Action.Target = &rum.Target{Name: name}
		}
		return doc
	})

	v.pendingAction++
	v.env.notify(ok, v.viewID, rum.StorageEvent{Kind: rum.KindAction})
}

func (v *ViewScope) onAddLongTask(e rum.AddLongTask, actionID string, w rum.Writer) {
	if v.stopped {
		return
	}

	ctx := v.RumContext()
	ctx.ActionID = actionID
	attrs := rum.MergeAttributes(v.env.Attributes.GlobalAttributes(), v.attributes)
	frozen := e.DurationNs >= FrozenFrameThresholdNs

	ok := v.env.write(w, func(snap rum.Snapshot) rum.Document {
		doc := &rum.LongTaskDocument{
			Envelope: newEnvelope(ctx, snap, e.Time, attrs, v.sampleRate),
			Type:     string(rum.KindLongTask),
			Action:   actionRef(actionID),
			LongTask: rum.LongTaskDetail{
				ID:            v.env.IDs.Generate(),
				Duration:      e.DurationNs,
				IsFrozenFrame: frozen,
				Target:        e.Target,
			},
		}
		// The task is reported when it ends; its date is when it began.
		doc.Date -= e.DurationNs / 1_000_000
		return doc
	})

	v.pendingLongTask++
	if frozen {
		v.pendingFrozenFrame++
	}
	v.env.notify(ok, v.viewID, rum.StorageEvent{Kind: rum.KindLongTask, IsFrozenFrame: frozen})
}

func (v *ViewScope) onAddCustomTiming(e rum.AddCustomTiming, w rum.Writer) {
	if v.stopped {
		return
	}
	v.customTimings[e.Name] = e.Time.Since(v.start)
	v.sendViewUpdate(e.Time, w)
}

func (v *ViewScope) onFeatureFlags(flags map[string]any, at rum.Time, w rum.Writer) {
	if v.stopped || len(flags) == 0 {
		return
	}
	for name, value := range flags {
		v.featureFlags[name] = value
	}
	v.sendViewUpdate(at, w)
}

func (v *ViewScope) onUpdatePerformanceMetric(e rum.UpdatePerformanceMetric) {
	if v.stopped {
		return
	}
	info, ok := v.perfMetrics[e.Metric]
	if !ok {
		info = vitals.Empty
	}
	v.perfMetrics[e.Metric] = info.Add(e.Value)
}

// release decrements one pending counter and reports whether it did. An
// acknowledgement with nothing pending is an anomaly: it is logged, the
// counter stays at zero and the acknowledgement is otherwise ignored.
func (v *ViewScope) release(counter *int64, name string) bool {
	if *counter <= 0 {
		v.env.Logger.Warn("acknowledgement without pending unit",
			"view_id", v.viewID,
			"counter", name,
		)
		*counter = 0
		return false
	}
	*counter--
	return true
}

func (v *ViewScope) pendingTotal() int64 {
	return v.pendingResource + v.pendingAction + v.pendingError + v.pendingLongTask + v.pendingFrozenFrame
}

// isComplete reports whether a stopped view has nothing left to wait for.
func (v *ViewScope) isComplete() bool {
	return v.stopped &&
		v.pendingTotal() == 0 &&
		v.activeAction == nil &&
		len(v.resources) == 0
}

func (v *ViewScope) terminate() {
	v.terminated = true
	v.vitals.unregister()
	v.env.Features.ClearReplay(v.viewID)
	v.env.Logger.Debug("view terminated",
		"view_id", v.viewID,
		"document_version", v.version,
	)
}

// publishContext pushes the current linkage to the feature context store.
// A stopped view only clears the store if it still describes this view.
func (v *ViewScope) publishContext() {
	ctx := v.RumContext()
	v.env.Features.Update(rum.FeatureRUM, func(m map[string]any) {
		if v.stopped {
			if id, _ := m["view_id"].(string); id != v.viewID {
				return
			}
			ctx.ViewID, ctx.ViewName, ctx.ViewURL, ctx.ViewType, ctx.ActionID = "", "", "", "", ""
		}
		for k, val := range ctx.FeatureMap() {
			m[k] = val
		}
	})
}

// sendViewUpdate writes the next version of the view document.
func (v *ViewScope) sendViewUpdate(at rum.Time, w rum.Writer) {
	duration := v.stoppedDuration
	if !v.stopped {
		duration = v.guard.clamp(v.env.Logger, at.Since(v.start), "view", v.key.Name)
	}
	v.writeView(duration, w)
}

// sendOpeningUpdate writes version 1 at the start instant. Nothing has
// elapsed yet, so the duration is the 1ns floor and no clamp is reported.
func (v *ViewScope) sendOpeningUpdate(w rum.Writer) {
	if v.discard {
		w = discardWriter{}
	}
	v.writeView(1, w)
}

func (v *ViewScope) writeView(duration int64, w rum.Writer) {
	v.version++

	attrs := v.frozenAttributes
	if !v.stopped {
		attrs = rum.MergeAttributes(v.env.Attributes.GlobalAttributes(), v.attributes)
	}

	ctx := v.RumContext()
	hasReplay, records := v.env.Features.ReplayStats(v.viewID)
	version := v.version

	detail := rum.ViewDetail{
		TimeSpent:   duration,
		IsActive:    !v.isComplete(),
		Action:      rum.Count{Count: v.actionCount},
		Resource:    rum.Count{Count: v.resourceCount},
		Error:       rum.Count{Count: v.errorCount},
		Crash:       rum.Count{Count: v.crashCount},
		LongTask:    rum.Count{Count: v.longTaskCount},
		FrozenFrame: rum.Count{Count: v.frozenFrameCount},
		Frustration: rum.Count{Count: v.frustrationCount},
	}
	if len(v.customTimings) > 0 {
		detail.CustomTimings = make(map[string]int64, len(v.customTimings))
		for name, t := range v.customTimings {
			detail.CustomTimings[name] = t
		}
	}
	v.vitals.fill(&detail, duration)
	detail.JSRefreshRate = metricSummary(v.perfMetrics[rum.MetricJSRefreshRate])
	detail.FlutterBuildTime = metricSummary(v.perfMetrics[rum.MetricFlutterBuildTime])
	detail.FlutterRasterTime = metricSummary(v.perfMetrics[rum.MetricFlutterRasterTime])

	ok := v.env.write(w, func(snap rum.Snapshot) rum.Document {
		doc := &rum.ViewDocument{
			Envelope:     newEnvelope(ctx, snap, v.start, attrs, v.sampleRate),
			Type:         string(rum.KindView),
			ViewDetail:   detail,
			FeatureFlags: rum.CopyAttributes(v.featureFlags),
		}
		if len(doc.FeatureFlags) == 0 {
			doc.FeatureFlags = nil
		}
		doc.Session.IsActive = boolPtr(v.sessionActive)
		doc.Session.HasReplay = boolPtr(hasReplay)
		doc.DD.DocumentVersion = version
		if hasReplay {
			doc.DD.ReplayStats = &rum.ReplayStats{RecordsCount: records}
		}
		return doc
	})
	if !ok {
		v.env.Logger.Warn("view update dropped",
			"view_id", v.viewID,
			"document_version", version,
		)
	}
}

func metricSummary(info vitals.Info) *rum.MetricSummary {
	if info.SampleCount == 0 {
		return nil
	}
	return &rum.MetricSummary{Min: info.Min, Max: info.Max, Average: info.Mean}
}

func boolPtr(b bool) *bool { return &b }
