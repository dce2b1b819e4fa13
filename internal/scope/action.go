package scope

import (
	"time"

	"github.com/roach88/rumscope/internal/rum"
)

const frustrationErrorTap = "error_tap"

// ActionScope tracks one user action and the work it triggers.
//
// A waiting action (WaitForStop) resolves on StopAction. A non-waiting action
// resolves on the first handled event where no resource it started is still
// ongoing and ActionInactivity has elapsed since its last interaction. Either
// kind is cut at ActionMaxDuration.
type ActionScope struct {
	env *Env

	actionID    string
	actionType  rum.ActionType
	name        string
	waitForStop bool
	start       rum.Time
	sampleRate  float64
	ctx         rum.Context

	lastInteraction rum.Time
	inactivity      time.Duration
	maxDuration     time.Duration

	viewAttributes map[string]any
	attributes     map[string]any

	ongoingResources map[string]struct{}
	resourceCount    int64
	errorCount       int64
	crashCount       int64
	longTaskCount    int64

	sent bool
}

func newActionScope(parent *ViewScope, env *Env, ev rum.StartAction, viewAttrs map[string]any, sampleRate float64) *ActionScope {
	a := &ActionScope{
		env:              env,
		actionID:         env.IDs.Generate(),
		actionType:       ev.Type,
		name:             ev.Name,
		waitForStop:      ev.WaitForStop,
		start:            ev.Time,
		sampleRate:       sampleRate,
		lastInteraction:  ev.Time,
		inactivity:       env.ActionInactivity,
		maxDuration:      env.ActionMaxDuration,
		viewAttributes:   rum.CopyAttributes(viewAttrs),
		attributes:       rum.MergeAttributes(ev.Attributes),
		ongoingResources: make(map[string]struct{}),
	}
	// The parent does not list this action yet; link it explicitly.
	a.ctx = parent.RumContext()
	a.ctx.ActionID = a.actionID
	return a
}

// ActionID returns the generated id of the action.
func (a *ActionScope) ActionID() string { return a.actionID }

// IsActive reports whether the action is still open.
func (a *ActionScope) IsActive() bool {
	return !a.sent
}

// Handle implements Scope.
func (a *ActionScope) Handle(ev rum.Event, w rum.Writer) Scope {
	if a.sent {
		return nil
	}

	now := ev.EventTime()
	if now.Since(a.start) > int64(a.maxDuration) {
		a.env.Logger.Debug("action reached max duration",
			"action_id", a.actionID,
			"max_duration", a.maxDuration,
		)
		a.send(a.start.Add(a.maxDuration), w)
		return nil
	}

	switch e := ev.(type) {
	case rum.StartResource:
		a.ongoingResources[e.Key] = struct{}{}
		a.lastInteraction = now
	case rum.StopResource:
		if a.resourceEnded(e.Key) {
			a.resourceCount++
			a.lastInteraction = now
		}
	case rum.StopResourceWithError:
		if a.resourceEnded(e.Key) {
			a.errorCount++
			a.lastInteraction = now
		}
	case rum.StopResourceWithStackTrace:
		if a.resourceEnded(e.Key) {
			a.errorCount++
			a.lastInteraction = now
		}
	case rum.AddError:
		a.errorCount++
		a.lastInteraction = now
		if e.IsFatal {
			a.crashCount++
			a.send(now, w)
			return nil
		}
	case rum.AddLongTask:
		a.longTaskCount++
	case rum.StopAction:
		if a.waitForStop {
			if e.Type != "" {
				a.actionType = e.Type
			}
			if e.Name != "" {
				a.name = e.Name
			}
			a.attributes = rum.MergeAttributes(a.attributes, e.Attributes)
			a.send(now, w)
			return nil
		}
	case rum.StopSession:
		a.send(a.lastInteraction, w)
		return nil
	}

	if !a.waitForStop && len(a.ongoingResources) == 0 &&
		now.Since(a.lastInteraction) >= int64(a.inactivity) {
		a.send(a.lastInteraction, w)
		return nil
	}
	return a
}

func (a *ActionScope) resourceEnded(key string) bool {
	if _, ok := a.ongoingResources[key]; !ok {
		return false
	}
	delete(a.ongoingResources, key)
	return true
}

// forceSend closes the action because its view stopped.
func (a *ActionScope) forceSend(at rum.Time, w rum.Writer) {
	if a.sent {
		return
	}
	end := a.lastInteraction
	if a.waitForStop {
		end = at
	}
	a.send(end, w)
}

func (a *ActionScope) send(end rum.Time, w rum.Writer) {
	a.sent = true

	var frustrations []string
	if a.actionType == rum.ActionTypeTap && a.errorCount > 0 {
		frustrations = append(frustrations, frustrationErrorTap)
	}
	attrs := rum.MergeAttributes(a.env.Attributes.GlobalAttributes(), a.viewAttributes, a.attributes)
	// An action with no follow-up work legitimately ends where it started.
	loading := max(end.Since(a.start), 1)

	ok := a.env.write(w, func(snap rum.Snapshot) rum.Document {
		doc := &rum.ActionDocument{
			Envelope: newEnvelope(a.ctx, snap, a.start, attrs, a.sampleRate),
			Type:     string(rum.KindAction),
			Action: rum.ActionDetail{
				ID:       a.actionID,
				Type:     a.actionType,
				Loading:  loading,
				Resource: rum.Count{Count: a.resourceCount},
				Error:    rum.Count{Count: a.errorCount},
				Crash:    rum.Count{Count: a.crashCount},
				LongTask: rum.Count{Count: a.longTaskCount},
				Frustration: rum.Frustration{
					Type:  append([]string{}, frustrations...),
					Count: int64(len(frustrations)),
				},
			},
		}
		if a.name != "" {
			doc.Action.Target = &rum.Target{Name: a.name}
		}
		return doc
	})

	a.env.notify(ok, a.ctx.ViewID, rum.StorageEvent{
		Kind:             rum.KindAction,
		FrustrationCount: len(frustrations),
	})
}
