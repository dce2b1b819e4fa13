package scope

import (
	"net/url"

	"github.com/roach88/rumscope/internal/rum"
)

const providerTypeFirstParty = "first_party"

// ResourceScope tracks one network resource from start to completion.
//
// It captures the view context and the active action at start, so a resource
// outliving its action or view is still attributed to both.
type ResourceScope struct {
	env *Env

	key        string
	url        string
	method     string
	resourceID string
	start      rum.Time
	sampleRate float64
	ctx        rum.Context

	viewAttributes map[string]any
	attributes     map[string]any

	waitForTiming bool
	timing        *rum.ResourceTiming

	stopped    bool
	sent       bool
	stopTime   rum.Time
	kind       rum.ResourceKind
	statusCode *int64
	size       *int64

	guard durationGuard
}

func newResourceScope(parent *ViewScope, env *Env, ev rum.StartResource, viewAttrs map[string]any, sampleRate float64) *ResourceScope {
	return &ResourceScope{
		env:            env,
		key:            ev.Key,
		url:            ev.URL,
		method:         ev.Method,
		resourceID:     env.IDs.Generate(),
		start:          ev.Time,
		sampleRate:     sampleRate,
		ctx:            parent.RumContext(),
		viewAttributes: rum.CopyAttributes(viewAttrs),
		attributes:     rum.MergeAttributes(ev.Attributes),
	}
}

// IsActive reports whether the resource is still waiting for completion.
func (r *ResourceScope) IsActive() bool {
	return !r.sent
}

// Handle implements Scope.
func (r *ResourceScope) Handle(ev rum.Event, w rum.Writer) Scope {
	if r.sent {
		return nil
	}

	switch e := ev.(type) {
	case rum.WaitForResourceTiming:
		if e.Key == r.key && !r.stopped {
			r.waitForTiming = true
		}
	case rum.AddResourceTiming:
		if e.Key == r.key {
			timing := e.Timing
			r.timing = &timing
			if r.stopped {
				r.sendResource(w)
			}
		}
	case rum.StopResource:
		if e.Key == r.key && !r.stopped {
			r.stopped = true
			r.stopTime = e.Time
			r.kind = e.Kind
			r.statusCode = e.StatusCode
			r.size = e.Size
			r.attributes = rum.MergeAttributes(r.attributes, e.Attributes)
			if !r.waitForTiming || r.timing != nil {
				r.sendResource(w)
			}
		}
	case rum.StopResourceWithError:
		if e.Key == r.key {
			r.sendError(e.Message, e.Source, e.StatusCode, e.ErrorType, "", e.Attributes, e.Time, w)
		}
	case rum.StopResourceWithStackTrace:
		if e.Key == r.key {
			r.sendError(e.Message, e.Source, e.StatusCode, e.ErrorType, e.StackTrace, e.Attributes, e.Time, w)
		}
	}

	if r.sent {
		return nil
	}
	return r
}

func (r *ResourceScope) sendResource(w rum.Writer) {
	r.sent = true

	attrs := rum.MergeAttributes(r.env.Attributes.GlobalAttributes(), r.viewAttributes, r.attributes)
	timing := r.timing
	if timing == nil && !r.waitForTiming {
		timing = timingFromAttribute(attrs[rum.AttrResourceTimings])
	}
	kind := r.kind
	if kind == "" {
		kind = rum.ResourceKindUnknown
	}
	duration := r.guard.clamp(r.env.Logger, r.stopTime.Since(r.start), "resource", r.url)

	ok := r.env.write(w, func(snap rum.Snapshot) rum.Document {
		return &rum.ResourceDocument{
			Envelope: newEnvelope(r.ctx, snap, r.start, attrs, r.sampleRate),
			Type:     string(rum.KindResource),
			Action:   actionRef(r.ctx.ActionID),
			Resource: rum.ResourceDetail{
				ID:         r.resourceID,
				Type:       kind,
				URL:        r.url,
				Method:     r.method,
				StatusCode: r.statusCode,
				Duration:   duration,
				Size:       r.size,
				Provider:   r.provider(),
				Timing:     timing,
			},
		}
	})
	r.env.notify(ok, r.ctx.ViewID, rum.StorageEvent{Kind: rum.KindResource})
}

func (r *ResourceScope) sendError(message string, source rum.ErrorSource, statusCode *int64, errType, stack string, extra map[string]any, at rum.Time, w rum.Writer) {
	r.sent = true

	attrs := rum.MergeAttributes(r.env.Attributes.GlobalAttributes(), r.viewAttributes, r.attributes, extra)
	var status int64
	if statusCode != nil {
		status = *statusCode
	}

	ok := r.env.write(w, func(snap rum.Snapshot) rum.Document {
		return &rum.ErrorDocument{
			Envelope: newEnvelope(r.ctx, snap, at, attrs, r.sampleRate),
			Type:     string(rum.KindError),
			Action:   actionRef(r.ctx.ActionID),
			Error: rum.ErrorDetail{
				ID:          r.env.IDs.Generate(),
				Message:     message,
				Source:      source,
				SourceType:  rum.StringAttribute(attrs, rum.AttrErrorSourceType),
				Type:        errType,
				Stack:       stack,
				Fingerprint: rum.StringAttribute(attrs, rum.AttrErrorFingerprint),
				Resource: &rum.ErrorResource{
					URL:        r.url,
					Method:     r.method,
					StatusCode: status,
				},
			},
		}
	})
	r.env.notify(ok, r.ctx.ViewID, rum.StorageEvent{Kind: rum.KindError})
}

// provider marks first party urls with their host as domain.
func (r *ResourceScope) provider() *rum.ResourceProvider {
	if !r.env.FirstParty.IsFirstPartyURL(r.url) {
		return nil
	}
	p := &rum.ResourceProvider{Type: providerTypeFirstParty}
	if u, err := url.Parse(r.url); err == nil {
		p.Domain = u.Hostname()
	}
	return p
}
