package scope

import (
	"github.com/roach88/rumscope/internal/rum"
)

// Synthetic view keys created by the session itself.
var (
	backgroundViewKey = rum.ViewKey{
		ID:   "rumscope/background/view",
		Name: "Background",
	}
	launchViewKey = rum.ViewKey{
		ID:   "rumscope/application-launch/view",
		Name: "ApplicationLaunch",
	}
)

// SessionScope is the root of the scope tree. It owns the session id, the
// sampling decision and the list of live views: at most one active view plus
// any number of stopped views still waiting on acknowledgements.
type SessionScope struct {
	env *Env

	sessionID  string
	active     bool
	sampled    bool
	sampleRate float64

	views []*ViewScope
}

// NewSessionScope creates the root scope and draws the first session.
func NewSessionScope(env *Env) *SessionScope {
	s := &SessionScope{env: env}
	s.renew()
	return s
}

// SessionID returns the current session id.
func (s *SessionScope) SessionID() string { return s.sessionID }

// IsSampled reports whether documents of the current session are kept.
func (s *SessionScope) IsSampled() bool { return s.sampled }

// IsActive implements Scope. The root stays alive for the engine lifetime;
// it reports whether the session is still running.
func (s *SessionScope) IsActive() bool { return s.active }

// RumContext implements ParentScope.
func (s *SessionScope) RumContext() rum.Context {
	return rum.Context{
		ApplicationID: s.env.ApplicationID,
		SessionID:     s.sessionID,
		SessionActive: s.active,
	}
}

// ActiveView returns the view currently accepting work, or nil.
func (s *SessionScope) ActiveView() *ViewScope {
	for _, v := range s.views {
		if v.IsActive() {
			return v
		}
	}
	return nil
}

// Views returns every live view, active or draining, oldest first.
func (s *SessionScope) Views() []*ViewScope {
	return append([]*ViewScope(nil), s.views...)
}

// Handle implements Scope. It never returns nil.
func (s *SessionScope) Handle(ev rum.Event, w rum.Writer) Scope {
	switch e := ev.(type) {
	case rum.StartView:
		if !s.active {
			s.renew()
		}
		s.delegate(ev, w)
		s.startView(e, ViewTypeForeground, w)

	case rum.StopSession:
		s.delegate(ev, w)
		s.active = false
		s.env.Features.Update(rum.FeatureRUM, func(m map[string]any) {
			m["session_active"] = false
		})
		s.env.Logger.Info("session stopped", "session_id", s.sessionID)

	case rum.ApplicationStarted:
		if s.ActiveView() == nil && s.active {
			s.startView(rum.StartView{Key: launchViewKey, Time: e.Time}, ViewTypeApplicationLaunch, w)
		}
		s.delegate(ev, w)

	default:
		if needsActiveView(ev) && s.ActiveView() == nil {
			if !s.env.BackgroundEvents || !s.active {
				s.env.Logger.Debug("event dropped, no active view",
					"event", rum.EventName(ev),
				)
				return s
			}
			s.startView(rum.StartView{Key: backgroundViewKey, Time: ev.EventTime()}, ViewTypeBackground, w)
		}
		s.delegate(ev, w)
	}
	return s
}

// delegate forwards ev to every live view and evicts dead ones.
func (s *SessionScope) delegate(ev rum.Event, w rum.Writer) {
	live := s.views[:0]
	for _, v := range s.views {
		if v.Handle(ev, w) != nil {
			live = append(live, v)
		}
	}
	for i := len(live); i < len(s.views); i++ {
		s.views[i] = nil
	}
	s.views = live
}

func (s *SessionScope) startView(ev rum.StartView, viewType string, w rum.Writer) {
	v := newViewScope(s, s.env, ev, s.sampleRate, viewType)
	v.discard = !s.sampled
	s.views = append(s.views, v)
	if s.env.AnnounceViews {
		v.sendOpeningUpdate(w)
	}
}

// renew draws a new session id and a new sampling decision.
func (s *SessionScope) renew() {
	s.sessionID = s.env.IDs.Generate()
	s.active = true
	s.sampleRate = s.env.SampleRate
	s.sampled = s.env.Sampler() < s.sampleRate

	s.env.Logger.Info("session started",
		"session_id", s.sessionID,
		"sampled", s.sampled,
		"sample_rate", s.sampleRate,
	)
}

// needsActiveView lists the interaction events that a background view can
// absorb when no view is active.
func needsActiveView(ev rum.Event) bool {
	switch ev.(type) {
	case rum.StartAction, rum.StartResource, rum.AddError, rum.AddLongTask:
		return true
	default:
		return false
	}
}
