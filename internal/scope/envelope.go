package scope

import "github.com/roach88/rumscope/internal/rum"

const sessionTypeUser = "user"

// newEnvelope fills the block shared by every document.
// attrs is the full attribute set; internal keys feed _dd and are stripped
// from the user context.
func newEnvelope(ctx rum.Context, snap rum.Snapshot, at rum.Time, attrs map[string]any, sampleRate float64) rum.Envelope {
	env := rum.Envelope{
		Date:        at.TimestampMs + snap.ServerTimeOffsetMs,
		Application: rum.Application{ID: ctx.ApplicationID},
		Service:     snap.Service,
		Version:     snap.Version,
		Env:         snap.Env,
		Session: rum.Session{
			ID:   ctx.SessionID,
			Type: sessionTypeUser,
		},
		View: rum.ViewRef{
			ID:   ctx.ViewID,
			Name: ctx.ViewName,
			URL:  ctx.ViewURL,
		},
		Usr:          usrBlock(snap.User),
		Connectivity: connectivityBlock(snap.Network),
		Device:       deviceBlock(snap.Device),
		OS:           osBlock(snap.OS),
		Context:      rum.UserContext(attrs),
		DD: rum.DDMeta{
			FormatVersion: rum.FormatVersion,
			SampleRate:    sampleRate,
			TraceID:       rum.StringAttribute(attrs, rum.AttrTraceID),
			SpanID:        rum.StringAttribute(attrs, rum.AttrSpanID),
		},
	}
	if psr, ok := rum.FloatAttribute(attrs, rum.AttrRulePSR); ok {
		env.DD.RulePSR = &psr
	}
	return env
}

func usrBlock(u rum.UserInfo) *rum.Usr {
	if u.ID == "" && u.Name == "" && u.Email == "" && len(u.Extra) == 0 {
		return nil
	}
	return &rum.Usr{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Extra: rum.CopyAttributes(u.Extra),
	}
}

func connectivityBlock(n rum.NetworkInfo) *rum.Connectivity {
	switch n.Connectivity {
	case "":
		return nil
	case "none":
		return &rum.Connectivity{Status: "not_connected", Interfaces: []string{"none"}}
	default:
		return &rum.Connectivity{
			Status:     "connected",
			Interfaces: []string{n.Connectivity},
			Carrier:    n.Carrier,
		}
	}
}

func deviceBlock(d rum.DeviceInfo) *rum.Device {
	if d == (rum.DeviceInfo{}) {
		return nil
	}
	out := rum.Device(d)
	return &out
}

func osBlock(o rum.OSInfo) *rum.OS {
	if o == (rum.OSInfo{}) {
		return nil
	}
	out := rum.OS(o)
	return &out
}

func actionRef(actionID string) *rum.ActionRef {
	if actionID == "" {
		return nil
	}
	return &rum.ActionRef{ID: []string{actionID}}
}
