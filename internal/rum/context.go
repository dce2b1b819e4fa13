package rum

// Snapshot is the read-only ambient environment captured for one write.
type Snapshot struct {
	Service            string
	Version            string
	Env                string
	ServerTimeOffsetMs int64
	User               UserInfo
	Network            NetworkInfo
	Device             DeviceInfo
	OS                 OSInfo
}

// UserInfo describes the current end user.
type UserInfo struct {
	ID    string         `toml:"id" json:"id,omitempty"`
	Name  string         `toml:"name" json:"name,omitempty"`
	Email string         `toml:"email" json:"email,omitempty"`
	Extra map[string]any `toml:"extra" json:"extra,omitempty"`
}

// NetworkInfo describes connectivity at write time.
type NetworkInfo struct {
	// Connectivity is one of "wifi", "cellular", "ethernet", "other" or "none".
	Connectivity string `toml:"connectivity" json:"connectivity,omitempty"`
	Carrier      string `toml:"carrier" json:"carrier,omitempty"`
}

// DeviceInfo describes the host device.
type DeviceInfo struct {
	Type         string `toml:"type" json:"type,omitempty"`
	Name         string `toml:"name" json:"name,omitempty"`
	Model        string `toml:"model" json:"model,omitempty"`
	Brand        string `toml:"brand" json:"brand,omitempty"`
	Architecture string `toml:"architecture" json:"architecture,omitempty"`
}

// OSInfo describes the host operating system.
type OSInfo struct {
	Name         string `toml:"name" json:"name,omitempty"`
	Version      string `toml:"version" json:"version,omitempty"`
	VersionMajor string `toml:"version_major" json:"version_major,omitempty"`
}

// Batch is the opaque handle the storage layer hands out with a Snapshot.
// Scopes pass it back to Writer.Write untouched.
type Batch interface {
	BatchID() string
}

// Writer is the durable write-one-document sink.
//
// Write returns false when the document was not persisted. Implementations
// may also panic; callers in the scope tree recover.
type Writer interface {
	Write(batch Batch, doc Document) bool
}

// WriteContextProvider supplies a Snapshot and a Batch atomically.
// fn runs synchronously before WithWriteContext returns.
type WriteContextProvider interface {
	WithWriteContext(fn func(snap Snapshot, batch Batch))
}

// SnapshotSource produces the ambient environment on demand.
type SnapshotSource interface {
	Snapshot() Snapshot
}

// StaticSnapshot is a SnapshotSource returning a fixed value.
type StaticSnapshot Snapshot

// Snapshot implements SnapshotSource.
func (s StaticSnapshot) Snapshot() Snapshot {
	snap := Snapshot(s)
	snap.User.Extra = CopyAttributes(s.User.Extra)
	return snap
}

// StorageEvent tells a Notifier which kind of document was written.
type StorageEvent struct {
	Kind             DocumentKind
	FrustrationCount int
	IsFrozenFrame    bool
}

// Notifier receives write outcomes so that pending counters can be released.
// Implementations must not call back into the scope tree synchronously.
type Notifier interface {
	EventSent(viewID string, ev StorageEvent)
	EventDropped(viewID string, ev StorageEvent)
}

// FirstPartyResolver classifies urls belonging to the application's own
// backend.
type FirstPartyResolver interface {
	IsFirstPartyURL(rawURL string) bool
}

// AttributesProvider returns the current global attributes. The returned map
// is a copy the caller owns.
type AttributesProvider interface {
	GlobalAttributes() map[string]any
}

// Context is the linkage published to sibling features on every view and
// action transition.
type Context struct {
	ApplicationID string
	SessionID     string
	SessionActive bool
	ViewID        string
	ViewName      string
	ViewURL       string
	ViewType      string
	ActionID      string
}

// FeatureMap renders c in the shape stored in the feature context store.
func (c Context) FeatureMap() map[string]any {
	return map[string]any{
		"application_id": c.ApplicationID,
		"session_id":     c.SessionID,
		"session_active": c.SessionActive,
		"view_id":        c.ViewID,
		"view_name":      c.ViewName,
		"view_url":       c.ViewURL,
		"view_type":      c.ViewType,
		"action_id":      c.ActionID,
	}
}

// AckEvent converts a write outcome into the acknowledgement event that
// releases the matching pending unit of viewID.
func AckEvent(viewID string, ev StorageEvent, sent bool, at Time) Event {
	switch ev.Kind {
	case KindResource:
		if sent {
			return ResourceSent{ViewID: viewID, Time: at}
		}
		return ResourceDropped{ViewID: viewID, Time: at}
	case KindAction:
		if sent {
			return ActionSent{ViewID: viewID, FrustrationCount: ev.FrustrationCount, Time: at}
		}
		return ActionDropped{ViewID: viewID, Time: at}
	case KindError:
		if sent {
			return ErrorSent{ViewID: viewID, Time: at}
		}
		return ErrorDropped{ViewID: viewID, Time: at}
	case KindLongTask:
		if sent {
			return LongTaskSent{ViewID: viewID, IsFrozenFrame: ev.IsFrozenFrame, Time: at}
		}
		return LongTaskDropped{ViewID: viewID, IsFrozenFrame: ev.IsFrozenFrame, Time: at}
	default:
		return nil
	}
}
