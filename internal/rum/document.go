package rum

// DocumentKind names the five output document types.
type DocumentKind string

const (
	KindView     DocumentKind = "view"
	KindResource DocumentKind = "resource"
	KindAction   DocumentKind = "action"
	KindError    DocumentKind = "error"
	KindLongTask DocumentKind = "long_task"
)

// Document is one analytics document produced by a scope.
type Document interface {
	Kind() DocumentKind

	// OwnerViewID returns the id of the view the document belongs to.
	OwnerViewID() string
}

// Application identifies the instrumented application.
type Application struct {
	ID string `json:"id"`
}

// Session is the session block common to every document.
type Session struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	IsActive  *bool  `json:"is_active,omitempty"`
	HasReplay *bool  `json:"has_replay,omitempty"`
}

// ViewRef links a document to its view.
type ViewRef struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	URL      string `json:"url"`
	Referrer string `json:"referrer,omitempty"`
}

// ActionRef links a document to the action active when it was produced.
type ActionRef struct {
	ID []string `json:"id"`
}

// Usr is the user block.
type Usr struct {
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Email string         `json:"email,omitempty"`
	Extra map[string]any `json:"extra,omitempty"`
}

// Connectivity is the network block.
type Connectivity struct {
	Status     string   `json:"status"`
	Interfaces []string `json:"interfaces,omitempty"`
	Carrier    string   `json:"carrier,omitempty"`
}

// Device is the device block.
type Device struct {
	Type         string `json:"type,omitempty"`
	Name         string `json:"name,omitempty"`
	Model        string `json:"model,omitempty"`
	Brand        string `json:"brand,omitempty"`
	Architecture string `json:"architecture,omitempty"`
}

// OS is the operating system block.
type OS struct {
	Name         string `json:"name,omitempty"`
	Version      string `json:"version,omitempty"`
	VersionMajor string `json:"version_major,omitempty"`
}

// DDMeta carries engine bookkeeping on every document.
type DDMeta struct {
	FormatVersion   int          `json:"format_version"`
	DocumentVersion int64        `json:"document_version,omitempty"`
	SampleRate      float64      `json:"configuration_sample_rate"`
	TraceID         string       `json:"trace_id,omitempty"`
	SpanID          string       `json:"span_id,omitempty"`
	RulePSR         *float64     `json:"rule_psr,omitempty"`
	ReplayStats     *ReplayStats `json:"replay_stats,omitempty"`
}

// ReplayStats reports session replay linkage for a view.
type ReplayStats struct {
	RecordsCount int64 `json:"records_count"`
}

// Envelope is the block shared by all documents.
type Envelope struct {
	Date         int64          `json:"date"`
	Application  Application    `json:"application"`
	Service      string         `json:"service,omitempty"`
	Version      string         `json:"version,omitempty"`
	Env          string         `json:"env,omitempty"`
	Session      Session        `json:"session"`
	View         ViewRef        `json:"view"`
	Usr          *Usr           `json:"usr,omitempty"`
	Connectivity *Connectivity  `json:"connectivity,omitempty"`
	Device       *Device        `json:"device,omitempty"`
	OS           *OS            `json:"os,omitempty"`
	Context      map[string]any `json:"context,omitempty"`
	DD           DDMeta         `json:"_dd"`
}

// Count wraps a counter in the nested shape documents use.
type Count struct {
	Count int64 `json:"count"`
}

// ViewDocument is the running summary of one view.
type ViewDocument struct {
	Envelope
	Type         string         `json:"type"`
	ViewDetail   ViewDetail     `json:"view_detail"`
	FeatureFlags map[string]any `json:"feature_flags,omitempty"`
}

// ViewDetail is the view-specific payload of a ViewDocument.
type ViewDetail struct {
	TimeSpent          int64            `json:"time_spent"`
	IsActive           bool             `json:"is_active"`
	Action             Count            `json:"action"`
	Resource           Count            `json:"resource"`
	Error              Count            `json:"error"`
	Crash              Count            `json:"crash"`
	LongTask           Count            `json:"long_task"`
	FrozenFrame        Count            `json:"frozen_frame"`
	Frustration        Count            `json:"frustration"`
	CustomTimings      map[string]int64 `json:"custom_timings,omitempty"`
	CPUTicksCount      *float64         `json:"cpu_ticks_count,omitempty"`
	CPUTicksPerSecond  *float64         `json:"cpu_ticks_per_second,omitempty"`
	MemoryAverage      *float64         `json:"memory_average,omitempty"`
	MemoryMax          *float64         `json:"memory_max,omitempty"`
	RefreshRateAverage *float64         `json:"refresh_rate_average,omitempty"`
	RefreshRateMin     *float64         `json:"refresh_rate_min,omitempty"`
	IsSlowRendered     *bool            `json:"is_slow_rendered,omitempty"`
	JSRefreshRate      *MetricSummary   `json:"js_refresh_rate,omitempty"`
	FlutterBuildTime   *MetricSummary   `json:"flutter_build_time,omitempty"`
	FlutterRasterTime  *MetricSummary   `json:"flutter_raster_time,omitempty"`
}

// MetricSummary aggregates host-pushed metric samples.
type MetricSummary struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Average float64 `json:"average"`
}

// ResourceDocument describes one completed network resource.
type ResourceDocument struct {
	Envelope
	Type     string         `json:"type"`
	Action   *ActionRef     `json:"action,omitempty"`
	Resource ResourceDetail `json:"resource"`
}

// ResourceDetail is the resource-specific payload.
type ResourceDetail struct {
	ID         string            `json:"id"`
	Type       ResourceKind      `json:"type"`
	URL        string            `json:"url"`
	Method     string            `json:"method,omitempty"`
	StatusCode *int64            `json:"status_code,omitempty"`
	Duration   int64             `json:"duration"`
	Size       *int64            `json:"size,omitempty"`
	Provider   *ResourceProvider `json:"provider,omitempty"`
	Timing     *ResourceTiming   `json:"timing,omitempty"`
}

// ResourceProvider marks first party resources.
type ResourceProvider struct {
	Domain string `json:"domain,omitempty"`
	Type   string `json:"type"`
}

// ActionDocument describes one user action.
type ActionDocument struct {
	Envelope
	Type   string       `json:"type"`
	Action ActionDetail `json:"action"`
}

// ActionDetail is the action-specific payload.
type ActionDetail struct {
	ID          string      `json:"id"`
	Type        ActionType  `json:"type"`
	Target      *Target     `json:"target,omitempty"`
	Loading     int64       `json:"loading_time"`
	Resource    Count       `json:"resource"`
	Error       Count       `json:"error"`
	Crash       Count       `json:"crash"`
	LongTask    Count       `json:"long_task"`
	Frustration Frustration `json:"frustration"`
}

// Target names the element an action targeted.
type Target struct {
	Name string `json:"name"`
}

// Frustration lists the frustration signals raised by an action.
type Frustration struct {
	Type  []string `json:"type"`
	Count int64    `json:"count"`
}

// ErrorDocument describes one error or crash.
type ErrorDocument struct {
	Envelope
	Type   string      `json:"type"`
	Action *ActionRef  `json:"action,omitempty"`
	Error  ErrorDetail `json:"error"`
}

// ErrorDetail is the error-specific payload.
type ErrorDetail struct {
	ID          string         `json:"id"`
	Message     string         `json:"message"`
	Source      ErrorSource    `json:"source"`
	SourceType  string         `json:"source_type,omitempty"`
	Type        string         `json:"type,omitempty"`
	Stack       string         `json:"stack,omitempty"`
	IsCrash     bool           `json:"is_crash"`
	Fingerprint string         `json:"fingerprint,omitempty"`
	Resource    *ErrorResource `json:"resource,omitempty"`
}

// ErrorResource nests the failing resource inside an error.
type ErrorResource struct {
	URL        string `json:"url"`
	Method     string `json:"method,omitempty"`
	StatusCode int64  `json:"status_code"`
}

// LongTaskDocument describes one long task or frozen frame.
type LongTaskDocument struct {
	Envelope
	Type     string         `json:"type"`
	Action   *ActionRef     `json:"action,omitempty"`
	LongTask LongTaskDetail `json:"long_task"`
}

// LongTaskDetail is the long-task-specific payload.
type LongTaskDetail struct {
	ID            string `json:"id"`
	Duration      int64  `json:"duration"`
	IsFrozenFrame bool   `json:"is_frozen_frame"`
	Target        string `json:"target,omitempty"`
}

func (d *ViewDocument) Kind() DocumentKind     { return KindView }
func (d *ResourceDocument) Kind() DocumentKind { return KindResource }
func (d *ActionDocument) Kind() DocumentKind   { return KindAction }
func (d *ErrorDocument) Kind() DocumentKind    { return KindError }
func (d *LongTaskDocument) Kind() DocumentKind { return KindLongTask }

func (d *ViewDocument) OwnerViewID() string     { return d.View.ID }
func (d *ResourceDocument) OwnerViewID() string { return d.View.ID }
func (d *ActionDocument) OwnerViewID() string   { return d.View.ID }
func (d *ErrorDocument) OwnerViewID() string    { return d.View.ID }
func (d *LongTaskDocument) OwnerViewID() string { return d.View.ID }

// DocumentEnvelope returns the shared block of any document.
func DocumentEnvelope(doc Document) *Envelope {
	switch d := doc.(type) {
	case *ViewDocument:
		return &d.Envelope
	case *ResourceDocument:
		return &d.Envelope
	case *ActionDocument:
		return &d.Envelope
	case *ErrorDocument:
		return &d.Envelope
	case *LongTaskDocument:
		return &d.Envelope
	default:
		return nil
	}
}
