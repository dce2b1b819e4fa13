package rum

// Event is a raw signal delivered to the scope tree.
//
// The set of implementations is closed: the unexported marker method keeps
// other packages from adding event kinds, so dispatch is an exhaustive type
// switch.
type Event interface {
	// EventTime returns the time the signal was captured.
	EventTime() Time

	eventMarker()
}

// ViewKey identifies a view across its Start/Stop events.
type ViewKey struct {
	// ID is the identity used to match Stop events (typically the url or a
	// host object identity).
	ID string `json:"id"`

	// Name is the human readable view name.
	Name string `json:"name"`

	// URL is reported on documents. Defaults to ID when empty.
	URL string `json:"url,omitempty"`
}

// Matches reports whether other refers to the same view.
func (k ViewKey) Matches(other ViewKey) bool {
	return k.ID == other.ID
}

// ReportedURL returns the url written to documents.
func (k ViewKey) ReportedURL() string {
	if k.URL != "" {
		return k.URL
	}
	return k.ID
}

// ResourceKind classifies a network resource.
type ResourceKind string

const (
	ResourceKindXHR      ResourceKind = "xhr"
	ResourceKindFetch    ResourceKind = "fetch"
	ResourceKindImage    ResourceKind = "image"
	ResourceKindJS       ResourceKind = "js"
	ResourceKindFont     ResourceKind = "font"
	ResourceKindCSS      ResourceKind = "css"
	ResourceKindMedia    ResourceKind = "media"
	ResourceKindNative   ResourceKind = "native"
	ResourceKindDocument ResourceKind = "document"
	ResourceKindOther    ResourceKind = "other"
	ResourceKindUnknown  ResourceKind = "unknown"
)

// ActionType classifies a user action.
type ActionType string

const (
	ActionTypeTap              ActionType = "tap"
	ActionTypeScroll           ActionType = "scroll"
	ActionTypeSwipe            ActionType = "swipe"
	ActionTypeClick            ActionType = "click"
	ActionTypeBack             ActionType = "back"
	ActionTypeCustom           ActionType = "custom"
	ActionTypeApplicationStart ActionType = "application_start"
)

// ErrorSource tells where an error originated.
type ErrorSource string

const (
	ErrorSourceNetwork ErrorSource = "network"
	ErrorSourceSource  ErrorSource = "source"
	ErrorSourceConsole ErrorSource = "console"
	ErrorSourceLogger  ErrorSource = "logger"
	ErrorSourceAgent   ErrorSource = "agent"
	ErrorSourceWebview ErrorSource = "webview"
	ErrorSourceCustom  ErrorSource = "custom"
)

// PerformanceMetric names a host-computed metric pushed as a raw event.
type PerformanceMetric string

const (
	MetricJSRefreshRate     PerformanceMetric = "js_refresh_rate"
	MetricFlutterBuildTime  PerformanceMetric = "flutter_build_time"
	MetricFlutterRasterTime PerformanceMetric = "flutter_raster_time"
)

// ResourceTiming is the network timing breakdown of a resource.
// Each phase holds a start offset from the resource start and a duration,
// both in nanoseconds.
type ResourceTiming struct {
	DNS       *TimingPhase `json:"dns,omitempty"`
	Connect   *TimingPhase `json:"connect,omitempty"`
	SSL       *TimingPhase `json:"ssl,omitempty"`
	FirstByte *TimingPhase `json:"first_byte,omitempty"`
	Download  *TimingPhase `json:"download,omitempty"`
}

// TimingPhase is one phase of a ResourceTiming.
type TimingPhase struct {
	Start    int64 `json:"start"`
	Duration int64 `json:"duration"`
}

// StartView starts tracking a view.
type StartView struct {
	Key        ViewKey        `json:"key"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Time       Time           `json:"time"`
}

// StopView stops the view matching Key.
type StopView struct {
	Key        ViewKey        `json:"key"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Time       Time           `json:"time"`
}

// StartResource starts tracking a network resource under a caller key.
type StartResource struct {
	Key        string         `json:"key"`
	URL        string         `json:"url"`
	Method     string         `json:"method,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Time       Time           `json:"time"`
}

// StopResource completes the resource matching Key.
type StopResource struct {
	Key        string         `json:"key"`
	StatusCode *int64         `json:"status_code,omitempty"`
	Size       *int64         `json:"size,omitempty"`
	Kind       ResourceKind   `json:"kind,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Time       Time           `json:"time"`
}

// StopResourceWithError completes the resource matching Key as a failure.
type StopResourceWithError struct {
	Key        string         `json:"key"`
	StatusCode *int64         `json:"status_code,omitempty"`
	Message    string         `json:"message"`
	Source     ErrorSource    `json:"source,omitempty"`
	ErrorType  string         `json:"error_type,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Time       Time           `json:"time"`
}

// StopResourceWithStackTrace completes the resource matching Key as a failure
// whose cause is only known as a formatted stack trace.
type StopResourceWithStackTrace struct {
	Key        string         `json:"key"`
	StatusCode *int64         `json:"status_code,omitempty"`
	Message    string         `json:"message"`
	Source     ErrorSource    `json:"source,omitempty"`
	StackTrace string         `json:"stack_trace,omitempty"`
	ErrorType  string         `json:"error_type,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Time       Time           `json:"time"`
}

// AddResourceTiming attaches a timing breakdown to the resource matching Key.
type AddResourceTiming struct {
	Key    string         `json:"key"`
	Timing ResourceTiming `json:"timing"`
	Time   Time           `json:"time"`
}

// WaitForResourceTiming tells the resource matching Key to finalize only once
// an explicit AddResourceTiming arrives.
type WaitForResourceTiming struct {
	Key  string `json:"key"`
	Time Time   `json:"time"`
}

// AddError reports an error. IsFatal marks a crash.
type AddError struct {
	Message    string         `json:"message"`
	Source     ErrorSource    `json:"source,omitempty"`
	ErrorType  string         `json:"error_type,omitempty"`
	Stack      string         `json:"stack,omitempty"`
	IsFatal    bool           `json:"is_fatal"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Time       Time           `json:"time"`
}

// StartAction starts a user action.
type StartAction struct {
	Type        ActionType     `json:"type"`
	Name        string         `json:"name"`
	WaitForStop bool           `json:"wait_for_stop"`
	Attributes  map[string]any `json:"attributes,omitempty"`
	Time        Time           `json:"time"`
}

// StopAction stops the active waiting action. Empty Type/Name keep the values
// given at start.
type StopAction struct {
	Type       ActionType     `json:"type"`
	Name       string         `json:"name"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Time       Time           `json:"time"`
}

// AddLongTask reports a main thread task that blocked for DurationNs.
type AddLongTask struct {
	DurationNs int64  `json:"duration_ns"`
	Target     string `json:"target,omitempty"`
	Time       Time   `json:"time"`
}

// AddCustomTiming records a named timing relative to the view start.
type AddCustomTiming struct {
	Name string `json:"name"`
	Time Time   `json:"time"`
}

// AddFeatureFlagEvaluation records one feature flag value on the active view.
type AddFeatureFlagEvaluation struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
	Time  Time   `json:"time"`
}

// AddFeatureFlagEvaluations records several feature flag values at once.
type AddFeatureFlagEvaluations struct {
	Flags map[string]any `json:"flags,omitempty"`
	Time  Time           `json:"time"`
}

// UpdatePerformanceMetric pushes one host-computed metric sample.
type UpdatePerformanceMetric struct {
	Metric PerformanceMetric `json:"metric"`
	Value  float64           `json:"value"`
	Time   Time              `json:"time"`
}

// KeepAlive refreshes the active view without any other change.
type KeepAlive struct {
	Time Time `json:"time"`
}

// StopSession marks the current session inactive.
type StopSession struct {
	Time Time `json:"time"`
}

// ApplicationStarted reports that the host application finished launching.
type ApplicationStarted struct {
	StartupNs int64 `json:"startup_ns"`
	Time      Time  `json:"time"`
}

// ResourceSent acknowledges a resource document of ViewID.
type ResourceSent struct {
	ViewID string `json:"view_id"`
	Time   Time   `json:"time"`
}

// ResourceDropped reports that a resource document of ViewID was lost.
type ResourceDropped struct {
	ViewID string `json:"view_id"`
	Time   Time   `json:"time"`
}

// ActionSent acknowledges an action document of ViewID.
type ActionSent struct {
	ViewID           string `json:"view_id"`
	FrustrationCount int    `json:"frustration_count"`
	Time             Time   `json:"time"`
}

// ActionDropped reports that an action document of ViewID was lost.
type ActionDropped struct {
	ViewID string `json:"view_id"`
	Time   Time   `json:"time"`
}

// ErrorSent acknowledges an error document of ViewID.
type ErrorSent struct {
	ViewID string `json:"view_id"`
	Time   Time   `json:"time"`
}

// ErrorDropped reports that an error document of ViewID was lost.
type ErrorDropped struct {
	ViewID string `json:"view_id"`
	Time   Time   `json:"time"`
}

// LongTaskSent acknowledges a long task document of ViewID.
type LongTaskSent struct {
	ViewID        string `json:"view_id"`
	IsFrozenFrame bool   `json:"is_frozen_frame"`
	Time          Time   `json:"time"`
}

// LongTaskDropped reports that a long task document of ViewID was lost.
type LongTaskDropped struct {
	ViewID        string `json:"view_id"`
	IsFrozenFrame bool   `json:"is_frozen_frame"`
	Time          Time   `json:"time"`
}

func (e StartView) EventTime() Time                  { return e.Time }
func (e StopView) EventTime() Time                   { return e.Time }
func (e StartResource) EventTime() Time              { return e.Time }
func (e StopResource) EventTime() Time               { return e.Time }
func (e StopResourceWithError) EventTime() Time      { return e.Time }
func (e StopResourceWithStackTrace) EventTime() Time { return e.Time }
func (e AddResourceTiming) EventTime() Time          { return e.Time }
func (e WaitForResourceTiming) EventTime() Time      { return e.Time }
func (e AddError) EventTime() Time                   { return e.Time }
func (e StartAction) EventTime() Time                { return e.Time }
func (e StopAction) EventTime() Time                 { return e.Time }
func (e AddLongTask) EventTime() Time                { return e.Time }
func (e AddCustomTiming) EventTime() Time            { return e.Time }
func (e AddFeatureFlagEvaluation) EventTime() Time   { return e.Time }
func (e AddFeatureFlagEvaluations) EventTime() Time  { return e.Time }
func (e UpdatePerformanceMetric) EventTime() Time    { return e.Time }
func (e KeepAlive) EventTime() Time                  { return e.Time }
func (e StopSession) EventTime() Time                { return e.Time }
func (e ApplicationStarted) EventTime() Time         { return e.Time }
func (e ResourceSent) EventTime() Time               { return e.Time }
func (e ResourceDropped) EventTime() Time            { return e.Time }
func (e ActionSent) EventTime() Time                 { return e.Time }
func (e ActionDropped) EventTime() Time              { return e.Time }
func (e ErrorSent) EventTime() Time                  { return e.Time }
func (e ErrorDropped) EventTime() Time               { return e.Time }
func (e LongTaskSent) EventTime() Time               { return e.Time }
func (e LongTaskDropped) EventTime() Time            { return e.Time }

func (StartView) eventMarker()                  {}
func (StopView) eventMarker()                   {}
func (StartResource) eventMarker()              {}
func (StopResource) eventMarker()               {}
func (StopResourceWithError) eventMarker()      {}
func (StopResourceWithStackTrace) eventMarker() {}
func (AddResourceTiming) eventMarker()          {}
func (WaitForResourceTiming) eventMarker()      {}
func (AddError) eventMarker()                   {}
func (StartAction) eventMarker()                {}
func (StopAction) eventMarker()                 {}
func (AddLongTask) eventMarker()                {}
func (AddCustomTiming) eventMarker()            {}
func (AddFeatureFlagEvaluation) eventMarker()   {}
func (AddFeatureFlagEvaluations) eventMarker()  {}
func (UpdatePerformanceMetric) eventMarker()    {}
func (KeepAlive) eventMarker()                  {}
func (StopSession) eventMarker()                {}
func (ApplicationStarted) eventMarker()         {}
func (ResourceSent) eventMarker()               {}
func (ResourceDropped) eventMarker()            {}
func (ActionSent) eventMarker()                 {}
func (ActionDropped) eventMarker()              {}
func (ErrorSent) eventMarker()                  {}
func (ErrorDropped) eventMarker()               {}
func (LongTaskSent) eventMarker()               {}
func (LongTaskDropped) eventMarker()            {}

// EventName returns a stable snake_case name for an event, used in logs and
// scenario scripts.
func EventName(ev Event) string {
	switch ev.(type) {
	case StartView:
		return "start_view"
	case StopView:
		return "stop_view"
	case StartResource:
		return "start_resource"
	case StopResource:
		return "stop_resource"
	case StopResourceWithError:
		return "stop_resource_with_error"
	case StopResourceWithStackTrace:
		return "stop_resource_with_stack_trace"
	case AddResourceTiming:
		return "add_resource_timing"
	case WaitForResourceTiming:
		return "wait_for_resource_timing"
	case AddError:
		return "add_error"
	case StartAction:
		return "start_action"
	case StopAction:
		return "stop_action"
	case AddLongTask:
		return "add_long_task"
	case AddCustomTiming:
		return "add_custom_timing"
	case AddFeatureFlagEvaluation:
		return "add_feature_flag_evaluation"
	case AddFeatureFlagEvaluations:
		return "add_feature_flag_evaluations"
	case UpdatePerformanceMetric:
		return "update_performance_metric"
	case KeepAlive:
		return "keep_alive"
	case StopSession:
		return "stop_session"
	case ApplicationStarted:
		return "application_started"
	case ResourceSent:
		return "resource_sent"
	case ResourceDropped:
		return "resource_dropped"
	case ActionSent:
		return "action_sent"
	case ActionDropped:
		return "action_dropped"
	case ErrorSent:
		return "error_sent"
	case ErrorDropped:
		return "error_dropped"
	case LongTaskSent:
		return "long_task_sent"
	case LongTaskDropped:
		return "long_task_dropped"
	default:
		return "unknown"
	}
}
