package rum

import (
	"encoding/json"
	"fmt"
	"sort"
)

// eventDecoders maps every EventName to a decoder of its concrete type.
var eventDecoders = map[string]func(decode func(target any) error) (Event, error){
	"start_view":                     decodeAs[StartView],
	"stop_view":                      decodeAs[StopView],
	"start_resource":                 decodeAs[StartResource],
	"stop_resource":                  decodeAs[StopResource],
	"stop_resource_with_error":       decodeAs[StopResourceWithError],
	"stop_resource_with_stack_trace": decodeAs[StopResourceWithStackTrace],
	"add_resource_timing":            decodeAs[AddResourceTiming],
	"wait_for_resource_timing":       decodeAs[WaitForResourceTiming],
	"add_error":                      decodeAs[AddError],
	"start_action":                   decodeAs[StartAction],
	"stop_action":                    decodeAs[StopAction],
	"add_long_task":                  decodeAs[AddLongTask],
	"add_custom_timing":              decodeAs[AddCustomTiming],
	"add_feature_flag_evaluation":    decodeAs[AddFeatureFlagEvaluation],
	"add_feature_flag_evaluations":   decodeAs[AddFeatureFlagEvaluations],
	"update_performance_metric":      decodeAs[UpdatePerformanceMetric],
	"keep_alive":                     decodeAs[KeepAlive],
	"stop_session":                   decodeAs[StopSession],
	"application_started":            decodeAs[ApplicationStarted],
	"resource_sent":                  decodeAs[ResourceSent],
	"resource_dropped":               decodeAs[ResourceDropped],
	"action_sent":                    decodeAs[ActionSent],
	"action_dropped":                 decodeAs[ActionDropped],
	"error_sent":                     decodeAs[ErrorSent],
	"error_dropped":                  decodeAs[ErrorDropped],
	"long_task_sent":                 decodeAs[LongTaskSent],
	"long_task_dropped":              decodeAs[LongTaskDropped],
}

func decodeAs[T Event](decode func(target any) error) (Event, error) {
	var ev T
	if err := decode(&ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// EventNames returns every known event name, sorted.
func EventNames() []string {
	names := make([]string, 0, len(eventDecoders))
	for name := range eventDecoders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsEventName reports whether name is a known event name.
func IsEventName(name string) bool {
	_, ok := eventDecoders[name]
	return ok
}

// DecodeEvent builds the event called name. decode receives a pointer to the
// zero value of the concrete type and fills it, e.g. a json.Decoder's Decode.
func DecodeEvent(name string, decode func(target any) error) (Event, error) {
	fn, ok := eventDecoders[name]
	if !ok {
		return nil, fmt.Errorf("unknown event %q", name)
	}
	ev, err := fn(decode)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return ev, nil
}

// EncodeEvent returns the name and JSON payload of ev.
func EncodeEvent(ev Event) (string, []byte, error) {
	name := EventName(ev)
	if name == "unknown" {
		return "", nil, fmt.Errorf("encode event: unsupported type %T", ev)
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return "", nil, fmt.Errorf("encode %s: %w", name, err)
	}
	return name, payload, nil
}

// DecodeEventJSON is the inverse of EncodeEvent.
func DecodeEventJSON(name string, payload []byte) (Event, error) {
	return DecodeEvent(name, func(target any) error {
		return json.Unmarshal(payload, target)
	})
}
