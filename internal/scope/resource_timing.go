package scope

import (
	"github.com/roach88/rumscope/internal/rum"
)

// timingFromAttribute extracts a timing breakdown carried as an attribute.
//
// Accepted shapes are a rum.ResourceTiming (or pointer) and a decoded map of
// phases, each phase a map with "start" and "duration" numbers. Phase names
// accept both snake_case and camelCase ("first_byte", "firstByte").
func timingFromAttribute(raw any) *rum.ResourceTiming {
	switch v := raw.(type) {
	case nil:
		return nil
	case rum.ResourceTiming:
		return &v
	case *rum.ResourceTiming:
		if v == nil {
			return nil
		}
		out := *v
		return &out
	case map[string]any:
		return timingFromMap(v)
	default:
		return nil
	}
}

func timingFromMap(m map[string]any) *rum.ResourceTiming {
	t := rum.ResourceTiming{
		DNS:       phaseFromAny(m["dns"]),
		Connect:   phaseFromAny(m["connect"]),
		SSL:       phaseFromAny(m["ssl"]),
		FirstByte: phaseFromAny(firstPresent(m, "first_byte", "firstByte")),
		Download:  phaseFromAny(m["download"]),
	}
	if t == (rum.ResourceTiming{}) {
		return nil
	}
	return &t
}

func firstPresent(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v
		}
	}
	return nil
}

func phaseFromAny(raw any) *rum.TimingPhase {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	start, okStart := rum.FloatAttribute(m, "start")
	if !okStart {
		start, okStart = rum.FloatAttribute(m, "startTime")
	}
	duration, okDuration := rum.FloatAttribute(m, "duration")
	if !okStart || !okDuration {
		return nil
	}
	return &rum.TimingPhase{Start: int64(start), Duration: int64(duration)}
}
