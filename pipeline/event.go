package pipeline

import (
	"sort"

	"github.com/goliatone/go-auth-service/exception"
)

// RawEvent is the inbound parameter map as decoded by an adapter.
type RawEvent map[string]any

// Event is a validated parameter map. Every value is a string.
type Event map[string]string

// Get returns the parameter or an empty string.
func (e Event) Get(key string) string {
	return e[key]
}

// Has reports whether the parameter is present.
func (e Event) Has(key string) bool {
	_, ok := e[key]
	return ok
}

// Validate checks that every value in raw is a string and that every required
// field is present. Keys are visited in sorted order so the reported field is
// stable across calls.
func Validate(raw RawEvent, required []string) (Event, error) {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ev := make(Event, len(raw))
	for _, k := range keys {
		s, ok := raw[k].(string)
		if !ok {
			return nil, exception.NewInvalidArgument(exception.KeyParameterNotString, map[string]string{
				"paramName": k,
			})
		}
		ev[k] = s
	}

	for _, field := range required {
		if _, ok := ev[field]; !ok {
			return nil, exception.NewInvalidArgument(exception.KeyParameterRequired, map[string]string{
				"paramName": field,
			})
		}
	}
	return ev, nil
}
