package events

import "fmt"

var allowedEvents = map[string]struct{}{
	// script
	"script.loaded":   {},
	"script.rejected": {},
	"script.rendered": {},
	"script.removed":  {},

	// pipeline
	"pipeline.updated": {},
	"pipeline.applied": {},
	"pipeline.failed":  {},

	// modifier
	"modifier.added":   {},
	"modifier.updated": {},
	"modifier.reset":   {},
	"modifier.moved":   {},
	"modifier.removed": {},
	"modifier.failed":  {},

	// transport
	"transport.connected":    {},
	"transport.disconnected": {},
	"transport.received":     {},
	"transport.published":    {},
	"transport.error":        {},

	// system
	"system.startup":  {},
	"system.shutdown": {},
	"system.error":    {},
}

func Validate(event string) error {
	if _, ok := allowedEvents[event]; !ok {
		return fmt.Errorf("unknown event: %s", event)
	}
	return nil
}
