package webhook

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"fleetrent/utils"
)

// Aliases of the envelope fields every delivered event must carry.
var (
	idKeys       = []string{"id", "Id", "eventId", "EventId"}
	eventKeys    = []string{"event", "Event", "eventType", "EventType", "type", "Type", "status", "Status"}
	createdKeys  = []string{"dateCreated", "DateCreated", "createdAt", "created_at", "created", "Created", "timestamp"}
	resourceKeys = []string{"resource", "Resource", "resourceUrl", "ResourceUrl", "resource_url", "url", "Url"}
	nestedKeys   = []string{"data", "Data", "payload", "Payload"}
)

// Event is one validated element of a webhook batch.
type Event struct {
	ID        string
	Type      string
	CreatedAt string
	Resource  string
	// Fields holds the element's keys, with any nested data object flattened underneath them.
	Fields map[string]interface{}
	// Raw is the element exactly as delivered, kept for audit.
	Raw map[string]interface{}
}

// String returns the first non-blank value among keys.
func (e Event) String(keys ...string) string {
	return utils.FirstString(e.Fields, keys...)
}

// Float returns the first numeric value among keys.
func (e Event) Float(keys ...string) (float64, bool) {
	return utils.FirstFloat(e.Fields, keys...)
}

// Date returns the first value among keys that parses as a date, truncated to midnight UTC.
// Values may be full timestamps; only their calendar date is kept.
func (e Event) Date(keys ...string) (time.Time, bool) {
	for _, k := range keys {
		raw := utils.FirstString(e.Fields, k)
		if len(raw) < 10 {
			continue
		}
		if d, err := time.Parse("2006-01-02", raw[:10]); err == nil {
			return d.UTC(), true
		}
	}
	return time.Time{}, false
}

// ParseBatch validates a delivery body: it must be a non-empty JSON array whose every element
// is an object carrying the envelope fields, none blank.
func ParseBatch(body []byte) ([]Event, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var elements []interface{}
	if err := dec.Decode(&elements); err != nil {
		return nil, utils.NewValidationError("webhook body must be a JSON array")
	}
	if dec.More() {
		return nil, utils.NewValidationError("webhook body has trailing data")
	}
	if len(elements) == 0 {
		return nil, utils.NewValidationError("webhook body must contain at least one event")
	}

	events := make([]Event, 0, len(elements))
	for i, el := range elements {
		obj, ok := el.(map[string]interface{})
		if !ok {
			return nil, utils.NewValidationError("event %d is not an object", i)
		}
		ev := Event{Raw: obj, Fields: flatten(obj)}
		ev.ID = utils.FirstString(obj, idKeys...)
		ev.Type = utils.FirstString(obj, eventKeys...)
		ev.CreatedAt = utils.FirstString(obj, createdKeys...)
		ev.Resource = utils.FirstString(obj, resourceKeys...)

		var missing []string
		if ev.ID == "" {
			missing = append(missing, "id")
		}
		if ev.Type == "" {
			missing = append(missing, "event")
		}
		if ev.CreatedAt == "" {
			missing = append(missing, "dateCreated")
		}
		if ev.Resource == "" {
			missing = append(missing, "resource")
		}
		if len(missing) > 0 {
			return nil, utils.NewValidationError("event %d is missing %s", i, strings.Join(missing, ", "))
		}
		events = append(events, ev)
	}
	return events, nil
}

// flatten copies obj and lifts keys of a nested data object that the top level does not set.
func flatten(obj map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(obj))
	for k, v := range obj {
		out[k] = v
	}
	for _, nk := range nestedKeys {
		nested, ok := obj[nk].(map[string]interface{})
		if !ok {
			continue
		}
		for k, v := range nested {
			if _, exists := out[k]; !exists {
				out[k] = v
			}
		}
	}
	return out
}
