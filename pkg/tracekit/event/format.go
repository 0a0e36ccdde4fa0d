package event

import "encoding/json"

// Reserved wire field names. A custom property occupying one of these names
// is overwritten by the canonical value when the record is built.
var reservedFields = map[string]struct{}{
	"event_name": {},
	"user_id":    {},
	"session_id": {},
	"timestamp":  {},
	"app_id":     {},
	"platform":   {},
	"user_agent": {},
	"page_url":   {},
}

// Record builds the per-event wire record. Custom properties are flattened
// onto the top level rather than nested under a sub-object.
func Record(evt Event, appID string) map[string]any {
	record := make(map[string]any, len(evt.Props)+8)

	for k, v := range evt.Props {
		if _, reserved := reservedFields[k]; reserved {
			continue
		}
		record[k] = v
	}

	record["event_name"] = evt.Name
	if evt.UserID != "" {
		record["user_id"] = evt.UserID
	} else {
		record["user_id"] = nil
	}
	record["session_id"] = evt.SessionID
	record["timestamp"] = evt.Timestamp
	record["app_id"] = appID
	record["platform"] = evt.Meta.Platform
	record["user_agent"] = evt.Meta.UserAgent
	record["page_url"] = evt.Meta.PageURL

	return record
}

// emptyPayload is the safe fallback body when serialization fails.
var emptyPayload = []byte(`{"events":[]}`)

// Payload builds the POST body carrying all events as a single batch.
// A serialization fault degrades to an empty events array rather than
// aborting the batch.
func Payload(events []Event, appID string) []byte {
	records := make([]map[string]any, 0, len(events))
	for _, evt := range events {
		records = append(records, Record(evt, appID))
	}

	body, err := json.Marshal(map[string]any{"events": records})
	if err != nil {
		return emptyPayload
	}
	return body
}
