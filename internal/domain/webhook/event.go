package webhook

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// EventTypePayment is the only notification type that triggers work.
const EventTypePayment = "payment"

// Event is the decoded notification body.
type Event struct {
	Type   string `json:"type"`
	Topic  string `json:"topic,omitempty"`
	Action string `json:"action,omitempty"`
	Data   struct {
		ID json.RawMessage `json:"id"`
	} `json:"data"`
}

// IsPayment reports whether the event concerns a payment.
func (e *Event) IsPayment() bool {
	return e.Type == EventTypePayment
}

// Kind returns the event type, falling back to the legacy topic field.
func (e *Event) Kind() string {
	if e.Type != "" {
		return e.Type
	}
	return e.Topic
}

// DataID returns data.id as a string. The gateway sends it either as a JSON
// string or as a number.
func (e *Event) DataID() string {
	raw := strings.TrimSpace(string(e.Data.ID))
	if raw == "" || raw == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(e.Data.ID, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(e.Data.ID, &n); err == nil {
		return n.String()
	}
	return ""
}

// DecodeEvent parses a notification body.
func DecodeEvent(body []byte) (Event, error) {
	var ev Event
	if len(body) == 0 {
		return ev, nil
	}
	if err := json.Unmarshal(body, &ev); err != nil {
		return ev, fmt.Errorf("decode webhook event: %w", err)
	}
	return ev, nil
}

// ResolvePaymentID picks the payment id a notification is signed over:
// query id, then query data.id, then body data.id.
func ResolvePaymentID(query url.Values, ev *Event) string {
	if v := strings.TrimSpace(query.Get("id")); v != "" {
		return v
	}
	if v := strings.TrimSpace(query.Get("data.id")); v != "" {
		return v
	}
	if ev != nil {
		return ev.DataID()
	}
	return ""
}
