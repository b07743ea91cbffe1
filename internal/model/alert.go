package model

import "fmt"

// Severity is the PagerDuty urgency level for an alert.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityError    Severity = "error"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// ParseSeverity validates a configured severity string. Empty defaults to
// warning.
func ParseSeverity(raw string) (Severity, error) {
	switch Severity(raw) {
	case SeverityCritical, SeverityError, SeverityWarning, SeverityInfo:
		return Severity(raw), nil
	case "":
		return SeverityWarning, nil
	default:
		return "", fmt.Errorf("unknown severity %q", raw)
	}
}

// Alert is one fully formed PagerDuty Events API v2 trigger event. It is
// constructed per match and discarded after delivery.
type Alert struct {
	RoutingKey  string       `json:"routing_key"`
	EventAction string       `json:"event_action"`
	DedupKey    string       `json:"dedup_key,omitempty"`
	Payload     AlertPayload `json:"payload"`
	Links       []AlertLink  `json:"links,omitempty"`
	Client      string       `json:"client,omitempty"`
	ClientURL   string       `json:"client_url,omitempty"`
}

// AlertPayload is the nested payload object of an event.
type AlertPayload struct {
	Summary       string                 `json:"summary"`
	Source        string                 `json:"source"`
	Severity      Severity               `json:"severity"`
	Timestamp     string                 `json:"timestamp"`
	CustomDetails map[string]interface{} `json:"custom_details,omitempty"`
}

// AlertLink is a related link attached to an event.
type AlertLink struct {
	Href string `json:"href"`
	Text string `json:"text"`
}

// Delivery outcome recorded in the journal.
const (
	DeliveryDelivered = "delivered"
	DeliveryFailed    = "failed"
	DeliveryAbandoned = "abandoned"
)

// DeliveryRecord is one journal row describing the terminal outcome of an
// alert delivery attempt.
type DeliveryRecord struct {
	Subscription string   `json:"subscription"`
	DedupKey     string   `json:"dedup_key"`
	Summary      string   `json:"summary"`
	Severity     Severity `json:"severity"`
	Status       string   `json:"status"`
	Attempts     int      `json:"attempts"`
	Error        string   `json:"error,omitempty"`
	AccountID    string   `json:"account_id,omitempty"`
	TxHash       string   `json:"tx_hash,omitempty"`
	DeliveredAt  string   `json:"delivered_at"`
}
