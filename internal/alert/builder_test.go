package alert

import (
	"strings"
	"testing"

	"nearbridge/internal/model"
	"nearbridge/internal/router"
)

func record(t *testing.T, raw string) model.Record {
	t.Helper()
	val, err := model.FromJSON([]byte(raw))
	if err != nil {
		t.Fatalf("build record: %v", err)
	}
	return model.NewRecord(val)
}

func sub(name, summaryTemplate, dedupTemplate string) *router.Subscription {
	return &router.Subscription{
		Name:             name,
		Severity:         model.SeverityWarning,
		SummaryTemplate:  summaryTemplate,
		DedupKeyTemplate: dedupTemplate,
	}
}

func TestBuildInterpolatesSummary(t *testing.T) {
	b := NewBuilder("rk-123")
	built := b.Build(
		sub("HoS: New Proposal", "New proposal by {predecessor_id}", ""),
		record(t, `{"account_id": "vote.dao", "method_name": "create_proposal", "predecessor_id": "alice.near", "tx_hash": "abc123"}`),
	)

	if built.Payload.Summary != "New proposal by alice.near" {
		t.Fatalf("summary: %q", built.Payload.Summary)
	}
	if built.RoutingKey != "rk-123" {
		t.Fatalf("routing key: %q", built.RoutingKey)
	}
	if built.EventAction != "trigger" {
		t.Fatalf("event action: %q", built.EventAction)
	}
	if built.Payload.Source != "near:vote.dao" {
		t.Fatalf("source: %q", built.Payload.Source)
	}
}

func TestBuildUnknownPlaceholder(t *testing.T) {
	b := NewBuilder("rk")
	built := b.Build(
		sub("s", "value is {no_such_field}", ""),
		record(t, `{"account_id": "vote.dao"}`),
	)
	if built.Payload.Summary != "value is "+UnknownPlaceholder {
		t.Fatalf("summary: %q", built.Payload.Summary)
	}
}

func TestBuildMissingFieldPlaceholder(t *testing.T) {
	b := NewBuilder("rk")
	built := b.Build(
		sub("s", "call by {predecessor_id}", ""),
		record(t, `{"account_id": "vote.dao"}`),
	)
	// A known placeholder whose field is absent resolves to a visible
	// marker; delivery is never blocked by a templating gap.
	if built.Payload.Summary != "call by unknown" {
		t.Fatalf("summary: %q", built.Payload.Summary)
	}
}

func TestBuildDedupKeyTemplate(t *testing.T) {
	b := NewBuilder("rk")
	s := sub("hos", "x", "hos-{tx_hash}")

	first := b.Build(s, record(t, `{"account_id": "vote.dao", "tx_hash": "abc123", "receipt_id": "r1"}`))
	second := b.Build(s, record(t, `{"account_id": "vote.dao", "tx_hash": "abc123", "receipt_id": "r2"}`))

	if first.DedupKey != "hos-abc123" {
		t.Fatalf("dedup key: %q", first.DedupKey)
	}
	// One transaction spanning multiple receipts collapses into one incident.
	if first.DedupKey != second.DedupKey {
		t.Fatalf("dedup keys differ: %q vs %q", first.DedupKey, second.DedupKey)
	}
}

func TestBuildDefaultDedupKeyIsStable(t *testing.T) {
	b := NewBuilder("rk")
	s := sub("s", "", "")
	rec := record(t, `{"account_id": "vote.dao", "tx_hash": "abc123", "receipt_id": "r1"}`)

	first := b.Build(s, rec)
	second := b.Build(s, rec)
	if first.DedupKey == "" || first.DedupKey != second.DedupKey {
		t.Fatalf("default dedup key must be stable, got %q and %q", first.DedupKey, second.DedupKey)
	}

	other := b.Build(sub("other", "", ""), rec)
	if other.DedupKey == first.DedupKey {
		t.Fatalf("different subscriptions must not share a default dedup key")
	}
}

func TestBuildSummaryTruncation(t *testing.T) {
	b := NewBuilder("rk")
	long := strings.Repeat("x", 3000)
	built := b.Build(sub("s", long, ""), record(t, `{"account_id": "a.near"}`))
	if len(built.Payload.Summary) != 1024 {
		t.Fatalf("summary length %d, want 1024", len(built.Payload.Summary))
	}
}

func TestBuildDefaultSummary(t *testing.T) {
	b := NewBuilder("rk")
	built := b.Build(
		sub("veNEAR: Paused", "", ""),
		record(t, `{"account_id": "venear.near", "method_name": "pause"}`),
	)
	if built.Payload.Summary != "veNEAR: Paused: Action on venear.near calling pause" {
		t.Fatalf("summary: %q", built.Payload.Summary)
	}
}

func TestBuildExplorerLink(t *testing.T) {
	b := NewBuilder("rk")

	withTx := b.Build(sub("s", "x", ""), record(t, `{"account_id": "a.near", "tx_hash": "abc"}`))
	if len(withTx.Links) != 1 || withTx.Links[0].Href != "https://nearblocks.io/txns/abc" {
		t.Fatalf("links: %+v", withTx.Links)
	}

	withoutTx := b.Build(sub("s", "x", ""), record(t, `{"account_id": "a.near"}`))
	if len(withoutTx.Links) != 1 || withoutTx.Links[0].Href != "https://nearblocks.io/address/a.near" {
		t.Fatalf("links: %+v", withoutTx.Links)
	}
}

func TestBuildCustomDetails(t *testing.T) {
	b := NewBuilder("rk")
	built := b.Build(
		sub("s", "x", ""),
		record(t, `{"account_id": "vote.dao", "tx_hash": "abc", "action": {"method_name": "m"}}`),
	)

	details := built.Payload.CustomDetails
	if details["subscription_name"] != "s" {
		t.Fatalf("subscription_name: %v", details["subscription_name"])
	}
	raw, ok := details["record"].(map[string]interface{})
	if !ok {
		t.Fatalf("record detail should carry the full field tree, got %T", details["record"])
	}
	if raw["account_id"] != "vote.dao" {
		t.Fatalf("record detail account_id: %v", raw["account_id"])
	}
}
