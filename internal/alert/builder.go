// Package alert turns subscription matches into PagerDuty events and
// dispatches them through a bounded worker pool.
package alert

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"strconv"
	"time"

	"nearbridge/internal/model"
	"nearbridge/internal/router"
)

// UnknownPlaceholder replaces template tokens that name no known field.
// Templating gaps must never block alert delivery.
const UnknownPlaceholder = "<unknown>"

const (
	clientName  = "NEAR Blockchain Monitor"
	explorerURL = "https://nearblocks.io"

	// PagerDuty rejects summaries longer than 1024 characters.
	maxSummaryLen = 1024
)

var placeholderPattern = regexp.MustCompile(`\{([a-z_]+)\}`)

// Builder constructs alerts for matched records.
type Builder struct {
	routingKey string
	now        func() time.Time
}

func NewBuilder(routingKey string) *Builder {
	return &Builder{routingKey: routingKey, now: time.Now}
}

// Build produces a fully formed trigger event for one match.
func (b *Builder) Build(sub *router.Subscription, record model.Record) model.Alert {
	fields := placeholderFields(record)

	summary := sub.SummaryTemplate
	if summary == "" {
		summary = defaultSummary(sub.Name, record)
	} else {
		summary = interpolate(summary, fields)
	}
	if len(summary) > maxSummaryLen {
		summary = summary[:maxSummaryLen]
	}

	dedupKey := sub.DedupKeyTemplate
	if dedupKey == "" {
		dedupKey = defaultDedupKey(sub.Name, record)
	} else {
		dedupKey = interpolate(dedupKey, fields)
	}

	details := map[string]interface{}{
		"subscription_name": sub.Name,
		"account_id":        record.AccountID(),
		"method_name":       record.MethodName(),
		"predecessor_id":    record.PredecessorID(),
		"signer_id":         record.SignerID(),
		"block_height":      record.BlockHeight(),
		"tx_hash":           record.TxHash(),
		"receipt_id":        record.ReceiptID(),
		"record":            record.Fields().Interface(),
	}

	return model.Alert{
		RoutingKey:  b.routingKey,
		EventAction: "trigger",
		DedupKey:    dedupKey,
		Payload: model.AlertPayload{
			Summary:       summary,
			Source:        fmt.Sprintf("near:%s", record.AccountID()),
			Severity:      sub.Severity,
			Timestamp:     b.now().UTC().Format(time.RFC3339),
			CustomDetails: details,
		},
		Links:     []model.AlertLink{explorerLink(record)},
		Client:    clientName,
		ClientURL: explorerURL,
	}
}

// placeholderFields is the fixed dictionary of template-resolvable fields.
func placeholderFields(record model.Record) map[string]string {
	get := func(s string) string {
		if s == "" {
			return "unknown"
		}
		return s
	}
	return map[string]string{
		"account_id":     get(record.AccountID()),
		"method_name":    get(record.MethodName()),
		"predecessor_id": get(record.PredecessorID()),
		"signer_id":      get(record.SignerID()),
		"tx_hash":        get(record.TxHash()),
		"receipt_id":     get(record.ReceiptID()),
		"block_height":   strconv.FormatUint(record.BlockHeight(), 10),
	}
}

func interpolate(template string, fields map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(token string) string {
		name := token[1 : len(token)-1]
		if val, ok := fields[name]; ok {
			return val
		}
		return UnknownPlaceholder
	})
}

func defaultSummary(name string, record model.Record) string {
	if method := record.MethodName(); method != "" {
		return fmt.Sprintf("%s: Action on %s calling %s", name, record.AccountID(), method)
	}
	return fmt.Sprintf("%s: Action on %s", name, record.AccountID())
}

// defaultDedupKey is deterministic in the subscription name and the record's
// identity fields, so repeated deliveries of the same underlying transaction
// collapse into one incident.
func defaultDedupKey(name string, record model.Record) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%s", name, record.TxHash(), record.ReceiptID())
	return fmt.Sprintf("auto-%016x", h.Sum64())
}

func explorerLink(record model.Record) model.AlertLink {
	if tx := record.TxHash(); tx != "" {
		return model.AlertLink{
			Href: fmt.Sprintf("%s/txns/%s", explorerURL, tx),
			Text: "View Transaction",
		}
	}
	return model.AlertLink{
		Href: fmt.Sprintf("%s/address/%s", explorerURL, record.AccountID()),
		Text: "View Contract",
	}
}
