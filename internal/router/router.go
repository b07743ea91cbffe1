// Package router evaluates every configured subscription against each
// incoming record and yields the matches in declaration order.
package router

import (
	"fmt"

	"nearbridge/internal/config"
	"nearbridge/internal/filter"
	"nearbridge/internal/model"
)

// Subscription is a compiled, immutable alert rule. The condition is built
// once at startup; evaluation never mutates it.
type Subscription struct {
	Name             string
	AccountID        string
	Severity         model.Severity
	SummaryTemplate  string
	DedupKeyTemplate string
	Condition        filter.Condition
}

// Compile turns a raw config subscription into its evaluable form. The
// account/method shorthand and the generic condition tree combine as an
// implicit conjunction.
func Compile(cfg config.Subscription) (Subscription, error) {
	severity, err := model.ParseSeverity(cfg.Severity)
	if err != nil {
		return Subscription{}, fmt.Errorf("subscription %q: %w", cfg.Name, err)
	}

	var parts []filter.Condition
	if cfg.AccountID != "" {
		path, err := filter.ParsePath(model.FieldAccountID)
		if err != nil {
			return Subscription{}, err
		}
		parts = append(parts, filter.NewLeaf(path, filter.OpEquals, model.String(cfg.AccountID)))
	}
	if cfg.MethodName != "" {
		path, err := filter.ParsePath(model.FieldMethodName)
		if err != nil {
			return Subscription{}, err
		}
		parts = append(parts, filter.NewLeaf(path, filter.OpEquals, model.String(cfg.MethodName)))
	}
	if len(cfg.Condition) > 0 {
		cond, err := filter.ParseCondition(cfg.Condition)
		if err != nil {
			return Subscription{}, fmt.Errorf("subscription %q: %w", cfg.Name, err)
		}
		parts = append(parts, cond)
	}
	if len(parts) == 0 {
		return Subscription{}, fmt.Errorf("subscription %q: account_id or condition is required", cfg.Name)
	}

	return Subscription{
		Name:             cfg.Name,
		AccountID:        cfg.AccountID,
		Severity:         severity,
		SummaryTemplate:  cfg.SummaryTemplate,
		DedupKeyTemplate: cfg.DedupKeyTemplate,
		Condition:        filter.And(parts...),
	}, nil
}

// CompileAll compiles the whole subscription list, preserving order.
func CompileAll(cfgs []config.Subscription) ([]Subscription, error) {
	subs := make([]Subscription, 0, len(cfgs))
	for _, cfg := range cfgs {
		sub, err := Compile(cfg)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// Match pairs a matched subscription with the record that satisfied it. Each
// match produces one independent downstream alert.
type Match struct {
	Subscription *Subscription
	Record       model.Record
}

// Router holds the ordered, read-only subscription list.
type Router struct {
	subs []Subscription
}

func New(subs []Subscription) *Router {
	return &Router{subs: subs}
}

// Route evaluates every subscription against the record and returns the
// matches in declaration order. Subscriptions are independent: a record may
// match zero, one, or many.
func (r *Router) Route(record model.Record) []Match {
	var matches []Match
	for i := range r.subs {
		if filter.Evaluate(r.subs[i].Condition, record) {
			matches = append(matches, Match{Subscription: &r.subs[i], Record: record})
		}
	}
	return matches
}

// Accounts returns the distinct subscribed account ids in declaration order,
// used to build the upstream stream filter.
func (r *Router) Accounts() []string {
	seen := make(map[string]struct{}, len(r.subs))
	accounts := make([]string, 0, len(r.subs))
	for _, sub := range r.subs {
		if sub.AccountID == "" {
			continue
		}
		if _, ok := seen[sub.AccountID]; ok {
			continue
		}
		seen[sub.AccountID] = struct{}{}
		accounts = append(accounts, sub.AccountID)
	}
	return accounts
}
