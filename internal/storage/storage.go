package storage

import "nearbridge/internal/model"

// Journal records terminal delivery outcomes for operator audit. The bridge
// never reads the journal back; it is not matching state.
type Journal interface {
	Append(records []model.DeliveryRecord) error
}

// NopJournal discards every record.
type NopJournal struct{}

func (NopJournal) Append([]model.DeliveryRecord) error { return nil }
