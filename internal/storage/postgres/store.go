package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"nearbridge/internal/model"
)

// Journal provides Postgres persistence for delivery records.
type Journal struct {
	pool *pgxpool.Pool
}

func NewJournal(ctx context.Context, dsn string) (*Journal, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Journal{pool: pool}, nil
}

func (j *Journal) Close() {
	if j.pool != nil {
		j.pool.Close()
	}
}

// Append inserts a batch of delivery records.
func (j *Journal) Append(records []model.DeliveryRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, record := range records {
		batch.Queue(`
			INSERT INTO alert_deliveries (
				subscription, dedup_key, summary, severity, status,
				attempts, error, account_id, tx_hash, delivered_at, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		`,
			record.Subscription,
			record.DedupKey,
			record.Summary,
			string(record.Severity),
			record.Status,
			record.Attempts,
			record.Error,
			record.AccountID,
			record.TxHash,
			record.DeliveredAt,
		)
	}

	br := j.pool.SendBatch(context.Background(), batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}
