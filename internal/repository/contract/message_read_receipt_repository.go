package contract

import (
	"context"

	"marketplace-be/internal/entity"
)

type MessageReadReceiptRepository interface {
	// Upsert inserts the receipt or, when one already exists for the
	// (message, user) pair, refreshes its read_at. Never errors on re-read.
	Upsert(ctx context.Context, receipt *entity.MessageReadReceipt) error
}
