// Package dispatch drains the outbound queue: claim a batch, hand each item
// to the carrier, record the permanent message, settle the queue row.
package dispatch

import (
	"context"
	"log/slog"
	"time"

	"campaigner/internal/carrier"
	"campaigner/internal/observability"
	"campaigner/internal/store"
	"campaigner/internal/util"
)

type Store interface {
	ClaimQueueBatch(ctx context.Context, limit int, now time.Time) ([]store.ClaimedItem, error)
	MarkItemSent(ctx context.Context, itemID int64, now time.Time) error
	RequeueItem(ctx context.Context, itemID int64, attempts int, errMsg string) error
	FailItem(ctx context.Context, itemID int64, attempts int, errMsg string) error
	InsertMessage(ctx context.Context, in store.MessageInsert) error
}

type Dispatcher struct {
	Store       Store
	Gateway     carrier.Gateway
	BatchSize   int
	MaxAttempts int
	CallbackURL string
	IDGen       func() string
}

// RunOnce claims one batch and works through it. Item outcomes are settled
// individually; one bad item never unwinds the rest of the batch.
func (d *Dispatcher) RunOnce(ctx context.Context) error {
	now := util.NowUTC()
	items, err := d.Store.ClaimQueueBatch(ctx, d.BatchSize, now)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	slog.Info("dispatching batch", "count", len(items))
	for _, it := range items {
		d.process(ctx, it)
	}
	return nil
}

func (d *Dispatcher) process(ctx context.Context, it store.ClaimedItem) {
	sub, err := d.Gateway.Send(ctx, it.Phone, it.Body, d.CallbackURL)
	if err != nil {
		d.settleFailure(ctx, it, err)
		return
	}

	now := util.NowUTC()
	msg := store.MessageInsert{
		ID:         d.IDGen(),
		Body:       it.Body,
		SentAt:     now,
		Status:     carrier.NormalizeSubmitStatus(sub.Status),
		Sender:     d.Gateway.Sender(),
		ExternalID: sub.ExternalID,
		ListID:     it.ListID,
		ContactID:  it.ContactID,
		CampaignID: it.CampaignID,
		Now:        now,
	}
	if err := d.Store.InsertMessage(ctx, msg); err != nil {
		// The send went out but we could not record it; the queue row takes
		// the blame so the audit trail stays consistent.
		slog.Error("insert message failed", "item_id", it.ID, "external_id", sub.ExternalID, "err", err)
		d.settleFailure(ctx, it, err)
		return
	}
	if err := d.Store.MarkItemSent(ctx, it.ID, now); err != nil {
		slog.Error("mark item sent failed", "item_id", it.ID, "err", err)
		return
	}

	observability.DispatchOutcomes.WithLabelValues("sent").Inc()
	slog.Info("queue item sent", "item_id", it.ID, "external_id", sub.ExternalID)
}

// settleFailure applies the retry policy. Transient carrier errors consume
// one attempt and requeue below the ceiling; anything else is terminal
// outright, so a programming error cannot fast-loop through the queue.
func (d *Dispatcher) settleFailure(ctx context.Context, it store.ClaimedItem, sendErr error) {
	attempts := it.Attempts + 1

	if carrier.IsTransient(sendErr) {
		if attempts < d.MaxAttempts {
			if err := d.Store.RequeueItem(ctx, it.ID, attempts, sendErr.Error()); err != nil {
				slog.Error("requeue item failed", "item_id", it.ID, "err", err)
				return
			}
			observability.DispatchOutcomes.WithLabelValues("requeued").Inc()
			slog.Warn("transient carrier error, requeued", "item_id", it.ID, "attempts", attempts, "err", sendErr)
			return
		}
		if err := d.Store.FailItem(ctx, it.ID, attempts, sendErr.Error()); err != nil {
			slog.Error("fail item failed", "item_id", it.ID, "err", err)
			return
		}
		observability.DispatchOutcomes.WithLabelValues("failed").Inc()
		slog.Error("retry budget exhausted", "item_id", it.ID, "attempts", attempts, "err", sendErr)
		return
	}

	if err := d.Store.FailItem(ctx, it.ID, attempts, sendErr.Error()); err != nil {
		slog.Error("fail item failed", "item_id", it.ID, "err", err)
		return
	}
	observability.DispatchOutcomes.WithLabelValues("failed").Inc()
	slog.Error("unexpected dispatch error, item failed", "item_id", it.ID, "err", sendErr)
}
