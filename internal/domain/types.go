package domain

import (
	"errors"
	"fmt"
)

type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignScheduled CampaignStatus = "scheduled"
	CampaignActive    CampaignStatus = "active"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCompleted CampaignStatus = "completed"
)

type QueueStatus string

const (
	QueuePending    QueueStatus = "pending"
	QueueProcessing QueueStatus = "processing"
	QueueSent       QueueStatus = "sent"
	QueueFailed     QueueStatus = "failed"
)

// DeliveryStatus is the lifecycle of a permanent message record. "bounced"
// exists in the schema for carrier-reported hard bounces but no current
// carrier mapping produces it.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliverySent      DeliveryStatus = "sent"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
	DeliveryBounced   DeliveryStatus = "bounced"
)

var (
	ErrCampaignNotFound = errors.New("campaign not found")
	ErrMessageNotFound  = errors.New("message not found")

	// ErrPreconditionUnmet: a campaign needs a template and at least one
	// mailing list before it can launch.
	ErrPreconditionUnmet = errors.New("campaign must have a template and at least one mailing list")

	// ErrNothingQueued: every contact in the audience was opted out or had
	// an invalid phone number, so the launch was rolled back.
	ErrNothingQueued = errors.New("no eligible contacts found in campaign mailing lists")
)

// InvalidStateError refuses a lifecycle transition from the wrong status.
type InvalidStateError struct {
	Current CampaignStatus
	Wanted  CampaignStatus
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("campaign is %q, operation requires %q", e.Current, e.Wanted)
}
