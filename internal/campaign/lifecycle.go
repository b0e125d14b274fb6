// Package campaign owns the campaign state machine and audience
// materialization: resolving eligible contacts, personalizing the template,
// and filling the outbound queue at launch.
package campaign

import (
	"context"
	"log/slog"
	"time"

	"campaigner/internal/domain"
	"campaigner/internal/observability"
	"campaigner/internal/phone"
	"campaigner/internal/store"
	"campaigner/internal/template"
	"campaigner/internal/util"
)

type Store interface {
	GetCampaign(ctx context.Context, id int64) (store.Campaign, bool, error)
	GetTemplate(ctx context.Context, id int64) (store.Template, bool, error)
	MailingListCount(ctx context.Context, campaignID int64) (int, error)
	EligibleContacts(ctx context.Context, campaignID int64) ([]store.AudienceContact, error)
	ActivateAndEnqueue(ctx context.Context, campaignID int64, from string, items []store.QueueItemInsert, now time.Time) (bool, error)
	SetCampaignStatus(ctx context.Context, campaignID int64, from, to string, now time.Time) (bool, error)
}

type Service struct {
	Store Store
	// Region is the country hint for phone numbers stored without a leading +.
	Region string
}

// Launch is the operator-facing transition: draft -> active. Returns the
// number of queue rows created.
func (s *Service) Launch(ctx context.Context, campaignID int64) (int, error) {
	return s.launchFrom(ctx, campaignID, domain.CampaignDraft)
}

// LaunchScheduled is the sweep-facing transition: scheduled -> active, fired
// once a campaign's start time is reached.
func (s *Service) LaunchScheduled(ctx context.Context, campaignID int64) (int, error) {
	return s.launchFrom(ctx, campaignID, domain.CampaignScheduled)
}

func (s *Service) launchFrom(ctx context.Context, campaignID int64, from domain.CampaignStatus) (int, error) {
	now := util.NowUTC()

	c, found, err := s.Store.GetCampaign(ctx, campaignID)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, domain.ErrCampaignNotFound
	}
	if domain.CampaignStatus(c.Status) != from {
		observability.CampaignLaunches.WithLabelValues("invalid_state").Inc()
		return 0, &domain.InvalidStateError{Current: domain.CampaignStatus(c.Status), Wanted: from}
	}

	tpl, err := s.launchPreconditions(ctx, c)
	if err != nil {
		observability.CampaignLaunches.WithLabelValues("precondition").Inc()
		return 0, err
	}

	audience, err := s.Store.EligibleContacts(ctx, campaignID)
	if err != nil {
		return 0, err
	}

	items := make([]store.QueueItemInsert, 0, len(audience))
	for _, ct := range audience {
		if !ct.OptedIn {
			slog.Info("skipping contact, opted out", "campaign_id", campaignID, "contact_id", ct.ContactID)
			continue
		}
		if _, err := phone.Normalize(ct.Phone, s.Region); err != nil {
			slog.Warn("skipping contact, invalid phone", "campaign_id", campaignID, "contact_id", ct.ContactID, "err", err)
			continue
		}
		items = append(items, store.QueueItemInsert{
			CampaignID:  campaignID,
			ContactID:   ct.ContactID,
			ListID:      ct.ListID,
			Body:        template.Render(tpl.Body, contactVars(ct)),
			ScheduledAt: now,
		})
	}

	if len(items) == 0 {
		// Launch is all-or-nothing: the campaign stays in its prior status.
		observability.CampaignLaunches.WithLabelValues("empty").Inc()
		slog.Warn("launch aborted, no eligible contacts", "campaign_id", campaignID)
		return 0, domain.ErrNothingQueued
	}

	activated, err := s.Store.ActivateAndEnqueue(ctx, campaignID, string(from), items, now)
	if err != nil {
		return 0, err
	}
	if !activated {
		// Another worker transitioned the campaign between our read and the
		// conditional update.
		observability.CampaignLaunches.WithLabelValues("invalid_state").Inc()
		return 0, &domain.InvalidStateError{Current: domain.CampaignStatus(c.Status), Wanted: from}
	}

	observability.CampaignLaunches.WithLabelValues("ok").Inc()
	observability.QueuedItems.Add(float64(len(items)))
	slog.Info("campaign launched", "campaign_id", campaignID, "queued", len(items))
	return len(items), nil
}

func (s *Service) launchPreconditions(ctx context.Context, c store.Campaign) (store.Template, error) {
	if c.TemplateID == nil {
		return store.Template{}, domain.ErrPreconditionUnmet
	}
	tpl, found, err := s.Store.GetTemplate(ctx, *c.TemplateID)
	if err != nil {
		return store.Template{}, err
	}
	if !found {
		return store.Template{}, domain.ErrPreconditionUnmet
	}
	lists, err := s.Store.MailingListCount(ctx, c.ID)
	if err != nil {
		return store.Template{}, err
	}
	if lists == 0 {
		return store.Template{}, domain.ErrPreconditionUnmet
	}
	return tpl, nil
}

// Pause transitions active -> paused. Any other starting status is refused.
func (s *Service) Pause(ctx context.Context, campaignID int64) error {
	c, found, err := s.Store.GetCampaign(ctx, campaignID)
	if err != nil {
		return err
	}
	if !found {
		return domain.ErrCampaignNotFound
	}
	ok, err := s.Store.SetCampaignStatus(ctx, campaignID, string(domain.CampaignActive), string(domain.CampaignPaused), util.NowUTC())
	if err != nil {
		return err
	}
	if !ok {
		return &domain.InvalidStateError{Current: domain.CampaignStatus(c.Status), Wanted: domain.CampaignActive}
	}
	slog.Info("campaign paused", "campaign_id", campaignID)
	return nil
}

type PreviewItem struct {
	ContactID int64  `json:"contactId"`
	Phone     string `json:"phone"`
	Body      string `json:"body"`
}

// Preview renders the first limit personalized messages without touching
// campaign state or the queue.
func (s *Service) Preview(ctx context.Context, campaignID int64, limit int) ([]PreviewItem, error) {
	c, found, err := s.Store.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, domain.ErrCampaignNotFound
	}
	if c.TemplateID == nil {
		return nil, domain.ErrPreconditionUnmet
	}
	tpl, found, err := s.Store.GetTemplate(ctx, *c.TemplateID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, domain.ErrPreconditionUnmet
	}

	audience, err := s.Store.EligibleContacts(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = 5
	}
	out := make([]PreviewItem, 0, limit)
	for _, ct := range audience {
		if len(out) == limit {
			break
		}
		out = append(out, PreviewItem{
			ContactID: ct.ContactID,
			Phone:     ct.Phone,
			Body:      template.Render(tpl.Body, contactVars(ct)),
		})
	}
	return out, nil
}

// contactVars builds the personalization variables: well-known contact
// columns first, then the contact's free-form attributes (which may shadow
// the built-ins).
func contactVars(ct store.AudienceContact) map[string]string {
	vars := map[string]string{
		"first_name": ct.FirstName,
		"last_name":  ct.LastName,
		"email":      ct.Email,
		"phone":      ct.Phone,
	}
	for k, v := range ct.Attrs {
		vars[k] = v
	}
	return vars
}
