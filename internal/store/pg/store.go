package pg

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"campaigner/internal/store"
)

type Store struct {
	DB *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store { return &Store{DB: db} }

func (s *Store) GetCampaign(ctx context.Context, id int64) (store.Campaign, bool, error) {
	var c store.Campaign
	row := s.DB.QueryRow(ctx, `
		SELECT id, name, type, status, start_at, end_at, template_id, agent_id, created_at, updated_at
		FROM campaigns WHERE id=$1
	`, id)
	err := row.Scan(&c.ID, &c.Name, &c.Type, &c.Status, &c.StartAt, &c.EndAt, &c.TemplateID, &c.AgentID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Campaign{}, false, nil
		}
		return store.Campaign{}, false, err
	}
	return c, true, nil
}

func (s *Store) GetTemplate(ctx context.Context, id int64) (store.Template, bool, error) {
	var t store.Template
	row := s.DB.QueryRow(ctx, `SELECT id, name, body FROM message_templates WHERE id=$1`, id)
	err := row.Scan(&t.ID, &t.Name, &t.Body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Template{}, false, nil
		}
		return store.Template{}, false, err
	}
	return t, true, nil
}

func (s *Store) MailingListCount(ctx context.Context, campaignID int64) (int, error) {
	var n int
	row := s.DB.QueryRow(ctx, `
		SELECT count(*) FROM mailing_lists WHERE campaign_id=$1 AND deleted_at IS NULL
	`, campaignID)
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// EligibleContacts resolves a campaign's audience: every contact on any of
// its mailing lists, one row per contact. A contact reachable through
// several lists is attributed to the lowest list id. Opt-in filtering is
// left to the caller so skips can be logged per contact.
func (s *Store) EligibleContacts(ctx context.Context, campaignID int64) ([]store.AudienceContact, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT DISTINCT ON (c.id)
		       c.id, ml.id, c.first_name, c.last_name, c.phone, COALESCE(c.email, ''), c.opted_in,
		       COALESCE(c.attrs, '{}'::jsonb)
		FROM contacts c
		JOIN mailing_list_contacts mlc ON mlc.contact_id = c.id
		JOIN mailing_lists ml ON ml.id = mlc.list_id
		WHERE ml.campaign_id=$1 AND ml.deleted_at IS NULL
		ORDER BY c.id, ml.id
	`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.AudienceContact
	for rows.Next() {
		var ac store.AudienceContact
		var attrs []byte
		if err := rows.Scan(&ac.ContactID, &ac.ListID, &ac.FirstName, &ac.LastName, &ac.Phone, &ac.Email, &ac.OptedIn, &attrs); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(attrs, &ac.Attrs)
		out = append(out, ac)
	}
	return out, rows.Err()
}

// ActivateAndEnqueue flips the campaign from its expected status to active
// and bulk-inserts the queue rows in one transaction, so a launch either
// lands completely or not at all. Returns false when the campaign was not
// in the expected status (e.g. a concurrent sweep won the race).
func (s *Store) ActivateAndEnqueue(ctx context.Context, campaignID int64, from string, items []store.QueueItemInsert, now time.Time) (bool, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
		UPDATE campaigns SET status='active', updated_at=$3 WHERE id=$1 AND status=$2
	`, campaignID, from, now)
	if err != nil {
		return false, err
	}
	if ct.RowsAffected() == 0 {
		return false, nil
	}

	b := &pgx.Batch{}
	for _, it := range items {
		b.Queue(`
			INSERT INTO sms_queue (campaign_id, contact_id, list_id, body, scheduled_at, status, attempts, created_at)
			VALUES ($1,$2,$3,$4,$5,'pending',0,$6)
		`, it.CampaignID, it.ContactID, it.ListID, it.Body, it.ScheduledAt, now)
	}
	if err := tx.SendBatch(ctx, b).Close(); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) SetCampaignStatus(ctx context.Context, campaignID int64, from, to string, now time.Time) (bool, error) {
	ct, err := s.DB.Exec(ctx, `
		UPDATE campaigns SET status=$3, updated_at=$4 WHERE id=$1 AND status=$2
	`, campaignID, from, to, now)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (s *Store) DueScheduledCampaigns(ctx context.Context, now time.Time) ([]int64, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id FROM campaigns WHERE status='scheduled' AND start_at <= $1 ORDER BY id
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CompleteExpired is idempotent: a completed campaign never matches again.
func (s *Store) CompleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ct, err := s.DB.Exec(ctx, `
		UPDATE campaigns SET status='completed', updated_at=$1
		WHERE status IN ('active','paused') AND end_at < $1
	`, now)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

// ClaimQueueBatch atomically moves up to limit pending rows to processing
// and returns exactly those rows, joined with each contact's phone number.
// SKIP LOCKED keeps concurrent workers' claims disjoint; this single
// statement is the system's only concurrency control.
func (s *Store) ClaimQueueBatch(ctx context.Context, limit int, now time.Time) ([]store.ClaimedItem, error) {
	rows, err := s.DB.Query(ctx, `
		UPDATE sms_queue q
		SET status='processing'
		FROM (
			SELECT s.id, c.phone
			FROM sms_queue s
			JOIN contacts c ON c.id = s.contact_id
			WHERE s.status='pending' AND s.scheduled_at <= $2
			ORDER BY s.id
			FOR UPDATE OF s SKIP LOCKED
			LIMIT $1
		) picked
		WHERE q.id = picked.id
		RETURNING q.id, q.campaign_id, q.contact_id, q.list_id, picked.phone, q.body, q.attempts
	`, limit, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.ClaimedItem
	for rows.Next() {
		var it store.ClaimedItem
		if err := rows.Scan(&it.ID, &it.CampaignID, &it.ContactID, &it.ListID, &it.Phone, &it.Body, &it.Attempts); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *Store) MarkItemSent(ctx context.Context, itemID int64, now time.Time) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE sms_queue SET status='sent', processed_at=$2 WHERE id=$1
	`, itemID, now)
	return err
}

func (s *Store) RequeueItem(ctx context.Context, itemID int64, attempts int, errMsg string) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE sms_queue SET status='pending', attempts=$2, error_message=$3 WHERE id=$1
	`, itemID, attempts, errMsg)
	return err
}

func (s *Store) FailItem(ctx context.Context, itemID int64, attempts int, errMsg string) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE sms_queue SET status='failed', attempts=$2, error_message=$3 WHERE id=$1
	`, itemID, attempts, errMsg)
	return err
}

// ResurrectFailed gives terminally failed rows one more run through the
// queue. The requeue marker on error_message preserves why the row failed
// the first time around.
func (s *Store) ResurrectFailed(ctx context.Context) (int64, error) {
	ct, err := s.DB.Exec(ctx, `
		UPDATE sms_queue
		SET status='pending', attempts=0, error_message='requeued: ' || COALESCE(error_message, '')
		WHERE status='failed'
	`)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func (s *Store) InsertMessage(ctx context.Context, in store.MessageInsert) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO messages (id, body, sent_at, status, sender, external_id, list_id, contact_id, campaign_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, in.ID, in.Body, in.SentAt, in.Status, in.Sender, nullIfEmpty(in.ExternalID), in.ListID, in.ContactID, in.CampaignID, in.Now)
	return err
}

func (s *Store) GetMessage(ctx context.Context, msgID string) (store.Message, bool, error) {
	var m store.Message
	row := s.DB.QueryRow(ctx, `
		SELECT id, body, sent_at, status, sender, COALESCE(external_id,''), COALESCE(error_message,''),
		       cost, list_id, contact_id, campaign_id, created_at
		FROM messages WHERE id=$1
	`, msgID)
	err := row.Scan(&m.ID, &m.Body, &m.SentAt, &m.Status, &m.Sender, &m.ExternalID, &m.ErrorMessage,
		&m.Cost, &m.ListID, &m.ContactID, &m.CampaignID, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Message{}, false, nil
		}
		return store.Message{}, false, err
	}
	return m, true, nil
}

// ApplyDeliveryUpdate writes a carrier-reported status onto the message
// correlated by external id. Reapplying the same event lands on the same
// row state. Returns false when no message carries that id.
func (s *Store) ApplyDeliveryUpdate(ctx context.Context, in store.DeliveryUpdate) (bool, error) {
	ct, err := s.DB.Exec(ctx, `
		UPDATE messages
		SET status=$2, error_message=COALESCE($3, error_message), cost=COALESCE($4, cost)
		WHERE external_id=$1
	`, in.ExternalID, in.Status, in.ErrorMessage, in.Cost)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
