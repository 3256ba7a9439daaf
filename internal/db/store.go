package db

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tikozap/backend/internal/models"
	"github.com/tikozap/backend/internal/quality"
)

//go:embed schema.sql
var schemaSQL string

var ErrTenantMismatch = errors.New("conversation belongs to another tenant")

type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

// Migrate applies the embedded schema. Statements are idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.Pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const conversationColumns = `id, tenant_id, channel, external_ref, customer, status, assignee, last_intent, created_at, updated_at`

func scanConversation(row pgx.Row) (models.Conversation, error) {
	var c models.Conversation
	err := row.Scan(&c.ID, &c.TenantID, &c.Channel, &c.ExternalRef, &c.Customer, &c.Status, &c.Assignee, &c.LastIntent, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// EnsureConversation inserts c if no row with its ID exists and returns the
// stored row. Tenant mismatches are rejected.
func (s *Store) EnsureConversation(ctx context.Context, c models.Conversation) (models.Conversation, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = models.StatusOpen
	}
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO conversations (id, tenant_id, channel, external_ref, customer, status)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE SET updated_at = NOW()
		RETURNING `+conversationColumns,
		c.ID, c.TenantID, c.Channel, c.ExternalRef, c.Customer, c.Status)
	stored, err := scanConversation(row)
	if err != nil {
		return models.Conversation{}, err
	}
	if stored.TenantID != c.TenantID {
		return models.Conversation{}, ErrTenantMismatch
	}
	return stored, nil
}

func (s *Store) InsertMessage(ctx context.Context, m models.Message) (models.Message, error) {
	if err := insertMessage(ctx, s.Pool, &m); err != nil {
		return models.Message{}, err
	}
	return m, nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertMessage(ctx context.Context, q execer, m *models.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := q.Exec(ctx, `
		INSERT INTO messages (id, conversation_id, role, text, intent, source, needs_human, first_token_ms, total_ms, used_sse, fallback_used, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, m.ID, m.ConversationID, m.Role, m.Text, m.Intent, m.Source, m.NeedsHuman, m.FirstTokenMs, m.TotalMs, m.UsedSSE, m.FallbackUsed, m.CreatedAt)
	return err
}

func insertQualityReport(ctx context.Context, q execer, r *models.QualityReport) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	var twilio []byte
	if !r.Twilio.Empty() {
		b, err := json.Marshal(r.Twilio)
		if err != nil {
			return err
		}
		twilio = b
	}
	_, err := q.Exec(ctx, `
		INSERT INTO quality_reports (id, conversation_id, message_id, tenant_id, source, transport, conversation, overall, grade, reasons, recommendations, twilio, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, r.ID, r.ConversationID, r.MessageID, r.TenantID, r.Source, r.Transport, r.Conversation, r.Overall, r.Grade, nonNil(r.Reasons), nonNil(r.Recommendations), twilio, r.CreatedAt)
	return err
}

// SaveTurn stores an assistant reply with its quality report and moves the
// conversation to status in one transaction.
func (s *Store) SaveTurn(ctx context.Context, reply models.Message, report models.QualityReport, status string) (models.Message, models.QualityReport, error) {
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		if err := insertMessage(ctx, tx, &reply); err != nil {
			return fmt.Errorf("insert reply: %w", err)
		}
		report.MessageID = &reply.ID
		if err := insertQualityReport(ctx, tx, &report); err != nil {
			return fmt.Errorf("insert quality report: %w", err)
		}
		_, err := tx.Exec(ctx, `
			UPDATE conversations SET status = $1, last_intent = $2, updated_at = NOW() WHERE id = $3
		`, status, reply.Intent, reply.ConversationID)
		return err
	})
	if err != nil {
		return models.Message{}, models.QualityReport{}, err
	}
	return reply, report, nil
}

func (s *Store) InsertQualityReport(ctx context.Context, r models.QualityReport) (models.QualityReport, error) {
	if err := insertQualityReport(ctx, s.Pool, &r); err != nil {
		return models.QualityReport{}, err
	}
	return r, nil
}

func (s *Store) CountCustomerMessages(ctx context.Context, conversationID string) (int, error) {
	var n int
	err := s.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM messages WHERE conversation_id = $1 AND role = $2`, conversationID, models.RoleCustomer).Scan(&n)
	return n, err
}

func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, conversation_id, role, text, intent, source, needs_human, first_token_ms, total_ms, used_sse, fallback_used, created_at
		FROM messages WHERE conversation_id = $1 ORDER BY created_at ASC, id ASC
	`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Text, &m.Intent, &m.Source, &m.NeedsHuman, &m.FirstTokenMs, &m.TotalMs, &m.UsedSSE, &m.FallbackUsed, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ImportConversations bulk loads conversations and their messages. Existing
// conversations are kept; messages are copied in.
func (s *Store) ImportConversations(ctx context.Context, conversations []models.Conversation, messages []models.Message) (int64, int64, error) {
	var convInserted, msgInserted int64
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		for _, c := range conversations {
			tag, err := tx.Exec(ctx, `
				INSERT INTO conversations (id, tenant_id, channel, external_ref, customer, status, created_at, updated_at)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$7)
				ON CONFLICT (id) DO NOTHING
			`, c.ID, c.TenantID, c.Channel, c.ExternalRef, c.Customer, c.Status, c.CreatedAt)
			if err != nil {
				return fmt.Errorf("insert conversation %s: %w", c.ID, err)
			}
			convInserted += tag.RowsAffected()
		}

		if len(conversations) > 0 {
			ids := make([]string, 0, len(conversations))
			for _, c := range conversations {
				ids = append(ids, c.ID)
			}
			stored, err := storedTenants(ctx, tx, ids)
			if err != nil {
				return err
			}
			if err := tenantConflicts(conversations, stored); err != nil {
				return err
			}
		}

		rows := make([][]any, 0, len(messages))
		for _, m := range messages {
			rows = append(rows, []any{m.ID, m.ConversationID, m.Role, m.Text, m.Intent, m.Source, m.NeedsHuman, m.FirstTokenMs, m.TotalMs, m.UsedSSE, m.FallbackUsed, m.CreatedAt})
		}
		n, err := tx.CopyFrom(ctx, pgx.Identifier{"messages"},
			[]string{"id", "conversation_id", "role", "text", "intent", "source", "needs_human", "first_token_ms", "total_ms", "used_sse", "fallback_used", "created_at"},
			pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("copy messages: %w", err)
		}
		msgInserted = n
		return nil
	})
	return convInserted, msgInserted, err
}

func storedTenants(ctx context.Context, tx pgx.Tx, ids []string) (map[string]string, error) {
	rows, err := tx.Query(ctx, `SELECT id, tenant_id FROM conversations WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("load conversation tenants: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string, len(ids))
	for rows.Next() {
		var id, tenant string
		if err := rows.Scan(&id, &tenant); err != nil {
			return nil, err
		}
		out[id] = tenant
	}
	return out, rows.Err()
}

// tenantConflicts reports the first imported conversation whose id is
// already owned by a different tenant.
func tenantConflicts(conversations []models.Conversation, stored map[string]string) error {
	for _, c := range conversations {
		if owner, ok := stored[c.ID]; ok && owner != c.TenantID {
			return fmt.Errorf("import conversation %s: %w", c.ID, ErrTenantMismatch)
		}
	}
	return nil
}

func (s *Store) ListConversations(ctx context.Context, tenantID, status, q string, limit, offset int) ([]models.Conversation, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + conversationColumns + ` FROM conversations c`
	var args []any
	var wheres []string
	if tenantID != "" {
		args = append(args, tenantID)
		wheres = append(wheres, fmt.Sprintf("c.tenant_id = $%d", len(args)))
	}
	if status != "" {
		args = append(args, status)
		wheres = append(wheres, fmt.Sprintf("c.status = $%d", len(args)))
	}
	if q != "" {
		args = append(args, "%"+q+"%")
		wheres = append(wheres, fmt.Sprintf("(c.id ILIKE $%d OR c.customer ILIKE $%d OR EXISTS (SELECT 1 FROM messages m WHERE m.conversation_id = c.id AND m.text ILIKE $%d))", len(args), len(args), len(args)))
	}
	if len(wheres) > 0 {
		query += " WHERE " + strings.Join(wheres, " AND ")
	}
	query += " ORDER BY c.updated_at DESC LIMIT $" + fmt.Sprint(len(args)+1) + " OFFSET $" + fmt.Sprint(len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) GetConversation(ctx context.Context, id string) (models.Conversation, error) {
	return scanConversation(s.Pool.QueryRow(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, id))
}

func (s *Store) GetConversationDetails(ctx context.Context, id string) (models.ConversationDetails, error) {
	c, err := s.GetConversation(ctx, id)
	if err != nil {
		return models.ConversationDetails{}, err
	}
	msgs, err := s.ListMessages(ctx, id)
	if err != nil {
		return models.ConversationDetails{}, err
	}
	reports, err := s.listQualityReports(ctx, `WHERE conversation_id = $1 ORDER BY created_at ASC`, id)
	if err != nil {
		return models.ConversationDetails{}, err
	}
	return models.ConversationDetails{Conversation: c, Messages: msgs, Reports: reports}, nil
}

// GetConversationsForScoring returns conversations that have messages but no
// quality report yet.
func (s *Store) GetConversationsForScoring(ctx context.Context) ([]models.Conversation, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations c
		WHERE NOT EXISTS (SELECT 1 FROM quality_reports r WHERE r.conversation_id = c.id)
		  AND EXISTS (SELECT 1 FROM messages m WHERE m.conversation_id = c.id)
		ORDER BY c.created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) ListQualityReports(ctx context.Context, tenantID, grade string, limit, offset int) ([]models.QualityReport, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var args []any
	var wheres []string
	if tenantID != "" {
		args = append(args, tenantID)
		wheres = append(wheres, fmt.Sprintf("tenant_id = $%d", len(args)))
	}
	if grade != "" {
		args = append(args, grade)
		wheres = append(wheres, fmt.Sprintf("grade = $%d", len(args)))
	}
	clause := ""
	if len(wheres) > 0 {
		clause = "WHERE " + strings.Join(wheres, " AND ")
	}
	clause += " ORDER BY created_at DESC LIMIT $" + fmt.Sprint(len(args)+1) + " OFFSET $" + fmt.Sprint(len(args)+2)
	args = append(args, limit, offset)
	return s.listQualityReports(ctx, clause, args...)
}

func (s *Store) listQualityReports(ctx context.Context, clause string, args ...any) ([]models.QualityReport, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, conversation_id, message_id, tenant_id, source, transport, conversation, overall, grade, reasons, recommendations, twilio, created_at
		FROM quality_reports `+clause, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.QualityReport
	for rows.Next() {
		var (
			r      models.QualityReport
			twilio []byte
		)
		if err := rows.Scan(&r.ID, &r.ConversationID, &r.MessageID, &r.TenantID, &r.Source, &r.Transport, &r.Conversation, &r.Overall, &r.Grade, &r.Reasons, &r.Recommendations, &twilio, &r.CreatedAt); err != nil {
			return nil, err
		}
		if len(twilio) > 0 {
			var m quality.TwilioMetrics
			if err := json.Unmarshal(twilio, &m); err == nil {
				r.Twilio = &m
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) QualitySummary(ctx context.Context, tenantID string) (models.QualitySummary, error) {
	summary := models.QualitySummary{
		TenantID: tenantID,
		Grades:   map[string]int{},
		Sources:  map[string]int{},
	}
	err := s.Pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(AVG(transport), 0), COALESCE(AVG(conversation), 0), COALESCE(AVG(overall), 0)
		FROM quality_reports WHERE ($1 = '' OR tenant_id = $1)
	`, tenantID).Scan(&summary.Reports, &summary.AvgTransport, &summary.AvgConversation, &summary.AvgOverall)
	if err != nil {
		return models.QualitySummary{}, err
	}

	rows, err := s.Pool.Query(ctx, `
		SELECT 'grade', grade, COUNT(*) FROM quality_reports WHERE ($1 = '' OR tenant_id = $1) GROUP BY grade
		UNION ALL
		SELECT 'source', source, COUNT(*) FROM quality_reports WHERE ($1 = '' OR tenant_id = $1) GROUP BY source
	`, tenantID)
	if err != nil {
		return models.QualitySummary{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			kind, key string
			n         int
		)
		if err := rows.Scan(&kind, &key, &n); err != nil {
			return models.QualitySummary{}, err
		}
		if kind == "grade" {
			summary.Grades[key] = n
		} else {
			summary.Sources[key] = n
		}
	}
	return summary, rows.Err()
}

// Handoff assigns a human agent and records the reason as an agent note.
func (s *Store) Handoff(ctx context.Context, conversationID, agent, reason string) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE conversations SET status = $1, assignee = $2, updated_at = NOW() WHERE id = $3
		`, models.StatusHuman, agent, conversationID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		note := models.Message{
			ConversationID: conversationID,
			Role:           models.RoleAgent,
			Text:           "Handed off to " + agent + ": " + reason,
		}
		return insertMessage(ctx, tx, &note)
	})
}

func (s *Store) SetConversationStatus(ctx context.Context, conversationID, status string) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE conversations SET status = $1, updated_at = NOW() WHERE id = $2`, status, conversationID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (s *Store) CreateRun(ctx context.Context, status string) (string, error) {
	var id string
	err := s.Pool.QueryRow(ctx, `INSERT INTO runs (status, started_at) VALUES ($1, NOW()) RETURNING id`, status).Scan(&id)
	return id, err
}

func (s *Store) FinishRun(ctx context.Context, runID string, status string, summary []byte) error {
	_, err := s.Pool.Exec(ctx, `UPDATE runs SET status = $1, summary = $2, finished_at = NOW() WHERE id = $3`, status, summary, runID)
	return err
}

func (s *Store) GetLatestRun(ctx context.Context) (map[string]any, error) {
	row := s.Pool.QueryRow(ctx, `SELECT id, started_at, finished_at, status, summary FROM runs ORDER BY started_at DESC LIMIT 1`)
	var (
		id       string
		started  time.Time
		finished *time.Time
		status   string
		summary  []byte
	)
	if err := row.Scan(&id, &started, &finished, &status, &summary); err != nil {
		return nil, err
	}
	var summaryValue any
	if len(summary) > 0 {
		_ = json.Unmarshal(summary, &summaryValue)
	}
	return map[string]any{
		"id":          id,
		"started_at":  started,
		"finished_at": finished,
		"status":      status,
		"summary":     summaryValue,
	}, nil
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
