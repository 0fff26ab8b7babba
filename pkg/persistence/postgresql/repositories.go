package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/reachflow/reachflow/pkg/models"
	"github.com/reachflow/reachflow/pkg/persistence"
)

// workflowRepository stores the node graph as a JSONB document; the tagged
// union decode in models.Node runs on every load, so a malformed graph
// fails at read time rather than mid-execution.
type workflowRepository struct {
	db *sql.DB
}

type workflowGraph struct {
	Nodes []*models.Node `json:"nodes"`
	Edges []*models.Edge `json:"edges"`
}

func (r *workflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	graph, err := json.Marshal(workflowGraph{Nodes: workflow.Nodes, Edges: workflow.Edges})
	if err != nil {
		return fmt.Errorf("failed to marshal workflow graph: %w", err)
	}

	query := `
		INSERT INTO workflows (id, name, enabled, graph, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, enabled = EXCLUDED.enabled, graph = EXCLUDED.graph, updated_at = NOW()
	`

	_, err = r.db.ExecContext(ctx, query, workflow.ID, workflow.Name, workflow.Enabled, graph)
	if err != nil {
		return persistence.NewStoreError("Save", "workflow", workflow.ID, err)
	}

	return nil
}

func (r *workflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := `
		SELECT id, name, enabled, graph, created_at, updated_at
		FROM workflows
		WHERE id = $1
	`

	var (
		workflow models.Workflow
		rawGraph []byte
	)

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&workflow.ID, &workflow.Name, &workflow.Enabled, &rawGraph,
		&workflow.CreatedAt, &workflow.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewStoreError("GetByID", "workflow", id, persistence.ErrWorkflowNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	var graph workflowGraph
	if err := json.Unmarshal(rawGraph, &graph); err != nil {
		return nil, fmt.Errorf("failed to decode workflow graph: %w", err)
	}

	workflow.Nodes = graph.Nodes
	workflow.Edges = graph.Edges

	return &workflow, nil
}

type contactRepository struct {
	db *sql.DB
}

func (r *contactRepository) Save(ctx context.Context, contact *models.Contact) error {
	custom, err := json.Marshal(contact.Custom)
	if err != nil {
		return fmt.Errorf("failed to marshal custom fields: %w", err)
	}

	query := `
		INSERT INTO contacts (id, first_name, last_name, email, phone, status, do_not_contact, custom, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE
		SET first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name,
		    email = EXCLUDED.email, phone = EXCLUDED.phone, status = EXCLUDED.status,
		    do_not_contact = EXCLUDED.do_not_contact, custom = EXCLUDED.custom, updated_at = NOW()
	`

	_, err = r.db.ExecContext(ctx, query,
		contact.ID, contact.FirstName, contact.LastName, contact.Email,
		contact.Phone, contact.Status, contact.DoNotContact, custom,
	)
	if err != nil {
		return persistence.NewStoreError("Save", "contact", contact.ID, err)
	}

	return nil
}

func (r *contactRepository) GetByID(ctx context.Context, id string) (*models.Contact, error) {
	query := `
		SELECT id, first_name, last_name, email, phone, status, do_not_contact, custom, created_at, updated_at
		FROM contacts
		WHERE id = $1
	`

	var (
		contact models.Contact
		custom  []byte
	)

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&contact.ID, &contact.FirstName, &contact.LastName, &contact.Email,
		&contact.Phone, &contact.Status, &contact.DoNotContact, &custom,
		&contact.CreatedAt, &contact.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewStoreError("GetByID", "contact", id, persistence.ErrContactNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to scan contact: %w", err)
	}

	if len(custom) > 0 {
		if err := json.Unmarshal(custom, &contact.Custom); err != nil {
			return nil, fmt.Errorf("failed to decode custom fields: %w", err)
		}
	}

	return &contact, nil
}

func (r *contactRepository) UpdateStatus(ctx context.Context, id, status string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE contacts SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return persistence.NewStoreError("UpdateStatus", "contact", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}

	if affected == 0 {
		return persistence.NewStoreError("UpdateStatus", "contact", id, persistence.ErrContactNotFound)
	}

	return nil
}

type templateRepository struct {
	db *sql.DB
}

func (r *templateRepository) Save(ctx context.Context, template *models.Template) error {
	query := `
		INSERT INTO templates (id, channel, body, subject)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET channel = EXCLUDED.channel, body = EXCLUDED.body, subject = EXCLUDED.subject
	`

	_, err := r.db.ExecContext(ctx, query, template.ID, template.Channel, template.Body, template.Subject)
	if err != nil {
		return persistence.NewStoreError("Save", "template", template.ID, err)
	}

	return nil
}

func (r *templateRepository) GetByID(ctx context.Context, id string) (*models.Template, error) {
	var template models.Template

	err := r.db.QueryRowContext(ctx,
		`SELECT id, channel, body, subject FROM templates WHERE id = $1`, id).
		Scan(&template.ID, &template.Channel, &template.Body, &template.Subject)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewStoreError("GetByID", "template", id, persistence.ErrTemplateNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to scan template: %w", err)
	}

	return &template, nil
}

type enrollmentRepository struct {
	db *sql.DB
}

func (r *enrollmentRepository) Save(ctx context.Context, enrollment *models.Enrollment) error {
	query := `
		INSERT INTO enrollments (id, workflow_id, contact_id, status, enrolled_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status, updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query,
		enrollment.ID, enrollment.WorkflowID, enrollment.ContactID,
		enrollment.Status, enrollment.EnrolledAt,
	)
	if err != nil {
		return persistence.NewStoreError("Save", "enrollment", enrollment.ID, err)
	}

	return nil
}

func (r *enrollmentRepository) GetByID(ctx context.Context, id string) (*models.Enrollment, error) {
	var enrollment models.Enrollment

	err := r.db.QueryRowContext(ctx,
		`SELECT id, workflow_id, contact_id, status, enrolled_at, updated_at FROM enrollments WHERE id = $1`, id).
		Scan(&enrollment.ID, &enrollment.WorkflowID, &enrollment.ContactID,
			&enrollment.Status, &enrollment.EnrolledAt, &enrollment.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewStoreError("GetByID", "enrollment", id, persistence.ErrEnrollmentNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to scan enrollment: %w", err)
	}

	return &enrollment, nil
}

func (r *enrollmentRepository) FindActive(ctx context.Context, workflowID, contactID string) (*models.Enrollment, error) {
	var enrollment models.Enrollment

	query := `
		SELECT id, workflow_id, contact_id, status, enrolled_at, updated_at
		FROM enrollments
		WHERE workflow_id = $1 AND contact_id = $2 AND status = 'active'
		LIMIT 1
	`

	err := r.db.QueryRowContext(ctx, query, workflowID, contactID).
		Scan(&enrollment.ID, &enrollment.WorkflowID, &enrollment.ContactID,
			&enrollment.Status, &enrollment.EnrolledAt, &enrollment.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewStoreError("FindActive", "enrollment", workflowID+"/"+contactID, persistence.ErrEnrollmentNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to scan enrollment: %w", err)
	}

	return &enrollment, nil
}

type executionRepository struct {
	db *sql.DB
}

const executionColumns = `id, enrollment_id, workflow_id, contact_id, current_node_id, next_run_at, status, claimed_by, created_at, updated_at`

func scanExecution(row interface{ Scan(...any) error }) (*models.Execution, error) {
	var (
		execution models.Execution
		claimedBy sql.NullString
	)

	err := row.Scan(
		&execution.ID, &execution.EnrollmentID, &execution.WorkflowID, &execution.ContactID,
		&execution.CurrentNodeID, &execution.NextRunAt, &execution.Status, &claimedBy,
		&execution.CreatedAt, &execution.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	execution.ClaimedBy = claimedBy.String

	return &execution, nil
}

func (r *executionRepository) Save(ctx context.Context, execution *models.Execution) error {
	query := `
		INSERT INTO executions (id, enrollment_id, workflow_id, contact_id, current_node_id, next_run_at, status, claimed_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NOW(), NOW())
		ON CONFLICT (id) DO UPDATE
		SET current_node_id = EXCLUDED.current_node_id, next_run_at = EXCLUDED.next_run_at,
		    status = EXCLUDED.status, claimed_by = EXCLUDED.claimed_by, updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query,
		execution.ID, execution.EnrollmentID, execution.WorkflowID, execution.ContactID,
		execution.CurrentNodeID, execution.NextRunAt, execution.Status, execution.ClaimedBy,
	)
	if err != nil {
		return persistence.NewStoreError("Save", "execution", execution.ID, err)
	}

	return nil
}

func (r *executionRepository) GetByID(ctx context.Context, id string) (*models.Execution, error) {
	execution, err := scanExecution(r.db.QueryRowContext(ctx,
		`SELECT `+executionColumns+` FROM executions WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewStoreError("GetByID", "execution", id, persistence.ErrExecutionNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to scan execution: %w", err)
	}

	return execution, nil
}

func (r *executionRepository) GetByEnrollment(ctx context.Context, enrollmentID string) (*models.Execution, error) {
	execution, err := scanExecution(r.db.QueryRowContext(ctx,
		`SELECT `+executionColumns+` FROM executions WHERE enrollment_id = $1`, enrollmentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewStoreError("GetByEnrollment", "execution", enrollmentID, persistence.ErrExecutionNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to scan execution: %w", err)
	}

	return execution, nil
}

func (r *executionRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Execution, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM executions
		WHERE (status = 'waiting' AND next_run_at <= $1)
		   OR status = 'not_started'
		ORDER BY next_run_at ASC NULLS FIRST
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query due executions: %w", err)
	}
	defer rows.Close()

	executions := make([]*models.Execution, 0)

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}

// Claim performs the conditional update that gives at-most-one-claim
// semantics: overlapping scheduler runs race on the claimed_by guard and
// only one UPDATE reports an affected row.
func (r *executionRepository) Claim(ctx context.Context, id, claimedBy string) (bool, error) {
	query := `
		UPDATE executions
		SET status = 'active', claimed_by = $1, updated_at = NOW()
		WHERE id = $2
		  AND status IN ('waiting', 'not_started')
		  AND claimed_by IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, claimedBy, id)
	if err != nil {
		return false, persistence.NewStoreError("Claim", "execution", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return affected == 1, nil
}

type messageRepository struct {
	db *sql.DB
}

const messageColumns = `id, contact_id, channel, direction, body, subject, status, provider_id, provider_error, execution_id, scheduled_at, created_at, updated_at`

func scanMessage(row interface{ Scan(...any) error }) (*models.Message, error) {
	var (
		message     models.Message
		providerID  sql.NullString
		executionID sql.NullString
	)

	err := row.Scan(
		&message.ID, &message.ContactID, &message.Channel, &message.Direction,
		&message.Body, &message.Subject, &message.Status, &providerID,
		&message.ProviderError, &executionID, &message.ScheduledAt,
		&message.CreatedAt, &message.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	message.ProviderID = providerID.String
	message.ExecutionID = executionID.String

	return &message, nil
}

func (r *messageRepository) Save(ctx context.Context, message *models.Message) error {
	query := `
		INSERT INTO messages (id, contact_id, channel, direction, body, subject, status, provider_id, provider_error, execution_id, scheduled_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, NULLIF($10, ''), $11, $12, NOW())
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status, provider_id = EXCLUDED.provider_id,
		    provider_error = EXCLUDED.provider_error, updated_at = NOW()
	`

	createdAt := message.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, query,
		message.ID, message.ContactID, message.Channel, message.Direction,
		message.Body, message.Subject, message.Status, message.ProviderID,
		message.ProviderError, message.ExecutionID, message.ScheduledAt, createdAt,
	)
	if err != nil {
		return persistence.NewStoreError("Save", "message", message.ID, err)
	}

	return nil
}

func (r *messageRepository) GetByID(ctx context.Context, id string) (*models.Message, error) {
	message, err := scanMessage(r.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewStoreError("GetByID", "message", id, persistence.ErrMessageNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to scan message: %w", err)
	}

	return message, nil
}

func (r *messageRepository) GetByProviderID(ctx context.Context, providerID string) (*models.Message, error) {
	message, err := scanMessage(r.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE provider_id = $1`, providerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewStoreError("GetByProviderID", "message", providerID, persistence.ErrMessageNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to scan message: %w", err)
	}

	return message, nil
}

func (r *messageRepository) ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]*models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE status = 'scheduled' AND scheduled_at <= $1
		ORDER BY scheduled_at ASC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query scheduled messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*models.Message, 0)

	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}

		messages = append(messages, message)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}

func (r *messageRepository) Claim(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE messages
		SET status = 'queued', updated_at = NOW()
		WHERE id = $1 AND status = 'scheduled'
	`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, persistence.NewStoreError("Claim", "message", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return affected == 1, nil
}

func (r *messageRepository) ListInbound(ctx context.Context, contactID string, channel models.Channel, after time.Time) ([]*models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE direction = 'inbound'
		  AND contact_id = $1
		  AND created_at > $2
		  AND ($3 = 'any' OR channel = $3)
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, contactID, after, string(channel))
	if err != nil {
		return nil, fmt.Errorf("failed to query inbound messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*models.Message, 0)

	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}

		messages = append(messages, message)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}

type settingsRepository struct {
	db *sql.DB
}

func (r *settingsRepository) SaveProviderSettings(ctx context.Context, settings *models.ProviderSettings) error {
	query := `
		INSERT INTO provider_settings (channel, account_id, auth_token, from_address, signing_secret)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (channel) DO UPDATE
		SET account_id = EXCLUDED.account_id, auth_token = EXCLUDED.auth_token,
		    from_address = EXCLUDED.from_address, signing_secret = EXCLUDED.signing_secret
	`

	_, err := r.db.ExecContext(ctx, query,
		settings.Channel, settings.AccountID, settings.AuthToken,
		settings.FromAddress, settings.SigningSecret,
	)
	if err != nil {
		return persistence.NewStoreError("SaveProviderSettings", "settings", string(settings.Channel), err)
	}

	return nil
}

func (r *settingsRepository) ProviderSettings(ctx context.Context, channel models.Channel) (*models.ProviderSettings, error) {
	var settings models.ProviderSettings

	err := r.db.QueryRowContext(ctx,
		`SELECT channel, account_id, auth_token, from_address, signing_secret FROM provider_settings WHERE channel = $1`,
		channel).
		Scan(&settings.Channel, &settings.AccountID, &settings.AuthToken,
			&settings.FromAddress, &settings.SigningSecret)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewStoreError("ProviderSettings", "settings", string(channel), persistence.ErrSettingsNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to scan provider settings: %w", err)
	}

	return &settings, nil
}
