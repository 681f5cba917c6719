package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// TriggerRuleRepository stores keyword automation rules and their notify lists.
type TriggerRuleRepository interface {
	Create(ctx context.Context, rule *domain.TriggerRule) error
	Update(ctx context.Context, rule *domain.TriggerRule) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.TriggerRule, error)
	// List returns every rule ordered by creation time, then id.
	List(ctx context.Context) ([]domain.TriggerRule, error)
	// ListActive is List restricted to active rules.
	ListActive(ctx context.Context) ([]domain.TriggerRule, error)
}

type triggerRuleRepository struct {
	db DBTX
}

// NewTriggerRuleRepository builds the repository.
func NewTriggerRuleRepository(db DBTX) TriggerRuleRepository {
	return &triggerRuleRepository{db: db}
}

const ruleSelect = `
        SELECT r.id, r.name, r.keywords, r.action, r.category_id, r.is_active, r.created_at,
               COALESCE(array_agg(n.user_id::text ORDER BY n.user_id) FILTER (WHERE n.user_id IS NOT NULL), '{}')
        FROM trigger_rules r
        LEFT JOIN trigger_rule_notify_users n ON n.rule_id = r.id`

func (r *triggerRuleRepository) Create(ctx context.Context, rule *domain.TriggerRule) error {
	const query = `
        INSERT INTO trigger_rules (name, keywords, action, category_id, is_active)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	if err := r.db.QueryRow(ctx, query,
		rule.Name,
		rule.Keywords,
		rule.Action,
		rule.CategoryID,
		rule.Active,
	).Scan(&rule.ID, &rule.CreatedAt); err != nil {
		return mapError(err)
	}
	return r.replaceNotifyUsers(ctx, rule)
}

func (r *triggerRuleRepository) Update(ctx context.Context, rule *domain.TriggerRule) error {
	const query = `
        UPDATE trigger_rules SET name=$1, keywords=$2, action=$3, category_id=$4, is_active=$5
        WHERE id=$6`
	if err := execAffecting(ctx, r.db, query,
		rule.Name,
		rule.Keywords,
		rule.Action,
		rule.CategoryID,
		rule.Active,
		rule.ID,
	); err != nil {
		return err
	}
	return r.replaceNotifyUsers(ctx, rule)
}

func (r *triggerRuleRepository) replaceNotifyUsers(ctx context.Context, rule *domain.TriggerRule) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM trigger_rule_notify_users WHERE rule_id=$1`, rule.ID); err != nil {
		return err
	}
	if len(rule.NotifyUserIDs) == 0 {
		return nil
	}
	const query = `
        INSERT INTO trigger_rule_notify_users (rule_id, user_id)
        SELECT $1, u FROM unnest($2::text[]::uuid[]) AS u
        ON CONFLICT DO NOTHING`
	_, err := r.db.Exec(ctx, query, rule.ID, rule.NotifyUserIDs)
	return mapError(err)
}

func (r *triggerRuleRepository) Delete(ctx context.Context, id string) error {
	return execAffecting(ctx, r.db, `DELETE FROM trigger_rules WHERE id=$1`, id)
}

func (r *triggerRuleRepository) GetByID(ctx context.Context, id string) (*domain.TriggerRule, error) {
	rows, err := r.db.Query(ctx, ruleSelect+` WHERE r.id=$1 GROUP BY r.id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	rules, err := scanRules(rows)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, ErrNotFound
	}
	return &rules[0], nil
}

func (r *triggerRuleRepository) List(ctx context.Context) ([]domain.TriggerRule, error) {
	return r.list(ctx, ruleSelect+` GROUP BY r.id ORDER BY r.created_at, r.id`)
}

func (r *triggerRuleRepository) ListActive(ctx context.Context) ([]domain.TriggerRule, error) {
	return r.list(ctx, ruleSelect+` WHERE r.is_active GROUP BY r.id ORDER BY r.created_at, r.id`)
}

func (r *triggerRuleRepository) list(ctx context.Context, query string) ([]domain.TriggerRule, error) {
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRules(rows)
}

func scanRules(rows pgx.Rows) ([]domain.TriggerRule, error) {
	var result []domain.TriggerRule
	for rows.Next() {
		var rule domain.TriggerRule
		if err := rows.Scan(
			&rule.ID,
			&rule.Name,
			&rule.Keywords,
			&rule.Action,
			&rule.CategoryID,
			&rule.Active,
			&rule.CreatedAt,
			&rule.NotifyUserIDs,
		); err != nil {
			return nil, err
		}
		result = append(result, rule)
	}
	return result, rows.Err()
}
