package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"media-studio/internal/models"
)

// ListTemplates returns all templates ordered by id.
func (s *Store) ListTemplates(ctx context.Context) ([]models.Template, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, description, user_template_text FROM templates ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query templates: %w", err)
	}
	defer rows.Close()

	out := make([]models.Template, 0)
	for rows.Next() {
		var t models.Template
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.UserTemplateText); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetTemplate fetches one template.
func (s *Store) GetTemplate(ctx context.Context, id int64) (models.Template, error) {
	var t models.Template
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, description, user_template_text FROM templates WHERE id = $1
	`, id).Scan(&t.ID, &t.Name, &t.Description, &t.UserTemplateText)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Template{}, fmt.Errorf("template %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Template{}, fmt.Errorf("scan template: %w", err)
	}
	return t, nil
}

// CreateTemplate inserts t and returns it with its id.
func (s *Store) CreateTemplate(ctx context.Context, t models.Template) (models.Template, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO templates (name, description, user_template_text) VALUES ($1, $2, $3) RETURNING id
	`, t.Name, t.Description, t.UserTemplateText).Scan(&t.ID)
	if err != nil {
		return models.Template{}, fmt.Errorf("insert template: %w", err)
	}
	return t, nil
}

// UpdateTemplate replaces the fields of template t.ID.
func (s *Store) UpdateTemplate(ctx context.Context, t models.Template) (models.Template, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE templates SET name = $2, description = $3, user_template_text = $4 WHERE id = $1
	`, t.ID, t.Name, t.Description, t.UserTemplateText)
	if err != nil {
		return models.Template{}, fmt.Errorf("update template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.Template{}, fmt.Errorf("template %d: %w", t.ID, ErrNotFound)
	}
	return t, nil
}

// DeleteTemplate removes a template.
func (s *Store) DeleteTemplate(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("template %d: %w", id, ErrNotFound)
	}
	return nil
}
