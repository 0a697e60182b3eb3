// ABOUTME: Delegated principal directory backed by SQLite
// ABOUTME: Team members are looked up by ID or case-insensitive email

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const principalColumns = `id, parent_account_id, display_name, email, role_name,
	permissions_json, status, password_hash, created_at, updated_at`

// CreateDelegatedPrincipal inserts a new delegated principal.
// Generates ID and timestamps if not set. Returns ErrDuplicateEmail if the
// email is already registered (case-insensitive).
func (s *SQLiteStore) CreateDelegatedPrincipal(ctx context.Context, p *DelegatedPrincipal) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Status == "" {
		p.Status = PrincipalStatusActive
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}

	perms := p.Permissions
	if perms == nil {
		perms = []string{}
	}
	permsJSON, err := json.Marshal(perms)
	if err != nil {
		return fmt.Errorf("marshaling permissions: %w", err)
	}

	query := `
		INSERT INTO delegated_principals (id, parent_account_id, display_name, email, email_lower,
			role_name, permissions_json, status, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		p.ID,
		p.ParentAccountID,
		p.DisplayName,
		p.Email,
		normalizeEmail(p.Email),
		p.RoleName,
		string(permsJSON),
		p.Status,
		nullString(p.PasswordHash),
		p.CreatedAt.UTC().Format(time.RFC3339),
		p.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("inserting delegated principal: %w", err)
	}

	s.logger.Debug("created delegated principal", "id", p.ID, "parent", p.ParentAccountID)
	return nil
}

// GetDelegatedPrincipal retrieves a delegated principal by ID.
// Returns ErrNotFound if it doesn't exist.
func (s *SQLiteStore) GetDelegatedPrincipal(ctx context.Context, id string) (*DelegatedPrincipal, error) {
	query := `SELECT ` + principalColumns + ` FROM delegated_principals WHERE id = ?`
	return s.scanPrincipal(s.db.QueryRowContext(ctx, query, id))
}

// GetDelegatedPrincipalByEmail retrieves a delegated principal by email, ignoring case.
// Returns ErrNotFound if it doesn't exist.
func (s *SQLiteStore) GetDelegatedPrincipalByEmail(ctx context.Context, email string) (*DelegatedPrincipal, error) {
	query := `SELECT ` + principalColumns + ` FROM delegated_principals WHERE email_lower = ?`
	return s.scanPrincipal(s.db.QueryRowContext(ctx, query, normalizeEmail(email)))
}

// ListDelegatedPrincipals returns the team members of a parent account, or all
// principals when parentAccountID is empty.
func (s *SQLiteStore) ListDelegatedPrincipals(ctx context.Context, parentAccountID string) ([]*DelegatedPrincipal, error) {
	query := `SELECT ` + principalColumns + ` FROM delegated_principals`
	var args []any
	if parentAccountID != "" {
		query += ` WHERE parent_account_id = ?`
		args = append(args, parentAccountID)
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing delegated principals: %w", err)
	}
	defer rows.Close()

	principals := []*DelegatedPrincipal{}
	for rows.Next() {
		p, err := s.scanPrincipal(rows)
		if err != nil {
			return nil, err
		}
		principals = append(principals, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating delegated principals: %w", err)
	}

	return principals, nil
}

// UpdateDelegatedPrincipalStatus activates or deactivates a principal.
// Returns ErrNotFound if it doesn't exist.
func (s *SQLiteStore) UpdateDelegatedPrincipalStatus(ctx context.Context, id string, status PrincipalStatus) error {
	if status != PrincipalStatusActive && status != PrincipalStatusInactive {
		return fmt.Errorf("invalid principal status %q", status)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE delegated_principals SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("updating principal status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("updated delegated principal status", "id", id, "status", status)
	return nil
}

// DeleteDelegatedPrincipal removes a principal from the directory.
// Returns ErrNotFound if it doesn't exist.
func (s *SQLiteStore) DeleteDelegatedPrincipal(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM delegated_principals WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting delegated principal: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted delegated principal", "id", id)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) scanPrincipal(row rowScanner) (*DelegatedPrincipal, error) {
	var p DelegatedPrincipal
	var permsJSON, createdAt, updatedAt string
	var passwordHash sql.NullString

	err := row.Scan(
		&p.ID,
		&p.ParentAccountID,
		&p.DisplayName,
		&p.Email,
		&p.RoleName,
		&permsJSON,
		&p.Status,
		&passwordHash,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning delegated principal: %w", err)
	}

	if err := json.Unmarshal([]byte(permsJSON), &p.Permissions); err != nil {
		return nil, fmt.Errorf("decoding permissions for %s: %w", p.ID, err)
	}
	if p.Permissions == nil {
		p.Permissions = []string{}
	}
	p.PasswordHash = passwordHash.String

	if parsed, err := time.Parse(time.RFC3339, createdAt); err != nil {
		s.logger.Warn("failed to parse principal created_at", "id", p.ID, "error", err)
	} else {
		p.CreatedAt = parsed
	}
	if parsed, err := time.Parse(time.RFC3339, updatedAt); err != nil {
		s.logger.Warn("failed to parse principal updated_at", "id", p.ID, "error", err)
	} else {
		p.UpdatedAt = parsed
	}

	return &p, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
