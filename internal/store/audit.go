// ABOUTME: Session audit log entity and store methods
// ABOUTME: Records login, logout, refresh and revocation events per principal

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents an auditable session lifecycle action.
type AuditAction string

const (
	AuditLogin   AuditAction = "login"
	AuditLogout  AuditAction = "logout"
	AuditRefresh AuditAction = "refresh"
	AuditRevoked AuditAction = "revoked"
	AuditExpired AuditAction = "expired"
	AuditRepair  AuditAction = "repair"
)

// auditTimeFormat is fixed-width so timestamps sort lexically.
const auditTimeFormat = "2006-01-02T15:04:05.000000000Z"

// ValidAuditActions lists all valid audit actions.
var ValidAuditActions = []AuditAction{
	AuditLogin,
	AuditLogout,
	AuditRefresh,
	AuditRevoked,
	AuditExpired,
	AuditRepair,
}

// AuditEntry represents a single session audit log entry.
type AuditEntry struct {
	ID          string         // UUID v4
	PrincipalID string         // subject of the session
	Kind        string         // "primary" | "delegated"
	Action      AuditAction    // what happened
	SessionID   string         // session correlation ID, may be empty
	Timestamp   time.Time      // when it happened
	Detail      map[string]any // additional context
}

// AuditFilter specifies filtering options for listing audit entries.
type AuditFilter struct {
	Since       *time.Time   // entries after this time
	PrincipalID *string      // filter by principal
	Action      *AuditAction // filter by action type
	Limit       int          // max results (default 100, max 1000)
}

// AuditLogger appends session audit entries.
type AuditLogger interface {
	AppendAuditLog(ctx context.Context, e *AuditEntry) error
}

var _ AuditLogger = (*SQLiteStore)(nil)

// AppendAuditLog appends a new entry to the audit log.
// Generates ID and Timestamp if not set.
func (s *SQLiteStore) AppendAuditLog(ctx context.Context, e *AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	var detailJSON *string
	if e.Detail != nil {
		data, err := json.Marshal(e.Detail)
		if err != nil {
			return fmt.Errorf("marshaling audit detail: %w", err)
		}
		str := string(data)
		detailJSON = &str
	}

	query := `
		INSERT INTO session_audit (audit_id, principal_id, kind, action, session_id, ts, detail_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		e.ID,
		e.PrincipalID,
		e.Kind,
		e.Action,
		nullString(e.SessionID),
		e.Timestamp.UTC().Format(auditTimeFormat),
		detailJSON,
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}

	s.logger.Debug("appended audit log",
		"id", e.ID,
		"principal", e.PrincipalID,
		"action", e.Action,
	)
	return nil
}

// normalizeAuditLimit applies default (100) and cap (1000) to audit limit.
func normalizeAuditLimit(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}

const auditLogQuery = `
	SELECT audit_id, principal_id, kind, action, session_id, ts, detail_json
	FROM session_audit
	WHERE (? IS NULL OR ts >= ?)
	  AND (? IS NULL OR principal_id = ?)
	  AND (? IS NULL OR action = ?)
	ORDER BY ts DESC
	LIMIT ?
`

// ListAuditLog returns audit entries matching the filter criteria.
// Results are returned newest first.
func (s *SQLiteStore) ListAuditLog(ctx context.Context, f AuditFilter) ([]AuditEntry, error) {
	var sinceStr, actionStr *string
	if f.Since != nil {
		v := f.Since.UTC().Format(auditTimeFormat)
		sinceStr = &v
	}
	if f.Action != nil {
		v := string(*f.Action)
		actionStr = &v
	}

	rows, err := s.db.QueryContext(ctx, auditLogQuery,
		sinceStr, sinceStr,
		f.PrincipalID, f.PrincipalID,
		actionStr, actionStr,
		normalizeAuditLimit(f.Limit),
	)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := []AuditEntry{}
	for rows.Next() {
		e, err := scanAuditEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}

	return entries, nil
}

// scanAuditEntry scans a row into an AuditEntry.
func scanAuditEntry(scanner rowScanner) (AuditEntry, error) {
	var e AuditEntry
	var actionStr, tsStr string
	var sessionID, detailJSON *string

	if err := scanner.Scan(
		&e.ID,
		&e.PrincipalID,
		&e.Kind,
		&actionStr,
		&sessionID,
		&tsStr,
		&detailJSON,
	); err != nil {
		return e, fmt.Errorf("scanning audit entry: %w", err)
	}

	e.Action = AuditAction(actionStr)
	if sessionID != nil {
		e.SessionID = *sessionID
	}

	var err error
	e.Timestamp, err = time.Parse(auditTimeFormat, tsStr)
	if err != nil {
		return e, fmt.Errorf("parsing timestamp: %w", err)
	}

	if detailJSON != nil {
		if err := json.Unmarshal([]byte(*detailJSON), &e.Detail); err != nil {
			return e, fmt.Errorf("unmarshaling detail: %w", err)
		}
	}
	return e, nil
}
