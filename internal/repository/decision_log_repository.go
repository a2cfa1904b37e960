package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/creancio/be-rc-validation/internal/faults"
)

// DecisionLogRepository appends and reads immutable validation decision log
// entries.
type DecisionLogRepository struct {
	db *pgxpool.Pool
}

// NewDecisionLogRepository creates a new DecisionLogRepository.
func NewDecisionLogRepository(db *pgxpool.Pool) *DecisionLogRepository {
	return &DecisionLogRepository{db: db}
}

// Append inserts one decision entry. The table has a delete-prevention
// trigger so this is the only mutation operation exposed.
func (r *DecisionLogRepository) Append(ctx context.Context, entry *DecisionEntry) error {
	var metadataJSON []byte
	if entry.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(entry.Metadata)
		if err != nil {
			return faults.Wrap(err, faults.ClassUnknown, "failed to marshal decision metadata")
		}
	}

	query := `
		INSERT INTO validation_decision_log
		    (investigation_id, validation_record_id, case_id,
		     action, actor_id, actor_role, comment,
		     status_before, status_after,
		     metadata)
		VALUES ($1, $2, $3,
		        $4, $5, $6, $7,
		        $8, $9,
		        $10)
		RETURNING id, performed_at
	`

	return r.db.QueryRow(ctx, query,
		entry.InvestigationID,
		entry.ValidationRecordID,
		entry.CaseID,
		entry.Action,
		entry.ActorID,
		entry.ActorRole,
		entry.Comment,
		entry.StatusBefore,
		entry.StatusAfter,
		metadataJSON,
	).Scan(&entry.ID, &entry.PerformedAt)
}

// ListByInvestigation returns the full decision trail for an investigation
// ordered oldest-first.
func (r *DecisionLogRepository) ListByInvestigation(ctx context.Context, investigationID int64) ([]*DecisionEntry, error) {
	query := `
		SELECT id, investigation_id, validation_record_id, case_id,
		       action, actor_id, actor_role, comment,
		       status_before, status_after,
		       performed_at, metadata
		FROM validation_decision_log
		WHERE investigation_id = $1
		ORDER BY performed_at ASC
	`

	rows, err := r.db.Query(ctx, query, investigationID)
	if err != nil {
		return nil, faults.Wrap(err, faults.ClassTransient, "failed to read decision log")
	}
	defer rows.Close()

	return r.scanRows(rows)
}

// ListByActor returns all decisions performed by a user, newest first.
func (r *DecisionLogRepository) ListByActor(ctx context.Context, actorID int64, limit int) ([]*DecisionEntry, error) {
	query := `
		SELECT id, investigation_id, validation_record_id, case_id,
		       action, actor_id, actor_role, comment,
		       status_before, status_after,
		       performed_at, metadata
		FROM validation_decision_log
		WHERE actor_id = $1
		ORDER BY performed_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, actorID, limit)
	if err != nil {
		return nil, faults.Wrap(err, faults.ClassTransient, "failed to read decision log")
	}
	defer rows.Close()

	return r.scanRows(rows)
}

// ── scan helpers ──────────────────────────────────────────────────────────────

func (r *DecisionLogRepository) scanRows(rows pgx.Rows) ([]*DecisionEntry, error) {
	var entries []*DecisionEntry
	for rows.Next() {
		entry, err := r.scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

type decisionScanner interface {
	Scan(dest ...any) error
}

func (r *DecisionLogRepository) scanEntry(sc decisionScanner) (*DecisionEntry, error) {
	entry := &DecisionEntry{}
	var metadataJSON []byte

	err := sc.Scan(
		&entry.ID,
		&entry.InvestigationID,
		&entry.ValidationRecordID,
		&entry.CaseID,
		&entry.Action,
		&entry.ActorID,
		&entry.ActorRole,
		&entry.Comment,
		&entry.StatusBefore,
		&entry.StatusAfter,
		&entry.PerformedAt,
		&metadataJSON,
	)
	if err != nil {
		return nil, faults.Wrap(err, faults.ClassTransient, "failed to scan decision entry")
	}

	if metadataJSON != nil {
		if err := json.Unmarshal(metadataJSON, &entry.Metadata); err != nil {
			return nil, faults.Wrap(err, faults.ClassTransient, "failed to unmarshal decision metadata")
		}
	}

	return entry, nil
}
