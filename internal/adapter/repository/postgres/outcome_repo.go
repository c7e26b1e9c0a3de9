package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/simaogato/settlement-engine/internal/domain"
)

// outcomeRepository implements domain.OutcomeRepository
type outcomeRepository struct {
	db *DB
}

// NewOutcomeRepository creates a new outcome repository
func NewOutcomeRepository(db *DB) domain.OutcomeRepository {
	return &outcomeRepository{db: db}
}

// Save stores an outcome with all its transfers in a database transaction
func (r *outcomeRepository) Save(ctx context.Context, outcome domain.Outcome) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	outcomeID := uuid.New()

	insertOutcomeQuery := `
		INSERT INTO settlement_outcomes (id, request_id, state, cancelled, reported_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err = dbTx.ExecContext(ctx, insertOutcomeQuery,
		outcomeID,
		outcome.RequestID,
		string(outcome.State),
		outcome.Cancelled,
		outcome.ReportedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert outcome: %w", err)
	}

	insertTransferQuery := `
		INSERT INTO settlement_outcome_transfers (outcome_id, position, from_account, to_account, amount, held, completed)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	for i, t := range outcome.Transfers {
		_, err = dbTx.ExecContext(ctx, insertTransferQuery,
			outcomeID,
			i,
			t.From.String(),
			t.To.String(),
			t.Amount,
			t.Held,
			t.Completed,
		)
		if err != nil {
			return fmt.Errorf("failed to insert outcome transfer: %w", err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ListByRequest retrieves every outcome reported for a request, oldest first
func (r *outcomeRepository) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]domain.Outcome, error) {
	query := `
		SELECT o.id, o.state, o.cancelled, o.reported_at,
		       t.from_account, t.to_account, t.amount, t.held, t.completed
		FROM settlement_outcomes o
		LEFT JOIN settlement_outcome_transfers t ON t.outcome_id = o.id
		WHERE o.request_id = $1
		ORDER BY o.reported_at, o.id, t.position
	`

	rows, err := r.db.QueryContext(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []domain.Outcome
	index := make(map[uuid.UUID]int)

	for rows.Next() {
		var (
			outcomeID uuid.UUID
			outcome   domain.Outcome
			state     string
			from, to  *string
			amount    *string
			held      *string
			completed *bool
		)

		err := rows.Scan(
			&outcomeID,
			&state,
			&outcome.Cancelled,
			&outcome.ReportedAt,
			&from,
			&to,
			&amount,
			&held,
			&completed,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}

		i, seen := index[outcomeID]
		if !seen {
			outcome.RequestID = requestID
			outcome.State = domain.RequestState(state)
			outcomes = append(outcomes, outcome)
			i = len(outcomes) - 1
			index[outcomeID] = i
		}

		// An outcome without transfers yields a single row of NULLs
		if from == nil {
			continue
		}

		transfer, err := scanTransfer(*from, *to, *amount, *held, *completed)
		if err != nil {
			return nil, err
		}
		outcomes[i].Transfers = append(outcomes[i].Transfers, transfer)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outcomes: %w", err)
	}

	return outcomes, nil
}

func scanTransfer(from, to, amount, held string, completed bool) (domain.TransferOutcome, error) {
	fromAccount, err := domain.NewBankAccount(from)
	if err != nil {
		return domain.TransferOutcome{}, fmt.Errorf("stored outcome has invalid sender: %w", err)
	}
	toAccount, err := domain.NewBankAccount(to)
	if err != nil {
		return domain.TransferOutcome{}, fmt.Errorf("stored outcome has invalid recipient: %w", err)
	}

	return domain.TransferOutcome{
		From:      fromAccount,
		To:        toAccount,
		Amount:    amount,
		Held:      held,
		Completed: completed,
	}, nil
}
