package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"codeclash/internal/common"
	"codeclash/internal/domain/model"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

type ContestRepository interface {
	FindByID(ctx context.Context, id string) (*model.Contest, error)
	// ListContainingQuestion returns contests whose question list includes questionID.
	ListContainingQuestion(ctx context.Context, questionID string) ([]model.Contest, error)
	// AddParticipant is idempotent.
	AddParticipant(ctx context.Context, contestID, userID string) error
	// AssignQuestionsIfEmpty writes questionIDs only when the contest has none yet.
	// It reports whether this call performed the write.
	AssignQuestionsIfEmpty(ctx context.Context, contestID string, questionIDs []string) (bool, error)
	// ResetQuestions clears the question list. A positive numQuestions also replaces the quota.
	ResetQuestions(ctx context.Context, contestID string, numQuestions int) error
	SaveLeaderboardSnapshot(ctx context.Context, contestID string, entries []model.LeaderboardEntry, at time.Time) error
}

type pgContestRepository struct {
	db *sql.DB
}

func NewPgContestRepository(db *sql.DB) ContestRepository {
	return &pgContestRepository{db: db}
}

const contestColumns = `c.id, c.name, c.start_time, c.end_time, c.num_questions, c.question_ids,
	COALESCE((SELECT array_agg(p.user_id ORDER BY p.joined_at, p.user_id)
	          FROM contest_participants p WHERE p.contest_id = c.id), '{}'::text[]),
	c.created_by, c.leaderboard_snapshot, c.leaderboard_snapshot_updated_at, c.created_at, c.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanContest reads one contestColumns row. pgtype.Map caches scan plans and is not
// safe for concurrent use, so each scan gets its own.
func scanContest(row rowScanner) (*model.Contest, error) {
	m := pgtype.NewMap()
	c := &model.Contest{}
	var snapshot []byte
	var snapshotAt sql.NullTime
	err := row.Scan(
		&c.ID, &c.Name, &c.StartTime, &c.EndTime, &c.NumQuestions,
		m.SQLScanner(&c.Questions), m.SQLScanner(&c.Participants),
		&c.CreatedBy, &snapshot, &snapshotAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if snapshotAt.Valid {
		at := snapshotAt.Time
		c.LeaderboardSnapshotUpdatedAt = &at
		if len(snapshot) > 0 {
			if err := json.Unmarshal(snapshot, &c.LeaderboardSnapshot); err != nil {
				return nil, fmt.Errorf("decode leaderboard snapshot: %w", err)
			}
		}
	}
	return c, nil
}

func (r *pgContestRepository) FindByID(ctx context.Context, id string) (*model.Contest, error) {
	query := `SELECT ` + contestColumns + ` FROM contests c WHERE c.id = $1`
	c, err := scanContest(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgContestRepository.FindByID: %w", err)
	}
	return c, nil
}

func (r *pgContestRepository) ListContainingQuestion(ctx context.Context, questionID string) ([]model.Contest, error) {
	query := `SELECT ` + contestColumns + ` FROM contests c
	          WHERE $1 = ANY(c.question_ids) ORDER BY c.start_time`
	rows, err := r.db.QueryContext(ctx, query, questionID)
	if err != nil {
		return nil, fmt.Errorf("pgContestRepository.ListContainingQuestion: %w", err)
	}
	defer rows.Close()

	var contests []model.Contest
	for rows.Next() {
		c, err := scanContest(rows)
		if err != nil {
			return nil, fmt.Errorf("pgContestRepository.ListContainingQuestion scan: %w", err)
		}
		contests = append(contests, *c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgContestRepository.ListContainingQuestion rows.Err: %w", err)
	}
	return contests, nil
}

func (r *pgContestRepository) AddParticipant(ctx context.Context, contestID, userID string) error {
	query := `INSERT INTO contest_participants (contest_id, user_id) VALUES ($1, $2)
	          ON CONFLICT (contest_id, user_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, contestID, userID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" { // foreign key violation
			return fmt.Errorf("contest or user does not exist: %w", common.ErrNotFound)
		}
		return fmt.Errorf("pgContestRepository.AddParticipant: %w", err)
	}
	return nil
}

func (r *pgContestRepository) AssignQuestionsIfEmpty(ctx context.Context, contestID string, questionIDs []string) (bool, error) {
	query := `UPDATE contests SET question_ids = $1, updated_at = now()
	          WHERE id = $2 AND cardinality(question_ids) = 0`
	res, err := r.db.ExecContext(ctx, query, questionIDs, contestID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23514" { // contests_question_quota
			return false, fmt.Errorf("%d questions exceed the quota of contest %s: %w", len(questionIDs), contestID, common.ErrValidation)
		}
		return false, fmt.Errorf("pgContestRepository.AssignQuestionsIfEmpty: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("pgContestRepository.AssignQuestionsIfEmpty rows: %w", err)
	}
	return n == 1, nil
}

func (r *pgContestRepository) ResetQuestions(ctx context.Context, contestID string, numQuestions int) error {
	query := `UPDATE contests
	          SET question_ids = '{}',
	              num_questions = CASE WHEN $2 > 0 THEN $2 ELSE num_questions END,
	              updated_at = now()
	          WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, contestID, numQuestions)
	if err != nil {
		return fmt.Errorf("pgContestRepository.ResetQuestions: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgContestRepository) SaveLeaderboardSnapshot(ctx context.Context, contestID string, entries []model.LeaderboardEntry, at time.Time) error {
	if entries == nil {
		entries = []model.LeaderboardEntry{}
	}
	payload, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("pgContestRepository.SaveLeaderboardSnapshot marshal: %w", err)
	}
	query := `UPDATE contests SET leaderboard_snapshot = $2, leaderboard_snapshot_updated_at = $3
	          WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, contestID, string(payload), at)
	if err != nil {
		return fmt.Errorf("pgContestRepository.SaveLeaderboardSnapshot: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}
