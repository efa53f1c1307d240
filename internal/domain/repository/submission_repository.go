package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"codeclash/internal/common"
	"codeclash/internal/domain/model"

	"github.com/jackc/pgx/v5/pgconn"
)

type SubmissionRepository interface {
	Create(ctx context.Context, sub *model.Submission) error
	FindByID(ctx context.Context, id string) (*model.Submission, error)
	// FinalizeVerdict applies upd only while the submission is still Judging and
	// reports whether it did.
	FinalizeVerdict(ctx context.Context, id string, upd model.VerdictUpdate) (bool, error)
	ListByContest(ctx context.Context, contestID string) ([]model.Submission, error)
	ListByVerdict(ctx context.Context, verdict model.Verdict) ([]model.Submission, error)
	ListWithoutContest(ctx context.Context) ([]model.Submission, error)
	// SetContest attaches a contest to a submission that has none.
	SetContest(ctx context.Context, submissionID, contestID string) (bool, error)
}

type pgSubmissionRepository struct {
	db *sql.DB
}

func NewPgSubmissionRepository(db *sql.DB) SubmissionRepository {
	return &pgSubmissionRepository{db: db}
}

const submissionColumns = `id, user_id, question_id, contest_id, code, language, verdict,
	execution_time_ms, judge_token, judge_status, submitted_at, updated_at`

func scanSubmission(row rowScanner) (*model.Submission, error) {
	s := &model.Submission{}
	var contestID, judgeToken sql.NullString
	var execMs sql.NullInt64
	var judgeStatus []byte
	err := row.Scan(
		&s.ID, &s.UserID, &s.QuestionID, &contestID, &s.Code, &s.Language, &s.Verdict,
		&execMs, &judgeToken, &judgeStatus, &s.SubmittedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if contestID.Valid {
		s.ContestID = &contestID.String
	}
	if judgeToken.Valid {
		s.JudgeToken = &judgeToken.String
	}
	if execMs.Valid {
		d := time.Duration(execMs.Int64) * time.Millisecond
		s.ExecutionTime = &d
	}
	if len(judgeStatus) > 0 {
		s.JudgeStatus = judgeStatus
	}
	return s, nil
}

func (r *pgSubmissionRepository) list(ctx context.Context, op, where string, args ...any) ([]model.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions ` + where + ` ORDER BY submitted_at, id`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.%s: %w", op, err)
	}
	defer rows.Close()

	var subs []model.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("pgSubmissionRepository.%s scan: %w", op, err)
		}
		subs = append(subs, *s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.%s rows.Err: %w", op, err)
	}
	return subs, nil
}

func (r *pgSubmissionRepository) Create(ctx context.Context, sub *model.Submission) error {
	query := `INSERT INTO submissions (id, user_id, question_id, contest_id, code, language, verdict)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)
	          RETURNING submitted_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		sub.ID, sub.UserID, sub.QuestionID, sub.ContestID, sub.Code, sub.Language, sub.Verdict,
	).Scan(&sub.SubmittedAt, &sub.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return fmt.Errorf("submission %s already exists: %w", sub.ID, common.ErrConflict)
			case "23503":
				return fmt.Errorf("submission references a missing user, question or contest: %w", common.ErrNotFound)
			}
		}
		return fmt.Errorf("pgSubmissionRepository.Create: %w", err)
	}
	return nil
}

func (r *pgSubmissionRepository) FindByID(ctx context.Context, id string) (*model.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = $1`
	s, err := scanSubmission(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgSubmissionRepository.FindByID: %w", err)
	}
	return s, nil
}

func (r *pgSubmissionRepository) FinalizeVerdict(ctx context.Context, id string, upd model.VerdictUpdate) (bool, error) {
	var execMs any
	if upd.ExecutionTime != nil {
		execMs = upd.ExecutionTime.Milliseconds()
	}
	var judgeStatus any
	if len(upd.JudgeStatus) > 0 {
		judgeStatus = string(upd.JudgeStatus)
	}
	query := `UPDATE submissions
	          SET verdict = $2, execution_time_ms = $3, judge_token = $4, judge_status = $5, updated_at = now()
	          WHERE id = $1 AND verdict = $6`
	res, err := r.db.ExecContext(ctx, query, id, upd.Verdict, execMs, upd.JudgeToken, judgeStatus, model.VerdictJudging)
	if err != nil {
		return false, fmt.Errorf("pgSubmissionRepository.FinalizeVerdict: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("pgSubmissionRepository.FinalizeVerdict rows: %w", err)
	}
	return n == 1, nil
}

func (r *pgSubmissionRepository) ListByContest(ctx context.Context, contestID string) ([]model.Submission, error) {
	return r.list(ctx, "ListByContest", `WHERE contest_id = $1`, contestID)
}

func (r *pgSubmissionRepository) ListByVerdict(ctx context.Context, verdict model.Verdict) ([]model.Submission, error) {
	return r.list(ctx, "ListByVerdict", `WHERE verdict = $1`, verdict)
}

func (r *pgSubmissionRepository) ListWithoutContest(ctx context.Context) ([]model.Submission, error) {
	return r.list(ctx, "ListWithoutContest", `WHERE contest_id IS NULL`)
}

func (r *pgSubmissionRepository) SetContest(ctx context.Context, submissionID, contestID string) (bool, error) {
	query := `UPDATE submissions SET contest_id = $2, updated_at = now()
	          WHERE id = $1 AND contest_id IS NULL`
	res, err := r.db.ExecContext(ctx, query, submissionID, contestID)
	if err != nil {
		return false, fmt.Errorf("pgSubmissionRepository.SetContest: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("pgSubmissionRepository.SetContest rows: %w", err)
	}
	return n == 1, nil
}
