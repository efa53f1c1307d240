package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"codeclash/internal/common"
	"codeclash/internal/domain/model"
)

// QuestionRepository is read-only: questions are authored elsewhere.
type QuestionRepository interface {
	FindByID(ctx context.Context, id string) (*model.Question, error)
	// FindByIDs skips ids that do not exist. Order of the result is unspecified.
	FindByIDs(ctx context.Context, ids []string) ([]model.Question, error)
	Count(ctx context.Context) (int, error)
	// SampleIDs draws up to n distinct question ids uniformly at random.
	SampleIDs(ctx context.Context, n int) ([]string, error)
}

type pgQuestionRepository struct {
	db *sql.DB
}

func NewPgQuestionRepository(db *sql.DB) QuestionRepository {
	return &pgQuestionRepository{db: db}
}

func scanQuestion(row rowScanner) (*model.Question, error) {
	q := &model.Question{}
	var testCases []byte
	if err := row.Scan(&q.ID, &q.Title, &q.Description, &q.Difficulty, &testCases); err != nil {
		return nil, err
	}
	if len(testCases) > 0 {
		if err := json.Unmarshal(testCases, &q.TestCases); err != nil {
			return nil, fmt.Errorf("decode test cases for question %s: %w", q.ID, err)
		}
	}
	return q, nil
}

func (r *pgQuestionRepository) FindByID(ctx context.Context, id string) (*model.Question, error) {
	query := `SELECT id, title, description, difficulty, test_cases FROM questions WHERE id = $1`
	q, err := scanQuestion(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgQuestionRepository.FindByID: %w", err)
	}
	return q, nil
}

func (r *pgQuestionRepository) FindByIDs(ctx context.Context, ids []string) ([]model.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT id, title, description, difficulty, test_cases FROM questions WHERE id = ANY($1)`
	rows, err := r.db.QueryContext(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("pgQuestionRepository.FindByIDs: %w", err)
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("pgQuestionRepository.FindByIDs scan: %w", err)
		}
		questions = append(questions, *q)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgQuestionRepository.FindByIDs rows.Err: %w", err)
	}
	return questions, nil
}

func (r *pgQuestionRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM questions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("pgQuestionRepository.Count: %w", err)
	}
	return n, nil
}

func (r *pgQuestionRepository) SampleIDs(ctx context.Context, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM questions ORDER BY random() LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("pgQuestionRepository.SampleIDs: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0, n)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("pgQuestionRepository.SampleIDs scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgQuestionRepository.SampleIDs rows.Err: %w", err)
	}
	return ids, nil
}
