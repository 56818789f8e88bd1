package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hitoshi/pairquiz/internal/model"
)

// questionSelectColumns は出題者・宛先のユーザー名をJOINした質問のSELECT句。
const questionSelectColumns = `
	SELECT q.id, q.question_text, q.options, q.created_by, q.intended_for,
	       q.answered_correctly, q.submitted_answer, q.created_at, q.updated_at,
	       cu.username, iu.username
	FROM questions q
	JOIN users cu ON cu.id = q.created_by
	JOIN users iu ON iu.id = q.intended_for`

// PostgresQuestionRepo はPostgreSQLを使用した質問リポジトリ。
type PostgresQuestionRepo struct {
	db        *sql.DB
	validator *QuestionValidator
}

// NewPostgresQuestionRepo はPostgresQuestionRepoを生成する。
func NewPostgresQuestionRepo(db *sql.DB) *PostgresQuestionRepo {
	return &PostgresQuestionRepo{
		db:        db,
		validator: NewQuestionValidator(),
	}
}

// Create は質問を作成する。
// 保存前にサービス層と同一の不変条件を再検証し、違反があれば書き込まない。
func (r *PostgresQuestionRepo) Create(ctx context.Context, q *model.Question) error {
	if err := r.validator.Validate(q); err != nil {
		return err
	}

	options, err := json.Marshal(q.Options)
	if err != nil {
		return fmt.Errorf("failed to encode options: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO questions (id, question_text, options, created_by, intended_for, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		q.ID, q.QuestionText, options, q.CreatedBy, q.IntendedFor, q.CreatedAt, q.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert question: %w", err)
	}

	return nil
}

// FindByID は指定IDの質問を取得する。見つからない場合はnilを返す。
func (r *PostgresQuestionRepo) FindByID(ctx context.Context, id string) (*model.Question, error) {
	row := r.db.QueryRowContext(ctx, questionSelectColumns+` WHERE q.id = $1`, id)

	q, err := scanQuestion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find question by ID: %w", err)
	}

	return q, nil
}

// ListUnansweredFor は指定ユーザー宛ての未回答の質問を新しい順で返す。
func (r *PostgresQuestionRepo) ListUnansweredFor(ctx context.Context, userID string) ([]*model.Question, error) {
	rows, err := r.db.QueryContext(ctx,
		questionSelectColumns+`
		WHERE q.intended_for = $1 AND q.answered_correctly IS NULL
		ORDER BY q.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list unanswered questions: %w", err)
	}
	defer rows.Close()

	questions := []*model.Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate questions: %w", err)
	}

	return questions, nil
}

// RecordAnswer は未回答の質問にのみ回答を書き込む条件付きUPDATE。
// 同時に複数の回答が届いても、観測される状態遷移は最大1回になる。
func (r *PostgresQuestionRepo) RecordAnswer(ctx context.Context, questionID string, answer model.Answer) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE questions SET
		    submitted_answer = $2, answered_correctly = $3, updated_at = $4
		 WHERE id = $1 AND answered_correctly IS NULL`,
		questionID, answer.SubmittedText, answer.Correct, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to record answer: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}

// TallyAnswered は createdBy から intendedFor への回答済み質問の件数と正解数を返す。
func (r *PostgresQuestionRepo) TallyAnswered(ctx context.Context, createdBy, intendedFor string) (model.ScoreTally, error) {
	var tally model.ScoreTally
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE answered_correctly)
		 FROM questions
		 WHERE created_by = $1 AND intended_for = $2 AND answered_correctly IS NOT NULL`,
		createdBy, intendedFor,
	).Scan(&tally.Answered, &tally.Correct)
	if err != nil {
		return model.ScoreTally{}, fmt.Errorf("failed to tally answered questions: %w", err)
	}

	return tally, nil
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuestion(s rowScanner) (*model.Question, error) {
	q := &model.Question{}
	var (
		options           []byte
		answeredCorrectly sql.NullBool
		submittedAnswer   sql.NullString
	)

	err := s.Scan(
		&q.ID, &q.QuestionText, &options, &q.CreatedBy, &q.IntendedFor,
		&answeredCorrectly, &submittedAnswer, &q.CreatedAt, &q.UpdatedAt,
		&q.CreatedByUsername, &q.IntendedForUsername,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(options, &q.Options); err != nil {
		return nil, fmt.Errorf("failed to decode options: %w", err)
	}

	if answeredCorrectly.Valid {
		q.Answer = &model.Answer{
			Correct:       answeredCorrectly.Bool,
			SubmittedText: submittedAnswer.String,
		}
	}

	return q, nil
}

// compile-time interface check
var _ QuestionRepository = (*PostgresQuestionRepo)(nil)
