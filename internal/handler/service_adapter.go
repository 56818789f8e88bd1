package handler

import (
	"context"

	"github.com/hitoshi/pairquiz/internal/model"
	"github.com/hitoshi/pairquiz/internal/question"
	"github.com/hitoshi/pairquiz/internal/user"
)

// answerSubmittedMessage は回答送信成功時のメッセージ。
const answerSubmittedMessage = "Answer submitted successfully."

// UserServiceAdapter は user.Directory を UserServiceInterface に適合させるアダプタ。
type UserServiceAdapter struct {
	dir *user.Directory
}

// NewUserServiceAdapter はUserServiceAdapterを生成する。
func NewUserServiceAdapter(dir *user.Directory) *UserServiceAdapter {
	return &UserServiceAdapter{dir: dir}
}

// ListUsers は全ユーザーをhandlerレスポンス型で返す。
func (a *UserServiceAdapter) ListUsers(ctx context.Context) ([]userResponse, error) {
	users, err := a.dir.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]userResponse, len(users))
	for i, u := range users {
		results[i] = toUserResponse(u)
	}
	return results, nil
}

// GetByUsername はユーザー名で取得したユーザーをhandlerレスポンス型で返す。
func (a *UserServiceAdapter) GetByUsername(ctx context.Context, username string) (*userResponse, error) {
	u, err := a.dir.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	resp := toUserResponse(u)
	return &resp, nil
}

// GetByID はIDで取得したユーザーをhandlerレスポンス型で返す。
func (a *UserServiceAdapter) GetByID(ctx context.Context, userID string) (*userResponse, error) {
	u, err := a.dir.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	resp := toUserResponse(u)
	return &resp, nil
}

// QuestionServiceAdapter は question.Service を QuestionServiceInterface に適合させるアダプタ。
type QuestionServiceAdapter struct {
	svc *question.Service
}

// NewQuestionServiceAdapter はQuestionServiceAdapterを生成する。
func NewQuestionServiceAdapter(svc *question.Service) *QuestionServiceAdapter {
	return &QuestionServiceAdapter{svc: svc}
}

// CreateQuestion はリクエストをサービスの入力に変換して質問を作成する。
func (a *QuestionServiceAdapter) CreateQuestion(ctx context.Context, req createQuestionRequest) (*questionResponse, error) {
	q, err := a.svc.CreateQuestion(ctx, question.CreateInput{
		QuestionText:      req.QuestionText,
		Options:           req.Options,
		CreatedByUserID:   req.CreatedByUserID,
		IntendedForUserID: req.IntendedForUserID,
	})
	if err != nil {
		return nil, err
	}
	resp := toQuestionResponse(q)
	return &resp, nil
}

// ListUnanswered は未回答の質問一覧をhandlerレスポンス型で返す。
func (a *QuestionServiceAdapter) ListUnanswered(ctx context.Context, userID string) ([]questionResponse, error) {
	questions, err := a.svc.ListUnanswered(ctx, userID)
	if err != nil {
		return nil, err
	}

	results := make([]questionResponse, len(questions))
	for i, q := range questions {
		results[i] = toQuestionResponse(q)
	}
	return results, nil
}

// SubmitAnswer は回答結果をhandlerレスポンス型で返す。
func (a *QuestionServiceAdapter) SubmitAnswer(ctx context.Context, questionID, userID, answerText string) (*answerResponse, error) {
	result, err := a.svc.SubmitAnswer(ctx, questionID, userID, answerText)
	if err != nil {
		return nil, err
	}
	return &answerResponse{
		Message:           answerSubmittedMessage,
		IsCorrect:         result.IsCorrect,
		CorrectAnswerText: result.CorrectAnswerText,
	}, nil
}

// GetScore はスコアをhandlerレスポンス型で返す。
func (a *QuestionServiceAdapter) GetScore(ctx context.Context, userID string) (*scoreResponse, error) {
	score, err := a.svc.GetScore(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &scoreResponse{
		ScorePercentage: score.Percentage,
		TotalAnswered:   score.TotalAnswered,
		TotalCorrect:    score.TotalCorrect,
		AboutWhom:       score.AboutWhom,
	}, nil
}

// toUserResponse はmodel.UserからAPIレスポンスに変換する。
func toUserResponse(u *model.User) userResponse {
	return userResponse{ID: u.ID, Username: u.Username}
}

// toQuestionResponse はmodel.QuestionからAPIレスポンスに変換する。
func toQuestionResponse(q *model.Question) questionResponse {
	options := make([]optionResponse, len(q.Options))
	for i, opt := range q.Options {
		options[i] = optionResponse{Text: opt.Text, IsCorrect: opt.IsCorrect}
	}

	resp := questionResponse{
		ID:           q.ID,
		QuestionText: q.QuestionText,
		Options:      options,
		CreatedBy:    userResponse{ID: q.CreatedBy, Username: q.CreatedByUsername},
		IntendedFor:  userResponse{ID: q.IntendedFor, Username: q.IntendedForUsername},
		CreatedAt:    q.CreatedAt,
		UpdatedAt:    q.UpdatedAt,
	}
	if q.Answer != nil {
		correct := q.Answer.Correct
		submitted := q.Answer.SubmittedText
		resp.AnsweredCorrectly = &correct
		resp.SubmittedAnswer = &submitted
	}
	return resp
}
