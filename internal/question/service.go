// Package question は質問の作成・回答・スコア計算のドメインロジックを提供する。
package question

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/pairquiz/internal/metrics"
	"github.com/hitoshi/pairquiz/internal/model"
	"github.com/hitoshi/pairquiz/internal/repository"
)

// PartnerResolver はユーザーのパートナーを解決するインターフェース。
type PartnerResolver interface {
	PartnerOf(ctx context.Context, userID string) (*model.User, error)
}

// MarkupDetector はユーザー入力テキストにHTMLタグが含まれるかを判定するインターフェース。
type MarkupDetector interface {
	ContainsMarkup(text string) bool
}

// Recorder は質問と回答に関するメトリクスの記録インターフェース。
type Recorder interface {
	RecordQuestionCreated()
	RecordAnswerSubmitted(correct bool)
	RecordAnswerRejected(reason string)
}

// CreateInput はCreateQuestionの入力。
// Optionsはリクエストの値をそのまま受け取り、形式の検証はサービス層で行う。
type CreateInput struct {
	QuestionText      string
	Options           json.RawMessage
	CreatedByUserID   string
	IntendedForUserID string
}

// AnswerResult はSubmitAnswerの戻り値。
type AnswerResult struct {
	IsCorrect         bool
	CorrectAnswerText string
}

// Service は質問のサービス層。
type Service struct {
	questionRepo repository.QuestionRepository
	userRepo     repository.UserRepository
	partners     PartnerResolver
	markup       MarkupDetector
	recorder     Recorder
	now          func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// markupとrecorderはnilでもよい。
func NewService(
	questionRepo repository.QuestionRepository,
	userRepo repository.UserRepository,
	partners PartnerResolver,
	markup MarkupDetector,
	recorder Recorder,
) *Service {
	return &Service{
		questionRepo: questionRepo,
		userRepo:     userRepo,
		partners:     partners,
		markup:       markup,
		recorder:     recorder,
		now:          time.Now,
	}
}

// CreateQuestion は質問を検証して保存し、出題者と宛先のユーザー名付きで返す。
// 検証はすべて書き込み前に行い、最初に見つかった違反を返す。
func (s *Service) CreateQuestion(ctx context.Context, in CreateInput) (*model.Question, error) {
	if in.QuestionText == "" || IsMissing(in.Options) ||
		strings.TrimSpace(in.CreatedByUserID) == "" || strings.TrimSpace(in.IntendedForUserID) == "" {
		return nil, model.NewInvalidArgumentError("questionText、options、createdByUserId、intendedForUserIdは必須です。")
	}

	createdBy, ok := model.NormalizeID(in.CreatedByUserID)
	if !ok {
		return nil, model.NewInvalidArgumentError("出題者のユーザーIDの形式が不正です。")
	}
	intendedFor, ok := model.NormalizeID(in.IntendedForUserID)
	if !ok {
		return nil, model.NewInvalidArgumentError("回答者のユーザーIDの形式が不正です。")
	}
	if createdBy == intendedFor {
		return nil, model.NewInvalidArgumentError("自分自身に質問することはできません。")
	}

	options, err := ParseOptions(in.Options, s.hasMarkup)
	if err != nil {
		return nil, err
	}
	if model.CountCorrect(options) != 1 {
		return nil, model.NewInvalidArgumentError("正解の選択肢はちょうど1つ指定してください。")
	}

	text := strings.TrimSpace(in.QuestionText)
	if !model.ValidQuestionText(text) {
		return nil, model.NewInvalidArgumentError(
			fmt.Sprintf("質問文は%d文字以上で入力してください。", model.QuestionTextMinLength))
	}
	if s.hasMarkup(text) {
		return nil, model.NewInvalidArgumentError("質問文にHTMLタグは使用できません。")
	}

	creator, err := s.userRepo.FindByID(ctx, createdBy)
	if err != nil {
		return nil, fmt.Errorf("出題者の取得に失敗しました: %w", err)
	}
	if creator == nil {
		return nil, model.NewUserNotFoundError("出題者のユーザーが見つかりません。")
	}
	recipient, err := s.userRepo.FindByID(ctx, intendedFor)
	if err != nil {
		return nil, fmt.Errorf("回答者の取得に失敗しました: %w", err)
	}
	if recipient == nil {
		return nil, model.NewUserNotFoundError("回答者のユーザーが見つかりません。")
	}

	now := s.now().UTC()
	q := &model.Question{
		ID:           model.NewID(),
		QuestionText: text,
		Options:      options,
		CreatedBy:    creator.ID,
		IntendedFor:  recipient.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.questionRepo.Create(ctx, q); err != nil {
		return nil, err
	}

	q.CreatedByUsername = creator.Username
	q.IntendedForUsername = recipient.Username

	if s.recorder != nil {
		s.recorder.RecordQuestionCreated()
	}
	slog.Info("question created",
		slog.String("question_id", q.ID),
		slog.String("created_by", creator.Username),
		slog.String("intended_for", recipient.Username),
	)

	return q, nil
}

// ListUnanswered は指定ユーザー宛ての未回答の質問を新しい順で返す。
// 該当がない場合は空のスライスを返す。
func (s *Service) ListUnanswered(ctx context.Context, userID string) ([]*model.Question, error) {
	id, ok := model.NormalizeID(userID)
	if !ok {
		return nil, model.NewInvalidArgumentError("ユーザーIDの形式が不正です。")
	}

	questions, err := s.questionRepo.ListUnansweredFor(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("未回答の質問の取得に失敗しました: %w", err)
	}
	if questions == nil {
		questions = []*model.Question{}
	}
	return questions, nil
}

// SubmitAnswer は質問に回答し、正誤と正解のテキストを返す。
// 回答は宛先のユーザーのみ、1回だけ記録できる。
// 正誤は送信されたテキストと正解の選択肢のテキストの完全一致（大文字小文字を区別）で判定する。
func (s *Service) SubmitAnswer(ctx context.Context, questionID, userID, answerText string) (*AnswerResult, error) {
	result, err := s.submitAnswer(ctx, questionID, userID, answerText)
	if err != nil {
		s.recordRejection(err)
		return nil, err
	}
	if s.recorder != nil {
		s.recorder.RecordAnswerSubmitted(result.IsCorrect)
	}
	return result, nil
}

func (s *Service) submitAnswer(ctx context.Context, questionID, userID, answerText string) (*AnswerResult, error) {
	qid, ok := model.NormalizeID(questionID)
	if !ok {
		return nil, model.NewInvalidArgumentError("質問IDの形式が不正です。")
	}
	uid, ok := model.NormalizeID(userID)
	if !ok {
		return nil, model.NewInvalidArgumentError("ユーザーIDの形式が不正です。")
	}
	if strings.TrimSpace(answerText) == "" {
		return nil, model.NewInvalidArgumentError("回答を入力してください。")
	}

	q, err := s.questionRepo.FindByID(ctx, qid)
	if err != nil {
		return nil, fmt.Errorf("質問の取得に失敗しました: %w", err)
	}
	if q == nil {
		return nil, model.NewQuestionNotFoundError(qid)
	}
	if q.IntendedFor != uid {
		return nil, model.NewNotIntendedRecipientError()
	}
	if q.IsAnswered() {
		return nil, model.NewAlreadyAnsweredError()
	}

	correct, ok := q.CorrectOption()
	if !ok {
		slog.Error("正解の選択肢がない質問が保存されています",
			slog.String("question_id", q.ID),
			slog.Int("option_count", len(q.Options)),
		)
		return nil, model.NewDataCorruptedError()
	}

	isCorrect := answerText == correct.Text
	updated, err := s.questionRepo.RecordAnswer(ctx, q.ID, model.Answer{
		Correct:       isCorrect,
		SubmittedText: answerText,
	})
	if err != nil {
		return nil, fmt.Errorf("回答の保存に失敗しました: %w", err)
	}
	if !updated {
		// 読み取りから書き込みまでの間に別の回答が記録された
		return nil, model.NewAlreadyAnsweredError()
	}

	slog.Info("answer recorded",
		slog.String("question_id", q.ID),
		slog.Bool("is_correct", isCorrect),
	)

	return &AnswerResult{
		IsCorrect:         isCorrect,
		CorrectAnswerText: correct.Text,
	}, nil
}

// GetScore は指定ユーザーがパートナーについてどれだけ知っているかを返す。
// 対象はパートナーが出題し、指定ユーザーが回答済みの質問のみ。
func (s *Service) GetScore(ctx context.Context, userID string) (*model.Score, error) {
	id, ok := model.NormalizeID(userID)
	if !ok {
		return nil, model.NewInvalidArgumentError("ユーザーIDの形式が不正です。")
	}

	u, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if u == nil {
		return nil, model.NewUserNotFoundError("指定されたユーザーが見つかりません。")
	}

	partner, err := s.partners.PartnerOf(ctx, u.ID)
	if err != nil {
		return nil, err
	}

	tally, err := s.questionRepo.TallyAnswered(ctx, partner.ID, u.ID)
	if err != nil {
		return nil, fmt.Errorf("スコアの集計に失敗しました: %w", err)
	}

	score := model.NewScore(tally, partner.Username)
	return &score, nil
}

func (s *Service) hasMarkup(text string) bool {
	return s.markup != nil && s.markup.ContainsMarkup(text)
}

func (s *Service) recordRejection(err error) {
	if s.recorder == nil {
		return
	}

	var reason string
	switch model.KindOf(err) {
	case model.KindInvalidArgument:
		reason = metrics.RejectReasonInvalid
	case model.KindNotFound:
		reason = metrics.RejectReasonNotFound
	case model.KindForbidden:
		reason = metrics.RejectReasonNotRecipient
	case model.KindConflict:
		reason = metrics.RejectReasonAlreadyAnswered
	default:
		reason = metrics.RejectReasonError
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeDataCorrupted {
			reason = metrics.RejectReasonCorrupted
		}
	}
	s.recorder.RecordAnswerRejected(reason)
}
