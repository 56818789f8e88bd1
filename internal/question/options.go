package question

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hitoshi/pairquiz/internal/model"
)

// optionInput はリクエストの選択肢1件。型が正しいかを判定するため各フィールドをポインタで受ける。
type optionInput struct {
	Text      *string `json:"text"`
	IsCorrect *bool   `json:"isCorrect"`
}

// IsMissing は選択肢フィールドが未指定（空またはnull）かを返す。
func IsMissing(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// ParseOptions はリクエストの選択肢をmodel.Optionのスライスに変換する。
// 配列であること、要素数が2〜4であること、各要素が空でないtextとbooleanのisCorrectを
// 持つことをこの順に検証する。textは前後の空白のみ除いて保持する。
// hasMarkupがnilでなければ、HTMLタグを含むtextを拒否する。
// 正解が1つであることは検証しない。
func ParseOptions(raw json.RawMessage, hasMarkup func(string) bool) ([]model.Option, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil || elems == nil {
		return nil, model.NewInvalidArgumentError("選択肢は配列で指定してください。")
	}
	if !model.ValidOptionCount(len(elems)) {
		return nil, model.NewInvalidArgumentError(
			fmt.Sprintf("選択肢は%dつから%dつの間で指定してください。", model.MinOptions, model.MaxOptions))
	}

	options := make([]model.Option, 0, len(elems))
	for i, elem := range elems {
		var in optionInput
		if err := json.Unmarshal(elem, &in); err != nil {
			return nil, model.NewInvalidArgumentError(
				fmt.Sprintf("%d番目の選択肢の形式が不正です。", i+1))
		}
		if in.Text == nil || in.IsCorrect == nil {
			return nil, model.NewInvalidArgumentError(
				fmt.Sprintf("%d番目の選択肢にはtextとisCorrectが必要です。", i+1))
		}
		text := strings.TrimSpace(*in.Text)
		if !model.ValidOptionText(text) {
			return nil, model.NewInvalidArgumentError(
				fmt.Sprintf("%d番目の選択肢のテキストが空です。", i+1))
		}
		if hasMarkup != nil && hasMarkup(text) {
			return nil, model.NewInvalidArgumentError(
				fmt.Sprintf("%d番目の選択肢にHTMLタグは使用できません。", i+1))
		}
		options = append(options, model.Option{Text: text, IsCorrect: *in.IsCorrect})
	}

	return options, nil
}
