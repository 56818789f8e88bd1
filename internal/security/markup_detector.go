// Package security はアプリケーションのセキュリティ機能を提供する。
//
// MarkupDetector はユーザーが入力した質問文と選択肢にHTMLタグが含まれているかを判定する。
// 入力そのものは書き換えない。保存される文字列は常に利用者が送ったものと一致する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// MarkupDetector はbluemondayのStrictPolicyでHTMLタグの有無を判定する。
// bluemondayのポリシーはスレッドセーフなので、1つのインスタンスを共有してよい。
type MarkupDetector struct {
	policy *bluemonday.Policy
}

// NewMarkupDetector はStrictPolicy（全タグ除去）を使うMarkupDetectorを生成する。
func NewMarkupDetector() *MarkupDetector {
	return &MarkupDetector{
		policy: bluemonday.StrictPolicy(),
	}
}

// ContainsMarkup はtextに閉じたHTMLタグが含まれる場合にtrueを返す。
//
// StrictPolicyは"<"の直後に英字が続くとタグの開始とみなし、以降を削除する。
// "x<y"のような比較式はタグとして扱わないよう、ポリシーが内容を変え、かつ">"を含む場合に限る。
func (d *MarkupDetector) ContainsMarkup(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" || !strings.Contains(text, "<") || !strings.Contains(text, ">") {
		return false
	}
	stripped := html.UnescapeString(d.policy.Sanitize(text))
	return stripped != text
}
