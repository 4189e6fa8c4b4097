// Package normalize はモデル応答を正規のAIXMフラグメントに整える決定的な後処理を提供する。
//
// 指示に反してモデルが付与したXML宣言・ルート要素・コードフェンスを除去し、
// コロンのない時刻（HHMM）を HH:MM に補正する。
// 出力は timeInterval 要素を改行で連結したものだけで、要素間の説明文も残さない。
// 正規化済みの文字列に再適用しても結果は変わらない（冪等）。
package normalize

import (
	"errors"
	"regexp"
	"strings"
)

// ErrNoIntervals は正規化後の文字列が空、または timeInterval 要素を含まない場合のエラー。
// ゲートウェイはこれをモデル失敗として扱う。
var ErrNoIntervals = errors.New("normalize: no timeInterval markup in model output")

var (
	xmlDeclPattern  = regexp.MustCompile(`<\?xml[^>]*\?>`)
	wrapperPattern  = regexp.MustCompile(`</?(?:aixm:)?PropertiesWithSchedule(?:\s[^>]*)?>`)
	codeFence       = regexp.MustCompile("```[A-Za-z]*")
	startTimeDigits = regexp.MustCompile(`<(aixm:)?startTime>\s*(\d{2})(\d{2})\s*</(aixm:)?startTime>`)
	endTimeDigits   = regexp.MustCompile(`<(aixm:)?endTime>\s*(\d{2})(\d{2})\s*</(aixm:)?endTime>`)
	intervalOpen    = regexp.MustCompile(`<(?:aixm:)?timeInterval[\s>]`)
	intervalClose   = regexp.MustCompile(`</(?:aixm:)?timeInterval\s*>`)
)

// Normalize はモデルの生テキストを正規化し、timeInterval 要素の並びだけを返す。
// 結果に timeInterval 要素が残らない場合は ErrNoIntervals を返す。
func Normalize(raw string) (string, error) {
	out := xmlDeclPattern.ReplaceAllString(raw, "")
	out = wrapperPattern.ReplaceAllString(out, "")
	out = codeFence.ReplaceAllString(out, "")

	out = startTimeDigits.ReplaceAllString(out, "<${1}startTime>$2:$3</${4}startTime>")
	out = endTimeDigits.ReplaceAllString(out, "<${1}endTime>$2:$3</${4}endTime>")

	out = extractIntervals(out)
	out = strings.TrimSpace(out)

	if out == "" || !HasIntervals(out) {
		return "", ErrNoIntervals
	}
	return out, nil
}

// HasIntervals は文字列に timeInterval 要素の開始タグが含まれるかを返す。
func HasIntervals(s string) bool {
	return intervalOpen.MatchString(s)
}

// extractIntervals は timeInterval の開始タグから対応する終了タグまでの区間を順に取り出し、
// 改行で連結して返す。区間の外にある説明文や別要素は捨てる。
// 閉じた区間が1つもない場合は入力をそのまま返す。
func extractIntervals(s string) string {
	var spans []string
	pos := 0
	for pos < len(s) {
		open := intervalOpen.FindStringIndex(s[pos:])
		if open == nil {
			break
		}
		start := pos + open[0]
		end := intervalClose.FindStringIndex(s[start:])
		if end == nil {
			break
		}
		spans = append(spans, s[start:start+end[1]])
		pos = start + end[1]
	}

	if len(spans) == 0 {
		return s
	}
	return strings.Join(spans, "\n")
}
