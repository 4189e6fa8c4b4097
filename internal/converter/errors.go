package converter

import (
	"errors"
	"fmt"
)

// 変換エラーの種別。errors.Is で判定する。
var (
	// ErrInvalidInput は空白のみのスケジュール本文。どの経路にも送信されない。
	ErrInvalidInput = errors.New("invalid input: schedule text is empty")
	// ErrTransportFailure はリモート変換サービスの到達不能または非2xx応答。
	ErrTransportFailure = errors.New("transport failure")
	// ErrModelFailure はモデル呼び出しの失敗（例外・タイムアウト・使用不能な出力）。
	ErrModelFailure = errors.New("model failure")
	// ErrUnusableOutput は正規化後に timeInterval を含まない、または解析できないモデル出力。
	ErrUnusableOutput = errors.New("unusable model output")
	// ErrConversionFailed は予備モデルも失敗した終端エラー。
	ErrConversionFailed = errors.New("conversion failed")
	// ErrMalformedResponse はリモート変換サービスが aixm_xml のない2xxを返した終端エラー。
	ErrMalformedResponse = errors.New("malformed backend response")
)

// Stage はフォールバックチェーン上の段階。
type Stage string

const (
	StageBackend   Stage = "backend"
	StagePrimary   Stage = "primary"
	StageSecondary Stage = "secondary"
)

// Error は種別・段階・原因を保持する変換エラー。
// errors.Is で種別と原因の両方に一致する。
type Error struct {
	Kind  error
	Stage Stage
	Cause error
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("%v: %v", e.Kind, e.Cause)
	}
	return fmt.Sprintf("%v (%s): %v", e.Kind, e.Stage, e.Cause)
}

// Unwrap は種別と原因を返す。
func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Cause}
}

func newError(kind error, stage Stage, cause error) *Error {
	return &Error{Kind: kind, Stage: stage, Cause: cause}
}
