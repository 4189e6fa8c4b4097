// Package model はリクエスト・変換結果の値型とAPIエラーを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // 人が読めるエラーメッセージ（レスポンスの detail）
	Category string // カテゴリ: validation, upstream, model, integration, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidInput             = "INVALID_INPUT"
	ErrCodeInvalidRequest           = "INVALID_REQUEST"
	ErrCodeRequestTooLarge          = "REQUEST_TOO_LARGE"
	ErrCodeUpstreamUnavailable      = "UPSTREAM_UNAVAILABLE"
	ErrCodeModelOutputInvalid       = "MODEL_OUTPUT_INVALID"
	ErrCodeBackendMalformedResponse = "BACKEND_MALFORMED_RESPONSE"
	ErrCodeRequestTimeout           = "REQUEST_TIMEOUT"
	ErrCodeRateLimitExceeded        = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal                 = "INTERNAL_ERROR"
)

// NewInvalidInputError は空のスケジュール本文に対するエラーを生成する。
func NewInvalidInputError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidInput,
		Message:  "Schedule text must not be empty.",
		Category: "validation",
		Action:   "Enter the service hours to convert, e.g. \"MON-FRI: 0800-1800\".",
	}
}

// NewInvalidRequestError はリクエストボディが解析できない場合のエラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "Request body could not be parsed.",
		Category: "validation",
		Action:   "Send a JSON body of the form {\"text\": \"...\"}.",
	}
}

// NewRequestTooLargeError はリクエストボディが上限を超えた場合のエラーを生成する。
func NewRequestTooLargeError() *APIError {
	return &APIError{
		Code:     ErrCodeRequestTooLarge,
		Message:  "Request body is too large.",
		Category: "validation",
		Action:   "Shorten the schedule text and retry.",
	}
}

// NewUpstreamUnavailableError は全ての変換経路が利用できなかった場合のエラーを生成する。
func NewUpstreamUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamUnavailable,
		Message:  "Conversion failed: the language model service is unavailable.",
		Category: "upstream",
		Action:   "Please try again later.",
	}
}

// NewModelOutputInvalidError はモデルが有効なAIXMを出力できなかった場合のエラーを生成する。
func NewModelOutputInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeModelOutputInvalid,
		Message:  "Conversion failed: the model could not produce valid AIXM output.",
		Category: "model",
		Action:   "Rephrase the schedule using day ranges and HHMM times, then retry.",
	}
}

// NewBackendMalformedResponseError はリモート変換サービスの応答形式が不正な場合のエラーを生成する。
func NewBackendMalformedResponseError() *APIError {
	return &APIError{
		Code:     ErrCodeBackendMalformedResponse,
		Message:  "Conversion backend returned a response without aixm_xml.",
		Category: "integration",
		Action:   "Check the conversion backend deployment and configuration.",
	}
}

// NewRequestTimeoutError は変換が制限時間内に完了しなかった場合のエラーを生成する。
func NewRequestTimeoutError() *APIError {
	return &APIError{
		Code:     ErrCodeRequestTimeout,
		Message:  "Conversion did not complete in time.",
		Category: "upstream",
		Action:   "Please try again later.",
	}
}

// NewRateLimitExceededError はクライアントごとの変換レート制限を超えた場合のエラーを生成する。
func NewRateLimitExceededError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimitExceeded,
		Message:  "Too many conversion requests.",
		Category: "system",
		Action:   "Please wait and retry after the specified time.",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "An internal error occurred.",
		Category: "system",
		Action:   "Please try again later.",
	}
}
