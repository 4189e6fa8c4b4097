package model

import "github.com/hitoshi/aixmconv/internal/aixm"

// ScheduleRequest は変換対象のスケジュール本文（自由記述）。
type ScheduleRequest struct {
	Text string `json:"text"`
}

// Source は変換結果を生成した経路。
type Source string

const (
	SourceBackend   Source = "backend"
	SourcePrimary   Source = "primary"
	SourceSecondary Source = "secondary"
)

// ConversionResult は1リクエスト分の変換結果。保存もキャッシュもしない。
type ConversionResult struct {
	// XML は timeInterval 要素のみからなる正規化済みフラグメント。
	XML string
	// Intervals は XML を順序どおりに読み戻したレコード。
	Intervals []aixm.TimeInterval
	Source    Source
	// Model は応答したモデル名。リモート変換時は空。
	Model string
	Note  string
}
