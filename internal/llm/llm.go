// Package llm は言語モデルへのテキスト生成呼び出しを抽象化する。
// 変換ゲートウェイはプロバイダーを意識せず Generator を通じてモデルを呼び出す。
package llm

import (
	"context"
	"errors"
)

// ErrEmptyResponse はモデルが空の応答を返した場合のエラー。
var ErrEmptyResponse = errors.New("llm: empty response from model")

// Params は生成パラメータ。ゼロ値のフィールドはプロバイダーのデフォルトに任せる。
type Params struct {
	Temperature     *float32
	TopP            *float32
	TopK            *float32
	MaxOutputTokens int32
	// DisableSafetyFilters は技術文書向けに安全フィルタを無効化する。
	DisableSafetyFilters bool
}

// Model は名前付きモデルとその生成パラメータの組。
type Model struct {
	Name   string
	Params Params
}

// Generator はプロンプトからテキストを生成する外部能力。
// 呼び出しのエラー・タイムアウト・空応答はすべてエラーとして返す。
type Generator interface {
	Generate(ctx context.Context, model Model, prompt string) (string, error)
}

// Float32 はパラメータ指定用のポインタを返す。
func Float32(v float32) *float32 {
	return &v
}

// PrimaryParams は主モデル用の低ばらつきな生成パラメータを返す。
func PrimaryParams(temperature float32, maxOutputTokens int32) Params {
	return Params{
		Temperature:          Float32(temperature),
		TopP:                 Float32(0.95),
		TopK:                 Float32(40),
		MaxOutputTokens:      maxOutputTokens,
		DisableSafetyFilters: true,
	}
}

// SecondaryParams は予備モデル用の縮小したパラメータを返す（温度と出力長のみ）。
func SecondaryParams(temperature float32, maxOutputTokens int32) Params {
	return Params{
		Temperature:     Float32(temperature),
		MaxOutputTokens: maxOutputTokens,
	}
}
