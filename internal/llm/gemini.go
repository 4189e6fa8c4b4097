package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiGenerator は Google Gemini API を使う Generator 実装。
type GeminiGenerator struct {
	client *genai.Client
}

// NewGeminiGenerator はAPIキーからGeminiクライアントを生成する。
// baseURLが空でない場合はAPIエンドポイントを差し替える（テスト・プロキシ用）。
func NewGeminiGenerator(ctx context.Context, apiKey, baseURL string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiGenerator{client: client}, nil
}

// Generate はモデルにプロンプトを送り、応答テキストを返す。
func (g *GeminiGenerator) Generate(ctx context.Context, model Model, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, model.Name, genai.Text(prompt), buildConfig(model.Params))
	if err != nil {
		return "", fmt.Errorf("gemini %s: generate content failed: %w", model.Name, err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("gemini %s: %w", model.Name, ErrEmptyResponse)
	}
	return text, nil
}

// buildConfig は Params を genai の生成設定に変換する。
func buildConfig(p Params) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature:     p.Temperature,
		TopP:            p.TopP,
		TopK:            p.TopK,
		MaxOutputTokens: p.MaxOutputTokens,
	}

	if p.DisableSafetyFilters {
		for _, category := range []genai.HarmCategory{
			genai.HarmCategoryHarassment,
			genai.HarmCategoryHateSpeech,
			genai.HarmCategorySexuallyExplicit,
			genai.HarmCategoryDangerousContent,
		} {
			cfg.SafetySettings = append(cfg.SafetySettings, &genai.SafetySetting{
				Category:  category,
				Threshold: genai.HarmBlockThresholdBlockNone,
			})
		}
	}

	return cfg
}
