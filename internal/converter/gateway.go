// Package converter はスケジュール本文をAIXMフラグメントに変換するゲートウェイを提供する。
//
// 経路の選択とフォールバックを担う:
//
//	リモート変換サービス（設定時のみ） → 主モデル → 予備モデル
//
// 各段階は前段が失敗した場合にのみ1回だけ順に試行され、並行実行はしない。
package converter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/aixmconv/internal/aixm"
	"github.com/hitoshi/aixmconv/internal/backend"
	"github.com/hitoshi/aixmconv/internal/llm"
	"github.com/hitoshi/aixmconv/internal/logger"
	"github.com/hitoshi/aixmconv/internal/metrics"
	"github.com/hitoshi/aixmconv/internal/model"
	"github.com/hitoshi/aixmconv/internal/normalize"
	"github.com/hitoshi/aixmconv/internal/prompt"
)

// 呼び出し元の期限が設定されている場合に、各段階へ割り当てる残り時間の割合。
// 前段が期限まで応答しなくても後段に時間が残る。予備モデルは残り全てを使う。
const (
	backendBudgetShare = 0.4
	primaryBudgetShare = 0.6
)

// RemoteConverter はリモート変換サービスのインターフェース。
// backend.Client が実装する。
type RemoteConverter interface {
	Convert(ctx context.Context, text string) (*backend.Result, error)
	Host() string
}

// Config はゲートウェイが使うモデル設定。
type Config struct {
	Primary   llm.Model
	Secondary llm.Model
}

// Gateway は変換ゲートウェイ。リクエスト間で可変状態を共有しない。
type Gateway struct {
	generator llm.Generator
	remote    RemoteConverter
	cfg       Config
	logger    *slog.Logger
	metrics   metrics.MetricsCollector
}

// NewGateway はGatewayを生成する。
// remoteがnilの場合はモデルを直接呼び出す。
func NewGateway(
	generator llm.Generator,
	remote RemoteConverter,
	cfg Config,
	logger *slog.Logger,
	mc metrics.MetricsCollector,
) *Gateway {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Gateway{
		generator: generator,
		remote:    remote,
		cfg:       cfg,
		logger:    logger,
		metrics:   mc,
	}
}

// Convert はスケジュール本文をAIXMフラグメントに変換する。
//
// 空白のみの入力は ErrInvalidInput を即座に返し、どの経路にも送信しない。
// 利用者に見える失敗は ErrConversionFailed と ErrMalformedResponse の2種類のみで、
// 途中の失敗はログに記録してフォールバックで吸収する。
func (g *Gateway) Convert(ctx context.Context, text string) (*model.ConversionResult, error) {
	start := time.Now()

	text = strings.TrimSpace(text)
	if text == "" {
		g.metrics.RecordConversion("invalid_input", time.Since(start))
		return nil, ErrInvalidInput
	}

	result, err := g.convert(ctx, text)
	if err != nil {
		outcome := "failed"
		if errors.Is(err, ErrMalformedResponse) {
			outcome = "malformed_response"
		}
		g.metrics.RecordConversion(outcome, time.Since(start))
		g.logger.Error("conversion failed",
			logger.RequestAttr(ctx),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	g.metrics.RecordConversion("success", time.Since(start))
	g.metrics.RecordIntervals(len(result.Intervals))
	g.logger.Info("conversion completed",
		logger.RequestAttr(ctx),
		slog.String("source", string(result.Source)),
		slog.String("model", result.Model),
		slog.Int("intervals", len(result.Intervals)),
		slog.Duration("duration", time.Since(start)),
	)
	return result, nil
}

func (g *Gateway) convert(ctx context.Context, text string) (*model.ConversionResult, error) {
	if g.remote != nil {
		stageCtx, cancel := withBudget(ctx, backendBudgetShare)
		result, err := g.viaBackend(stageCtx, text)
		cancel()
		if err == nil {
			return result, nil
		}
		if errors.Is(err, ErrMalformedResponse) {
			return nil, err
		}
		g.logger.Warn("remote backend failed, falling back to primary model",
			logger.RequestAttr(ctx),
			slog.String("stage", string(StageBackend)),
			slog.String("backend", g.remote.Host()),
			slog.String("model", g.cfg.Primary.Name),
			slog.String("error", err.Error()),
		)
		g.metrics.RecordFallback(string(StageBackend), string(StagePrimary))
	}

	p := prompt.Build(text)

	stageCtx, cancel := withBudget(ctx, primaryBudgetShare)
	result, err := g.viaModel(stageCtx, StagePrimary, g.cfg.Primary, p)
	cancel()
	if err == nil {
		return result, nil
	}
	g.logger.Warn("primary model failed, falling back to secondary model",
		logger.RequestAttr(ctx),
		slog.String("stage", string(StagePrimary)),
		slog.String("model", g.cfg.Secondary.Name),
		slog.String("error", err.Error()),
	)
	g.metrics.RecordFallback(string(StagePrimary), string(StageSecondary))

	result, err = g.viaModel(ctx, StageSecondary, g.cfg.Secondary, p)
	if err != nil {
		return nil, newError(ErrConversionFailed, StageSecondary, err)
	}
	result.Note = fmt.Sprintf("Generated using fallback model (%s)", g.cfg.Secondary.Name)
	return result, nil
}

// withBudget はctxの残り時間のshare分を期限とする子コンテキストを返す。
// ctxに期限がない場合は期限を追加しない。
func withBudget(ctx context.Context, share float64) (context.Context, context.CancelFunc) {
	deadline, ok := ctx.Deadline()
	if !ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(float64(time.Until(deadline))*share))
}

// viaBackend はリモート変換サービスで変換する。
func (g *Gateway) viaBackend(ctx context.Context, text string) (*model.ConversionResult, error) {
	res, err := g.remote.Convert(ctx, text)
	if err != nil {
		if errors.Is(err, backend.ErrMalformedResponse) {
			g.metrics.RecordStageAttempt(string(StageBackend), "malformed")
			return nil, newError(ErrMalformedResponse, StageBackend, err)
		}
		g.metrics.RecordStageAttempt(string(StageBackend), "failure")
		return nil, newError(ErrTransportFailure, StageBackend, err)
	}

	xml, intervals, err := g.sanitize(ctx, res.AixmXML)
	if err != nil {
		g.metrics.RecordStageAttempt(string(StageBackend), "unusable")
		return nil, newError(ErrTransportFailure, StageBackend, err)
	}

	g.metrics.RecordStageAttempt(string(StageBackend), "success")
	return &model.ConversionResult{
		XML:       xml,
		Intervals: intervals,
		Source:    model.SourceBackend,
		Note:      res.Note,
	}, nil
}

// viaModel は指定モデルを1回だけ呼び出して変換する。
func (g *Gateway) viaModel(ctx context.Context, stage Stage, m llm.Model, p string) (*model.ConversionResult, error) {
	raw, err := g.generator.Generate(ctx, m, p)
	if err != nil {
		g.metrics.RecordStageAttempt(string(stage), "failure")
		return nil, newError(ErrModelFailure, stage, err)
	}

	xml, intervals, err := g.sanitize(ctx, raw)
	if err != nil {
		g.metrics.RecordStageAttempt(string(stage), "unusable")
		return nil, newError(ErrModelFailure, stage, err)
	}

	g.metrics.RecordStageAttempt(string(stage), "success")
	source := model.SourcePrimary
	if stage == StageSecondary {
		source = model.SourceSecondary
	}
	return &model.ConversionResult{
		XML:       xml,
		Intervals: intervals,
		Source:    source,
		Model:     m.Name,
	}, nil
}

// sanitize は応答を正規化し、timeInterval レコードに読み戻す。
// 不変条件違反は警告として記録するだけで失敗にはしない。
func (g *Gateway) sanitize(ctx context.Context, raw string) (string, []aixm.TimeInterval, error) {
	xml, err := normalize.Normalize(raw)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrUnusableOutput, err)
	}

	intervals, err := aixm.ParseFragment(xml)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrUnusableOutput, err)
	}

	if verr := aixm.ValidateAll(intervals); verr != nil {
		g.metrics.RecordInvariantViolation()
		g.logger.Warn("converted schedule violates timesheet invariants",
			logger.RequestAttr(ctx),
			slog.String("violations", verr.Error()),
		)
	}

	return xml, intervals, nil
}
