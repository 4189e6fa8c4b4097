package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/aixmconv/internal/metrics"
	"github.com/hitoshi/aixmconv/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// 変換
	Converter      ConverterInterface
	ConvertTimeout time.Duration

	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	// TrustProxyHeaders が true の場合のみ X-Forwarded-For/X-Real-IP をクライアントIPに反映する。
	TrustProxyHeaders bool
	Logger            *slog.Logger

	// メトリクス
	Metrics        metrics.MetricsCollector
	MetricsHandler http.Handler
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → RealIP → RequestID → Logging → Metrics → SecurityHeaders → CORS
//
// RealIP はTrustProxyHeadersが有効な場合のみ適用する。無効時は接続元アドレスをそのまま使う。
// /api/convert にはクライアントIPごとのレート制限を追加する。
// /metrics はMetricsHandlerが設定されている場合のみ公開する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	mc := deps.Metrics
	if mc == nil {
		mc = metrics.Nop{}
	}

	r.Use(middleware.NewRecoveryMiddleware())
	if deps.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewMetricsMiddleware(mc))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	convertHandler := NewConvertHandler(deps.Converter, deps.ConvertTimeout, deps.Logger)

	r.Get("/health", Health)

	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.With(deps.RateLimiter.Middleware()).Post("/convert", convertHandler.Convert)
		} else {
			r.Post("/convert", convertHandler.Convert)
		}
	})

	return r
}
