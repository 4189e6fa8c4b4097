package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/aixmconv/internal/backend"
	"github.com/hitoshi/aixmconv/internal/config"
	"github.com/hitoshi/aixmconv/internal/converter"
	"github.com/hitoshi/aixmconv/internal/handler"
	"github.com/hitoshi/aixmconv/internal/llm"
	"github.com/hitoshi/aixmconv/internal/logger"
	"github.com/hitoshi/aixmconv/internal/metrics"
	"github.com/hitoshi/aixmconv/internal/middleware"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再設定する
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	return run(w, os.Stderr, os.Stdin, args)
}

// run はRunの本体。convertサブコマンドでは変換結果をoutに書き、
// ログは結果と混ざらないようerrOutに出力する。
func run(out, errOut io.Writer, in io.Reader, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	logOut := out
	if cmd == CommandConvert {
		logOut = errOut
	}

	cfg, err := Init(logOut)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("primary_model", cfg.PrimaryModel),
		slog.String("secondary_model", cfg.SecondaryModel),
		slog.Bool("backend_enabled", cfg.BackendURL != ""),
	)

	switch cmd {
	case CommandConvert:
		return runConvert(cfg, args[1:], in, out)
	default:
		return runServe(cfg)
	}
}

// newGateway は設定から変換ゲートウェイを組み立てる。
// BACKEND_URLが未設定の場合はモデルを直接呼び出す構成になる。
func newGateway(ctx context.Context, cfg *config.Config, mc metrics.MetricsCollector) (*converter.Gateway, error) {
	generator, err := llm.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, "")
	if err != nil {
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}

	var remote converter.RemoteConverter
	if cfg.BackendURL != "" {
		client, err := backend.NewClient(cfg.BackendURL, cfg.BackendTimeout, slog.Default())
		if err != nil {
			return nil, fmt.Errorf("failed to create backend client: %w", err)
		}
		remote = client
	}

	return converter.NewGateway(generator, remote, converter.Config{
		Primary: llm.Model{
			Name:   cfg.PrimaryModel,
			Params: llm.PrimaryParams(cfg.ModelTemperature, cfg.ModelMaxOutputTokens),
		},
		Secondary: llm.Model{
			Name:   cfg.SecondaryModel,
			Params: llm.SecondaryParams(cfg.ModelTemperature, cfg.ModelMaxOutputTokens),
		},
	}, slog.Default(), mc), nil
}

// runServe はAPIサーバーモードで起動する。
// 全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. メトリクスの初期化
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	mc := metrics.NewCollector(reg)

	// 2. 変換ゲートウェイの初期化
	gw, err := newGateway(context.Background(), cfg, mc)
	if err != nil {
		return err
	}

	// 3. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitConvert))
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Converter:         gw,
		ConvertTimeout:    cfg.ConvertTimeout,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		TrustProxyHeaders: cfg.TrustProxyHeaders,
		Logger:            slog.Default(),
		Metrics:           mc,
		MetricsHandler:    metrics.Handler(reg),
	})

	// 4. HTTPサーバーの起動
	// 変換は上限CONVERT_TIMEOUTまでかかるため、書き込みタイムアウトはそれより長くする
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.ConvertTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	case <-stop:
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConvertTimeout+5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runConvert はスケジュール本文を1件変換し、フラグメントをoutに書き出す。
// 引数があれば空白で連結して本文とし、なければinから全体を読み込む。
func runConvert(cfg *config.Config, args []string, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConvertTimeout)
	defer cancel()

	gw, err := newGateway(ctx, cfg, nil)
	if err != nil {
		return err
	}
	return convertText(ctx, gw, args, in, out)
}

// convertText は入力を読み取り、変換結果と注記をoutに書き出す。
func convertText(ctx context.Context, conv handler.ConverterInterface, args []string, in io.Reader, out io.Writer) error {
	text := strings.Join(args, " ")
	if text == "" {
		b, err := io.ReadAll(in)
		if err != nil {
			return fmt.Errorf("failed to read schedule text: %w", err)
		}
		text = string(b)
	}

	result, err := conv.Convert(ctx, text)
	if err != nil {
		return fmt.Errorf("conversion failed: %w", err)
	}

	if _, err := fmt.Fprintln(out, result.XML); err != nil {
		return err
	}
	if result.Note != "" {
		slog.Info(result.Note, slog.String("source", string(result.Source)))
	}
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
