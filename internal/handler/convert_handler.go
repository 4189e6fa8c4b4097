package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/aixmconv/internal/converter"
	"github.com/hitoshi/aixmconv/internal/logger"
	"github.com/hitoshi/aixmconv/internal/middleware"
	"github.com/hitoshi/aixmconv/internal/model"
)

// maxRequestBodySize は変換リクエストのボディ上限（バイト）。
const maxRequestBodySize = 64 << 10

// ConverterInterface は変換ハンドラーが必要とするゲートウェイのインターフェース。
type ConverterInterface interface {
	// Convert はスケジュール本文をAIXMフラグメントに変換する。
	Convert(ctx context.Context, text string) (*model.ConversionResult, error)
}

// ConvertHandler はスケジュール変換のHTTPハンドラー。
type ConvertHandler struct {
	converter ConverterInterface
	timeout   time.Duration
	logger    *slog.Logger
}

// NewConvertHandler はConvertHandlerを生成する。
// timeoutは1リクエストあたりの変換の上限時間で、0以下の場合は上限を設けない。
func NewConvertHandler(c ConverterInterface, timeout time.Duration, l *slog.Logger) *ConvertHandler {
	return &ConvertHandler{
		converter: c,
		timeout:   timeout,
		logger:    l,
	}
}

// convertResponse は変換成功時のAPIレスポンス。
type convertResponse struct {
	AixmXML   string `json:"aixm_xml"`
	Note      string `json:"note,omitempty"`
	Intervals int    `json:"intervals"`
}

// Convert はスケジュール本文の変換を処理する。
// POST /api/convert
func (h *ConvertHandler) Convert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req model.ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteErrorResponse(w, http.StatusRequestEntityTooLarge, model.NewRequestTooLargeError())
			return
		}
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	result, err := h.converter.Convert(ctx, req.Text)
	if err != nil {
		h.writeConversionError(ctx, w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(convertResponse{
		AixmXML:   result.XML,
		Note:      result.Note,
		Intervals: len(result.Intervals),
	})
}

// writeConversionError はゲートウェイのエラーを統一エラーフォーマットに変換して書き込む。
// 上流の生のエラーメッセージはレスポンスに含めない。
func (h *ConvertHandler) writeConversionError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, converter.ErrInvalidInput):
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError())
	case errors.Is(err, converter.ErrMalformedResponse):
		middleware.WriteErrorResponse(w, http.StatusBadGateway, model.NewBackendMalformedResponseError())
	case errors.Is(ctx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		middleware.WriteErrorResponse(w, http.StatusGatewayTimeout, model.NewRequestTimeoutError())
	case errors.Is(err, converter.ErrConversionFailed) && errors.Is(err, converter.ErrUnusableOutput):
		middleware.WriteErrorResponse(w, http.StatusBadGateway, model.NewModelOutputInvalidError())
	case errors.Is(err, converter.ErrConversionFailed):
		middleware.WriteErrorResponse(w, http.StatusBadGateway, model.NewUpstreamUnavailableError())
	default:
		h.logger.Error("unexpected conversion error",
			logger.RequestAttr(ctx),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
	}
}
