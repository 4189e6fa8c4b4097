package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/aixmconv/internal/aixm"
	"github.com/hitoshi/aixmconv/internal/converter"
	"github.com/hitoshi/aixmconv/internal/model"
	"github.com/hitoshi/aixmconv/internal/normalize"
)

// --- モック定義 ---

// mockConverter はConverterInterfaceのモック実装。
type mockConverter struct {
	convertFn func(ctx context.Context, text string) (*model.ConversionResult, error)
	calls     int
}

func (m *mockConverter) Convert(ctx context.Context, text string) (*model.ConversionResult, error) {
	m.calls++
	if m.convertFn != nil {
		return m.convertFn(ctx, text)
	}
	return nil, nil
}

// --- テストヘルパー ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

func postConvert(h *ConvertHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/convert", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.Convert(w, req)
	return w
}

var sampleResult = &model.ConversionResult{
	XML: "<aixm:timeInterval>...</aixm:timeInterval>",
	Intervals: []aixm.TimeInterval{
		{Timesheet: aixm.Timesheet{Day: aixm.DayWorkDay}},
		{Timesheet: aixm.Timesheet{Day: aixm.DaySat}},
	},
	Source: model.SourcePrimary,
	Model:  "gemini-1.5-pro",
}

// --- Convert のテスト ---

func TestConvert_Success_ReturnsAixmXML(t *testing.T) {
	conv := &mockConverter{
		convertFn: func(ctx context.Context, text string) (*model.ConversionResult, error) {
			if text != "MON-FRI: 0800-1800, SAT: 0800-1200" {
				t.Errorf("text = %q", text)
			}
			return sampleResult, nil
		},
	}
	h := NewConvertHandler(conv, time.Minute, newTestLogger())

	w := postConvert(h, `{"text":"MON-FRI: 0800-1800, SAT: 0800-1200"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var raw map[string]any
	if err := json.NewDecoder(w.Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if raw["aixm_xml"] != sampleResult.XML {
		t.Errorf("aixm_xml = %v, want %q", raw["aixm_xml"], sampleResult.XML)
	}
	if raw["intervals"] != float64(2) {
		t.Errorf("intervals = %v, want 2", raw["intervals"])
	}
	if _, ok := raw["note"]; ok {
		t.Error("note should be omitted when empty")
	}
}

func TestConvert_FallbackNote_IsReturned(t *testing.T) {
	conv := &mockConverter{
		convertFn: func(ctx context.Context, text string) (*model.ConversionResult, error) {
			return &model.ConversionResult{
				XML:    sampleResult.XML,
				Source: model.SourceSecondary,
				Note:   "Generated using fallback model (gemini-2.0-flash-lite)",
			}, nil
		},
	}
	h := NewConvertHandler(conv, time.Minute, newTestLogger())

	w := postConvert(h, `{"text":"H24"}`)

	var body convertResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Note != "Generated using fallback model (gemini-2.0-flash-lite)" {
		t.Errorf("note = %q", body.Note)
	}
}

func TestConvert_InvalidJSON_Returns400(t *testing.T) {
	for _, body := range []string{"", "not json", `{"text":`, `["H24"]`} {
		conv := &mockConverter{}
		h := NewConvertHandler(conv, time.Minute, newTestLogger())

		w := postConvert(h, body)

		if w.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want %d", body, w.Code, http.StatusBadRequest)
		}
		if got := parseAPIErrorResponse(t, w)["code"]; got != model.ErrCodeInvalidRequest {
			t.Errorf("body %q: code = %q, want %q", body, got, model.ErrCodeInvalidRequest)
		}
		if conv.calls != 0 {
			t.Errorf("body %q: converter should not be called", body)
		}
	}
}

func TestConvert_BodyTooLarge_Returns413(t *testing.T) {
	conv := &mockConverter{}
	h := NewConvertHandler(conv, time.Minute, newTestLogger())

	w := postConvert(h, `{"text":"`+strings.Repeat("A", maxRequestBodySize)+`"}`)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want %d", w.Code, http.StatusRequestEntityTooLarge)
	}
	if got := parseAPIErrorResponse(t, w)["code"]; got != model.ErrCodeRequestTooLarge {
		t.Errorf("code = %q, want %q", got, model.ErrCodeRequestTooLarge)
	}
	if conv.calls != 0 {
		t.Error("converter should not be called")
	}
}

func TestConvert_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "空の入力",
			err:        converter.ErrInvalidInput,
			wantStatus: http.StatusBadRequest,
			wantCode:   model.ErrCodeInvalidInput,
		},
		{
			name: "不正なバックエンド応答",
			err: &converter.Error{
				Kind:  converter.ErrMalformedResponse,
				Stage: converter.StageBackend,
				Cause: errors.New("aixm_xml field is missing"),
			},
			wantStatus: http.StatusBadGateway,
			wantCode:   model.ErrCodeBackendMalformedResponse,
		},
		{
			name: "予備モデルも到達不能",
			err: &converter.Error{
				Kind:  converter.ErrConversionFailed,
				Stage: converter.StageSecondary,
				Cause: &converter.Error{Kind: converter.ErrModelFailure, Stage: converter.StageSecondary, Cause: errors.New("503 from https://generativelanguage.googleapis.com?key=SECRET")},
			},
			wantStatus: http.StatusBadGateway,
			wantCode:   model.ErrCodeUpstreamUnavailable,
		},
		{
			name: "予備モデルの出力が使用不能",
			err: &converter.Error{
				Kind:  converter.ErrConversionFailed,
				Stage: converter.StageSecondary,
				Cause: &converter.Error{
					Kind:  converter.ErrModelFailure,
					Stage: converter.StageSecondary,
					Cause: fmt.Errorf("%w: %w", converter.ErrUnusableOutput, normalize.ErrNoIntervals),
				},
			},
			wantStatus: http.StatusBadGateway,
			wantCode:   model.ErrCodeModelOutputInvalid,
		},
		{
			name: "期限切れ",
			err: &converter.Error{
				Kind:  converter.ErrConversionFailed,
				Stage: converter.StageSecondary,
				Cause: context.DeadlineExceeded,
			},
			wantStatus: http.StatusGatewayTimeout,
			wantCode:   model.ErrCodeRequestTimeout,
		},
		{
			name:       "想定外のエラー",
			err:        errors.New("something odd"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   model.ErrCodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv := &mockConverter{
				convertFn: func(ctx context.Context, text string) (*model.ConversionResult, error) {
					return nil, tt.err
				},
			}
			h := NewConvertHandler(conv, time.Minute, newTestLogger())

			w := postConvert(h, `{"text":"H24"}`)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			raw := w.Body.String()
			if strings.Contains(raw, "SECRET") || strings.Contains(raw, "googleapis") {
				t.Errorf("response should not leak upstream details: %s", raw)
			}

			var body map[string]string
			if err := json.Unmarshal([]byte(raw), &body); err != nil {
				t.Fatalf("failed to decode error response: %v", err)
			}
			if body["code"] != tt.wantCode {
				t.Errorf("code = %q, want %q", body["code"], tt.wantCode)
			}
			if body["detail"] == "" {
				t.Error("detail should not be empty")
			}
		})
	}
}

func TestConvert_AppliesTimeout(t *testing.T) {
	conv := &mockConverter{
		convertFn: func(ctx context.Context, text string) (*model.ConversionResult, error) {
			deadline, ok := ctx.Deadline()
			if !ok {
				t.Fatal("context should have a deadline")
			}
			if time.Until(deadline) > 50*time.Millisecond {
				t.Errorf("deadline too far: %v", time.Until(deadline))
			}
			<-ctx.Done()
			return nil, &converter.Error{Kind: converter.ErrConversionFailed, Stage: converter.StageSecondary, Cause: errors.New("canceled")}
		},
	}
	h := NewConvertHandler(conv, 20*time.Millisecond, newTestLogger())

	w := postConvert(h, `{"text":"H24"}`)

	if w.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want %d", w.Code, http.StatusGatewayTimeout)
	}
}

func TestConvert_EmptyTextIsPassedToConverter(t *testing.T) {
	var gotText string
	conv := &mockConverter{
		convertFn: func(ctx context.Context, text string) (*model.ConversionResult, error) {
			gotText = text
			return nil, converter.ErrInvalidInput
		},
	}
	h := NewConvertHandler(conv, time.Minute, newTestLogger())

	w := postConvert(h, `{"text":"   "}`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if gotText != "   " {
		t.Errorf("text = %q, want raw whitespace", gotText)
	}
}

func TestHealth_ReturnsHealthy(t *testing.T) {
	w := httptest.NewRecorder()
	Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var body map[string]string
	if err := json.NewDecoder(bytes.NewReader(w.Body.Bytes())).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status = %q, want healthy", body["status"])
	}
}
