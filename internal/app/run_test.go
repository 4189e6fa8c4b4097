package app

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/hitoshi/aixmconv/internal/converter"
	"github.com/hitoshi/aixmconv/internal/model"
)

// stubConverter は受け取った本文を記録し、固定の結果を返すテスト用コンバーター。
type stubConverter struct {
	gotText string
	result  *model.ConversionResult
	err     error
}

func (s *stubConverter) Convert(ctx context.Context, text string) (*model.ConversionResult, error) {
	s.gotText = text
	return s.result, s.err
}

func TestRun_WithMissingEnv_ReturnsError(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	var out, errOut bytes.Buffer
	err := run(&out, &errOut, strings.NewReader(""), []string{"serve"})
	if err == nil {
		t.Fatal("Run with missing env should return error")
	}
}

func TestRun_ConvertWithMissingEnv_LogsToErrOut(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	var out, errOut bytes.Buffer
	err := run(&out, &errOut, strings.NewReader("H24"), []string{"convert"})
	if err == nil {
		t.Fatal("Run(convert) with missing env should return error")
	}
	if out.Len() != 0 {
		t.Errorf("nothing should be written to stdout on failure, got %q", out.String())
	}
}

func TestConvertText_JoinsArgs(t *testing.T) {
	conv := &stubConverter{result: &model.ConversionResult{XML: "<aixm:timeInterval/>"}}

	var out bytes.Buffer
	err := convertText(context.Background(), conv, []string{"MON-FRI:", "0800-1800"}, strings.NewReader("ignored"), &out)
	if err != nil {
		t.Fatalf("convertText returned error: %v", err)
	}
	if conv.gotText != "MON-FRI: 0800-1800" {
		t.Errorf("text = %q, want %q", conv.gotText, "MON-FRI: 0800-1800")
	}
	if out.String() != "<aixm:timeInterval/>\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestConvertText_ReadsStdinWithoutArgs(t *testing.T) {
	conv := &stubConverter{result: &model.ConversionResult{XML: "<aixm:timeInterval/>"}}

	var out bytes.Buffer
	err := convertText(context.Background(), conv, nil, strings.NewReader("Daily: 0900-1700 except holidays\n"), &out)
	if err != nil {
		t.Fatalf("convertText returned error: %v", err)
	}
	if conv.gotText != "Daily: 0900-1700 except holidays\n" {
		t.Errorf("text = %q", conv.gotText)
	}
}

func TestConvertText_PropagatesError(t *testing.T) {
	conv := &stubConverter{err: converter.ErrInvalidInput}

	var out bytes.Buffer
	err := convertText(context.Background(), conv, nil, strings.NewReader("   "), &out)
	if !errors.Is(err, converter.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
	if out.Len() != 0 {
		t.Errorf("output should be empty, got %q", out.String())
	}
}

func TestRunHealthcheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"status":"healthy"}`))
	}))
	defer server.Close()

	u, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("failed to parse server URL: %v", err)
	}

	if err := runHealthcheck(u.Port()); err != nil {
		t.Errorf("runHealthcheck returned error: %v", err)
	}
}

func TestRunHealthcheck_Unhealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	u, _ := url.Parse(server.URL)
	if err := runHealthcheck(u.Port()); err == nil {
		t.Error("runHealthcheck should fail on non-200 status")
	}
}
