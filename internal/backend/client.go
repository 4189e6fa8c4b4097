// Package backend は別ホストで稼働する変換サービスへのHTTPクライアントを提供する。
// リクエスト・レスポンスの形は本サービスの POST /api/convert と同一。
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
)

// convertPath は変換エンドポイントのパス。
const convertPath = "/api/convert"

var (
	// ErrUnavailable は接続失敗・タイムアウト・非2xxステータスを表す。
	// 呼び出し側はモデル直接呼び出しにフォールバックできる。
	ErrUnavailable = errors.New("backend: conversion service unavailable")
	// ErrMalformedResponse は2xxだが aixm_xml を含まない応答を表す。設定・連携の誤りとして扱う。
	ErrMalformedResponse = errors.New("backend: malformed response")
)

// Result はリモート変換サービスの応答。
type Result struct {
	AixmXML string
	Note    string
}

type convertRequest struct {
	Text string `json:"text"`
}

type convertResponse struct {
	AixmXML *string `json:"aixm_xml"`
	Note    string  `json:"note,omitempty"`
}

// Client はリモート変換サービスのクライアント。
// フォールバックはゲートウェイの責務なので、ここでは再試行しない。
type Client struct {
	http   *resty.Client
	host   string
	logger *slog.Logger
}

// NewClient はベースURLとタイムアウトからClientを生成する。
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid backend URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("backend URL scheme must be http or https, got: %s", u.Scheme)
	}

	hc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("Cache-Control", "no-store")

	return &Client{
		http:   hc,
		host:   u.Scheme + "://" + u.Host,
		logger: logger,
	}, nil
}

// Host はログ出力用にスキームとホストのみを返す。
func (c *Client) Host() string {
	return c.host
}

// Convert はスケジュール本文をリモート変換サービスに送り、結果を返す。
func (c *Client) Convert(ctx context.Context, text string) (*Result, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(convertRequest{Text: text}).
		Post(convertPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, redact(err))
	}

	if !resp.IsSuccess() {
		c.logger.Warn("backend returned error status",
			slog.String("backend", c.host),
			slog.Int("http_status", resp.StatusCode()),
		)
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode())
	}

	var body convertResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("%w: response is not JSON", ErrMalformedResponse)
	}
	if body.AixmXML == nil || *body.AixmXML == "" {
		return nil, fmt.Errorf("%w: aixm_xml field is missing", ErrMalformedResponse)
	}

	return &Result{AixmXML: *body.AixmXML, Note: body.Note}, nil
}

// redact はURLを含むネットワークエラーから内部URLを取り除く。
func redact(err error) string {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Op + ": " + ue.Err.Error()
	}
	return err.Error()
}
