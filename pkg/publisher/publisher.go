// Package publisher sends finished digest and event text to an outbound
// messaging provider (Telegram). It logs every request/response with
// zerolog, a different structured logger than the slog used elsewhere in
// the pipeline, matching the provider client's own HTTP boundary.
package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const defaultEndpoint = "https://api.telegram.org"

// Config configures a Telegram bot publisher.
type Config struct {
	BotToken string
	ChatID   string
	Endpoint string
	Timeout  time.Duration
}

// TelegramPublisher sends text to a single Telegram chat via the bot API's
// sendMessage method.
type TelegramPublisher struct {
	httpClient *http.Client
	cfg        Config
	logger     zerolog.Logger
}

// New builds a TelegramPublisher. Endpoint and Timeout default when unset.
func New(cfg Config, logger zerolog.Logger) *TelegramPublisher {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &TelegramPublisher{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		logger:     logger.With().Str("component", "publisher.telegram").Logger(),
	}
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

// Publish posts text to the configured chat. It satisfies pkg/digest's
// Publisher interface.
func (p *TelegramPublisher) Publish(ctx context.Context, text string) error {
	if p.cfg.BotToken == "" || p.cfg.ChatID == "" {
		return fmt.Errorf("telegram bot token and chat id must be configured to publish")
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", p.cfg.Endpoint, p.cfg.BotToken)
	body, err := json.Marshal(sendMessageRequest{ChatID: p.cfg.ChatID, Text: text, DisableWebPagePreview: true})
	if err != nil {
		return fmt.Errorf("marshal telegram request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Error().Err(err).Msg("telegram_publish_failed")
		return fmt.Errorf("send telegram message: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 400 {
		p.logger.Error().Int("status", resp.StatusCode).Bytes("body", respBody).Msg("telegram_publish_failed")
		return fmt.Errorf("telegram API returned HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	p.logger.Info().Int("status", resp.StatusCode).Msg("telegram_publish_ok")
	return nil
}
