package publishers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/samvad-hq/alpha-hunter/pkg/httpclient"
)

// telegramPublisher delivers the rendered alert text through the Bot API.
type telegramPublisher struct {
	id             string
	endpoint       string
	chatID         string
	parseMode      string
	disablePreview bool
	client         httpclient.Client
	log            Logger
}

type telegramMessage struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func newTelegramPublisher(_ context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	if cfg.Telegram == nil {
		return nil, fmt.Errorf("publisher %q missing telegram configuration", cfg.ID)
	}
	c := cfg.Telegram
	if c.Token == "" || c.ChatID == "" {
		return nil, fmt.Errorf("publisher %q requires telegram token and chat_id", cfg.ID)
	}

	base := c.BaseURL
	if base == "" {
		base = telegramDefaultBaseURL
	}
	timeout := c.TimeoutSeconds
	if timeout <= 0 {
		timeout = telegramDefaultTimeoutSeconds
	}

	return &telegramPublisher{
		id:             cfg.ID,
		endpoint:       fmt.Sprintf("%s/bot%s/sendMessage", base, c.Token),
		chatID:         c.ChatID,
		parseMode:      c.ParseMode,
		disablePreview: !c.EnablePreview,
		client:         httpclient.NewRestyClient(time.Duration(timeout) * time.Second),
		log:            ensureLogger(log),
	}, nil
}

func (t *telegramPublisher) ID() string   { return t.id }
func (t *telegramPublisher) Type() string { return TypeTelegram }

func (t *telegramPublisher) Publish(ctx context.Context, evt Event) error {
	if evt.Text == "" {
		return fmt.Errorf("telegram publisher[%s]: event %s has no text", t.id, evt.ID)
	}

	resp, err := t.client.Do(ctx, httpclient.Request{
		Method:  http.MethodPost,
		URL:     t.endpoint,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body: telegramMessage{
			ChatID:                t.chatID,
			Text:                  evt.Text,
			ParseMode:             t.parseMode,
			DisableWebPagePreview: t.disablePreview,
		},
	})
	if err != nil {
		return fmt.Errorf("telegram request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("telegram response status %d: %s", resp.StatusCode(), readBodySnippet(resp.Body()))
	}

	var out telegramResponse
	if err := json.Unmarshal(resp.Body(), &out); err == nil && !out.OK {
		return fmt.Errorf("telegram rejected message: %s", out.Description)
	}

	t.log.DebugObj("telegram publisher delivered event", "publisher_telegram_delivery", map[string]any{
		"publisher_id":   t.id,
		"event_id":       evt.ID,
		"opportunity_id": evt.OpportunityID,
	})
	return nil
}
