package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pricewatch/internal/money"
	"pricewatch/internal/storage"
)

// Notification carries one triggered alert to a delivery channel.
type Notification struct {
	Product     storage.Product
	Rule        Rule
	Price       decimal.Decimal
	TriggeredAt time.Time
	Evidence    Evidence
}

// Notifier delivers alert notifications.
type Notifier interface {
	Notify(ctx context.Context, note Notification) error
}

// renderMessage builds the shared text body for all channels.
func renderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString("[pricewatch alert]\n")
	builder.WriteString(fmt.Sprintf("Product: %s\n", note.Product.Title))
	builder.WriteString(fmt.Sprintf("Store/SKU: %s/%s\n", note.Product.Store, note.Product.SKU))
	builder.WriteString(fmt.Sprintf("Rule: %s\n", note.Rule.Describe()))
	builder.WriteString(fmt.Sprintf("Price: %s\n", money.FormatValue(note.Price)))
	if note.Evidence.Target != nil {
		builder.WriteString(fmt.Sprintf("Target: %s\n", money.Format(note.Evidence.Target)))
	}
	if note.Evidence.DropPct != nil {
		builder.WriteString(fmt.Sprintf("Drop: %s vs previous %s\n",
			money.FormatPct(note.Evidence.DropPct), money.Format(note.Evidence.Previous)))
	}
	if note.Evidence.Mean != nil {
		builder.WriteString(fmt.Sprintf("Mean (%s): %s\n", note.Rule.Window, money.Format(note.Evidence.Mean)))
	}
	if note.Evidence.Bound != nil {
		builder.WriteString(fmt.Sprintf("Bound: %s\n", money.Format(note.Evidence.Bound)))
	}
	builder.WriteString(fmt.Sprintf("Triggered: %s UTC\n", note.TriggeredAt.UTC().Format(time.RFC3339)))
	if note.Product.URL != "" {
		builder.WriteString(fmt.Sprintf("URL: %s\n", note.Product.URL))
	}
	return builder.String()
}

// ConsoleNotifier prints alerts to a writer, typically stdout.
type ConsoleNotifier struct {
	out io.Writer
}

// NewConsoleNotifier constructs a console channel.
func NewConsoleNotifier(out io.Writer) *ConsoleNotifier {
	return &ConsoleNotifier{out: out}
}

// Notify writes the rendered alert block.
func (n *ConsoleNotifier) Notify(_ context.Context, note Notification) error {
	divider := strings.Repeat("=", 60)
	_, err := fmt.Fprintf(n.out, "\n%s\n%s%s\n", divider, renderMessage(note), divider)
	return err
}

// TelegramNotifier pushes alerts through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram channel.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify sends the rendered alert via the sendMessage API.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram unexpected status: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().
		Int64("product_id", note.Product.ID).
		Str("rule", note.Rule.Key()).
		Msg("alert delivered via telegram")
	return nil
}

// MultiNotifier fans one notification out to the configured channels.
type MultiNotifier struct {
	channels map[string]Notifier
	order    []string
}

// NewMultiNotifier builds a dispatcher over named channels; order is the
// dispatch order.
func NewMultiNotifier() *MultiNotifier {
	return &MultiNotifier{channels: make(map[string]Notifier)}
}

// Register adds a named channel.
func (m *MultiNotifier) Register(name string, n Notifier) {
	if _, exists := m.channels[name]; !exists {
		m.order = append(m.order, name)
	}
	m.channels[name] = n
}

// Len reports the number of registered channels.
func (m *MultiNotifier) Len() int {
	return len(m.channels)
}

// Notify dispatches to every channel, collecting failures.
func (m *MultiNotifier) Notify(ctx context.Context, note Notification) error {
	var errs []error
	for _, name := range m.order {
		if err := m.channels[name].Notify(ctx, note); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

var _ Notifier = (*ConsoleNotifier)(nil)
var _ Notifier = (*TelegramNotifier)(nil)
var _ Notifier = (*MultiNotifier)(nil)
