package mockai

import (
	"context"
	"hash/fnv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/routelab/ai-gateway/models"
	"github.com/routelab/ai-gateway/services/providers"
)

const defaultLatency = 150 * time.Millisecond

// cannedResponses are served when no keyword rule matches. The pick is
// derived from the prompt so repeated requests stay deterministic.
var cannedResponses = []string{
	"Привет! Я тестовый AI ассистент. Как я могу помочь?",
	"Это тестовый ответ для демонстрации работы системы.",
	"Запрос успешно обработан. В реальной системе здесь был бы ответ от нейросети.",
	"Система работает корректно. Вы можете протестировать различные функции.",
	"Добро пожаловать в AI Gateway Framework! Все системы функционируют нормально.",
}

// Client is an in-process provider for development and tests. It answers
// from a small keyword table with an artificial delay and never fails.
type Client struct {
	name    string
	latency time.Duration
	logger  *zap.Logger
}

// Factory builds a Client from catalog configuration.
func Factory(cfg *models.ProviderConfig, logger *zap.Logger) (providers.ChatProvider, error) {
	return New(cfg, logger), nil
}

// New creates a mock provider client.
func New(cfg *models.ProviderConfig, logger *zap.Logger) *Client {
	return &Client{
		name:    cfg.Name,
		latency: defaultLatency,
		logger:  logger,
	}
}

// Name returns the catalog provider name
func (c *Client) Name() string {
	return c.name
}

// ChatCompletion returns a canned answer for the last user message. Token
// counts approximate three quarters of the whitespace-separated word count.
func (c *Client) ChatCompletion(ctx context.Context, req *providers.ChatRequest) (*models.ProviderCompletion, error) {
	select {
	case <-ctx.Done():
		return nil, providers.NewProviderError(c.name, "CANCELLED", "Request cancelled", 0, false, ctx.Err())
	case <-time.After(c.latency):
	}

	lastMessage := ""
	if len(req.Messages) > 0 {
		lastMessage = req.Messages[len(req.Messages)-1].Content
	}
	response := respondTo(lastMessage)

	parts := make([]string, 0, len(req.Messages))
	for _, msg := range req.Messages {
		parts = append(parts, msg.Content)
	}
	allText := strings.Join(parts, " ")

	return &models.ProviderCompletion{
		Content:          response,
		Model:            req.Model,
		PromptTokens:     estimateTokens(allText),
		CompletionTokens: estimateTokens(response),
		FinishReason:     "stop",
	}, nil
}

// HealthCheck always succeeds
func (c *Client) HealthCheck(ctx context.Context) error {
	return nil
}

func respondTo(message string) string {
	lower := strings.ToLower(message)

	switch {
	case strings.Contains(lower, "привет"):
		return "Привет! Рад вас видеть в AI Gateway Framework!"
	case strings.Contains(lower, "погод"):
		return "Сегодня отличная погода для программирования и тестирования AI систем!"
	case strings.Contains(lower, "помощ"), strings.Contains(lower, "help"):
		return "Я могу помочь протестировать работу AI Gateway Framework. Попробуйте отправить разные запросы!"
	case strings.Contains(lower, "код"), strings.Contains(lower, "code"):
		return "```python\nprint('Hello, AI Gateway!')\n```\nВот простой пример кода на Python."
	case strings.Contains(lower, "сколько стоит"), strings.Contains(lower, "стоимость"):
		return "Это тестовая модель, поэтому стоимость = 0. В реальной системе стоимость рассчитывается на основе использованных токенов."
	case strings.Contains(lower, "время"):
		return "Текущее время: " + time.Now().Format("15:04:05") + ". Это тестовый ответ."
	}

	h := fnv.New32a()
	h.Write([]byte(message))
	return cannedResponses[int(h.Sum32())%len(cannedResponses)]
}

func estimateTokens(text string) int {
	n := len(strings.Fields(text)) * 3 / 4
	if n < 1 {
		return 1
	}
	return n
}
