package routing

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/routelab/ai-gateway/models"
)

// Complexity buckets by estimated token volume
const (
	simpleTokenLimit   = 100
	standardTokenLimit = 500
	complexTokenLimit  = 1500
)

const previewMaxChars = 500

// taskTypePatterns classify the prompt by keyword. Groups are checked in
// order and the first matching group wins; keywords cover English and
// Russian stems.
var taskTypePatterns = []struct {
	taskType string
	keywords []string
}{
	{models.TaskTypeCodeGeneration, []string{
		"code", "програм", "алгоритм", "функци", "класс",
		"импорт", "синтаксис", "компиляц", "отладк",
	}},
	{models.TaskTypeTranslation, []string{
		"перевод", "translate", "language", "язык",
		"на английск", "на русск",
	}},
	{models.TaskTypeSummarization, []string{
		"сумм", "summary", "кратко", "основн",
		"в двух словах", "резюме",
	}},
	{models.TaskTypeAnalysis, []string{
		"анализ", "analysis", "сравн", "compare",
		"исследован", "изуч",
	}},
	{models.TaskTypeCreativeWriting, []string{
		"творч", "creative", "стих", "story",
		"рассказ", "поэ", "проза",
	}},
	{models.TaskTypeQA, []string{
		"вопрос", "question", "ответ", "answer",
		"почему", "как", "что",
	}},
}

// instructionPatterns flag prompts that carry explicit formatting or
// structural instructions.
var instructionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`используй.*формат`),
	regexp.MustCompile(`отвечай.*язык`),
	regexp.MustCompile(`не упоминай`),
	regexp.MustCompile(`включи.*пример`),
	regexp.MustCompile(`структур.*ответ`),
	regexp.MustCompile(`сначала.*потом`),
	regexp.MustCompile(`ограничь.*словами`),
	regexp.MustCompile(`формат.*json`),
	regexp.MustCompile(`формат.*xml`),
	regexp.MustCompile(`формат.*markdown`),
	regexp.MustCompile(`следующий.*шаг`),
	regexp.MustCompile(`обязательно.*включи`),
	regexp.MustCompile(`исключи.*информацию`),
}

// Analyzer derives routing-relevant characteristics from a conversation.
type Analyzer struct {
	logger *zap.Logger
}

// NewAnalyzer creates a prompt analyzer
func NewAnalyzer(logger *zap.Logger) *Analyzer {
	return &Analyzer{logger: logger}
}

// Analyze reads the conversation and estimates token volume, complexity,
// task type and instruction presence. It never fails; if the analysis
// cannot be computed the documented default analysis is returned.
func (a *Analyzer) Analyze(messages []models.ChatMessage) (analysis models.PromptAnalysis) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("prompt analysis failed", zap.Any("panic", r))
			analysis = defaultAnalysis()
		}
	}()

	fullText := combineMessages(messages)
	tokenEstimate := estimateTokens(fullText)

	return models.PromptAnalysis{
		TokenEstimate:   tokenEstimate,
		Complexity:      complexityFor(tokenEstimate),
		TaskType:        classifyTaskType(fullText),
		HasInstructions: hasInstructions(fullText),
		MessageCount:    len(messages),
		TotalChars:      utf8.RuneCountInString(fullText),
		Preview:         preview(fullText),
	}
}

// defaultAnalysis is returned when analysis cannot be computed
func defaultAnalysis() models.PromptAnalysis {
	return models.PromptAnalysis{
		TokenEstimate:   100,
		Complexity:      models.ComplexitySimple,
		TaskType:        models.TaskTypeGeneral,
		HasInstructions: false,
		MessageCount:    0,
		TotalChars:      0,
		Preview:         "",
	}
}

func combineMessages(messages []models.ChatMessage) string {
	parts := make([]string, 0, len(messages))
	for _, msg := range messages {
		parts = append(parts, msg.Content)
	}
	return strings.Join(parts, "\n")
}

// estimateTokens approximates the token count from text length scaled by
// average word length. Lengths are counted in runes so Cyrillic text is
// measured the same as Latin.
func estimateTokens(text string) int {
	words := strings.Fields(text)

	totalWordChars := 0
	for _, word := range words {
		totalWordChars += utf8.RuneCountInString(word)
	}

	wordCount := len(words)
	if wordCount == 0 {
		wordCount = 1
	}
	avgWordLength := float64(totalWordChars) / float64(wordCount)

	textLength := utf8.RuneCountInString(text)

	var estimate int
	switch {
	case avgWordLength <= 4:
		estimate = textLength / 4
	case avgWordLength <= 6:
		estimate = textLength / 3
	default:
		estimate = textLength / 2
	}

	if estimate < 1 {
		return 1
	}
	return estimate
}

func complexityFor(tokenEstimate int) models.PromptComplexity {
	switch {
	case tokenEstimate < simpleTokenLimit:
		return models.ComplexitySimple
	case tokenEstimate < standardTokenLimit:
		return models.ComplexityStandard
	case tokenEstimate < complexTokenLimit:
		return models.ComplexityComplex
	default:
		return models.ComplexityAdvanced
	}
}

func classifyTaskType(text string) string {
	lower := strings.ToLower(text)

	for _, group := range taskTypePatterns {
		for _, keyword := range group.keywords {
			if strings.Contains(lower, keyword) {
				return group.taskType
			}
		}
	}

	return models.TaskTypeGeneral
}

func hasInstructions(text string) bool {
	lower := strings.ToLower(text)

	for _, pattern := range instructionPatterns {
		if pattern.MatchString(lower) {
			return true
		}
	}

	return false
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewMaxChars {
		return text
	}
	return string(runes[:previewMaxChars]) + "..."
}
