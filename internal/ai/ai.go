// Package ai talks to the LLM backends that clarify requirements and derive
// analyses, test cases and titles from a card.
//
// Callers build a Settings value, pass it to New and use the returned
// Provider. Backends are stateless: every chat turn carries the full history.
package ai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/zulandar/devtask/internal/logging"
	"github.com/zulandar/devtask/internal/models"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ProviderName identifies a backend.
type ProviderName string

const (
	Gemini ProviderName = "gemini"
	OpenAI ProviderName = "openai"
)

// ParseProviderName returns the provider named s.
func ParseProviderName(s string) (ProviderName, bool) {
	switch ProviderName(s) {
	case Gemini, OpenAI:
		return ProviderName(s), true
	}
	return "", false
}

// Display returns the vendor name as shown to users.
func (n ProviderName) Display() string {
	switch n {
	case Gemini:
		return "Gemini"
	case OpenAI:
		return "OpenAI"
	}
	return string(n)
}

// Backend defaults.
const (
	DefaultGeminiModel       = "gemini-2.5-flash"
	DefaultOpenAIModel       = "gpt-4o-mini"
	DefaultTemperature       = 0.7
	DefaultGeminiBaseURL     = "https://generativelanguage.googleapis.com"
	DefaultOpenAIBaseURL     = "https://api.openai.com"
	DefaultTimeout           = 120 * time.Second
	DefaultRequestsPerMinute = 30
)

// BackendSettings configures one backend.
type BackendSettings struct {
	APIKey      string
	Model       string
	Temperature float64
	BaseURL     string
}

// Settings is everything a provider needs. It is resolved by the caller;
// backends never look anything up on their own.
type Settings struct {
	Provider ProviderName
	Gemini   BackendSettings
	OpenAI   BackendSettings
	Prompts  Prompts
}

// DefaultSettings returns Gemini with default models and no keys.
func DefaultSettings() Settings {
	return Settings{
		Provider: Gemini,
		Gemini:   BackendSettings{Model: DefaultGeminiModel, Temperature: DefaultTemperature, BaseURL: DefaultGeminiBaseURL},
		OpenAI:   BackendSettings{Model: DefaultOpenAIModel, Temperature: DefaultTemperature, BaseURL: DefaultOpenAIBaseURL},
		Prompts:  DefaultPrompts(),
	}
}

// Selected returns the settings of the selected backend.
func (s Settings) Selected() BackendSettings {
	if s.Provider == OpenAI {
		return s.OpenAI
	}
	return s.Gemini
}

// ChatKind classifies a chat turn result.
type ChatKind string

const (
	KindQuestion ChatKind = "question"
	KindAnswer   ChatKind = "answer"
	KindError    ChatKind = "error"
)

// ChatResult is the outcome of one clarification turn. For KindError, Text
// is safe to show to the user and Err holds the cause.
type ChatResult struct {
	Kind ChatKind
	Text string
	Err  error
}

// TestCaseDraft is a generated test case before it gets an ID and status.
type TestCaseDraft struct {
	Description    string `json:"description"`
	Input          string `json:"input"`
	ExpectedResult string `json:"expectedResult"`
}

// Provider is the contract every backend satisfies.
type Provider interface {
	Name() ProviderName
	// ChatTurn sends message after history and classifies the reply. It
	// never returns an error; failures come back as KindError.
	ChatTurn(ctx context.Context, history []models.ChatMessage, message string) ChatResult
	PreDevAnalysis(ctx context.Context, spec string) (models.PreDevAnalysis, error)
	TestCases(ctx context.Context, spec string) ([]TestCaseDraft, error)
	Title(ctx context.Context, requirement string) (string, error)
}

type options struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	timeout    time.Duration
	log        *zap.Logger
}

// Option customises New.
type Option func(*options)

// WithHTTPClient sets the base HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithLimiter shares a request pacer across providers.
func WithLimiter(l *rate.Limiter) Option {
	return func(o *options) { o.limiter = l }
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.log = l }
}

// NewLimiter paces requests to perMinute with no burst. perMinute <= 0
// disables pacing.
func NewLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
}

// New returns the backend selected by s.Provider.
func New(s Settings, opts ...Option) (Provider, error) {
	o := options{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{}
	}
	if o.limiter == nil {
		o.limiter = NewLimiter(DefaultRequestsPerMinute)
	}
	log := logging.OrNop(o.log).Named("ai")
	prompts := s.Prompts
	if prompts == nil {
		prompts = DefaultPrompts()
	}

	var b backend
	switch s.Provider {
	case Gemini:
		b = newGemini(s.Gemini, o)
	case OpenAI:
		b = newOpenAI(s.OpenAI, o)
	default:
		return nil, fmt.Errorf("ai: unknown provider %q", s.Provider)
	}
	return &provider{b: b, prompts: prompts, log: log.With(zap.String("provider", string(s.Provider)))}, nil
}
