// Package settings persists user preferences and resolves them into the
// explicit ai.Settings value the AI layer consumes.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/zulandar/devtask/internal/ai"
	"github.com/zulandar/devtask/internal/config"
	"github.com/zulandar/devtask/internal/db"
	"github.com/zulandar/devtask/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Setting keys.
const (
	KeyProvider          = "ai_provider"
	KeyGeminiAPIKey      = "gemini_api_key"
	KeyOpenAIAPIKey      = "openai_api_key"
	KeyGeminiModel       = "gemini_model"
	KeyOpenAIModel       = "openai_model"
	KeyGeminiTemperature = "gemini_temperature"
	KeyOpenAITemperature = "openai_temperature"
	KeyCustomPrompts     = "custom_prompts"
)

// Keys lists every known setting.
var Keys = []string{
	KeyProvider, KeyGeminiAPIKey, KeyOpenAIAPIKey, KeyGeminiModel,
	KeyOpenAIModel, KeyGeminiTemperature, KeyOpenAITemperature, KeyCustomPrompts,
}

var (
	// ErrUnknownProvider means a provider name other than gemini or openai.
	ErrUnknownProvider = errors.New("unknown provider")
	// ErrInvalidTemperature means a temperature outside [0, 2].
	ErrInvalidTemperature = errors.New("invalid temperature")
	// ErrUnknownPrompt means a prompt key that names no template.
	ErrUnknownPrompt = errors.New("unknown prompt")
)

// All returns every stored setting.
func All(ctx context.Context, s *db.Store) (map[string]string, error) {
	var rows []models.Setting
	if err := s.DB.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("settings: load: %w: %w", db.ErrStoreUnavailable, err)
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	return out, nil
}

// Get returns a stored value and whether it exists.
func Get(ctx context.Context, s *db.Store, key string) (string, bool, error) {
	var row models.Setting
	err := s.DB.WithContext(ctx).Where(&models.Setting{Key: key}).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("settings: get %s: %w: %w", key, db.ErrStoreUnavailable, err)
	}
	return row.Value, true, nil
}

// Set stores a raw value. Typed setters validate first.
func Set(ctx context.Context, s *db.Store, key, value string) error {
	err := s.Write(ctx, func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&models.Setting{Key: key, Value: value}).Error
	}, db.Settings)
	if err != nil {
		return fmt.Errorf("settings: set %s: %w", key, err)
	}
	return nil
}

// Delete removes a stored value so its default applies again.
func Delete(ctx context.Context, s *db.Store, key string) error {
	err := s.Write(ctx, func(tx *gorm.DB) error {
		return tx.Delete(&models.Setting{Key: key}).Error
	}, db.Settings)
	if err != nil {
		return fmt.Errorf("settings: delete %s: %w", key, err)
	}
	return nil
}

// SetProvider selects the active backend.
func SetProvider(ctx context.Context, s *db.Store, name string) error {
	p, ok := ai.ParseProviderName(name)
	if !ok {
		return fmt.Errorf("settings: %w: %q", ErrUnknownProvider, name)
	}
	return Set(ctx, s, KeyProvider, string(p))
}

// SetAPIKey stores the key of a backend. An empty key removes it.
func SetAPIKey(ctx context.Context, s *db.Store, provider ai.ProviderName, key string) error {
	k, err := perProvider(provider, KeyGeminiAPIKey, KeyOpenAIAPIKey)
	if err != nil {
		return err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return Delete(ctx, s, k)
	}
	return Set(ctx, s, k, key)
}

// SetModel stores the model of a backend. An empty model restores the default.
func SetModel(ctx context.Context, s *db.Store, provider ai.ProviderName, model string) error {
	k, err := perProvider(provider, KeyGeminiModel, KeyOpenAIModel)
	if err != nil {
		return err
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return Delete(ctx, s, k)
	}
	return Set(ctx, s, k, model)
}

// SetTemperature stores the sampling temperature of a backend.
func SetTemperature(ctx context.Context, s *db.Store, provider ai.ProviderName, t float64) error {
	k, err := perProvider(provider, KeyGeminiTemperature, KeyOpenAITemperature)
	if err != nil {
		return err
	}
	if t < 0 || t > 2 {
		return fmt.Errorf("settings: %w: %v", ErrInvalidTemperature, t)
	}
	return Set(ctx, s, k, strconv.FormatFloat(t, 'f', -1, 64))
}

// CustomPrompts returns the stored template overrides.
func CustomPrompts(ctx context.Context, s *db.Store) (map[string]string, error) {
	raw, ok, err := Get(ctx, s, KeyCustomPrompts)
	if err != nil || !ok {
		return map[string]string{}, err
	}
	return decodePrompts(raw), nil
}

// SetPrompts merges overrides into the stored ones. A blank value removes
// the override for that key.
func SetPrompts(ctx context.Context, s *db.Store, overrides map[string]string) error {
	for k := range overrides {
		if !ai.IsValidPromptKey(k) {
			return fmt.Errorf("settings: %w: %q", ErrUnknownPrompt, k)
		}
	}
	current, err := CustomPrompts(ctx, s)
	if err != nil {
		return err
	}
	for k, v := range overrides {
		if strings.TrimSpace(v) == "" {
			delete(current, k)
			continue
		}
		current[k] = v
	}
	data, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("settings: encode prompts: %w", err)
	}
	return Set(ctx, s, KeyCustomPrompts, string(data))
}

// ResetPrompts drops every template override.
func ResetPrompts(ctx context.Context, s *db.Store) error {
	return Delete(ctx, s, KeyCustomPrompts)
}

// Load resolves the stored settings into an ai.Settings value. Unknown
// providers fall back to Gemini and unparsable temperatures to the default.
func Load(ctx context.Context, s *db.Store, cfg config.AIConfig) (ai.Settings, error) {
	vals, err := All(ctx, s)
	if err != nil {
		return ai.Settings{}, err
	}
	return Resolve(vals, cfg), nil
}

// Resolve builds ai.Settings from raw values.
func Resolve(vals map[string]string, cfg config.AIConfig) ai.Settings {
	out := ai.DefaultSettings()
	if p, ok := ai.ParseProviderName(vals[KeyProvider]); ok {
		out.Provider = p
	}
	out.Gemini.APIKey = vals[KeyGeminiAPIKey]
	out.OpenAI.APIKey = vals[KeyOpenAIAPIKey]
	if v := strings.TrimSpace(vals[KeyGeminiModel]); v != "" {
		out.Gemini.Model = v
	}
	if v := strings.TrimSpace(vals[KeyOpenAIModel]); v != "" {
		out.OpenAI.Model = v
	}
	out.Gemini.Temperature = temperature(vals[KeyGeminiTemperature])
	out.OpenAI.Temperature = temperature(vals[KeyOpenAITemperature])
	if cfg.GeminiBaseURL != "" {
		out.Gemini.BaseURL = cfg.GeminiBaseURL
	}
	if cfg.OpenAIBaseURL != "" {
		out.OpenAI.BaseURL = cfg.OpenAIBaseURL
	}
	out.Prompts = ai.MergePrompts(decodePrompts(vals[KeyCustomPrompts]))
	return out
}

// Redacted returns the stored settings with API keys masked, sorted by key.
func Redacted(vals map[string]string) [][2]string {
	keys := make([]string, 0, len(vals))
	for k := range vals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([][2]string, 0, len(keys))
	for _, k := range keys {
		v := vals[k]
		if k == KeyGeminiAPIKey || k == KeyOpenAIAPIKey {
			v = Mask(v)
		}
		out = append(out, [2]string{k, v})
	}
	return out
}

// Mask hides all but the last four characters of a secret.
func Mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}
	return strings.Repeat("*", 8) + secret[len(secret)-4:]
}

func temperature(raw string) float64 {
	t, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || t < 0 || t > 2 {
		return ai.DefaultTemperature
	}
	return t
}

func decodePrompts(raw string) map[string]string {
	out := map[string]string{}
	if strings.TrimSpace(raw) == "" {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return map[string]string{}
	}
	return out
}

func perProvider(p ai.ProviderName, gemini, openai string) (string, error) {
	switch p {
	case ai.Gemini:
		return gemini, nil
	case ai.OpenAI:
		return openai, nil
	}
	return "", fmt.Errorf("settings: %w: %q", ErrUnknownProvider, p)
}
