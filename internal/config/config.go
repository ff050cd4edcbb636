package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"dietchain/internal/pipeline"
)

// StageConfig holds the per-stage model fallback list and sampling settings.
type StageConfig struct {
	Models          []string `json:"models"`
	Temperature     float32  `json:"temperature"`
	MaxOutputTokens int32    `json:"max_output_tokens"`
}

// Stage converts the settings into a pipeline stage. Name and prompt are set by the pipeline.
func (s StageConfig) Stage() pipeline.Stage {
	return pipeline.Stage{
		Models:          append([]string(nil), s.Models...),
		Temperature:     s.Temperature,
		MaxOutputTokens: s.MaxOutputTokens,
	}
}

// Duration decodes either a Go duration string ("45s") or a number of seconds.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(v)
		return nil
	}
	var secs float64
	if err := json.Unmarshal(b, &secs); err != nil {
		return fmt.Errorf("invalid duration %s", string(b))
	}
	*d = Duration(secs * float64(time.Second))
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Config represents the application configuration.
type Config struct {
	Port           string   `json:"port"`
	GeminiAPIKey   string   `json:"gemini_api_key"`
	GroqAPIKey     string   `json:"groq_api_key"`
	GroqBaseURL    string   `json:"groq_base_url"`
	DatabaseURL    string   `json:"DATABASE_URL"`
	AllowedOrigins []string `json:"allowed_origins"`

	CallTimeout      Duration `json:"call_timeout"`
	MinInputChars    int      `json:"min_input_chars"`
	MinQuestionChars int      `json:"min_question_chars"`
	QAContextChars   int      `json:"qa_context_chars"`
	SessionCapacity  int      `json:"session_capacity"`
	ExtractCacheSize int      `json:"extract_cache_size"`

	Translate     StageConfig `json:"translate"`
	RecommendDiet StageConfig `json:"recommend_diet"`
	MealPlan      StageConfig `json:"meal_plan"`
	QA            StageConfig `json:"qa"`
}

// Default returns the configuration used when no file or environment overrides it.
func Default() Config {
	large := []string{"groq:llama-3.3-70b-versatile", "groq:llama-3.1-8b-instant", "gemini:gemini-1.5-flash"}
	small := []string{"groq:llama-3.1-8b-instant", "groq:llama-3.3-70b-versatile", "gemini:gemini-1.5-flash"}
	return Config{
		Port:             "8080",
		AllowedOrigins:   []string{"http://localhost:8081"},
		CallTimeout:      Duration(45 * time.Second),
		MinInputChars:    pipeline.DefaultMinInputChars,
		MinQuestionChars: pipeline.DefaultMinQuestionChars,
		QAContextChars:   pipeline.DefaultQAContextChars,
		SessionCapacity:  1024,
		ExtractCacheSize: 128,
		Translate:        StageConfig{Models: large, Temperature: 0.7, MaxOutputTokens: 1000},
		RecommendDiet:    StageConfig{Models: large, Temperature: 0.6, MaxOutputTokens: 2000},
		MealPlan:         StageConfig{Models: small, Temperature: 0.8, MaxOutputTokens: 3000},
		QA:               StageConfig{Models: small, Temperature: 0.7, MaxOutputTokens: 500},
	}
}

// Load reads .env (if present), then the JSON file at path (if present) over the
// defaults, then applies environment overrides.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("failed to read %s: %w", path, err)
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to unmarshal %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("GEMINI_API_KEY", &c.GeminiAPIKey)
	str("GROQ_API_KEY", &c.GroqAPIKey)
	str("GROQ_BASE_URL", &c.GroqBaseURL)
	str("DATABASE_URL", &c.DatabaseURL)
	str("PORT", &c.Port)

	if v, ok := lookup("CALL_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid CALL_TIMEOUT %q: %w", v, err)
		}
		c.CallTimeout = Duration(d)
	}
	if v, ok := lookup("ALLOWED_ORIGINS"); ok && v != "" {
		c.AllowedOrigins = strings.Split(v, ",")
	}
	return nil
}

// Validate checks that every stage can be run.
func (c Config) Validate() error {
	stages := []struct {
		name string
		cfg  StageConfig
	}{
		{"translate", c.Translate},
		{"recommend_diet", c.RecommendDiet},
		{"meal_plan", c.MealPlan},
		{"qa", c.QA},
	}
	for _, s := range stages {
		if len(s.cfg.Models) == 0 {
			return fmt.Errorf("stage %s: empty model list", s.name)
		}
		for _, m := range s.cfg.Models {
			if strings.TrimSpace(m) == "" {
				return fmt.Errorf("stage %s: blank model id", s.name)
			}
		}
		if s.cfg.MaxOutputTokens <= 0 {
			return fmt.Errorf("stage %s: max_output_tokens must be positive", s.name)
		}
	}
	if c.CallTimeout <= 0 {
		return errors.New("call_timeout must be positive")
	}
	return nil
}

// Timeout returns the per-call timeout.
func (c Config) Timeout() time.Duration { return time.Duration(c.CallTimeout) }

// Stages returns the three chain stages in execution order.
func (c Config) Stages() []pipeline.Stage {
	return pipeline.DefaultStages(c.Translate.Stage(), c.RecommendDiet.Stage(), c.MealPlan.Stage())
}
