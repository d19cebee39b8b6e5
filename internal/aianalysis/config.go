package aianalysis

import (
	"strings"
	"time"
)

const (
	defaultBaseURL   = "https://api.openai.com/v1"
	defaultModel     = "gpt-4o-mini"
	defaultMaxTokens = 2000
	defaultTimeout   = 30 * time.Second
)

// Config is everything the client needs; it is built by the caller so the
// client never reads process environment.
type Config struct {
	Enabled     bool
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	TopP        float32
	Timeout     time.Duration
}

func (c Config) normalized() Config {
	c.APIKey = strings.TrimSpace(c.APIKey)
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	c.Model = strings.TrimSpace(c.Model)
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = defaultMaxTokens
	}
	if c.Temperature < 0 || c.Temperature > 1 {
		c.Temperature = 0.3
	}
	if c.TopP <= 0 || c.TopP > 1 {
		c.TopP = 0.8
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	return c
}
