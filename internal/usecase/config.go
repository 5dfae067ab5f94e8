package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bank-assistant/internal/domain"
)

// RuntimeConfig holds settings that operators change without a redeploy.
type RuntimeConfig struct {
	Model        string
	SystemPrompt *PromptTemplate
}

// ConfigSource loads RuntimeConfig. ChatService calls it once and caches a
// successful result for the life of the process.
type ConfigSource interface {
	Load(ctx context.Context) (RuntimeConfig, error)
}

type ParamGetter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// ParamConfigSource reads runtime settings from a parameter store:
//
//	<prefix>/config/model   model name (required)
//	<prefix>/prompt/system  system prompt template (optional)
type ParamConfigSource struct {
	params ParamGetter
	prefix string
}

func NewParamConfigSource(p ParamGetter, prefix string) (*ParamConfigSource, error) {
	if p == nil {
		return nil, errors.New("usecase: param getter must not be nil")
	}
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return nil, errors.New("usecase: parameter prefix must not be empty")
	}
	return &ParamConfigSource{params: p, prefix: prefix}, nil
}

func (s *ParamConfigSource) Load(ctx context.Context) (RuntimeConfig, error) {
	model, err := s.params.GetParameter(ctx, s.prefix+"/config/model")
	if err != nil {
		return RuntimeConfig{}, fmt.Errorf("usecase: load model: %w", err)
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return RuntimeConfig{}, errors.New("usecase: model parameter is empty")
	}

	text, err := s.params.GetParameter(ctx, s.prefix+"/prompt/system")
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return RuntimeConfig{}, fmt.Errorf("usecase: load system prompt: %w", err)
	}
	prompt, err := ParsePromptTemplate(text)
	if err != nil {
		return RuntimeConfig{}, err
	}
	return RuntimeConfig{Model: model, SystemPrompt: prompt}, nil
}

// StaticConfigSource serves a fixed RuntimeConfig, as used by the local CLI.
type StaticConfigSource struct {
	Config RuntimeConfig
}

func (s StaticConfigSource) Load(context.Context) (RuntimeConfig, error) {
	if strings.TrimSpace(s.Config.Model) == "" {
		return RuntimeConfig{}, errors.New("usecase: model must not be empty")
	}
	cfg := s.Config
	if cfg.SystemPrompt == nil {
		p, err := ParsePromptTemplate("")
		if err != nil {
			return RuntimeConfig{}, err
		}
		cfg.SystemPrompt = p
	}
	return cfg, nil
}
