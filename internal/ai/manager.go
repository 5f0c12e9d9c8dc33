package ai

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type ManagerConfig struct {
	Timeout int // seconds, applied per external call
}

// Manager fronts the configured generators and embedder with bounded
// timeouts so callers never hang on a slow provider.
type Manager struct {
	group    *GeneratorGroup
	embedder IEmbedder
	cfg      ManagerConfig
}

func NewManager(group *GeneratorGroup, embedder IEmbedder, cfg ManagerConfig) *Manager {
	return &Manager{group: group, embedder: embedder, cfg: cfg}
}

func (m *Manager) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, time.Duration(m.cfg.Timeout)*time.Second)
	}
	return ctx, func() {}
}

// Generate produces text via the preferred provider with automatic fallback,
// returning the name of the provider actually used.
func (m *Manager) Generate(ctx context.Context, preferred string, prompt string, opts GenerateOptions) (string, string, error) {
	if m.group == nil {
		return "", "", ErrUnavailable
	}
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	text, used, err := m.group.Generate(ctx, preferred, prompt, opts)
	if err != nil {
		return "", "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", "", fmt.Errorf("empty ai response")
	}
	return text, used, nil
}

func (m *Manager) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if m.embedder == nil {
		return nil, ErrUnavailable
	}
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	return m.embedder.Embed(ctx, text, taskType)
}

func (m *Manager) Embedder() IEmbedder {
	return m.embedder
}

func (m *Manager) EmbedderAvailable() bool {
	return m.embedder != nil && m.embedder.Available()
}

func (m *Manager) EmbeddingModelName() string {
	if m.embedder == nil {
		return ""
	}
	return m.embedder.ModelName()
}

func (m *Manager) ProviderHealth() map[string]bool {
	if m.group == nil {
		return map[string]bool{}
	}
	return m.group.Health()
}
