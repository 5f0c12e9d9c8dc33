package ai

import (
	"context"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type GeneratorEntry struct {
	Name      string
	Generator IGenerator
}

type EmbedderEntry struct {
	Name     string
	Embedder IEmbedder
}

// GeneratorGroup walks an ordered list of generators, skipping unavailable
// ones and retrying a transient failure once before moving to the next entry.
// The name of the entry that produced the answer is returned to the caller.
type GeneratorGroup struct {
	items []GeneratorEntry
}

func NewGeneratorGroup(items []GeneratorEntry) *GeneratorGroup {
	return &GeneratorGroup{items: items}
}

// Generate tries the preferred entry first (if named and present), then the
// remaining entries in configured order. ErrUnavailable is returned only when
// no entry was available to attempt.
func (g *GeneratorGroup) Generate(ctx context.Context, preferred string, prompt string, opts GenerateOptions) (string, string, error) {
	var lastErr error
	attempted := false
	for _, item := range g.ordered(preferred) {
		if item.Generator == nil || !item.Generator.Available() {
			continue
		}
		attempted = true
		res, err := g.generateOnce(ctx, item, prompt, opts)
		if err == nil {
			return res, item.Name, nil
		}
		lastErr = err
		logutil.GetLogger(ctx).Warn("generator failed, falling back",
			zap.String("name", item.Name), zap.Error(err))
	}
	if !attempted {
		return "", "", ErrUnavailable
	}
	return "", "", lastErr
}

func (g *GeneratorGroup) generateOnce(ctx context.Context, item GeneratorEntry, prompt string, opts GenerateOptions) (string, error) {
	res, err := item.Generator.Generate(ctx, prompt, opts)
	if err == nil {
		return res, nil
	}
	if !IsTransient(err) || ctx.Err() != nil {
		return "", err
	}
	logutil.GetLogger(ctx).Warn("transient generator error, retrying once",
		zap.String("name", item.Name), zap.Error(err))
	return item.Generator.Generate(ctx, prompt, opts)
}

func (g *GeneratorGroup) ordered(preferred string) []GeneratorEntry {
	if preferred == "" {
		return g.items
	}
	ordered := make([]GeneratorEntry, 0, len(g.items))
	for _, item := range g.items {
		if strings.EqualFold(item.Name, preferred) {
			ordered = append(ordered, item)
			break
		}
	}
	for _, item := range g.items {
		if !strings.EqualFold(item.Name, preferred) {
			ordered = append(ordered, item)
		}
	}
	return ordered
}

func (g *GeneratorGroup) Health() map[string]bool {
	health := make(map[string]bool, len(g.items))
	for _, item := range g.items {
		health[item.Name] = item.Generator != nil && item.Generator.Available()
	}
	return health
}

type groupEmbedder struct {
	items []EmbedderEntry
}

func NewGroupEmbedder(items []EmbedderEntry) IEmbedder {
	if len(items) == 0 {
		return nil
	}
	return &groupEmbedder{items: items}
}

func (g *groupEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	var lastErr error
	attempted := false
	for _, item := range g.items {
		if item.Embedder == nil || !item.Embedder.Available() {
			continue
		}
		attempted = true
		res, err := item.Embedder.Embed(ctx, text, taskType)
		if err == nil {
			return res, nil
		}
		lastErr = err
		logutil.GetLogger(ctx).Warn("embedder failed, falling back",
			zap.String("name", item.Name), zap.Error(err))
	}
	if !attempted {
		return nil, ErrUnavailable
	}
	return nil, lastErr
}

func (g *groupEmbedder) ModelName() string {
	names := make([]string, 0, len(g.items))
	for _, item := range g.items {
		if item.Name == "" {
			continue
		}
		names = append(names, item.Name)
	}
	return strings.Join(names, "|")
}

func (g *groupEmbedder) Available() bool {
	for _, item := range g.items {
		if item.Embedder != nil && item.Embedder.Available() {
			return true
		}
	}
	return false
}
