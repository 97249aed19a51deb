package gateway

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/Proton-105/studio-booking-bot/internal/cache"
	"github.com/Proton-105/studio-booking-bot/internal/domain"
	"github.com/Proton-105/studio-booking-bot/internal/i18n"
)

const (
	templatesCacheKey  = "messages"
	defaultTemplateTTL = time.Minute
)

// TemplateSource fetches admin-edited templates.
type TemplateSource interface {
	ListTemplates(ctx context.Context) (map[string]domain.Template, error)
}

// TemplateStore resolves bot copy. Admin-edited templates win over the bundled
// translations, which are used whenever the backend has no usable text.
type TemplateStore struct {
	source TemplateSource
	cache  cache.Cache
	ttl    time.Duration
	tr     i18n.Translator
	log    *slog.Logger
}

// NewTemplateStore wires a template store.
func NewTemplateStore(source TemplateSource, c cache.Cache, ttl time.Duration, tr i18n.Translator, log *slog.Logger) *TemplateStore {
	if log == nil {
		log = slog.Default()
	}
	if c == nil {
		c = cache.NewMemoryCache()
	}
	if ttl <= 0 {
		ttl = defaultTemplateTTL
	}

	return &TemplateStore{
		source: source,
		cache:  c,
		ttl:    ttl,
		tr:     tr,
		log:    log,
	}
}

// Text returns the template text for key.
func (s *TemplateStore) Text(ctx context.Context, key string) string {
	if tpl, ok := s.lookup(ctx, key); ok && strings.TrimSpace(tpl.Text) != "" {
		return tpl.Text
	}
	return s.fallback(key)
}

// Render returns the template text for key with placeholders substituted.
func (s *TemplateStore) Render(ctx context.Context, key string, vars map[string]string) string {
	return i18n.Render(s.Text(ctx, key), vars)
}

// Image returns the image attached to the template, if any.
func (s *TemplateStore) Image(ctx context.Context, key string) string {
	if tpl, ok := s.lookup(ctx, key); ok {
		return tpl.ImageURL
	}
	return ""
}

// Remote returns the admin-edited text for key without falling back to the bundled copy.
func (s *TemplateStore) Remote(ctx context.Context, key string) string {
	if tpl, ok := s.lookup(ctx, key); ok {
		return strings.TrimSpace(tpl.Text)
	}
	return ""
}

// Translator exposes the bundled translations.
func (s *TemplateStore) Translator() i18n.Translator {
	return s.tr
}

func (s *TemplateStore) fallback(key string) string {
	if s.tr == nil {
		return key
	}
	return s.tr.T(key)
}

func (s *TemplateStore) lookup(ctx context.Context, key string) (domain.Template, bool) {
	all := s.snapshot(ctx)
	tpl, ok := all[key]
	return tpl, ok
}

// snapshot returns the cached template set, refetching it after the TTL. Failed
// fetches are not cached so the next call retries.
func (s *TemplateStore) snapshot(ctx context.Context) map[string]domain.Template {
	var cached map[string]domain.Template
	found, err := s.cache.Get(ctx, templatesCacheKey, &cached)
	if err != nil {
		s.log.WarnContext(ctx, "read templates cache", slog.Any("error", err))
	}
	if found {
		return cached
	}

	if s.source == nil {
		return nil
	}

	fresh, err := s.source.ListTemplates(ctx)
	if err != nil {
		s.log.WarnContext(ctx, "fetch templates", slog.Any("error", err))
		return nil
	}
	if fresh == nil {
		fresh = map[string]domain.Template{}
	}

	if err := s.cache.Set(ctx, templatesCacheKey, fresh, s.ttl); err != nil {
		s.log.WarnContext(ctx, "store templates cache", slog.Any("error", err))
	}
	return fresh
}
