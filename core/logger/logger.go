package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// ContextExtractor pulls a single attribute out of a context. Returning
// false skips the attribute for that record.
type ContextExtractor func(ctx context.Context) (slog.Attr, bool)

// Option configures logger construction.
type Option func(*config)

type config struct {
	level      slog.Level
	json       bool
	output     io.Writer
	attrs      []slog.Attr
	extractors []ContextExtractor
}

// New builds a *slog.Logger from the given options. Defaults are JSON
// output to stdout at info level.
func New(opts ...Option) *slog.Logger {
	cfg := &config{
		level:  slog.LevelInfo,
		json:   true,
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	var handler slog.Handler
	handlerOpts := &slog.HandlerOptions{Level: cfg.level}
	if cfg.json {
		handler = slog.NewJSONHandler(cfg.output, handlerOpts)
	} else {
		handler = slog.NewTextHandler(cfg.output, handlerOpts)
	}
	if len(cfg.attrs) > 0 {
		handler = handler.WithAttrs(cfg.attrs)
	}
	if len(cfg.extractors) > 0 {
		handler = &contextHandler{next: handler, extractors: cfg.extractors}
	}
	return slog.New(handler)
}

// WithDevelopment configures text output at debug level tagged with the
// application name.
func WithDevelopment(app string) Option {
	return func(cfg *config) {
		cfg.json = false
		cfg.level = slog.LevelDebug
		cfg.attrs = append(cfg.attrs, slog.String("app", app))
	}
}

// WithProduction configures JSON output at info level tagged with the
// application name.
func WithProduction(app string) Option {
	return func(cfg *config) {
		cfg.json = true
		cfg.level = slog.LevelInfo
		cfg.attrs = append(cfg.attrs, slog.String("app", app))
	}
}

// WithLevel sets the minimum log level.
func WithLevel(level slog.Level) Option {
	return func(cfg *config) { cfg.level = level }
}

// WithJSONFormatter selects JSON output.
func WithJSONFormatter() Option {
	return func(cfg *config) { cfg.json = true }
}

// WithTextFormatter selects human-readable text output.
func WithTextFormatter() Option {
	return func(cfg *config) { cfg.json = false }
}

// WithOutput redirects log output.
func WithOutput(w io.Writer) Option {
	return func(cfg *config) { cfg.output = w }
}

// WithAttr attaches static attributes to every record.
func WithAttr(attrs ...slog.Attr) Option {
	return func(cfg *config) { cfg.attrs = append(cfg.attrs, attrs...) }
}

// WithContextExtractors registers extractors that enrich records from the
// context passed to the *Context log methods.
func WithContextExtractors(extractors ...ContextExtractor) Option {
	return func(cfg *config) { cfg.extractors = append(cfg.extractors, extractors...) }
}

// contextHandler decorates a handler with context attribute extraction.
type contextHandler struct {
	next       slog.Handler
	extractors []ContextExtractor
}

func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *contextHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, extract := range h.extractors {
		if attr, ok := extract(ctx); ok {
			record.AddAttrs(attr)
		}
	}
	return h.next.Handle(ctx, record)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{next: h.next.WithAttrs(attrs), extractors: h.extractors}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{next: h.next.WithGroup(name), extractors: h.extractors}
}
