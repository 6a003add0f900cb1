// Package extraction turns document attachments into searchable text using
// an external service. Callers get the placeholder text whenever that
// service is slow, failing or not configured, so document creation never
// waits on it.
package extraction

import (
	"context"
	"log/slog"
	"time"

	"doccontrol/pkg/platform/circuit"
	"doccontrol/pkg/requestcontext"
)

// Source identifies an attachment in external storage.
type Source struct {
	Link     string `json:"link"`
	Name     string `json:"name"`
	MimeType string `json:"type"`
}

// Extractor is the external text extraction service.
type Extractor interface {
	Extract(ctx context.Context, src Source) (string, error)
}

const (
	DefaultPlaceholder = "[text extraction unavailable]"
	defaultTimeout     = 5 * time.Second
)

// Fallback wraps an Extractor with a timeout, a circuit breaker and a fixed
// placeholder.
type Fallback struct {
	next        Extractor
	breaker     *circuit.Breaker
	timeout     time.Duration
	placeholder string
	logger      *slog.Logger
}

type Option func(*Fallback)

func WithTimeout(d time.Duration) Option {
	return func(f *Fallback) {
		if d > 0 {
			f.timeout = d
		}
	}
}

func WithPlaceholder(text string) Option {
	return func(f *Fallback) {
		if text != "" {
			f.placeholder = text
		}
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(f *Fallback) {
		f.breaker = b
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(f *Fallback) {
		f.logger = logger
	}
}

// NewFallback wraps next. A nil next always yields the placeholder.
func NewFallback(next Extractor, opts ...Option) *Fallback {
	f := &Fallback{
		next:        next,
		timeout:     defaultTimeout,
		placeholder: DefaultPlaceholder,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.breaker == nil {
		f.breaker = circuit.New("extractor")
	}
	if f.logger == nil {
		f.logger = slog.New(slog.DiscardHandler)
	}
	return f
}

// ExtractText returns the attachment's text or the placeholder.
func (f *Fallback) ExtractText(ctx context.Context, link, name, mimeType string) string {
	if f.next == nil || link == "" {
		return f.placeholder
	}
	if !f.breaker.Allow() {
		return f.placeholder
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	text, err := f.next.Extract(ctx, Source{Link: link, Name: name, MimeType: mimeType})
	if err != nil || text == "" {
		if _, change := f.breaker.RecordFailure(); change.Opened {
			f.logger.WarnContext(ctx, "text extraction circuit opened", "breaker", f.breaker.Name())
		}
		f.logger.WarnContext(ctx, "text extraction failed, using placeholder",
			"name", name,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return f.placeholder
	}
	if _, change := f.breaker.RecordSuccess(); change.Closed {
		f.logger.InfoContext(ctx, "text extraction circuit closed", "breaker", f.breaker.Name())
	}
	return text
}
