package extraction

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doccontrol/pkg/platform/circuit"
)

type stubExtractor struct {
	text  string
	err   error
	delay time.Duration
	calls int
}

func (s *stubExtractor) Extract(ctx context.Context, _ Source) (string, error) {
	s.calls++
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.text, s.err
}

func TestFallback(t *testing.T) {
	ctx := context.Background()

	t.Run("returns extracted text", func(t *testing.T) {
		f := NewFallback(&stubExtractor{text: "scope and purpose"})
		assert.Equal(t, "scope and purpose", f.ExtractText(ctx, "s3://a.pdf", "a.pdf", "application/pdf"))
	})

	t.Run("extractor error yields placeholder", func(t *testing.T) {
		f := NewFallback(&stubExtractor{err: errors.New("boom")}, WithPlaceholder("n/a"))
		assert.Equal(t, "n/a", f.ExtractText(ctx, "s3://a.pdf", "a.pdf", "application/pdf"))
	})

	t.Run("slow extractor is cut off by the timeout", func(t *testing.T) {
		f := NewFallback(&stubExtractor{text: "late", delay: time.Second}, WithTimeout(10*time.Millisecond))
		start := time.Now()
		assert.Equal(t, DefaultPlaceholder, f.ExtractText(ctx, "s3://a.pdf", "a.pdf", "application/pdf"))
		assert.Less(t, time.Since(start), 500*time.Millisecond)
	})

	t.Run("no extractor configured", func(t *testing.T) {
		f := NewFallback(nil)
		assert.Equal(t, DefaultPlaceholder, f.ExtractText(ctx, "s3://a.pdf", "a.pdf", "application/pdf"))
	})

	t.Run("open breaker skips the extractor", func(t *testing.T) {
		stub := &stubExtractor{err: errors.New("down")}
		breaker := circuit.New("extractor", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour))
		f := NewFallback(stub, WithBreaker(breaker))

		for range 5 {
			f.ExtractText(ctx, "s3://a.pdf", "a.pdf", "application/pdf")
		}
		assert.True(t, breaker.IsOpen())
		assert.Equal(t, 2, stub.calls)
	})
}

func TestHTTPExtractor(t *testing.T) {
	t.Run("decodes text from the service", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"text":"hello"}`))
		}))
		defer srv.Close()

		text, err := NewHTTPExtractor(srv.URL, srv.Client()).Extract(context.Background(), Source{Link: "s3://a"})
		require.NoError(t, err)
		assert.Equal(t, "hello", text)
	})

	t.Run("non-200 is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := NewHTTPExtractor(srv.URL, srv.Client()).Extract(context.Background(), Source{Link: "s3://a"})
		require.Error(t, err)
	})
}
