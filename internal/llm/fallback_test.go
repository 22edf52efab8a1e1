package llm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubClient is a scripted VisionClient.
type stubClient struct {
	provider Provider
	model    string
	resp     *Response
	err      error
	pingErr  error
	calls    int
}

func (s *stubClient) Recognize(ctx context.Context, img Image) (*Response, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

func (s *stubClient) Ping(ctx context.Context) error { return s.pingErr }
func (s *stubClient) Provider() Provider             { return s.provider }
func (s *stubClient) Model() string                  { return s.model }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFallback_PrimarySucceeds(t *testing.T) {
	openai := &stubClient{provider: ProviderOpenAI, model: "gpt-4o", resp: &Response{Recognition: Recognition{BandName: "Emperor"}}}
	anthropic := &stubClient{provider: ProviderAnthropic, model: "claude"}

	f := NewFallback(quietLogger(), openai, anthropic)
	resp, err := f.Recognize(context.Background(), Image{}, nil)

	require.NoError(t, err)
	assert.Equal(t, "Emperor", resp.BandName)
	assert.Equal(t, 1, openai.calls)
	assert.Equal(t, 0, anthropic.calls)
}

func TestFallback_FallsThrough(t *testing.T) {
	openai := &stubClient{provider: ProviderOpenAI, err: errors.New("openai down")}
	anthropic := &stubClient{provider: ProviderAnthropic, resp: &Response{Recognition: Recognition{BandName: "Mayhem"}}}

	var attempts []Provider
	f := NewFallback(quietLogger(), openai, anthropic)
	f.OnAttempt(func(p Provider, model string, elapsed time.Duration, err error) {
		attempts = append(attempts, p)
	})

	resp, err := f.Recognize(context.Background(), Image{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Mayhem", resp.BandName)
	assert.Equal(t, []Provider{ProviderOpenAI, ProviderAnthropic}, attempts)
}

func TestFallback_PreferenceOrder(t *testing.T) {
	openai := &stubClient{provider: ProviderOpenAI, resp: &Response{Recognition: Recognition{BandName: "from openai"}}}
	anthropic := &stubClient{provider: ProviderAnthropic, resp: &Response{Recognition: Recognition{BandName: "from anthropic"}}}

	f := NewFallback(quietLogger(), openai, anthropic)
	resp, err := f.Recognize(context.Background(), Image{}, []Provider{ProviderAnthropic, ProviderOpenAI})

	require.NoError(t, err)
	assert.Equal(t, "from anthropic", resp.BandName)
	assert.Equal(t, 0, openai.calls)
}

func TestFallback_AllFailReturnsLastError(t *testing.T) {
	last := errors.New("anthropic down")
	f := NewFallback(quietLogger(),
		&stubClient{provider: ProviderOpenAI, err: errors.New("openai down")},
		&stubClient{provider: ProviderAnthropic, err: last},
	)

	_, err := f.Recognize(context.Background(), Image{}, nil)
	assert.ErrorIs(t, err, last)
}

func TestFallback_SkipsUnconfigured(t *testing.T) {
	openai := &stubClient{provider: ProviderOpenAI, resp: &Response{Recognition: Recognition{BandName: "ok"}}}
	f := NewFallback(quietLogger(), openai, nil)

	resp, err := f.Recognize(context.Background(), Image{}, []Provider{ProviderAnthropic, ProviderOpenAI})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.BandName)
	assert.Equal(t, []Provider{ProviderOpenAI}, f.Providers())
}

func TestFallback_NoProviders(t *testing.T) {
	f := NewFallback(quietLogger())
	_, err := f.Recognize(context.Background(), Image{}, nil)
	assert.ErrorIs(t, err, ErrNoProviders)

	f = NewFallback(quietLogger(), &stubClient{provider: ProviderOpenAI})
	_, err = f.Recognize(context.Background(), Image{}, []Provider{ProviderAnthropic})
	assert.ErrorIs(t, err, ErrNoProviders)
}

func TestFallback_StopsOnCancellation(t *testing.T) {
	openai := &stubClient{provider: ProviderOpenAI, err: context.DeadlineExceeded}
	anthropic := &stubClient{provider: ProviderAnthropic, resp: &Response{}}

	f := NewFallback(quietLogger(), openai, anthropic)
	_, err := f.Recognize(context.Background(), Image{}, nil)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, anthropic.calls)
}

func TestFallback_Health(t *testing.T) {
	f := NewFallback(quietLogger(),
		&stubClient{provider: ProviderOpenAI},
	)
	health := f.Health(context.Background())
	assert.Equal(t, map[Provider]bool{ProviderOpenAI: true, ProviderAnthropic: false}, health)

	f = NewFallback(quietLogger(),
		&stubClient{provider: ProviderOpenAI, pingErr: errors.New("401")},
		&stubClient{provider: ProviderAnthropic},
	)
	health = f.Health(context.Background())
	assert.False(t, health[ProviderOpenAI])
	assert.True(t, health[ProviderAnthropic])
}
