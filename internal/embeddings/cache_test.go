package embeddings

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingProvider counts Embed calls and returns a fixed vector per text.
type countingProvider struct {
	mu    sync.Mutex
	calls map[string]int
	fail  bool
}

func newCountingProvider() *countingProvider {
	return &countingProvider{calls: map[string]int{}}
}

func (p *countingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[text]++
	if p.fail {
		return nil, ErrEmbeddingFailed
	}
	return []float32{float32(len(text)), 1, 0}, nil
}

func TestCachingProvider_HitAvoidsReembed(t *testing.T) {
	inner := newCountingProvider()
	cp, err := NewCachingProvider(inner, 16)
	require.NoError(t, err)

	ctx := context.Background()
	v1, err := cp.Embed(ctx, "complaint handling procedure")
	require.NoError(t, err)
	v2, err := cp.Embed(ctx, "complaint handling procedure")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Equal(t, 1, inner.calls["complaint handling procedure"])
	assert.Equal(t, 1, cp.Len())
}

func TestCachingProvider_ErrorNotCached(t *testing.T) {
	inner := newCountingProvider()
	inner.fail = true
	cp, err := NewCachingProvider(inner, 16)
	require.NoError(t, err)

	_, err = cp.Embed(context.Background(), "text")
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
	assert.Equal(t, 0, cp.Len())

	inner.fail = false
	_, err = cp.Embed(context.Background(), "text")
	assert.NoError(t, err)
	assert.Equal(t, 2, inner.calls["text"])
}

func TestCachingProvider_ConcurrentWriters(t *testing.T) {
	inner := newCountingProvider()
	cp, err := NewCachingProvider(inner, 128)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, text := range []string{"a", "b", "c", "d"} {
				_, err := cp.Embed(context.Background(), text)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 4, cp.Len())
}

func TestCachingProvider_EmptyInput(t *testing.T) {
	cp, err := NewCachingProvider(newCountingProvider(), 16)
	require.NoError(t, err)

	_, err = cp.Embed(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestNewCachingProvider_NilInner(t *testing.T) {
	_, err := NewCachingProvider(nil, 16)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestContentHash_Stable(t *testing.T) {
	assert.Equal(t, ContentHash("x"), ContentHash("x"))
	assert.NotEqual(t, ContentHash("x"), ContentHash("y"))
	assert.Len(t, ContentHash("x"), 64)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 0}, []float32{1, 0}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)

	// Degenerate inputs
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1}, []float32{1, 2}))
	assert.Equal(t, 0.0, CosineSimilarity(nil, nil))
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}
