package recognize

import (
	"context"
	"errors"
	"image"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blank() image.Image { return image.NewGray(image.Rect(0, 0, 4, 4)) }

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{"none", Config{Engine: EngineNone}, nil},
		{"azure without key", Config{Engine: EngineAzure, AzureEndpoint: "https://x"}, ErrEngineUnavailable},
		{"azure", Config{Engine: "Azure", AzureEndpoint: "https://x", AzureKey: "k"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New(tt.cfg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, r)
		})
	}

	_, err := New(Config{Engine: "paddle"})
	assert.ErrorContains(t, err, "unknown recognition engine")
}

func TestUnavailable(t *testing.T) {
	_, err := Unavailable{}.Recognize(context.Background(), blank())
	assert.ErrorIs(t, err, ErrEngineUnavailable)
}

func TestWithTimeout(t *testing.T) {
	fast := Func(func(context.Context, image.Image) (Result, error) {
		return Result{Text: "ok", Confidence: 90}, nil
	})

	t.Run("zero returns the recognizer unchanged", func(t *testing.T) {
		r := WithTimeout(fast, 0)
		res, err := r.Recognize(context.Background(), blank())
		require.NoError(t, err)
		assert.Equal(t, "ok", res.Text)
		_, wrapped := r.(*timeoutRecognizer)
		assert.False(t, wrapped)
	})

	t.Run("fast call passes through", func(t *testing.T) {
		res, err := WithTimeout(fast, time.Second).Recognize(context.Background(), blank())
		require.NoError(t, err)
		assert.Equal(t, Result{Text: "ok", Confidence: 90}, res)
	})

	t.Run("errors pass through", func(t *testing.T) {
		boom := errors.New("boom")
		failing := Func(func(context.Context, image.Image) (Result, error) { return Result{}, boom })
		_, err := WithTimeout(failing, time.Second).Recognize(context.Background(), blank())
		assert.ErrorIs(t, err, boom)
	})

	t.Run("slow engine that ignores ctx is abandoned", func(t *testing.T) {
		var finished atomic.Bool
		release := make(chan struct{})
		slow := Func(func(context.Context, image.Image) (Result, error) {
			<-release
			finished.Store(true)
			return Result{Text: "late"}, nil
		})
		defer close(release)

		_, err := WithTimeout(slow, 20*time.Millisecond).Recognize(context.Background(), blank())
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.False(t, finished.Load())
	})
}
