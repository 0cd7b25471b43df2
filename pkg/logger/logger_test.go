package logger

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContextFallsBackToGlobal(t *testing.T) {
	entry := FromContext(context.Background())
	require.NotNil(t, entry)
	assert.Equal(t, L.Logger, entry.Logger)
}

func TestWithLoggerRoundTrip(t *testing.T) {
	ctx := context.Background()
	entry := L.WithField("conversation_id", "abc-123")

	ctx = WithLogger(ctx, entry)
	got := FromContext(ctx)

	require.NotNil(t, got)
	assert.Equal(t, "abc-123", got.Data["conversation_id"])
}

func TestConfigure(t *testing.T) {
	t.Run("valid level", func(t *testing.T) {
		require.NoError(t, Configure("debug", "json"))
		assert.Equal(t, logrus.DebugLevel, L.Logger.GetLevel())
		_, isJSON := L.Logger.Formatter.(*logrus.JSONFormatter)
		assert.True(t, isJSON)
	})

	t.Run("invalid level rejected", func(t *testing.T) {
		assert.Error(t, Configure("loud", "text"))
	})

	t.Run("unknown format falls back to text", func(t *testing.T) {
		require.NoError(t, Configure("info", "banana"))
		_, isText := L.Logger.Formatter.(*logrus.TextFormatter)
		assert.True(t, isText)
	})
}
