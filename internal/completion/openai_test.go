package completion

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/varloom/internal/config"
)

func TestNew_Validation(t *testing.T) {
	_, err := New(config.CompletionConfig{APIKeyEnv: "VARLOOM_TEST_KEY"})
	require.Error(t, err, "missing model")

	t.Setenv("VARLOOM_TEST_KEY", "")
	_, err = New(config.CompletionConfig{Model: "gpt-4o-mini", APIKeyEnv: "VARLOOM_TEST_KEY"})
	require.Error(t, err, "missing key")

	t.Setenv("VARLOOM_TEST_KEY", "sk-test")
	c, err := New(config.CompletionConfig{Model: "gpt-4o-mini", APIKeyEnv: "VARLOOM_TEST_KEY"})
	require.NoError(t, err)
	require.NotNil(t, c)
}

func TestErrorClassification(t *testing.T) {
	require.True(t, isRateLimitError(errors.New("429 Too Many Requests")))
	require.True(t, isRateLimitError(errors.New("rate limit exceeded")))
	require.False(t, isRateLimitError(errors.New("401 unauthorized")))

	require.True(t, isServerError(errors.New("500 Internal Server Error")))
	require.True(t, isServerError(errors.New("upstream server_error")))
	require.False(t, isServerError(errors.New("400 bad request")))
}
