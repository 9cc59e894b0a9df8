package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGenerator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		cfg          FactoryConfig
		wantProvider string
		wantErr      string
	}{
		{
			name: "gemini",
			cfg: FactoryConfig{
				Provider: "gemini",
				Timeout:  30 * time.Second,
				Gemini:   GeminiConfig{APIKey: "gm-test-key"},
			},
			wantProvider: "gemini",
		},
		{
			name: "gemini without key",
			cfg: FactoryConfig{
				Provider: "gemini",
			},
			wantErr: "API key is required",
		},
		{
			name: "openai",
			cfg: FactoryConfig{
				Provider:    "openai",
				Timeout:     30 * time.Second,
				MaxRetries:  3,
				Temperature: 0.7,
				OpenAI:      OpenAIConfig{APIKey: "sk-test-key"},
			},
			wantProvider: "openai",
		},
		{
			name: "anthropic",
			cfg: FactoryConfig{
				Provider:  "anthropic",
				Timeout:   45 * time.Second,
				Anthropic: AnthropicConfig{APIKey: "sk-ant-test-key"},
			},
			wantProvider: "anthropic",
		},
		{
			name:    "unknown",
			cfg:     FactoryConfig{Provider: "mistral"},
			wantErr: `unsupported LLM provider: "mistral"`,
		},
		{
			name:    "empty",
			cfg:     FactoryConfig{},
			wantErr: "unsupported LLM provider",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			gen, err := NewGenerator(context.Background(), tc.cfg)
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				assert.Nil(t, gen)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantProvider, gen.Provider())
		})
	}
}

func TestOperationFromContext(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "generate", OperationFromContext(context.Background()))
	assert.Equal(t, "classify_abstract", OperationFromContext(WithOperation(context.Background(), "classify_abstract")))
	assert.Equal(t, "generate", OperationFromContext(WithOperation(context.Background(), "")))
}
