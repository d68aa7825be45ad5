package genai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/generativelanguage/v1beta"

	"github.com/loggas/loggas-backend/pkg/config"
)

func TestModelName(t *testing.T) {
	assert.Equal(t, "models/gemini-2.0-flash", modelName(""))
	assert.Equal(t, "models/gemini-pro", modelName("gemini-pro"))
	assert.Equal(t, "models/gemini-pro", modelName("models/gemini-pro"))
}

func TestExtractText(t *testing.T) {
	assert.Equal(t, "", ExtractText(nil))
	resp := &generativelanguage.GenerateContentResponse{
		Candidates: []*generativelanguage.Candidate{
			{Content: nil},
			{Content: &generativelanguage.Content{Parts: []*generativelanguage.Part{
				{Text: " Sell more water. "},
				{Text: ""},
				{Text: "Restock P13."},
			}}},
		},
	}
	assert.Equal(t, "Sell more water.\nRestock P13.", ExtractText(resp))
}

func TestClientWithoutKeyIsDisabled(t *testing.T) {
	client, err := NewClient(context.Background(), config.GeminiConfig{})
	require.NoError(t, err)
	_, err = client.Generate(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrDisabled)
}
