package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/vertexai/genai"
)

// --- Tag Suggester Model Prompts ---
const SuggesterSystemPrompt = "You are a filing assistant. You look at a photograph of a physical document or object and propose how it should be filed. You must output your response as a single valid JSON object."
const SuggesterUserPrompt = `You will be provided with a photograph of a physical item that a user wants to tag.

Follow these rules precisely:
1.  Propose a short, descriptive filename for the item, without a directory.
2.  Propose a filepath (a directory path using forward slashes) where a file about this item would live.
3.  If the item shows a due date, expiry date or deadline, return it verbatim as "deadline". Otherwise return an empty string.
4.  The output MUST be a single JSON object with exactly three string keys: "filename", "filepath", "deadline". Do not include any text before or after it.

Example output format:
{"filename": "electricity-bill-march", "filepath": "/home/bills/2025", "deadline": "2025-04-15"}`

// VertexClient holds the pre-configured generative models for the app.
type VertexClient struct {
	SuggesterModel *genai.GenerativeModel
	baseClient     *genai.Client
}

// NewVertexClient creates a new client holding all necessary models.
func NewVertexClient(ctx context.Context, projectID, region string) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	suggesterModel := baseClient.GenerativeModel("gemini-1.5-flash")
	suggesterModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(SuggesterSystemPrompt)},
	}
	suggesterModel.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.2),
	}

	return &VertexClient{
		SuggesterModel: suggesterModel,
		baseClient:     baseClient,
	}, nil
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}
