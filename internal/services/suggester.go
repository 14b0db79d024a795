package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	"github.com/Lllllllleong/arfiletagger/internal/corpus"
	"github.com/Lllllllleong/arfiletagger/internal/gcp"
	"github.com/Lllllllleong/arfiletagger/internal/models"
)

// Suggester proposes a tag for a stored reference image.
type Suggester interface {
	Suggest(ctx context.Context, imageID string) (models.Tag, error)
}

// TagSuggester asks Gemini to read a reference image straight from the
// corpus bucket and propose filing details for it.
type TagSuggester struct {
	vertexClient *gcp.VertexClient
	corpus       *corpus.BucketCorpus
}

var _ Suggester = (*TagSuggester)(nil)

// NewTagSuggester creates a suggester for images stored in c.
func NewTagSuggester(vertexClient *gcp.VertexClient, c *corpus.BucketCorpus) *TagSuggester {
	return &TagSuggester{vertexClient: vertexClient, corpus: c}
}

// Suggest returns the model's proposal. The ImageID of the result is always imageID.
func (s *TagSuggester) Suggest(ctx context.Context, imageID string) (models.Tag, error) {
	logCtx := slog.With("imageId", imageID)
	if strings.TrimSpace(imageID) == "" {
		return models.Tag{}, fmt.Errorf("%w: image id must not be blank", models.ErrInvalidInput)
	}

	gcsURI := s.corpus.URI(imageID)
	logCtx.Info("Requesting tag suggestion.", "gcsUri", gcsURI)

	filePart := genai.FileData{
		MIMEType: s.corpus.ContentType(),
		FileURI:  gcsURI,
	}
	geminiResp, err := s.vertexClient.SuggesterModel.GenerateContent(ctx, filePart, genai.Text(gcp.SuggesterUserPrompt))
	if err != nil {
		logCtx.Error("Error calling Vertex AI", "error", err)
		return models.Tag{}, fmt.Errorf("failed to generate content from gemini: %w", err)
	}

	tag, err := parseSuggestion(extractText(geminiResp))
	if err != nil {
		logCtx.Error("Could not parse suggestion", "error", err)
		return models.Tag{}, err
	}
	tag.ImageID = imageID
	logCtx.Info("Tag suggestion ready.", "filename", tag.Filename, "filepath", tag.Filepath)
	return tag, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return sb.String()
}

// parseSuggestion decodes the model's JSON answer, tolerating a markdown fence.
func parseSuggestion(text string) (models.Tag, error) {
	content := strings.TrimSpace(text)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Tag{}, fmt.Errorf("gemini returned an empty suggestion")
	}

	var raw struct {
		Filename string `json:"filename"`
		Filepath string `json:"filepath"`
		Deadline string `json:"deadline"`
	}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return models.Tag{}, fmt.Errorf("failed to decode suggestion %q: %w", content, err)
	}
	if strings.TrimSpace(raw.Filename) == "" || strings.TrimSpace(raw.Filepath) == "" {
		return models.Tag{}, fmt.Errorf("suggestion is missing filename or filepath: %q", content)
	}
	return models.Tag{
		Filename: strings.TrimSpace(raw.Filename),
		Filepath: strings.TrimSpace(raw.Filepath),
		Deadline: strings.TrimSpace(raw.Deadline),
	}, nil
}
