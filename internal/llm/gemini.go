// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/rotisserie/eris"
	"google.golang.org/api/option"

	"github.com/pdiddy/litreview/pkg/types"
)

const (
	defaultGeminiModel     = "gemini-2.0-flash"
	defaultGeminiEmbedding = "text-embedding-004"
	pdfMIMEType            = "application/pdf"
)

// uploadPollInterval is how often an upload is checked until the service
// finishes processing it.
var uploadPollInterval = 2 * time.Second

// GeminiClient implements Generator, Uploader and Embedder on the Gemini API.
type GeminiClient struct {
	client     *genai.Client
	model      string
	embedModel string
}

// NewGeminiClient creates a Gemini client. Empty model names select defaults.
func NewGeminiClient(ctx context.Context, apiKey, model, embedModel string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, eris.Wrap(err, "gemini: create client")
	}
	if model == "" {
		model = defaultGeminiModel
	}
	if embedModel == "" {
		embedModel = defaultGeminiEmbedding
	}
	return &GeminiClient{client: client, model: model, embedModel: embedModel}, nil
}

// AcceptsFiles reports true: Gemini reads uploaded PDFs directly.
func (c *GeminiClient) AcceptsFiles() bool { return true }

// Generate sends the parts as one user turn and returns the concatenated
// text of the first candidate.
func (c *GeminiClient) Generate(ctx context.Context, model string, parts ...Part) (string, error) {
	if model == "" {
		model = c.model
	}
	gparts := make([]genai.Part, 0, len(parts))
	for _, p := range parts {
		if p.File != nil {
			gparts = append(gparts, genai.FileData{MIMEType: p.File.MIMEType, URI: p.File.URI})
			continue
		}
		gparts = append(gparts, genai.Text(p.Text))
	}

	resp, err := c.client.GenerativeModel(model).GenerateContent(ctx, gparts...)
	if err != nil {
		return "", eris.Wrap(err, "gemini: generate content")
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", eris.New("gemini: no response candidates")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	if b.Len() == 0 {
		return "", eris.New("gemini: candidate has no text")
	}
	return b.String(), nil
}

// Upload sends a PDF to the Gemini File API and waits until it is active.
func (c *GeminiClient) Upload(ctx context.Context, path string) (types.FileRef, error) {
	f, err := os.Open(path)
	if err != nil {
		return types.FileRef{}, eris.Wrapf(err, "gemini: open %s", path)
	}
	defer f.Close()

	file, err := c.client.UploadFile(ctx, "", f, &genai.UploadFileOptions{
		DisplayName: filepath.Base(path),
		MIMEType:    pdfMIMEType,
	})
	if err != nil {
		return types.FileRef{}, eris.Wrapf(err, "gemini: upload %s", path)
	}

	for file.State == genai.FileStateProcessing {
		select {
		case <-ctx.Done():
			return types.FileRef{}, ctx.Err()
		case <-time.After(uploadPollInterval):
		}
		if file, err = c.client.GetFile(ctx, file.Name); err != nil {
			return types.FileRef{}, eris.Wrapf(err, "gemini: poll upload %s", path)
		}
	}
	if file.State == genai.FileStateFailed {
		return types.FileRef{}, eris.Errorf("gemini: processing failed for %s", path)
	}

	mime := file.MIMEType
	if mime == "" {
		mime = pdfMIMEType
	}
	return types.FileRef{URI: file.URI, MIMEType: mime}, nil
}

// Embed returns one embedding per text in a single batch request, so one
// limiter token in Pace covers the whole call. At most MaxEmbedBatch texts
// are accepted.
func (c *GeminiClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if len(texts) > MaxEmbedBatch {
		return nil, eris.Errorf("gemini: %d texts exceed the batch limit of %d", len(texts), MaxEmbedBatch)
	}
	em := c.client.EmbeddingModel(c.embedModel)
	b := em.NewBatch()
	for _, t := range texts {
		b.AddContent(genai.Text(t))
	}
	res, err := em.BatchEmbedContents(ctx, b)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: batch embed contents")
	}
	return batchValues(res, len(texts))
}

func batchValues(res *genai.BatchEmbedContentsResponse, n int) ([][]float32, error) {
	if res == nil || len(res.Embeddings) != n {
		got := 0
		if res != nil {
			got = len(res.Embeddings)
		}
		return nil, eris.Errorf("gemini: got %d embeddings for %d texts", got, n)
	}
	out := make([][]float32, n)
	for i, e := range res.Embeddings {
		if e == nil {
			return nil, eris.Errorf("gemini: no embedding values for text %d", i)
		}
		out[i] = e.Values
	}
	return out, nil
}

// Close releases the underlying connection.
func (c *GeminiClient) Close() error {
	return c.client.Close()
}
