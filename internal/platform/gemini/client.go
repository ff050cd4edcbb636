package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"dietchain/internal/completion"
)

// DefaultVisionModel is used to transcribe scanned reports.
const DefaultVisionModel = "gemini-1.5-flash"

// Client is a client for the Gemini API.
type Client struct {
	client      *genai.Client
	visionModel string
}

// NewClient creates a new Gemini client.
func NewClient(ctx context.Context, apiKey string) (*Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &Client{client: client, visionModel: DefaultVisionModel}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// Complete sends a text prompt to the named model.
// A fresh GenerativeModel is built per call so concurrent requests never share generation settings.
func (c *Client) Complete(ctx context.Context, req completion.Request) (string, error) {
	model := c.client.GenerativeModel(req.Model)
	if req.Temperature > 0 {
		model.SetTemperature(req.Temperature)
	}
	if req.MaxOutputTokens > 0 {
		model.SetMaxOutputTokens(req.MaxOutputTokens)
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return "", err
	}
	return responseText(resp)
}

// TranscribeImage extracts the text of a photographed or scanned medical report.
func (c *Client) TranscribeImage(ctx context.Context, format string, imageData []byte) (string, error) {
	model := c.client.GenerativeModel(c.visionModel)
	model.SetTemperature(0)

	prompt := []genai.Part{
		genai.ImageData(format, imageData),
		genai.Text("Transcribe all text in this medical report image exactly as written. Keep test names, values, units and reference ranges on their own lines. Respond with the transcription only."),
	}

	resp, err := model.GenerateContent(ctx, prompt...)
	if err != nil {
		return "", err
	}
	return responseText(resp)
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from Gemini")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("unexpected response format from Gemini")
	}
	return b.String(), nil
}
