package gcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"cloud.google.com/go/vertexai/genai"

	"github.com/Lllllllleong/paymentproofflow/internal/models"
)

const extractorSystemPrompt = "You are a payment-receipt reader. You are given a photo or scan of a bank transfer slip and must return the transfer details as JSON. Accuracy matters more than completeness: use null for any value you cannot read with confidence."

const extractorUserPrompt = `Read this payment slip image and return a JSON object with exactly these keys: transferFromWhom, transferToWhom, transferFromAccountNo, transferToAccountNo, transferDateTime, amount, transactionID, transferReceiptMemo.

For 'transferDateTime', use ISO 8601 format with timezone UTC+7.
For 'amount', extract the numerical value, multiply it by 100, and provide the result as an integer (the value in the smallest currency unit).
If a value isn't clear, use null.`

// Extractor reads transfer fields off staged receipt images with a Vertex AI
// generative model configured for JSON output.
type Extractor struct {
	model      *genai.GenerativeModel
	baseClient *genai.Client
}

// NewExtractor creates an Extractor for the given project and region.
func NewExtractor(ctx context.Context, projectID, region string) (*Extractor, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewExtractor: projectID and region cannot be empty")
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	model := baseClient.GenerativeModel("gemini-1.5-flash")
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(extractorSystemPrompt)},
	}
	model.GenerationConfig = genai.GenerationConfig{
		// Force JSON output so the response parses without fence stripping.
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.0),
	}

	return &Extractor{model: model, baseClient: baseClient}, nil
}

// ExtractFields sends one staged JPEG to the model and decodes the returned
// transfer fields.
func (e *Extractor) ExtractFields(ctx context.Context, imagePath string) (models.ReceiptFields, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return models.ReceiptFields{}, fmt.Errorf("read %s: %w", imagePath, err)
	}

	resp, err := e.model.GenerateContent(ctx,
		genai.ImageData("jpeg", data),
		genai.Text(extractorUserPrompt),
	)
	if err != nil {
		return models.ReceiptFields{}, fmt.Errorf("generate content for %s: %w", imagePath, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return models.ReceiptFields{}, fmt.Errorf("model returned no content for %s", imagePath)
	}
	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return models.ReceiptFields{}, fmt.Errorf("model returned a non-text part for %s", imagePath)
	}

	var fields models.ReceiptFields
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return models.ReceiptFields{}, fmt.Errorf("decode extraction response for %s: %w", imagePath, err)
	}
	return fields, nil
}

// Close releases the underlying client.
func (e *Extractor) Close() error {
	if e.baseClient != nil {
		return e.baseClient.Close()
	}
	return nil
}
