package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/codeclinic/codeclinic/pkg/httpclient"
	"github.com/codeclinic/codeclinic/pkg/retry"
)

const (
	defaultGeminiModel   = "gemini-2.5-flash"
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
)

// GeminiClient implements Client against the Gemini REST API.
type GeminiClient struct {
	APIKey     string
	Model      string
	BaseURL    string
	httpClient *http.Client
	retryCfg   retry.Config
}

// NewGeminiClient creates a Gemini client. model and baseURL fall back
// to gemini-2.5-flash on the public endpoint when empty.
func NewGeminiClient(apiKey, model, baseURL string) *GeminiClient {
	if model == "" {
		model = defaultGeminiModel
	}
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	return &GeminiClient{
		APIKey:     apiKey,
		Model:      model,
		BaseURL:    baseURL,
		httpClient: httpclient.Default(),
		retryCfg:   retry.DefaultConfig(),
	}
}

// SetHTTPClient overrides the HTTP client, mainly for tests.
func (c *GeminiClient) SetHTTPClient(hc *http.Client) { c.httpClient = hc }

func (c *GeminiClient) Validate(_ context.Context) error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// Gemini generateContent wire format.
type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig geminiGenConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	// Temperature 0 keeps quiz output deterministic for a given scan.
	Temperature float64 `json:"temperature"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *GeminiClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	if err := c.Validate(ctx); err != nil {
		return "", err
	}

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("ai: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.BaseURL, c.Model, c.APIKey)

	var text string
	err = retry.Do(ctx, c.retryCfg, func() error {
		var callErr error
		text, callErr = c.call(ctx, url, body)
		return callErr
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

func (c *GeminiClient) call(ctx context.Context, url string, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ai: gemini request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized ||
		resp.StatusCode == http.StatusForbidden {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		// Client-side errors do not heal on retry.
		return "", retry.Stop(fmt.Errorf("ai: gemini responded %d: %s", resp.StatusCode, snippet))
	}
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("ai: gemini responded %d: %s", resp.StatusCode, snippet)
	}

	var out geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("ai: decode response: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("ai: gemini error %d: %s", out.Error.Code, out.Error.Message)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}
