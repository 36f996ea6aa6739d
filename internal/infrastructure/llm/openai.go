package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/chemlens/chemlens/internal/config"
	"github.com/chemlens/chemlens/internal/infrastructure/monitoring/logging"
	"github.com/chemlens/chemlens/internal/infrastructure/monitoring/prometheus"
	"github.com/chemlens/chemlens/pkg/errors"
)

var errUnavailable = errors.New(errors.ErrCodeAssistantUnavailable, "llm assistant is not configured")

// client talks to an OpenAI-compatible chat completions endpoint.
type client struct {
	cfg     config.LLMConfig
	httpc   *http.Client
	metrics *prometheus.Metrics
	log     logging.Logger
}

// New constructs the Assistant for the given configuration.  When no API key
// is configured the returned Assistant reports itself unavailable.
func New(cfg config.LLMConfig, metrics *prometheus.Metrics, log logging.Logger) Assistant {
	if !cfg.Available() {
		log.Info("llm assistant disabled: no api key configured")
		return Unavailable{}
	}
	return &client{
		cfg:     cfg,
		httpc:   &http.Client{Timeout: cfg.Timeout},
		metrics: metrics,
		log:     log.Named("llm"),
	}
}

func (c *client) Available() bool { return true }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// complete sends one prompt and returns the model's raw reply text.
func (c *client) complete(ctx context.Context, operation, prompt string) (string, error) {
	started := time.Now()
	reply, err := c.doComplete(ctx, prompt)
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.metrics.ObserveAssistantCall(operation, result, time.Since(started))
	return reply, err
}

func (c *client) doComplete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeSerialization, "encoding chat request")
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeAssistantUnavailable, "building chat request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeAssistantUnavailable, "chat request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.New(errors.ErrCodeAssistantUnavailable,
			fmt.Sprintf("assistant returned status %d", resp.StatusCode))
	}

	var payload chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeAssistantBadOutput, "decoding chat response")
	}
	if len(payload.Choices) == 0 {
		return "", errors.New(errors.ErrCodeAssistantBadOutput, "assistant returned no choices")
	}
	return strings.TrimSpace(payload.Choices[0].Message.Content), nil
}

func (c *client) CleanTerm(ctx context.Context, text string) (string, error) {
	prompt := fmt.Sprintf(
		"You are a chemical procurement expert. Given this raw purchase item description, "+
			"reply with ONLY the canonical chemical or trade name best suited for a registry search. "+
			"No explanations, no punctuation around the name.\n\nDescription: %s", text)
	reply, err := c.complete(ctx, "clean_term", prompt)
	if err != nil {
		return "", err
	}
	// Models occasionally wrap the answer in quotes despite instructions.
	return strings.Trim(reply, `"' `), nil
}

type identityPayload struct {
	CAS  string `json:"cas"`
	INCI string `json:"inci"`
}

func (c *client) LookupKnownIdentity(ctx context.Context, text string) (Identity, error) {
	prompt := fmt.Sprintf(
		"You are a chemical registry expert. For the material described below, reply with a JSON "+
			"object exactly of the form {\"cas\": \"...\", \"inci\": \"...\"}. Use %q for any field "+
			"you are not certain about. Reply with JSON only.\n\nMaterial: %s",
		NotFoundSentinel, text)
	reply, err := c.complete(ctx, "lookup_identity", prompt)
	if err != nil {
		return Identity{}, err
	}

	raw, ok := extractJSONObject(reply)
	if !ok {
		return Identity{}, errors.New(errors.ErrCodeAssistantBadOutput, "no JSON object in assistant reply")
	}
	var payload identityPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return Identity{}, errors.Wrap(err, errors.ErrCodeAssistantBadOutput, "parsing identity reply")
	}

	var id Identity
	if payload.CAS != "" && payload.CAS != NotFoundSentinel {
		id.Identifier = payload.CAS
	}
	if payload.INCI != "" && payload.INCI != NotFoundSentinel {
		id.DescriptiveName = payload.INCI
	}
	return id, nil
}

func (c *client) ExtractParameters(ctx context.Context, text, identifierName string, paramNames []string) (map[string]string, error) {
	fields := append([]string{identifierName}, paramNames...)
	prompt := fmt.Sprintf(
		"Extract the following fields from this chemical purchase description: %s. "+
			"Reply with a JSON object keyed by exactly those field names; use \"N/A\" for any "+
			"field not present in the text. Reply with JSON only.\n\nDescription: %s",
		strings.Join(fields, ", "), text)
	reply, err := c.complete(ctx, "extract_parameters", prompt)
	if err != nil {
		return nil, err
	}

	raw, ok := extractJSONObject(reply)
	if !ok {
		return nil, errors.New(errors.ErrCodeAssistantBadOutput, "no JSON object in assistant reply")
	}
	var payload map[string]string
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeAssistantBadOutput, "parsing parameter reply")
	}

	out := make(map[string]string, len(payload))
	for k, v := range payload {
		v = strings.TrimSpace(v)
		if v == "" || v == "N/A" {
			continue
		}
		out[k] = v
	}
	return out, nil
}

func (c *client) VerifyIdentifierInDocument(ctx context.Context, text, identifier string) (bool, error) {
	prompt := fmt.Sprintf(
		"Does the following document confirm that the material has registry number %s? "+
			"Reply with exactly YES or NO.\n\nDocument:\n%s", identifier, text)
	reply, err := c.complete(ctx, "verify_identifier", prompt)
	if err != nil {
		return false, err
	}
	return strings.HasPrefix(strings.ToUpper(reply), "YES"), nil
}
