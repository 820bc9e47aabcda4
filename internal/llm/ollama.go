package llm

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// Ollama answers through a local Ollama chat endpoint.
type Ollama struct {
	url       string
	model     string
	maxTokens int
	client    *http.Client
}

// NewOllama creates a client for the Ollama server at url.
func NewOllama(url, model string, maxTokens int, timeout time.Duration) *Ollama {
	return &Ollama{
		url:       strings.TrimRight(url, "/"),
		model:     model,
		maxTokens: maxTokens,
		client:    &http.Client{Timeout: timeout},
	}
}

type ollamaRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options"`
}

type ollamaResponse struct {
	Message         chatMessage `json:"message"`
	PromptEvalCount int         `json:"prompt_eval_count"`
	EvalCount       int         `json:"eval_count"`
}

// Complete implements Client.
func (o *Ollama) Complete(ctx context.Context, p Prompt) (*Response, error) {
	var msgs []chatMessage
	if p.System != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: p.System})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: p.User})

	req := ollamaRequest{
		Model:    o.model,
		Messages: msgs,
		Options:  map[string]any{"temperature": 0.2, "num_predict": o.maxTokens},
	}
	var out ollamaResponse
	if err := postJSON(ctx, o.client, "ollama", o.url+"/api/chat", nil, req, &out); err != nil {
		return nil, err
	}
	return &Response{
		Content:    strings.TrimSpace(out.Message.Content),
		Provider:   "ollama",
		TokensUsed: out.PromptEvalCount + out.EvalCount,
	}, nil
}
