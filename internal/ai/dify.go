package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// AgentEndpoint is the per-agent upstream binding: one Dify chat endpoint
// plus its bearer key.
type AgentEndpoint struct {
	APIURL string
	APIKey string
}

// Answer is the usable part of one blocking-mode upstream reply.
type Answer struct {
	Text           string
	ConversationID string
}

type DifyClient struct {
	httpClient *http.Client
}

func NewDifyClient() *DifyClient {
	return &DifyClient{
		httpClient: &http.Client{Timeout: 90 * time.Second},
	}
}

type chatRequest struct {
	Inputs         map[string]interface{} `json:"inputs"`
	Query          string                 `json:"query"`
	User           string                 `json:"user"`
	ResponseMode   string                 `json:"response_mode"`
	ConversationID string                 `json:"conversation_id,omitempty"`
}

// Chat performs one blocking-mode round trip. conversationID is the
// upstream-side id from an earlier turn, empty on the first one.
func (c *DifyClient) Chat(ctx context.Context, endpoint AgentEndpoint, query, user, conversationID string) (Answer, error) {
	reqBody := chatRequest{
		Inputs:         map[string]interface{}{},
		Query:          query,
		User:           user,
		ResponseMode:   "blocking",
		ConversationID: conversationID,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return Answer{}, fmt.Errorf("marshal upstream request failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.APIURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return Answer{}, fmt.Errorf("build upstream request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+endpoint.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Answer{}, fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Answer{}, fmt.Errorf("read upstream response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return Answer{}, fmt.Errorf("upstream response status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed struct {
		Answer         string `json:"answer"`
		ConversationID string `json:"conversation_id"`
		Choices        []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Answer{}, fmt.Errorf("parse upstream json failed: %w", err)
	}

	// Some deployments answer in OpenAI choices shape instead.
	text := parsed.Answer
	if text == "" && len(parsed.Choices) > 0 {
		text = parsed.Choices[0].Message.Content
	}

	return Answer{
		Text:           text,
		ConversationID: parsed.ConversationID,
	}, nil
}
