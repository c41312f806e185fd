package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/felixgeelhaar/ask/internal/conversation"
	"github.com/felixgeelhaar/ask/internal/credential"
	"github.com/felixgeelhaar/ask/internal/observe"
)

// DefaultBaseURL is the OpenAI API root.
const DefaultBaseURL = "https://api.openai.com/v1"

// OpenAIClient talks to an OpenAI-compatible chat-completion endpoint.
type OpenAIClient struct {
	// BaseURL is the API root; requests go to BaseURL + "/chat/completions".
	BaseURL string
	// User is sent as the end-user tag of every request.
	User string
	// Credential is consulted on every call so a rotated key is picked up.
	Credential credential.Source
	// HTTPClient overrides the transport. Nil means http.DefaultClient.
	HTTPClient *http.Client

	observe *observe.Observer
	// LastUsage is the token usage of the most recent successful call.
	LastUsage Usage
}

// NewOpenAIClient returns a client for baseURL using src for the bearer
// credential. An empty baseURL means DefaultBaseURL.
func NewOpenAIClient(baseURL, user string, src credential.Source, o *observe.Observer) *OpenAIClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &OpenAIClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		User:       user,
		Credential: src,
		observe:    o,
	}
}

func (c *OpenAIClient) client() (*openai.Client, error) {
	if c.Credential == nil {
		return nil, ErrMissingCredential
	}
	key, err := c.Credential()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingCredential, err)
	}

	config := openai.DefaultConfig(key)
	if c.BaseURL != "" {
		config.BaseURL = c.BaseURL
	}
	if c.HTTPClient != nil {
		config.HTTPClient = c.HTTPClient
	}
	return openai.NewClientWithConfig(config), nil
}

func (c *OpenAIClient) obs() *observe.Observer {
	if c.observe == nil {
		c.observe = observe.Nop()
	}
	return c.observe
}

// Complete implements Completer.
func (c *OpenAIClient) Complete(ctx context.Context, state *conversation.State, content conversation.Content) (conversation.Message, error) {
	ctx, span := c.obs().StartSpan(ctx, "provider.Complete")
	defer span.End()
	span.SetAttributes(attribute.String("model", state.Model))

	msg, err := c.complete(ctx, state, content)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return msg, err
}

func (c *OpenAIClient) complete(ctx context.Context, state *conversation.State, content conversation.Content) (conversation.Message, error) {
	state.Append(conversation.RoleUser, content)

	client, err := c.client()
	if err != nil {
		return conversation.Message{}, err
	}

	req := BuildRequest(state, c.User)
	c.obs().Log().Debug().Str("model", req.Model).Int("messages", len(req.Messages)).Msg("requesting completion")

	resp, err := client.CreateChatCompletion(ctx, req)
	if err != nil {
		return conversation.Message{}, classify(err)
	}
	if len(resp.Choices) == 0 {
		return conversation.Message{}, ErrEmptyResponse
	}
	text := resp.Choices[0].Message.Content
	if text == "" {
		return conversation.Message{}, fmt.Errorf("%w: first choice has no content", ErrMalformedResponse)
	}

	c.LastUsage = Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	c.obs().Log().Debug().Int("total_tokens", resp.Usage.TotalTokens).Msg("completion received")

	return state.Append(conversation.RoleAssistant, conversation.Text(text)), nil
}

// BuildRequest converts state into a chat-completion request. Reasoning
// models reject sampling parameters, so they are only set for other models.
func BuildRequest(state *conversation.State, user string) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, len(state.Messages))
	for i, m := range state.Messages {
		msgs[i] = toOpenAI(m)
	}
	req := openai.ChatCompletionRequest{
		Model:    state.Model,
		Messages: msgs,
		User:     user,
	}
	if !conversation.IsReasoningModel(state.Model) {
		req.MaxTokens = MaxTokens
		req.Temperature = Temperature
	}
	return req
}

func toOpenAI(m conversation.Message) openai.ChatCompletionMessage {
	msg := openai.ChatCompletionMessage{Role: string(m.Role)}
	if !m.Content.IsMultipart() {
		msg.Content = m.Content.String()
		return msg
	}
	for _, p := range m.Content.Parts() {
		switch p.Type {
		case conversation.PartText:
			msg.MultiContent = append(msg.MultiContent, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeText,
				Text: p.Text,
			})
		case conversation.PartImage:
			msg.MultiContent = append(msg.MultiContent, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    p.Image.URL,
					Detail: openai.ImageURLDetail(p.Image.Detail),
				},
			})
		}
	}
	return msg
}

// classify maps client errors onto the package sentinels.
func classify(err error) error {
	var (
		apiErr    *openai.APIError
		reqErr    *openai.RequestError
		urlErr    *url.Error
		netErr    net.Error
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &apiErr):
		return fmt.Errorf("%w: status %d: %s", ErrMalformedResponse, apiErr.HTTPStatusCode, apiErr.Message)
	case errors.As(err, &reqErr):
		return fmt.Errorf("%w: status %d: %v", ErrMalformedResponse, reqErr.HTTPStatusCode, reqErr.Err)
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	case errors.As(err, &urlErr), errors.As(err, &netErr),
		errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrTransport, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
}
