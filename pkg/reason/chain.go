package reason

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
)

// Chain tries an ordered list of models until one returns parseable output.
// Free-tier models rate-limit and hallucinate formats; the chain absorbs
// both by falling through to the next model.
type Chain struct {
	client *Client
	models []string
}

// NewChain builds a fallback chain over the given client and model order.
func NewChain(client *Client, models []string) *Chain {
	if client == nil || len(models) == 0 {
		return nil
	}
	return &Chain{client: client, models: models}
}

// Models returns the configured fallback order.
func (ch *Chain) Models() []string {
	return ch.models
}

// CompleteJSON runs the chat through the chain, unmarshals the first
// parseable response into out and returns the model that produced it.
// validate, when non-nil, runs after unmarshal and rejects well-formed JSON
// carrying out-of-contract values.
func (ch *Chain) CompleteJSON(ctx context.Context, msgs []Message, out any, validate func() error) (string, error) {
	var lastErr error
	for _, model := range ch.models {
		resp, err := ch.client.Chat(ctx, model, msgs)
		if err != nil {
			log.Printf("[WARN] model %s failed: %v", model, err)
			lastErr = err
			continue
		}

		if err := json.Unmarshal([]byte(ExtractJSON(resp)), out); err != nil {
			log.Printf("[WARN] model %s returned unparseable output: %v", model, err)
			lastErr = fmt.Errorf("model %s: %w", model, err)
			continue
		}
		if validate != nil {
			if err := validate(); err != nil {
				log.Printf("[WARN] model %s violated the response contract: %v", model, err)
				lastErr = fmt.Errorf("model %s: %w", model, err)
				continue
			}
		}
		return model, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no models configured")
	}
	return "", fmt.Errorf("all models failed: %w", lastErr)
}

// CompleteText runs the chat through the chain and returns the first
// non-empty plain-text response.
func (ch *Chain) CompleteText(ctx context.Context, msgs []Message) (string, error) {
	var lastErr error
	for _, model := range ch.models {
		resp, err := ch.client.Chat(ctx, model, msgs)
		if err != nil {
			log.Printf("[WARN] model %s failed: %v", model, err)
			lastErr = err
			continue
		}
		if resp != "" {
			return resp, nil
		}
		lastErr = fmt.Errorf("model %s returned empty response", model)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no models configured")
	}
	return "", fmt.Errorf("all models failed: %w", lastErr)
}
