package pipeline

import (
	"context"

	"omegacode/llm"
	"omegacode/prompt"
)

// oracleClient adapts *llm.Client to the loop's Oracle interface.
type oracleClient struct {
	client      *llm.Client
	temperature *float64
}

// NewOracle wraps an llm client as a pipeline oracle. temperature 0 uses
// the provider default.
func NewOracle(client *llm.Client, temperature float64) Oracle {
	o := &oracleClient{client: client}
	if temperature != 0 {
		o.temperature = &temperature
	}
	return o
}

func (o *oracleClient) Generate(ctx context.Context, req prompt.Request) (string, error) {
	resp, err := o.client.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		Temperature: o.temperature,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
