package completion

import "context"

// EchoProvider answers without calling any model. It is useful offline and in tests.
type EchoProvider struct{}

func (EchoProvider) Name() string { return "echo" }

func (EchoProvider) Generate(_ context.Context, prompt string) (string, error) {
	return "AI response to: " + prompt, nil
}
