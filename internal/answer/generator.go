// Package answer supplies a response for turns the dialogue engine has
// no template for. The orchestrator treats it as best-effort: a failure
// here never fails the turn.
package answer

import "context"

// Generator produces an alternative response for an utterance within a
// topic. Implementations may call external services.
type Generator interface {
	Generate(ctx context.Context, utterance, topic string) (string, error)
}

// Noop is the wired-by-default generator; it always reports no answer.
type Noop struct{}

var _ Generator = Noop{}

func (Noop) Generate(context.Context, string, string) (string, error) {
	return "", nil
}
