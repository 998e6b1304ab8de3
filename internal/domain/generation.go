package domain

// FailureKind classifies why answer generation did not produce model text.
type FailureKind string

const (
	FailureRateLimited FailureKind = "rate_limited"
	FailureUpstream    FailureKind = "upstream"
	FailureCanceled    FailureKind = "canceled"
)

// GenerationFailure describes a degraded generation.
type GenerationFailure struct {
	Kind    FailureKind
	Message string
}

// Generation is the outcome of answer generation. Exactly one of Text or
// Failure is meaningful.
type Generation struct {
	Text    string
	Failure *GenerationFailure
}

// Degraded returns true if generation failed
func (g Generation) Degraded() bool {
	return g.Failure != nil
}

// AnswerText renders the generation as user-facing text. Failures become a
// readable error sentence rather than an empty answer.
func (g Generation) AnswerText() string {
	if g.Failure == nil {
		return g.Text
	}
	return "Error generating answer: " + g.Failure.Message
}

// CompletionRequest is a provider-neutral chat completion call.
type CompletionRequest struct {
	Model       string
	Temperature float32
	MaxTokens   int
	Messages    []ChatTurn
}
