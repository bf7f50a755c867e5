package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/nbenliogludev/go-region-ai-agent/internal/action"
)

var (
	ErrBackend           = errors.New("backend error")
	ErrMissingCredential = errors.New("missing credential")
	ErrUnknownProvider   = errors.New("unknown provider")
)

// Summary of the synthetic done returned when a model keeps answering with
// something the normalizer cannot use.
const CouldNotDetermine = "could not determine next action"

// Request is one "what next" question for the model.
type Request struct {
	Image     []byte
	MediaType string
	Objective string
	History   []action.Action
	// Region size in screen pixels; zero when unknown.
	RegionWidth, RegionHeight int
}

// Backend is the capability the automation loop depends on.
type Backend interface {
	Name() string
	NextActions(ctx context.Context, req Request) ([]action.Action, error)
}

// Turn is a single prompt plus screenshot sent to a provider.
type Turn struct {
	Prompt    string
	Image     []byte
	MediaType string
}

// Provider packages a turn for one vendor API and extracts the reply text.
type Provider interface {
	Name() string
	Complete(ctx context.Context, turn Turn) (string, error)
}

// Conversational providers keep a running transcript across turns. Remember
// is called only for turns whose reply parsed into actions.
type Conversational interface {
	Remember(turn Turn, reply string)
	Reset()
}

type BackendError struct {
	Provider string
	Cause    error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s backend: %v", e.Provider, e.Cause)
}

func (e *BackendError) Unwrap() []error {
	return []error{ErrBackend, e.Cause}
}
