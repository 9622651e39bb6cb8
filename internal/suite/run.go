package suite

import (
	"context"
	"strings"

	"github.com/hpungsan/varloom/internal/errors"
)

// Completer is the opaque chat-completion collaborator. This package never
// inspects or generates text itself.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// RunOutput is the result of one end-to-end suite execution.
type RunOutput struct {
	Prompt  string       `json:"prompt"`
	Reply   string       `json:"reply"`
	Applied *ApplyOutput `json:"applied"`
}

// Run renders the suite, sends the prompt (with tag instructions appended)
// to the completion backend, and applies the finished reply. If the
// completion call fails, no value mutation occurs.
func Run(ctx context.Context, r *Renderer, completer Completer, chatID string, suiteID string) (*RunOutput, error) {
	st, ok := r.Store.Suite(suiteID)
	if !ok {
		// try by name for CLI convenience
		st, ok = r.Store.SuiteByName(suiteID)
	}
	if !ok {
		return nil, errors.NewNotFound("suite", suiteID)
	}

	rendered := r.Render(st, chatID)

	prompt := rendered.Prompt
	if rendered.Instructions != "" {
		prompt = strings.TrimRight(prompt, "\n") + "\n\n" + rendered.Instructions
	}

	reply, err := completer.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	applied, err := Apply(r.Store, st, chatID, reply, rendered.FloorRange)
	if err != nil {
		return nil, err
	}

	return &RunOutput{Prompt: prompt, Reply: reply, Applied: applied}, nil
}
