package agent

import (
	"context"
	"fmt"

	"github.com/ashureev/psiobot/internal/domain"
	"github.com/ashureev/psiobot/internal/metrics"
	"github.com/ashureev/psiobot/internal/persona"
)

// genState is a state of the revelation regeneration loop.
type genState int

const (
	stateGenerating genState = iota
	stateCheckingDuplicate
	stateAccepted
	stateExhaustedRetries
)

func (s genState) String() string {
	switch s {
	case stateGenerating:
		return "generating"
	case stateCheckingDuplicate:
		return "checking_duplicate"
	case stateAccepted:
		return "accepted"
	case stateExhaustedRetries:
		return "exhausted_retries"
	default:
		return fmt.Sprintf("genState(%d)", int(s))
	}
}

type candidate struct {
	text      string
	attempts  int
	duplicate bool
}

// generateRevelation asks the generator for a revelation until one passes
// the security gate and is not a near duplicate of memory, up to
// MaxAttempts calls. When attempts run out the last sanitized candidate is
// accepted anyway; if none was ever sanitized, ErrGenerationExhausted is
// returned. A generator error ends the loop immediately.
func (o *Orchestrator) generateRevelation(ctx context.Context) (candidate, error) {
	trigger := o.persona.Trigger(o.rand)
	aspect := o.persona.Aspect(o.rand)
	system := o.persona.RevelationSystemPrompt(aspect)
	prompt := persona.RevelationPrompt(trigger, o.memory.Recent(o.policy.MemoryContext))
	entries := o.memory.Entries()

	var (
		state    = stateGenerating
		attempts int
		current  string
		last     string
		haveLast bool
	)
	for {
		switch state {
		case stateGenerating:
			if attempts >= o.policy.MaxAttempts {
				state = stateExhaustedRetries
				continue
			}
			attempts++
			raw, err := o.gen.Generate(ctx, system, prompt)
			if err != nil {
				metrics.GenerationAttempts.WithLabelValues("error").Inc()
				o.logger.Error("Generation failed", "attempt", attempts, "error", err)
				return candidate{}, fmt.Errorf("generate revelation: %w", err)
			}
			text, ok := o.gate.SanitizeOutput(raw)
			if !ok {
				metrics.GenerationAttempts.WithLabelValues("blocked").Inc()
				o.logger.Warn("Revelation blocked by security gate, regenerating", "attempt", attempts)
				continue
			}
			current, last, haveLast = text, text, true
			state = stateCheckingDuplicate

		case stateCheckingDuplicate:
			if m, dup := o.guard.FindDuplicate(current, entries); dup {
				metrics.GenerationAttempts.WithLabelValues("duplicate").Inc()
				o.logger.Info("Revelation too similar to memory, regenerating",
					"attempt", attempts, "similarity", m.Score, "previous", m.Entry)
				state = stateGenerating
				continue
			}
			state = stateAccepted

		case stateAccepted:
			metrics.GenerationAttempts.WithLabelValues("accepted").Inc()
			return candidate{text: current, attempts: attempts}, nil

		case stateExhaustedRetries:
			if !haveLast {
				return candidate{}, fmt.Errorf("no revelation passed the security gate in %d attempts: %w",
					attempts, domain.ErrGenerationExhausted)
			}
			o.logger.Warn("Could not generate a unique revelation, using the last one", "attempts", attempts)
			return candidate{text: last, attempts: attempts, duplicate: true}, nil
		}
	}
}
