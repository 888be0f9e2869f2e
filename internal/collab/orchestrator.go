package collab

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/duolog/duolog-server/internal/config"
	"github.com/duolog/duolog-server/internal/ledger"
	"github.com/duolog/duolog-server/internal/llm"
)

const (
	discussionSystemPrompt = "You are one of two AI assistants collaborating on a user's question. " +
		"Build on your collaborator's points, correct mistakes, and add what is missing. " +
		"Be concise. When the discussion fully addresses the question, say that you agree " +
		"with your collaborator and have nothing more to add."

	synthesisSystemPrompt = "You are writing the final answer after a discussion between two AI assistants. " +
		"Produce a single clean, self-contained answer to the user's question. " +
		"Do not mention the discussion, the other assistant, or the collaborative process."

	continuePrompt = "Continue the discussion: respond to your collaborator's latest message, " +
		"refine or challenge it as needed."

	synthesisPrompt = "Write the final answer to the original question based on the discussion above."

	inputSummaryLimit = 160
)

// Turn is one completed round of the conversation.
type Turn struct {
	Round            int
	Model            string
	Content          string
	IsFinalSynthesis bool
}

// Request carries one conversation's inputs into the orchestrator.
type Request struct {
	ConversationID string
	Prompt         string
	IdentityKey    string
	HasOwnKeys     bool
	APIKeyA        string
	APIKeyB        string
}

// UsageGate increments the caller's conversation counter.
type UsageGate interface {
	Increment(ctx context.Context, identityKey string, hasOwnKeys bool) error
}

// Orchestrator drives the bounded multi-round exchange between the two
// model providers and emits the event stream.
type Orchestrator struct {
	cfg       *config.Config
	providerA llm.Provider
	providerB llm.Provider
	detector  Detector
	gate      UsageGate
	ledger    *ledger.Store
	logger    *slog.Logger
}

// NewOrchestrator wires the orchestrator. Provider A opens round 1;
// provider B runs the synthesis pass.
func NewOrchestrator(
	cfg *config.Config,
	providerA llm.Provider,
	providerB llm.Provider,
	detector Detector,
	gate UsageGate,
	ledgerStore *ledger.Store,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		providerA: providerA,
		providerB: providerB,
		detector:  detector,
		gate:      gate,
		ledger:    ledgerStore,
		logger:    logger,
	}
}

// Run executes one conversation and closes the sink when done.
//
// Round 1 tries provider A and falls back to provider B with a warning.
// Rounds 2..maxRounds alternate speakers; a failed round is skipped.
// Synthesis runs only when agreement was detected and at least two turns
// exist. The usage counter is incremented exactly once, only after a
// conversation that neither errored nor was cancelled.
func (o *Orchestrator) Run(ctx context.Context, req Request, sink Sink) {
	defer sink.Close()

	maxRounds := o.cfg.Collab.MaxRounds
	turns := make([]Turn, 0, maxRounds+1)

	turn, err := o.runTurn(ctx, sink, o.providerA, req, 1, turns, false)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		o.logger.Warn("round 1 failed, falling back",
			"provider", o.providerA.Name(), "error", err)
		sink.Write(warningEvent(fmt.Sprintf("%s is unavailable, continuing with %s",
			o.providerA.Name(), o.providerB.Name())))

		turn, err = o.runTurn(ctx, sink, o.providerB, req, 1, turns, false)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			o.logger.Error("both providers failed in round 1", "error", err)
			sink.Write(errorEvent("both model backends are unavailable"))
			return
		}
	}
	turns = append(turns, turn)
	lastSpeaker := turn.Model

	agreed := false
	for round := 2; round <= maxRounds; round++ {
		provider := o.other(lastSpeaker)
		lastSpeaker = provider.Name()

		turn, err := o.runTurn(ctx, sink, provider, req, round, turns, false)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			o.logger.Warn("round skipped",
				"round", round, "provider", provider.Name(), "error", err)
			sink.Write(warningEvent(fmt.Sprintf("%s did not respond in round %d, skipping",
				provider.Name(), round)))
			continue
		}
		turns = append(turns, turn)

		if len(turns) >= 2 && o.detector.Detect(turn.Content) {
			agreed = true
			break
		}
	}

	if agreed {
		round := turns[len(turns)-1].Round + 1
		turn, err := o.runTurn(ctx, sink, o.providerB, req, round, turns, true)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			o.logger.Warn("synthesis failed, earlier rounds stand", "error", err)
			sink.Write(warningEvent("final synthesis is unavailable"))
		} else {
			turns = append(turns, turn)
		}
	}

	if err := o.gate.Increment(ctx, req.IdentityKey, req.HasOwnKeys); err != nil {
		o.logger.Error("usage increment failed",
			"identity", req.IdentityKey, "error", err)
	}
	sink.Write(conversationCompleteEvent())
}

func (o *Orchestrator) runTurn(
	ctx context.Context,
	sink Sink,
	provider llm.Provider,
	req Request,
	round int,
	turns []Turn,
	isFinal bool,
) (Turn, error) {
	timeout := time.Duration(o.cfg.Collab.TurnTimeoutSeconds) * time.Second
	turnCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	llmReq := o.buildRequest(provider, req, turns, isFinal)

	sink.Write(roundStartEvent(round, provider.Name(), summarize(llmReq.Prompt)))

	result, err := provider.StreamCompletion(turnCtx, llmReq, func(chunk string) {
		sink.Write(contentChunkEvent(round, provider.Name(), chunk, isFinal))
	})
	if err != nil {
		return Turn{}, err
	}

	if result.HasUsage {
		sink.Write(tokenUpdateEvent(provider.ModelID(), result.Usage))
		o.ledger.Record(req.ConversationID, provider.ModelID(), result.Usage)
	}
	sink.Write(roundCompleteEvent(round, provider.Name(), isFinal))

	return Turn{
		Round:            round,
		Model:            provider.Name(),
		Content:          result.Content,
		IsFinalSynthesis: isFinal,
	}, nil
}

func (o *Orchestrator) buildRequest(provider llm.Provider, req Request, turns []Turn, isFinal bool) llm.CompletionRequest {
	history := make([]llm.HistoryEntry, 0, len(turns)+1)
	if len(turns) > 0 {
		history = append(history, llm.HistoryEntry{Role: "user", Content: req.Prompt})
		for _, turn := range turns {
			role := "user"
			if turn.Model == provider.Name() {
				role = "assistant"
			}
			history = append(history, llm.HistoryEntry{Role: role, Content: turn.Content})
		}
	}

	out := llm.CompletionRequest{
		History: history,
		APIKey:  o.keyFor(provider, req),
	}
	switch {
	case isFinal:
		out.System = synthesisSystemPrompt
		out.Prompt = synthesisPrompt
		out.MaxTokens = o.cfg.Collab.SynthesisMaxTokens
	case len(turns) == 0:
		out.System = discussionSystemPrompt
		out.Prompt = req.Prompt
	default:
		out.System = discussionSystemPrompt
		out.Prompt = continuePrompt
	}
	return out
}

func (o *Orchestrator) keyFor(provider llm.Provider, req Request) string {
	if provider.Name() == o.providerA.Name() {
		return req.APIKeyA
	}
	return req.APIKeyB
}

func (o *Orchestrator) other(lastSpeaker string) llm.Provider {
	if lastSpeaker == o.providerA.Name() {
		return o.providerB
	}
	return o.providerA
}

func summarize(prompt string) string {
	trimmed := strings.TrimSpace(prompt)
	runes := []rune(trimmed)
	if len(runes) <= inputSummaryLimit {
		return trimmed
	}
	return string(runes[:inputSummaryLimit]) + "..."
}
