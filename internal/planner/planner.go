package planner

import (
	"fmt"
	"time"

	"github.com/softnix/agentic-core/internal/agenterr"
)

// Config parameterizes one Planner.
type Config struct {
	MaxTokens              int
	RetryMaxAttempts       int
	PreviousOutputBudget   int
	Backoff                BackoffConfig
	Sleep                  func(time.Duration) // overridable for tests
}

// Planner composes prompts, calls the provider, and recovers from
// malformed JSON, retrying a bounded number of times with a shrinking
// previous-output budget on each attempt.
type Planner struct {
	provider Provider
	cfg      Config
}

func New(provider Provider, cfg Config) *Planner {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.RetryMaxAttempts <= 0 {
		cfg.RetryMaxAttempts = 2
	}
	if cfg.PreviousOutputBudget <= 0 {
		cfg.PreviousOutputBudget = maxPreviousOutputChars
	}
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}
	if cfg.Backoff == (BackoffConfig{}) {
		cfg.Backoff = DefaultBackoffConfig()
	}
	return &Planner{provider: provider, cfg: cfg}
}

// MaxRetryAttempts reports the configured retry ceiling, for callers that
// log a retry marker alongside Result.RetryAttempts.
func (p *Planner) MaxRetryAttempts() int {
	return p.cfg.RetryMaxAttempts
}

// Result is the triple build_plan returns: the recovered Plan, the
// reported token usage, and the exact prompt text sent (for the
// iteration record).
type Result struct {
	Plan       Plan
	Usage      Usage
	PromptText string
	// RetryAttempts counts how many parse-error retries occurred.
	RetryAttempts int
}

// BuildPlan performs build_plan(task, iteration, max_iters,
// previous_output, skills_context, memory_context) -> (Plan, TokenUsage,
// prompt_text), retrying on planner_parse_error with a shrinking
// previous-output budget.
func (p *Planner) BuildPlan(runID string, task string, iteration, maxIters int, previousOutput, skillsContext, memoryContext string) Result {
	budget := p.cfg.PreviousOutputBudget

	var last Result
	for attempt := 0; attempt <= p.cfg.RetryMaxAttempts; attempt++ {
		userPrompt := buildUserPrompt(task, iteration, maxIters, previousOutput, skillsContext, memoryContext, budget)
		messages := []Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		}

		content, usage, err := p.provider.Generate(messages, "", p.cfg.MaxTokens)
		if err != nil {
			last = Result{
				Plan:       sentinelPlan(fmt.Sprintf("provider error: %v", err)),
				Usage:      usage,
				PromptText: userPrompt,
			}
		} else {
			plan := parsePlanJSON(content)
			last = Result{Plan: plan, Usage: usage, PromptText: userPrompt}
		}
		last.RetryAttempts = attempt

		if !last.Plan.IsSentinel() {
			return last
		}
		if attempt == p.cfg.RetryMaxAttempts {
			break
		}
		budget = budget / 2
		if budget < 200 {
			budget = 200
		}
		p.cfg.Sleep(DelayForAttempt(attempt+1, p.cfg.Backoff, runID+":"+fmt.Sprint(iteration)+":"+fmt.Sprint(attempt)))
	}
	return last
}

func sentinelPlan(reason string) Plan {
	return Plan{
		Thought:     "fallback parse: " + reason,
		Done:        false,
		FinalOutput: sentinelParseErrorPrefix + reason,
		ParseError:  sentinelParseErrorPrefix + reason,
	}
}

// PlannerError wraps provider-level failures that propagate past
// BuildPlan's own retry loop (none currently do, since BuildPlan always
// returns a sentinel plan instead of an error; this type exists so
// callers that want to distinguish provider outages from successful
// sentinel recovery can wrap errors with agenterr.KindPlanner).
func PlannerError(op string, err error) error {
	return agenterr.New(agenterr.KindPlanner, op, err)
}
