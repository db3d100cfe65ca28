package aimention

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/coderoom/internal/aireply"
	"github.com/dmitrijs2005/coderoom/internal/logging"
	"github.com/dmitrijs2005/coderoom/internal/server/genai"
)

// Outcome labels what became of one invocation.
type Outcome string

const (
	OutcomeOK    Outcome = "ok"
	OutcomeEmpty Outcome = "empty"
	OutcomeError Outcome = "error"
)

// FailureText is the room notice sent when failures are surfaced.
const FailureText = "AI is unavailable right now, please try again."

// Interceptor runs "@ai" messages through a generator.
type Interceptor struct {
	generator     genai.Generator
	match         Matcher
	logger        logging.Logger
	surfaceErrors bool
	observe       func(Outcome)
}

type Option func(*Interceptor)

// WithMatcher swaps the invocation predicate.
func WithMatcher(m Matcher) Option {
	return func(i *Interceptor) { i.match = m }
}

// WithFailureNotice makes failed or empty generations produce a
// FailureText reply instead of nothing.
func WithFailureNotice(on bool) Option {
	return func(i *Interceptor) { i.surfaceErrors = on }
}

// WithObserver is called once per invocation with its outcome.
func WithObserver(fn func(Outcome)) Option {
	return func(i *Interceptor) { i.observe = fn }
}

func New(generator genai.Generator, logger logging.Logger, opts ...Option) *Interceptor {
	i := &Interceptor{
		generator: generator,
		match:     ContainsMarker,
		logger:    logger.With("module", "aimention"),
		observe:   func(Outcome) {},
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Matches reports whether text is an invocation. Matching messages are
// never relayed as user messages.
func (i *Interceptor) Matches(text string) bool {
	return i.match(text)
}

// Handle generates the reply to text. ok is false when text is not an
// invocation. A nil reply with ok true means nothing is to be sent.
func (i *Interceptor) Handle(ctx context.Context, text string) (reply *aireply.Reply, ok bool) {
	if !i.match(text) {
		return nil, false
	}

	raw, err := i.generator.Generate(ctx, Prompt(text))
	switch {
	case err != nil:
		i.logger.Warn(ctx, "ai generation failed", "error", err)
		i.observe(OutcomeError)
		return i.failure(), true
	case strings.TrimSpace(raw) == "":
		i.logger.Warn(ctx, "ai generation returned empty text")
		i.observe(OutcomeEmpty)
		return i.failure(), true
	}

	i.observe(OutcomeOK)
	r := aireply.Shape(raw)
	return &r, true
}

func (i *Interceptor) failure() *aireply.Reply {
	if !i.surfaceErrors {
		return nil
	}
	return &aireply.Reply{Raw: FailureText, Text: FailureText}
}
