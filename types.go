package changeset

import (
	"time"

	"github.com/goliatone/go-changeset/pkg/activity"
)

// Change is one pending, validated field replacement surfaced by the
// Changes view.
type Change struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// FieldError pairs a rejected candidate value with the validator's
// diagnostic for one field.
type FieldError struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
	Err   error  `json:"-"`
}

// RuleContext carries inputs needed when evaluating a field rule.
type RuleContext struct {
	Key      string
	NewValue any
	OldValue any
	Now      *time.Time
	Args     map[string]any
	Metadata map[string]any
}

func (ctx RuleContext) withDefaultNow() RuleContext {
	if ctx.Now != nil {
		return ctx
	}
	now := time.Now()
	ctx.Now = &now
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	ctx = ctx.withDefaultNow()
	return *ctx.Now
}

func (ctx RuleContext) withDefaultMaps() RuleContext {
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) withDefaults() RuleContext {
	return ctx.withDefaultNow().withDefaultMaps()
}

// Evaluator executes rule expressions against a field context.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string, opts ...CompileOption) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// CompileOption configures evaluator compile behaviour.
type CompileOption interface {
	applyCompileOption(*compileConfig)
}

type compileConfig struct{}

type compileOptionFunc func(*compileConfig)

func (f compileOptionFunc) applyCompileOption(cfg *compileConfig) {
	if f != nil {
		f(cfg)
	}
}

type Option func(*config)

type config struct {
	validator     Validator
	logger        ValidationLogger
	programCache  ProgramCache
	functions     *FunctionRegistry
	activityHooks activity.Hooks
}

func applyOptions(opts []Option) config {
	cfg := config{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithValidator configures the validator invoked on every proposed change.
// Without one, every proposal is unconditionally accepted.
func WithValidator(v Validator) Option {
	return func(cfg *config) {
		cfg.validator = v
	}
}

// WithValidatorFunc is shorthand for WithValidator(ValidatorFunc(fn)).
func WithValidatorFunc(fn func(key string, newValue, oldValue any) error) Option {
	return func(cfg *config) {
		cfg.validator = ValidatorFunc(fn)
	}
}
