package changeset

import (
	"errors"
	"fmt"
)

// Rules maps field keys to rule expressions. A rule that evaluates to the
// boolean true accepts the proposal; any other outcome rejects it and becomes
// the diagnostic payload. Fields without a rule are always accepted.
//
// Expressions are evaluated with these bindings:
//
//	key      the field key being proposed
//	value    the proposed value
//	old      the current (pending-aware) value
//	now      evaluation timestamp
//	args     caller-supplied arguments
//	metadata caller-supplied metadata
type Rules map[string]string

// RuleValidatorOption configures a rule validator instance.
type RuleValidatorOption func(*ruleValidator)

// RuleWithArgs supplies the args binding made available to rule expressions.
func RuleWithArgs(args map[string]any) RuleValidatorOption {
	return func(v *ruleValidator) {
		v.args = args
	}
}

// RuleWithMetadata supplies the metadata binding made available to rule
// expressions.
func RuleWithMetadata(metadata map[string]any) RuleValidatorOption {
	return func(v *ruleValidator) {
		v.metadata = metadata
	}
}

type ruleValidator struct {
	evaluator Evaluator
	rules     Rules
	compiled  map[string]CompiledRule
	args      map[string]any
	metadata  map[string]any
}

// NewRuleValidator compiles rules against evaluator and returns a Validator
// driven by them. A nil evaluator falls back to the expr engine. Compilation
// failures surface immediately rather than on first proposal.
func NewRuleValidator(evaluator Evaluator, rules Rules, opts ...RuleValidatorOption) (Validator, error) {
	if evaluator == nil {
		evaluator = NewExprEvaluator()
	}
	v := &ruleValidator{
		evaluator: evaluator,
		rules:     make(Rules, len(rules)),
		compiled:  make(map[string]CompiledRule, len(rules)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	for key, expr := range rules {
		if key == "" {
			return nil, fmt.Errorf("changeset: rule key must not be empty")
		}
		if expr == "" {
			return nil, fmt.Errorf("changeset: rule for %q must not be empty", key)
		}
		compiled, err := evaluator.Compile(expr)
		if err != nil {
			return nil, wrapEvaluationError(evaluatorEngineName(evaluator), expr, key, err)
		}
		v.rules[key] = expr
		v.compiled[key] = compiled
	}
	return v, nil
}

// ValidateField implements Validator by evaluating the field's compiled rule.
func (v *ruleValidator) ValidateField(key string, newValue, oldValue any) error {
	rule, ok := v.compiled[key]
	if !ok {
		return nil
	}
	ctx := RuleContext{
		Key:      key,
		NewValue: newValue,
		OldValue: oldValue,
		Args:     v.args,
		Metadata: v.metadata,
	}.withDefaults()
	outcome, err := rule.Evaluate(ctx)
	if err != nil {
		return wrapEvaluationError(evaluatorEngineName(v.evaluator), v.rules[key], key, err)
	}
	return rejectionFromOutcome(outcome)
}

// rejectionFromOutcome maps a rule outcome onto the validator contract: only
// the boolean true accepts; every other value is the rejection payload.
func rejectionFromOutcome(outcome any) error {
	switch value := outcome.(type) {
	case nil:
		return errors.New("validation failed")
	case bool:
		if value {
			return nil
		}
		return errors.New("validation failed")
	case string:
		return errors.New(value)
	case error:
		return value
	case []string:
		errs := make([]error, 0, len(value))
		for _, message := range value {
			errs = append(errs, errors.New(message))
		}
		return errors.Join(errs...)
	case []any:
		errs := make([]error, 0, len(value))
		for _, item := range value {
			if message, ok := item.(string); ok {
				errs = append(errs, errors.New(message))
				continue
			}
			errs = append(errs, fmt.Errorf("%v", item))
		}
		return errors.Join(errs...)
	default:
		return fmt.Errorf("%v", value)
	}
}

func evaluatorEngineName(e Evaluator) string {
	if e == nil {
		return "unknown"
	}
	switch fmt.Sprintf("%T", e) {
	case "*changeset.exprEvaluator":
		return "expr"
	case "*changeset.celEvaluator":
		return "cel"
	case "*changeset.jsEvaluator":
		return "js"
	default:
		return "custom"
	}
}

// NewWithRules wraps content in a changeset whose validator is built from
// rules using the expr engine, honoring any WithProgramCache and function
// registry options supplied.
func NewWithRules(content Record, rules Rules, opts ...Option) (*Changeset, error) {
	cs := New(content, opts...)
	var exprOpts []ExprEvaluatorOption
	if cache := cs.cfg.programCache; cache != nil {
		exprOpts = append(exprOpts, ExprWithProgramCache(cache))
	}
	if registry := cs.cfg.functions; registry != nil {
		exprOpts = append(exprOpts, ExprWithFunctionRegistry(registry))
	}
	validator, err := NewRuleValidator(NewExprEvaluator(exprOpts...), rules)
	if err != nil {
		return nil, err
	}
	cs.cfg.validator = validator
	return cs, nil
}
