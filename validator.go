package changeset

// Validator gates proposed field changes. A nil return accepts the proposal;
// any non-nil error rejects it and becomes the diagnostic payload recorded on
// the errors view. Implementations are called synchronously, exactly once per
// proposal, and never concurrently with themselves for the same changeset.
type Validator interface {
	ValidateField(key string, newValue, oldValue any) error
}

// ValidatorFunc adapts a plain function to Validator.
type ValidatorFunc func(key string, newValue, oldValue any) error

// ValidateField implements Validator.
func (f ValidatorFunc) ValidateField(key string, newValue, oldValue any) error {
	if f == nil {
		return nil
	}
	return f(key, newValue, oldValue)
}
