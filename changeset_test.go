package changeset

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/goliatone/go-changeset/pkg/activity"
)

type saveableRecord struct {
	fields  map[string]any
	saves   int
	saveErr error
	onSave  func()
}

func newSaveableRecord(fields map[string]any) *saveableRecord {
	if fields == nil {
		fields = map[string]any{}
	}
	return &saveableRecord{fields: fields}
}

func (r *saveableRecord) Get(key string) any {
	return r.fields[key]
}

func (r *saveableRecord) Set(key string, value any) {
	r.fields[key] = value
}

func (r *saveableRecord) Save(_ context.Context) error {
	r.saves++
	if r.onSave != nil {
		r.onSave()
	}
	return r.saveErr
}

func minLength(n int) Validator {
	return ValidatorFunc(func(key string, newValue, _ any) error {
		s, ok := newValue.(string)
		if !ok {
			return fmt.Errorf("%s must be a string", key)
		}
		if len(s) < n {
			return fmt.Errorf("%s is too short", key)
		}
		return nil
	})
}

func TestSetWithoutValidatorAlwaysAccepts(t *testing.T) {
	record := MapRecord{"firstName": "Michael"}
	cs := New(record)

	if got := cs.Set("firstName", "Peter"); got != "Peter" {
		t.Fatalf("expected Set to return the proposed value, got %v", got)
	}
	if got := cs.Get("firstName"); got != "Peter" {
		t.Fatalf("expected pending value, got %v", got)
	}
	if record["firstName"] != "Michael" {
		t.Fatalf("expected record untouched before execute, got %v", record["firstName"])
	}
	if len(cs.Errors()) != 0 {
		t.Fatalf("expected no errors without a validator, got %v", cs.Errors())
	}
	changes := cs.Changes()
	if len(changes) != 1 || changes[0].Key != "firstName" || changes[0].Value != "Peter" {
		t.Fatalf("unexpected changes view: %v", changes)
	}
	if !cs.IsValid() || cs.IsInvalid() {
		t.Fatalf("expected changeset to be valid")
	}
}

func TestSetRejectionRecordsErrorAndPreservesValue(t *testing.T) {
	record := MapRecord{"lastName": "Bolton"}
	cs := New(record, WithValidator(minLength(3)))

	if got := cs.Set("lastName", "B"); got != "B" {
		t.Fatalf("expected Set to return the rejected value, got %v", got)
	}
	if got := cs.Get("lastName"); got != "Bolton" {
		t.Fatalf("expected Get to return the previous value, got %v", got)
	}
	if cs.HasChanges() {
		t.Fatalf("expected no pending change for rejected proposal")
	}
	errs := cs.Errors()
	if len(errs) != 1 || errs[0].Key != "lastName" || errs[0].Value != "B" {
		t.Fatalf("unexpected errors view: %+v", errs)
	}
	if errs[0].Err == nil || errs[0].Err.Error() != "lastName is too short" {
		t.Fatalf("unexpected diagnostic: %v", errs[0].Err)
	}
	if cs.IsValid() || !cs.IsInvalid() {
		t.Fatalf("expected changeset to be invalid")
	}

	fieldErr, ok := cs.Error("lastName")
	if !ok || fieldErr.Value != "B" {
		t.Fatalf("expected keyed error lookup, got %+v ok=%v", fieldErr, ok)
	}
	if _, ok := cs.Error("firstName"); ok {
		t.Fatalf("expected no error for untouched field")
	}
}

func TestKeyNeverHoldsChangeAndErrorSimultaneously(t *testing.T) {
	record := MapRecord{"lastName": "Bolton"}
	cs := New(record, WithValidator(minLength(3)))

	// error -> change
	cs.Set("lastName", "B")
	cs.Set("lastName", "Bob")
	if len(cs.Errors()) != 0 {
		t.Fatalf("expected revalidation to clear error, got %v", cs.Errors())
	}
	changes := cs.Changes()
	if len(changes) != 1 || changes[0].Value != "Bob" {
		t.Fatalf("expected pending change Bob, got %v", changes)
	}

	// change -> error
	cs.Set("lastName", "Bo")
	if len(cs.Changes()) != 0 {
		t.Fatalf("expected rejected proposal to discard prior pending change, got %v", cs.Changes())
	}
	errs := cs.Errors()
	if len(errs) != 1 || errs[0].Value != "Bo" {
		t.Fatalf("expected error for rejected value, got %+v", errs)
	}
	if got := cs.Get("lastName"); got != "Bolton" {
		t.Fatalf("expected fallthrough to record value, got %v", got)
	}
}

func TestViewsPreserveProposalOrder(t *testing.T) {
	record := MapRecord{}
	cs := New(record)

	cs.Set("b", 2)
	cs.Set("a", 1)
	cs.Set("c", 3)
	cs.Set("b", 20)

	changes := cs.Changes()
	keys := make([]string, 0, len(changes))
	for _, change := range changes {
		keys = append(keys, change.Key)
	}
	if len(keys) != 3 || keys[0] != "b" || keys[1] != "a" || keys[2] != "c" {
		t.Fatalf("expected stable insertion order b,a,c, got %v", keys)
	}
	if changes[0].Value != 20 {
		t.Fatalf("expected re-proposal to keep position with new value, got %v", changes[0].Value)
	}

	again := cs.Changes()
	for i := range changes {
		if again[i] != changes[i] {
			t.Fatalf("expected repeated reads to be stable, got %v vs %v", again, changes)
		}
	}
}

func TestValidatorInvokedExactlyOncePerSetAndNeverOnGet(t *testing.T) {
	record := MapRecord{"name": "a"}
	var calls int
	var lastOld any
	cs := New(record, WithValidatorFunc(func(key string, newValue, oldValue any) error {
		calls++
		lastOld = oldValue
		return nil
	}))

	cs.Get("name")
	cs.Get("name")
	if calls != 0 {
		t.Fatalf("expected Get to never validate, got %d calls", calls)
	}

	cs.Set("name", "b")
	if calls != 1 {
		t.Fatalf("expected exactly one validation per Set, got %d", calls)
	}
	if lastOld != "a" {
		t.Fatalf("expected old value from record, got %v", lastOld)
	}

	cs.Set("name", "c")
	if calls != 2 {
		t.Fatalf("expected exactly one validation per Set, got %d", calls)
	}
	if lastOld != "b" {
		t.Fatalf("expected old value to be pending-aware, got %v", lastOld)
	}
}

func TestExecuteAppliesChangesWithoutClearing(t *testing.T) {
	record := MapRecord{"a": 0, "b": 0}
	cs := New(record)
	cs.Set("a", 1)
	cs.Set("b", 2)

	if got := cs.Execute(); got != cs {
		t.Fatalf("expected Execute to return the changeset")
	}
	if record["a"] != 1 || record["b"] != 2 {
		t.Fatalf("expected record updated, got %v", record)
	}
	if len(cs.Changes()) != 2 {
		t.Fatalf("expected Execute to leave changes intact, got %v", cs.Changes())
	}

	// no pending changes is a no-op
	empty := New(MapRecord{})
	if got := empty.Execute(); got != empty {
		t.Fatalf("expected no-op Execute to return the changeset")
	}
}

func TestExecuteNeverAppliesRejectedProposals(t *testing.T) {
	record := MapRecord{"lastName": "Bolton"}
	cs := New(record, WithValidator(minLength(3)))
	cs.Set("lastName", "B")

	cs.Execute()
	if record["lastName"] != "Bolton" {
		t.Fatalf("expected rejected proposal to never reach the record, got %v", record["lastName"])
	}
}

func TestRollbackClearsEverythingAndIsIdempotent(t *testing.T) {
	record := MapRecord{"a": "original"}
	cs := New(record, WithValidator(minLength(2)))
	cs.Set("a", "updated")
	cs.Set("b", "x")

	if got := cs.Rollback(); got != cs {
		t.Fatalf("expected Rollback to return the changeset")
	}
	if len(cs.Changes()) != 0 || len(cs.Errors()) != 0 {
		t.Fatalf("expected Rollback to clear both views")
	}
	if got := cs.Get("a"); got != "original" {
		t.Fatalf("expected Get to return the record value after rollback, got %v", got)
	}
	if record["a"] != "original" {
		t.Fatalf("expected record untouched by rollback, got %v", record["a"])
	}

	cs.Rollback()
	if len(cs.Changes()) != 0 || len(cs.Errors()) != 0 {
		t.Fatalf("expected Rollback to be idempotent")
	}
}

func TestSaveClearsChangesButNotErrors(t *testing.T) {
	record := newSaveableRecord(map[string]any{"firstName": "Michael", "age": "x"})
	cs := New(record, WithValidator(minLength(2)))
	cs.Set("firstName", "Peter")
	cs.Set("age", "y") // rejected, too short

	if err := cs.Persist(context.Background()); err != nil {
		t.Fatalf("persist: %v", err)
	}
	if record.saves != 1 {
		t.Fatalf("expected one save call, got %d", record.saves)
	}
	if record.fields["firstName"] != "Peter" {
		t.Fatalf("expected executed change on record, got %v", record.fields["firstName"])
	}
	if len(cs.Changes()) != 0 {
		t.Fatalf("expected save to clear changes, got %v", cs.Changes())
	}
	if len(cs.Errors()) != 1 {
		t.Fatalf("expected save to leave errors untouched, got %v", cs.Errors())
	}
}

func TestSaveFailureLeavesStateForRetry(t *testing.T) {
	saveErr := errors.New("connection reset")
	record := newSaveableRecord(map[string]any{"name": "a"})
	record.saveErr = saveErr
	cs := New(record, WithValidator(minLength(1)))
	cs.Set("name", "b")
	cs.Set("other", "")

	err := cs.Persist(context.Background())
	if !errors.Is(err, saveErr) {
		t.Fatalf("expected persistence failure to propagate, got %v", err)
	}
	if len(cs.Changes()) != 1 || len(cs.Errors()) != 1 {
		t.Fatalf("expected failed save to leave state, got changes=%v errors=%v", cs.Changes(), cs.Errors())
	}

	// retry path
	record.saveErr = nil
	if err := cs.Save(context.Background()); err != nil {
		t.Fatalf("retry save: %v", err)
	}
	if len(cs.Changes()) != 0 {
		t.Fatalf("expected retry to clear changes, got %v", cs.Changes())
	}
}

func TestSaveWithoutCapabilityIsSuccessNoop(t *testing.T) {
	record := MapRecord{"name": "a"}
	cs := New(record)
	cs.Set("name", "b")

	if err := cs.Save(context.Background()); err != nil {
		t.Fatalf("expected missing save capability to succeed, got %v", err)
	}
	if len(cs.Changes()) != 0 {
		t.Fatalf("expected save to clear changes, got %v", cs.Changes())
	}
}

func TestSaveClearsOnlyItsSnapshot(t *testing.T) {
	record := newSaveableRecord(map[string]any{"name": "a"})
	cs := New(record)
	cs.Set("name", "b")

	record.onSave = func() {
		cs.Set("nick", "bee")
	}
	if err := cs.Save(context.Background()); err != nil {
		t.Fatalf("save: %v", err)
	}

	changes := cs.Changes()
	if len(changes) != 1 || changes[0].Key != "nick" {
		t.Fatalf("expected change proposed during save to survive, got %v", changes)
	}
}

func TestScenarioLastNameValidation(t *testing.T) {
	record := newSaveableRecord(map[string]any{"firstName": "Michael", "lastName": "Bolton"})
	cs := New(record, WithValidatorFunc(func(key string, newValue, _ any) error {
		if key != "lastName" {
			return nil
		}
		if s, ok := newValue.(string); !ok || len(s) < 3 {
			return errors.New("lastName must be at least 3 characters")
		}
		return nil
	}))

	cs.Set("lastName", "B")
	errs := cs.Errors()
	if len(errs) != 1 || errs[0].Key != "lastName" || errs[0].Value != "B" || errs[0].Err == nil {
		t.Fatalf("unexpected errors after invalid proposal: %+v", errs)
	}
	if cs.IsValid() {
		t.Fatalf("expected invalid changeset")
	}

	cs.Set("lastName", "Bob")
	if len(cs.Errors()) != 0 {
		t.Fatalf("expected errors cleared, got %v", cs.Errors())
	}
	changes := cs.Changes()
	if len(changes) != 1 || changes[0].Key != "lastName" || changes[0].Value != "Bob" {
		t.Fatalf("unexpected changes: %v", changes)
	}
	if !cs.IsValid() {
		t.Fatalf("expected valid changeset")
	}
	if record.fields["lastName"] != "Bolton" {
		t.Fatalf("expected direct record reads to bypass the buffer before execute")
	}

	cs.Execute()
	if record.fields["lastName"] != "Bob" {
		t.Fatalf("expected executed value on record, got %v", record.fields["lastName"])
	}
}

func TestErrAggregatesRejections(t *testing.T) {
	record := MapRecord{"a": "aa", "b": "bb"}
	cs := New(record, WithValidator(minLength(2)))

	cs.Set("a", "ok")
	if err := cs.Err(); err != nil {
		t.Fatalf("expected nil error while valid, got %v", err)
	}

	cs.Set("a", "x")
	cs.Set("b", "y")
	err := cs.Err()
	if err == nil {
		t.Fatalf("expected aggregated rejection error")
	}

	var rejErr *RejectionError
	if !errors.As(err, &rejErr) {
		t.Fatalf("expected RejectionError, got %T", err)
	}
	if rejErr.Key != "a" || rejErr.Value != "x" {
		t.Fatalf("unexpected rejection metadata: %+v", rejErr)
	}
	if rejErr.Reason == nil || !errors.Is(err, rejErr.Reason) {
		t.Fatalf("expected diagnostic to unwrap, got %v", rejErr.Reason)
	}

	cs.Rollback()
	if err := cs.Err(); err != nil {
		t.Fatalf("expected nil error after rollback, got %v", err)
	}
}

func TestValidatorReturnedRejectionErrorKeepsMetadata(t *testing.T) {
	reason := errors.New("must be lowercase")
	cs := New(MapRecord{}, WithValidatorFunc(func(key string, newValue, _ any) error {
		return &RejectionError{Reason: reason}
	}))

	cs.Set("name", "UPPER")
	err := cs.Err()
	var rejErr *RejectionError
	if !errors.As(err, &rejErr) {
		t.Fatalf("expected RejectionError, got %T", err)
	}
	if rejErr.Key != "name" || rejErr.Value != "UPPER" {
		t.Fatalf("expected missing fields filled, got %+v", rejErr)
	}
	if !errors.Is(err, reason) {
		t.Fatalf("expected reason to unwrap")
	}
}

func TestValidationLoggerReceivesEvents(t *testing.T) {
	var events []ValidationLogEvent
	record := MapRecord{"name": "old"}
	cs := New(record,
		WithValidator(minLength(3)),
		WithValidationLogger(ValidationLoggerFunc(func(event ValidationLogEvent) {
			events = append(events, event)
		})),
	)

	cs.Set("name", "new")
	cs.Set("name", "x")

	if len(events) != 2 {
		t.Fatalf("expected one log event per validation, got %d", len(events))
	}
	if events[0].Key != "name" || events[0].Err != nil || events[0].OldValue != "old" {
		t.Fatalf("unexpected first event: %+v", events[0])
	}
	if events[1].Err == nil || events[1].Value != "x" || events[1].OldValue != "new" {
		t.Fatalf("unexpected second event: %+v", events[1])
	}
}

func TestActivityEventsEmittedAcrossLifecycle(t *testing.T) {
	capture := &activity.CaptureHook{}
	record := newSaveableRecord(map[string]any{"name": "a"})
	cs := New(record,
		WithValidator(minLength(2)),
		WithActivityHooks(activity.Hooks{capture}),
	)

	cs.Set("name", "bb")
	cs.Set("name", "c")
	cs.Set("name", "dd")
	cs.Execute()
	if err := cs.Save(context.Background()); err != nil {
		t.Fatalf("save: %v", err)
	}
	cs.Set("name", "ee")
	cs.Rollback()

	verbs := capture.Verbs()
	want := []string{
		"changeset.proposed",
		"changeset.rejected",
		"changeset.proposed",
		"changeset.executed",
		"changeset.saved",
		"changeset.proposed",
		"changeset.rolled_back",
	}
	if len(verbs) != len(want) {
		t.Fatalf("expected verbs %v, got %v", want, verbs)
	}
	for i := range want {
		if verbs[i] != want[i] {
			t.Fatalf("expected verbs %v, got %v", want, verbs)
		}
	}

	rejected := capture.Events[1]
	if rejected.Metadata["key"] != "name" || rejected.Metadata["reason"] == "" {
		t.Fatalf("expected rejection metadata, got %v", rejected.Metadata)
	}
}

func TestActivityHooksAccessorClones(t *testing.T) {
	capture := &activity.CaptureHook{}
	cs := New(MapRecord{}, WithActivityHooks(activity.Hooks{capture, nil}))

	hooks := cs.ActivityHooks()
	if len(hooks) != 1 {
		t.Fatalf("expected nil hooks dropped, got %d", len(hooks))
	}
	hooks[0] = nil
	if got := cs.ActivityHooks(); len(got) != 1 || got[0] == nil {
		t.Fatalf("expected accessor to return a defensive copy")
	}
}
