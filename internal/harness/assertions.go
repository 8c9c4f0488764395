package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/roach88/idocore/internal/allocation"
	"github.com/roach88/idocore/internal/ido"
	"github.com/roach88/idocore/internal/journal"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string          // Assertion type for categorization
	Expected string          // Human-readable expected outcome
	Actual   string          // Human-readable actual outcome
	Journal  []journal.Entry // Full journal for context; nil for state assertions
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Journal) > 0 {
		fmt.Fprintf(&buf, "\nJournal:\n")
		for _, entry := range e.Journal {
			fmt.Fprintf(&buf, "  %s\n", TraceLine(entry))
		}
	}
	return buf.String()
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Ctx      context.Context
	Service  *allocation.Service
	Ledger   *allocation.Ledger
	Projects map[string]ido.ProjectID
}

func (c *AssertionContext) project(name string) (ido.ProjectID, error) {
	id, ok := c.Projects[name]
	if !ok {
		return 0, fmt.Errorf("unknown project %q", name)
	}
	return id, nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// State assertions need actx; journal assertions only need the result.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertJournalContains:
			err = assertJournalContains(result, assertion)
		case AssertJournalOrder:
			err = assertJournalOrder(result.Journal, assertion)
		case AssertJournalCount:
			err = assertJournalCount(result, assertion)
		case AssertProjectState, AssertAccountState, AssertTransferTotal:
			if actx == nil || actx.Service == nil {
				err = fmt.Errorf("assertion[%d]: %s requires a service context", i, assertion.Type)
				break
			}
			switch assertion.Type {
			case AssertProjectState:
				err = assertProjectState(actx, assertion)
			case AssertAccountState:
				err = assertAccountState(actx, assertion)
			default:
				err = assertTransferTotal(actx, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

// entryFilter reports whether e matches the assertion's kind, project,
// account, outcome and code. Empty fields match everything.
func entryFilter(result *Result, a Assertion) (func(journal.Entry) bool, error) {
	var id ido.ProjectID
	if a.Project != "" {
		var ok bool
		if id, ok = result.Projects[a.Project]; !ok {
			return nil, fmt.Errorf("unknown project %q", a.Project)
		}
	}
	return func(e journal.Entry) bool {
		switch {
		case a.Kind != "" && e.Kind != a.Kind:
			return false
		case id != 0 && e.ProjectID != id:
			return false
		case a.Account != "" && e.Account != a.Account:
			return false
		case a.Outcome != "" && e.Outcome != a.Outcome:
			return false
		case a.Code != "" && e.ErrorCode != a.Code:
			return false
		}
		return true
	}, nil
}

func describeFilter(a Assertion) string {
	parts := []string{a.Kind}
	for _, kv := range [][2]string{
		{"project", a.Project},
		{"account", a.Account},
		{"outcome", a.Outcome},
		{"code", a.Code},
	} {
		if kv[1] != "" {
			parts = append(parts, kv[0]+"="+kv[1])
		}
	}
	return strings.Join(parts, " ")
}

// assertJournalContains checks that some entry passes the filter.
func assertJournalContains(result *Result, a Assertion) error {
	match, err := entryFilter(result, a)
	if err != nil {
		return err
	}
	for _, e := range result.Journal {
		if match(e) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertJournalContains,
		Expected: describeFilter(a),
		Actual:   "not found in journal",
		Journal:  result.Journal,
	}
}

// assertJournalOrder checks that kinds first appear in the given order.
// Entries need not be consecutive.
func assertJournalOrder(entries []journal.Entry, a Assertion) error {
	positions := make(map[string]int)
	for i, e := range entries {
		if _, seen := positions[e.Kind]; !seen {
			positions[e.Kind] = i + 1
		}
	}

	for _, kind := range a.Kinds {
		if positions[kind] == 0 {
			return &AssertionError{
				Type:     AssertJournalOrder,
				Expected: fmt.Sprintf("all kinds present: %v", a.Kinds),
				Actual:   fmt.Sprintf("missing kind: %s", kind),
				Journal:  entries,
			}
		}
	}
	for i := 1; i < len(a.Kinds); i++ {
		prev, curr := a.Kinds[i-1], a.Kinds[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertJournalOrder,
				Expected: fmt.Sprintf("kinds in order: %v", a.Kinds),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Journal: entries,
			}
		}
	}
	return nil
}

// assertJournalCount checks the number of entries passing the filter.
func assertJournalCount(result *Result, a Assertion) error {
	match, err := entryFilter(result, a)
	if err != nil {
		return err
	}
	count := 0
	for _, e := range result.Journal {
		if match(e) {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertJournalCount,
			Expected: fmt.Sprintf("%d entries of %s", a.Count, describeFilter(a)),
			Actual:   fmt.Sprintf("%d entries", count),
			Journal:  result.Journal,
		}
	}
	return nil
}

func assertProjectState(actx *AssertionContext, a Assertion) error {
	id, err := actx.project(a.Project)
	if err != nil {
		return err
	}
	view, err := actx.Service.Project(actx.Ctx, id)
	if err != nil {
		return &AssertionError{
			Type:     AssertProjectState,
			Expected: fmt.Sprintf("project %s", a.Project),
			Actual:   err.Error(),
		}
	}
	return assertState(AssertProjectState, view, a.Expect)
}

func assertAccountState(actx *AssertionContext, a Assertion) error {
	id, err := actx.project(a.Project)
	if err != nil {
		return err
	}
	view, err := actx.Service.Account(actx.Ctx, id, a.Account)
	if err != nil {
		return &AssertionError{
			Type:     AssertAccountState,
			Expected: fmt.Sprintf("account %s in project %s", a.Account, a.Project),
			Actual:   err.Error(),
		}
	}
	return assertState(AssertAccountState, view, a.Expect)
}

// assertState subset-matches expect against the JSON form of view.
func assertState(kind string, view any, expect map[string]interface{}) error {
	actual, err := toJSONValue(view)
	if err != nil {
		return fmt.Errorf("%s: %w", kind, err)
	}
	expected, err := toJSONValue(expect)
	if err != nil {
		return fmt.Errorf("%s: %w", kind, err)
	}
	if path, ok := matchSubset(expected, actual, ""); !ok {
		return &AssertionError{
			Type:     kind,
			Expected: fmt.Sprintf("%s = %s", path, describe(lookup(expected, path))),
			Actual:   fmt.Sprintf("%s = %s", path, describe(lookup(actual, path))),
		}
	}
	return nil
}

func assertTransferTotal(actx *AssertionContext, a Assertion) error {
	want, err := ido.ParseAmount(a.Total)
	if err != nil {
		return fmt.Errorf("%s: total: %w", AssertTransferTotal, err)
	}
	if actx.Ledger == nil {
		return fmt.Errorf("%s requires a ledger", AssertTransferTotal)
	}
	got := actx.Ledger.Balance(a.Account, allocation.Asset(a.Asset))
	if !got.Equal(want) {
		return &AssertionError{
			Type:     AssertTransferTotal,
			Expected: fmt.Sprintf("%s %s paid to %s", want, a.Asset, a.Account),
			Actual:   fmt.Sprintf("%s paid", got),
		}
	}
	return nil
}

// toJSONValue converts v into its generic JSON form so values decoded
// from YAML compare equal to values marshalled from Go structs.
func toJSONValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return out, nil
}

// matchSubset reports whether every field of expected is present and
// equal in actual. Objects match by subset, everything else exactly.
// On mismatch it returns the dotted path of the first differing field.
func matchSubset(expected, actual any, path string) (string, bool) {
	expMap, ok := expected.(map[string]any)
	if !ok {
		return path, reflect.DeepEqual(expected, actual)
	}
	actMap, ok := actual.(map[string]any)
	if !ok {
		return path, false
	}

	keys := make([]string, 0, len(expMap))
	for k := range expMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sub := k
		if path != "" {
			sub = path + "." + k
		}
		actVal, exists := actMap[k]
		if !exists {
			return sub, false
		}
		if p, ok := matchSubset(expMap[k], actVal, sub); !ok {
			return p, false
		}
	}
	return path, true
}

// lookup follows a dotted path through nested objects.
func lookup(v any, path string) any {
	if path == "" {
		return v
	}
	for _, key := range strings.Split(path, ".") {
		m, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		v = m[key]
	}
	return v
}

func describe(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
