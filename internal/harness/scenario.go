package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/idocore/internal/engine"
)

// Scenario is an end-to-end allocation script.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Specs lists CUE files declaring the scenario's projects and,
	// optionally, its tier table. Paths are relative to the scenario file.
	Specs []string `yaml:"specs"`

	// Start is the wall clock before the first timed step (RFC 3339).
	// Defaults to the fixture base instant.
	Start string `yaml:"start,omitempty"`

	// TierDecimals scales the default tier thresholds when no spec
	// declares a tier table.
	TierDecimals uint8 `yaml:"tier_decimals,omitempty"`

	// Stakes seeds the in-process staking service.
	Stakes map[string]StakeSpec `yaml:"stakes,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final journal and state.
	Assertions []Assertion `yaml:"assertions"`
}

// StakeSpec is a staking position.
type StakeSpec struct {
	Account      string `yaml:"account,omitempty"`
	LockedAmount string `yaml:"locked_amount"`
	LockedDays   uint32 `yaml:"locked_days,omitempty"`
	// Fail makes queries for the account fail with this reason.
	Fail string `yaml:"fail,omitempty"`
}

// FailSpec toggles settlement failures for an account.
type FailSpec struct {
	Account string `yaml:"account"`
	// Clear restores transfers to the account.
	Clear bool `yaml:"clear,omitempty"`
}

// Step is one scripted action. Exactly one of Op, Stake and FailTransfers
// is set.
type Step struct {
	// At moves the wall clock before the step runs (RFC 3339).
	At string `yaml:"at,omitempty"`

	// Op is an engine operation kind, e.g. "commit".
	Op string `yaml:"op,omitempty"`

	// Project names a project from the specs; it fills args.project_id.
	Project string `yaml:"project,omitempty"`

	// Args are the operation's arguments. Amounts are quoted strings.
	Args map[string]interface{} `yaml:"args,omitempty"`

	// Expect checks the operation's reply. Nil means no check.
	Expect *Expect `yaml:"expect,omitempty"`

	// Stake changes an account's staking position.
	Stake *StakeSpec `yaml:"stake,omitempty"`

	// FailTransfers makes settlement transfers to an account fail.
	FailTransfers *FailSpec `yaml:"fail_transfers,omitempty"`
}

// Expect describes an operation's reply.
type Expect struct {
	// Outcome is "ok" or "error".
	Outcome string `yaml:"outcome"`

	// Code is the expected error code when Outcome is "error".
	Code string `yaml:"code,omitempty"`

	// Result is a subset of the expected result fields.
	Result map[string]interface{} `yaml:"result,omitempty"`
}

// Assertion validates the journal or final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Kind is the operation kind (journal_contains, journal_count).
	Kind string `yaml:"kind,omitempty"`

	// Kinds is the expected order of kinds (journal_order).
	Kinds []string `yaml:"kinds,omitempty"`

	// Project names a project from the specs.
	Project string `yaml:"project,omitempty"`

	// Account filters journal entries or selects the account projection.
	Account string `yaml:"account,omitempty"`

	// Outcome and Code filter journal entries.
	Outcome string `yaml:"outcome,omitempty"`
	Code    string `yaml:"code,omitempty"`

	// Count is the expected number of matching entries (journal_count).
	Count int `yaml:"count,omitempty"`

	// Expect is a subset of the projection's fields (project_state,
	// account_state).
	Expect map[string]interface{} `yaml:"expect,omitempty"`

	// Asset and Total check the ledger (transfer_total).
	Asset string `yaml:"asset,omitempty"`
	Total string `yaml:"total,omitempty"`
}

// Assertion type constants.
const (
	AssertJournalContains = "journal_contains"
	AssertJournalOrder    = "journal_order"
	AssertJournalCount    = "journal_count"
	AssertProjectState    = "project_state"
	AssertAccountState    = "account_state"
	AssertTransferTotal   = "transfer_total"
)

// Outcomes accepted by Expect.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// Spec paths are resolved relative to the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath is LoadScenario resolving spec paths against
// basePath instead of the scenario's directory.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict decoding catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	for i, specPath := range scenario.Specs {
		if !filepath.IsAbs(specPath) && basePath != "" {
			scenario.Specs[i] = filepath.Join(basePath, specPath)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Specs) == 0 {
		return fmt.Errorf("specs list is required and must be non-empty")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for _, specPath := range s.Specs {
		if _, err := os.Stat(specPath); os.IsNotExist(err) {
			return fmt.Errorf("spec file not found: %s", specPath)
		}
	}
	if s.Start != "" {
		if _, err := time.Parse(time.RFC3339, s.Start); err != nil {
			return fmt.Errorf("start: %w", err)
		}
	}
	for account, stake := range s.Stakes {
		if stake.LockedAmount == "" && stake.Fail == "" {
			return fmt.Errorf("stakes[%s]: locked_amount or fail is required", account)
		}
	}

	kinds := make(map[string]bool)
	for _, k := range engine.Kinds() {
		kinds[k] = true
	}
	for i, step := range s.Steps {
		if err := validateStep(i, &step, kinds); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step *Step, kinds map[string]bool) error {
	set := 0
	if step.Op != "" {
		set++
	}
	if step.Stake != nil {
		set++
	}
	if step.FailTransfers != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("steps[%d]: exactly one of op, stake and fail_transfers is required", index)
	}
	if step.At != "" {
		if _, err := time.Parse(time.RFC3339, step.At); err != nil {
			return fmt.Errorf("steps[%d].at: %w", index, err)
		}
	}

	switch {
	case step.Op != "":
		if !kinds[step.Op] {
			return fmt.Errorf("steps[%d]: unknown op %q", index, step.Op)
		}
		if e := step.Expect; e != nil {
			if e.Outcome != OutcomeOK && e.Outcome != OutcomeError {
				return fmt.Errorf("steps[%d].expect: outcome must be ok or error", index)
			}
			if e.Code != "" && e.Outcome != OutcomeError {
				return fmt.Errorf("steps[%d].expect: code requires outcome error", index)
			}
		}
	case step.Stake != nil:
		if step.Stake.Account == "" {
			return fmt.Errorf("steps[%d].stake: account is required", index)
		}
		if step.Stake.LockedAmount == "" && step.Stake.Fail == "" {
			return fmt.Errorf("steps[%d].stake: locked_amount or fail is required", index)
		}
	case step.FailTransfers != nil:
		if step.FailTransfers.Account == "" {
			return fmt.Errorf("steps[%d].fail_transfers: account is required", index)
		}
	}
	if step.Expect != nil && step.Op == "" {
		return fmt.Errorf("steps[%d]: expect requires op", index)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertJournalContains:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for journal_contains", index)
		}
	case AssertJournalOrder:
		if len(a.Kinds) == 0 {
			return fmt.Errorf("assertions[%d]: kinds list is required for journal_order", index)
		}
	case AssertJournalCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for journal_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for journal_count", index)
		}
	case AssertProjectState:
		if a.Project == "" {
			return fmt.Errorf("assertions[%d]: project is required for project_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for project_state", index)
		}
	case AssertAccountState:
		if a.Project == "" || a.Account == "" {
			return fmt.Errorf("assertions[%d]: project and account are required for account_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for account_state", index)
		}
	case AssertTransferTotal:
		if a.Account == "" || a.Asset == "" || a.Total == "" {
			return fmt.Errorf("assertions[%d]: account, asset and total are required for transfer_total", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
