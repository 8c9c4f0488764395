package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/roach88/idocore/internal/allocation"
	"github.com/roach88/idocore/internal/compiler"
	"github.com/roach88/idocore/internal/engine"
	"github.com/roach88/idocore/internal/ido"
	"github.com/roach88/idocore/internal/journal"
	"github.com/roach88/idocore/internal/logging"
	"github.com/roach88/idocore/internal/resolver"
	"github.com/roach88/idocore/internal/store"
	"github.com/roach88/idocore/internal/store/memory"
	"github.com/roach88/idocore/internal/testutil"
	"github.com/roach88/idocore/internal/tier"
)

// Harness is one scenario's world: an engine over a fresh memory store,
// a manual wall clock, an in-process staking service and a ledger.
type Harness struct {
	engine   *engine.Engine
	store    store.Store
	clock    *testutil.ManualClock
	staking  *resolver.Local
	ledger   *allocation.Ledger
	projects map[string]ido.ProjectID
	logger   logrus.FieldLogger
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Compile the spec files
//  2. Start an engine over a fresh memory store
//  3. Create every declared project
//  4. Play the steps, checking expectations
//  5. Drain the engine and evaluate assertions against the journal
//
// The returned error reports a scenario that could not run at all; failed
// expectations and assertions are recorded on the Result.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	defs, tierCfg, err := compileSpecs(scenario)
	if err != nil {
		return nil, err
	}
	tiers, err := tier.New(tierCfg)
	if err != nil {
		return nil, fmt.Errorf("tier table: %w", err)
	}

	start := testutil.Base
	if scenario.Start != "" {
		start, err = time.Parse(time.RFC3339, scenario.Start)
		if err != nil {
			return nil, fmt.Errorf("start: %w", err)
		}
	}

	h := &Harness{
		store:    memory.New(),
		clock:    testutil.NewManualClock(start),
		staking:  resolver.NewLocal(nil),
		ledger:   allocation.NewLedger(),
		projects: make(map[string]ido.ProjectID),
		logger:   logging.Discard(),
	}
	for account, spec := range scenario.Stakes {
		spec.Account = account
		if err := h.setStake(spec); err != nil {
			return nil, fmt.Errorf("stakes[%s]: %w", account, err)
		}
	}

	h.engine, err = engine.New(ctx, h.store,
		engine.WithNow(h.clock.Now),
		engine.WithRequestIDs(engine.NewSequenceGenerator("req")),
		engine.WithDispatcher(h.staking),
		engine.WithSettlement(h.ledger),
		engine.WithTiers(tiers),
		engine.WithLogger(h.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("start engine: %w", err)
	}
	h.staking.SetSink(h.engine.ResolverSink())

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- h.engine.Run(runCtx) }()

	result := NewResult()
	runErr := h.play(ctx, defs, scenario.Steps, result)

	// Stop drains the queue, so resolutions queued by the last step run
	// before the journal is read.
	h.engine.Stop()
	<-done
	if runErr != nil {
		return nil, runErr
	}

	result.Journal, err = h.store.ReadJournal(ctx, journal.Filter{})
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	for name, id := range h.projects {
		result.Projects[name] = id
	}

	actx := &AssertionContext{
		Ctx:      ctx,
		Service:  h.engine.Service(),
		Ledger:   h.ledger,
		Projects: result.Projects,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// compileSpecs compiles every spec file. At most one may declare tiers;
// without one the default table scaled by TierDecimals applies.
func compileSpecs(s *Scenario) ([]ido.Definition, tier.Config, error) {
	var (
		defs    []ido.Definition
		tierCfg *tier.Config
	)
	for _, path := range s.Specs {
		b, err := compiler.CompileFile(path)
		if err != nil {
			return nil, tier.Config{}, fmt.Errorf("compile %s: %w", path, err)
		}
		defs = append(defs, b.Projects...)
		if b.Tiers != nil {
			if tierCfg != nil {
				return nil, tier.Config{}, fmt.Errorf("compile %s: tier table declared twice", path)
			}
			tierCfg = b.Tiers
		}
	}
	if len(defs) == 0 {
		return nil, tier.Config{}, fmt.Errorf("specs declare no projects")
	}
	if tierCfg == nil {
		cfg := tier.DefaultConfig(s.TierDecimals)
		tierCfg = &cfg
	}
	return defs, *tierCfg, nil
}

// play creates the projects and runs the steps.
func (h *Harness) play(ctx context.Context, defs []ido.Definition, steps []Step, result *Result) error {
	for _, def := range defs {
		if _, dup := h.projects[def.Name]; dup {
			return fmt.Errorf("project %q declared twice", def.Name)
		}
		reply, err := h.engine.Submit(ctx, engine.CreateProject{Definition: def})
		if err != nil {
			return fmt.Errorf("create project %s: %w", def.Name, err)
		}
		created, ok := reply.Result.(engine.Created)
		if !ok {
			return fmt.Errorf("create project %s: unexpected result %T", def.Name, reply.Result)
		}
		h.projects[def.Name] = created.ProjectID
	}

	for i, step := range steps {
		if step.At != "" {
			at, _ := time.Parse(time.RFC3339, step.At)
			h.clock.Set(at)
		}

		switch {
		case step.Stake != nil:
			if err := h.setStake(*step.Stake); err != nil {
				return fmt.Errorf("steps[%d].stake: %w", i, err)
			}
		case step.FailTransfers != nil:
			h.ledger.FailFor(step.FailTransfers.Account, !step.FailTransfers.Clear)
		default:
			if err := h.runOp(ctx, i, step, result); err != nil {
				return err
			}
		}
	}
	return nil
}

// runOp submits one operation step and checks its expectation.
func (h *Harness) runOp(ctx context.Context, index int, step Step, result *Result) error {
	op, err := h.decodeOp(step)
	if err != nil {
		return fmt.Errorf("steps[%d]: %w", index, err)
	}

	reply, err := h.engine.Submit(ctx, op)
	if errors.Is(err, engine.ErrStopped) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("steps[%d]: %w", index, err)
	}

	h.logger.WithFields(logrus.Fields{
		"step":       index,
		"op":         step.Op,
		"request_id": reply.RequestID,
		"seq":        reply.Seq,
	}).Debug("scenario step applied")

	if step.Expect != nil {
		for _, msg := range checkExpect(step.Expect, reply) {
			result.AddError(fmt.Sprintf("steps[%d] %s: %s", index, step.Op, msg))
		}
	}
	return nil
}

// decodeOp builds the engine operation a step describes.
func (h *Harness) decodeOp(step Step) (engine.Operation, error) {
	args := make(map[string]interface{}, len(step.Args)+1)
	for k, v := range step.Args {
		args[k] = v
	}
	if step.Project != "" {
		id, ok := h.projects[step.Project]
		if !ok {
			return nil, fmt.Errorf("unknown project %q", step.Project)
		}
		args["project_id"] = int64(id)
	}

	data, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode %s args: %w", step.Op, err)
	}
	return engine.Decode(step.Op, data)
}

func (h *Harness) setStake(s StakeSpec) error {
	if s.Fail != "" {
		h.staking.Fail(s.Account, s.Fail)
		return nil
	}
	amount, err := ido.ParseAmount(s.LockedAmount)
	if err != nil {
		return fmt.Errorf("locked_amount: %w", err)
	}
	h.staking.SetStake(s.Account, tier.Stake{
		LockedAmount:   amount,
		LockedDuration: time.Duration(s.LockedDays) * 24 * time.Hour,
	})
	return nil
}

// checkExpect compares a reply with an Expect clause.
func checkExpect(want *Expect, reply engine.Reply) []string {
	var msgs []string

	outcome, code := OutcomeOK, ""
	if reply.Err != nil {
		outcome, code = OutcomeError, string(ido.CodeOf(reply.Err))
	}
	if outcome != want.Outcome {
		detail := ""
		if reply.Err != nil {
			detail = fmt.Sprintf(" (%v)", reply.Err)
		}
		return append(msgs, fmt.Sprintf("outcome = %s%s, want %s", outcome, detail, want.Outcome))
	}
	if want.Code != "" && code != want.Code {
		msgs = append(msgs, fmt.Sprintf("code = %s, want %s", code, want.Code))
	}

	if len(want.Result) > 0 {
		actual, err := toJSONValue(reply.Result)
		if err != nil {
			return append(msgs, fmt.Sprintf("result: %v", err))
		}
		expected, err := toJSONValue(want.Result)
		if err != nil {
			return append(msgs, fmt.Sprintf("expected result: %v", err))
		}
		if path, ok := matchSubset(expected, actual, "result"); !ok {
			msgs = append(msgs, fmt.Sprintf("%s: got %s", path, describe(actual)))
		}
	}
	return msgs
}
