// Package scheduler plans the closure of a set of targets and executes it
// concurrently, consulting the cache before each task.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"time"

	"go.trai.ch/steppe/internal/core/domain"
	"go.trai.ch/steppe/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// FingerprintAttribute is the span attribute holding a task fingerprint.
const FingerprintAttribute = "steppe.fingerprint"

// Policy decides what happens to the rest of the plan when a task fails.
type Policy uint8

const (
	// FailDependents blocks the transitive dependents of a failed task and
	// lets independent tasks drain.
	FailDependents Policy = iota
	// FailAll cancels the whole run on the first failure.
	FailAll
)

func (p Policy) String() string {
	if p == FailAll {
		return "fail-all"
	}
	return "fail-dependents"
}

// Options configures one run.
type Options struct {
	// Parallelism bounds concurrent tasks. Zero or less means runtime.NumCPU().
	Parallelism int
	// Policy is the failure policy.
	Policy Policy
	// NoCache skips cache lookups. Successful tasks are still written back.
	NoCache bool
	// Cache is the store consulted for cacheable tasks. Nil disables caching.
	Cache ports.CacheStore
}

// Report holds one outcome per planned task, in plan order.
type Report struct {
	Targets  []string
	Outcomes []domain.Outcome
}

// Summary counts the outcomes by status.
func (r *Report) Summary() domain.Summary {
	return domain.Summarize(r.Outcomes)
}

// Outcome returns the outcome of the named task.
func (r *Report) Outcome(name string) (domain.Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Task.String() == name {
			return o, true
		}
	}
	return domain.Outcome{}, false
}

// Scheduler executes task plans.
type Scheduler struct {
	executor      ports.Executor
	fingerprinter ports.Fingerprinter
	tracer        ports.Tracer
	logger        ports.Logger
	now           func() time.Time
}

// NewScheduler creates a new Scheduler.
func NewScheduler(
	executor ports.Executor,
	fingerprinter ports.Fingerprinter,
	tracer ports.Tracer,
	logger ports.Logger,
) *Scheduler {
	return &Scheduler{
		executor:      executor,
		fingerprinter: fingerprinter,
		tracer:        tracer,
		logger:        logger,
		now:           time.Now,
	}
}

// Plan returns the targets plus their transitive dependencies in execution order.
func (s *Scheduler) Plan(graph *domain.Graph, targets []string) ([]*domain.Task, error) {
	if len(targets) == 0 {
		return nil, domain.ErrNoTargetsSpecified
	}
	if err := graph.Validate(); err != nil {
		return nil, err
	}
	return graph.Closure(domain.NewInternedStrings(targets)...)
}

// Run executes the closure of targets.
//
// The report is returned whenever planning succeeded, even if tasks failed.
// The error wraps the first failed task's error in plan order, joined with
// the context error on external cancellation.
func (s *Scheduler) Run(ctx context.Context, graph *domain.Graph, targets []string, opts Options) (*Report, error) {
	plan, err := s.Plan(graph, targets)
	if err != nil {
		return nil, err
	}

	s.emitPlan(ctx, plan, targets)

	state := s.newRunState(ctx, graph.Root(), plan, opts)
	defer state.cancel(nil)

	state.runExecutionLoop()

	return state.finish(targets)
}

func (s *Scheduler) emitPlan(ctx context.Context, plan []*domain.Task, targets []string) {
	names := make([]string, len(plan))
	deps := make(map[string][]string, len(plan))
	for i, task := range plan {
		names[i] = task.Name.String()
		deps[names[i]] = domain.Strings(task.Dependencies)
	}
	s.tracer.EmitPlan(ctx, names, deps, targets)
}

type result struct {
	index       int
	status      domain.Status
	err         error
	exitCode    int
	fingerprint string
	duration    time.Duration
}

// runState is owned by the loop goroutine; workers only send results.
type runState struct {
	s    *Scheduler
	opts Options
	root string

	plan       []*domain.Task
	dependents [][]int
	waiting    []int
	outcomes   []domain.Outcome
	ready      []int
	active     int

	parent       context.Context
	ctx          context.Context
	cancel       context.CancelCauseFunc
	results      chan result
	workers      errgroup.Group
	firstFailure int
}

func (s *Scheduler) newRunState(ctx context.Context, root string, plan []*domain.Task, opts Options) *runState {
	if opts.Parallelism <= 0 {
		opts.Parallelism = runtime.NumCPU()
	}

	index := make(map[domain.InternedString]int, len(plan))
	for i, task := range plan {
		index[task.Name] = i
	}

	state := &runState{
		s:            s,
		opts:         opts,
		root:         root,
		plan:         plan,
		dependents:   make([][]int, len(plan)),
		waiting:      make([]int, len(plan)),
		outcomes:     make([]domain.Outcome, len(plan)),
		parent:       ctx,
		results:      make(chan result, len(plan)),
		firstFailure: -1,
	}
	state.ctx, state.cancel = context.WithCancelCause(ports.WithRoot(ctx, root))
	state.workers.SetLimit(opts.Parallelism)

	for i, task := range plan {
		state.outcomes[i] = domain.Outcome{Task: task.Name, Status: domain.StatusPending}
		for _, dep := range task.Dependencies {
			j := index[dep]
			state.dependents[j] = append(state.dependents[j], i)
			state.waiting[i]++
		}
		if state.waiting[i] == 0 {
			state.ready = append(state.ready, i)
		}
	}

	return state
}

func (state *runState) runExecutionLoop() {
	for {
		state.schedule()
		if state.active == 0 {
			break
		}
		state.handleResult(<-state.results)
	}
	_ = state.workers.Wait()
}

// schedule starts ready tasks in plan order while worker slots are free.
func (state *runState) schedule() {
	for len(state.ready) > 0 && state.active < state.opts.Parallelism && state.ctx.Err() == nil {
		i := state.ready[0]
		state.ready = state.ready[1:]
		state.active++

		task := state.plan[i]
		state.workers.Go(func() error {
			state.results <- state.executeTask(i, task)
			return nil
		})
	}
}

func (state *runState) markReady(i int) {
	pos, _ := slices.BinarySearch(state.ready, i)
	state.ready = slices.Insert(state.ready, pos, i)
}

func (state *runState) handleResult(res result) {
	state.active--

	o := &state.outcomes[res.index]
	o.Status = res.status
	o.Err = res.err
	o.ExitCode = res.exitCode
	o.Fingerprint = res.fingerprint
	o.Duration = res.duration

	if res.status.Ok() {
		for _, j := range state.dependents[res.index] {
			state.waiting[j]--
			if state.waiting[j] == 0 && state.outcomes[j].Status == domain.StatusPending {
				state.markReady(j)
			}
		}
		return
	}

	if state.firstFailure < 0 {
		state.firstFailure = res.index
	}
	switch state.opts.Policy {
	case FailAll:
		state.cancel(res.err)
	default:
		state.blockDependents(res.index, o.Task)
	}
}

// blockDependents marks every transitive dependent of i as blocked by blocker.
func (state *runState) blockDependents(i int, blocker domain.InternedString) {
	for _, j := range state.dependents[i] {
		o := &state.outcomes[j]
		if o.Status != domain.StatusPending {
			continue
		}
		o.Status = domain.StatusBlocked
		o.BlockedBy = blocker
		o.Err = domain.NewBlocked(o.Task.String(), blocker.String())
		state.blockDependents(j, blocker)
	}
}

func (state *runState) finish(targets []string) (*Report, error) {
	var blocker domain.InternedString
	if state.firstFailure >= 0 {
		blocker = state.outcomes[state.firstFailure].Task
	}

	for i := range state.outcomes {
		o := &state.outcomes[i]
		if o.Status != domain.StatusPending {
			continue
		}
		o.Status = domain.StatusBlocked
		o.BlockedBy = blocker
		if blocker.IsZero() {
			o.Err = zerr.With(zerr.Wrap(context.Cause(state.parent), "task not started"), "task", o.Task.String())
		} else {
			o.Err = domain.NewBlocked(o.Task.String(), blocker.String())
		}
	}

	report := &Report{Targets: targets, Outcomes: state.outcomes}

	var err error
	for _, o := range state.outcomes {
		if o.Status == domain.StatusFailed {
			err = zerr.With(zerr.Wrap(o.Err, "run failed"), "task", o.Task.String())
			break
		}
	}
	if ctxErr := state.parent.Err(); ctxErr != nil {
		err = errors.Join(err, ctxErr)
	}
	return report, err
}

// executeTask runs on a worker goroutine.
func (state *runState) executeTask(i int, task *domain.Task) (res result) {
	name := task.Name.String()
	start := state.s.now()
	res.index = i

	defer zerr.Defer(func(err error) {
		res.status = domain.StatusFailed
		res.err = zerr.With(err, "task", name)
		res.exitCode = -1
		res.duration = state.s.now().Sub(start)
	})

	fingerprint := state.fingerprint(task)
	res.fingerprint = fingerprint

	var spanOpts []ports.SpanOption
	cached := fingerprint != "" && !state.opts.NoCache && state.lookup(task, fingerprint)
	if cached {
		spanOpts = append(spanOpts, ports.WithCached())
	}

	ctx, span := state.s.tracer.Start(state.ctx, name, spanOpts...)
	defer span.End()
	if fingerprint != "" {
		span.SetAttribute(FingerprintAttribute, fingerprint)
	}

	if cached {
		res.status = domain.StatusSkipped
		res.duration = state.s.now().Sub(start)
		return res
	}

	err := state.s.executor.Execute(ctx, task, span, span)
	res.duration = state.s.now().Sub(start)
	if err != nil {
		span.RecordError(err)
		res.status = domain.StatusFailed
		res.err = err
		res.exitCode = exitCodeOf(err)
		return res
	}

	res.status = domain.StatusSucceeded
	if fingerprint != "" {
		state.writeBack(task, fingerprint)
	}
	return res
}

// fingerprint returns "" when the task does not participate in caching or
// its fingerprint cannot be computed.
func (state *runState) fingerprint(task *domain.Task) string {
	if state.opts.Cache == nil || !task.IsCacheable() {
		return ""
	}
	fingerprint, err := state.s.fingerprinter.Fingerprint(task, state.root)
	if err != nil {
		state.warn(task, "fingerprint failed, executing", err)
		return ""
	}
	return fingerprint
}

// lookup reports a cache hit. Faults degrade to a miss.
func (state *runState) lookup(task *domain.Task, fingerprint string) bool {
	entry, err := state.opts.Cache.Get(fingerprint)
	if err != nil {
		state.warn(task, "cache lookup failed, executing", err)
		return false
	}
	if entry == nil || entry.Fingerprint != fingerprint {
		return false
	}
	if len(task.Outputs) == 0 {
		return true
	}

	outputHash, err := state.s.fingerprinter.OutputHash(domain.Strings(task.Outputs), state.root)
	if err != nil {
		// Missing outputs invalidate the entry.
		return false
	}
	return outputHash == entry.OutputHash
}

// writeBack records a successful run. Faults skip the write.
func (state *runState) writeBack(task *domain.Task, fingerprint string) {
	entry := domain.CacheEntry{
		Fingerprint: fingerprint,
		Task:        task.Name.String(),
		Timestamp:   state.s.now(),
	}
	if len(task.Outputs) > 0 {
		outputHash, err := state.s.fingerprinter.OutputHash(domain.Strings(task.Outputs), state.root)
		if err != nil {
			state.warn(task, "outputs not produced, skipping cache write", err)
			return
		}
		entry.OutputHash = outputHash
	}
	if err := state.opts.Cache.Put(entry); err != nil {
		state.warn(task, "cache write failed", err)
	}
}

func (state *runState) warn(task *domain.Task, what string, err error) {
	cacheErr := domain.NewCacheError(fmt.Sprintf("task %s: %s", task.Name, what), err)
	state.s.logger.Warn(cacheErr.Error())
}

// exitCodeOf returns the exit code recorded on err, or -1.
func exitCodeOf(err error) int {
	var zErr *zerr.Error
	if errors.As(err, &zErr) {
		if code, ok := zErr.Metadata()["exit_code"].(int); ok {
			return code
		}
	}
	return -1
}
