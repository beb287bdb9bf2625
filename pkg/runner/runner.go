package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/expr-lang/expr"

	"github.com/uiflow/uiflow/pkg/artifacts"
	"github.com/uiflow/uiflow/pkg/driver"
	"github.com/uiflow/uiflow/pkg/resolver"
	"github.com/uiflow/uiflow/pkg/schema"
	"github.com/uiflow/uiflow/pkg/steps"
	"github.com/uiflow/uiflow/pkg/vars"
)

// Failure sentinels beyond the resolver/step taxonomies.
var (
	ErrCancelled   = errors.New("cancelled")
	ErrStepTimeout = errors.New("step timeout exceeded")
)

// Config is the execution configuration for one Run/RunAll invocation.
type Config struct {
	Headed  bool
	SlowMo  time.Duration
	Channel string

	Workers int

	ArtifactsDir    string
	StepTimeout     time.Duration
	ScenarioTimeout time.Duration

	// Env is the process environment snapshot for ${env.X}. Nil means
	// read os.Environ at run start.
	Env map[string]string

	// Vars are command-line overrides merged over scenario vars.
	Vars map[string]string

	// Render is invoked with the finished result before Run returns,
	// inside the lifecycle. Wired to the reporter by the CLI.
	Render func(*ScenarioResult) error

	// Record is invoked after Render; wired to the run history index.
	Record func(*ScenarioResult) error

	// Stdout receives progress lines. Defaults to os.Stdout.
	Stdout io.Writer
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.ArtifactsDir == "" {
		out.ArtifactsDir = "artifacts"
	}
	if out.StepTimeout == 0 {
		out.StepTimeout = 30 * time.Second
	}
	if out.Workers < 1 {
		out.Workers = 1
	}
	if out.Stdout == nil {
		out.Stdout = os.Stdout
	}
	if out.Env == nil {
		out.Env = environMap()
	}
	return out
}

func environMap() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i > 0 {
			env[kv[:i]] = kv[i+1:]
		}
	}
	return env
}

// Runner executes scenarios against a browser session. The registry is
// immutable for the runner's lifetime and is the only state shared
// between parallel scenarios.
type Runner struct {
	registry *steps.Registry
	session  driver.Session // injected for tests; nil means launch per run
}

// New creates a runner over the given step registry.
func New(registry *steps.Registry) *Runner {
	return &Runner{registry: registry}
}

// WithSession substitutes a pre-built driver session. Used by tests and
// by callers that share one browser across scenarios.
func (r *Runner) WithSession(s driver.Session) *Runner {
	r.session = s
	return r
}

// Run executes one scenario through the full lifecycle and returns its
// result. The returned error is non-nil only for infrastructure
// failures; step failures are reported through the result status.
func (r *Runner) Run(ctx context.Context, scenario *schema.Scenario, cfg Config) (*ScenarioResult, error) {
	cfg = cfg.withDefaults()

	if errs := schema.Validate(scenario); len(errs) > 0 {
		return nil, fmt.Errorf("scenario invalid: %s", errs[0].Error())
	}

	if cfg.ScenarioTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ScenarioTimeout)
		defer cancel()
	}

	result := &ScenarioResult{
		Title:     scenario.Title,
		Status:    "passed",
		StartedAt: time.Now(),
	}

	mgr := artifacts.NewManager(scenario.Artifacts, cfg.ArtifactsDir)
	if err := mgr.CreateRunDir(result.StartedAt, scenario.Title); err != nil {
		return nil, err
	}
	defer mgr.Close()
	result.ArtifactsDir = mgr.RunDir
	mgr.Masker().CollectScenarioSecrets(scenario)

	merged := make(map[string]string, len(scenario.Vars)+len(cfg.Vars))
	for k, v := range scenario.Vars {
		merged[k] = v
	}
	for k, v := range cfg.Vars {
		merged[k] = v
	}
	expander := vars.NewExpander(cfg.Env, merged)

	session := r.session
	if session == nil {
		var err error
		session, err = driver.Launch(driver.LaunchOptions{
			Headed:  cfg.Headed,
			SlowMo:  cfg.SlowMo,
			Channel: cfg.Channel,
		})
		if err != nil {
			return nil, err
		}
		defer session.Close()
	}

	ctxOpts := contextOptions(scenario, mgr)
	bctx, err := session.NewContext(ctxOpts)
	if err != nil {
		return nil, err
	}
	browserClosed := false
	defer func() {
		if !browserClosed {
			bctx.Close()
		}
	}()

	tracing := scenario.Artifacts.Trace.Mode != "none"
	if tracing {
		if err := bctx.StartTracing(); err != nil {
			return nil, err
		}
	}

	page, err := bctx.NewPage()
	if err != nil {
		return nil, err
	}

	sc := &steps.Context{
		Resolver:    resolver.New(scenario.Healing),
		Vars:        expander,
		StepTimeout: cfg.StepTimeout,
		Logf:        mgr.Logf,
	}

	fmt.Fprintf(cfg.Stdout, "▶ %s\n", scenario.Title)
	mgr.Logf("run start: %s", scenario.Title)

	r.executeSteps(ctx, page, scenario, sc, mgr, cfg, result)

	// Trace finalization. The archive is written first and deleted by the
	// success cleanup when the policy says on_failure.
	if tracing {
		if err := mgr.EnsureTraceDir(); err == nil {
			if err := bctx.StopTracing(mgr.TracePath()); err != nil {
				mgr.Logf("stop tracing: %v", err)
			}
		}
	}

	// Console errors must be read before the page goes away; videos are
	// flushed at context close, so the context must close before the
	// success cleanup can see them.
	consoleErrors := page.ConsoleErrors()
	page.Close()
	bctx.Close()
	browserClosed = true

	if result.Status == "passed" {
		if err := mgr.CleanupOnSuccess(); err != nil {
			mgr.Logf("cleanup: %v", err)
		}
	}

	if err := mgr.SaveFlowCopy(scenario); err != nil {
		mgr.Logf("save flow copy: %v", err)
	}
	// The snapshot records the resolved variables: scenario vars plus
	// every process environment variable the flow actually referenced.
	snapVars := expander.Vars()
	for name := range referencedEnvVars(scenario) {
		if v, ok := cfg.Env[name]; ok {
			snapVars[name] = v
		}
	}
	snap := artifacts.EnvSnapshot{
		Viewport:     scenario.Vars["viewportWidth"] + "x" + scenario.Vars["viewportHeight"],
		Locale:       scenario.Vars["locale"],
		Timezone:     scenario.Vars["timezone"],
		ExtraHeaders: ctxOpts.ExtraHeaders,
		Vars:         snapVars,
	}
	if err := mgr.SaveEnvSnapshot(snap, secretVarNames(scenario)); err != nil {
		mgr.Logf("save env snapshot: %v", err)
	}
	if err := mgr.SaveConsoleLog(consoleErrors); err != nil {
		mgr.Logf("save console log: %v", err)
	}

	result.FinishedAt = time.Now()
	result.Duration = result.FinishedAt.Sub(result.StartedAt)
	result.DurationMS = float64(result.Duration.Milliseconds())
	for i := range result.Steps {
		result.Steps[i].DurationMS = float64(result.Steps[i].Duration.Milliseconds())
	}

	if cfg.Render != nil {
		if err := cfg.Render(result); err != nil {
			mgr.Logf("render reports: %v", err)
		}
	}
	if cfg.Record != nil {
		if err := cfg.Record(result); err != nil {
			mgr.Logf("record history: %v", err)
		}
	}

	summary := result.Summarize()
	glyph := "✓"
	if result.Status != "passed" {
		glyph = "✗"
	}
	fmt.Fprintf(cfg.Stdout, "%s %s (%d passed, %d failed, %d skipped)\n  artifacts: %s\n",
		glyph, scenario.Title, summary.Passed, summary.Failed, summary.Skipped, mgr.RunDir)
	mgr.Logf("run end: status=%s", result.Status)

	return result, nil
}

// contextOptions maps the scenario's environment vars onto driver
// context options.
func contextOptions(s *schema.Scenario, mgr *artifacts.Manager) driver.ContextOptions {
	opts := driver.ContextOptions{}
	if w, err := strconv.Atoi(s.Vars["viewportWidth"]); err == nil {
		if h, err := strconv.Atoi(s.Vars["viewportHeight"]); err == nil {
			opts.ViewportWidth, opts.ViewportHeight = w, h
		}
	}
	opts.Locale = s.Vars["locale"]
	opts.Timezone = s.Vars["timezone"]
	if headers := s.Vars["extraHeaders"]; headers != "" {
		parsed := make(map[string]string)
		for _, pair := range strings.Split(headers, ",") {
			if k, v, ok := strings.Cut(pair, ":"); ok {
				parsed[strings.TrimSpace(k)] = strings.TrimSpace(v)
			}
		}
		if len(parsed) > 0 {
			opts.ExtraHeaders = parsed
		}
	}
	opts.StorageStatePath = s.Vars["storageState"]
	if s.Artifacts.Video.Mode != "none" {
		opts.VideoDir = mgr.VideoDir()
	}
	return opts
}

// referencedEnvVars collects the ${env.X} names used anywhere in the
// scenario.
func referencedEnvVars(s *schema.Scenario) map[string]bool {
	names := make(map[string]bool)
	scan := func(st *schema.Step) {
		for _, v := range st.Body {
			str, ok := v.(string)
			if !ok {
				continue
			}
			for _, m := range varRefRe.FindAllStringSubmatch(str, -1) {
				if m[1] == "env" {
					names[m[2]] = true
				}
			}
		}
	}
	for _, fs := range s.FlatSteps() {
		scan(fs.Step)
	}
	return names
}

// secretVarNames collects the variable names referenced from secret step
// fields so env.json masks them by name.
func secretVarNames(s *schema.Scenario) map[string]bool {
	names := make(map[string]bool)
	for _, fs := range s.FlatSteps() {
		st := fs.Step
		if !st.Secret() {
			continue
		}
		for _, v := range st.Body {
			str, ok := v.(string)
			if !ok {
				continue
			}
			for _, m := range varRefRe.FindAllStringSubmatch(str, -1) {
				names[m[2]] = true
			}
		}
	}
	return names
}

var varRefRe = vars.RefRe()

// executeSteps runs the flattened step list. The first failure stops the
// iteration.
func (r *Runner) executeSteps(ctx context.Context, page driver.Page, scenario *schema.Scenario, sc *steps.Context, mgr *artifacts.Manager, cfg Config, result *ScenarioResult) {
	flat := scenario.FlatSteps()

	// The runner owns initial navigation unless the flow starts with an
	// explicit goto.
	if len(flat) > 0 && flat[0].Step.Type != "goto" {
		if err := page.Goto(scenario.BaseURL); err != nil {
			result.Status = "failed"
			result.Steps = append(result.Steps, StepResult{
				StepName: "open-base-url", StepType: "goto", Status: "failed", Error: err.Error(),
			})
			return
		}
		if err := page.WaitForLoadState("domcontentloaded"); err != nil {
			mgr.Logf("initial load state: %v", err)
		}
	}

	for idx, fs := range flat {
		stepResult := r.executeStep(ctx, page, scenario, fs, idx, sc, mgr, cfg)
		result.Steps = append(result.Steps, stepResult)

		switch stepResult.Status {
		case "failed":
			result.Status = "failed"
			fmt.Fprintf(cfg.Stdout, "  ✗ %s: %s\n", stepResult.StepName, stepResult.Error)
			return
		case "skipped":
			fmt.Fprintf(cfg.Stdout, "  ⊘ %s (when: false)\n", stepResult.StepName)
		default:
			fmt.Fprintf(cfg.Stdout, "  ✓ %s\n", stepResult.StepName)
		}
	}
}

// executeStep runs one step with its hooks, screenshots and timeout.
func (r *Runner) executeStep(ctx context.Context, page driver.Page, scenario *schema.Scenario, fs schema.FlatStep, idx int, sc *steps.Context, mgr *artifacts.Manager, cfg Config) (stepResult StepResult) {
	st := fs.Step
	name := st.Name()
	if name == "" {
		name = fmt.Sprintf("%s-%d", st.Type, idx)
	}

	stepResult = StepResult{
		StepName:  name,
		StepType:  st.Type,
		StepIndex: idx,
		Status:    "passed",
		Section:   fs.Section,
	}
	start := time.Now()
	defer func() {
		stepResult.Duration = time.Since(start)
	}()

	fail := func(err error) StepResult {
		stepResult.Status = "failed"
		stepResult.Error = err.Error()
		stepResult.Notes = append(stepResult.Notes, sc.DrainNotes()...)
		mgr.Logf("step %q failed: %v", name, err)
		if path, ssErr := mgr.SaveScreenshot(page, idx+1, name, "error"); ssErr == nil {
			stepResult.ScreenshotPath = path
		}
		return stepResult
	}

	if ctx.Err() != nil {
		// Hooks do not run on cancelled steps.
		return fail(fmt.Errorf("%w: %v", ErrCancelled, ctx.Err()))
	}

	// Conditional execution guard.
	if cond := st.String("when"); cond != "" {
		ok, err := evalWhen(cond, sc.Vars, cfg.Env)
		if err != nil {
			return fail(fmt.Errorf("when condition: %w", err))
		}
		if !ok {
			stepResult.Status = "skipped"
			mgr.Logf("step %q skipped (when: %s)", name, cond)
			return stepResult
		}
	}

	// Hook failures abort the scenario without running further hooks.
	if err := r.runHooks(ctx, page, scenario.Hooks.BeforeEachStep, sc); err != nil {
		return fail(fmt.Errorf("beforeEachStep hook: %w", err))
	}

	ssMode := scenario.Artifacts.Screenshots.Mode

	if ssMode == "before_each_step" || ssMode == "before_and_after" {
		if path, err := mgr.SaveScreenshot(page, idx+1, name, "before"); err == nil {
			stepResult.ScreenshotPath = path
		} else {
			mgr.Logf("before screenshot: %v", err)
		}
	}

	if err := r.dispatch(ctx, page, st, idx, name, sc, mgr, cfg); err != nil {
		return fail(err)
	}

	if ssMode == "before_and_after" {
		if _, err := mgr.SaveScreenshot(page, idx+1, name, "after"); err != nil {
			mgr.Logf("after screenshot: %v", err)
		}
	}

	if err := r.runHooks(ctx, page, scenario.Hooks.AfterEachStep, sc); err != nil {
		return fail(fmt.Errorf("afterEachStep hook: %w", err))
	}

	stepResult.Notes = append(stepResult.Notes, sc.DrainNotes()...)
	mgr.Logf("step %q passed", name)
	return stepResult
}

// dispatch expands variables and invokes the handler under the per-step
// timeout.
func (r *Runner) dispatch(ctx context.Context, page driver.Page, st *schema.Step, idx int, name string, sc *steps.Context, mgr *artifacts.Manager, cfg Config) error {
	handler, err := r.registry.Get(st.Type)
	if err != nil {
		return err
	}

	params, err := sc.Vars.ExpandStep(st.Body)
	if err != nil {
		if nf, ok := err.(*vars.NotFoundError); ok {
			nf.Step = name
		}
		return err
	}

	// Secret values become known only after expansion; register them so
	// no artifact leaks the plaintext.
	if st.Secret() {
		if value, ok := params["value"].(string); ok {
			mgr.Masker().AddSecret(value)
		}
	}

	sc.TakeScreenshot = func(label string) (string, error) {
		return mgr.SaveScreenshot(page, idx+1, label, "shot")
	}

	return runWithTimeout(ctx, cfg.StepTimeout, func(stepCtx context.Context) error {
		return handler.Execute(stepCtx, page, params, sc)
	})
}

// runHooks executes a hook list in declaration order. The first error
// stops the list.
func (r *Runner) runHooks(ctx context.Context, page driver.Page, hooks []schema.Step, sc *steps.Context) error {
	for i := range hooks {
		hook := &hooks[i]
		handler, err := r.registry.Get(hook.Type)
		if err != nil {
			return err
		}
		params, err := sc.Vars.ExpandStep(hook.Body)
		if err != nil {
			return err
		}
		if err := handler.Execute(ctx, page, params, sc); err != nil {
			return err
		}
	}
	return nil
}

// runWithTimeout bounds a handler invocation. Cancellation of the parent
// context surfaces as ErrCancelled; expiry of the per-step budget as
// ErrStepTimeout.
func runWithTimeout(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	stepCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		stepCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() { done <- fn(stepCtx) }()

	select {
	case err := <-done:
		if err != nil && ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrCancelled, err)
		}
		return err
	case <-stepCtx.Done():
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		}
		return fmt.Errorf("%w (%s)", ErrStepTimeout, timeout)
	}
}

// evalWhen evaluates a when: guard against the variable environment.
func evalWhen(cond string, ex *vars.Expander, env map[string]string) (bool, error) {
	scope := map[string]any{
		"vars": ex.Vars(),
		"env":  env,
	}
	program, err := expr.Compile(cond, expr.AsBool(), expr.AllowUndefinedVariables())
	if err != nil {
		return false, fmt.Errorf("compile %q: %w", cond, err)
	}
	out, err := expr.Run(program, scope)
	if err != nil {
		return false, fmt.Errorf("eval %q: %w", cond, err)
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("condition %q did not return bool (got %T)", cond, out)
	}
	return b, nil
}
