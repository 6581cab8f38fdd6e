package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/cardfs/internal/cache"
	"github.com/roach88/cardfs/internal/testutil"
	"github.com/roach88/cardfs/internal/tree"
	"github.com/roach88/cardfs/internal/vfs"
)

// Harness runs one scenario against its own engine.
type Harness struct {
	engine *vfs.Engine
	clock  *vfs.Clock
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs on a fresh engine over an in-memory cache with fixed
// ids and a wall clock that starts at testutil.Epoch and steps one second
// per reading, so traces and trees are reproducible.
//
// An error means the scenario could not be executed. Failed expectations
// and assertions are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// RunWithLogger is Run with engine logging sent to logger.
func RunWithLogger(scenario *Scenario, logger *slog.Logger) (*Result, error) {
	eng := vfs.New(cache.NewMemory(),
		vfs.WithIDGenerator(newScenarioIDs(scenario.IDs)),
		vfs.WithWallClock(testutil.NewStepClock(testutil.Epoch, time.Second)),
		vfs.WithLogger(logger),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		<-eng.Done()
	}()
	go func() { _ = eng.Run(ctx) }()
	if err := eng.Flush(ctx); err != nil {
		return nil, fmt.Errorf("failed to start engine: %w", err)
	}

	h := &Harness{
		engine: eng,
		clock:  vfs.NewClock(),
		logger: logger,
	}

	result := NewResult()
	for i, step := range scenario.Setup {
		outcome, err := h.step(ctx, step, result)
		if err != nil {
			return nil, fmt.Errorf("setup step %d: %w", i, err)
		}
		if outcome == CaseRejected {
			return nil, fmt.Errorf("setup step %d: %s was rejected", i, step.Invoke)
		}
	}

	for i, step := range scenario.Flow {
		outcome, err := h.step(ctx, step, result)
		if err != nil {
			return nil, fmt.Errorf("flow step %d: %w", i, err)
		}
		if step.Expect == nil {
			continue
		}
		if outcome != step.Expect.Case {
			result.AddError(fmt.Sprintf("flow step %d (%s): expected case %s, got %s",
				i, step.Invoke, step.Expect.Case, outcome))
			continue
		}
		completion := result.Trace[len(result.Trace)-1]
		for key, want := range step.Expect.Result {
			got, ok := completion.Result[key]
			if !ok {
				result.AddError(fmt.Sprintf("flow step %d (%s): result field %q missing", i, step.Invoke, key))
				continue
			}
			if !valuesEqual(got, want) {
				result.AddError(fmt.Sprintf("flow step %d (%s): result field %q: expected %v, got %v",
					i, step.Invoke, key, want, got))
			}
		}
	}

	if err := eng.Flush(ctx); err != nil {
		return nil, err
	}
	result.Tree = eng.Tree()

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}
	return result, nil
}

// step invokes one operation and traces it. It returns the output case.
func (h *Harness) step(ctx context.Context, step FlowStep, result *Result) (string, error) {
	result.AddInvocationTrace(step.Invoke, step.Args, h.clock.Next())

	outcome, out, err := h.invoke(ctx, step.Invoke, step.Args)
	if vfs.IsRejected(err) {
		outcome, out, err = CaseRejected, map[string]any{"error": err.Error()}, nil
	}
	if err != nil {
		return "", err
	}

	result.AddCompletionTrace(step.Invoke, outcome, out, h.clock.Next())
	h.logger.Debug("step completed", "action", step.Invoke, "case", outcome)
	return outcome, nil
}

func (h *Harness) invoke(ctx context.Context, action string, args map[string]any) (string, map[string]any, error) {
	e := h.engine
	switch action {
	case ActionCreate:
		var content *tree.Content
		if text, ok := args["text"]; ok {
			content = &tree.Content{Text: fmt.Sprint(text), Languages: languages(args)}
		}
		id, err := e.CreateItem(ctx, tree.Kind(str(args, "kind")), str(args, "name"), strOr(args, "parent", tree.RootID), content)
		if err != nil {
			return "", nil, err
		}
		return CaseSuccess, map[string]any{"id": id}, nil

	case ActionRename:
		return changed(e.RenameItem(ctx, str(args, "id"), str(args, "name")))

	case ActionMove:
		return idList(e.MoveItems(ctx, strs(args, "ids"), strOr(args, "target", tree.RootID)))

	case ActionDelete:
		return idList(e.DeleteItems(ctx, strs(args, "ids")))

	case ActionCopy, ActionCut:
		op := vfs.ClipCopy
		if action == ActionCut {
			op = vfs.ClipCut
		}
		if err := e.CopyToClipboard(ctx, strs(args, "ids"), op); err != nil {
			return "", nil, err
		}
		return CaseSuccess, nil, nil

	case ActionPaste:
		return idList(e.PasteFromClipboard(ctx, strOr(args, "target", tree.RootID)))

	case ActionSetContent:
		content := tree.Content{Text: str(args, "text"), Languages: languages(args)}
		return changed(e.UpdateSetContent(ctx, str(args, "id"), content))

	case ActionPermission:
		return changed(e.UpdatePermissions(ctx, str(args, "id"), tree.Permission(str(args, "permission"))))
	}
	return "", nil, fmt.Errorf("unknown action %q", action)
}

func changed(ok bool, err error) (string, map[string]any, error) {
	if err != nil {
		return "", nil, err
	}
	if !ok {
		return CaseUnchanged, nil, nil
	}
	return CaseSuccess, nil, nil
}

func idList(ids []string, err error) (string, map[string]any, error) {
	if err != nil {
		return "", nil, err
	}
	list := make([]any, len(ids))
	for i, id := range ids {
		list[i] = id
	}
	outcome := CaseSuccess
	if len(ids) == 0 {
		outcome = CaseUnchanged
	}
	return outcome, map[string]any{"ids": list}, nil
}

func languages(args map[string]any) tree.Languages {
	return tree.Languages{
		Term:       strOr(args, "term", tree.DefaultLanguage),
		Definition: strOr(args, "definition", tree.DefaultLanguage),
	}
}

func str(args map[string]any, key string) string {
	return strOr(args, key, "")
}

func strOr(args map[string]any, key, fallback string) string {
	v, ok := args[key]
	if !ok || v == nil {
		return fallback
	}
	return fmt.Sprint(v)
}

// strs reads a list of strings. A single scalar is a one-element list.
func strs(args map[string]any, key string) []string {
	switch v := args[key].(type) {
	case nil:
		return nil
	case []any:
		out := make([]string, len(v))
		for i, item := range v {
			out[i] = fmt.Sprint(item)
		}
		return out
	case []string:
		return v
	default:
		return []string{fmt.Sprint(v)}
	}
}

// scenarioIDs hands out the scenario's ids, then n-1, n-2, ...
type scenarioIDs struct {
	mu    sync.Mutex
	fixed []string
	seq   *vfs.SequenceGenerator
}

func newScenarioIDs(fixed []string) *scenarioIDs {
	return &scenarioIDs{fixed: fixed, seq: vfs.NewSequenceGenerator("n")}
}

func (g *scenarioIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.fixed) > 0 {
		id := g.fixed[0]
		g.fixed = g.fixed[1:]
		return id
	}
	return g.seq.Generate()
}

var errNoTree = errors.New("no final tree")
