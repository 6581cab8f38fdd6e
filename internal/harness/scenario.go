package harness

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario drives a fresh engine through a list of operations and checks
// the outcome.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// IDs fixes the ids handed to new nodes, in creation order. When empty,
	// ids are n-1, n-2, ...
	IDs []string `yaml:"ids,omitempty"`

	// Setup steps build the starting tree. They must not be rejected.
	Setup []FlowStep `yaml:"setup,omitempty"`

	// Flow is the sequence under test.
	Flow []FlowStep `yaml:"flow"`

	// Assertions are checked against the trace and the final tree.
	Assertions []Assertion `yaml:"assertions"`
}

// FlowStep invokes one engine operation.
type FlowStep struct {
	// Invoke is the operation name, one of the Action* constants.
	Invoke string `yaml:"invoke"`

	// Args are the operation's arguments.
	Args map[string]any `yaml:"args"`

	// Expect checks the completion. Nil means no check.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies expected completion behavior.
type ExpectClause struct {
	// Case is the expected output case: Success, Unchanged or Rejected.
	Case string `yaml:"case"`

	// Result is a subset match against the completion's result.
	Result map[string]any `yaml:"result,omitempty"`
}

// Assertion validates the trace or the final tree.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Action is used by trace_contains and trace_count.
	Action string `yaml:"action,omitempty"`

	// Args is a subset match used by trace_contains.
	Args map[string]any `yaml:"args,omitempty"`

	// Actions is the expected order for trace_order.
	Actions []string `yaml:"actions,omitempty"`

	// Count is used by trace_count and tree_size.
	Count int `yaml:"count,omitempty"`

	// ID selects the node for node and children.
	ID string `yaml:"id,omitempty"`

	// IDs lists the nodes for missing.
	IDs []string `yaml:"ids,omitempty"`

	// Expect is a subset match on node fields: name, parent, kind,
	// permission, text.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Names is the expected ordered child names for children.
	Names []string `yaml:"names,omitempty"`
}

// Assertion types.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertNode          = "node"
	AssertChildren      = "children"
	AssertMissing       = "missing"
	AssertTreeSize      = "tree_size"
	AssertAcyclic       = "acyclic"
)

// Actions a step may invoke.
const (
	ActionCreate     = "create"
	ActionRename     = "rename"
	ActionMove       = "move"
	ActionDelete     = "delete"
	ActionCopy       = "copy"
	ActionCut        = "cut"
	ActionPaste      = "paste"
	ActionSetContent = "set_content"
	ActionPermission = "permission"
)

var knownActions = map[string]bool{
	ActionCreate: true, ActionRename: true, ActionMove: true,
	ActionDelete: true, ActionCopy: true, ActionCut: true,
	ActionPaste: true, ActionSetContent: true, ActionPermission: true,
}

// LoadScenario reads and validates a scenario file. Unknown fields are an
// error.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse YAML: empty document")
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Setup {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
	}
	for i, step := range s.Flow {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
		if step.Expect != nil {
			switch step.Expect.Case {
			case CaseSuccess, CaseUnchanged, CaseRejected:
			default:
				return fmt.Errorf("flow[%d]: unknown expect case %q", i, step.Expect.Case)
			}
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step FlowStep) error {
	if step.Invoke == "" {
		return fmt.Errorf("invoke is required")
	}
	if !knownActions[step.Invoke] {
		return fmt.Errorf("unknown action %q", step.Invoke)
	}
	if step.Args == nil {
		return fmt.Errorf("args is required (use {} if none)")
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertTraceContains, AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("%s requires action", a.Type)
		}
	case AssertTraceOrder:
		if len(a.Actions) < 2 {
			return fmt.Errorf("trace_order requires at least 2 actions")
		}
	case AssertNode, AssertChildren:
		if a.ID == "" {
			return fmt.Errorf("%s requires id", a.Type)
		}
	case AssertMissing:
		if len(a.IDs) == 0 {
			return fmt.Errorf("missing requires ids")
		}
	case AssertTreeSize:
		if a.Count < 1 {
			return fmt.Errorf("tree_size requires a positive count")
		}
	case AssertAcyclic:
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
