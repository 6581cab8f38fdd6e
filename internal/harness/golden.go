package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/cardfs/internal/tree"
)

// Snapshot renders a result as text for golden comparison: the trace, one
// line per event, then the final tree with ids.
func Snapshot(name string, result *Result) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "scenario: %s\n\ntrace:\n", name)
	for _, event := range result.Trace {
		switch event.Type {
		case "invocation":
			args, err := json.Marshal(event.Args)
			if err != nil {
				return nil, err
			}
			fmt.Fprintf(&buf, "%3d %s %s\n", event.Seq, event.Action, args)
		default:
			fmt.Fprintf(&buf, "%3d   -> %s", event.Seq, event.OutputCase)
			if len(event.Result) > 0 {
				out, err := json.Marshal(event.Result)
				if err != nil {
					return nil, err
				}
				fmt.Fprintf(&buf, " %s", out)
			}
			buf.WriteString("\n")
		}
	}

	if result.Tree != nil {
		buf.WriteString("\ntree:\n")
		if err := tree.Render(&buf, result.Tree, tree.RootID, tree.RenderOptions{IDs: true}); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := Snapshot(name, result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
