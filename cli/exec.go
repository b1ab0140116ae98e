package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/glyph-labs/glyphflow/runtime"
)

// NewExecCmd creates the "exec" subcommand.
func NewExecCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec <unique-name>",
		Short: "Execute one step of a node type",
		Long: "Exec creates a fresh instance of the named node type, runs one " +
			"execution step with the given inputs and properties, prints the " +
			"result, and destroys the instance. Async node types are polled " +
			"until completion or --timeout.",
		Args: cobra.ExactArgs(1),
		RunE: runExec,
	}

	addSessionFlags(cmd)
	cmd.Flags().StringP("input", "i", "", "Input pin values as a JSON object")
	cmd.Flags().String("input-file", "", "Read input pin values from a JSON file")
	cmd.Flags().StringArrayP("prop", "p", nil, "Node property as key=value (repeatable)")
	cmd.Flags().StringP("format", "f", "pretty", "Output format: pretty or json")
	cmd.Flags().Duration("timeout", 10*time.Second, "Async completion timeout")
	cmd.Flags().Duration("poll-interval", 10*time.Millisecond, "Async poll interval")

	return cmd
}

// execOutput is the JSON shape of one exec result.
type execOutput struct {
	Success   bool           `json:"success"`
	Error     string         `json:"error,omitempty"`
	Outputs   map[string]any `json:"outputs,omitempty"`
	FiredPins []string       `json:"fired_pins,omitempty"`
	ExecID    string         `json:"exec_id"`
}

func runExec(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if format != "pretty" && format != "json" {
		return exitError(exitInputParse, "unknown format %q (want pretty or json)", format)
	}

	inputs, err := parseExecInputs(cmd)
	if err != nil {
		return err
	}
	props, err := parseProps(cmd)
	if err != nil {
		return err
	}

	s, err := openSession(cmd, sessionOptions{})
	if err != nil {
		return err
	}
	defer s.Close()

	uniqueName := args[0]
	typeID, ok := s.reg.Lookup(uniqueName)
	if !ok {
		return exitError(exitUnknownNode, "unknown node type %q (try 'glyphflow nodes list')", uniqueName)
	}

	instID, err := s.engine.CreateInstance(typeID)
	if err != nil {
		return exitError(exitRuntime, "creating instance: %v", err)
	}
	defer func() {
		_ = s.engine.DestroyInstance(instID)
	}()

	result, err := s.engine.Execute(instID, runtime.ExecParams{Inputs: inputs, Props: props})
	if err != nil {
		return exitError(exitRuntime, "executing %s: %v", uniqueName, err)
	}

	if result.AsyncPending {
		timeout, _ := cmd.Flags().GetDuration("timeout")
		interval, _ := cmd.Flags().GetDuration("poll-interval")
		result, err = pollUntilComplete(s, instID, timeout, interval)
		if err != nil {
			return err
		}
	}

	if err := printExecResult(cmd, format, result); err != nil {
		return err
	}
	if !result.Success {
		return exitError(exitStepFailed, "node execution failed: %s", result.Err)
	}
	return nil
}

func pollUntilComplete(s *session, id runtime.InstanceID, timeout, interval time.Duration) (*runtime.ExecResult, error) {
	deadline := time.Now().Add(timeout)
	for {
		result, done := s.engine.PollComplete(id)
		if done {
			if result == nil {
				return nil, exitError(exitRuntime, "instance completed without a result")
			}
			return result, nil
		}
		if time.Now().After(deadline) {
			return nil, exitError(exitTimeout, "async completion timed out after %s", timeout)
		}
		time.Sleep(interval)
	}
}

func printExecResult(cmd *cobra.Command, format string, result *runtime.ExecResult) error {
	out := cmd.OutOrStdout()

	if format == "json" {
		data, err := json.MarshalIndent(execOutput{
			Success:   result.Success,
			Error:     result.Err,
			Outputs:   result.Outputs,
			FiredPins: result.FiredPins,
			ExecID:    result.ExecID,
		}, "", "  ")
		if err != nil {
			return exitError(exitRuntime, "encoding result: %v", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	if !result.Success {
		fmt.Fprintf(out, "Failed: %s\n", result.Err)
		return nil
	}
	fmt.Fprintln(out, "Success")
	if len(result.Outputs) > 0 {
		names := make([]string, 0, len(result.Outputs))
		for name := range result.Outputs {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(out, "  %s = %v\n", name, result.Outputs[name])
		}
	}
	if len(result.FiredPins) > 0 {
		fmt.Fprintf(out, "  fired: %s\n", strings.Join(result.FiredPins, ", "))
	}
	return nil
}

// parseExecInputs reads pin inputs from --input or --input-file. Both set
// is an error; neither means no inputs.
func parseExecInputs(cmd *cobra.Command) (map[string]any, error) {
	inline, _ := cmd.Flags().GetString("input")
	file, _ := cmd.Flags().GetString("input-file")
	if inline != "" && file != "" {
		return nil, exitError(exitInputParse, "cannot specify both --input and --input-file")
	}

	var raw []byte
	switch {
	case inline != "":
		raw = []byte(inline)
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, exitError(exitInputParse, "reading input file: %v", err)
		}
		raw = data
	default:
		return nil, nil
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	inputs := make(map[string]any)
	if err := decoder.Decode(&inputs); err != nil {
		return nil, exitError(exitInputParse, "parsing inputs: %v", err)
	}
	for name, value := range inputs {
		inputs[name] = normalizeInput(value)
	}
	return inputs, nil
}

// normalizeInput maps JSON numbers onto the pin value types the engine
// coerces from: whole numbers become int64, the rest float64.
func normalizeInput(value any) any {
	switch v := value.(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()
	case map[string]any:
		for k, item := range v {
			v[k] = normalizeInput(item)
		}
		return v
	case []any:
		for i, item := range v {
			v[i] = normalizeInput(item)
		}
		return v
	default:
		return value
	}
}

// parseProps converts repeated --prop key=value flags into a property map.
func parseProps(cmd *cobra.Command) (map[string]string, error) {
	pairs, _ := cmd.Flags().GetStringArray("prop")
	if len(pairs) == 0 {
		return nil, nil
	}
	props := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, exitError(exitInputParse, "invalid property %q (want key=value)", pair)
		}
		props[key] = value
	}
	return props, nil
}
