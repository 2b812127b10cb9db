package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	modelPath    = "testdata/model.cue"
	stricterPath = "testdata/stricter.cue"
	invalidPath  = "testdata/invalid.cue"
)

// execute runs the root command with args and returns stdout, stderr, and
// the command error.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// decode unmarshals a json CLIResponse whose data has type T.
func decode[T any](t *testing.T, out string) (string, T, *CLIError) {
	t.Helper()
	var resp struct {
		Status string    `json:"status"`
		Data   T         `json:"data"`
		Error  *CLIError `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	return resp.Status, resp.Data, resp.Error
}

func writeFile(path, body string) error {
	return os.WriteFile(path, []byte(body), 0o644)
}

func TestRoot_InvalidFormat(t *testing.T) {
	_, stderr, err := execute(t, "validate", modelPath, "--format", "yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stderr, `invalid format "yaml"`)
}

func TestValidate(t *testing.T) {
	out, _, err := execute(t, "validate", modelPath)
	require.NoError(t, err)
	assert.Equal(t, "✓ Model valid: 5 causaloids, 2 states\n", out)

	out, _, err = execute(t, "validate", modelPath, "--format", "json")
	require.NoError(t, err)
	status, res, _ := decode[ValidateResult](t, out)
	assert.Equal(t, "ok", status)
	assert.Equal(t, ValidateResult{Path: modelPath, Causaloids: 5, States: 2}, res)
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	out, _, err := execute(t, "validate", invalidPath, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	status, _, cliErr := decode[any](t, out)
	assert.Equal(t, "error", status)
	require.NotNil(t, cliErr)
	assert.Equal(t, ErrCodeValidation, cliErr.Code)

	details, ok := cliErr.Details.([]any)
	require.True(t, ok, "details: %#v", cliErr.Details)
	joined := ""
	for _, d := range details {
		joined += d.(string) + "\n"
	}
	assert.Contains(t, joined, "[E201]")
	assert.Contains(t, joined, "[E203]")
	assert.Contains(t, joined, "[E204]")
}

func TestValidate_TextListsDetails(t *testing.T) {
	out, _, err := execute(t, "validate", invalidPath)
	require.Error(t, err)
	assert.Contains(t, out, "Error [E004]: model has 3 validation error(s)")
	assert.Contains(t, out, "  [E204]")
}

func TestValidate_MissingPath(t *testing.T) {
	out, _, err := execute(t, "validate", "testdata/nowhere.cue")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E001]: model not found: testdata/nowhere.cue")
}

func TestInspect(t *testing.T) {
	out, _, err := execute(t, "inspect", modelPath, "--format", "json")
	require.NoError(t, err)

	_, res, _ := decode[InspectResult](t, out)
	require.Len(t, res.Causaloids, 5)
	require.Len(t, res.States, 2)

	byID := map[uint64]CausaloidInfo{}
	for _, c := range res.Causaloids {
		byID[c.ID] = c
	}
	assert.Equal(t, CausaloidInfo{ID: 10, Kind: "collection", Description: "overheat", Policy: "all", Members: []uint64{1, 2}}, byID[10])
	assert.Equal(t, "high pressure", byID[2].Description)
	assert.Equal(t, "singleton", byID[1].Kind)
	assert.Empty(t, byID[1].Policy)

	boiler := res.States[0]
	if boiler.Name != "boiler" {
		boiler = res.States[1]
	}
	assert.Equal(t, StateInfo{Name: "boiler", ID: 1, Causaloid: "overheat", Action: "shutdown", Data: "Map{bar: Numeric(2), temperature: Numeric(20)}"}, boiler)

	text, _, err := execute(t, "inspect", modelPath)
	require.NoError(t, err)
	assert.Contains(t, text, "Causaloids (5):")
	assert.Contains(t, text, `10 collection "overheat" policy=all members=[1 2]`)
	assert.Contains(t, text, "States (2):")
}

func TestEval_DeclaredData(t *testing.T) {
	out, _, err := execute(t, "eval", modelPath, "--format", "json")
	require.NoError(t, err)

	_, res, _ := decode[EvalResult](t, out)
	require.Len(t, res.Evaluations, 2)
	assert.Equal(t, 0, res.Fired)
	assert.Equal(t, 0, res.Errors)
	assert.Equal(t, "boiler", res.Evaluations[0].State)
	assert.Equal(t, "Boolean(false)", res.Evaluations[0].Value)
	assert.Empty(t, res.Evaluations[0].Explain)
}

func TestEval_Inputs(t *testing.T) {
	out, _, err := execute(t, "eval", modelPath, "--input", "testdata/inputs.yaml", "--explain", "--format", "json")
	require.NoError(t, err)

	_, res, _ := decode[EvalResult](t, out)
	assert.Equal(t, 2, res.Fired)
	require.Len(t, res.Evaluations, 2)

	boiler, frost := res.Evaluations[0], res.Evaluations[1]
	assert.True(t, boiler.Fired)
	assert.Equal(t, "shutdown", boiler.Action)
	assert.Equal(t, "Boolean(true)", boiler.Value)
	assert.Contains(t, boiler.Explain, "overheat: all → true (2 true, 2 of 2 members evaluated)")
	assert.True(t, frost.Fired)
	assert.Equal(t, "heat", frost.Action)

	text, _, err := execute(t, "eval", modelPath, "--input", "testdata/inputs.yaml", "--parallel", "1")
	require.NoError(t, err)
	assert.Contains(t, text, "fired shutdown")
	assert.True(t, strings.HasSuffix(text, "2 states evaluated, 2 fired, 0 errors\n"), text)
}

func TestEval_EvaluationErrorExitsWithFailure(t *testing.T) {
	out, _, err := execute(t, "eval", modelPath, "--input", "testdata/bad_inputs.yaml", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	_, res, _ := decode[EvalResult](t, out)
	assert.Equal(t, 1, res.Errors)
	assert.Contains(t, res.Evaluations[0].Error, `expected map with field "temperature"`)
	assert.Empty(t, res.Evaluations[1].Error)
}

func TestEval_UnknownStateInInput(t *testing.T) {
	input := filepath.Join(t.TempDir(), "in.yaml")
	require.NoError(t, writeFile(input, "ghost: 1\n"))

	out, _, err := execute(t, "eval", modelPath, "--input", input)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, `Error [E008]: unknown state "ghost"`)
}

func TestEval_AuditLogAndHistory(t *testing.T) {
	db := filepath.Join(t.TempDir(), "audit.db")

	_, _, err := execute(t, "eval", modelPath, "--input", "testdata/inputs.yaml", "--db", db)
	require.NoError(t, err)
	_, _, err = execute(t, "eval", modelPath, "--db", db)
	require.NoError(t, err)

	out, _, err := execute(t, "history", "--db", db, "--format", "json")
	require.NoError(t, err)
	_, records, _ := decode[[]RecordInfo](t, out)
	require.Len(t, records, 4)
	for i, r := range records {
		assert.Equal(t, int64(i+1), r.Seq, "clock resumes across runs")
		assert.Empty(t, r.Trace)
	}

	out, _, err = execute(t, "history", "--db", db, "--state", "1", "--format", "json")
	require.NoError(t, err)
	_, records, _ = decode[[]RecordInfo](t, out)
	require.Len(t, records, 2)
	assert.Equal(t, "Map{bar: Numeric(4), temperature: Numeric(70)}", records[0].Input)
	assert.True(t, records[0].Fired)
	assert.False(t, records[1].Fired)

	out, _, err = execute(t, "history", "--db", db, "--fired", "--format", "json")
	require.NoError(t, err)
	_, fired, _ := decode[[]RecordInfo](t, out)
	assert.Len(t, fired, 2)

	out, _, err = execute(t, "history", "--db", db, "--evaluation", records[0].EvaluationID, "--format", "json")
	require.NoError(t, err)
	_, one, _ := decode[RecordInfo](t, out)
	assert.Equal(t, records[0].EvaluationID, one.EvaluationID)
	assert.Contains(t, one.Trace, "=> Boolean(true)")
}

func TestHistory_MissingDatabase(t *testing.T) {
	out, _, err := execute(t, "history", "--db", filepath.Join(t.TempDir(), "none.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E001]: database not found")
}

func TestReplay(t *testing.T) {
	db := filepath.Join(t.TempDir(), "audit.db")
	_, _, err := execute(t, "eval", modelPath, "--input", "testdata/inputs.yaml", "--db", db)
	require.NoError(t, err)

	out, _, err := execute(t, "replay", modelPath, "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "✓ Replay clean: 2 evaluations reproduced\n", out)

	out, _, err = execute(t, "replay", stricterPath, "--db", db, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	_, res, _ := decode[ReplayResult](t, out)
	assert.False(t, res.Clean)
	assert.Equal(t, 2, res.Records)
	require.Len(t, res.Divergences, 1)
	d := res.Divergences[0]
	assert.Equal(t, uint64(1), d.StateID)
	assert.True(t, d.RecordedFired)
	assert.False(t, d.ReplayedFired)
	assert.Contains(t, d.Trace, "=> Boolean(false)")
}

func TestExplain(t *testing.T) {
	out, _, err := execute(t, "explain", modelPath, "--state", "boiler", "--value", "{temperature: 70, bar: 4}", "--format", "json")
	require.NoError(t, err)

	_, res, _ := decode[ExplainResult](t, out)
	assert.Equal(t, "boiler", res.State)
	assert.True(t, res.WouldFire)
	assert.Equal(t, "Boolean(true)", res.Value)
	assert.NotEmpty(t, res.Log)
	assert.True(t, strings.HasSuffix(res.Explain, "=> Boolean(true)"))

	out, _, err = execute(t, "explain", modelPath, "--state", "boiler")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out, "=> Boolean(false)\n"), out)
}

func TestExplain_Errors(t *testing.T) {
	out, _, err := execute(t, "explain", modelPath, "--state", "boiler", "--value", "70", "--format", "json")
	require.NoError(t, err, "a failing evaluation is still an explanation")
	_, res, _ := decode[ExplainResult](t, out)
	assert.False(t, res.WouldFire)
	assert.Contains(t, res.Error, `expected map with field "temperature"`)

	out, _, err = execute(t, "explain", modelPath, "--state", "ghost")
	require.Error(t, err)
	assert.Contains(t, out, `Error [E008]: unknown state "ghost"`)

	_, _, err = execute(t, "explain", modelPath)
	require.Error(t, err, "--state is required")
}

func TestCounterfactual_State(t *testing.T) {
	out, _, err := execute(t, "counterfactual", modelPath, "--state", "boiler", "--force", "{temperature: 90, bar: 5}", "--format", "json")
	require.NoError(t, err)

	_, res, _ := decode[CounterfactualResult](t, out)
	assert.Equal(t, []string{"overheat"}, res.Chain)
	assert.Equal(t, "Boolean(false)", res.Factual.Value)
	assert.Equal(t, "Boolean(true)", res.Counterfactual.Value)
	assert.True(t, res.Changed)
	assert.Contains(t, res.Counterfactual.Explain, "intervention")
}

func TestCounterfactual_Chain(t *testing.T) {
	out, _, err := execute(t, "counterfactual", modelPath, "--chain", "warm", "--value", "40", "--force", "35")
	require.NoError(t, err)
	assert.Contains(t, out, "Unchanged: Boolean(true)")

	out, _, err = execute(t, "counterfactual", modelPath, "--chain", "warm", "--value", "10", "--force", "35")
	require.NoError(t, err)
	assert.Contains(t, out, "Changed: Boolean(false) → Boolean(true)")

	out, _, err = execute(t, "counterfactual", modelPath, "--chain", "warm", "--value", "10", "--force", "35", "--at", "2")
	require.Error(t, err)
	assert.Contains(t, out, "intervention point 2 out of range [0, 1]")

	out, _, err = execute(t, "counterfactual", modelPath, "--chain", "ghost", "--force", "1")
	require.Error(t, err)
	assert.Contains(t, out, `unknown causaloid "ghost"`)

	_, _, err = execute(t, "counterfactual", modelPath, "--force", "1")
	require.Error(t, err, "one of --state or --chain is required")
}

func TestTest_Scenarios(t *testing.T) {
	scenarios := filepath.Join("..", "harness", "testdata", "scenarios")

	out, _, err := execute(t, "test", scenarios)
	require.NoError(t, err)
	assert.Equal(t, "✓ 1 scenarios passed\n", out)

	out, _, err = execute(t, "test", scenarios, "--filter", "nothing*")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "no scenarios found")
}

func TestTest_FailingScenario(t *testing.T) {
	model, err := filepath.Abs(modelPath)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "fails.yaml")
	require.NoError(t, writeFile(path, `name: fails
description: frost never fires on declared data
model: `+model+`
evaluations:
  - state: frost
    expect:
      fired: true
`))

	out, _, err := execute(t, "test", path, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	_, res, _ := decode[struct {
		Total    int `json:"total"`
		Failed   int `json:"failed"`
		Failures []struct {
			Scenario string   `json:"scenario"`
			Errors   []string `json:"errors"`
		} `json:"failures"`
	}](t, out)
	assert.Equal(t, 1, res.Total)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "fails", res.Failures[0].Scenario)
	assert.Contains(t, res.Failures[0].Errors[0], "expected fired=true, got false")
}

func TestValidate_VerboseListsFiles(t *testing.T) {
	out, stderr, err := execute(t, "validate", modelPath, "-v")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Model valid")
	assert.Contains(t, stderr, "Loading testdata/model.cue")
}
