package template

import (
	"reflect"
	"strings"
	"testing"

	chainerr "github.com/meow-stack/promptchain/internal/errors"
	"github.com/meow-stack/promptchain/internal/types"
)

func TestExtractPlaceholders(t *testing.T) {
	tests := []struct {
		name string
		tmpl string
		want []string
	}{
		{"none", "plain text", []string{}},
		{"single", "Hello {{NAME}}", []string{"NAME"}},
		{"first-seen order", "{{B}} {{A}} {{B}} {{C}}", []string{"B", "A", "C"}},
		{"trimmed", "{{ TOPIC }} and {{TOPIC}}", []string{"TOPIC"}},
		{"back reference", "Use {{Step1.output}} for {{X}}", []string{"Step1.output", "X"}},
		{"blank ignored", "{{ }} {{A}}", []string{"A"}},
		{"unclosed", "{{A} and {{B}}", []string{"B"}},
		{"multiline", "line {{A}}\nline {{B}}", []string{"A", "B"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractPlaceholders(tt.tmpl)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractPlaceholders(%q) = %v, want %v", tt.tmpl, got, tt.want)
			}
		})
	}
}

func TestStepReference(t *testing.T) {
	tests := []struct {
		name    string
		wantIdx int
		wantOK  bool
	}{
		{"Step1.output", 0, true},
		{"Step12.output", 11, true},
		{"Step0.output", 0, false},
		{"Step01.output", 0, false},
		{"step1.output", 0, false},
		{"Step1.outputs", 0, false},
		{"Step1", 0, false},
		{"TOPIC", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, ok := StepReference(tt.name)
			if ok != tt.wantOK || (ok && idx != tt.wantIdx) {
				t.Errorf("StepReference(%q) = (%d, %v), want (%d, %v)", tt.name, idx, ok, tt.wantIdx, tt.wantOK)
			}
		})
	}
}

func TestValidate_BackReferenceMonotonicity(t *testing.T) {
	ctx := &Context{
		Variables:   map[string]string{},
		StepOutputs: map[int]string{0: "first", 1: "second"},
	}

	tests := []struct {
		name        string
		tmpl        string
		step        int
		wantInvalid []string
		wantMissing []string
	}{
		{"earlier step", "{{Step1.output}}", 2, nil, nil},
		{"same step", "{{Step2.output}}", 1, []string{"Step2.output"}, nil},
		{"later step", "{{Step3.output}}", 1, []string{"Step3.output"}, nil},
		{"later step with output recorded", "{{Step2.output}}", 0, []string{"Step2.output"}, nil},
		{"earlier step without output", "{{Step3.output}}", 4, nil, []string{"Step3.output"}},
		{"no step index", "{{Step5.output}}", NoStep, nil, []string{"Step5.output"}},
		{"no step index resolved", "{{Step2.output}}", NoStep, nil, nil},
		{"step zero is a variable", "{{Step0.output}}", 3, nil, []string{"Step0.output"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Validate(tt.tmpl, ctx, tt.step)
			if !reflect.DeepEqual(v.InvalidReferences, tt.wantInvalid) {
				t.Errorf("InvalidReferences = %v, want %v", v.InvalidReferences, tt.wantInvalid)
			}
			if !reflect.DeepEqual(v.MissingVariables, tt.wantMissing) {
				t.Errorf("MissingVariables = %v, want %v", v.MissingVariables, tt.wantMissing)
			}
			wantValid := tt.wantInvalid == nil && tt.wantMissing == nil
			if v.Valid != wantValid {
				t.Errorf("Valid = %v, want %v", v.Valid, wantValid)
			}
		})
	}
}

func TestValidate_AbsenceVersusEmptiness(t *testing.T) {
	ctx := &Context{Variables: map[string]string{"EMPTY": ""}}

	v := Validate("[{{EMPTY}}] [{{ABSENT}}]", ctx, NoStep)
	if !reflect.DeepEqual(v.MissingVariables, []string{"ABSENT"}) {
		t.Errorf("MissingVariables = %v, want [ABSENT]", v.MissingVariables)
	}

	delete(ctx.Variables, "EMPTY")
	ctx.Variables["ABSENT"] = ""
	out, err := Render("[{{ABSENT}}]", ctx, NoStep)
	if err != nil {
		t.Fatalf("empty value should resolve: %v", err)
	}
	if out != "[]" {
		t.Errorf("Render = %q, want []", out)
	}
}

func TestRender_Strict(t *testing.T) {
	ctx := &Context{
		Variables:   map[string]string{"TOPIC": "Rust"},
		StepOutputs: map[int]string{0: "R1"},
	}

	out, err := Render("Summarize {{Step1.output}} about {{ TOPIC }}", ctx, 1)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if out != "Summarize R1 about Rust" {
		t.Errorf("Render = %q", out)
	}

	_, err = Render("{{MISSING}} {{Step2.output}}", ctx, 1)
	if !chainerr.HasCode(err, chainerr.CodeTemplateValidation) {
		t.Fatalf("expected TMPL_001, got %v", err)
	}
	if !strings.Contains(err.Error(), "missing variables: MISSING; invalid references: Step2.output") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestRenderWithValidation_LeavesUnresolvedVerbatim(t *testing.T) {
	ctx := &Context{Variables: map[string]string{"A": "x"}}

	out, v := RenderWithValidation("{{A}} {{ B }} {{Step1.output}} {{ }}", ctx, 0)
	if out != "x {{ B }} {{Step1.output}} {{ }}" {
		t.Errorf("RenderWithValidation = %q", out)
	}
	if v.Valid {
		t.Error("Validation should be invalid")
	}
	if !reflect.DeepEqual(v.MissingVariables, []string{"B"}) {
		t.Errorf("MissingVariables = %v", v.MissingVariables)
	}
	if !reflect.DeepEqual(v.InvalidReferences, []string{"Step1.output"}) {
		t.Errorf("InvalidReferences = %v", v.InvalidReferences)
	}
}

func TestRender_NoRescanOfSubstitutedValues(t *testing.T) {
	ctx := &Context{
		Variables:   map[string]string{"A": "{{B}}", "B": "nope"},
		StepOutputs: map[int]string{0: "{{A}}"},
	}

	out, err := Render("{{A}} / {{Step1.output}}", ctx, 1)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if out != "{{B}} / {{A}}" {
		t.Errorf("Render = %q, want literal substituted values", out)
	}
}

func TestRender_Idempotent(t *testing.T) {
	ctx := &Context{
		Variables:   map[string]string{"TOPIC": "Go", "TONE": ""},
		StepOutputs: map[int]string{0: "notes"},
	}
	tmpl := "About {{TOPIC}} ({{TONE}}): {{Step1.output}}"

	first, err := Render(tmpl, ctx, 1)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	second, err := Render(first, ctx, 1)
	if err != nil {
		t.Fatalf("second Render failed: %v", err)
	}
	if first != second {
		t.Errorf("rendering is not idempotent: %q then %q", first, second)
	}

	again, _ := Render(tmpl, ctx, 1)
	if again != first {
		t.Errorf("rendering the same input twice differs: %q vs %q", first, again)
	}
}

func TestNewContext_Seeding(t *testing.T) {
	prompt := &types.ChainPrompt{
		Variables: []types.Variable{
			{Key: "SUPPLIED", Default: "d1"},
			{Key: "DEFAULTED", Default: "d2"},
			{Key: "BLANK"},
			{Key: "EMPTY_SUPPLIED", Default: "d3"},
		},
		Steps: []types.ChainStep{{Prompt: "x"}},
	}
	values := map[string]string{
		"SUPPLIED":       "v1",
		"EMPTY_SUPPLIED": "",
		"UNDECLARED":     "ignored",
	}

	ctx := NewContext(prompt, values)
	want := map[string]string{
		"SUPPLIED":       "v1",
		"DEFAULTED":      "d2",
		"BLANK":          "",
		"EMPTY_SUPPLIED": "",
	}
	if !reflect.DeepEqual(ctx.Variables, want) {
		t.Errorf("Variables = %v, want %v", ctx.Variables, want)
	}
	if len(ctx.StepOutputs) != 0 {
		t.Errorf("StepOutputs should start empty, got %v", ctx.StepOutputs)
	}
}

func TestContext_RecordOutputIsMonotonic(t *testing.T) {
	ctx := &Context{}
	if err := ctx.RecordOutput(0, "first"); err != nil {
		t.Fatalf("RecordOutput failed: %v", err)
	}
	if err := ctx.RecordOutput(0, "second"); err == nil {
		t.Error("overwriting a recorded output should fail")
	}
	if out, _ := ctx.Output(0); out != "first" {
		t.Errorf("Output(0) = %q, want first", out)
	}
	if err := ctx.RecordOutput(-1, "x"); err == nil {
		t.Error("negative index should fail")
	}
}

func TestPreview(t *testing.T) {
	prompt := &types.ChainPrompt{
		Variables: []types.Variable{{Key: "TOPIC"}},
		Steps: []types.ChainStep{
			{Prompt: "Research {{TOPIC}}"},
			{Name: "Summary", Prompt: "Summarize: {{Step1.output}}"},
			{Prompt: "Compare {{Step2.output}} with {{Step3.output}}"},
		},
	}

	previews := Preview(prompt, map[string]string{"TOPIC": "Rust"}, map[int]string{0: "R1"})
	if len(previews) != 3 {
		t.Fatalf("got %d previews, want 3", len(previews))
	}
	if previews[0].Rendered != "Research Rust" || previews[0].Err != nil {
		t.Errorf("step 1 = %+v", previews[0])
	}
	if previews[1].Name != "Summary" || previews[1].Rendered != "Summarize: R1" {
		t.Errorf("step 2 = %+v", previews[1])
	}
	if previews[2].Err == nil {
		t.Fatal("step 3 should fail strict rendering")
	}
	if !reflect.DeepEqual(previews[2].Validation.MissingVariables, []string{"Step2.output"}) {
		t.Errorf("step 3 missing = %v", previews[2].Validation.MissingVariables)
	}
	if !reflect.DeepEqual(previews[2].Validation.InvalidReferences, []string{"Step3.output"}) {
		t.Errorf("step 3 invalid = %v", previews[2].Validation.InvalidReferences)
	}
}

func TestLint(t *testing.T) {
	prompt := &types.ChainPrompt{
		Variables: []types.Variable{{Key: "TOPIC"}, {Key: "UNUSED"}},
		Steps: []types.ChainStep{
			{Prompt: "Research {{TOPIC}} in {{LANG}}"},
			{Prompt: "{{Step2.output}} then {{Step3.output}} then {{Step1.output}}"},
		},
	}

	issues := Lint(prompt)
	var got []string
	for _, i := range issues {
		got = append(got, i.String())
	}
	want := []string{
		`step 1: undeclared variable "LANG"`,
		"step 2: Step2.output refers to its own step",
		"step 2: Step3.output refers to a later step",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Lint = %v, want %v", got, want)
	}

	if unused := UnusedVariables(prompt); !reflect.DeepEqual(unused, []string{"UNUSED"}) {
		t.Errorf("UnusedVariables = %v", unused)
	}
}
