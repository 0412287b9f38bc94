package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestConfirm(t *testing.T) {
	tests := []struct {
		input      string
		defaultYes bool
		want       bool
		wantErr    bool
	}{
		{"y\n", false, true, false},
		{"YES\n", false, true, false},
		{"n\n", true, false, false},
		{"\n", true, true, false},
		{"\n", false, false, false},
		{"maybe\n", true, false, false},
		{"y", false, true, false}, // no trailing newline
		{"", false, false, true},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		got, err := NewPrompter(strings.NewReader(tt.input), &out).Confirm("Delete?", tt.defaultYes)
		if (err != nil) != tt.wantErr {
			t.Errorf("Confirm(%q) err = %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Confirm(%q, %v) = %v, want %v", tt.input, tt.defaultYes, got, tt.want)
		}
	}

	var out bytes.Buffer
	NewPrompter(strings.NewReader("\n"), &out).Confirm("Delete?", true)
	if out.String() != "Delete? [Y/n] " {
		t.Errorf("prompt = %q", out.String())
	}
}

func TestSelect(t *testing.T) {
	options := []Option{{Value: "a", Label: "Alpha"}, {Value: "b", Label: "Beta"}}

	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"2\n", "b", false},
		{"1\n", "a", false},
		{"q\n", "", false},
		{"\n", "", false},
		{"3\n", "", true},
		{"x\n", "", true},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		got, err := NewPrompter(strings.NewReader(tt.input), &out).Select("Pick one:", options)
		if (err != nil) != tt.wantErr {
			t.Errorf("Select(%q) err = %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Select(%q) = %q, want %q", tt.input, got, tt.want)
		}
		if !strings.Contains(out.String(), "  2) Beta\n") {
			t.Errorf("options not listed: %q", out.String())
		}
	}

	if _, err := NewPrompter(strings.NewReader("1\n"), &bytes.Buffer{}).Select("Pick:", nil); err == nil {
		t.Error("Select with no options should fail")
	}
}
