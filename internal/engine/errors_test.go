package engine

import (
	"testing"

	lua "github.com/yuin/gopher-lua"
)

func TestParseErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		resource string
		line     int
		message  string
	}{
		{
			name:     "chunk and line",
			input:    "script.lua:12: attempt to index a nil value",
			resource: "script.lua",
			line:     12,
			message:  "attempt to index a nil value",
		},
		{
			name:     "eval chunk",
			input:    "<eval>:1: unexpected symbol",
			resource: "<eval>",
			line:     1,
			message:  "unexpected symbol",
		},
		{
			name:    "no location prefix",
			input:   "stack overflow",
			message: "stack overflow",
		},
		{
			name:     "message containing colons",
			input:    "mod.lua:3: bad argument #1 to 'x': number expected",
			resource: "mod.lua",
			line:     3,
			message:  "bad argument #1 to 'x': number expected",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			serr := parseErrorMessage(tt.input)
			if serr.Resource != tt.resource {
				t.Errorf("Resource = %q, want %q", serr.Resource, tt.resource)
			}
			if serr.Line != tt.line {
				t.Errorf("Line = %d, want %d", serr.Line, tt.line)
			}
			if serr.Message != tt.message {
				t.Errorf("Message = %q, want %q", serr.Message, tt.message)
			}
		})
	}
}

func TestScriptErrorString(t *testing.T) {
	serr := &ScriptError{Message: "boom", Resource: "a.lua", Line: 4}
	if serr.Error() != "a.lua:4: boom" {
		t.Errorf("Error() = %q", serr.Error())
	}

	bare := &ScriptError{Message: "boom"}
	if bare.Error() != "boom" {
		t.Errorf("Error() = %q", bare.Error())
	}
}

func TestCaptureStackInsideCall(t *testing.T) {
	env := New(Options{})
	defer env.Close()

	var frames []StackFrame
	env.InstallGlobal("capture", func(L *lua.LState) int {
		frames = env.CaptureStack(8)
		return 0
	})

	script := "local function f() capture() end\nf()"
	if err := env.RunScript(script, "cap.lua"); err != nil {
		t.Fatalf("RunScript failed: %v", err)
	}
	if len(frames) == 0 {
		t.Fatal("Expected captured frames inside the call")
	}
	if frames[0].Source != "cap.lua" {
		t.Errorf("Top frame source = %q, want cap.lua", frames[0].Source)
	}
	if frames[0].ScriptID != env.ScriptID("cap.lua") {
		t.Errorf("Top frame script id = %d, want %d", frames[0].ScriptID, env.ScriptID("cap.lua"))
	}
}
