package graphics

import "testing"

func TestParseContext(t *testing.T) {
	tests := []struct {
		in   string
		want Context
		err  bool
	}{
		{in: "", want: CtxAuto},
		{in: "Auto", want: CtxAuto},
		{in: "opengl", want: CtxOpenGl},
		{in: "gl", want: CtxOpenGl},
		{in: "core", err: true},
		{in: "gles2", err: true},
		{in: "vulkan", err: true},
	}
	for _, tt := range tests {
		got, err := ParseContext(tt.in)
		if (err != nil) != tt.err || got != tt.want {
			t.Errorf("ParseContext(%q) = %v, %v", tt.in, got, err)
		}
	}
}
