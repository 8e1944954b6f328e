package graphics

import (
	"fmt"
	"strings"
)

// Context is the kind of GL context to request. The renderer needs
// OpenGL 2.1 compatibility features, core and ES profiles are not offered.
type Context int

const (
	CtxAuto Context = iota
	CtxOpenGl
)

func ParseContext(s string) (Context, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return CtxAuto, nil
	case "gl", "opengl":
		return CtxOpenGl, nil
	}
	return CtxAuto, fmt.Errorf("unsupported gl context: %v", s)
}

type Config struct {
	Ctx   Context
	Title string
	W, H  int
	VSync bool
}

// EventKind is a window event the viewer reacts to.
type EventKind int

const (
	EventQuit EventKind = iota
	// EventHidden means the window is minimized or hidden, GL resources
	// should be released.
	EventHidden
	EventShown
	EventResized
	EventKey
)

type Event struct {
	Kind EventKind
	Key  rune
}
