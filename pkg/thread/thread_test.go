package thread

import (
	"errors"
	"os"
	"testing"
)

func TestMain(m *testing.M) {
	code := 0
	Run(func() { code = m.Run() })
	os.Exit(code)
}

func TestCall(t *testing.T) {
	value := 0
	Call(func() { value = 1 })
	if value != 1 {
		t.Errorf("wrong value %v", value)
	}
}

func TestCallErr(t *testing.T) {
	want := errors.New("lost context")
	if err := CallErr(func() error { return want }); !errors.Is(err, want) {
		t.Errorf("got %v", err)
	}
}
