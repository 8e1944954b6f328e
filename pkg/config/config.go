// Package config holds the camview settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kkyr/fig"
	"github.com/spf13/pflag"
)

type Config struct {
	Debug bool
	// LogJSON switches the console output to JSON lines.
	LogJSON    bool
	Window     Window
	Renderer   Renderer
	Capture    Capture
	Monitoring Monitoring
}

type Window struct {
	Title   string `default:"camview"`
	Width   int    `default:"1280"`
	Height  int    `default:"720"`
	Context string `default:"auto"`
	VSync   bool
	NoColor bool
}

type Renderer struct {
	Mirroring  bool
	ClearColor []float32
}

type Capture struct {
	// Driver selects the capture driver, only "synthetic" is built in.
	Driver      string `default:"synthetic"`
	Position    string
	Preset      string
	FrameRate   float64
	Format      string `default:"nv12"`
	Orientation int
	Queue       int    `default:"2"`
	Drop        string `default:"oldest"`
	// LockDir may start with {user}, the home directory of the user.
	LockDir string
	// Snapshots is the directory of the saved PNG images.
	Snapshots string `default:"."`
}

type Monitoring struct {
	Port             int `default:"6601"`
	URLPrefix        string
	MetricEnabled    bool
	ProfilingEnabled bool
}

func (c *Monitoring) IsEnabled() bool { return c.MetricEnabled || c.ProfilingEnabled }

// NewConfig loads the configuration from the path directory or the
// default locations. Without a file only defaults and the environment are
// used.
func NewConfig(path string) (conf Config, err error) {
	err = LoadConfig(&conf, path)
	if errors.Is(err, fig.ErrFileNotFound) && path == "" {
		conf = Config{}
		err = LoadConfigEnv(&conf)
	}
	if err != nil {
		return conf, err
	}
	if err = conf.expandSpecialTags(); err != nil {
		return conf, err
	}
	return conf, conf.Validate()
}

// WithFlags binds command line flags over the loaded values.
// Define own flags with default value set to the current config param.
func (c *Config) WithFlags(fs *pflag.FlagSet) {
	fs.BoolVarP(&c.Debug, "debug", "d", c.Debug, "Verbose logging")
	fs.BoolVar(&c.LogJSON, "json", c.LogJSON, "Log in JSON")
	fs.BoolVar(&c.Renderer.Mirroring, "mirror", c.Renderer.Mirroring, "Mirror the picture horizontally")
	fs.StringVar(&c.Window.Context, "gl", c.Window.Context, "GL context: auto, gl")
	fs.StringVar(&c.Capture.Position, "camera", c.Capture.Position, "Camera position: front, back")
	fs.StringVar(&c.Capture.Preset, "preset", c.Capture.Preset, "Capture preset, i.e. 1280x720")
	fs.Float64Var(&c.Capture.FrameRate, "fps", c.Capture.FrameRate, "Capture frame rate")
	fs.StringVar(&c.Capture.Format, "format", c.Capture.Format, "Pixel format of the synthetic camera")
	fs.IntVar(&c.Monitoring.Port, "monitoring.port", c.Monitoring.Port, "Monitoring server port")
}

func (c *Config) Validate() error {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("window size %vx%v", c.Window.Width, c.Window.Height)
	}
	if n := len(c.Renderer.ClearColor); n != 0 && n != 3 && n != 4 {
		return fmt.Errorf("clear color needs 3 or 4 components, got %v", n)
	}
	if c.Capture.FrameRate < 0 {
		return fmt.Errorf("frame rate %v", c.Capture.FrameRate)
	}
	if c.Capture.Queue < 0 {
		return fmt.Errorf("queue size %v", c.Capture.Queue)
	}
	return nil
}

// expandSpecialTags replaces all the special tags in the config.
func (c *Config) expandSpecialTags() error {
	tag := "{user}"
	for _, dir := range []*string{&c.Capture.LockDir, &c.Capture.Snapshots} {
		if *dir == "" || !strings.Contains(*dir, tag) {
			continue
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("couldn't read user home directory, %w", err)
		}
		*dir = filepath.FromSlash(strings.ReplaceAll(*dir, tag, home))
	}
	return nil
}
