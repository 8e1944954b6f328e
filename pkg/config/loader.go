package config

import (
	"os"
	"path/filepath"

	"github.com/kkyr/fig"
)

const (
	EnvPrefix = "CAMVIEW"
	FileName  = "config.yaml"
)

// Dirs returns the directories searched for the configuration file.
// A non-empty path overrides the default search.
func Dirs(path string) []string {
	if path != "" {
		return []string{path}
	}
	dirs := []string{".", "configs", "../../configs"}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".camview"))
	}
	return dirs
}

// LoadConfig loads a configuration file into the given struct.
// The path param specifies a custom directory of the configuration file.
// Reads and puts environment variables with the prefix CAMVIEW_.
// Params from the config should be in uppercase separated with _.
func LoadConfig(config any, path string) error {
	return fig.Load(config, fig.File(FileName), fig.Dirs(Dirs(path)...), fig.UseEnv(EnvPrefix))
}

func LoadConfigEnv(config any) error {
	return fig.Load(config, fig.IgnoreFile(), fig.UseEnv(EnvPrefix))
}

// Find returns the path of the first configuration file found in dirs.
func Find(path string) (string, bool) {
	for _, dir := range Dirs(path) {
		name := filepath.Join(dir, FileName)
		if st, err := os.Stat(name); err == nil && !st.IsDir() {
			return name, true
		}
	}
	return "", false
}
