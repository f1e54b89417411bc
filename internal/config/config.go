package config

import "os"

const configFileVar = "AUTH_CONFIG_FILE"

type Config interface {
	EnvConfig
	SecurityConfig
	SessionConfig
	StorageConfig
}

type EnvConfig interface {
	GetAppName() string
	GetLogLevel() string
	GetEnv() string
}

type mainConfig struct {
	EnvVars
	Security
	Session
	Storage
}

// New returns a Config backed by environment variables and defaults.
func New() Config {
	return newConfig(&source{})
}

// Load returns a Config that also reads the TOML file at path, or the file
// named by AUTH_CONFIG_FILE when path is empty. Environment variables take
// precedence over the file.
func Load(path string) (Config, error) {
	if path == "" {
		path = os.Getenv(configFileVar)
	}
	if path == "" {
		return New(), nil
	}
	values, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return newConfig(&source{file: values}), nil
}

func newConfig(src *source) Config {
	return mainConfig{
		EnvVars:  EnvVars{src: src},
		Security: Security{src: src},
		Session:  Session{src: src},
		Storage:  Storage{src: src},
	}
}
