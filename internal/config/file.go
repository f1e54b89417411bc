package config

import (
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

type fileConfig struct {
	App struct {
		Name     string `toml:"name"`
		LogLevel string `toml:"log_level"`
		Env      string `toml:"env"`
	} `toml:"app"`
	Security struct {
		MaxFailedAttempts int    `toml:"max_failed_attempts"`
		LockoutDuration   string `toml:"lockout_duration"`
		HashIterations    int    `toml:"hash_iterations"`
	} `toml:"security"`
	Session struct {
		Timeout          string `toml:"timeout"`
		Warning          string `toml:"warning"`
		MaxBackground    string `toml:"max_background"`
		RefreshThreshold string `toml:"refresh_threshold"`
	} `toml:"session"`
	Storage struct {
		DataFolder string `toml:"data_folder"`
		Passphrase string `toml:"passphrase"`
	} `toml:"storage"`
}

// readFile decodes a TOML config file into values keyed by environment
// variable name. Unknown keys are rejected.
func readFile(path string) (map[string]string, error) {
	var fc fileConfig
	md, err := toml.DecodeFile(path, &fc)
	if err != nil {
		return nil, errors.Wrapf(err, "[config.readFile] decode %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, errors.Errorf("[config.readFile] unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}

	values := map[string]string{
		appNameVar:          fc.App.Name,
		logLevelVar:         fc.App.LogLevel,
		envVar:              fc.App.Env,
		lockoutDurationVar:  fc.Security.LockoutDuration,
		sessionTimeoutVar:   fc.Session.Timeout,
		sessionWarningVar:   fc.Session.Warning,
		maxBackgroundVar:    fc.Session.MaxBackground,
		refreshThresholdVar: fc.Session.RefreshThreshold,
		dataFolderVar:       fc.Storage.DataFolder,
		passphraseVar:       fc.Storage.Passphrase,
	}
	if fc.Security.MaxFailedAttempts != 0 {
		values[maxFailedAttemptsVar] = strconv.Itoa(fc.Security.MaxFailedAttempts)
	}
	if fc.Security.HashIterations != 0 {
		values[hashIterationsVar] = strconv.Itoa(fc.Security.HashIterations)
	}
	return values, nil
}
