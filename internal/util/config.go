package util

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
)

const CONFIG_FOLDER = ".reddrive"
const CONFIG_FILE = "config.yml"
const CONFIG_ENV = "REDDRIVE_CONFIG"

var ErrNoConfigFolder = errors.New("no config folder")

func ConfigFolder() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot get home directory: %w", err)
	}
	configFolder := path.Join(home, CONFIG_FOLDER)
	info, err := os.Stat(configFolder)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s does not exist", ErrNoConfigFolder, configFolder)
	} else if err != nil {
		return "", fmt.Errorf("cannot access %s directory: %w", configFolder, err)
	} else if !info.IsDir() {
		return "", fmt.Errorf("path %s not a directory", configFolder)
	}
	return configFolder, nil
}

// ConfigFile locates the configuration file: $REDDRIVE_CONFIG first,
// then ~/.reddrive/config.yml.
func ConfigFile() (string, error) {
	if p := os.Getenv(CONFIG_ENV); p != "" {
		return p, nil
	}
	configFolder, err := ConfigFolder()
	if err != nil {
		return "", err
	}
	return path.Join(configFolder, CONFIG_FILE), nil
}
