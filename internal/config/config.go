// Package config resolves the user-private configuration root and owns the
// file-mode and atomic-write discipline for everything persisted under it.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// PluginRootEnv switches the config root when the CLI runs embedded in
	// a host that provides its own credentials directory.
	PluginRootEnv = "MAIL_PLUGIN_ROOT"

	// DirMode and FileMode are owner-only. Never widened after creation.
	DirMode  = 0o700
	FileMode = 0o600

	GroupsFileName    = "email-groups.json"
	WorkflowsFileName = "workflows.yaml"
	StylesDirName     = "email-styles"
	StatesDirName     = "workflow-states"
	CredentialsName   = "credentials.json"
	TokenFileName     = "oauth-token.json"
)

var (
	customConfigDir       string
	customCredentialsPath string
)

// SetCustomConfigDir overrides the config root, set once from the CLI flag
// before any command runs.
func SetCustomConfigDir(dir string) {
	customConfigDir = dir
}

// SetCustomCredentialsPath overrides the OAuth client credentials location.
func SetCustomCredentialsPath(path string) {
	customCredentialsPath = path
}

// GetConfigDir returns the config root, creating it with owner-only
// permissions when missing. Resolution order: --config-dir flag, the plugin
// root environment variable, then ~/.mail.
func GetConfigDir() (string, error) {
	dir, err := resolveConfigDir()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, DirMode); err != nil {
		return "", fmt.Errorf("failed to create config directory %s: %w", dir, err)
	}

	return dir, nil
}

func resolveConfigDir() (string, error) {
	if customConfigDir != "" {
		return customConfigDir, nil
	}

	if root := os.Getenv(PluginRootEnv); root != "" {
		return filepath.Join(root, "credentials"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}

	return filepath.Join(home, ".mail"), nil
}

// GroupsFilePath returns the path of the group store document.
func GroupsFilePath() (string, error) {
	return pathInConfigDir(GroupsFileName)
}

// WorkflowsFilePath returns the path of the workflow definition document.
func WorkflowsFilePath() (string, error) {
	return pathInConfigDir(WorkflowsFileName)
}

// CredentialsPath returns the OAuth client credentials path.
func CredentialsPath() (string, error) {
	if customCredentialsPath != "" {
		return customCredentialsPath, nil
	}

	return pathInConfigDir(CredentialsName)
}

// TokenPath returns the cached OAuth token path.
func TokenPath() (string, error) {
	return pathInConfigDir(TokenFileName)
}

// StylesDir returns the style document directory, creating it when missing.
func StylesDir() (string, error) {
	return dirInConfigDir(StylesDirName)
}

// StatesDir returns the workflow state directory, creating it when missing.
func StatesDir() (string, error) {
	return dirInConfigDir(StatesDirName)
}

func pathInConfigDir(name string) (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(dir, name), nil
}

func dirInConfigDir(name string) (string, error) {
	root, err := GetConfigDir()
	if err != nil {
		return "", err
	}

	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, DirMode); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	return dir, nil
}

// WriteFileAtomic writes data to path via a temp file in the same directory
// followed by a rename, so a reader observes either the old content or the
// new content and a crash mid-write cannot corrupt the destination.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}

	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(FileMode); err != nil {
		tmp.Close()

		return fmt.Errorf("failed to set mode on %s: %w", tmpName, err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()

		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()

		return fmt.Errorf("failed to sync %s: %w", tmpName, err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to rename %s to %s: %w", tmpName, path, err)
	}

	return nil
}
