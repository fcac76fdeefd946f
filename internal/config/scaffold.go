package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// gitignoreEntry keeps recordings and logs out of version control.
const gitignoreEntry = ".colmon/"

// ScaffoldProject prepares dir for monitoring: it writes colmon.toml, creates
// the recordings directory and adds .colmon/ to .gitignore. Files that
// already exist are left untouched. Returns the list of created or modified
// paths.
func ScaffoldProject(dir string) ([]string, error) {
	var created []string

	tomlPath := filepath.Join(dir, FileName)
	if _, err := os.Stat(tomlPath); os.IsNotExist(err) {
		if _, initErr := InitFile(dir); initErr != nil {
			return created, initErr
		}
		created = append(created, tomlPath)
	}

	sessions := filepath.Join(dir, Defaults().Recording.Dir)
	if _, err := os.Stat(sessions); os.IsNotExist(err) {
		if mkErr := os.MkdirAll(sessions, 0o755); mkErr != nil {
			return created, fmt.Errorf("scaffold: create %s: %w", sessions, mkErr)
		}
		created = append(created, sessions)
	}

	gitignorePath := filepath.Join(dir, ".gitignore")
	existing, err := os.ReadFile(gitignorePath)
	if os.IsNotExist(err) {
		if writeErr := os.WriteFile(gitignorePath, []byte(gitignoreEntry+"\n"), 0o644); writeErr != nil {
			return created, fmt.Errorf("scaffold: write %s: %w", gitignorePath, writeErr)
		}
		created = append(created, gitignorePath)
	} else if err != nil {
		return created, fmt.Errorf("scaffold: read %s: %w", gitignorePath, err)
	} else if !strings.Contains(string(existing), gitignoreEntry) {
		content := string(existing)
		if len(content) > 0 && content[len(content)-1] != '\n' {
			content += "\n"
		}
		content += gitignoreEntry + "\n"
		if writeErr := os.WriteFile(gitignorePath, []byte(content), 0o644); writeErr != nil {
			return created, fmt.Errorf("scaffold: write %s: %w", gitignorePath, writeErr)
		}
		created = append(created, gitignorePath)
	}

	return created, nil
}
