package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// StepName identifies a pipeline step for snapshot caching.
type StepName string

const (
	StepDraft  StepName = "draft"
	StepRecord StepName = "record"
)

// stepDir returns the cache directory for a step of one source.
func stepDir(baseDir, source string, step StepName) string {
	return filepath.Join(baseDir, source, string(step))
}

// generateFilename creates a timestamped filename with the given extension.
// Colons are replaced so the name is valid on every filesystem.
func generateFilename(t time.Time, ext string) string {
	return t.Format("2006-01-02T15-04-05.000") + ext
}

// SaveStepOutput saves JSON-serializable data to the step's cache directory.
// Returns the path to the saved file.
func SaveStepOutput[T any](baseDir, source string, step StepName, data T) (string, error) {
	dir := stepDir(baseDir, source, step)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create step cache dir: %w", err)
	}

	path := filepath.Join(dir, generateFilename(time.Now(), ".json"))

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal step output: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return "", fmt.Errorf("failed to write step output: %w", err)
	}

	return path, nil
}

// LoadLatestStepOutput loads the most recent output from a step's cache directory.
// Returns the data, the filepath it was loaded from, and any error.
func LoadLatestStepOutput[T any](baseDir, source string, step StepName) (T, string, error) {
	var zero T

	latestPath, err := LatestStepFile(baseDir, source, step)
	if err != nil {
		return zero, "", err
	}

	data, err := LoadStepOutput[T](latestPath)
	if err != nil {
		return zero, "", err
	}

	return data, latestPath, nil
}

// LoadStepOutput loads JSON data from a specific file path.
func LoadStepOutput[T any](path string) (T, error) {
	var data T

	jsonData, err := os.ReadFile(path)
	if err != nil {
		return data, fmt.Errorf("failed to read step output: %w", err)
	}

	if err := json.Unmarshal(jsonData, &data); err != nil {
		return data, fmt.Errorf("failed to unmarshal step output: %w", err)
	}

	return data, nil
}

// LatestStepFile returns the path to the most recent file in a step's cache directory.
func LatestStepFile(baseDir, source string, step StepName) (string, error) {
	dir := stepDir(baseDir, source, step)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("no cached output for step %s of %s", step, source)
		}
		return "", err
	}

	// os.ReadDir sorts by name, which is chronological for our timestamps
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() {
			files = append(files, entry.Name())
		}
	}

	if len(files) == 0 {
		return "", fmt.Errorf("no cached output for step %s of %s", step, source)
	}

	return filepath.Join(dir, files[len(files)-1]), nil
}
