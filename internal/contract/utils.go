package contract

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"

	"github.com/scorefuse/scorefuse/schema"
)

// Plain text labels.
const (
	CompleteLabel = "OK"
	FailedLabel   = "FAIL"
	HigherLabel   = "higher"
	LowerLabel    = "lower"
)

// Pre-made color objects for labels.
var (
	greenLabel  = color.New(color.FgGreen, color.Bold)
	redLabel    = color.New(color.FgRed, color.Bold)
	cyanLabel   = color.New(color.FgCyan)
	yellowLabel = color.New(color.FgYellow)
)

// GetPlainTrialLabel returns the text label for a trial state.
func GetPlainTrialLabel(state schema.TrialState) string {
	if state == schema.TrialComplete {
		return CompleteLabel
	}
	return FailedLabel
}

// GetColorTrialLabel returns the color label for a trial state.
func GetColorTrialLabel(state schema.TrialState) string {
	if state == schema.TrialComplete {
		return greenLabel.Sprint(CompleteLabel)
	}
	return redLabel.Sprint(FailedLabel)
}

// GetPlainDirectionLabel returns the text label for a metric direction.
func GetPlainDirectionLabel(higherIsBetter bool) string {
	if higherIsBetter {
		return HigherLabel
	}
	return LowerLabel
}

// GetColorDirectionLabel returns the color label for a metric direction.
func GetColorDirectionLabel(higherIsBetter bool) string {
	if higherIsBetter {
		return cyanLabel.Sprint(HigherLabel)
	}
	return yellowLabel.Sprint(LowerLabel)
}

// SelectOutputFile returns a file handle for the given path, or os.Stdout if
// path is empty. Caller is responsible for closing the file if it's not stdout.
func SelectOutputFile(path string) (*os.File, error) {
	if path == "" {
		return os.Stdout, nil
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("cannot create output file %s: %w", path, err)
	}
	return file, nil
}

// LogFatal logs an error message and exits.
func LogFatal(ctx string, err error) {
	log.Printf("Fatal %s: %v", ctx, err)
	os.Exit(1)
}

// LogWarn logs a warning message.
func LogWarn(ctx string, err error) {
	log.Printf("Warn %s: %v", ctx, err)
}

// GetStudyDBFilePath gets the default study database path in the home
// directory, falling back to the working directory.
func GetStudyDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".scorefuse_trials.db"
	}
	return filepath.Join(homeDir, ".scorefuse_trials.db")
}

// ParseBoolString converts common boolean string representations to bool.
// Accepts: true/false, yes/no, 1/0 (case insensitive).
func ParseBoolString(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "1":
		return true, nil
	case "false", "no", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean value '%s' (use true/false, yes/no, or 1/0)", s)
	}
}
