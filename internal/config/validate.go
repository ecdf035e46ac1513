package config

import (
	"fmt"
	"strings"
)

// validLogLevels contains all accepted log levels
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validateSuffix ensures the nested archive suffix looks like a file extension
func validateSuffix(suffix string) error {
	if suffix == "" {
		return fmt.Errorf("suffix cannot be empty")
	}
	if !strings.HasPrefix(suffix, ".") {
		return fmt.Errorf("suffix '%s' must start with '.'", suffix)
	}
	if strings.ContainsAny(suffix, "/!") {
		return fmt.Errorf("suffix '%s' contains a path or address separator", suffix)
	}
	return nil
}

// validateMaxEntrySize rejects ceilings that would drop every entry.
// Zero selects the built-in default.
func validateMaxEntrySize(size int64) error {
	if size < 0 {
		return fmt.Errorf("max entry size cannot be negative, got %d", size)
	}
	return nil
}

func validateLogLevel(level string) error {
	if !validLogLevels[level] {
		return fmt.Errorf("unsupported log level '%s': supported levels are debug, info, warn, error", level)
	}
	return nil
}

func validateLogFormat(format string) error {
	if format != "text" && format != "json" {
		return fmt.Errorf("unsupported log format '%s': supported formats are text, json", format)
	}
	return nil
}
