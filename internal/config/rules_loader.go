package config

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// RuleAdder is the single entry point rule files feed into; the admin
// surface uses the same operation, so later duplicates replace earlier
// rules no matter where they came from.
type RuleAdder interface {
	Add(name, policy, priority, cpus, pattern string) error
}

const ruleFieldCount = 5

// LoadRulesFile reads one rule file in the rtrules format, one
// `name:policy:priority:affinity:pattern` rule per line. It returns the
// number of rules added. A line with fewer than five fields abandons the
// remainder of the file (already-added rules are kept) and is reported as
// an error; a missing file is also an error, both left to the caller to
// log and survive.
func LoadRulesFile(logger *slog.Logger, adder RuleAdder, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open rules file: %w", err)
	}
	defer f.Close()

	count := 0
	lineno := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lineno++
		line := strings.TrimLeft(scanner.Text(), " \t")
		line = strings.TrimRight(line, "\r\n")
		if line == "" || line[0] == '#' {
			continue
		}

		fields := strings.SplitN(line, ":", ruleFieldCount)
		if len(fields) < ruleFieldCount {
			return count, fmt.Errorf("%s:%d: expected %d colon-separated fields", path, lineno, ruleFieldCount)
		}

		if err := adder.Add(fields[0], fields[1], fields[2], fields[3], fields[4]); err != nil {
			logger.Error("skipping rule", "file", path, "line", lineno, "error", err)
			continue
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("read rules file %s: %w", path, err)
	}
	return count, nil
}

// UserRulesPath resolves the per-user rule file: $HOME joined with the
// value of the configured environment variable, or the default relative
// path when the variable is unset.
func (c RulesConfig) UserRulesPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home: %w", err)
	}
	rel := os.Getenv(c.UserFileEnv)
	if rel == "" {
		rel = c.UserFileDefault
	}
	return filepath.Join(home, rel), nil
}

// LoadRules reads the system file then the user file through the same
// adder. File-level failures are logged and survived; the process starts
// with whatever rules did load.
func LoadRules(logger *slog.Logger, adder RuleAdder, c RulesConfig) int {
	total := 0
	paths := []string{c.SystemFile}
	if user, err := c.UserRulesPath(); err == nil {
		paths = append(paths, user)
	} else {
		logger.Debug("no user rules file", "error", err)
	}

	for _, path := range paths {
		n, err := LoadRulesFile(logger, adder, path)
		total += n
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				logger.Debug("rules file absent", "file", path)
			} else {
				logger.Error("rules file partially loaded", "file", path, "loaded", n, "error", err)
			}
			continue
		}
		logger.Info("loaded thread rules", "file", path, "count", n)
	}
	return total
}
