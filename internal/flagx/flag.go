// Package flagx holds small helpers for sharing os.Args between several
// independent flag sets (config file lookup, server flags, CLI subcommands).
package flagx

import (
	"flag"
	"os"
	"strings"
)

// ConfigEnvVar names the environment variable consulted when no -c/-config
// flag is present.
const ConfigEnvVar = "NUMERIA_CONFIG"

// FilterArgs returns only the allowed flags (and their values) from args.
//
// Supported formats:
//  1. Flag and value as separate arguments:  -c conf.json
//  2. Flag and value combined with '=':      --config=conf.json
//
// A token starting with "-" is never consumed as a value.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name := strings.SplitN(arg, "=", 2)[0]
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; ok {
			filtered = append(filtered, arg)
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				filtered = append(filtered, args[i+1])
				i++
			}
		}
	}

	return filtered
}

// ConfigFilePath extracts the JSON config path from args (-c or -config).
// When neither flag is present it falls back to $NUMERIA_CONFIG. The result
// is empty when no config file was requested.
func ConfigFilePath(args []string) string {
	var path string

	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.StringVar(&path, "config", "", "Path to config file")
	fs.StringVar(&path, "c", "", "Path to config file (short)")
	_ = fs.Parse(FilterArgs(args, []string{"-c", "-config", "--config"}))

	if path == "" {
		path = os.Getenv(ConfigEnvVar)
	}
	return path
}

// SplitSubcommand returns the first positional argument and everything after
// it. Leading flags before the subcommand are returned in global.
func SplitSubcommand(args []string) (cmd string, global, rest []string) {
	for i, a := range args {
		if !strings.HasPrefix(a, "-") {
			return a, args[:i], args[i+1:]
		}
	}
	return "", args, nil
}
