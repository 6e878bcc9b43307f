// Package envy automatically exposes environment
// variables for all of your flags.
package envy

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

// Parse takes a prefix string and exposes environment variables
// for all flags in the default FlagSet (flag.CommandLine) in the
// form of PREFIX_FLAGNAME.  Flags listed in bare are exposed
// without the prefix, as FLAGNAME.
func Parse(p string, bare ...string) {
	update(p, flag.CommandLine, bare...)
}

// envName returns the environment variable backing flag name.
// Dashes and dots in flag names become underscores.
func envName(p, name string) string {
	v := strings.ToUpper(name)
	if p != "" {
		v = p + "_" + v
	}
	return strings.NewReplacer("-", "_", ".", "_").Replace(v)
}

// update takes a prefix string p and *flag.FlagSet. Each flag
// in the FlagSet is exposed as an upper case environment variable
// prefixed with p, unless it is named in bare. Any flag that was
// not explicitly set by a user is updated to the environment
// variable, if set.
func update(p string, fs *flag.FlagSet, bare ...string) {
	// Build a map of explicitly set flags.
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	unprefixed := map[string]bool{}
	for _, name := range bare {
		unprefixed[name] = true
	}

	fs.VisitAll(func(f *flag.Flag) {
		envVar := envName(p, f.Name)
		if unprefixed[f.Name] {
			envVar = envName("", f.Name)
		}

		// Update the Flag.Value if the
		// env var is non "".
		if val := os.Getenv(envVar); val != "" && !set[f.Name] {
			fs.Set(f.Name, val)
		}

		// Append the env var to the
		// Flag.Usage field.
		f.Usage = fmt.Sprintf("%s [%s]", f.Usage, envVar)
	})
}
