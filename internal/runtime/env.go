// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// BuildEnv assembles the environment passed into a test run. Env files load
// in order with later files overriding earlier ones, and explicit overrides
// win over any file. An override given as a bare KEY inherits the host's
// value, matching the engines' -e semantics.
func BuildEnv(envFiles []string, overrides []string) (map[string]string, error) {
	env := map[string]string{}

	if len(envFiles) > 0 {
		fileEnv, err := godotenv.Read(envFiles...)
		if err != nil {
			return nil, fmt.Errorf("failed to read env file: %w", err)
		}
		for key, value := range fileEnv {
			env[key] = value
		}
	}

	for _, override := range overrides {
		key, value, found := strings.Cut(override, "=")
		if key == "" {
			return nil, fmt.Errorf("invalid env override %q: empty variable name", override)
		}
		if !found {
			value = os.Getenv(key)
		}
		env[key] = value
	}

	return env, nil
}
