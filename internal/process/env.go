package process

import (
	"os"
	"sort"
	"strings"
)

// mergeEnv returns the parent environment overlaid with custom, minus npm
// lifecycle variables that make npx-installed agents print warnings.
func mergeEnv(custom map[string]string) []string {
	base := make(map[string]string, len(os.Environ())+len(custom))
	for _, entry := range os.Environ() {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || isNpmEnvVar(key) {
			continue
		}
		base[key] = value
	}
	for k, v := range custom {
		base[k] = v
	}

	merged := make([]string, 0, len(base))
	for k, v := range base {
		merged = append(merged, k+"="+v)
	}
	sort.Strings(merged)
	return merged
}

func isNpmEnvVar(key string) bool {
	for _, prefix := range []string{
		"npm_config_",
		"npm_package_",
		"npm_lifecycle_",
		"npm_execpath",
		"npm_node_execpath",
	} {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}
