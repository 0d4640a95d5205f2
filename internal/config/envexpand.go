package config

import "os"

// expandEnv expands ${VAR} / $VAR references in YAML content before
// parsing, shell-style. Missing variables expand to empty string, and a
// field left empty that way keeps its built-in default when merged.
func expandEnv(data []byte) []byte {
	return []byte(os.ExpandEnv(string(data)))
}
