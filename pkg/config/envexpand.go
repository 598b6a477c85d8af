package config

import "os"

// ExpandEnv expands environment variables in YAML content, shell-style
// (${VAR} and $VAR). Missing variables expand to empty string;
// validation is responsible for catching required fields left empty.
func ExpandEnv(data []byte) []byte {
	return []byte(os.ExpandEnv(string(data)))
}
