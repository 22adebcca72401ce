package envfile

import (
	"os"
	"path/filepath"
	"strings"
)

// Load parses a flat secrets file with KEY=VALUE lines. Lines may carry a
// leading "export " and values may be single- or double-quoted; comments and
// blank lines are ignored. A missing file is not an error: the tick simply
// runs with an empty mapping.
func Load(path string) (map[string]string, error) {
	clean := filepath.Clean(path)
	b, err := os.ReadFile(clean)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	m := make(map[string]string)
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		i := strings.IndexByte(line, '=')
		if i < 0 {
			continue
		}
		k := strings.TrimSpace(line[:i])
		if k == "" {
			continue
		}
		m[k] = unquote(strings.TrimSpace(line[i+1:]))
	}
	return m, nil
}

// Merge composes the environment for the external process: the OS environment
// as base, then the secrets mapping applied on top. Returns a slice in "K=V"
// form suitable for exec.Cmd.Env.
func Merge(secrets map[string]string) []string {
	m := make(map[string]string)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			k := kv[:i]
			if k == "" {
				continue
			}
			m[k] = kv[i+1:]
		}
	}
	for k, v := range secrets {
		if k == "" {
			continue
		}
		m[k] = v
	}
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+v)
	}
	return out
}

func unquote(v string) string {
	if n := len(v); n >= 2 {
		if (v[0] == '"' && v[n-1] == '"') || (v[0] == '\'' && v[n-1] == '\'') {
			return v[1 : n-1]
		}
	}
	return v
}
