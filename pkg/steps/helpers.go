package steps

import (
	"sort"
	"strings"
)

// failureDetail prefers captured stderr and falls back to the error text.
func failureDetail(stderr string, err error) string {
	if stderr = strings.TrimSpace(stderr); stderr != "" {
		return stderr
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

func sortedPairs(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+m[k])
	}
	return pairs
}
