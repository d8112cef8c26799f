package git

import "strconv"

// parseFactInt/formatFactInt serialize the int64 facts (lastModified,
// revCount) memoized via FactCache, whose values are plain strings.
func parseFactInt(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func formatFactInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
