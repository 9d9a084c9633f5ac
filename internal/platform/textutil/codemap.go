package textutil

import "strings"

// NormalizeCode trims and upper-cases a promo or currency code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// NormalizeCodeMap re-keys values by NormalizeCode, dropping entries whose key is blank.
// When two keys normalise to the same code the lexically smaller original key wins.
func NormalizeCodeMap[V any](values map[string]V) map[string]V {
	if len(values) == 0 {
		return nil
	}
	result := make(map[string]V, len(values))
	origin := make(map[string]string, len(values))
	for key, value := range values {
		code := NormalizeCode(key)
		if code == "" {
			continue
		}
		if prev, ok := origin[code]; ok && prev < key {
			continue
		}
		origin[code] = key
		result[code] = value
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
