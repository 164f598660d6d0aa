package utils

import "strings"

// AllRegions is the selector value meaning "no region chosen".
const AllRegions = "전체"

// sidoAliases maps abbreviated province names to the full administrative name.
var sidoAliases = map[string]string{
	"전남": "전라남도",
	"전북": "전라북도",
	"경남": "경상남도",
	"경북": "경상북도",
	"충남": "충청남도",
	"충북": "충청북도",
}

var sidoAbbreviations = func() map[string]string {
	m := make(map[string]string, len(sidoAliases))
	for abbr, full := range sidoAliases {
		m[full] = abbr
	}
	return m
}()

// NormalizeSido returns the canonical name of a province so that abbreviated
// and full spellings land in the same bucket. Unknown names pass through.
func NormalizeSido(sido string) string {
	sido = strings.TrimSpace(sido)
	if full, ok := sidoAliases[sido]; ok {
		return full
	}
	return sido
}

// SidoVariants lists every spelling a stored facility may use for sido:
// as given, normalized, its abbreviation, and both with the "도" suffix
// character removed.
func SidoVariants(sido string) []string {
	sido = strings.TrimSpace(sido)
	std := NormalizeSido(sido)

	candidates := []string{sido, std, strings.ReplaceAll(sido, "도", ""), strings.ReplaceAll(std, "도", "")}
	if abbr, ok := sidoAbbreviations[std]; ok {
		candidates = append(candidates, abbr)
	}

	seen := make(map[string]struct{}, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, v := range candidates {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// MatchesSido reports whether a stored sido value is one of the variants of selected.
func MatchesSido(stored, selected string) bool {
	stored = strings.TrimSpace(stored)
	for _, v := range SidoVariants(selected) {
		if v == stored {
			return true
		}
	}
	return false
}

// IsRegionSelected reports whether v names a concrete region.
func IsRegionSelected(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && v != AllRegions
}
