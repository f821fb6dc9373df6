package envlog

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// VariableName folds a logger key into a netCDF-safe name: accents are dropped and every run of
// characters outside [A-Za-z0-9_] becomes one underscore. "sensor par" => "sensor_par".
func VariableName(key string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, key)
	if err != nil {
		folded = key
	}

	var sb strings.Builder
	underscore := false
	for _, r := range folded {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			sb.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && sb.Len() > 0 {
			sb.WriteByte('_')
			underscore = true
		}
	}
	name := strings.TrimRight(sb.String(), "_")
	if name == "" {
		return "unnamed"
	}
	if unicode.IsDigit(rune(name[0])) {
		name = "v" + name
	}
	return name
}

// JoinName joins a group and member key into one variable name.
func JoinName(group, member string) string {
	return VariableName(group) + "_" + VariableName(member)
}
