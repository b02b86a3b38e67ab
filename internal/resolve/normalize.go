package resolve

import (
	"regexp"
	"strings"
)

// legalSuffixes lists corporate suffixes stripped during normalization.
// Firm-descriptor words (Ventures, Capital, Partners) are intentionally not
// here: they distinguish investor names.
var legalSuffixes = []string{
	" LLC", " L.L.C.", " L.L.C",
	" INC", " INC.", " INCORPORATED",
	" CORP", " CORP.", " CORPORATION",
	" LTD", " LTD.", " LIMITED",
	" PLC", " P.L.C.",
	" CO", " CO.",
	" GMBH", " AG", " SA", " BV", " AB",
	" PBC",
}

var multiSpaceRe = regexp.MustCompile(`\s{2,}`)

// NormalizeName standardizes an entity name for matching: trim, uppercase,
// strip one legal suffix, replace punctuation, collapse spaces. "Acme Corp"
// and "Acme Corp." normalize identically.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	name = strings.ToUpper(name)

	for _, suffix := range legalSuffixes {
		if strings.HasSuffix(name, suffix) {
			name = strings.TrimSuffix(name, suffix)
			break
		}
	}

	name = strings.NewReplacer(
		",", "",
		".", "",
		"'", "",
		"\"", "",
		"&", "AND",
		"-", " ",
	).Replace(name)

	name = multiSpaceRe.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}
