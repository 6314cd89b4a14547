package geocode

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// abbreviations maps directional and street-type tokens to their USPS short
// forms so that equivalent spellings hash to the same cache key.
var abbreviations = map[string]string{
	"north":     "n",
	"south":     "s",
	"east":      "e",
	"west":      "w",
	"northeast": "ne",
	"northwest": "nw",
	"southeast": "se",
	"southwest": "sw",

	"street":    "st",
	"avenue":    "ave",
	"boulevard": "blvd",
	"circle":    "cir",
	"court":     "ct",
	"drive":     "dr",
	"highway":   "hwy",
	"lane":      "ln",
	"parkway":   "pkwy",
	"place":     "pl",
	"road":      "rd",
	"route":     "rte",
	"square":    "sq",
	"terrace":   "ter",
	"trail":     "trl",

	"apartment": "apt",
	"building":  "bldg",
	"suite":     "ste",
	"unit":      "unit",
}

// Normalize canonicalizes a free-form address: Unicode NFKC, lower case,
// punctuation stripped to spaces, directional and street-type tokens
// abbreviated, whitespace collapsed. Cache keys and provider queries both
// use the normalized form. An input that normalizes to "" must not reach
// the network or the cache.
func Normalize(address string) string {
	s := norm.NFKC.String(address)
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '#':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}

	tokens := strings.Fields(b.String())
	for i, tok := range tokens {
		if abbr, ok := abbreviations[tok]; ok {
			tokens[i] = abbr
		}
	}
	return strings.Join(tokens, " ")
}
