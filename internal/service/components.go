package service

import (
	"regexp"
	"strings"
)

// Components are the structured parts of a provider's matched address,
// handed to the canonical-address upsert.
type Components struct {
	Street string
	City   string
	State  string
	Zip    string
}

// stateZipRe matches trailing "GA 30303" / "GA 30303-1234" segments.
var stateZipRe = regexp.MustCompile(`^([A-Za-z]{2})\s+(\d{5}(?:-\d{4})?)$`)

var zipRe = regexp.MustCompile(`^\d{5}(?:-\d{4})?$`)

// ParseComponents splits a formatted one-line address into components.
// Providers disagree on shape ("ST, CITY, GA, 30303" from census,
// "St, City, GA 30303, USA" from google), so parsing is positional and
// tolerant: missing parts stay empty rather than failing resolution.
func ParseComponents(formatted string) Components {
	var c Components

	parts := strings.Split(formatted, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	// Drop empty segments and a trailing country name.
	var cleaned []string
	for _, p := range parts {
		if p == "" {
			continue
		}
		cleaned = append(cleaned, p)
	}
	if n := len(cleaned); n > 0 {
		last := strings.ToUpper(cleaned[n-1])
		if last == "USA" || last == "UNITED STATES" || last == "UNITED STATES OF AMERICA" {
			cleaned = cleaned[:n-1]
		}
	}
	if len(cleaned) == 0 {
		return c
	}

	c.Street = cleaned[0]
	rest := cleaned[1:]

	for _, p := range rest {
		switch {
		case stateZipRe.MatchString(p):
			m := stateZipRe.FindStringSubmatch(p)
			c.State = strings.ToUpper(m[1])
			c.Zip = m[2]
		case zipRe.MatchString(p):
			c.Zip = p
		case len(p) == 2 && c.State == "":
			c.State = strings.ToUpper(p)
		case c.City == "":
			c.City = p
		}
	}

	return c
}
