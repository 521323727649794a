package normalize

import (
	"regexp"
	"strings"
)

// French postal code: exactly five digits
var reZipCode = regexp.MustCompile(`^\d{5}$`)

// IsZipCode reports whether s is a well-formed five digit postal code
func IsZipCode(s string) bool {
	return reZipCode.MatchString(s)
}

// ExtractTokens splits a raw "street zip city" address into its street and
// city segments, using the first occurrence of zipCode as the anchor.
//
// A nil segment means the address carries no signal for it: the zip code is
// absent from the address, or the trimmed segment is empty.
func ExtractTokens(address, zipCode string) (street, city *string) {
	if address == "" || zipCode == "" {
		return nil, nil
	}

	idx := strings.Index(address, zipCode)
	if idx < 0 {
		return nil, nil
	}

	street = nonEmpty(address[:idx])
	city = nonEmpty(address[idx+len(zipCode):])
	return street, city
}

func nonEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
