// Package locale validates and normalizes user-supplied timezone and locale
// strings. It is the leaf dependency of all date parsing: the resolved
// Locale carries the day/month/year ordering used to disambiguate numeric
// dates, and the resolved *time.Location anchors wall-clock expressions.
package locale

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
)

var (
	ErrUnknownTimezone = errors.New("unknown timezone")
	ErrUnknownLocale   = errors.New("unknown locale")
)

// DateOrder is the precedence of numeric date components for a locale.
type DateOrder int

const (
	OrderDMY DateOrder = iota // 30/11/2023
	OrderMDY                  // 11/30/2023
	OrderYMD                  // 2023/11/30
)

func (o DateOrder) String() string {
	switch o {
	case OrderMDY:
		return "MDY"
	case OrderYMD:
		return "YMD"
	default:
		return "DMY"
	}
}

// Locale is a validated locale descriptor.
type Locale struct {
	Tag       language.Tag
	Name      string // canonical tag, e.g. "en-GB"
	Language  string // base language, e.g. "en"
	DateOrder DateOrder
}

// Common timezone abbreviations accepted as shorthand for IANA names.
// Ambiguous abbreviations resolve to their most common referent, matching
// everyday usage rather than strict correctness.
var tzAbbrevs = map[string]string{
	"UTC":  "UTC",
	"GMT":  "UTC",
	"EST":  "America/New_York",
	"EDT":  "America/New_York",
	"CST":  "America/Chicago",
	"CDT":  "America/Chicago",
	"MST":  "America/Denver",
	"MDT":  "America/Denver",
	"PST":  "America/Los_Angeles",
	"PDT":  "America/Los_Angeles",
	"BST":  "Europe/London",
	"CET":  "Europe/Paris",
	"CEST": "Europe/Paris",
	"EET":  "Europe/Athens",
	"EEST": "Europe/Athens",
	"MSK":  "Europe/Moscow",
	"IST":  "Asia/Kolkata",
	"JST":  "Asia/Tokyo",
	"KST":  "Asia/Seoul",
	"AEST": "Australia/Sydney",
	"AEDT": "Australia/Sydney",
	"NZST": "Pacific/Auckland",
	"NZDT": "Pacific/Auckland",
}

// ValidateTimezone accepts IANA names ("Europe/Berlin") and common
// abbreviations ("CET") and returns the normalized IANA name plus the
// loaded location. It never panics on bad input; unrecognized zones return
// ErrUnknownTimezone.
func ValidateTimezone(tz string) (string, *time.Location, error) {
	s := strings.TrimSpace(tz)
	if s == "" {
		return "", nil, fmt.Errorf("%w: empty string", ErrUnknownTimezone)
	}
	if iana, ok := tzAbbrevs[strings.ToUpper(s)]; ok {
		s = iana
	}
	loc, err := time.LoadLocation(s)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %q", ErrUnknownTimezone, tz)
	}
	return loc.String(), loc, nil
}

// Languages that write year-first numeric dates.
var ymdLanguages = map[string]bool{
	"ja": true, "zh": true, "ko": true, "hu": true, "lt": true, "mn": true,
}

// Regions that write month-first numeric dates.
var mdyRegions = map[string]bool{
	"US": true, "PH": true, "FM": true, "MH": true, "PW": true,
}

// ValidateLocale parses a BCP-47-ish tag ("en", "en_GB", "pt-br") and
// returns its descriptor. Unknown or malformed tags return ErrUnknownLocale.
func ValidateLocale(s string) (*Locale, error) {
	raw := strings.TrimSpace(strings.ReplaceAll(s, "_", "-"))
	if raw == "" {
		return nil, fmt.Errorf("%w: empty string", ErrUnknownLocale)
	}
	tag, err := language.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLocale, s)
	}

	base, conf := tag.Base()
	if conf == language.No {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLocale, s)
	}
	lang := base.String()

	order := OrderDMY
	if ymdLanguages[lang] {
		order = OrderYMD
	}
	region, _ := tag.Region()
	if mdyRegions[region.String()] {
		order = OrderMDY
	}
	// Bare "en" means US English for date-order purposes.
	if lang == "en" && !strings.Contains(raw, "-") {
		order = OrderMDY
	}

	return &Locale{
		Tag:       tag,
		Name:      tag.String(),
		Language:  lang,
		DateOrder: order,
	}, nil
}
