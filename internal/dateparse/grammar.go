package dateparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"remindbot/internal/locale"
)

// The grammar accepts a date expression when every token of the candidate
// string is consumed. It accumulates at most one of each component (calendar
// date, weekday, relative day, clock time, duration) and resolves the
// combination against the reference instant with a future bias.

type components struct {
	// calendar date
	haveDate bool
	year     int // 0 when not given explicitly
	month    time.Month
	day      int

	weekday     time.Weekday
	haveWeekday bool

	relDays int // 1 = tomorrow
	haveRel bool

	haveTime bool
	hour     int
	minute   int
	second   int

	// duration pieces; months and years advance by calendar, not constant
	// seconds
	dur       time.Duration
	durMonths int
	durYears  int
	haveDur   bool
}

func (c *components) any() bool {
	return c.haveDate || c.haveWeekday || c.haveRel || c.haveTime || c.haveDur
}

var fillerWords = map[string]bool{
	"at": true, "on": true, "in": true, "the": true, "next": true,
	"and": true, "of": true,
}

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

var monthNames = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may":  time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

type durUnit struct {
	d      time.Duration
	months int
	years  int
}

var durUnits = map[string]durUnit{
	"s": {d: time.Second}, "sec": {d: time.Second}, "secs": {d: time.Second},
	"second": {d: time.Second}, "seconds": {d: time.Second},
	"m": {d: time.Minute}, "min": {d: time.Minute}, "mins": {d: time.Minute},
	"minute": {d: time.Minute}, "minutes": {d: time.Minute},
	"h": {d: time.Hour}, "hr": {d: time.Hour}, "hrs": {d: time.Hour},
	"hour": {d: time.Hour}, "hours": {d: time.Hour},
	"d": {d: 24 * time.Hour}, "day": {d: 24 * time.Hour}, "days": {d: 24 * time.Hour},
	"wk": {d: 7 * 24 * time.Hour}, "wks": {d: 7 * 24 * time.Hour},
	"week": {d: 7 * 24 * time.Hour}, "weeks": {d: 7 * 24 * time.Hour},
	"mo": {months: 1}, "month": {months: 1}, "months": {months: 1},
	"y": {years: 1}, "yr": {years: 1}, "yrs": {years: 1},
	"year": {years: 1}, "years": {years: 1},
}

var (
	isoDatePattern     = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
	numericDatePattern = regexp.MustCompile(`^\d{1,4}([/.])\d{1,4}(?:([/.])\d{1,4})?$`)
	clockPattern       = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?::(\d{2}))?(am|pm)?$`)
	hourMeridiem       = regexp.MustCompile(`^(\d{1,2})(am|pm)$`)
	numberUnitPattern  = regexp.MustCompile(`^(\d+)([a-z]+)$`)
	ordinalPattern     = regexp.MustCompile(`^(\d{1,2})(st|nd|rd|th)$`)
	zoneAbbrevPattern  = regexp.MustCompile(`^[A-Z]{2,5}$`)
	barePattern        = regexp.MustCompile(`^\d{1,4}$`)
)

// parseExpression parses s as a complete date expression (all tokens must be
// consumed) and resolves it against now.
func parseExpression(s string, uc Context, now time.Time) (time.Time, bool) {
	raw := strings.Fields(s)
	if len(raw) == 0 {
		return time.Time{}, false
	}

	var c components
	for i := 0; i < len(raw); i++ {
		tok := strings.Trim(raw[i], ",.")
		if tok == "" {
			continue
		}
		low := strings.ToLower(tok)

		if fillerWords[low] {
			continue
		}
		if c.consumeWord(low) {
			continue
		}
		if c.consumeClock(low) || c.consumeDate(low, uc.Locale.DateOrder) {
			continue
		}
		// Zone abbreviation after a time ("3:04pm MST ...") is decoration.
		if c.haveTime && zoneAbbrevPattern.MatchString(tok) {
			continue
		}
		if ordinalPattern.MatchString(low) {
			m := ordinalPattern.FindStringSubmatch(low)
			if !c.setDay(atoi(m[1])) {
				return time.Time{}, false
			}
			continue
		}
		if m := numberUnitPattern.FindStringSubmatch(low); m != nil {
			if !c.addDuration(atoi(m[1]), m[2]) {
				return time.Time{}, false
			}
			continue
		}
		if barePattern.MatchString(low) {
			used, skip := c.consumeNumber(low, i, raw)
			if !used {
				return time.Time{}, false
			}
			i += skip
			continue
		}
		return time.Time{}, false
	}

	if !c.any() {
		return time.Time{}, false
	}
	return c.resolve(now, uc.Location)
}

// consumeWord handles weekday names, month names and relative day words.
func (c *components) consumeWord(low string) bool {
	if wd, ok := weekdayNames[low]; ok {
		if c.haveWeekday {
			return false
		}
		c.weekday = wd
		c.haveWeekday = true
		return true
	}
	if mo, ok := monthNames[low]; ok {
		if c.haveDate && c.month != 0 {
			return false
		}
		c.haveDate = true
		c.month = mo
		return true
	}
	switch low {
	case "today":
		c.haveRel = true
		return true
	case "tomorrow":
		c.haveRel = true
		c.relDays = 1
		return true
	case "noon":
		return c.setTime(12, 0, 0)
	case "midnight":
		return c.setTime(0, 0, 0)
	}
	return false
}

func (c *components) consumeClock(low string) bool {
	if m := clockPattern.FindStringSubmatch(low); m != nil {
		h, min := atoi(m[1]), atoi(m[2])
		sec := 0
		if m[3] != "" {
			sec = atoi(m[3])
		}
		if h > 23 || min > 59 || sec > 59 {
			return false
		}
		if !c.setTime(h, min, sec) {
			return false
		}
		if m[4] != "" {
			c.applyMeridiem(m[4])
		}
		return true
	}
	if m := hourMeridiem.FindStringSubmatch(low); m != nil {
		h := atoi(m[1])
		if h < 1 || h > 12 {
			return false
		}
		if !c.setTime(h, 0, 0) {
			return false
		}
		c.applyMeridiem(m[2])
		return true
	}
	// Standalone meridiem after a clock token: "10:15 pm"
	if (low == "am" || low == "pm") && c.haveTime && c.hour <= 12 {
		c.applyMeridiem(low)
		return true
	}
	return false
}

func (c *components) consumeDate(low string, order locale.DateOrder) bool {
	if m := isoDatePattern.FindStringSubmatch(low); m != nil {
		return c.setFullDate(atoi(m[1]), time.Month(atoi(m[2])), atoi(m[3]))
	}
	if !numericDatePattern.MatchString(low) {
		return false
	}
	parts := strings.FieldsFunc(low, func(r rune) bool { return r == '/' || r == '.' })
	nums := make([]int, len(parts))
	for i, p := range parts {
		nums[i] = atoi(p)
	}
	switch len(nums) {
	case 2:
		d, mo := nums[0], nums[1]
		if order == locale.OrderMDY || order == locale.OrderYMD {
			d, mo = nums[1], nums[0]
		}
		if mo < 1 || mo > 12 || d < 1 || d > 31 {
			return false
		}
		if c.haveDate {
			return false
		}
		c.haveDate = true
		c.month = time.Month(mo)
		c.day = d
		return true
	case 3:
		var y, mo, d int
		switch {
		case len(parts[0]) == 4 || order == locale.OrderYMD:
			y, mo, d = nums[0], nums[1], nums[2]
		case order == locale.OrderMDY:
			mo, d, y = nums[0], nums[1], nums[2]
		default:
			d, mo, y = nums[0], nums[1], nums[2]
		}
		if y < 100 {
			y += 2000
		}
		return c.setFullDate(y, time.Month(mo), d)
	}
	return false
}

// consumeNumber handles a bare number token using one-token lookahead.
// Returns whether the token was usable and how many extra tokens it consumed.
func (c *components) consumeNumber(low string, i int, raw []string) (used bool, skip int) {
	v := atoi(low)
	if i+1 < len(raw) {
		next := strings.ToLower(strings.Trim(raw[i+1], ",."))
		if next == "am" || next == "pm" {
			if v >= 1 && v <= 12 && c.setTime(v, 0, 0) {
				c.applyMeridiem(next)
				return true, 1
			}
			return false, 0
		}
		if _, ok := durUnits[next]; ok {
			if c.addDuration(v, next) {
				return true, 1
			}
			return false, 0
		}
		if _, ok := monthNames[next]; ok {
			// "2 july": the day precedes its month.
			if v >= 1 && v <= 31 && c.day == 0 {
				c.day = v
				return true, 0
			}
			return false, 0
		}
	}
	// After "july": a small number is the day, a 4-digit number the year.
	if c.haveDate && c.month != 0 {
		if c.day == 0 && v >= 1 && v <= 31 && len(low) <= 2 {
			c.day = v
			return true, 0
		}
		if c.year == 0 && len(low) == 4 {
			c.year = v
			return true, 0
		}
	}
	return false, 0
}

func (c *components) setTime(h, m, s int) bool {
	if c.haveTime {
		return false
	}
	c.haveTime = true
	c.hour, c.minute, c.second = h, m, s
	return true
}

func (c *components) applyMeridiem(mer string) {
	if mer == "pm" && c.hour < 12 {
		c.hour += 12
	}
	if mer == "am" && c.hour == 12 {
		c.hour = 0
	}
}

func (c *components) setDay(d int) bool {
	if d < 1 || d > 31 || c.day != 0 {
		return false
	}
	c.haveDate = true
	c.day = d
	return true
}

func (c *components) setFullDate(y int, mo time.Month, d int) bool {
	if c.haveDate {
		return false
	}
	if mo < time.January || mo > time.December || d < 1 || d > 31 || y < 1970 || y > 9999 {
		return false
	}
	c.haveDate = true
	c.year, c.month, c.day = y, mo, d
	return true
}

func (c *components) addDuration(v int, unit string) bool {
	u, ok := durUnits[unit]
	if !ok || v <= 0 {
		return false
	}
	c.haveDur = true
	c.dur += time.Duration(v) * u.d
	c.durMonths += v * u.months
	c.durYears += v * u.years
	return true
}

// resolve combines the accumulated components into an instant, biasing
// ambiguous expressions toward the nearest future occurrence.
func (c *components) resolve(now time.Time, loc *time.Location) (time.Time, bool) {
	// Durations stand alone.
	if c.haveDur {
		if c.haveDate || c.haveWeekday || c.haveRel || c.haveTime {
			return time.Time{}, false
		}
		t := now.Add(c.dur)
		if c.durMonths != 0 || c.durYears != 0 {
			t = t.AddDate(c.durYears, c.durMonths, 0)
		}
		return t, true
	}

	localNow := now.In(loc)
	h, m, s := localNow.Hour(), localNow.Minute(), localNow.Second()
	if c.haveTime {
		h, m, s = c.hour, c.minute, c.second
	}

	switch {
	case c.haveDate:
		// A month without a day is not a complete date.
		if c.month == 0 || c.day == 0 {
			return time.Time{}, false
		}
		year := c.year
		explicitYear := year != 0
		if !explicitYear {
			year = localNow.Year()
		}
		t := time.Date(year, c.month, c.day, h, m, s, 0, loc)
		if !explicitYear && !t.After(now) {
			t = t.AddDate(1, 0, 0)
		}
		return t, true

	case c.haveWeekday:
		days := (int(c.weekday) - int(localNow.Weekday()) + 7) % 7
		t := time.Date(localNow.Year(), localNow.Month(), localNow.Day()+days, h, m, s, 0, loc)
		if !t.After(now) {
			t = t.AddDate(0, 0, 7)
		}
		return t, true

	case c.haveRel:
		t := time.Date(localNow.Year(), localNow.Month(), localNow.Day()+c.relDays, h, m, s, 0, loc)
		if c.relDays == 0 && c.haveTime && !t.After(now) {
			// "today 8am" in the evening has no future reading; leave it to
			// the past-date check.
			return t, true
		}
		return t, true

	case c.haveTime:
		t := time.Date(localNow.Year(), localNow.Month(), localNow.Day(), h, m, s, 0, loc)
		if !t.After(now) {
			t = t.AddDate(0, 0, 1)
		}
		return t, true
	}
	return time.Time{}, false
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
