package provider

import (
	"strconv"
	"strings"
	"time"

	"github.com/nyaruka/phonenumbers"
	"github.com/tidwall/gjson"

	"telegram-virtual-number/internal/domain/model"
)

// field returns the first present key among names. Vendors mix upper and
// lower case keys between endpoints.
func field(r gjson.Result, names ...string) gjson.Result {
	for _, n := range names {
		if v := r.Get(n); v.Exists() && v.Type != gjson.Null {
			return v
		}
	}
	return gjson.Result{}
}

// truthy treats 0, "", "0", "false" and null as false.
func truthy(r gjson.Result) bool {
	switch r.Type {
	case gjson.True:
		return true
	case gjson.Number:
		return r.Num != 0
	case gjson.String:
		s := strings.TrimSpace(r.Str)
		if s == "" || strings.EqualFold(s, "false") {
			return false
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f != 0
		}
		return true
	case gjson.JSON:
		return r.Raw != "[]" && r.Raw != "{}"
	}
	return false
}

// flag reads "1"/1/true style booleans; a missing field yields def.
func flag(r gjson.Result, def bool) bool {
	if !r.Exists() || r.Type == gjson.Null {
		return def
	}
	return truthy(r)
}

// pickQuoteEntry selects the price entry of a getinfo-style answer: the
// first list element, or the object itself. The entry is only usable when it
// carries a truthy amount.
func pickQuoteEntry(body gjson.Result) (gjson.Result, bool) {
	it := body
	if body.IsArray() {
		items := body.Array()
		if len(items) == 0 {
			return gjson.Result{}, false
		}
		it = items[0]
	}
	if it.IsObject() && truthy(field(it, "amount", "AMOUNT")) {
		return it, true
	}
	return gjson.Result{}, false
}

func quoteFromEntry(it gjson.Result) model.Quote {
	return model.Quote{
		BaseAmount:     field(it, "amount", "AMOUNT").Int(),
		Available:      int(field(it, "count", "COUNT").Int()),
		RepeatCapable:  flag(field(it, "repeat", "REPEAT"), false),
		ValidityWindow: ParseWindow(field(it, "time", "TIME").String()),
	}
}

// ParseWindow parses "HH:MM:SS" and falls back to 20 minutes.
func ParseWindow(s string) time.Duration {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return model.DefaultValidityWindow
	}
	var secs int
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return model.DefaultValidityWindow
		}
		secs = secs*60 + n
	}
	if secs == 0 {
		return model.DefaultValidityWindow
	}
	return time.Duration(secs) * time.Second
}

// FormatPhone builds an international number from the vendor's pieces and
// normalizes it to E.164 when libphonenumber accepts it.
func FormatPhone(number, areaCode string) string {
	number = strings.TrimSpace(number)
	areaCode = strings.TrimLeft(strings.TrimSpace(areaCode), "+")
	if number == "" {
		return ""
	}
	full := number
	if !strings.HasPrefix(number, "+") {
		full = "+" + areaCode + number
	}
	num, err := phonenumbers.Parse(full, "")
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return full
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}

func catalogActive(it gjson.Result) bool {
	return flag(field(it, "active", "ACTIVE"), true)
}
