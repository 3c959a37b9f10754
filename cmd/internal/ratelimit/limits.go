package ratelimit

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Limit allows Amount hits per Per.
type Limit struct {
	Amount int
	Per    time.Duration
}

// String renders the limit the way it appears in 429 messages: "5 per 1 minute".
func (l Limit) String() string {
	n, unit := 1, "second"
	for _, u := range []struct {
		name string
		d    time.Duration
	}{{"day", 24 * time.Hour}, {"hour", time.Hour}, {"minute", time.Minute}, {"second", time.Second}} {
		if l.Per >= u.d && l.Per%u.d == 0 {
			n, unit = int(l.Per/u.d), u.name
			break
		}
	}
	return fmt.Sprintf("%d per %d %s", l.Amount, n, unit)
}

func (l Limit) slug() string {
	return strconv.Itoa(l.Amount) + "/" + strconv.FormatInt(int64(l.Per/time.Millisecond), 10)
}

var units = map[string]time.Duration{
	"second": time.Second,
	"minute": time.Minute,
	"hour":   time.Hour,
	"day":    24 * time.Hour,
	"month":  30 * 24 * time.Hour,
	"year":   365 * 24 * time.Hour,
}

// ParseLimits parses one or more limits separated by ";" or ",".
//
// Each item is "N per [M] unit" or "N/[M] unit"; units may be plural.
func ParseLimits(spec string) ([]Limit, error) {
	var out []Limit
	for _, item := range strings.FieldsFunc(spec, func(r rune) bool { return r == ';' || r == ',' }) {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		l, err := parseLimit(item)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func parseLimit(item string) (Limit, error) {
	s := strings.ToLower(item)
	var amountPart, rest string
	if i := strings.Index(s, "/"); i >= 0 {
		amountPart, rest = s[:i], s[i+1:]
	} else if i := strings.Index(s, " per "); i >= 0 {
		amountPart, rest = s[:i], s[i+len(" per "):]
	} else {
		return Limit{}, fmt.Errorf("%w: %q", ErrInvalidLimit, item)
	}

	amount, err := strconv.Atoi(strings.TrimSpace(amountPart))
	if err != nil || amount <= 0 {
		return Limit{}, fmt.Errorf("%w: %q", ErrInvalidLimit, item)
	}

	fields := strings.Fields(rest)
	mult := 1
	switch len(fields) {
	case 1:
	case 2:
		mult, err = strconv.Atoi(fields[0])
		if err != nil || mult <= 0 {
			return Limit{}, fmt.Errorf("%w: %q", ErrInvalidLimit, item)
		}
		fields = fields[1:]
	default:
		return Limit{}, fmt.Errorf("%w: %q", ErrInvalidLimit, item)
	}

	unit, ok := units[strings.TrimSuffix(fields[0], "s")]
	if !ok {
		return Limit{}, fmt.Errorf("%w: %q", ErrInvalidLimit, item)
	}
	return Limit{Amount: amount, Per: time.Duration(mult) * unit}, nil
}

// MustParseLimits is ParseLimits for limits fixed at registration time.
func MustParseLimits(spec string) []Limit {
	ls, err := ParseLimits(spec)
	if err != nil {
		panic(err)
	}
	if len(ls) == 0 {
		panic(fmt.Errorf("%w: empty limit string", ErrInvalidLimit))
	}
	return ls
}
