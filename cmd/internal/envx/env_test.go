package envx

import (
	"errors"
	"testing"
	"time"
)

func TestLenientGetters(t *testing.T) {
	t.Setenv("PORTAL_T_STR", "  value ")
	t.Setenv("PORTAL_T_BOOL", "nope")
	t.Setenv("PORTAL_T_INT", "-3")
	t.Setenv("PORTAL_T_LIST", "a, ,b,")
	t.Setenv("PORTAL_T_DUR", "soon")

	if got := String("PORTAL_T_STR", "def"); got != "value" {
		t.Fatalf("String=%q", got)
	}
	if got := String("PORTAL_T_UNSET", "def"); got != "def" {
		t.Fatalf("String unset=%q", got)
	}
	if !Bool("PORTAL_T_BOOL", true) {
		t.Fatalf("malformed bool must fall back to the default")
	}
	if got := Int("PORTAL_T_INT", 7); got != 7 {
		t.Fatalf("Int=%d want default for non-positive", got)
	}
	if got := List("PORTAL_T_LIST", nil); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("List=%q", got)
	}
	if got := Duration("PORTAL_T_DUR", time.Second); got != time.Second {
		t.Fatalf("Duration=%v", got)
	}
}

func TestParseBool(t *testing.T) {
	cases := map[string]bool{"true": true, "1": true, "yes": true, "ON": true, "false": false, "off": false, "no": false}
	for in, want := range cases {
		t.Setenv("PORTAL_T_BOOL", in)
		got, err := ParseBool("PORTAL_T_BOOL", !want)
		if err != nil || got != want {
			t.Fatalf("ParseBool(%q)=%v,%v want %v", in, got, err, want)
		}
	}

	t.Setenv("PORTAL_T_BOOL", "maybe")
	_, err := ParseBool("PORTAL_T_BOOL", false)
	var envErr *Error
	if !errors.As(err, &envErr) || envErr.Key != "PORTAL_T_BOOL" {
		t.Fatalf("expected *Error for PORTAL_T_BOOL, got %v", err)
	}
}

func TestParseDuration(t *testing.T) {
	t.Setenv("PORTAL_T_DUR", "0")
	if d, err := ParseDuration("PORTAL_T_DUR", time.Hour); err != nil || d != 0 {
		t.Fatalf("ParseDuration(0)=%v,%v", d, err)
	}
	t.Setenv("PORTAL_T_DUR", "-1s")
	if _, err := ParseDuration("PORTAL_T_DUR", time.Hour); err == nil {
		t.Fatalf("expected error for negative duration")
	}
	if d, err := ParseDuration("PORTAL_T_UNSET", time.Hour); err != nil || d != time.Hour {
		t.Fatalf("unset=%v,%v", d, err)
	}
}

func TestParseIntRange(t *testing.T) {
	t.Setenv("PORTAL_T_INT", "12")
	if n, err := ParseIntRange("PORTAL_T_INT", 0, 4, 31); err != nil || n != 12 {
		t.Fatalf("ParseIntRange=%d,%v", n, err)
	}
	if _, err := ParseIntRange("PORTAL_T_INT", 0, 4, 10); err == nil {
		t.Fatalf("expected out of range error")
	}
	if _, err := ParseInt("PORTAL_T_INT", 0, 13); err == nil {
		t.Fatalf("expected below minimum error")
	}
}
