package validate

import (
	"errors"
	"math"
	"testing"

	"worldpanel/internal/models"
)

func TestPortBoundsAreExclusive(t *testing.T) {
	for _, p := range []int{25561, 25565, 25569} {
		if err := Port(p); err != nil {
			t.Errorf("port %d should pass: %v", p, err)
		}
	}
	for _, p := range []int{25560, 25570, 0, 80, 65535} {
		err := Port(p)
		var verr *Error
		if !errors.As(err, &verr) {
			t.Fatalf("port %d: expected *Error, got %v", p, err)
		}
		if verr.Message != "Port must be a number between 25560 and 25570" {
			t.Errorf("unexpected message %q", verr.Message)
		}
	}
}

func TestParsePort(t *testing.T) {
	if p, err := ParsePort(" 25561 "); err != nil || p != 25561 {
		t.Errorf("got %d, %v", p, err)
	}
	if _, err := ParsePort("abc"); err == nil {
		t.Error("expected error for non-number")
	}
}

func TestWorldConfig(t *testing.T) {
	ok := models.WorldConfig{WorldName: "survival", ServerVersion: "1.21", Port: 25562}
	if err := WorldConfig(ok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	missing := ok
	missing.ServerVersion = ""
	if err := WorldConfig(missing); err == nil || err.Error() != "Please fill in all fields" {
		t.Errorf("unexpected error %v", err)
	}
	badPort := ok
	badPort.Port = 25570
	if err := WorldConfig(badPort); err == nil {
		t.Error("expected port error")
	}
}

func TestRAMConversions(t *testing.T) {
	cases := []struct {
		mb   int
		want float64
	}{
		{1024, 1},
		{1536, 1.5},
		{1800, 2},
		{1200, 1},
		{1300, 1.5},
		{4096, 4},
	}
	for _, tc := range cases {
		if got := MBToGB(tc.mb); got != tc.want {
			t.Errorf("MBToGB(%d) = %v, want %v", tc.mb, got, tc.want)
		}
	}
	if got := GBToMB(2.5); got != 2560 {
		t.Errorf("GBToMB(2.5) = %d", got)
	}
}

func TestRAMRoundTripIsStableOnHalfGrid(t *testing.T) {
	for mb := 256; mb <= 32768; mb += 37 {
		gb := MBToGB(mb)
		again := MBToGB(GBToMB(gb))
		if again != gb {
			t.Fatalf("mb=%d: %v -> %v", mb, gb, again)
		}
	}
}

func TestRAM(t *testing.T) {
	ram, err := RAM(1.5, 4)
	if err != nil {
		t.Fatal(err)
	}
	if ram != (models.RAM{Min: 1536, Max: 4096}) {
		t.Errorf("unexpected ram %+v", ram)
	}
	if _, err := RAM(4, 2); err == nil {
		t.Error("min above max should fail")
	}
	if _, err := RAM(0, 2); err == nil {
		t.Error("zero should fail")
	}
}

func TestRAMRejectsUnrepresentableSizes(t *testing.T) {
	cases := []struct {
		name     string
		min, max float64
	}{
		{"rounds to zero", 0.0004, 0.0004},
		{"min rounds to zero", 0.0001, 2},
		{"positive infinity", 1, math.Inf(1)},
		{"both infinite", math.Inf(1), math.Inf(1)},
		{"nan", math.NaN(), 2},
		{"overflows megabytes", 1, 1e300},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ram, err := RAM(tc.min, tc.max)
			if err == nil {
				t.Fatalf("RAM(%v, %v) = %+v, want error", tc.min, tc.max, ram)
			}
			var verr *Error
			if !errors.As(err, &verr) || verr.Field != "ram" {
				t.Fatalf("expected a ram field error, got %v", err)
			}
		})
	}
}

func TestDatapackName(t *testing.T) {
	if err := DatapackName("terralith.ZIP"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	for _, name := range []string{"", "pack.rar", "../evil.zip"} {
		if err := DatapackName(name); err == nil {
			t.Errorf("%q should be rejected", name)
		}
	}
}

func TestParsePlayerList(t *testing.T) {
	cases := map[string]PlayerList{"whitelist": Whitelist, "BAN": Blacklist, "blacklist": Blacklist, "op": Operators}
	for in, want := range cases {
		got, err := ParsePlayerList(in)
		if err != nil || got != want {
			t.Errorf("ParsePlayerList(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParsePlayerList("mods"); err == nil {
		t.Error("expected error")
	}
}

func TestUsername(t *testing.T) {
	if err := Username("Notch_01"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	for _, name := range []string{"ab", "this_name_is_too_long", "bad name", "ü-ber"} {
		if err := Username(name); err == nil {
			t.Errorf("%q should be rejected", name)
		}
	}
}
