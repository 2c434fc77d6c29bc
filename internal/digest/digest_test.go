package digest

import "testing"

func TestHashKnownVector(t *testing.T) {
	got := Hash([]byte("hello"))
	want := "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	if got.ToHex() != want {
		t.Fatalf("Hash(%q) = %s, want %s", "hello", got.ToHex(), want)
	}
}

func TestHexRoundTrip(t *testing.T) {
	d := Hash([]byte("round trip me"))
	back, err := FromHex(d.ToHex())
	if err != nil {
		t.Fatalf("FromHex: %v", err)
	}
	if back != d {
		t.Fatalf("round trip mismatch: got %v want %v", back, d)
	}
}

func TestFromHexRejectsBadInput(t *testing.T) {
	cases := []string{
		"",
		"deadbeef",
		"gg" + string(make([]byte, 62)),
		Hash([]byte("x")).ToHex()[:63],
		Hash([]byte("x")).ToHex() + "0",
	}
	for _, c := range cases {
		if _, err := FromHex(c); err == nil {
			t.Errorf("FromHex(%q) should have failed", c)
		}
	}
}

func TestCombineIsOrderSensitive(t *testing.T) {
	a := Hash([]byte("a"))
	b := Hash([]byte("b"))
	if Combine(a, b) == Combine(b, a) {
		t.Fatal("Combine must not be commutative")
	}
}

func TestZeroIsZero(t *testing.T) {
	var d Digest32
	if !d.IsZero() {
		t.Fatal("zero-value Digest32 should report IsZero")
	}
	if Hash([]byte("x")).IsZero() {
		t.Fatal("a real hash should not be zero")
	}
}
