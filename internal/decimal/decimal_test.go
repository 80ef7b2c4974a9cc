package decimal

import "testing"

func TestRescaleTruncateVsCeil(t *testing.T) {
	v := MustFromString("10.12345")

	trunc, err := v.Rescale(4, Truncate)
	if err != nil {
		t.Fatalf("truncate: %v", err)
	}
	if trunc.String() != "10.1234" {
		t.Fatalf("truncate = %s, want 10.1234", trunc.String())
	}

	ceil, err := v.Rescale(4, CeilAbs)
	if err != nil {
		t.Fatalf("ceil: %v", err)
	}
	if ceil.String() != "10.1235" {
		t.Fatalf("ceil = %s, want 10.1235", ceil.String())
	}
}

func TestMulRescaleFullPrecision(t *testing.T) {
	price := MustFromString("10")
	amount := MustFromString("0.99999999")

	vol, err := price.MulRescale(amount, 4, Truncate)
	if err != nil {
		t.Fatalf("mul rescale: %v", err)
	}
	// 10 * 0.99999999 = 9.9999999, truncated to 4 places = 9.9999
	if vol.String() != "9.9999" {
		t.Fatalf("vol = %s, want 9.9999", vol.String())
	}
}

func TestOverflow(t *testing.T) {
	big, err := NewFromString(rep("9", MaxDigits))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	_, err = big.Add(MustFromString("1"))
	if err == nil {
		t.Fatalf("expected overflow error")
	}
}

func TestDivByZero(t *testing.T) {
	a := MustFromString("1")
	_, err := a.Div(Zero, 4)
	if err == nil {
		t.Fatalf("expected division by zero error")
	}
}

func TestComparisons(t *testing.T) {
	a := MustFromString("1.5")
	b := MustFromString("2.5")
	if !a.LessThan(b) {
		t.Fatalf("expected a < b")
	}
	if !b.GreaterThan(a) {
		t.Fatalf("expected b > a")
	}
	if Min(a, b) != a {
		t.Fatalf("expected min to be a")
	}
}

func TestBinaryRoundTrip(t *testing.T) {
	cases := []string{"0", "10.5000", "0.0001", "123456789012.345678"}
	for _, c := range cases {
		d := MustFromString(c)
		b, err := d.MarshalBinary()
		if err != nil {
			t.Fatalf("marshal %s: %v", c, err)
		}
		if len(b) != 14 {
			t.Fatalf("encoded length = %d, want 14", len(b))
		}
		var got Decimal
		if err := got.UnmarshalBinary(b); err != nil {
			t.Fatalf("unmarshal %s: %v", c, err)
		}
		if !got.Equal(d) {
			t.Fatalf("round trip %s -> %s", c, got.String())
		}
	}
}

func rep(s string, n int) string {
	out := make([]byte, 0, n*len(s))
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}
