package relay

import "testing"

func TestHandlerTransform(t *testing.T) {
	h := Handler{ReserveRate: 0.5, NewRate: 0.2, NewContent: []byte("ab")}
	input := make([]byte, 100)
	for i := range input {
		input[i] = byte('A' + i%26)
	}
	out := h.Transform(input)
	if len(out) != 70 {
		t.Fatalf("len(out) = %d, want 70", len(out))
	}
	if string(out[:50]) != string(input[:50]) {
		t.Fatalf("first 50 bytes mismatch")
	}
	if string(out[50:]) != "abababababababababab" {
		t.Fatalf("appended bytes = %q, want \"abababababababababab\"", out[50:])
	}
}

func TestHandlerZeroRates(t *testing.T) {
	h := Handler{ReserveRate: 0, NewRate: 0, NewContent: []byte("x")}
	out := h.Transform(make([]byte, 10))
	if len(out) != 0 {
		t.Fatalf("len(out) = %d, want 0", len(out))
	}
}
