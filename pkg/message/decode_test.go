package message

import (
	"errors"
	"testing"
	"time"
)

var testNow = time.Date(2024, 3, 7, 14, 5, 0, 0, time.UTC)

func TestDecodeDirected(t *testing.T) {
	line := []byte(`{"type":"RX.DIRECTED","params":{"FROM":"K1ABC","TO":"K2XYZ","OFFSET":1500,"SNR":-5,"TEXT":"HELLO WORLD"}}`)

	m, err := Decode(line, testNow)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if m.From != "K1ABC" {
		t.Errorf("From: expected K1ABC, got %s", m.From)
	}
	if m.To != "K2XYZ" {
		t.Errorf("To: expected K2XYZ, got %s", m.To)
	}
	if m.Offset != 1500 {
		t.Errorf("Offset: expected 1500, got %d", m.Offset)
	}
	if m.SNR != -5 {
		t.Errorf("SNR: expected -5, got %d", m.SNR)
	}
	if m.Text != "HELLO WORLD" {
		t.Errorf("Text: expected HELLO WORLD, got %s", m.Text)
	}
	if !m.Arrived.Equal(testNow) {
		t.Errorf("Arrived: expected %v, got %v", testNow, m.Arrived)
	}
}

func TestDecodeMissingText(t *testing.T) {
	line := []byte(`{"type":"RX.DIRECTED","params":{"FROM":"K1ABC","TO":"K2XYZ","SNR":-5,"OFFSET":1500}}`)

	m, err := Decode(line, testNow)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if m.Text != "N/A" {
		t.Errorf("Text: expected N/A, got %q", m.Text)
	}
	if m.SNR != -5 || m.Offset != 1500 {
		t.Errorf("Signal: expected -5 @1500, got %d @%d", m.SNR, m.Offset)
	}
}

func TestDecodeDefaults(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Message
	}{
		{
			name: "empty params",
			line: `{"type":"RX.DIRECTED","params":{}}`,
			want: Message{From: "N/A", To: "N/A", Offset: -1, SNR: -1, Text: "N/A"},
		},
		{
			name: "null fields",
			line: `{"type":"RX.DIRECTED","params":{"FROM":null,"TO":"@ALLCALL","OFFSET":null,"SNR":3,"TEXT":null}}`,
			want: Message{From: "N/A", To: "@ALLCALL", Offset: -1, SNR: 3, Text: "N/A"},
		},
		{
			name: "wrong kinds",
			line: `{"type":"RX.DIRECTED","params":{"FROM":12,"TO":"K2XYZ","OFFSET":"1500","SNR":true,"TEXT":["x"]}}`,
			want: Message{From: "N/A", To: "K2XYZ", Offset: -1, SNR: -1, Text: "N/A"},
		},
		{
			name: "extra fields",
			line: `{"type":"RX.DIRECTED","value":"ignored","params":{"FROM":"K1ABC","GRID":"FN42","SNR":-20,"_ID":7}}`,
			want: Message{From: "K1ABC", To: "N/A", Offset: -1, SNR: -20, Text: "N/A"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Decode([]byte(tt.line), testNow)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			tt.want.Arrived = testNow
			if m != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, m)
			}
		})
	}
}

func TestDecodeRejections(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		reason Reason
		target error
	}{
		{"truncated", `{"type":"RX.DIRECTED","params":{"FROM":"K1`, MalformedSyntax, ErrMalformedSyntax},
		{"garbage", `not json`, MalformedSyntax, ErrMalformedSyntax},
		{"empty", ``, MalformedSyntax, ErrMalformedSyntax},
		{"other type", `{"type":"RX.ACTIVITY","params":{"FROM":"K1ABC"}}`, Uninteresting, ErrUninteresting},
		{"ping", `{"type":"PING","value":"","params":{}}`, Uninteresting, ErrUninteresting},
		{"no type", `{"params":{"FROM":"K1ABC"}}`, Uninteresting, ErrUninteresting},
		{"type not string", `{"type":1,"params":{}}`, Uninteresting, ErrUninteresting},
		{"case differs", `{"type":"rx.directed","params":{}}`, Uninteresting, ErrUninteresting},
		{"array", `[1,2,3]`, Uninteresting, ErrUninteresting},
		{"no params", `{"type":"RX.DIRECTED"}`, MissingParams, ErrMissingParams},
		{"null params", `{"type":"RX.DIRECTED","params":null}`, MissingParams, ErrMissingParams},
		{"params not object", `{"type":"RX.DIRECTED","params":"K1ABC"}`, MissingParams, ErrMissingParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.line), testNow)
			if err == nil {
				t.Fatal("expected rejection, got nil")
			}

			var rej *Rejection
			if !errors.As(err, &rej) {
				t.Fatalf("expected *Rejection, got %T", err)
			}
			if rej.Reason != tt.reason {
				t.Errorf("Reason: expected %s, got %s", tt.reason, rej.Reason)
			}
			if !errors.Is(err, tt.target) {
				t.Errorf("errors.Is(%v, %v) = false", err, tt.target)
			}
		})
	}
}

func TestReasonLogged(t *testing.T) {
	if Uninteresting.Logged() {
		t.Error("Uninteresting should not be logged")
	}
	for _, r := range []Reason{MalformedSyntax, MissingParams, Oversized} {
		if !r.Logged() {
			t.Errorf("%s should be logged", r)
		}
	}
}

func TestPolicyTable(t *testing.T) {
	keys := map[string]bool{}
	for _, p := range Policy {
		if keys[p.Key] {
			t.Errorf("duplicate policy key %s", p.Key)
		}
		keys[p.Key] = true
		switch p.Kind {
		case KindText:
			if p.Text != NotAvailable {
				t.Errorf("%s: expected default %q, got %q", p.Key, NotAvailable, p.Text)
			}
		case KindNumber:
			if p.Number != Unknown {
				t.Errorf("%s: expected default %d, got %d", p.Key, Unknown, p.Number)
			}
		}
	}
	if len(keys) != 5 {
		t.Errorf("expected 5 policy entries, got %d", len(keys))
	}
}

func TestMessageAge(t *testing.T) {
	m := Message{Arrived: testNow}
	if age := m.Age(testNow.Add(1500 * time.Millisecond)); age != 1500*time.Millisecond {
		t.Errorf("Age: expected 1.5s, got %v", age)
	}
	if age := m.Age(testNow.Add(-time.Second)); age != 0 {
		t.Errorf("Age before arrival: expected 0, got %v", age)
	}
}

func BenchmarkDecode(b *testing.B) {
	line := []byte(`{"type":"RX.DIRECTED","params":{"FROM":"K1ABC","TO":"K2XYZ","OFFSET":1500,"SNR":-5,"TEXT":"K1ABC: K2XYZ SNR -05 ~"}}`)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Decode(line, testNow); err != nil {
			b.Fatal(err)
		}
	}
}
