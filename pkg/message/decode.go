package message

import (
	"time"

	"github.com/tidwall/gjson"
)

// TypeDirected is the JS8Call API event type for a received, addressed message.
// Every other event type is valid but not displayed.
const TypeDirected = "RX.DIRECTED"

// Reason classifies why a line did not produce a Message.
type Reason uint8

const (
	MalformedSyntax Reason = iota + 1 // Line is not valid JSON
	Uninteresting                     // Valid event of another type
	MissingParams                     // Directed event without a params object
	Oversized                         // Line exceeded the reader's limit and was cut
)

// String returns the reason name.
func (r Reason) String() string {
	switch r {
	case MalformedSyntax:
		return "malformed syntax"
	case Uninteresting:
		return "uninteresting"
	case MissingParams:
		return "missing params"
	case Oversized:
		return "oversized"
	default:
		return "unknown"
	}
}

// Logged reports whether a rejection for this reason deserves a log entry.
// Other event types are routine traffic and are dropped silently.
func (r Reason) Logged() bool {
	return r != Uninteresting
}

// Rejection is the error returned for every line that does not decode into
// a Message. None of them is fatal.
type Rejection struct {
	Reason Reason
	Detail string
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return "message rejected: " + r.Reason.String()
	}
	return "message rejected: " + r.Reason.String() + ": " + r.Detail
}

// Is matches any Rejection with the same Reason, so the sentinels below work
// with errors.Is regardless of Detail.
func (r *Rejection) Is(target error) bool {
	t, ok := target.(*Rejection)
	return ok && t.Reason == r.Reason
}

// Sentinels for errors.Is.
var (
	ErrMalformedSyntax = &Rejection{Reason: MalformedSyntax}
	ErrUninteresting   = &Rejection{Reason: Uninteresting}
	ErrMissingParams   = &Rejection{Reason: MissingParams}
	ErrOversized       = &Rejection{Reason: Oversized}
)

// Kind is the JSON kind a params field must have to be used.
type Kind uint8

const (
	KindText Kind = iota
	KindNumber
)

// FieldPolicy says how one params field is read and what replaces it when it
// is absent, null or of the wrong kind.
type FieldPolicy struct {
	Key    string
	Kind   Kind
	Text   string // Default for KindText
	Number int    // Default for KindNumber
}

// Decode policy, one entry per params field.
var (
	FromField   = FieldPolicy{Key: "FROM", Kind: KindText, Text: NotAvailable}
	ToField     = FieldPolicy{Key: "TO", Kind: KindText, Text: NotAvailable}
	OffsetField = FieldPolicy{Key: "OFFSET", Kind: KindNumber, Number: Unknown}
	SNRField    = FieldPolicy{Key: "SNR", Kind: KindNumber, Number: Unknown}
	TextField   = FieldPolicy{Key: "TEXT", Kind: KindText, Text: NotAvailable}
)

// Policy lists the full decode policy table.
var Policy = []FieldPolicy{FromField, ToField, OffsetField, SNRField, TextField}

func (p FieldPolicy) text(params gjson.Result) string {
	v := params.Get(p.Key)
	if v.Type != gjson.String {
		return p.Text
	}
	return v.Str
}

func (p FieldPolicy) number(params gjson.Result) int {
	v := params.Get(p.Key)
	if v.Type != gjson.Number {
		return p.Number
	}
	return int(v.Int())
}

// Decode parses one API line into a Message stamped with now.
// Every failure is a *Rejection.
func Decode(line []byte, now time.Time) (Message, error) {
	if !gjson.ValidBytes(line) {
		return Message{}, &Rejection{Reason: MalformedSyntax}
	}

	typ := gjson.GetBytes(line, "type")
	if typ.Type != gjson.String || typ.Str != TypeDirected {
		return Message{}, &Rejection{Reason: Uninteresting, Detail: typ.String()}
	}

	params := gjson.GetBytes(line, "params")
	if !params.IsObject() {
		return Message{}, &Rejection{Reason: MissingParams}
	}

	return Message{
		From:    FromField.text(params),
		To:      ToField.text(params),
		Offset:  OffsetField.number(params),
		SNR:     SNRField.number(params),
		Text:    TextField.text(params),
		Arrived: now,
	}, nil
}
