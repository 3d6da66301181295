package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

type QuestionType string

const (
	QuestionSingleChoice   QuestionType = "single_choice"
	QuestionTrueFalse      QuestionType = "true_false"
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionShortAnswer    QuestionType = "short_answer"
	QuestionFillBlank      QuestionType = "fill_blank"
	QuestionNumeric        QuestionType = "numeric"
	QuestionOrdering       QuestionType = "ordering"
	QuestionMatching       QuestionType = "matching"
	QuestionEssay          QuestionType = "essay"
	QuestionCode           QuestionType = "code"
)

// PayloadKind is the discriminator of the answer payload union.
type PayloadKind string

const (
	PayloadChoice   PayloadKind = "choice"
	PayloadText     PayloadKind = "text"
	PayloadNumeric  PayloadKind = "numeric"
	PayloadOrdering PayloadKind = "ordering"
	PayloadMatching PayloadKind = "matching"
	PayloadCode     PayloadKind = "code"
)

// PayloadKind returns the payload shape accepted for this question type, or
// "" for an unknown type.
func (t QuestionType) PayloadKind() PayloadKind {
	switch t {
	case QuestionSingleChoice, QuestionTrueFalse, QuestionMultipleChoice:
		return PayloadChoice
	case QuestionShortAnswer, QuestionFillBlank, QuestionEssay:
		return PayloadText
	case QuestionNumeric:
		return PayloadNumeric
	case QuestionOrdering:
		return PayloadOrdering
	case QuestionMatching:
		return PayloadMatching
	case QuestionCode:
		return PayloadCode
	}
	return ""
}

func (t QuestionType) Valid() bool {
	return t.PayloadKind() != ""
}

func (t QuestionType) RequiresManualGrading() bool {
	return t == QuestionEssay || t == QuestionCode
}

// AnswerPayload is a closed union; only the types in this file implement it.
type AnswerPayload interface {
	Kind() PayloadKind
	IsEmpty() bool
	sealed()
}

type ChoicePayload struct {
	Selected []string `json:"selected"`
}

type TextPayload struct {
	Text string `json:"text"`
}

type NumericPayload struct {
	Value float64 `json:"value"`
}

type OrderingPayload struct {
	Sequence []string `json:"sequence"`
}

type MatchingPayload struct {
	Pairs map[string]string `json:"pairs"`
}

type CodePayload struct {
	Language string `json:"language"`
	Source   string `json:"source"`
}

func (ChoicePayload) Kind() PayloadKind   { return PayloadChoice }
func (TextPayload) Kind() PayloadKind     { return PayloadText }
func (NumericPayload) Kind() PayloadKind  { return PayloadNumeric }
func (OrderingPayload) Kind() PayloadKind { return PayloadOrdering }
func (MatchingPayload) Kind() PayloadKind { return PayloadMatching }
func (CodePayload) Kind() PayloadKind     { return PayloadCode }

func (p ChoicePayload) IsEmpty() bool   { return len(p.Selected) == 0 }
func (p TextPayload) IsEmpty() bool     { return strings.TrimSpace(p.Text) == "" }
func (NumericPayload) IsEmpty() bool    { return false }
func (p OrderingPayload) IsEmpty() bool { return len(p.Sequence) == 0 }
func (p MatchingPayload) IsEmpty() bool { return len(p.Pairs) == 0 }
func (p CodePayload) IsEmpty() bool     { return strings.TrimSpace(p.Source) == "" }

func (ChoicePayload) sealed()   {}
func (TextPayload) sealed()     {}
func (NumericPayload) sealed()  {}
func (OrderingPayload) sealed() {}
func (MatchingPayload) sealed() {}
func (CodePayload) sealed()     {}

// Payload wraps an AnswerPayload for storage and transport as
// {"kind": ..., "data": ...}. A nil Value means unanswered.
type Payload struct {
	Value AnswerPayload
}

type payloadEnvelope struct {
	Kind PayloadKind     `json:"kind"`
	Data json.RawMessage `json:"data"`
}

func NewPayload(v AnswerPayload) Payload {
	return Payload{Value: v}
}

func (p Payload) Answered() bool {
	return p.Value != nil && !p.Value.IsEmpty()
}

func (p Payload) MarshalJSON() ([]byte, error) {
	if p.Value == nil {
		return []byte("null"), nil
	}
	data, err := json.Marshal(p.Value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(payloadEnvelope{Kind: p.Value.Kind(), Data: data})
}

func (p *Payload) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		p.Value = nil
		return nil
	}
	var env payloadEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}
	v, err := DecodePayload(env.Kind, env.Data)
	if err != nil {
		return err
	}
	p.Value = v
	return nil
}

// DecodePayload decodes data into the concrete payload type for kind.
func DecodePayload(kind PayloadKind, data json.RawMessage) (AnswerPayload, error) {
	var (
		v   AnswerPayload
		err error
	)
	switch kind {
	case PayloadChoice:
		var c ChoicePayload
		err = json.Unmarshal(data, &c)
		v = c
	case PayloadText:
		var t TextPayload
		err = json.Unmarshal(data, &t)
		v = t
	case PayloadNumeric:
		var n NumericPayload
		err = json.Unmarshal(data, &n)
		v = n
	case PayloadOrdering:
		var o OrderingPayload
		err = json.Unmarshal(data, &o)
		v = o
	case PayloadMatching:
		var m MatchingPayload
		err = json.Unmarshal(data, &m)
		v = m
	case PayloadCode:
		var c CodePayload
		err = json.Unmarshal(data, &c)
		v = c
	default:
		return nil, fmt.Errorf("unknown payload kind %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", kind, err)
	}
	return v, nil
}
