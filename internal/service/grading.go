package service

import (
	"math"
	"strings"
	"unicode"

	"exam_prep_backend/internal/model"
)

// GradeOutcome is the correctness verdict for one response.
type GradeOutcome struct {
	Correct     bool
	Partial     *float64 // 0-100, only for partially right responses
	NeedsManual bool
	Feedback    string
}

// AnswerGrader decides correctness against the snapshot's answer key.
type AnswerGrader interface {
	Grade(snap model.QuestionSnapshot, response model.Payload) GradeOutcome
}

type gradingStrategy interface {
	grade(key model.AnswerKey, v model.AnswerPayload) GradeOutcome
}

type GraderOption func(*graderConfig)

type graderConfig struct {
	maxEditDistance int
	partialMulti    bool
}

// WithMaxEditDistance lets short text answers within n edits earn half credit.
func WithMaxEditDistance(n int) GraderOption {
	return func(c *graderConfig) { c.maxEditDistance = n }
}

// WithPartialMulti toggles partial credit for multiple choice answers that
// select a subset of the key without false positives.
func WithPartialMulti(b bool) GraderOption {
	return func(c *graderConfig) { c.partialMulti = b }
}

type DefaultGrader struct {
	strategies map[model.QuestionType]gradingStrategy
}

func NewAnswerGrader(opts ...GraderOption) *DefaultGrader {
	cfg := &graderConfig{partialMulti: true}
	for _, o := range opts {
		o(cfg)
	}
	text := textStrategy{maxEdit: cfg.maxEditDistance}
	return &DefaultGrader{
		strategies: map[model.QuestionType]gradingStrategy{
			model.QuestionSingleChoice:   singleChoiceStrategy{},
			model.QuestionTrueFalse:      singleChoiceStrategy{},
			model.QuestionMultipleChoice: multiChoiceStrategy{allowPartial: cfg.partialMulti},
			model.QuestionShortAnswer:    text,
			model.QuestionFillBlank:      text,
			model.QuestionNumeric:        numericStrategy{},
			model.QuestionOrdering:       orderingStrategy{},
			model.QuestionMatching:       matchingStrategy{},
		},
	}
}

func (g *DefaultGrader) Grade(snap model.QuestionSnapshot, response model.Payload) GradeOutcome {
	if !response.Answered() {
		return GradeOutcome{}
	}
	if snap.ManualGrading {
		return GradeOutcome{NeedsManual: true}
	}
	if response.Value.Kind() != snap.Type.PayloadKind() {
		return GradeOutcome{Feedback: "response does not match the question type"}
	}
	s, ok := g.strategies[snap.Type]
	if !ok {
		return GradeOutcome{NeedsManual: true, Feedback: "no automatic grader for this question type"}
	}
	return s.grade(snap.AnswerKey, response.Value)
}

// GradeAll returns a copy of answers with correctness filled in. Answers a
// reviewer already graded keep their verdict.
func GradeAll(g AnswerGrader, answers []model.Answer) []model.Answer {
	out := make([]model.Answer, len(answers))
	copy(out, answers)
	for i := range out {
		a := &out[i]
		if a.ManuallyGraded {
			a.NeedsManual = false
			continue
		}
		res := g.Grade(a.Snapshot, a.Response)
		a.IsCorrect = res.Correct
		a.PartialScore = res.Partial
		a.NeedsManual = res.NeedsManual
		a.Feedback = res.Feedback
	}
	return out
}

func partial(hit, total int) *float64 {
	if total == 0 || hit == 0 || hit >= total {
		return nil
	}
	p := 100 * float64(hit) / float64(total)
	return &p
}

type singleChoiceStrategy struct{}

func (singleChoiceStrategy) grade(key model.AnswerKey, v model.AnswerPayload) GradeOutcome {
	c := v.(model.ChoicePayload)
	if len(c.Selected) != 1 {
		return GradeOutcome{Feedback: "exactly one option must be selected"}
	}
	for _, k := range key.Choices {
		if sameChoice(c.Selected[0], k) {
			return GradeOutcome{Correct: true}
		}
	}
	return GradeOutcome{}
}

type multiChoiceStrategy struct{ allowPartial bool }

func (s multiChoiceStrategy) grade(key model.AnswerKey, v model.AnswerPayload) GradeOutcome {
	c := v.(model.ChoicePayload)
	correct := choiceSet(key.Choices)
	selected := choiceSet(c.Selected)

	hits := 0
	for k := range selected {
		if _, ok := correct[k]; !ok {
			return GradeOutcome{}
		}
		hits++
	}
	if hits == len(correct) && len(correct) > 0 {
		return GradeOutcome{Correct: true}
	}
	if !s.allowPartial {
		return GradeOutcome{}
	}
	return GradeOutcome{Partial: partial(hits, len(correct))}
}

type textStrategy struct{ maxEdit int }

func (s textStrategy) grade(key model.AnswerKey, v model.AnswerPayload) GradeOutcome {
	t := v.(model.TextPayload)
	resp := normalizeText(t.Text, key.CaseSensitive)
	best := -1
	for _, k := range key.Texts {
		want := normalizeText(k, key.CaseSensitive)
		if resp == want {
			return GradeOutcome{Correct: true}
		}
		if s.maxEdit > 0 {
			if d := levenshtein(resp, want); best < 0 || d < best {
				best = d
			}
		}
	}
	if best > 0 && best <= s.maxEdit {
		half := 50.0
		return GradeOutcome{Partial: &half, Feedback: "close match"}
	}
	return GradeOutcome{}
}

type numericStrategy struct{}

func (numericStrategy) grade(key model.AnswerKey, v model.AnswerPayload) GradeOutcome {
	n := v.(model.NumericPayload)
	if key.Numeric == nil {
		return GradeOutcome{NeedsManual: true, Feedback: "no numeric key"}
	}
	tol := math.Abs(key.Tolerance)
	return GradeOutcome{Correct: math.Abs(n.Value-*key.Numeric) <= tol}
}

type orderingStrategy struct{}

func (orderingStrategy) grade(key model.AnswerKey, v model.AnswerPayload) GradeOutcome {
	o := v.(model.OrderingPayload)
	if len(key.Sequence) == 0 {
		return GradeOutcome{}
	}
	hits := 0
	for i, item := range key.Sequence {
		if i < len(o.Sequence) && o.Sequence[i] == item {
			hits++
		}
	}
	if hits == len(key.Sequence) && len(o.Sequence) == len(key.Sequence) {
		return GradeOutcome{Correct: true}
	}
	return GradeOutcome{Partial: partial(hits, len(key.Sequence))}
}

type matchingStrategy struct{}

func (matchingStrategy) grade(key model.AnswerKey, v model.AnswerPayload) GradeOutcome {
	m := v.(model.MatchingPayload)
	if len(key.Pairs) == 0 {
		return GradeOutcome{}
	}
	hits := 0
	for left, right := range key.Pairs {
		if got, ok := m.Pairs[left]; ok && got == right {
			hits++
		}
	}
	if hits == len(key.Pairs) && len(m.Pairs) == len(key.Pairs) {
		return GradeOutcome{Correct: true}
	}
	return GradeOutcome{Partial: partial(hits, len(key.Pairs))}
}

func sameChoice(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func choiceSet(in []string) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for _, s := range in {
		out[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	return out
}

// normalizeText drops punctuation and collapses whitespace.
func normalizeText(s string, caseSensitive bool) string {
	out := make([]rune, 0, len(s))
	space := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			space = true
		case unicode.IsPunct(r):
		default:
			if space && len(out) > 0 {
				out = append(out, ' ')
			}
			space = false
			if !caseSensitive {
				r = unicode.ToLower(r)
			}
			out = append(out, r)
		}
	}
	return string(out)
}

func levenshtein(a, b string) int {
	ar, br := []rune(a), []rune(b)
	if len(ar) == 0 {
		return len(br)
	}
	if len(br) == 0 {
		return len(ar)
	}
	dp := make([]int, len(br)+1)
	for j := range dp {
		dp[j] = j
	}
	for i := 1; i <= len(ar); i++ {
		prev := dp[0]
		dp[0] = i
		for j := 1; j <= len(br); j++ {
			tmp := dp[j]
			cost := 1
			if ar[i-1] == br[j-1] {
				cost = 0
			}
			dp[j] = min(dp[j]+1, dp[j-1]+1, prev+cost)
			prev = tmp
		}
	}
	return dp[len(br)]
}
