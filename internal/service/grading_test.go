package service

import (
	"testing"

	"exam_prep_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snap(qt model.QuestionType, key model.AnswerKey) model.QuestionSnapshot {
	return model.QuestionSnapshot{QuestionID: 1, Type: qt, Points: 1, Weight: 1, AnswerKey: key}
}

func choice(sel ...string) model.Payload {
	return model.NewPayload(model.ChoicePayload{Selected: sel})
}

func TestGradeSingleChoice(t *testing.T) {
	g := NewAnswerGrader()
	s := snap(model.QuestionSingleChoice, model.AnswerKey{Choices: []string{"B"}})

	assert.True(t, g.Grade(s, choice(" b ")).Correct)
	assert.False(t, g.Grade(s, choice("a")).Correct)

	res := g.Grade(s, choice("a", "b"))
	assert.False(t, res.Correct)
	assert.NotEmpty(t, res.Feedback)
}

func TestGradeMultipleChoice(t *testing.T) {
	g := NewAnswerGrader()
	s := snap(model.QuestionMultipleChoice, model.AnswerKey{Choices: []string{"a", "b", "c", "d"}})

	assert.True(t, g.Grade(s, choice("d", "c", "b", "a")).Correct)

	res := g.Grade(s, choice("a"))
	assert.False(t, res.Correct)
	require.NotNil(t, res.Partial)
	assert.Equal(t, 25.0, *res.Partial)

	wrong := g.Grade(s, choice("a", "x"))
	assert.False(t, wrong.Correct)
	assert.Nil(t, wrong.Partial)

	strict := NewAnswerGrader(WithPartialMulti(false))
	assert.Nil(t, strict.Grade(s, choice("a")).Partial)
}

func TestGradeText(t *testing.T) {
	g := NewAnswerGrader()
	s := snap(model.QuestionShortAnswer, model.AnswerKey{Texts: []string{"Photosynthesis"}})

	assert.True(t, g.Grade(s, model.NewPayload(model.TextPayload{Text: "  photosynthesis. "})).Correct)
	assert.False(t, g.Grade(s, model.NewPayload(model.TextPayload{Text: "photosynthesys"})).Correct)

	sensitive := snap(model.QuestionFillBlank, model.AnswerKey{Texts: []string{"Go"}, CaseSensitive: true})
	assert.False(t, g.Grade(sensitive, model.NewPayload(model.TextPayload{Text: "go"})).Correct)
}

func TestGradeTextCloseMatch(t *testing.T) {
	g := NewAnswerGrader(WithMaxEditDistance(1))
	s := snap(model.QuestionShortAnswer, model.AnswerKey{Texts: []string{"photosynthesis"}})

	res := g.Grade(s, model.NewPayload(model.TextPayload{Text: "photosynthesys"}))
	assert.False(t, res.Correct)
	require.NotNil(t, res.Partial)
	assert.Equal(t, 50.0, *res.Partial)

	far := g.Grade(s, model.NewPayload(model.TextPayload{Text: "respiration"}))
	assert.Nil(t, far.Partial)
}

func TestGradeNumeric(t *testing.T) {
	g := NewAnswerGrader()
	want := 9.81
	s := snap(model.QuestionNumeric, model.AnswerKey{Numeric: &want, Tolerance: 0.05})

	assert.True(t, g.Grade(s, model.NewPayload(model.NumericPayload{Value: 9.8})).Correct)
	assert.False(t, g.Grade(s, model.NewPayload(model.NumericPayload{Value: 9.7})).Correct)

	noKey := snap(model.QuestionNumeric, model.AnswerKey{})
	assert.True(t, g.Grade(noKey, model.NewPayload(model.NumericPayload{Value: 1})).NeedsManual)
}

func TestGradeOrdering(t *testing.T) {
	g := NewAnswerGrader()
	s := snap(model.QuestionOrdering, model.AnswerKey{Sequence: []string{"a", "b", "c", "d"}})

	assert.True(t, g.Grade(s, model.NewPayload(model.OrderingPayload{Sequence: []string{"a", "b", "c", "d"}})).Correct)

	res := g.Grade(s, model.NewPayload(model.OrderingPayload{Sequence: []string{"a", "b", "d", "c"}}))
	assert.False(t, res.Correct)
	require.NotNil(t, res.Partial)
	assert.Equal(t, 50.0, *res.Partial)
}

func TestGradeMatching(t *testing.T) {
	g := NewAnswerGrader()
	s := snap(model.QuestionMatching, model.AnswerKey{Pairs: map[string]string{"fr": "Paris", "de": "Berlin"}})

	ok := model.NewPayload(model.MatchingPayload{Pairs: map[string]string{"fr": "Paris", "de": "Berlin"}})
	assert.True(t, g.Grade(s, ok).Correct)

	half := g.Grade(s, model.NewPayload(model.MatchingPayload{Pairs: map[string]string{"fr": "Paris", "de": "Rome"}}))
	require.NotNil(t, half.Partial)
	assert.Equal(t, 50.0, *half.Partial)
}

func TestGradeManualAndUnanswered(t *testing.T) {
	g := NewAnswerGrader()

	essay := snap(model.QuestionEssay, model.AnswerKey{})
	essay.ManualGrading = true
	assert.True(t, g.Grade(essay, model.NewPayload(model.TextPayload{Text: "long answer"})).NeedsManual)
	assert.False(t, g.Grade(essay, model.Payload{}).NeedsManual)

	res := g.Grade(snap(model.QuestionSingleChoice, model.AnswerKey{Choices: []string{"a"}}), model.Payload{})
	assert.Equal(t, GradeOutcome{}, res)
}

func TestGradeKindMismatch(t *testing.T) {
	g := NewAnswerGrader()
	s := snap(model.QuestionSingleChoice, model.AnswerKey{Choices: []string{"a"}})

	res := g.Grade(s, model.NewPayload(model.TextPayload{Text: "a"}))
	assert.False(t, res.Correct)
	assert.NotEmpty(t, res.Feedback)
}

func TestGradeAllCopiesAndKeepsManualVerdicts(t *testing.T) {
	g := NewAnswerGrader()
	s := snap(model.QuestionSingleChoice, model.AnswerKey{Choices: []string{"a"}})

	manual := 80.0
	answers := []model.Answer{
		{QuestionID: 1, Snapshot: s, Response: choice("a")},
		{QuestionID: 2, Snapshot: s, Response: choice("b"), ManuallyGraded: true, PartialScore: &manual},
	}
	graded := GradeAll(g, answers)

	assert.False(t, answers[0].IsCorrect)
	assert.True(t, graded[0].IsCorrect)
	assert.True(t, graded[1].ManuallyGraded)
	assert.Equal(t, 80.0, *graded[1].PartialScore)
}

func TestNormalizeAndLevenshtein(t *testing.T) {
	assert.Equal(t, "hello world", normalizeText("  Hello,   World! ", false))
	assert.Equal(t, "Hello World", normalizeText("Hello World", true))
	assert.Equal(t, 3, levenshtein("kitten", "sitting"))
	assert.Equal(t, 4, levenshtein("", "abcd"))
	assert.Equal(t, 0, levenshtein("same", "same"))
}
