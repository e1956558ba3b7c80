package client

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizroom/internal/domain"
)

const sampleQuiz = `
questions:
  - text: "Capital of France?"
    answer: Paris
    category: geography
  - text: "   "
  - text: Draw a cat
    kind: drawing
`

func TestParseQuestions(t *testing.T) {
	questions, err := ParseQuestions([]byte(sampleQuiz))
	require.NoError(t, err)
	require.Len(t, questions, 2)

	assert.Equal(t, domain.Question{
		Text:     "Capital of France?",
		Answer:   "Paris",
		Kind:     domain.QuestionText,
		Category: "geography",
	}, questions[0])
	assert.Equal(t, domain.QuestionDrawing, questions[1].Kind)
}

func TestParseQuestions_Empty(t *testing.T) {
	_, err := ParseQuestions([]byte("questions: []"))
	assert.ErrorIs(t, err, domain.ErrNoQuestions)

	_, err = ParseQuestions([]byte("questions: ["))
	assert.Error(t, err)
}

func TestLoadQuestions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quiz.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleQuiz), 0o600))

	questions, err := LoadQuestions(path)
	require.NoError(t, err)
	assert.Len(t, questions, 2)

	_, err = LoadQuestions(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
