package client

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"quizroom/internal/domain"
)

// questionFile is the on-disk layout of a quiz
type questionFile struct {
	Questions []domain.Question `yaml:"questions"`
}

// LoadQuestions reads a YAML quiz for the host. Blank questions are skipped.
func LoadQuestions(path string) ([]domain.Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read questions: %w", err)
	}
	return ParseQuestions(data)
}

// ParseQuestions decodes a YAML quiz
func ParseQuestions(data []byte) ([]domain.Question, error) {
	var file questionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse questions: %w", err)
	}

	questions := make([]domain.Question, 0, len(file.Questions))
	for _, q := range file.Questions {
		q.Text = strings.TrimSpace(q.Text)
		if q.Text == "" {
			continue
		}
		if q.Kind == "" {
			q.Kind = domain.QuestionText
		}
		questions = append(questions, q)
	}
	if len(questions) == 0 {
		return nil, domain.ErrNoQuestions
	}
	return questions, nil
}
