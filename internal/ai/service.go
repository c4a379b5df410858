// Package ai produces resume feedback and section rewrites from a language
// model.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
)

var (
	ErrUnknownSection = errors.New("unknown resume section")
	ErrInvalidOutput  = errors.New("model returned invalid JSON")
)

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type ATSScore struct {
	Score          int      `json:"score"`
	Strengths      []string `json:"strengths"`
	AreasToImprove []string `json:"areasToImprove"`
	AISuggestions  []string `json:"aiSuggestions"`
}

type Service struct {
	gen Generator
}

func NewService(gen Generator) *Service {
	return &Service{gen: gen}
}

// ScoreATS rates a resume for a software engineering role. resume is the
// JSON document the model is asked to read.
func (s *Service) ScoreATS(ctx context.Context, resume json.RawMessage) (ATSScore, error) {
	raw, err := s.generateJSON(ctx, atsPrompt(resume))
	if err != nil {
		return ATSScore{}, err
	}
	var score ATSScore
	if err := json.Unmarshal(raw, &score); err != nil {
		log.Printf("ai: decode ats score: %v", err)
		return ATSScore{}, ErrInvalidOutput
	}
	if score.Score < 0 {
		score.Score = 0
	}
	if score.Score > 100 {
		score.Score = 100
	}
	if score.Strengths == nil {
		score.Strengths = []string{}
	}
	if score.AreasToImprove == nil {
		score.AreasToImprove = []string{}
	}
	if score.AISuggestions == nil {
		score.AISuggestions = []string{}
	}
	return score, nil
}

// SuggestSection rewrites one entry of a resume section following the
// user's instruction. The result keeps the entry's shape.
func (s *Service) SuggestSection(ctx context.Context, section string, data json.RawMessage, instruction string) (json.RawMessage, error) {
	def, ok := sections[section]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSection, section)
	}
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	raw, err := s.generateJSON(ctx, sectionPrompt(def, data, instruction))
	if err != nil {
		return nil, err
	}
	var object map[string]any
	if err := json.Unmarshal(raw, &object); err != nil {
		log.Printf("ai: decode %s suggestion: %v", section, err)
		return nil, ErrInvalidOutput
	}
	return raw, nil
}

// Sections lists the section names SuggestSection accepts.
func Sections() []string {
	names := make([]string, 0, len(sectionOrder))
	names = append(names, sectionOrder...)
	return names
}

func (s *Service) generateJSON(ctx context.Context, prompt string) (json.RawMessage, error) {
	text, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	raw := stripFences(text)
	if !json.Valid([]byte(raw)) {
		log.Printf("ai: invalid model output: %.200s", raw)
		return nil, ErrInvalidOutput
	}
	return json.RawMessage(raw), nil
}

var fencePattern = regexp.MustCompile("^```(?:json)?\\s*|\\s*```$")

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimSpace(fencePattern.ReplaceAllString(text, ""))
	}
	return text
}
