package detector

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"CraneGuard/internal/entity"
	"CraneGuard/pkg/jsonutil"
	"github.com/go-playground/validator/v10"
)

type detectionSchema struct {
	HumanDetected *bool    `json:"humanDetected" validate:"required"`
	HumanCount    *float64 `json:"humanCount" validate:"required,gte=0"`
	Confidence    *float64 `json:"confidence" validate:"omitempty,gte=0,lte=100"`
	Details       *string  `json:"details"`
}

var schemaValidator = validator.New()

// Parse runs the two extraction stages over a model payload: locate the first
// well-formed JSON object, then validate it against the detection schema.
func Parse(payload string) (entity.DetectionResult, error) {
	raw, err := jsonutil.LocateObject(payload)
	if err != nil {
		return entity.DetectionResult{}, fmt.Errorf("%w: %v", ErrParse, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	var schema detectionSchema
	if err := dec.Decode(&schema); err != nil {
		return entity.DetectionResult{}, fmt.Errorf("%w: %v", ErrParse, err)
	}

	if err := schemaValidator.Struct(schema); err != nil {
		return entity.DetectionResult{}, fmt.Errorf("%w: %v", ErrParse, err)
	}

	count := *schema.HumanCount
	if count != math.Trunc(count) || count > math.MaxInt32 {
		return entity.DetectionResult{}, fmt.Errorf("%w: humanCount %v is not a count", ErrParse, count)
	}

	result := entity.DetectionResult{
		HumanDetected: *schema.HumanDetected,
		HumanCount:    int(count),
	}
	if schema.Confidence != nil {
		result.Confidence = *schema.Confidence
	}
	if schema.Details != nil {
		result.Details = *schema.Details
	}

	return result, nil
}

// ParseOrDefault never fails: any extraction problem yields the safe default.
func ParseOrDefault(payload string) entity.DetectionResult {
	result, err := Parse(payload)
	if err != nil {
		return entity.SafeDefault()
	}
	return result
}

type messageEnvelope struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Content json.RawMessage `json:"content"`
	Message json.RawMessage `json:"message"`
}

// messagePayload unwraps the text carried by chat-completion style envelopes.
// Bodies that are not envelopes are returned as-is.
func messagePayload(body []byte) string {
	var env messageEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return string(body)
	}

	if len(env.Choices) > 0 && env.Choices[0].Message.Content != "" {
		return env.Choices[0].Message.Content
	}
	if len(env.Candidates) > 0 && len(env.Candidates[0].Content.Parts) > 0 {
		return env.Candidates[0].Content.Parts[0].Text
	}
	for _, field := range []json.RawMessage{env.Content, env.Message} {
		var text string
		if len(field) > 0 && json.Unmarshal(field, &text) == nil && text != "" {
			return text
		}
	}

	return string(body)
}
