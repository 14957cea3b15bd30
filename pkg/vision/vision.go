// Package vision abstracts the model backends that look at a frame and
// describe, in text, whether people are in it.
package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrRateLimited  = errors.New("vision backend rate limited")
	ErrInvalidImage = errors.New("invalid image data")
	ErrEmptyReply   = errors.New("vision backend returned no content")
)

const HumanDetectionPrompt = `You are the safety observer for a crane work zone.
Look at this camera frame and count every person visible in or near the crane path.
Respond with ONLY a JSON object in exactly this shape:
{"humanDetected": true|false, "humanCount": <integer>, "confidence": <0-100>, "details": "<short description>"}
If no person is visible, use humanDetected false and humanCount 0.`

type Analyzer interface {
	AnalyzeImage(ctx context.Context, img Image, prompt string) (string, error)
	Name() string
}

type Image struct {
	MimeType string
	Data     []byte
}

// ParseDataURL accepts a base64 data URL or bare base64 (assumed JPEG).
func ParseDataURL(s string) (Image, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Image{}, fmt.Errorf("%w: empty", ErrInvalidImage)
	}

	mimeType := "image/jpeg"
	payload := s
	if strings.HasPrefix(s, "data:") {
		header, data, ok := strings.Cut(s[len("data:"):], ",")
		if !ok || !strings.HasSuffix(header, ";base64") {
			return Image{}, fmt.Errorf("%w: not a base64 data url", ErrInvalidImage)
		}
		mimeType = strings.TrimSuffix(header, ";base64")
		payload = data
	}

	if !strings.HasPrefix(mimeType, "image/") {
		return Image{}, fmt.Errorf("%w: unsupported media type %q", ErrInvalidImage, mimeType)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if len(data) == 0 {
		return Image{}, fmt.Errorf("%w: empty", ErrInvalidImage)
	}

	return Image{MimeType: mimeType, Data: data}, nil
}

func (i Image) Base64() string {
	return base64.StdEncoding.EncodeToString(i.Data)
}

func (i Image) DataURL() string {
	return "data:" + i.MimeType + ";base64," + i.Base64()
}

// Format is the subtype, e.g. "jpeg" for image/jpeg.
func (i Image) Format() string {
	return strings.TrimPrefix(i.MimeType, "image/")
}

// Stub answers without looking at the image. It keeps the pipeline exercisable
// without model credentials.
type Stub struct{}

func (Stub) Name() string { return "stub" }

func (Stub) AnalyzeImage(context.Context, Image, string) (string, error) {
	return `{"humanDetected":false,"humanCount":0,"confidence":0,"details":"Stub detector active. This is a dummy response."}`, nil
}
