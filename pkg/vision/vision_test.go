package vision

import (
	"context"
	"errors"
	"testing"
)

func TestParseDataURL(t *testing.T) {
	img, err := ParseDataURL("data:image/png;base64,aGVsbG8=")
	if err != nil {
		t.Fatalf("ParseDataURL() error = %v", err)
	}
	if img.MimeType != "image/png" || string(img.Data) != "hello" || img.Format() != "png" {
		t.Errorf("ParseDataURL() = %+v", img)
	}
	if img.DataURL() != "data:image/png;base64,aGVsbG8=" {
		t.Errorf("DataURL() = %q", img.DataURL())
	}

	bare, err := ParseDataURL("aGVsbG8=")
	if err != nil || bare.MimeType != "image/jpeg" {
		t.Errorf("bare base64 = %+v, %v", bare, err)
	}
}

func TestParseDataURLInvalid(t *testing.T) {
	for _, in := range []string{
		"",
		"data:image/jpeg,notbase64",
		"data:text/plain;base64,aGVsbG8=",
		"data:image/jpeg;base64,***",
	} {
		if _, err := ParseDataURL(in); !errors.Is(err, ErrInvalidImage) {
			t.Errorf("ParseDataURL(%q) error = %v, want ErrInvalidImage", in, err)
		}
	}
}

func TestStub(t *testing.T) {
	text, err := Stub{}.AnalyzeImage(context.Background(), Image{}, HumanDetectionPrompt)
	if err != nil || text == "" {
		t.Fatalf("Stub.AnalyzeImage() = %q, %v", text, err)
	}
}
