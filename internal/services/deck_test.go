package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"slidecast-backend/internal/models"
)

func TestSlidesFromPages(t *testing.T) {
	pages := []string{
		"Plate Tectonics\nAn overview of continental drift",
		"",
		"Subduction Zones\nWhere plates collide",
	}

	slides := slidesFromPages(pages)
	if len(slides) != 3 {
		t.Fatalf("got %d slides, want 3", len(slides))
	}

	if slides[0].Position != 0 || slides[0].Title != "Plate Tectonics" {
		t.Fatalf("unexpected first slide: %+v", slides[0])
	}
	if slides[0].Body != pages[0] {
		t.Fatalf("slide body should carry the page text")
	}
	if slides[0].DeckPage == nil || *slides[0].DeckPage != 1 {
		t.Fatalf("deck pages are 1-based, got %v", slides[0].DeckPage)
	}

	// Image-only pages still become slides, with a fallback title.
	if slides[1].Title != "Slide 2" || slides[1].Body != "" {
		t.Fatalf("unexpected empty-page slide: %+v", slides[1])
	}
	if slides[2].Position != 2 || *slides[2].DeckPage != 3 {
		t.Fatalf("unexpected third slide: %+v", slides[2])
	}
}

func TestPageTitle(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"first line", "Heading\nbody text", "Heading"},
		{"single line", "Just one line", "Just one line"},
		{"empty", "", ""},
		{"surrounding space", "  Heading  \nbody", "Heading"},
		{"long line truncated", strings.Repeat("a", 100), strings.Repeat("a", 80)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := pageTitle(tc.text); got != tc.want {
				t.Errorf("pageTitle(%q) = %q, want %q", tc.text, got, tc.want)
			}
		})
	}
}

func TestNormalizePageText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "windows line endings",
			in:   "one\r\ntwo\r",
			want: "one\ntwo",
		},
		{
			name: "collapses blank runs",
			in:   "one\n\n\n\ntwo",
			want: "one\n\ntwo",
		},
		{
			name: "trims line and outer space",
			in:   "  one  \n two \n",
			want: "one\ntwo",
		},
		{
			name: "empty",
			in:   "",
			want: "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := normalizePageText(tc.in); got != tc.want {
				t.Errorf("normalizePageText(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestReplaceFromPDFRefusesActivePresentation(t *testing.T) {
	svc := NewDeckService(nil, t.TempDir())
	pres := &models.Presentation{ID: uuid.New(), IsActive: true}

	_, err := svc.ReplaceFromPDF(context.Background(), pres, strings.NewReader("%PDF-1.4"))

	var ise *InvalidStateError
	if !errors.As(err, &ise) {
		t.Fatalf("expected InvalidStateError, got %v", err)
	}
}

func TestReplaceFromPDFRejectsBrokenFile(t *testing.T) {
	svc := NewDeckService(nil, t.TempDir())
	pres := &models.Presentation{ID: uuid.New()}

	_, err := svc.ReplaceFromPDF(context.Background(), pres, strings.NewReader("this is not a pdf"))

	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if ve.Fields["deck"] == "" {
		t.Fatalf("validation error should name the deck field, got %+v", ve.Fields)
	}
}
