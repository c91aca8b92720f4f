package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"slidecast-backend/internal/models"
	"slidecast-backend/internal/repository"
)

// DeckService turns an uploaded PDF deck into slide rows, one slide per
// page. The page text becomes the slide body so clients without the file
// can still render something, and the page number is kept so clients with
// the file can show the real page.
type DeckService struct {
	slideRepo   *repository.SlideRepo
	storagePath string
}

func NewDeckService(slideRepo *repository.SlideRepo, storagePath string) *DeckService {
	return &DeckService{
		slideRepo:   slideRepo,
		storagePath: storagePath,
	}
}

// ReplaceFromPDF stores the uploaded file and swaps the presentation's deck
// for the file's pages. Replacing the deck of an active presentation is
// refused: slide indexes would shift under the audience mid-show.
func (s *DeckService) ReplaceFromPDF(ctx context.Context, pres *models.Presentation, upload io.Reader) ([]models.Slide, error) {
	if pres.IsActive {
		return nil, &InvalidStateError{Message: "Stop the presentation before replacing its deck"}
	}

	path, err := s.saveUpload(pres, upload)
	if err != nil {
		return nil, err
	}

	pages, err := extractPages(path)
	if err != nil {
		os.Remove(path)
		return nil, &ValidationError{Fields: map[string]string{"deck": err.Error()}}
	}
	if len(pages) == 0 {
		os.Remove(path)
		return nil, &ValidationError{Fields: map[string]string{"deck": "PDF has no pages"}}
	}

	slides := slidesFromPages(pages)
	if err := s.slideRepo.ReplaceAll(ctx, pres.ID, slides); err != nil {
		return nil, fmt.Errorf("failed to replace deck: %w", err)
	}
	return slides, nil
}

func (s *DeckService) saveUpload(pres *models.Presentation, upload io.Reader) (string, error) {
	if err := os.MkdirAll(s.storagePath, 0o755); err != nil {
		return "", fmt.Errorf("failed to create storage directory: %w", err)
	}

	path := filepath.Join(s.storagePath, pres.ID.String()+".pdf")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to store deck file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, upload); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to store deck file: %w", err)
	}
	return path, nil
}

// extractPages returns one text per page, empty string for pages whose text
// cannot be extracted. Image-only pages still become slides; they just have
// no body.
func extractPages(path string) ([]string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not read PDF: %v", err)
	}
	defer f.Close()

	totalPage := reader.NumPage()
	pages := make([]string, 0, totalPage)
	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}

		content, err := page.GetPlainText(nil)
		if err != nil {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, normalizePageText(content))
	}
	return pages, nil
}

// slidesFromPages maps page texts onto slide rows. The first line of a page
// serves as the slide title, falling back to "Slide N" for pages without
// text.
func slidesFromPages(pages []string) []models.Slide {
	slides := make([]models.Slide, len(pages))
	for i, text := range pages {
		pageNum := i + 1
		title := pageTitle(text)
		if title == "" {
			title = fmt.Sprintf("Slide %d", pageNum)
		}
		deckPage := pageNum
		slides[i] = models.Slide{
			Position: i,
			Title:    title,
			Body:     text,
			DeckPage: &deckPage,
		}
	}
	return slides
}

func pageTitle(text string) string {
	line, _, _ := strings.Cut(text, "\n")
	line = strings.TrimSpace(line)
	if len(line) > 80 {
		line = strings.TrimSpace(line[:80])
	}
	return line
}

func normalizePageText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	buf := bytes.Buffer{}

	emptyCount := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			emptyCount++
			if emptyCount > 1 {
				continue
			}
			buf.WriteString("\n")
			continue
		}
		emptyCount = 0
		buf.WriteString(trimmed)
		buf.WriteString("\n")
	}

	return strings.TrimSpace(buf.String())
}
