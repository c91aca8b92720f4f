package handlers

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"slidecast-backend/internal/middleware"
	"slidecast-backend/internal/models"
	"slidecast-backend/internal/realtime"
	"slidecast-backend/internal/repository"
	"slidecast-backend/internal/services"
)

const maxDeckBytes = 25 << 20

type PresentationHandler struct {
	presRepo       *repository.PresentationRepo
	slideRepo      *repository.SlideRepo
	attendanceRepo *repository.AttendanceRepo
	deck           *services.DeckService
	registry       *realtime.Registry
}

func NewPresentationHandler(
	presRepo *repository.PresentationRepo,
	slideRepo *repository.SlideRepo,
	attendanceRepo *repository.AttendanceRepo,
	deck *services.DeckService,
	registry *realtime.Registry,
) *PresentationHandler {
	return &PresentationHandler{
		presRepo:       presRepo,
		slideRepo:      slideRepo,
		attendanceRepo: attendanceRepo,
		deck:           deck,
		registry:       registry,
	}
}

func (h *PresentationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePresentationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"title": "Title is required"}, r))
		return
	}

	pres := &models.Presentation{
		PresenterID: middleware.GetUserID(r.Context()),
		Title:       req.Title,
		ExpiresAt:   req.ExpiresAt,
	}

	// Codes collide rarely; retry a few times before giving up.
	var err error
	for attempt := 0; attempt < 5; attempt++ {
		pres.AccessCode = newAccessCode()
		err = h.presRepo.Create(r.Context(), pres)
		if !errors.Is(err, models.ErrDuplicateAccessCode) {
			break
		}
	}
	if err != nil {
		log.Printf("failed to create presentation: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create presentation", r))
		return
	}

	writeJSON(w, http.StatusCreated, pres)
}

func (h *PresentationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	presentations, err := h.presRepo.ListByPresenter(r.Context(), userID)
	if err != nil {
		log.Printf("failed to list presentations for %s: %v", userID, err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list presentations", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"presentations": presentations,
		"total":         len(presentations),
	})
}

func (h *PresentationHandler) Get(w http.ResponseWriter, r *http.Request) {
	pres, ok := h.authorize(w, r)
	if !ok {
		return
	}

	slides, err := h.slideRepo.ListByPresentation(r.Context(), pres.ID)
	if err != nil {
		log.Printf("failed to list slides for %s: %v", pres.ID, err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load slides", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"presentation":      pres,
		"slides":            slides,
		"participant_count": h.registry.CountFor(pres.ID),
	})
}

func (h *PresentationHandler) Update(w http.ResponseWriter, r *http.Request) {
	pres, ok := h.authorize(w, r)
	if !ok {
		return
	}

	var req models.UpdatePresentationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
				map[string]string{"title": "Title cannot be empty"}, r))
			return
		}
		pres.Title = title
	}
	if req.ExpiresAt != nil {
		pres.ExpiresAt = req.ExpiresAt
	}

	if err := h.presRepo.Update(r.Context(), pres); err != nil {
		log.Printf("failed to update presentation %s: %v", pres.ID, err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to update presentation", r))
		return
	}

	writeJSON(w, http.StatusOK, pres)
}

func (h *PresentationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	pres, ok := h.authorize(w, r)
	if !ok {
		return
	}

	if pres.IsActive {
		writeJSON(w, http.StatusConflict, errorResp("INVALID_STATE", "Stop the presentation before deleting it", r))
		return
	}

	if err := h.presRepo.Delete(r.Context(), pres.ID); err != nil {
		log.Printf("failed to delete presentation %s: %v", pres.ID, err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to delete presentation", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Presentation deleted"})
}

// RotateCode swaps the access code so links shared too widely stop working.
func (h *PresentationHandler) RotateCode(w http.ResponseWriter, r *http.Request) {
	pres, ok := h.authorize(w, r)
	if !ok {
		return
	}

	var err error
	for attempt := 0; attempt < 5; attempt++ {
		pres.AccessCode = newAccessCode()
		err = h.presRepo.UpdateAccessCode(r.Context(), pres.ID, pres.AccessCode)
		if !errors.Is(err, models.ErrDuplicateAccessCode) {
			break
		}
	}
	if err != nil {
		log.Printf("failed to rotate access code for %s: %v", pres.ID, err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to rotate access code", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"access_code": pres.AccessCode})
}

func (h *PresentationHandler) UploadDeck(w http.ResponseWriter, r *http.Request) {
	pres, ok := h.authorize(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxDeckBytes)
	if err := r.ParseMultipartForm(maxDeckBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Deck upload too large or malformed", r))
		return
	}

	file, header, err := r.FormFile("deck")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"deck": "A deck file is required"}, r))
		return
	}
	defer file.Close()

	if strings.ToLower(filepath.Ext(header.Filename)) != ".pdf" {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"deck": "Only PDF decks are supported"}, r))
		return
	}

	slides, err := h.deck.ReplaceFromPDF(r.Context(), pres, file)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"slides": slides,
		"total":  len(slides),
	})
}

func (h *PresentationHandler) ListSlides(w http.ResponseWriter, r *http.Request) {
	pres, ok := h.authorize(w, r)
	if !ok {
		return
	}

	slides, err := h.slideRepo.ListByPresentation(r.Context(), pres.ID)
	if err != nil {
		log.Printf("failed to list slides for %s: %v", pres.ID, err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load slides", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"slides": slides,
		"total":  len(slides),
	})
}

// CreateSlide appends a hand-written slide to the deck. Appending is safe
// while live; it only extends the valid index range.
func (h *PresentationHandler) CreateSlide(w http.ResponseWriter, r *http.Request) {
	pres, ok := h.authorize(w, r)
	if !ok {
		return
	}

	var req models.CreateSlideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"title": "Title is required"}, r))
		return
	}

	slide := &models.Slide{
		PresentationID: pres.ID,
		Title:          req.Title,
		Body:           req.Body,
	}
	if err := h.slideRepo.Create(r.Context(), slide); err != nil {
		log.Printf("failed to create slide for %s: %v", pres.ID, err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create slide", r))
		return
	}

	writeJSON(w, http.StatusCreated, slide)
}

func (h *PresentationHandler) DeleteSlide(w http.ResponseWriter, r *http.Request) {
	pres, ok := h.authorize(w, r)
	if !ok {
		return
	}

	if pres.IsActive {
		writeJSON(w, http.StatusConflict, errorResp("INVALID_STATE", "Stop the presentation before removing slides", r))
		return
	}

	slideID, err := uuid.Parse(chi.URLParam(r, "slideID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid slide ID", r))
		return
	}

	if err := h.slideRepo.Delete(r.Context(), pres.ID, slideID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Slide not found", r))
			return
		}
		log.Printf("failed to delete slide %s: %v", slideID, err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to delete slide", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Slide deleted"})
}

// Participants reports who is attached right now, straight from memory.
func (h *PresentationHandler) Participants(w http.ResponseWriter, r *http.Request) {
	pres, ok := h.authorize(w, r)
	if !ok {
		return
	}

	sessions := h.registry.ListFor(pres.ID)
	participants := make([]map[string]interface{}, 0, len(sessions))
	for _, sess := range sessions {
		participants = append(participants, map[string]interface{}{
			"display_name":  sess.DisplayName,
			"anonymous":     sess.Anonymous,
			"slide_index":   sess.SlideIndex,
			"joined_at":     sess.JoinedAt,
			"last_activity": sess.LastActivity,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"participants": participants,
		"total":        len(participants),
	})
}

// Attendance returns the recorded join/leave history plus the peak distinct
// attendance, for after-the-fact reporting.
func (h *PresentationHandler) Attendance(w http.ResponseWriter, r *http.Request) {
	pres, ok := h.authorize(w, r)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events, err := h.attendanceRepo.ListByPresentation(r.Context(), pres.ID, limit)
	if err != nil {
		log.Printf("failed to list attendance for %s: %v", pres.ID, err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load attendance", r))
		return
	}

	peak, err := h.attendanceRepo.PeakAttendance(r.Context(), pres.ID)
	if err != nil {
		log.Printf("failed to compute peak attendance for %s: %v", pres.ID, err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load attendance", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"peak":   peak,
	})
}

// authorize loads the presentation in the URL and verifies the caller owns
// it.
func (h *PresentationHandler) authorize(w http.ResponseWriter, r *http.Request) (*models.Presentation, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid presentation ID", r))
		return nil, false
	}

	pres, err := h.presRepo.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Presentation not found", r))
		return nil, false
	}
	if pres.PresenterID != middleware.GetUserID(r.Context()) {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Access denied", r))
		return nil, false
	}
	return pres, true
}

// Access codes use an alphabet without 0/O/1/I so they survive being read
// aloud in a lecture hall.
const accessCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func newAccessCode() string {
	b := make([]byte, 6)
	rand.Read(b)
	for i := range b {
		b[i] = accessCodeAlphabet[int(b[i])%len(accessCodeAlphabet)]
	}
	return string(b)
}
