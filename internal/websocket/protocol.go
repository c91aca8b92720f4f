package websocket

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"slidecast-backend/internal/realtime"
)

// opTimeout bounds the store work behind a single inbound frame.
const opTimeout = 10 * time.Second

// Inbound frame types.
const (
	frameJoin         = "join"
	frameLeave        = "leave"
	frameControlStart = "control.start"
	frameControlStop  = "control.stop"
	frameControlNext  = "control.next"
	frameControlPrev  = "control.prev"
	frameControlGoto  = "control.goto"
	frameSlideView    = "slide.view"
	frameReaction     = "reaction"
	framePing         = "ping"
)

// Frame is one inbound client message. The id is an opaque client-chosen
// string echoed back on the ack so the client can match responses to
// requests.
type Frame struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type joinPayload struct {
	AccessCode  string `json:"access_code"`
	DisplayName string `json:"display_name"`
	SessionID   string `json:"session_id"`
}

type leavePayload struct {
	SessionID string `json:"session_id"`
}

type controlPayload struct {
	PresentationID uuid.UUID `json:"presentation_id"`
	SlideIndex     int       `json:"slide_index"`
}

type slideViewPayload struct {
	SlideIndex int `json:"slide_index"`
}

type reactPayload struct {
	Emoji string `json:"emoji"`
}

// ackPayload answers one inbound frame. Failures carry the stable reason
// code clients branch on plus a human-readable message; successes carry
// whatever state the operation produced.
type ackPayload struct {
	Success           bool                    `json:"success"`
	Reason            realtime.Code           `json:"reason,omitempty"`
	Message           string                  `json:"message,omitempty"`
	SessionID         string                  `json:"session_id,omitempty"`
	Resumed           bool                    `json:"resumed,omitempty"`
	Presentation      *realtime.StateSnapshot `json:"presentation,omitempty"`
	IsActive          *bool                   `json:"is_active,omitempty"`
	CurrentSlideIndex *int                    `json:"current_slide_index,omitempty"`
	TotalSlides       *int                    `json:"total_slides,omitempty"`
}

// dispatch handles one inbound frame end to end and always answers it with
// exactly one ack. A failure stays inside the ack; the connection survives
// every bad frame. Even a panic in a handler is contained here, surfaced as
// Unavailable, so one client's poison frame cannot take the process down.
func (h *Hub) dispatch(c *Client, raw []byte) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		h.ackError(c, "", &realtime.Error{Code: realtime.CodeBadRequest, Message: "malformed frame"})
		return
	}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("panic handling %s frame on %s: %v", frame.Type, c.id, r)
			h.ackError(c, frame.ID, &realtime.Error{Code: realtime.CodeUnavailable, Message: "internal error"})
		}
	}()

	// Any frame proves the client is alive.
	h.presence.Touch(c.id)

	// Control frames run on their own context, not the connection's: a
	// presenter whose socket dies mid-operation still gets the transition
	// persisted and broadcast.
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	switch frame.Type {
	case frameJoin:
		h.handleJoin(ctx, c, frame)
	case frameLeave:
		h.handleLeave(c, frame)
	case frameControlStart, frameControlStop, frameControlNext, frameControlPrev, frameControlGoto:
		h.handleControl(ctx, c, frame)
	case frameSlideView:
		h.handleSlideView(ctx, c, frame)
	case frameReaction:
		h.handleReaction(c, frame)
	case framePing:
		h.ack(c, frame.ID, ackPayload{Success: true})
	default:
		h.ackError(c, frame.ID, realtime.Errorf(realtime.CodeBadRequest, "unknown frame type %q", frame.Type))
	}
}

func (h *Hub) handleJoin(ctx context.Context, c *Client, frame Frame) {
	var req joinPayload
	if frame.Payload != nil {
		if err := json.Unmarshal(frame.Payload, &req); err != nil {
			h.ackError(c, frame.ID, &realtime.Error{Code: realtime.CodeBadRequest, Message: "malformed join payload"})
			return
		}
	}

	result, aerr := h.presence.Join(ctx, c, c.identity, realtime.JoinRequest{
		AccessCode:     req.AccessCode,
		DisplayName:    req.DisplayName,
		PriorSessionID: req.SessionID,
	})
	if aerr != nil {
		h.ackError(c, frame.ID, aerr)
		return
	}

	h.ack(c, frame.ID, ackPayload{
		Success:      true,
		SessionID:    result.SessionID,
		Resumed:      result.Resumed,
		Presentation: &result.Snapshot,
	})
}

func (h *Hub) handleLeave(c *Client, frame Frame) {
	var req leavePayload
	if frame.Payload != nil {
		json.Unmarshal(frame.Payload, &req)
	}

	if req.SessionID != "" {
		h.presence.Leave(req.SessionID)
	} else {
		h.presence.LeaveConnection(c.id)
	}
	// Fire-and-forget semantics: leaving something already gone is fine.
	h.ack(c, frame.ID, ackPayload{Success: true})
}

func (h *Hub) handleControl(ctx context.Context, c *Client, frame Frame) {
	if c.identity.Role != realtime.RolePresenter {
		h.ackError(c, frame.ID, &realtime.Error{Code: realtime.CodeForbidden, Message: "control frames require the presenter role"})
		return
	}

	var req controlPayload
	if frame.Payload == nil {
		h.ackError(c, frame.ID, &realtime.Error{Code: realtime.CodeBadRequest, Message: "control payload required"})
		return
	}
	if err := json.Unmarshal(frame.Payload, &req); err != nil {
		h.ackError(c, frame.ID, &realtime.Error{Code: realtime.CodeBadRequest, Message: "malformed control payload"})
		return
	}
	if req.PresentationID == uuid.Nil {
		h.ackError(c, frame.ID, &realtime.Error{Code: realtime.CodeBadRequest, Message: "presentation_id required"})
		return
	}

	var (
		result *realtime.ControlResult
		aerr   *realtime.Error
	)
	switch frame.Type {
	case frameControlStart:
		result, aerr = h.controller.Start(ctx, c.identity.UserID, req.PresentationID)
	case frameControlStop:
		result, aerr = h.controller.Stop(ctx, c.identity.UserID, req.PresentationID)
	case frameControlNext:
		result, aerr = h.controller.Next(ctx, c.identity.UserID, req.PresentationID)
	case frameControlPrev:
		result, aerr = h.controller.Prev(ctx, c.identity.UserID, req.PresentationID)
	case frameControlGoto:
		result, aerr = h.controller.Goto(ctx, c.identity.UserID, req.PresentationID, req.SlideIndex)
	}
	if aerr != nil {
		h.ackError(c, frame.ID, aerr)
		return
	}

	h.ack(c, frame.ID, ackPayload{
		Success:           true,
		IsActive:          &result.IsActive,
		CurrentSlideIndex: &result.CurrentSlideIndex,
		TotalSlides:       &result.TotalSlides,
	})
}

func (h *Hub) handleSlideView(ctx context.Context, c *Client, frame Frame) {
	var req slideViewPayload
	if frame.Payload == nil {
		h.ackError(c, frame.ID, &realtime.Error{Code: realtime.CodeBadRequest, Message: "slide.view payload required"})
		return
	}
	if err := json.Unmarshal(frame.Payload, &req); err != nil {
		h.ackError(c, frame.ID, &realtime.Error{Code: realtime.CodeBadRequest, Message: "malformed slide.view payload"})
		return
	}

	if aerr := h.presence.ViewSlide(ctx, c, req.SlideIndex); aerr != nil {
		h.ackError(c, frame.ID, aerr)
		return
	}
	h.ack(c, frame.ID, ackPayload{Success: true})
}

func (h *Hub) handleReaction(c *Client, frame Frame) {
	var req reactPayload
	if frame.Payload != nil {
		json.Unmarshal(frame.Payload, &req)
	}

	if aerr := h.presence.React(c.id, req.Emoji); aerr != nil {
		h.ackError(c, frame.ID, aerr)
		return
	}
	h.ack(c, frame.ID, ackPayload{Success: true})
}

func (h *Hub) ack(c *Client, frameID string, payload ackPayload) {
	if err := c.Send(realtime.Envelope{Type: "ack", ID: frameID, Payload: payload}); err != nil {
		log.Printf("dropping ack for connection %s: %v", c.id, err)
	}
}

func (h *Hub) ackError(c *Client, frameID string, aerr *realtime.Error) {
	h.ack(c, frameID, ackPayload{Success: false, Reason: aerr.Code, Message: aerr.Message})
}
