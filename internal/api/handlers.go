package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"sectorbot/internal/announce"
	"sectorbot/internal/platform"
	logx "sectorbot/pkg/logx"
)

// announcementRequest mirrors the JSON contract the web systems post.
// Exactly one of channel_id/guild_id selects the destination; message_type is
// required with guild_id and only used for styling with channel_id.
type announcementRequest struct {
	MessageType string `json:"message_type"`
	Title       string `json:"title" validate:"required"`
	Body        string `json:"body" validate:"required"`
	ChannelID   int64  `json:"channel_id"`
	GuildID     int64  `json:"guild_id"`

	AuthorName          string `json:"author_name"`
	AuthorRating        string `json:"author_rating"`
	AuthorStaffPosition string `json:"author_staff_position"`
	BannerURL           string `json:"banner_url"`
}

type announcementResponse struct {
	Status    string `json:"status"`
	ChannelID int64  `json:"channel_id"`
	MessageID int64  `json:"message_id"`
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) handleAnnouncements(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
		return
	}

	reqID := uuid.NewString()
	w.Header().Set("X-Request-ID", reqID)
	log := s.log.With(logx.String("req_id", reqID))

	var req announcementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("malformed announcement body", logx.Err(err))
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "request body must be valid JSON"})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		log.Warn("announcement body failed validation", logx.Err(err))
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "title and body are required"})
		return
	}

	res, err := s.router.Route(r.Context(), announce.Request{
		ChannelID: req.ChannelID,
		GuildID:   req.GuildID,
		Type:      strings.ToLower(strings.TrimSpace(req.MessageType)),
		Title:     req.Title,
		Body:      req.Body,
		Author:    formatAuthor(req),
		ImageURL:  req.BannerURL,
	})
	if err != nil {
		status := statusForRouteError(err)
		log.Warn("announcement rejected", logx.Int("status", status), logx.Err(err))
		writeJSON(w, status, errorBody{Error: err.Error()})
		return
	}

	log.Info("announcement posted",
		logx.Int64("channel", res.Ref.ChannelID),
		logx.Int64("message", res.Ref.MessageID))
	writeJSON(w, http.StatusOK, announcementResponse{
		Status:    "ok",
		ChannelID: res.Ref.ChannelID,
		MessageID: res.Ref.MessageID,
	})
}

func statusForRouteError(err error) int {
	switch {
	case errors.Is(err, announce.ErrAmbiguousDestination),
		errors.Is(err, announce.ErrMissingDestination),
		errors.Is(err, announce.ErrUnresolvedDestination):
		return http.StatusBadRequest
	default:
		var sendErr *platform.SendError
		if errors.As(err, &sendErr) {
			return http.StatusBadGateway
		}
		return http.StatusInternalServerError
	}
}

// formatAuthor builds the embed footer line: "Name (rating) [position]".
func formatAuthor(req announcementRequest) string {
	parts := make([]string, 0, 3)
	if req.AuthorName != "" {
		parts = append(parts, req.AuthorName)
	}
	if req.AuthorRating != "" {
		parts = append(parts, "("+req.AuthorRating+")")
	}
	if req.AuthorStaffPosition != "" {
		parts = append(parts, "["+req.AuthorStaffPosition+"]")
	}
	return strings.Join(parts, " ")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
