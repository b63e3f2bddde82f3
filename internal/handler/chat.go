package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/wicaksn/koperasi-engine/internal/domain"
	"github.com/wicaksn/koperasi-engine/internal/service"
	"github.com/wicaksn/koperasi-engine/pkg/response"
)

type ChatHandler struct {
	service   *service.ChatService
	validator *validator.Validate
}

func NewChatHandler(service *service.ChatService) *ChatHandler {
	return &ChatHandler{
		service:   service,
		validator: validator.New(),
	}
}

// GetMessages handles GET /chats/{chatId}/messages?before=<rfc3339>&before_id=<uuid>&limit=<n>.
// Without a cursor it returns the newest page. before_id disambiguates pages
// that split a run of equal timestamps; clients pass the id of the oldest
// message they already hold.
func (h *ChatHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	chatID := mux.Vars(r)["chatId"]

	before := time.Now()
	if raw := r.URL.Query().Get("before"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.BadRequest(w, "before must be an RFC3339 timestamp", err)
			return
		}
		before = parsed
	}

	beforeID := domain.MaxMessageID
	if raw := r.URL.Query().Get("before_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(w, "before_id must be a UUID", err)
			return
		}
		beforeID = parsed
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			response.BadRequest(w, "limit must be an integer", err)
			return
		}
		limit = parsed
	}

	page, err := h.service.History(r.Context(), chatID, before, beforeID, limit)
	if err != nil {
		writeBusinessError(w, err)
		return
	}

	response.Success(w, page)
}

// GetMessage handles GET /chats/{chatId}/messages/{messageId}.
func (h *ChatHandler) GetMessage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	chatID := vars["chatId"]

	messageID, err := uuid.Parse(vars["messageId"])
	if err != nil {
		response.BadRequest(w, "messageId must be a UUID", err)
		return
	}

	msg, err := h.service.GetMessage(r.Context(), chatID, messageID)
	if err != nil {
		writeBusinessError(w, err)
		return
	}

	response.Success(w, msg)
}

// SendMessage handles POST /chats/{chatId}/messages: persists the message
// and pushes it to subscribers.
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	chatID := mux.Vars(r)["chatId"]

	var request domain.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		response.BadRequest(w, "invalid request body", err)
		return
	}
	if err := h.validator.Struct(&request); err != nil {
		response.BadRequest(w, "validation failed", err)
		return
	}
	if request.Body == "" && request.FileRef == nil {
		response.BadRequest(w, "message needs a body or a file reference", nil)
		return
	}

	msg, err := h.service.Send(r.Context(), chatID, &request)
	if err != nil {
		writeBusinessError(w, err)
		return
	}

	response.Created(w, msg)
}
