// Package handler exposes the messaging core over HTTP and websockets.
package handler

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"revline/internal/chat/service"
	"revline/internal/common"
)

const defaultMaxUploadBytes = 10 << 20

type ChatHandler struct {
	chatService    service.ChatService
	maxUploadBytes int64
}

// NewChatHandler builds the HTTP handler. maxUploadBytes bounds multipart request bodies;
// non-positive values fall back to 10 MiB.
func NewChatHandler(chatService service.ChatService, maxUploadBytes int64) *ChatHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &ChatHandler{chatService: chatService, maxUploadBytes: maxUploadBytes}
}

// RegisterRoutes mounts the chat routes on r. r is expected to be behind Authenticate.
func (h *ChatHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/conversations", h.CreateConversation).Methods(http.MethodPost)
	r.HandleFunc("/conversations", h.ListConversations).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{id}/archive", h.ArchiveConversation).Methods(http.MethodPost)
	r.HandleFunc("/conversations/{id}/messages", h.SendMessage).Methods(http.MethodPost)
	r.HandleFunc("/conversations/{id}/messages", h.ListMessages).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{id}/read", h.MarkConversationRead).Methods(http.MethodPost)
	r.HandleFunc("/unread", h.GlobalUnread).Methods(http.MethodGet)
	r.HandleFunc("/unread/conversations", h.UnreadCounts).Methods(http.MethodGet)
}

type createConversationRequest struct {
	Title          *string  `json:"title"`
	ParticipantIDs []string `json:"participant_ids"`
}

func (h *ChatHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	userID, err := common.UserIDFromContext(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}

	var req createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteError(w, common.Invalid("malformed body"))
		return
	}

	conv, err := h.chatService.CreateOrGetConversation(r.Context(), userID, req.Title, req.ParticipantIDs)
	if err != nil {
		common.WriteError(w, err)
		return
	}

	status := http.StatusOK
	if conv.Created {
		status = http.StatusCreated
	}
	common.WriteJSON(w, status, conv)
}

func (h *ChatHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	userID, err := common.UserIDFromContext(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}

	convs, err := h.chatService.ListConversations(r.Context(), userID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if convs == nil {
		convs = []service.ConversationSummary{}
	}
	common.WriteJSON(w, http.StatusOK, map[string]any{"conversations": convs})
}

func (h *ChatHandler) ArchiveConversation(w http.ResponseWriter, r *http.Request) {
	userID, err := common.UserIDFromContext(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}

	if err := h.chatService.ArchiveConversation(r.Context(), mux.Vars(r)["id"], userID); err != nil {
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

// SendMessage accepts a JSON body {"content": ...} or a multipart form with a content
// field and an optional file part named attachment.
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, err := common.UserIDFromContext(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}

	var (
		content    string
		attachment *service.Attachment
	)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
		if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				common.WriteError(w, common.Invalid("attachment exceeds %d bytes", h.maxUploadBytes))
				return
			}
			common.WriteError(w, common.Invalid("malformed multipart body"))
			return
		}
		defer r.MultipartForm.RemoveAll()

		content = r.FormValue("content")
		file, header, err := r.FormFile("attachment")
		switch {
		case err == nil:
			defer file.Close()
			contentType := header.Header.Get("Content-Type")
			if contentType == "" {
				contentType = "application/octet-stream"
			}
			attachment = &service.Attachment{Filename: header.Filename, ContentType: contentType, Body: file}
		case errors.Is(err, http.ErrMissingFile):
		default:
			common.WriteError(w, common.Invalid("malformed attachment"))
			return
		}
	} else {
		var req sendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			common.WriteError(w, common.Invalid("malformed body"))
			return
		}
		content = req.Content
	}

	msg, err := h.chatService.SendMessage(r.Context(), mux.Vars(r)["id"], userID, content, attachment)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.WriteJSON(w, http.StatusCreated, msg)
}

func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	userID, err := common.UserIDFromContext(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}

	messages, err := h.chatService.ListMessages(r.Context(), mux.Vars(r)["id"], userID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if messages == nil {
		messages = []service.Message{}
	}
	common.WriteJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (h *ChatHandler) MarkConversationRead(w http.ResponseWriter, r *http.Request) {
	userID, err := common.UserIDFromContext(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}

	if err := h.chatService.MarkConversationRead(r.Context(), mux.Vars(r)["id"], userID); err != nil {
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ChatHandler) GlobalUnread(w http.ResponseWriter, r *http.Request) {
	userID, err := common.UserIDFromContext(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}

	unread, err := h.chatService.GlobalUnreadExists(r.Context(), userID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, map[string]bool{"unread": unread})
}

// UnreadCounts reads a comma separated ids query parameter; repeated ids parameters are also accepted.
func (h *ChatHandler) UnreadCounts(w http.ResponseWriter, r *http.Request) {
	userID, err := common.UserIDFromContext(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}

	var ids []string
	for _, raw := range r.URL.Query()["ids"] {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}

	counts, err := h.chatService.PerConversationUnreadCount(r.Context(), userID, ids)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if counts == nil {
		counts = map[string]int64{}
	}
	common.WriteJSON(w, http.StatusOK, map[string]any{"counts": counts})
}
