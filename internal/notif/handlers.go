package notif

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"revline/internal/common"
)

type NotificationAPI interface {
	ListNotifications(ctx context.Context, userID string, limit, offset int) ([]Notification, error)
	MarkAsRead(ctx context.Context, id, userID string) error
	UnreadCount(ctx context.Context, userID string) (int64, error)
	RegisterDeviceToken(ctx context.Context, userID, token, platform string) error
}

type NotificationHandler struct {
	service NotificationAPI
}

func NewNotificationHandler(service NotificationAPI) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// RegisterRoutes mounts the notification routes on r. r is expected to be behind Authenticate.
func (h *NotificationHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/notifications", h.List).Methods(http.MethodGet)
	r.HandleFunc("/notifications/unread-count", h.UnreadCount).Methods(http.MethodGet)
	r.HandleFunc("/notifications/{id}/read", h.MarkAsRead).Methods(http.MethodPost)
	r.HandleFunc("/devices", h.RegisterDevice).Methods(http.MethodPost)
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := common.UserIDFromContext(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	notifications, err := h.service.ListNotifications(r.Context(), userID, limit, offset)
	if err != nil {
		common.WriteError(w, err)
		return
	}

	common.WriteJSON(w, http.StatusOK, map[string]any{"notifications": notifications})
}

func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	userID, err := common.UserIDFromContext(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}

	count, err := h.service.UnreadCount(r.Context(), userID)
	if err != nil {
		common.WriteError(w, err)
		return
	}

	common.WriteJSON(w, http.StatusOK, map[string]int64{"unread": count})
}

func (h *NotificationHandler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	userID, err := common.UserIDFromContext(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}

	if err := h.service.MarkAsRead(r.Context(), mux.Vars(r)["id"], userID); err != nil {
		common.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type registerDeviceRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

func (h *NotificationHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	userID, err := common.UserIDFromContext(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}

	var req registerDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteError(w, common.Invalid("malformed body"))
		return
	}

	if err := h.service.RegisterDeviceToken(r.Context(), userID, req.Token, req.Platform); err != nil {
		common.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
