package user

import (
	"net/http"

	"github.com/gorilla/mux"

	"revline/internal/common"
)

type FollowHandler struct {
	follows FollowService
}

func NewFollowHandler(follows FollowService) *FollowHandler {
	return &FollowHandler{follows: follows}
}

// RegisterRoutes mounts the follow routes on r. r is expected to be behind Authenticate.
func (h *FollowHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/users/{id}/follow", h.Follow).Methods(http.MethodPost)
	r.HandleFunc("/users/{id}/follow", h.Unfollow).Methods(http.MethodDelete)
	r.HandleFunc("/users/{id}/followers", h.Followers).Methods(http.MethodGet)
}

func (h *FollowHandler) Follow(w http.ResponseWriter, r *http.Request) {
	userID, err := common.UserIDFromContext(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}

	if err := h.follows.Follow(r.Context(), userID, mux.Vars(r)["id"]); err != nil {
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *FollowHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	userID, err := common.UserIDFromContext(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}

	if err := h.follows.Unfollow(r.Context(), userID, mux.Vars(r)["id"]); err != nil {
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *FollowHandler) Followers(w http.ResponseWriter, r *http.Request) {
	if _, err := common.UserIDFromContext(r.Context()); err != nil {
		common.WriteError(w, err)
		return
	}

	followers, err := h.follows.Followers(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if followers == nil {
		followers = []string{}
	}
	common.WriteJSON(w, http.StatusOK, map[string][]string{"followers": followers})
}
