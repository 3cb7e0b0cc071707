package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MaciejkaG/lux-backend/pkg/catalog"
	"github.com/MaciejkaG/lux-backend/pkg/identity"
	"github.com/MaciejkaG/lux-backend/pkg/notify"
	"github.com/MaciejkaG/lux-backend/pkg/token"
)

type apiMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

// api holds the shared dependencies behind the HTTP surface.
type api struct {
	dir      *identity.Directory
	library  *catalog.Library
	notifier *notify.Publisher
	verifier *token.Verifier
	metrics  apiMetrics
}

type authedHandler func(w http.ResponseWriter, r *http.Request, subject string)

// requireAuth verifies the bearer credential and passes the subject through.
// Every failure is the same 401; which check failed is not leaked.
func (a *api) requireAuth(route string, next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		credential, err := token.ExtractBearer(r.Header.Get("Authorization"))
		var subject string
		if err == nil {
			subject, err = a.verifier.Verify(credential)
		}
		if err != nil {
			http.Error(w, "Invalid token provided in Authorization header", http.StatusUnauthorized)
			return
		}
		next(w, r, subject)
		a.metrics.requests.Add(r.Context(), 1, metric.WithAttributes(attribute.String("route", route)))
		a.metrics.duration.Record(r.Context(), time.Since(start).Seconds(),
			metric.WithAttributes(attribute.String("route", route)))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}

// errorStatus maps directory and catalog error kinds onto HTTP statuses.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, identity.ErrNotFound), errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, identity.ErrSelfReference):
		return http.StatusBadRequest
	case errors.Is(err, identity.ErrAlreadyActive):
		return http.StatusConflict
	case errors.Is(err, identity.ErrTransient):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		slog.Error("Request failed", "error", err)
	}
	http.Error(w, http.StatusText(status), status)
}

func (a *api) handleMe(w http.ResponseWriter, r *http.Request, subject string) {
	user, err := a.dir.GetUser(r.Context(), subject)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *api) handleLibrary(w http.ResponseWriter, r *http.Request, _ string) {
	apps, err := a.library.GetLibrary(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if apps == nil {
		apps = []catalog.App{}
	}
	writeJSON(w, http.StatusOK, apps)
}

func (a *api) handleApp(w http.ResponseWriter, r *http.Request, _ string) {
	details, err := a.library.GetApp(r.Context(), r.PathValue("appID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (a *api) handleFriends(w http.ResponseWriter, r *http.Request, subject string) {
	friends, requests, err := a.dir.GetFriends(r.Context(), subject)
	if err != nil {
		writeError(w, err)
		return
	}
	if friends == nil {
		friends = []identity.Friend{}
	}
	if requests == nil {
		requests = []identity.FriendRequest{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"friends":  friends,
		"requests": requests,
	})
}

func (a *api) handleFriendRequest(w http.ResponseWriter, r *http.Request, subject string) {
	target, err := a.dir.CreateFriendRequest(r.Context(), subject, r.PathValue("username"))
	if err != nil {
		writeError(w, err)
		return
	}

	// Fan-out is best-effort: an offline target simply misses the event and
	// sees the pending request on its next friends fetch.
	me, err := a.dir.GetUser(r.Context(), subject)
	if err == nil {
		err = a.notifier.Notify(r.Context(), target.PublicID, notify.KindFriendRequest, me)
	}
	if err != nil {
		slog.Warn("Failed to publish friend_request notification", "target", target.PublicID, "error", err)
	}

	writeJSON(w, http.StatusCreated, target)
}

func (a *api) handleFriendAccept(w http.ResponseWriter, r *http.Request, subject string) {
	requester, err := a.dir.AcceptFriendRequest(r.Context(), subject, r.PathValue("username"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, requester)
}

func (a *api) handleFriendDelete(w http.ResponseWriter, r *http.Request, subject string) {
	other, err := a.dir.DeleteFriend(r.Context(), subject, r.PathValue("username"))
	if err != nil {
		writeError(w, err)
		return
	}

	me, err := a.dir.GetUser(r.Context(), subject)
	if err == nil {
		payload := map[string]string{"public_id": me.PublicID}
		err = a.notifier.Notify(r.Context(), other.PublicID, notify.KindFriendDeleted, payload)
	}
	if err != nil {
		slog.Warn("Failed to publish friend_deleted notification", "target", other.PublicID, "error", err)
	}

	w.WriteHeader(http.StatusNoContent)
}

// routes wires the HTTP surface onto a mux.
func (a *api) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/users/me", a.requireAuth("users_me", a.handleMe))
	mux.HandleFunc("GET /api/library", a.requireAuth("library", a.handleLibrary))
	mux.HandleFunc("GET /api/library/{appID}", a.requireAuth("library_app", a.handleApp))
	mux.HandleFunc("GET /api/friends", a.requireAuth("friends_list", a.handleFriends))
	mux.HandleFunc("POST /api/friends/{username}", a.requireAuth("friends_request", a.handleFriendRequest))
	mux.HandleFunc("PUT /api/friends/{username}", a.requireAuth("friends_accept", a.handleFriendAccept))
	mux.HandleFunc("DELETE /api/friends/{username}", a.requireAuth("friends_delete", a.handleFriendDelete))
}
