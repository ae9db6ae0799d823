package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/productfeed/api/responses"
	"github.com/angelmondragon/productfeed/api/validators"
	"github.com/angelmondragon/productfeed/internal/catalog"
	"github.com/angelmondragon/productfeed/internal/sessions"
	pkgerrors "github.com/angelmondragon/productfeed/pkg/errors"
	"github.com/angelmondragon/productfeed/pkg/logger"
)

type sessionStore interface {
	Create(ctx context.Context) (*sessions.Session, error)
	Get(id string) (*sessions.Session, error)
	Delete(ctx context.Context, id string) error
}

type sortRequest struct {
	By string `json:"by" validate:"required,oneof=rating price"`
}

// resolveSession loads the session named by the sessionId path parameter and
// tags the request context with its id.
func resolveSession(r *http.Request, store sessionStore, logg *logger.Logger) (context.Context, *sessions.Session, error) {
	ctx := r.Context()
	if store == nil {
		return ctx, nil, pkgerrors.New(pkgerrors.CodeInternal, "session registry unavailable")
	}
	id := chi.URLParam(r, "sessionId")
	if err := validators.ValidateVar("session_id", id, "required,uuid"); err != nil {
		return ctx, nil, err
	}
	if logg != nil {
		ctx = logg.WithSessionID(ctx, id)
	}
	session, err := store.Get(id)
	if err != nil {
		return ctx, nil, err
	}
	return ctx, session, nil
}

// CreateSession opens a browsing session and runs the initial page load
// through its first attempt before responding.
func CreateSession(store sessionStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session registry unavailable"))
			return
		}

		session, err := store.Create(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		session.Controller.Start(r.Context())

		responses.WriteSuccessStatus(w, http.StatusCreated, sessionView{
			SessionID: session.ID,
			Snapshot:  newSnapshotView(session.Controller.Snapshot()),
		})
	}
}

func GetSession(store sessionStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, session, err := resolveSession(r, store, logg)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, sessionView{
			SessionID: session.ID,
			Snapshot:  newSnapshotView(session.Controller.Snapshot()),
		})
	}
}

// NeedMore is the proximity signal from the render layer. A refused request
// is not an error; accepted reports whether a load was started.
func NeedMore(store sessionStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, session, err := resolveSession(r, store, logg)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		accepted := session.Controller.NeedMore(ctx)
		responses.WriteSuccess(w, needMoreView{
			Accepted: accepted,
			Snapshot: newSnapshotView(session.Controller.Snapshot()),
		})
	}
}

func SortSession(store sessionStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, session, err := resolveSession(r, store, logg)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload sortRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		mode, err := catalog.ParseSortMode(payload.By)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := session.Controller.Sort(ctx, mode); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, sessionView{
			SessionID: session.ID,
			Snapshot:  newSnapshotView(session.Controller.Snapshot()),
		})
	}
}

func ClearSort(store sessionStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, session, err := resolveSession(r, store, logg)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		session.Controller.ClearSort()
		responses.WriteSuccess(w, sessionView{
			SessionID: session.ID,
			Snapshot:  newSnapshotView(session.Controller.Snapshot()),
		})
	}
}

// RetrySession resets the session and reloads the first page.
func RetrySession(store sessionStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, session, err := resolveSession(r, store, logg)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		session.Controller.Retry(ctx)
		responses.WriteSuccess(w, sessionView{
			SessionID: session.ID,
			Snapshot:  newSnapshotView(session.Controller.Snapshot()),
		})
	}
}

func DeleteSession(store sessionStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if store == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session registry unavailable"))
			return
		}
		id := chi.URLParam(r, "sessionId")
		if err := validators.ValidateVar("session_id", id, "required,uuid"); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err := store.Delete(ctx, id); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}
