package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/malbeclabs/routeman/internal/kernel"
	"github.com/malbeclabs/routeman/internal/routes"
	"github.com/malbeclabs/routeman/internal/store"
)

type Handler struct {
	log     *slog.Logger
	store   Store
	kernel  kernel.Actuator
	devices routes.DeviceChecker
	clock   clockwork.Clock
	token   string
	maxBody int64
}

func NewHandler(cfg Config) (*Handler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("handler config validation failed: %w", err)
	}
	return &Handler{
		log:     cfg.Logger,
		store:   cfg.Store,
		kernel:  cfg.Kernel,
		devices: cfg.Devices,
		clock:   cfg.Clock,
		token:   cfg.Token,
		maxBody: cfg.MaxBodySize,
	}, nil
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc(RoutesPath, h.requireAuth(h.routesHandler))
	mux.HandleFunc(RouteItemPath, h.requireAuth(h.routeItemHandler))
	mux.HandleFunc(RoutePausePath, h.requireAuth(h.pauseHandler))
	mux.HandleFunc(RouteActivatePath, h.requireAuth(h.activateHandler))
	mux.HandleFunc(DeletedRoutesPath, h.requireAuth(h.deletedRoutesHandler))
	mux.HandleFunc(HealthzPath, h.healthzHandler)
	mux.HandleFunc(ReadyzPath, h.readyzHandler)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeJSONError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, ErrorResponse{Error: msg, Code: status})
}

func (h *Handler) writeMessage(w http.ResponseWriter, status int, format string, args ...any) {
	h.writeJSON(w, status, MessageResponse{Message: fmt.Sprintf(format, args...)})
}

func (h *Handler) writeValidationError(w http.ResponseWriter, err error) {
	var verr *routes.ValidationError
	if errors.As(err, &verr) {
		h.writeJSONError(w, http.StatusUnprocessableEntity, verr.Error())
		return
	}
	h.log.Error("failed to validate route", "error", err)
	h.writeJSONError(w, http.StatusInternalServerError, "failed to validate route")
}

// decodeBody unmarshals a JSON request body into v and writes the error
// response itself when the body is oversized or malformed.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			h.writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		h.writeJSONError(w, http.StatusUnprocessableEntity, "invalid json body")
		return false
	}
	return true
}

func (h *Handler) routesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		h.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	list, err := h.store.List(r.Context())
	if err != nil {
		h.log.Error("failed to list routes", "error", err)
		h.writeJSONError(w, http.StatusInternalServerError, "failed to fetch routes from database")
		return
	}

	system, err := h.kernel.RouteShow(r.Context())
	if err != nil {
		h.log.Error("failed to read kernel routing table", "error", err)
		h.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if list == nil {
		list = []routes.Route{}
	}
	if system == nil {
		system = []string{}
	}
	h.writeJSON(w, http.StatusOK, RoutesResponse{DatabaseRoutes: list, SystemRoutes: system})
}

func (h *Handler) routeItemHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != RouteItemPath {
		h.writeJSONError(w, http.StatusNotFound, "not found")
		return
	}
	switch r.Method {
	case http.MethodPut:
		h.createRoute(w, r)
	case http.MethodPatch:
		h.updateRoute(w, r)
	case http.MethodDelete:
		h.deleteRoute(w, r)
	default:
		w.Header().Set("Allow", "PUT, PATCH, DELETE")
		h.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// createRoute declares a route. The initial status comes from the
// window: pending and expired declarations are only recorded, while a
// currently open window installs the route in the kernel before the
// record is saved. A destination the kernel already carries is reported
// without recording anything.
func (h *Handler) createRoute(w http.ResponseWriter, r *http.Request) {
	var req routes.RouteRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	now := h.clock.Now().UTC()
	rt, err := routes.New(req, now, h.devices)
	if err != nil {
		h.writeValidationError(w, err)
		return
	}

	switch routes.Classify(rt.CreateAt, rt.DeleteAt, now) {
	case routes.StatusPending:
		rt.Status = routes.StatusPending
	case routes.StatusExpired:
		rt.Status = routes.StatusExpired
	case routes.StatusActive:
		// Check for a duplicate before touching the kernel so a
		// conflicting declaration cannot clobber another record's route.
		if _, err := h.store.Get(r.Context(), rt.To); err == nil {
			h.writeJSONError(w, http.StatusConflict, fmt.Sprintf("route %s already exists", rt.To))
			return
		} else if !errors.Is(err, store.ErrNotFound) {
			h.log.Error("failed to check for existing route", "to", rt.To, "error", err)
			h.writeJSONError(w, http.StatusInternalServerError, "failed to fetch route from database")
			return
		}

		if err := h.kernel.RouteAdd(r.Context(), rt); err != nil {
			if errors.Is(err, kernel.ErrRouteExists) {
				h.log.Info("route already present in kernel, not recording", "to", rt.To)
				h.writeMessage(w, http.StatusOK, "route %s already exists in the kernel routing table", rt.To)
				return
			}
			h.log.Error("failed to install route in kernel", "to", rt.To, "error", err)
			h.writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		rt.Active = true
		rt.Status = routes.StatusActive
	}

	if err := h.store.Insert(r.Context(), rt); err != nil {
		if errors.Is(err, store.ErrConflict) {
			h.writeJSONError(w, http.StatusConflict, fmt.Sprintf("route %s already exists", rt.To))
			return
		}
		h.log.Error("failed to insert route", "to", rt.To, "error", err)
		h.writeJSONError(w, http.StatusInternalServerError, "failed to save route to database")
		return
	}

	h.log.Info("route scheduled", "to", rt.To, "status", rt.Status, "create_at", rt.CreateAt, "delete_at", rt.DeleteAt)
	h.writeMessage(w, http.StatusCreated, "route %s scheduled", rt.To)
}

// updateRoute applies a partial update. Setting one of via/dev clears
// the other; when both appear in the body dev wins. The record is reset
// to pending so the next sweep re-derives its state from the new
// window.
func (h *Handler) updateRoute(w http.ResponseWriter, r *http.Request) {
	var upd routes.RouteUpdate
	if !h.decodeBody(w, r, &upd) {
		return
	}

	p, err := upd.Parse()
	if err != nil {
		h.writeValidationError(w, err)
		return
	}

	if p.Dev != "" {
		ok, err := h.devices.DeviceExists(p.Dev)
		if err != nil {
			h.log.Error("failed to check interface", "dev", p.Dev, "error", err)
			h.writeJSONError(w, http.StatusInternalServerError, "failed to validate route")
			return
		}
		if !ok {
			h.writeJSONError(w, http.StatusUnprocessableEntity, fmt.Sprintf("%q is not a valid network interface", p.Dev))
			return
		}
	}

	var sp store.Patch
	empty := ""
	if p.Via != "" {
		sp.Via = &p.Via
		sp.Dev = &empty
	}
	if p.Dev != "" {
		sp.Dev = &p.Dev
		sp.Via = &empty
	}
	sp.CreateAt = p.CreateAt
	sp.DeleteAt = p.DeleteAt

	active := false
	status := routes.StatusPending
	sp.Active = &active
	sp.Status = &status

	if err := h.store.Update(r.Context(), p.To, sp); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("route %s not found", p.To))
			return
		}
		h.log.Error("failed to update route", "to", p.To, "error", err)
		h.writeJSONError(w, http.StatusInternalServerError, "failed to update route in database")
		return
	}

	h.log.Info("route updated", "to", p.To)
	h.writeMessage(w, http.StatusOK, "route %s successfully updated", p.To)
}

// deleteRoute removes a declaration, snapshotting it into the deletion
// history. The kernel route is removed only when the record was active;
// a kernel failure after the store delete is reported as 500 and left
// for the operator, the store stays advanced.
func (h *Handler) deleteRoute(w http.ResponseWriter, r *http.Request) {
	var ref RouteRef
	if !h.decodeBody(w, r, &ref) {
		return
	}
	to := strings.TrimSpace(ref.To)
	if to == "" {
		h.writeJSONError(w, http.StatusUnprocessableEntity, "route must include a destination")
		return
	}

	prior, err := h.store.Delete(r.Context(), to, routes.StatusDeleted)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			h.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("route %s not found", to))
		case errors.Is(err, store.ErrAmbiguous):
			h.writeJSONError(w, http.StatusConflict, fmt.Sprintf("multiple routes match %s", to))
		default:
			h.log.Error("failed to delete route", "to", to, "error", err)
			h.writeJSONError(w, http.StatusInternalServerError, "failed to delete route from database")
		}
		return
	}

	if prior.Active {
		if err := h.kernel.RouteDel(r.Context(), to); err != nil {
			if !errors.Is(err, kernel.ErrRouteNotFound) {
				h.log.Error("failed to remove route from kernel", "to", to, "error", err)
				h.writeJSONError(w, http.StatusInternalServerError, err.Error())
				return
			}
			h.log.Debug("route already absent from kernel", "to", to)
		}
	}

	h.log.Info("route deleted", "to", to)
	h.writeMessage(w, http.StatusOK, "route %s successfully deleted", to)
}

// pauseHandler withdraws an active route from the kernel without
// forgetting it. Only a currently installed route inside its window can
// be paused.
func (h *Handler) pauseHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		w.Header().Set("Allow", http.MethodPatch)
		h.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var ref RouteRef
	if !h.decodeBody(w, r, &ref) {
		return
	}
	to := strings.TrimSpace(ref.To)
	if to == "" {
		h.writeJSONError(w, http.StatusUnprocessableEntity, "route must include a destination")
		return
	}

	rt, err := h.store.Get(r.Context(), to)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("route %s not found", to))
			return
		}
		h.log.Error("failed to fetch route", "to", to, "error", err)
		h.writeJSONError(w, http.StatusInternalServerError, "failed to fetch route from database")
		return
	}

	now := h.clock.Now().UTC()
	if rt.Status != routes.StatusActive || !rt.Active {
		h.writeJSONError(w, http.StatusConflict, fmt.Sprintf("route %s is not active", to))
		return
	}
	if !rt.InWindow(now) {
		h.writeJSONError(w, http.StatusConflict, fmt.Sprintf("route %s is outside its activation window", to))
		return
	}

	if err := h.kernel.RouteDel(r.Context(), to); err != nil {
		if !errors.Is(err, kernel.ErrRouteNotFound) {
			h.log.Error("failed to remove route from kernel", "to", to, "error", err)
			h.writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		h.log.Debug("route already absent from kernel", "to", to)
	}

	active := false
	status := routes.StatusPaused
	if err := h.store.Update(r.Context(), to, store.Patch{Active: &active, Status: &status}); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("route %s not found", to))
			return
		}
		h.log.Error("failed to mark route paused", "to", to, "error", err)
		h.writeJSONError(w, http.StatusInternalServerError, "failed to update route in database")
		return
	}

	h.log.Info("route paused", "to", to)
	h.writeMessage(w, http.StatusOK, "route %s successfully paused", to)
}

// activateHandler reinstalls a paused route. A kernel install failure
// other than already-exists leaves the record paused.
func (h *Handler) activateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		w.Header().Set("Allow", http.MethodPatch)
		h.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var ref RouteRef
	if !h.decodeBody(w, r, &ref) {
		return
	}
	to := strings.TrimSpace(ref.To)
	if to == "" {
		h.writeJSONError(w, http.StatusUnprocessableEntity, "route must include a destination")
		return
	}

	rt, err := h.store.Get(r.Context(), to)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("route %s not found", to))
			return
		}
		h.log.Error("failed to fetch route", "to", to, "error", err)
		h.writeJSONError(w, http.StatusInternalServerError, "failed to fetch route from database")
		return
	}

	now := h.clock.Now().UTC()
	if rt.Status != routes.StatusPaused || rt.Active {
		h.writeJSONError(w, http.StatusConflict, fmt.Sprintf("route %s is not paused", to))
		return
	}
	if !rt.InWindow(now) {
		h.writeJSONError(w, http.StatusConflict, fmt.Sprintf("route %s is outside its activation window", to))
		return
	}

	if err := h.kernel.RouteAdd(r.Context(), rt); err != nil {
		if !errors.Is(err, kernel.ErrRouteExists) {
			h.log.Error("failed to install route in kernel", "to", to, "error", err)
			h.writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		h.log.Debug("route already present in kernel", "to", to)
	}

	active := true
	status := routes.StatusActive
	if err := h.store.Update(r.Context(), to, store.Patch{Active: &active, Status: &status}); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("route %s not found", to))
			return
		}
		h.log.Error("failed to mark route active", "to", to, "error", err)
		h.writeJSONError(w, http.StatusInternalServerError, "failed to update route in database")
		return
	}

	h.log.Info("route re-activated", "to", to)
	h.writeMessage(w, http.StatusOK, "route %s successfully re-activated", to)
}

func (h *Handler) deletedRoutesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		h.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	deleted, err := h.store.ListDeleted(r.Context())
	if err != nil {
		h.log.Error("failed to list deleted routes", "error", err)
		h.writeJSONError(w, http.StatusInternalServerError, "failed to fetch deleted routes from database")
		return
	}
	if deleted == nil {
		deleted = []routes.DeletedRoute{}
	}
	h.writeJSON(w, http.StatusOK, DeletedRoutesResponse{DeletedRoutes: deleted})
}

func (h *Handler) healthzHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		h.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": "ok",
	})
}

func (h *Handler) readyzHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		h.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := h.store.Ping(r.Context()); err != nil {
		h.log.Error("readiness check failed", "error", err)
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusServiceUnavailable)
		if r.Method == http.MethodHead {
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "not_ready",
		})
		return
	}

	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": "ready",
	})
}
