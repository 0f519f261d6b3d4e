package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gyaneshwarpardhi/skilltree/internal/config"
	"github.com/gyaneshwarpardhi/skilltree/internal/engine"
	"github.com/gyaneshwarpardhi/skilltree/internal/metrics"
	"github.com/gyaneshwarpardhi/skilltree/internal/skill"
)

const maxSelectionSize = 500

// Handler holds all HTTP handler dependencies.
type Handler struct {
	eng    *engine.Engine
	loader *config.Loader // nil disables /v1/trees/reload
	mux    *http.ServeMux
}

// New creates an HTTP handler and registers all routes.
func New(eng *engine.Engine, loader *config.Loader) http.Handler {
	h := &Handler{eng: eng, loader: loader, mux: http.NewServeMux()}

	h.mux.HandleFunc("POST /v1/sessions", h.createSession)
	h.mux.HandleFunc("GET /v1/sessions", h.listSessions)
	h.mux.HandleFunc("GET /v1/sessions/{sid}", h.getSession)
	h.mux.HandleFunc("DELETE /v1/sessions/{sid}", h.deleteSession)

	h.mux.HandleFunc("POST /v1/sessions/{sid}/nodes", h.addNode)
	h.mux.HandleFunc("GET /v1/sessions/{sid}/nodes/{nid}", h.getNode)
	h.mux.HandleFunc("PATCH /v1/sessions/{sid}/nodes/{nid}", h.patchNode)
	h.mux.HandleFunc("DELETE /v1/sessions/{sid}/nodes/{nid}", h.deleteNode)
	h.mux.HandleFunc("POST /v1/sessions/{sid}/nodes/{nid}/spend", h.spend)
	h.mux.HandleFunc("POST /v1/sessions/{sid}/nodes/{nid}/refund", h.refund)

	h.mux.HandleFunc("POST /v1/sessions/{sid}/links", h.link)
	h.mux.HandleFunc("DELETE /v1/sessions/{sid}/links", h.unlink)
	h.mux.HandleFunc("POST /v1/sessions/{sid}/selection/unlink", h.unlinkSelection)
	h.mux.HandleFunc("POST /v1/sessions/{sid}/selection/remove", h.removeSelection)

	h.mux.HandleFunc("GET /v1/trees", h.listTrees)
	h.mux.HandleFunc("POST /v1/trees/reload", h.reloadTrees)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /readyz", h.readyz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return loggingMiddleware(h.mux)
}

type createSessionRequest struct {
	Tree string `json:"tree"`
}

type linkRequest struct {
	Parent skill.NodeID `json:"parent"`
	Child  skill.NodeID `json:"child"`
}

type selectionRequest struct {
	IDs []skill.NodeID `json:"ids"`
}

// nodePatch is a partial attribute update; absent fields keep their value.
type nodePatch struct {
	Name           *string `json:"name"`
	Description    *string `json:"description"`
	Icon           *string `json:"icon"`
	PointCap       *int    `json:"point_cap"`
	PointsRequired *int    `json:"points_required"`
}

func (p nodePatch) apply(a skill.Attributes) skill.Attributes {
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.Description != nil {
		a.Description = *p.Description
	}
	if p.Icon != nil {
		a.Icon = *p.Icon
	}
	if p.PointCap != nil {
		a.PointCap = *p.PointCap
	}
	if p.PointsRequired != nil {
		a.PointsRequired = *p.PointsRequired
	}
	return a
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return false
	}
	return true
}

// POST /v1/sessions: start a session from a template, or empty for authoring.
func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	s, err := h.eng.CreateSession(r.Context(), req.Tree)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"session_id": s.ID,
		"tree_id":    s.TreeID,
	})
}

// GET /v1/sessions: stored sessions, most recently updated first.
func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	list, err := h.eng.ListSessions(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": list})
}

// GET /v1/sessions/{sid}
func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	v, err := h.eng.Describe(r.Context(), r.PathValue("sid"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// DELETE /v1/sessions/{sid}
func (h *Handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.eng.DropSession(r.Context(), r.PathValue("sid")); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /v1/sessions/{sid}/nodes: create a node; the body is optional.
func (h *Handler) addNode(w http.ResponseWriter, r *http.Request) {
	var attrs *skill.Attributes
	if r.ContentLength != 0 {
		var p nodePatch
		if !decode(w, r, &p) {
			return
		}
		a := p.apply(skill.Attributes{Name: skill.DefaultName, PointCap: skill.DefaultPointCap})
		attrs = &a
	}
	id, err := h.eng.AddNode(r.Context(), r.PathValue("sid"), attrs)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"id": id})
}

// GET /v1/sessions/{sid}/nodes/{nid}
func (h *Handler) getNode(w http.ResponseWriter, r *http.Request) {
	v, err := h.eng.DescribeNode(r.Context(), r.PathValue("sid"), skill.NodeID(r.PathValue("nid")))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// PATCH /v1/sessions/{sid}/nodes/{nid}
func (h *Handler) patchNode(w http.ResponseWriter, r *http.Request) {
	var p nodePatch
	if !decode(w, r, &p) {
		return
	}
	sid, nid := r.PathValue("sid"), skill.NodeID(r.PathValue("nid"))
	cur, err := h.eng.DescribeNode(r.Context(), sid, nid)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	attrs := p.apply(skill.Attributes{
		Name:           cur.Name,
		Description:    cur.Description,
		Icon:           cur.Icon,
		PointCap:       cur.PointCap,
		PointsRequired: cur.PointsRequired,
	})
	v, err := h.eng.SetAttributes(r.Context(), sid, nid, attrs)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// DELETE /v1/sessions/{sid}/nodes/{nid}
func (h *Handler) deleteNode(w http.ResponseWriter, r *http.Request) {
	if err := h.eng.RemoveNode(r.Context(), r.PathValue("sid"), skill.NodeID(r.PathValue("nid"))); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /v1/sessions/{sid}/nodes/{nid}/spend: ineligible spends are 200 with ok=false.
func (h *Handler) spend(w http.ResponseWriter, r *http.Request) {
	ok, v, err := h.eng.Spend(r.Context(), r.PathValue("sid"), skill.NodeID(r.PathValue("nid")))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": ok, "node": v})
}

// POST /v1/sessions/{sid}/nodes/{nid}/refund
func (h *Handler) refund(w http.ResponseWriter, r *http.Request) {
	out, err := h.eng.Refund(r.Context(), r.PathValue("sid"), skill.NodeID(r.PathValue("nid")))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// POST /v1/sessions/{sid}/links: rejected links are 200 with ok=false.
func (h *Handler) link(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if !decode(w, r, &req) {
		return
	}
	ok, err := h.eng.Link(r.Context(), r.PathValue("sid"), req.Parent, req.Child)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": ok})
}

// DELETE /v1/sessions/{sid}/links
func (h *Handler) unlink(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if !decode(w, r, &req) {
		return
	}
	ok, err := h.eng.Unlink(r.Context(), r.PathValue("sid"), req.Parent, req.Child)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": ok})
}

func (h *Handler) decodeSelection(w http.ResponseWriter, r *http.Request) ([]skill.NodeID, bool) {
	var req selectionRequest
	if !decode(w, r, &req) {
		return nil, false
	}
	if len(req.IDs) > maxSelectionSize {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("selection size %d exceeds max %d", len(req.IDs), maxSelectionSize))
		return nil, false
	}
	return req.IDs, true
}

// POST /v1/sessions/{sid}/selection/unlink: drop every edge inside the selection.
func (h *Handler) unlinkSelection(w http.ResponseWriter, r *http.Request) {
	ids, ok := h.decodeSelection(w, r)
	if !ok {
		return
	}
	n, err := h.eng.UnlinkAmong(r.Context(), r.PathValue("sid"), ids)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}

// POST /v1/sessions/{sid}/selection/remove: delete every selected node.
func (h *Handler) removeSelection(w http.ResponseWriter, r *http.Request) {
	ids, ok := h.decodeSelection(w, r)
	if !ok {
		return
	}
	n, err := h.eng.RemoveNodes(r.Context(), r.PathValue("sid"), ids)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}

// GET /v1/trees: list loaded templates.
func (h *Handler) listTrees(w http.ResponseWriter, r *http.Request) {
	cat := h.eng.Catalog()
	trees := cat.Trees()
	if trees == nil {
		trees = []engine.TreeInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"version": cat.Version(),
		"trees":   trees,
	})
}

// POST /v1/trees/reload: re-read templates from disk and swap them in.
func (h *Handler) reloadTrees(w http.ResponseWriter, r *http.Request) {
	if h.loader == nil {
		writeError(w, http.StatusNotFound, "no config file to reload")
		return
	}
	cfg, err := config.Load(h.loader.Path())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := config.Validate(cfg); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	cat, err := engine.NewCatalog(cfg)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.eng.SwapCatalog(cat)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reloaded":    true,
		"trees_count": cat.Len(),
	})
}

// GET /healthz: always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz: 503 if the snapshot queue is >80% full.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	util := h.eng.QueueUtilization()
	metrics.PersistQueueUtilization.Set(util)
	if util > 0.8 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":            "overloaded",
			"queue_utilization": util,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "ready",
		"queue_utilization": util,
		"sessions":          h.eng.SessionCount(),
	})
}
