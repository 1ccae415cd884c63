package httpapi

import (
	"math"
	"net/http"
	"strconv"

	"github.com/goliatone/go-content-cache/content"
	"github.com/goliatone/go-content-cache/contentservice"
)

// registerContent mounts the listing, lifecycle and counter routes of one
// content kind under prefix.
func registerContent[T content.Entity[T]](s *Server, prefix string, svc *contentservice.Service[T]) {
	if svc == nil {
		return
	}
	h := contentHandlers[T]{server: s, svc: svc}

	s.mux.HandleFunc("GET "+prefix, h.list)
	s.mux.HandleFunc("GET "+prefix+"/deleted", s.guard(h.listDeleted))
	s.mux.HandleFunc("GET "+prefix+"/{id}", h.findOne)
	s.mux.HandleFunc("POST "+prefix+"/create", s.guard(h.create))
	s.mux.HandleFunc("PATCH "+prefix+"/{id}", s.guard(h.update))
	s.mux.HandleFunc("DELETE "+prefix+"/{id}", s.guard(h.delete))
	s.mux.HandleFunc("PATCH "+prefix+"/{id}/views", h.incrementViews)
	s.mux.HandleFunc("PATCH "+prefix+"/{id}/restore", s.guard(h.restore))
}

type contentHandlers[T content.Entity[T]] struct {
	server *Server
	svc    *contentservice.Service[T]
}

func (h contentHandlers[T]) list(w http.ResponseWriter, r *http.Request) {
	params, err := h.server.listParams(r)
	if err != nil {
		h.server.writeError(w, r, err)
		return
	}
	res, err := h.svc.FindAll(r.Context(), params)
	h.respond(w, r, http.StatusOK, res, err)
}

func (h contentHandlers[T]) listDeleted(w http.ResponseWriter, r *http.Request) {
	params, err := h.server.listParams(r)
	if err != nil {
		h.server.writeError(w, r, err)
		return
	}
	res, err := h.svc.FindAllDeleted(r.Context(), params)
	h.respond(w, r, http.StatusOK, res, err)
}

func (h contentHandlers[T]) findOne(w http.ResponseWriter, r *http.Request) {
	record, err := h.svc.FindOne(r.Context(), r.PathValue("id"))
	h.respond(w, r, http.StatusOK, record, err)
}

func (h contentHandlers[T]) create(w http.ResponseWriter, r *http.Request) {
	patch, upload, err := decodePatch(r)
	if err != nil {
		h.server.writeError(w, r, err)
		return
	}
	record, err := h.svc.Create(r.Context(), patch, upload)
	h.respond(w, r, http.StatusCreated, record, err)
}

func (h contentHandlers[T]) update(w http.ResponseWriter, r *http.Request) {
	patch, upload, err := decodePatch(r)
	if err != nil {
		h.server.writeError(w, r, err)
		return
	}
	record, err := h.svc.Update(r.Context(), r.PathValue("id"), patch, upload)
	h.respond(w, r, http.StatusOK, record, err)
}

func (h contentHandlers[T]) delete(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Delete(r.Context(), r.PathValue("id"))
	h.respond(w, r, http.StatusOK, res, err)
}

func (h contentHandlers[T]) incrementViews(w http.ResponseWriter, r *http.Request) {
	record, err := h.svc.IncrementViews(r.Context(), r.PathValue("id"))
	h.respond(w, r, http.StatusOK, record, err)
}

func (h contentHandlers[T]) restore(w http.ResponseWriter, r *http.Request) {
	record, err := h.svc.Restore(r.Context(), r.PathValue("id"))
	h.respond(w, r, http.StatusOK, record, err)
}

func (h contentHandlers[T]) respond(w http.ResponseWriter, r *http.Request, status int, v any, err error) {
	if err != nil {
		h.server.writeError(w, r, err)
		return
	}
	writeJSON(w, status, v)
}

// listParams reads page, pageSize, order and search. Missing values take
// the defaults; non numeric or non positive page values are rejected.
func (s *Server) listParams(r *http.Request) (contentservice.ListParams, error) {
	q := r.URL.Query()

	page, err := positiveInt(q.Get("page"), content.DefaultPage, "page")
	if err != nil {
		return contentservice.ListParams{}, err
	}
	pageSize, err := positiveInt(q.Get("pageSize"), content.DefaultPageSize, "pageSize")
	if err != nil {
		return contentservice.ListParams{}, err
	}
	if pageSize > s.cfg.MaxPageSize {
		pageSize = s.cfg.MaxPageSize
	}
	if page > math.MaxInt/pageSize {
		return contentservice.ListParams{}, content.BadRequest(pageMessage)
	}

	skip, take := content.PageWindow(page, pageSize)
	return contentservice.ListParams{
		Skip:   skip,
		Take:   take,
		Order:  content.ParseOrder(q.Get("order")),
		Search: q.Get("search"),
	}, nil
}

const positiveIntSuffix = " must be a positive integer"

const pageMessage = "page" + positiveIntSuffix

func positiveInt(raw string, def int, name string) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, content.BadRequest(name + positiveIntSuffix)
	}
	return n, nil
}
