package api

import "net/http"

type nameRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateStore(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	store, err := s.stores.Create(r.Context(), req.Name)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, store)
}

func (s *Server) handleListStores(w http.ResponseWriter, r *http.Request) {
	stores, err := s.stores.List(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, stores)
}

func (s *Server) handleUpdateStore(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathPositiveInt64(w, r, "store_id", "store id")
	if !ok {
		return
	}
	var req nameRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	store, err := s.stores.Update(r.Context(), id, req.Name)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, store)
}

func (s *Server) handleDeleteStore(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathPositiveInt64(w, r, "store_id", "store id")
	if !ok {
		return
	}
	if err := s.stores.Delete(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
