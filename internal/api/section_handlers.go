package api

import "net/http"

type reorderSectionsRequest struct {
	SectionIDs []int64 `json:"section_ids"`
}

type indexRequest struct {
	Index int `json:"index"`
}

func (s *Server) handleListSections(w http.ResponseWriter, r *http.Request) {
	storeID, ok := parsePathPositiveInt64(w, r, "store_id", "store id")
	if !ok {
		return
	}
	sections, err := s.sections.List(r.Context(), storeID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, sections)
}

func (s *Server) handleCreateSection(w http.ResponseWriter, r *http.Request) {
	storeID, ok := parsePathPositiveInt64(w, r, "store_id", "store id")
	if !ok {
		return
	}
	var req nameRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	sec, err := s.sections.Create(r.Context(), storeID, req.Name)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, sec)
}

func (s *Server) handleReorderSections(w http.ResponseWriter, r *http.Request) {
	storeID, ok := parsePathPositiveInt64(w, r, "store_id", "store id")
	if !ok {
		return
	}
	var req reorderSectionsRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	sections, err := s.sections.Reorder(r.Context(), storeID, req.SectionIDs)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, sections)
}

func (s *Server) handleUpdateSection(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathPositiveInt64(w, r, "id", "section id")
	if !ok {
		return
	}
	var req nameRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	sec, err := s.sections.Update(r.Context(), id, req.Name)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, sec)
}

func (s *Server) handleDeleteSection(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathPositiveInt64(w, r, "id", "section id")
	if !ok {
		return
	}
	if err := s.sections.Delete(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMoveSection(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathPositiveInt64(w, r, "id", "section id")
	if !ok {
		return
	}
	var req indexRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	sec, err := s.sections.Move(r.Context(), id, req.Index)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, sec)
}
