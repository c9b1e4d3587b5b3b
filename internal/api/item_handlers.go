package api

import "net/http"

type createItemRequest struct {
	Name      string `json:"name"`
	StoreID   *int64 `json:"store_id"`
	SectionID *int64 `json:"section_id"`
}

type moveItemRequest struct {
	StoreID   *int64 `json:"store_id"`
	SectionID *int64 `json:"section_id"`
	Index     int    `json:"index"`
}

type checkedRequest struct {
	Checked *bool `json:"checked"`
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	list, err := s.items.List(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, list)
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	it, err := s.items.Create(r.Context(), req.StoreID, req.SectionID, req.Name)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, it)
}

func (s *Server) handleRenameItem(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathPositiveInt64(w, r, "id", "item id")
	if !ok {
		return
	}
	var req nameRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	it, err := s.items.Rename(r.Context(), id, req.Name)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, it)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathPositiveInt64(w, r, "id", "item id")
	if !ok {
		return
	}
	if err := s.items.Delete(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSetItemChecked checks the item; a body of {"checked": false}
// unchecks it instead.
func (s *Server) handleSetItemChecked(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathPositiveInt64(w, r, "id", "item id")
	if !ok {
		return
	}
	var req checkedRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}
	checked := true
	if req.Checked != nil {
		checked = *req.Checked
	}
	it, err := s.items.SetChecked(r.Context(), id, checked)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, it)
}

func (s *Server) handleMoveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathPositiveInt64(w, r, "id", "item id")
	if !ok {
		return
	}
	var req moveItemRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	it, err := s.items.Move(r.Context(), id, req.StoreID, req.SectionID, req.Index)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, it)
}
