package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noospace/noospace/pkg/codec"
	"github.com/noospace/noospace/pkg/models"
	"github.com/noospace/noospace/pkg/search"
	"github.com/noospace/noospace/pkg/store"
)

// handleState returns the full read model: spaces plus the active space's
// nodes, edges and view.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	rm, err := s.store.ReadModel(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rm)
}

func (s *Server) handleListSpaces(w http.ResponseWriter, r *http.Request) {
	rm, err := s.store.ReadModel(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"spaces":        rm.Spaces,
		"activeSpaceId": rm.ActiveSpaceID,
	})
}

func (s *Server) handleCreateSpace(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Template string `json:"template"`
		Name     string `json:"name"`
		Icon     string `json:"icon"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	space, err := s.store.CreateSpace(r.Context(), req.Template, store.CreateSpaceOverrides{
		Name: req.Name,
		Icon: req.Icon,
	})
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, space)
}

func (s *Server) handleRenameSpace(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Name == "" {
		s.writeError(w, http.StatusBadRequest, "Name is required")
		return
	}

	if err := s.store.RenameSpace(r.Context(), id, req.Name); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Space renamed"})
}

func (s *Server) handleDeleteSpace(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.DeleteSpace(r.Context(), id); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Space deleted"})
}

func (s *Server) handleActivateSpace(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.SetActiveSpace(r.Context(), id); err != nil {
		s.writeStoreError(w, err)
		return
	}
	rm, err := s.store.ReadModel(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rm)
}

func (s *Server) handleCreateNode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SpaceID  string `json:"spaceId"`
		ParentID string `json:"parentId"`
		Title    string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.SpaceID == "" {
		req.SpaceID = s.store.ActiveSpaceID()
	}

	node, err := s.store.CreateNode(r.Context(), req.SpaceID, req.ParentID, req.Title)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, node)
}

func (s *Server) handleUpdateNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var update models.NodeUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if err := s.store.UpdateNode(r.Context(), id, update); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Node updated"})
}

func (s *Server) handleDeleteNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.DeleteNode(r.Context(), id); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Node deleted"})
}

func (s *Server) handleSelectNode(w http.ResponseWriter, r *http.Request) {
	s.store.SelectNode(chi.URLParam(r, "id"))
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Node selected"})
}

func (s *Server) handleLinkNodes(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From     string `json:"from"`
		To       string `json:"to"`
		Relation string `json:"relation"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.From == "" || req.To == "" {
		s.writeError(w, http.StatusBadRequest, "from and to are required")
		return
	}

	if err := s.store.LinkNodes(r.Context(), req.From, req.To, req.Relation); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Nodes linked"})
}

func (s *Server) handleUnlinkNodes(w http.ResponseWriter, r *http.Request) {
	if err := s.store.UnlinkNodes(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Nodes unlinked"})
}

func (s *Server) handleVisibleEdges(w http.ResponseWriter, r *http.Request) {
	edges, err := s.store.VisibleEdges(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if edges == nil {
		edges = []models.Edge{}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"edges": edges})
}

func (s *Server) handleUpdateView(w http.ResponseWriter, r *http.Request) {
	var update models.ViewUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if err := s.store.UpdateView(r.Context(), update); err != nil {
		s.writeStoreError(w, err)
		return
	}
	view, _ := s.store.View()
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleResetView(w http.ResponseWriter, r *http.Request) {
	if err := s.store.ResetView(r.Context()); err != nil {
		s.writeStoreError(w, err)
		return
	}
	view, _ := s.store.View()
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	results, err := s.store.Search(r.Context(), query)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if results == nil {
		results = []search.Result{}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	spaceID := r.URL.Query().Get("space")

	var env codec.Envelope
	var err error
	if spaceID == "" {
		env, err = s.store.ExportAll(r.Context())
	} else {
		env, err = s.store.ExportSpace(r.Context(), spaceID)
	}
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, env)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Failed to read body")
		return
	}
	env, err := codec.Decode(body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid envelope")
		return
	}

	result, err := s.store.Import(r.Context(), env)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}
