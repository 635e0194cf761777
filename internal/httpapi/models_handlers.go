package httpapi

import "net/http"

type modelEntry struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
}

type modelList struct {
	Object string       `json:"object"`
	Data   []modelEntry `json:"data"`
}

// handleModels returns a static OpenAI-shaped model list derived from
// configuration (MODELS, falling back to DefaultModel alone); no call
// to Anthropic is involved.
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	ids := s.cfg.ModelList()
	data := make([]modelEntry, 0, len(ids))
	for _, id := range ids {
		data = append(data, modelEntry{ID: id, Object: "model", OwnedBy: "anthropic"})
	}
	writeJSON(w, http.StatusOK, modelList{Object: "list", Data: data})
}
