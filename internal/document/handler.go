package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"lingopad/internal/document/model"
	"lingopad/internal/document/service"
	"lingopad/middleware"
	"lingopad/pkg/logger"
)

type DocumentHandler struct {
	Service *service.DocumentService
}

func NewDocumentHandler(service *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{Service: service}
}

func (h *DocumentHandler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := r.Context().Value(middleware.UserIDKey).(string)

	var req model.CreateDocRequest
	_ = json.NewDecoder(r.Body).Decode(&req) // Ignore error, default to empty

	docID, err := h.Service.CreateDocument(r.Context(), userID, req.Title)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to create document: %v", err)
		http.Error(w, "Failed to create document: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(model.CreateDocResponse{DocID: docID})
}

func (h *DocumentHandler) GetDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := r.Context().Value(middleware.UserIDKey).(string)

	docs, err := h.Service.ListDocuments(r.Context(), userID)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to list documents: %v", err)
		http.Error(w, "Failed to list documents", http.StatusInternalServerError)
		return
	}
	if docs == nil {
		docs = []model.DocumentMetadata{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(docs)
}

func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	docID := r.URL.Query().Get("docId")
	if docID == "" {
		http.Error(w, "Missing docId parameter", http.StatusBadRequest)
		return
	}

	doc, err := h.Service.GetDocument(r.Context(), docID)
	if errors.Is(err, model.ErrNotFound) {
		http.Error(w, "Document not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to get document %s: %v", docID, err)
		http.Error(w, "Failed to get document", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(doc)
}

func (h *DocumentHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	docID := r.URL.Query().Get("docId")
	if docID == "" {
		http.Error(w, "Missing docId parameter", http.StatusBadRequest)
		return
	}

	var since int64
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			http.Error(w, "Invalid since parameter", http.StatusBadRequest)
			return
		}
		since = parsed
	}

	entries, err := h.Service.History(r.Context(), docID, since)
	if errors.Is(err, model.ErrNotFound) {
		http.Error(w, "Document not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to get history for doc %s: %v", docID, err)
		http.Error(w, "Failed to get history", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []model.CommitLogEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	docID := r.URL.Query().Get("docId")
	if docID == "" {
		http.Error(w, "Missing docId parameter", http.StatusBadRequest)
		return
	}

	userID := r.Context().Value(middleware.UserIDKey).(string)

	if err := h.Service.DeleteDocument(r.Context(), docID, userID); err != nil {
		logger.Sugar.Errorf("Handler: Failed to delete document %s: %v", docID, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Document deleted successfully"))
}
