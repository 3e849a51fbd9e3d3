package router

import (
	"net/http"

	"lingopad/internal/collab"
	docHandler "lingopad/internal/document"
	"lingopad/internal/document/service"
	"lingopad/middleware"
	"lingopad/socket"
)

func Setup(hub *socket.Hub, coord *collab.Coordinator, docService *service.DocumentService) http.Handler {
	mux := http.NewServeMux()

	// WebSocket
	wsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value(middleware.UserIDKey).(string)
		socket.ServeWs(hub, coord, w, r, userID)
	})
	mux.Handle("/ws", middleware.AuthMiddleware(wsHandler))

	// REST API
	handler := docHandler.NewDocumentHandler(docService)
	auth := middleware.AuthMiddleware

	mux.Handle("/api/documents/create", auth(http.HandlerFunc(handler.CreateDocument)))
	mux.Handle("/api/documents/delete", auth(http.HandlerFunc(handler.DeleteDocument)))
	mux.Handle("/api/documents/get", auth(http.HandlerFunc(handler.GetDocument)))
	mux.Handle("/api/documents/history", auth(http.HandlerFunc(handler.GetHistory)))
	mux.Handle("/api/documents", auth(http.HandlerFunc(handler.GetDocuments)))

	return middleware.CORSMiddleware(mux)
}
