package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"phishguard/ai"
	"phishguard/vetting"
)

func (s *Server) handleChatStart(w http.ResponseWriter, r *http.Request) {
	sendOK(w, "Chat session started", s.assistant.Start())
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ai.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, "Invalid request body", fmt.Errorf("%w: %v", vetting.ErrInvalidInput, err))
		return
	}
	resp, err := s.assistant.Chat(r.Context(), req)
	if err != nil {
		sendError(w, "Message is required", err)
		return
	}
	sendOK(w, "Reply generated", resp)
}
