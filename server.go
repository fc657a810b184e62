package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

// Server is the HTTP surface. Owner identity (uid) arrives with every
// request and is threaded through explicitly; there is no process-wide
// current user.
type Server struct {
	cfg        *Config
	classifier Classifier
	dispatcher *Dispatcher
	reminders  *ReminderEngine
	chatLog    ChatLog
	notifyCh   *chanNotifier
}

func newServer(cfg *Config, cl Classifier, d *Dispatcher, re *ReminderEngine,
	log ChatLog, ch *chanNotifier) *Server {
	return &Server{
		cfg:        cfg,
		classifier: cl,
		dispatcher: d,
		reminders:  re,
		chatLog:    log,
		notifyCh:   ch,
	}
}

func (s *Server) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/process", s.handleProcess)
	mux.HandleFunc("GET /api/reminders", s.handleListReminders)
	mux.HandleFunc("POST /api/reminders", s.handleAddReminder)
	mux.HandleFunc("PUT /api/reminders/{id}", s.handleUpdateReminder)
	mux.HandleFunc("DELETE /api/reminders/{id}", s.handleDeleteReminder)
	mux.HandleFunc("GET /api/chat_history", s.handleChatHistory)
	mux.HandleFunc("GET /api/notifications", s.handleNotifications)
	return s.authMiddleware(mux)
}

// authMiddleware checks the Bearer token when one is configured.
// Health stays open for probes.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.APIToken == "" || r.URL.Path == "/api/health" {
			next.ServeHTTP(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+s.cfg.APIToken {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleProcess is the main entry: utterance in, NDJSON result stream
// out. One JSON object per task result, written as each completes.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UID  string `json:"uid"`
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no text provided"})
		return
	}
	if req.UID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no uid provided"})
		return
	}

	ctx := r.Context()
	classified, err := s.classifier.Classify(ctx, req.Text)
	if err != nil {
		// Recovered by the parser's fallback: the whole query becomes one
		// chat task.
		logWarn("classification failed", "error", err)
		classified = ""
	}
	tasks := parseTasks(classified, req.Text)
	logInfo("utterance dispatched", "owner", req.UID, "tasks", len(tasks))

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	enc := json.NewEncoder(w)
	for res := range s.dispatcher.Dispatch(ctx, req.UID, tasks) {
		if err := enc.Encode(res); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func (s *Server) handleListReminders(w http.ResponseWriter, r *http.Request) {
	uid := r.URL.Query().Get("uid")
	if uid == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no uid provided"})
		return
	}
	list, err := s.reminders.List(uid)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if list == nil {
		list = []Reminder{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleAddReminder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UID string `json:"uid"`
		Reminder
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if req.UID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no uid provided"})
		return
	}
	created, err := s.reminders.AddFromStructured(req.UID, req.Reminder)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, created)
}

func (s *Server) handleUpdateReminder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid reminder id"})
		return
	}
	var req struct {
		UID string `json:"uid"`
		ReminderPatch
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if req.UID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no uid provided"})
		return
	}
	if err := s.reminders.Update(req.UID, id, req.ReminderPatch); err != nil {
		status := http.StatusInternalServerError
		if err == errNotFound {
			status = http.StatusNotFound
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleDeleteReminder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid reminder id"})
		return
	}
	uid := r.URL.Query().Get("uid")
	if uid == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no uid provided"})
		return
	}
	if err := s.reminders.Delete(uid, id); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	uid := r.URL.Query().Get("uid")
	if uid == "" {
		writeJSON(w, http.StatusOK, map[string]any{"history": []ChatMessage{}})
		return
	}
	history, err := s.chatLog.ChatHistory(uid, 50)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if history == nil {
		history = []ChatMessage{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

// handleNotifications drains queued reminder notifications for the
// client to speak.
func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	uid := r.URL.Query().Get("uid")
	if uid == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no uid provided"})
		return
	}
	texts := s.notifyCh.Drain(uid)
	if texts == nil {
		texts = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": texts})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
