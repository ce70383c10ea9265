// Package api exposes the engine and its collaborators to the UI
// process as named request/response pairs over local HTTP/JSON. Each
// endpoint mirrors one operation the UI can invoke; all requests are
// POSTs with a JSON body, all responses are JSON.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/nexusmail/nexusmail/internal/ai"
	"github.com/nexusmail/nexusmail/internal/config"
	"github.com/nexusmail/nexusmail/internal/contacts"
	"github.com/nexusmail/nexusmail/internal/mail"
	"github.com/nexusmail/nexusmail/internal/store"
	"github.com/nexusmail/nexusmail/internal/watcher"
)

// Router wires engine operations, AI, drafts, contacts, and config
// behind HTTP handlers.
type Router struct {
	engine   *mail.Engine
	ai       *ai.Service
	store    store.Store
	contacts *contacts.Service
	cfg      *config.Manager
	watcher  *watcher.Watcher
	log      *logrus.Entry
}

// New creates a router. The watcher may be nil when background sync
// is disabled.
func New(
	engine *mail.Engine,
	aiSvc *ai.Service,
	s store.Store,
	contactsSvc *contacts.Service,
	cfg *config.Manager,
	w *watcher.Watcher,
) *Router {
	return &Router{
		engine:   engine,
		ai:       aiSvc,
		store:    s,
		contacts: contactsSvc,
		cfg:      cfg,
		watcher:  w,
		log:      logrus.WithField("pkg", "api"),
	}
}

// Handler returns the HTTP handler for all router operations.
func (r *Router) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /email/connect", r.handleConnect)
	mux.HandleFunc("POST /email/fetch", r.handleFetch)
	mux.HandleFunc("POST /email/syncNew", r.handleSyncNew)
	mux.HandleFunc("POST /email/send", r.handleSend)
	mux.HandleFunc("POST /email/getFolders", r.handleGetFolders)
	mux.HandleFunc("POST /email/move", r.handleMove)
	mux.HandleFunc("POST /email/createFolder", r.handleCreateFolder)

	mux.HandleFunc("POST /ai/summarize", r.handleSummarize)
	mux.HandleFunc("POST /ai/improve", r.handleImprove)
	mux.HandleFunc("POST /ai/outlines", r.handleOutlines)
	mux.HandleFunc("POST /ai/chat", r.handleChat)
	mux.HandleFunc("POST /ai/setConfig", r.handleSetAIConfig)

	mux.HandleFunc("POST /draft/save", r.handleSaveDraft)
	mux.HandleFunc("POST /draft/get", r.handleGetDraft)

	mux.HandleFunc("POST /config/getAccount", r.handleGetAccount)
	mux.HandleFunc("POST /config/getAI", r.handleGetAI)

	mux.HandleFunc("POST /contact/search", r.handleContactSearch)
	mux.HandleFunc("POST /contact/add", r.handleContactAdd)

	mux.HandleFunc("POST /sync/status", r.handleSyncStatus)
	mux.HandleFunc("POST /sync/refresh", r.handleSyncRefresh)

	return mux
}

type connectRequest struct {
	User string `json:"user"`
	Pass string `json:"pass"`
	Host string `json:"host"`
	Port int    `json:"port"`
	TLS  *bool  `json:"tls,omitempty"`
}

func (r *Router) handleConnect(w http.ResponseWriter, req *http.Request) {
	var body connectRequest
	if !decode(w, req, &body) {
		return
	}

	creds := mail.Credentials{
		User:     body.User,
		Password: body.Pass,
		Host:     body.Host,
		Port:     body.Port,
		TLS:      body.TLS == nil || *body.TLS,
	}

	if _, err := r.engine.Connect(req.Context(), creds); err != nil {
		writeError(w, err)
		return
	}

	// Persist the account only after a successful connection, the
	// password going to the keyring.
	acc := config.AccountConfig{
		User: creds.User,
		Host: creds.Host,
		Port: creds.Port,
		TLS:  creds.TLS,
	}
	if err := r.cfg.SaveAccount(acc, creds.Password); err != nil {
		r.log.WithError(err).Warn("account config not persisted")
	}

	writeJSON(w, map[string]bool{"success": true})
}

type fetchRequest struct {
	Limit   int    `json:"limit"`
	Mailbox string `json:"mailbox"`
}

func (r *Router) handleFetch(w http.ResponseWriter, req *http.Request) {
	var body fetchRequest
	if !decode(w, req, &body) {
		return
	}

	msgs, err := r.engine.FetchRecent(req.Context(), r.engine.Current(), body.Limit, body.Mailbox)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, msgs)
}

type syncNewRequest struct {
	LastUID string `json:"lastUid"`
	Mailbox string `json:"mailbox"`
}

func (r *Router) handleSyncNew(w http.ResponseWriter, req *http.Request) {
	var body syncNewRequest
	if !decode(w, req, &body) {
		return
	}

	msgs, err := r.engine.SyncSince(req.Context(), r.engine.Current(), body.LastUID, body.Mailbox)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, msgs)
}

type sendRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (r *Router) handleSend(w http.ResponseWriter, req *http.Request) {
	var body sendRequest
	if !decode(w, req, &body) {
		return
	}

	if err := r.engine.SendMessage(req.Context(), body.To, body.Subject, body.Body); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]bool{"success": true})
}

func (r *Router) handleGetFolders(w http.ResponseWriter, req *http.Request) {
	folders, err := r.engine.ListFolders(req.Context(), r.engine.Current())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, folders)
}

type moveRequest struct {
	UID    string `json:"uid"`
	Target string `json:"target"`
	Source string `json:"source"`
}

func (r *Router) handleMove(w http.ResponseWriter, req *http.Request) {
	var body moveRequest
	if !decode(w, req, &body) {
		return
	}

	uid, err := strconv.ParseUint(body.UID, 10, 32)
	if err != nil {
		writeStatus(w, http.StatusBadRequest, "invalid_argument", "uid must be a non-negative integer")
		return
	}

	if err := r.engine.MoveMessage(req.Context(), r.engine.Current(), uint32(uid), body.Target, body.Source); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]bool{"success": true})
}

type createFolderRequest struct {
	Name string `json:"name"`
}

func (r *Router) handleCreateFolder(w http.ResponseWriter, req *http.Request) {
	var body createFolderRequest
	if !decode(w, req, &body) {
		return
	}

	if err := r.engine.CreateFolder(req.Context(), r.engine.Current(), body.Name); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]bool{"success": true})
}

type summarizeRequest struct {
	Content string `json:"content"`
}

func (r *Router) handleSummarize(w http.ResponseWriter, req *http.Request) {
	var body summarizeRequest
	if !decode(w, req, &body) {
		return
	}
	writeJSON(w, r.ai.Summarize(req.Context(), body.Content))
}

type improveRequest struct {
	Text string `json:"text"`
	Tone string `json:"tone"`
}

func (r *Router) handleImprove(w http.ResponseWriter, req *http.Request) {
	var body improveRequest
	if !decode(w, req, &body) {
		return
	}
	writeJSON(w, map[string]string{"text": r.ai.Improve(req.Context(), body.Text, body.Tone)})
}

type outlinesRequest struct {
	Context string `json:"context"`
}

func (r *Router) handleOutlines(w http.ResponseWriter, req *http.Request) {
	var body outlinesRequest
	if !decode(w, req, &body) {
		return
	}

	outlines := r.ai.GenerateOutlines(req.Context(), body.Context)
	if outlines == nil {
		outlines = []string{}
	}
	writeJSON(w, outlines)
}

type chatRequest struct {
	Prompt string `json:"prompt"`
}

func (r *Router) handleChat(w http.ResponseWriter, req *http.Request) {
	var body chatRequest
	if !decode(w, req, &body) {
		return
	}
	writeJSON(w, map[string]string{"reply": r.ai.Chat(req.Context(), body.Prompt)})
}

func (r *Router) handleSetAIConfig(w http.ResponseWriter, req *http.Request) {
	var body ai.Config
	if !decode(w, req, &body) {
		return
	}

	r.ai.SetConfig(body)
	err := r.cfg.SaveAI(config.AIConfig{BaseURL: body.BaseURL, Model: body.Model}, body.APIKey)
	if err != nil {
		r.log.WithError(err).Warn("AI config not persisted")
	}
	writeJSON(w, map[string]bool{"success": true})
}

func (r *Router) handleSaveDraft(w http.ResponseWriter, req *http.Request) {
	var draft store.Draft
	if !decode(w, req, &draft) {
		return
	}

	if err := r.store.SaveDraft(req.Context(), draft); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]bool{"success": true})
}

type getDraftRequest struct {
	ID string `json:"id"`
}

func (r *Router) handleGetDraft(w http.ResponseWriter, req *http.Request) {
	var body getDraftRequest
	if !decode(w, req, &body) {
		return
	}

	draft, err := r.store.GetDraft(req.Context(), body.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, draft)
}

func (r *Router) handleGetAccount(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, r.cfg.Config().Account)
}

func (r *Router) handleGetAI(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, r.cfg.Config().AI)
}

type contactSearchRequest struct {
	Query string `json:"query"`
}

func (r *Router) handleContactSearch(w http.ResponseWriter, req *http.Request) {
	var body contactSearchRequest
	if !decode(w, req, &body) {
		return
	}

	results, err := r.contacts.Search(req.Context(), body.Query)
	if err != nil {
		writeError(w, err)
		return
	}
	if results == nil {
		results = []store.Contact{}
	}
	writeJSON(w, results)
}

type contactAddRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (r *Router) handleContactAdd(w http.ResponseWriter, req *http.Request) {
	var body contactAddRequest
	if !decode(w, req, &body) {
		return
	}

	if err := r.contacts.Add(req.Context(), body.Name, body.Email); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]bool{"success": true})
}

func (r *Router) handleSyncStatus(w http.ResponseWriter, _ *http.Request) {
	if r.watcher == nil {
		writeStatus(w, http.StatusNotFound, "sync_disabled", "background sync is not running")
		return
	}
	writeJSON(w, r.watcher.Status())
}

func (r *Router) handleSyncRefresh(w http.ResponseWriter, _ *http.Request) {
	if r.watcher == nil {
		writeStatus(w, http.StatusNotFound, "sync_disabled", "background sync is not running")
		return
	}
	r.watcher.Refresh()
	writeJSON(w, map[string]bool{"success": true})
}

// decode parses the request body into dst, writing a 400 on failure.
func decode(w http.ResponseWriter, req *http.Request, dst any) bool {
	if err := json.NewDecoder(req.Body).Decode(dst); err != nil {
		writeStatus(w, http.StatusBadRequest, "bad_request", "request body is not valid JSON")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeStatus(w http.ResponseWriter, status int, code, message string) {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = message

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps the engine's error taxonomy to HTTP statuses. A
// dead session is a conflict the caller resolves by reconnecting;
// malformed input is the caller's bug; remote rejections surface as
// bad gateway with the cause attached.
func writeError(w http.ResponseWriter, err error) {
	var (
		connErr   *mail.ConnectionError
		cursorErr *mail.InvalidCursorError
		moveErr   *mail.MoveError
		folderErr *mail.FolderError
		sendErr   *mail.SendError
	)

	switch {
	case errors.Is(err, mail.ErrNotConnected):
		writeStatus(w, http.StatusConflict, "not_connected", err.Error())
	case errors.Is(err, mail.ErrConfigMissing):
		writeStatus(w, http.StatusBadRequest, "config_missing", err.Error())
	case errors.As(err, &cursorErr):
		writeStatus(w, http.StatusBadRequest, "invalid_argument", err.Error())
	case errors.As(err, &connErr):
		writeStatus(w, http.StatusBadGateway, "connection_error", err.Error())
	case errors.As(err, &moveErr):
		writeStatus(w, http.StatusBadGateway, "move_error", err.Error())
	case errors.As(err, &folderErr):
		writeStatus(w, http.StatusBadGateway, "folder_error", err.Error())
	case errors.As(err, &sendErr):
		writeStatus(w, http.StatusBadGateway, "send_error", err.Error())
	default:
		writeStatus(w, http.StatusInternalServerError, "internal", err.Error())
	}
}
