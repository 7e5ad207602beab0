package transport

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"pulsex/errors"
	"pulsex/ratelimit"
	"pulsex/services"
	"pulsex/session"
)

const accessTokenCookie = "access_token"

// Handler exposes the HTTP surface: credential endpoints, a health probe
// and the WebSocket upgrade. Everything after the upgrade belongs to the
// session dispatcher.
type Handler struct {
	log            *slog.Logger
	authService    services.IAuthService
	limiter        ratelimit.ILimiter
	dispatcher     *session.Dispatcher
	upgrader       websocket.Upgrader
	sendBufferSize int
	cookieMaxAge   time.Duration
}

func NewHandler(
	log *slog.Logger,
	authService services.IAuthService,
	limiter ratelimit.ILimiter,
	dispatcher *session.Dispatcher,
	sendBufferSize int,
	cookieMaxAge time.Duration,
	allowedOrigin string,
) *Handler {
	return &Handler{
		log:         log,
		authService: authService,
		limiter:     limiter,
		dispatcher:  dispatcher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1 << 10,
			WriteBufferSize: 1 << 10,
			CheckOrigin:     originChecker(allowedOrigin),
		},
		sendBufferSize: sendBufferSize,
		cookieMaxAge:   cookieMaxAge,
	}
}

func originChecker(allowed string) func(*http.Request) bool {
	if allowed == "" || allowed == "*" {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || origin == allowed
	}
}

func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.HandleFunc("/auth/login", h.login).Methods(http.MethodPost)
	r.HandleFunc("/auth/register", h.register).Methods(http.MethodPost)
	r.HandleFunc("/auth/logout", h.logout).Methods(http.MethodPost)
	r.HandleFunc("/ws", h.serveWS).Methods(http.MethodGet)
	return r
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type credentialsRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName,omitempty"`
	Password    string `json:"password"`
}

// login exchanges credentials for the access token cookie. The attempt
// counter is keyed by username and caller address together, so a single
// address cannot burn a user's whole budget from afar, and a single user
// cannot spray from many addresses for free.
func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	key := req.Username + ":" + clientIP(r)
	outcome, err := h.limiter.Consume(r.Context(), ratelimit.ScopeLogin, key)
	if err != nil {
		h.log.Warn("login limiter degraded", "error", err)
	}
	if !outcome.Allowed {
		w.Header().Set("Retry-After", strconv.FormatInt(int64(outcome.RetryAfter.Seconds()+0.5), 10))
		writeError(w, http.StatusTooManyRequests, "too many login attempts")
		return
	}

	token, err := h.authService.Login(req.Username, req.Password)
	if err != nil {
		h.log.Info("login refused", "username", req.Username)
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	h.setAuthCookie(w, token)
	writeJSON(w, http.StatusOK, map[string]string{"status": "authenticated"})
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	token, err := h.authService.Register(req.Username, req.DisplayName, req.Password)
	switch {
	case stderrors.Is(err, errors.ErrUserAlreadyExists):
		writeError(w, http.StatusConflict, "username already taken")
		return
	case stderrors.Is(err, errors.ErrInvalidPassword):
		writeError(w, http.StatusBadRequest, "invalid registration request")
		return
	case err != nil:
		h.log.Error("registration failed", "error", err)
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	h.setAuthCookie(w, token)
	writeJSON(w, http.StatusCreated, map[string]string{"status": "registered"})
}

func (h *Handler) logout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessTokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// serveWS upgrades the connection, then hands it to the dispatcher. A
// failed verification closes the socket before any protocol event is
// written; the client never sees a welcome it cannot trust.
func (h *Handler) serveWS(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("upgrade failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn := newConn(ws, h.sendBufferSize, h.log)
	sess, err := h.dispatcher.Open(ctx, token, conn)
	if err != nil {
		h.log.Info("connection refused", "error", err)
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "authentication failed"),
			time.Now().Add(writeWait))
		_ = ws.Close()
		return
	}

	go conn.writePump()
	conn.readPump(ctx, sess.Handle)

	// Peer is gone: cancel in-flight handling, then release the session
	// before draining the write side.
	cancel()
	sess.Close()
	conn.close()
}

// bearerToken prefers the auth cookie and falls back to the
// Authorization header for non-browser clients.
func bearerToken(r *http.Request) string {
	if c, err := r.Cookie(accessTokenCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

func (h *Handler) setAuthCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessTokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.cookieMaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
