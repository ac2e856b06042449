// Package webhook is the private channel between Adam and his companion
// bot. It runs a small HTTP server for inbound coordination messages and a
// single-attempt sender for outbound ones. Both directions authenticate with
// a shared secret carried in the JSON body.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/process"
	"github.com/sirupsen/logrus"

	"github.com/duetbots/adam/internal/logging"
	"github.com/duetbots/adam/internal/persona"
)

// Callback receives inbound companion messages. It runs on its own
// goroutine; the HTTP response does not wait for it.
type Callback func(message string, context map[string]any, messageType string)

// Config wires a Service.
type Config struct {
	Port          string
	CompanionURL  string
	Secret        string
	SelfName      string
	CompanionName string
	Timeout       time.Duration
}

// Service is the webhook transport: inbound server plus outbound sender.
type Service struct {
	cfg     Config
	log     *logrus.Entry
	metrics *Metrics
	bank    *persona.Bank
	client  *http.Client

	callback Callback

	mu           sync.Mutex
	sent         int64
	received     int64
	sendErrors   int64
	lastActivity time.Time

	started time.Time
	server  *http.Server
}

// New creates the transport. Zero-value config fields get the standard
// defaults.
func New(cfg Config, bank *persona.Bank, log *logrus.Entry) *Service {
	if cfg.Port == "" {
		cfg.Port = "3001"
	}
	if cfg.SelfName == "" {
		cfg.SelfName = "adam"
	}
	if cfg.CompanionName == "" {
		cfg.CompanionName = "eve"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}

	s := &Service{
		cfg:     cfg,
		log:     log,
		metrics: NewMetrics(),
		bank:    bank,
		client:  &http.Client{Timeout: cfg.Timeout},
		started: time.Now(),
	}
	return s
}

// OnCompanionMessage registers the inbound dispatch callback.
func (s *Service) OnCompanionMessage(cb Callback) {
	s.callback = cb
}

// Router builds the HTTP routes. Exposed so tests can drive the handlers
// without a listening socket.
func (s *Service) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/webhook/companion", s.handleCompanion).Methods("POST")
	router.HandleFunc("/status", s.handleStatus).Methods("GET")
	router.HandleFunc("/health", s.handleHealth).Methods("GET")
	router.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})).Methods("GET")
	router.Use(s.loggingMiddleware)
	return router
}

// Start begins serving in the background. Listen errors after startup are
// logged, not returned.
func (s *Service) Start() {
	s.server = &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		s.log.WithField("port", s.cfg.Port).Info("webhook server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Error("webhook server stopped")
		}
	}()
}

// Stop shuts the inbound server down.
func (s *Service) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type inboundPayload struct {
	From        string         `json:"from"`
	Message     string         `json:"message"`
	Context     map[string]any `json:"context"`
	MessageType string         `json:"messageType"`
	Secret      string         `json:"secret"`
}

func (s *Service) handleCompanion(w http.ResponseWriter, r *http.Request) {
	var payload inboundPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.metrics.Errors.Inc()
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Processing error"})
		return
	}

	if payload.Secret != s.cfg.Secret {
		s.log.Warn("webhook request with bad secret rejected")
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Unauthorized"})
		return
	}

	if payload.From != s.cfg.CompanionName {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid sender"})
		return
	}

	s.log.WithField("type", payload.MessageType).Infof("companion webhook: %s", logging.Truncate(payload.Message, 120))
	s.metrics.MessagesReceived.Inc()
	s.mu.Lock()
	s.received++
	s.lastActivity = time.Now()
	s.mu.Unlock()

	if s.callback != nil {
		go s.callback(payload.Message, payload.Context, payload.MessageType)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "received",
		"timestamp": time.Now().UnixMilli(),
	})
}

func (s *Service) handleStatus(w http.ResponseWriter, r *http.Request) {
	sent, received, errors, last := s.Stats()

	status := map[string]any{
		"service": s.cfg.SelfName + "-webhook",
		"status":  "online",
		"uptime":  time.Since(s.started).Round(time.Second).String(),
		"stats": map[string]any{
			"messagesSent":     sent,
			"messagesReceived": received,
			"errors":           errors,
			"lastActivity":     last,
		},
		"companionConnected": s.cfg.CompanionURL != "",
	}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if cpu, err := proc.CPUPercent(); err == nil {
			status["cpuPercent"] = cpu
		}
		if mem, err := proc.MemoryInfo(); err == nil {
			status["rssBytes"] = mem.RSS
		}
	}

	writeJSON(w, http.StatusOK, status)
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": s.cfg.SelfName + "-webhook",
	})
}

// Send delivers one message to the companion webhook. One attempt, no retry;
// the caller decides what a failure means.
func (s *Service) Send(ctx context.Context, message string, msgContext map[string]any, messageType string) error {
	if s.cfg.CompanionURL == "" {
		return fmt.Errorf("no companion URL configured")
	}

	merged := map[string]any{
		"confusionLevel": s.bank.ConfusionLevel(message),
		"timestamp":      time.Now().UnixMilli(),
	}
	for k, v := range msgContext {
		merged[k] = v
	}

	payload := map[string]any{
		"from":        s.cfg.SelfName,
		"message":     message,
		"context":     merged,
		"messageType": messageType,
		"secret":      s.cfg.Secret,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.CompanionURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Adam-Bot-Webhook/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		s.recordSendError()
		return fmt.Errorf("companion webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.recordSendError()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("companion webhook status %d: %s", resp.StatusCode, string(respBody))
	}

	s.metrics.MessagesSent.Inc()
	s.mu.Lock()
	s.sent++
	s.lastActivity = time.Now()
	s.mu.Unlock()

	s.log.WithField("type", messageType).Infof("sent to companion: %s", logging.Truncate(message, 120))
	return nil
}

func (s *Service) recordSendError() {
	s.metrics.Errors.Inc()
	s.mu.Lock()
	s.sendErrors++
	s.mu.Unlock()
}

// Stats snapshots the traffic counters for status reporting.
func (s *Service) Stats() (sent, received, errors int64, lastActivity time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent, s.received, s.sendErrors, s.lastActivity
}

func (s *Service) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start),
			"remote":   r.RemoteAddr,
		}).Debug("HTTP request processed")
	})
}

func writeJSON(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
