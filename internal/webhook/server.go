// Package webhook receives Helius Enhanced Webhook pushes. The provider
// POSTs parsed transactions whenever a watched wallet is involved, which
// replaces almost all polling credit spend. The engine's signature dedup
// makes delivery overlap with the polling path harmless.
package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"smartmoney-monitor/internal/engine"
	"smartmoney-monitor/internal/helius"
)

// maxBodyBytes bounds a webhook payload. Helius batches at most 100
// enhanced transactions per delivery.
const maxBodyBytes = 16 << 20

// TransactionSink consumes pushed transactions. Satisfied by
// engine.Engine.
type TransactionSink interface {
	ProcessTransaction(ctx context.Context, tx *helius.EnhancedTransaction) engine.Outcome
	TrackedCount() int
}

// Server handles webhook deliveries and the health endpoint.
type Server struct {
	sink    TransactionSink
	secret  string
	enabled bool
	logger  *log.Logger

	started time.Time

	mu        sync.Mutex
	received  int
	processed int
}

// Options contains configuration for creating a Server.
type Options struct {
	Sink TransactionSink
	// Secret, when set, must match the Authorization header of every
	// delivery verbatim.
	Secret string
	// Enabled mounts the delivery route. When false only /health is
	// served and the service runs on polling alone.
	Enabled bool
	Logger  *log.Logger
}

// NewServer creates a webhook server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		sink:    opts.Sink,
		secret:  opts.Secret,
		enabled: opts.Enabled,
		logger:  logger,
		started: time.Now(),
	}
}

// Handler returns the route mux for the webhook server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	if s.enabled {
		mux.HandleFunc("/webhook", s.handleWebhook)
	}
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// webhookResponse acknowledges a delivery.
type webhookResponse struct {
	Processed int `json:"processed"`
}

// handleWebhook accepts one enhanced transaction or an array of them.
// Transactions that do not touch a tracked wallet are acknowledged and
// dropped; an error response would only make the provider retry.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.secret != "" && r.Header.Get("Authorization") != s.secret {
		s.logger.Printf("[webhook] rejected delivery with bad authorization")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	raw, err := io.ReadAll(body)
	if err != nil {
		http.Error(w, "body too large", http.StatusRequestEntityTooLarge)
		return
	}

	txs, err := decodePayload(raw)
	if err != nil {
		s.logger.Printf("[webhook] bad payload: %v", err)
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	processed := 0
	for _, tx := range txs {
		if tx == nil {
			continue
		}
		outcome := s.sink.ProcessTransaction(r.Context(), tx)
		if outcome.Accepted || outcome.Reason != engine.ReasonNoTrackedWallet {
			processed++
		}
	}

	s.mu.Lock()
	s.received += len(txs)
	s.processed += processed
	s.mu.Unlock()

	if processed > 0 {
		s.logger.Printf("[webhook] processed %d/%d pushed transactions", processed, len(txs))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(webhookResponse{Processed: processed})
}

// decodePayload accepts both delivery shapes: a JSON array of enhanced
// transactions or a single bare object.
func decodePayload(raw []byte) ([]*helius.EnhancedTransaction, error) {
	var txs []*helius.EnhancedTransaction
	if err := json.Unmarshal(raw, &txs); err == nil {
		return txs, nil
	}

	var single helius.EnhancedTransaction
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, err
	}
	return []*helius.EnhancedTransaction{&single}, nil
}

// healthResponse is the JSON response for the /health endpoint.
type healthResponse struct {
	Status    string `json:"status"`
	Wallets   int    `json:"wallets"`
	Received  int    `json:"received"`
	Processed int    `json:"processed"`
	Uptime    string `json:"uptime"`
	Mode      string `json:"mode"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	received, processed := s.received, s.processed
	s.mu.Unlock()

	mode := "polling"
	if s.enabled {
		mode = "webhook"
	}
	resp := healthResponse{
		Status:    "ok",
		Wallets:   s.sink.TrackedCount(),
		Received:  received,
		Processed: processed,
		Uptime:    time.Since(s.started).String(),
		Mode:      mode,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
