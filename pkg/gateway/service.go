package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"showbot/pkg/bus"
	"showbot/pkg/channel"
	"showbot/pkg/commands"
	"showbot/pkg/config"
	"showbot/pkg/dispatch"
	"showbot/pkg/relay"
	"showbot/pkg/ringlog"
)

// Service owns the process-scoped state (ring log, dedup window, inbound
// queue) and runs the transport, the dispatch loop and the status server.
type Service struct {
	cfg        *config.Config
	log        *slog.Logger
	channel    channel.Adapter
	bus        *bus.MessageBus
	journal    *ringlog.Log
	relay      *relay.Relay
	dispatcher *dispatch.Dispatcher

	mu           sync.RWMutex
	startedAt    time.Time
	channelState channelState
	dispatched   uint64
}

type channelState struct {
	Running bool   `json:"running"`
	Error   string `json:"error,omitempty"`
}

type statusResponse struct {
	Status          string       `json:"status"`
	UptimeSeconds   int64        `json:"uptime_seconds"`
	Channel         string       `json:"channel"`
	ChannelState    channelState `json:"channel_state"`
	EventsHandled   uint64       `json:"events_handled"`
	PendingEvents   int          `json:"pending_events"`
	RingLogEntries  int          `json:"ring_log_entries"`
	RingLogCapacity int          `json:"ring_log_capacity"`
	DedupKeys       int          `json:"dedup_keys"`
}

// NewService wires the ring log, relay, command router and dispatcher
// around one transport adapter.
func NewService(cfg *config.Config, adapter channel.Adapter, log *slog.Logger) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if adapter == nil {
		return nil, errors.New("channel adapter is required")
	}
	if log == nil {
		log = slog.Default()
	}

	startedAt := time.Now().UTC()
	journal := ringlog.New(cfg.RingLog.Capacity)

	orderRelay, err := relay.New(adapter, relay.Options{
		BroadcastChatID: cfg.Relay.BroadcastChatID,
		SendTimeout:     cfg.Relay.SendTimeout(),
		Dedup:           relay.NewDeduper(cfg.Relay.DedupTTL(), cfg.Relay.DedupCapacity),
	}, log)
	if err != nil {
		return nil, fmt.Errorf("initialize relay: %w", err)
	}

	router, err := commands.New(commands.Options{
		WebAppURL: cfg.WebApp.URL,
		Operators: cfg.Operators.AllowFrom,
		Journal:   journal,
		DedupSize: orderRelay.Dedup().Len,
		StartedAt: startedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize command router: %w", err)
	}

	dispatcher, err := dispatch.New(dispatch.Options{
		Journal:     journal,
		Router:      router,
		Relay:       orderRelay,
		Transport:   adapter,
		SendTimeout: cfg.Relay.SendTimeout(),
		MaxInFlight: cfg.Relay.MaxInFlight,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("initialize dispatcher: %w", err)
	}

	return &Service{
		cfg:        cfg,
		log:        log.With("component", "gateway.service"),
		channel:    adapter,
		bus:        bus.NewMessageBus(),
		journal:    journal,
		relay:      orderRelay,
		dispatcher: dispatcher,
		startedAt:  startedAt,
	}, nil
}

// Run blocks until ctx is cancelled or a component fails. Events are taken
// from the queue one at a time so ring log order matches delivery order.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()

	serverErrors := make(chan error, 1)
	go s.runHealthServer(ctx, serverErrors)

	channelErrors := make(chan error, 1)
	s.setChannelState(channelState{Running: true})
	go func() {
		err := s.channel.Run(ctx, s.bus.PublishInbound)
		s.setChannelState(channelState{Running: false, Error: errorString(err)})
		if err != nil && !errors.Is(err, context.Canceled) {
			channelErrors <- fmt.Errorf("run %s channel: %w", s.channel.Name(), err)
		}
	}()

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		s.consume(ctx)
	}()
	defer func() {
		s.bus.Close()
		<-loopDone
		s.dispatcher.Wait()
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-serverErrors:
		return err
	case err := <-channelErrors:
		return err
	}
}

func (s *Service) consume(ctx context.Context) {
	for {
		event, ok := s.bus.ConsumeInbound(ctx)
		if !ok {
			return
		}

		s.dispatcher.Dispatch(ctx, event)

		s.mu.Lock()
		s.dispatched++
		s.mu.Unlock()
	}
}

func (s *Service) runHealthServer(ctx context.Context, errCh chan<- error) {
	addr := s.cfg.Gateway.Host + ":" + strconv.Itoa(s.cfg.Gateway.Port)
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log.Info("Gateway status server started", "address", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errCh <- fmt.Errorf("start status server: %w", err)
	}
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondStatus(w, http.StatusOK, "ok")
}

func (s *Service) handleReady(w http.ResponseWriter, _ *http.Request) {
	statusCode := http.StatusOK
	status := "ready"
	if !s.isReady() {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	s.respondStatus(w, statusCode, status)
}

func (s *Service) respondStatus(w http.ResponseWriter, statusCode int, status string) {
	payload := s.currentStatus(status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("Failed to write status response", "error", err)
	}
}

func (s *Service) currentStatus(status string) statusResponse {
	s.mu.RLock()
	startedAt := s.startedAt
	state := s.channelState
	dispatched := s.dispatched
	s.mu.RUnlock()

	uptime := int64(0)
	if !startedAt.IsZero() {
		uptime = int64(time.Since(startedAt).Seconds())
	}

	return statusResponse{
		Status:          status,
		UptimeSeconds:   uptime,
		Channel:         s.channel.Name(),
		ChannelState:    state,
		EventsHandled:   dispatched,
		PendingEvents:   s.bus.Pending(),
		RingLogEntries:  s.journal.Len(),
		RingLogCapacity: s.journal.Capacity(),
		DedupKeys:       s.relay.Dedup().Len(),
	}
}

func (s *Service) isReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.channelState.Running
}

func (s *Service) setChannelState(state channelState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channelState = state
}

func errorString(err error) string {
	if err == nil {
		return ""
	}

	return strings.TrimSpace(err.Error())
}
