package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nuid"

	"github.com/cosmocargo/project/internal/contracts"
	platformauth "github.com/cosmocargo/project/internal/platform/auth"
	"github.com/cosmocargo/project/internal/platform/env"
	"github.com/cosmocargo/project/internal/platform/metrics"
	"github.com/cosmocargo/project/internal/platform/natsutil"
)

var streamSubscribers = metrics.NewGauge(metrics.Opts{
	Name: "chaos_stream_subscribers",
	Help: "Currently connected event feed subscribers.",
})

func init() {
	metrics.Default.MustRegister(streamSubscribers)
}

func main() {
	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	streamerAddr := env.String("EVENT_STREAMER_ADDR", env.DefaultStreamerAddr)
	jwtSecret := env.String("JWT_SECRET", "dev-insecure-change-me")
	shutdownTimeout := env.Duration("SHUTDOWN_TIMEOUT", 10*time.Second)
	heartbeat := env.Duration("SSE_HEARTBEAT", 25*time.Second)

	tokenManager := platformauth.NewManager(jwtSecret, env.Duration("JWT_TTL", 24*time.Hour))

	client, err := natsutil.ConnectJetStreamWithRetry(env.String("NATS_URL", env.DefaultNATSURL), env.Duration("NATS_CONNECT_TIMEOUT", 90*time.Second))
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	feed := newEventFeed(client.JS)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if client.Conn.Status() != nats.CONNECTED {
			http.Error(w, "nats is not connected: "+client.Conn.Status().String(), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", metrics.DefaultHandler())

	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		token := platformauth.BearerToken(r.Header.Get("Authorization"))
		if token == "" {
			token = strings.TrimSpace(r.URL.Query().Get("token"))
		}
		if token == "" {
			http.Error(w, "token is required", http.StatusUnauthorized)
			return
		}
		claims, err := tokenManager.Parse(token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		if claims.Role != platformauth.RoleAdmin {
			http.Error(w, "admin role required", http.StatusForbidden)
			return
		}

		shipmentFilter := strings.TrimSpace(r.URL.Query().Get("shipment_id"))

		eventCh, unsubscribe, err := feed.Subscribe()
		if err != nil {
			http.Error(w, "stream subscription failed", http.StatusInternalServerError)
			return
		}
		defer unsubscribe()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		fmt.Fprint(w, "event: connected\ndata: {}\n\n")
		flusher.Flush()

		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
				fmt.Fprint(w, ": keep-alive\n\n")
				flusher.Flush()
			case event := <-eventCh:
				if shipmentFilter != "" && event.ShipmentID != shipmentFilter {
					continue
				}
				payload, err := json.Marshal(event)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "event: chaos\ndata: %s\n\n", payload)
				flusher.Flush()
			}
		}
	})

	server := &http.Server{
		Addr:              streamerAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Keep WriteTimeout unset for long-lived SSE streams.
		IdleTimeout: 120 * time.Second,
	}

	fmt.Printf("Event Streamer listening on %s\n", streamerAddr)
	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		log.Fatal(err)
	case <-runCtx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("event-streamer graceful shutdown failed: %v", err)
	}
}

// eventFeed fans incoming chaos events out to every connected SSE
// subscriber. One NATS subscription is shared by all of them and torn
// down when the last one leaves. Delivery is at most once: a slow
// subscriber's full buffer drops the event rather than stalling the
// rest, and new subscribers only see events published after they
// connect.
type eventFeed struct {
	js nats.JetStreamContext

	mu          sync.Mutex
	sub         *nats.Subscription
	subscribers map[string]chan contracts.EventApplied
}

func newEventFeed(js nats.JetStreamContext) *eventFeed {
	return &eventFeed{
		js:          js,
		subscribers: map[string]chan contracts.EventApplied{},
	}
}

func (f *eventFeed) Subscribe() (<-chan contracts.EventApplied, func(), error) {
	ch := make(chan contracts.EventApplied, 64)
	subID := nuid.Next()

	f.mu.Lock()
	f.subscribers[subID] = ch
	streamSubscribers.Set(float64(len(f.subscribers)))
	f.mu.Unlock()

	if err := f.ensureSubscription(); err != nil {
		f.remove(subID)
		return nil, nil, err
	}

	return ch, func() { f.remove(subID) }, nil
}

func (f *eventFeed) remove(subID string) {
	var sub *nats.Subscription

	f.mu.Lock()
	delete(f.subscribers, subID)
	streamSubscribers.Set(float64(len(f.subscribers)))
	if len(f.subscribers) == 0 {
		sub = f.sub
		f.sub = nil
	}
	f.mu.Unlock()

	if sub != nil {
		_ = sub.Unsubscribe()
	}
}

func (f *eventFeed) ensureSubscription() error {
	f.mu.Lock()
	if f.sub != nil {
		f.mu.Unlock()
		return nil
	}
	f.mu.Unlock()

	if f.js == nil {
		return fmt.Errorf("jetstream is not configured")
	}

	sub, err := f.js.Subscribe("chaos.event.>", func(msg *nats.Msg) {
		var event contracts.EventApplied
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			return
		}
		f.broadcast(event)
	}, nats.DeliverNew())
	if err != nil {
		return err
	}

	f.mu.Lock()
	if f.sub != nil {
		f.mu.Unlock()
		_ = sub.Unsubscribe()
		return nil
	}
	f.sub = sub
	f.mu.Unlock()
	return nil
}

func (f *eventFeed) broadcast(event contracts.EventApplied) {
	f.mu.Lock()
	subs := make([]chan contracts.EventApplied, 0, len(f.subscribers))
	for _, ch := range f.subscribers {
		subs = append(subs, ch)
	}
	f.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- event:
		default:
		}
	}
}
