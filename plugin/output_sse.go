package plugin

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/vearne/netvine/graph"
	"github.com/vearne/netvine/metrics"
	"github.com/vearne/netvine/protocol"
	slog "github.com/vearne/simplelog"
)

const sseKeepAlive = 30 * time.Second

// sseClient is one connected /events stream
type sseClient struct {
	id     string
	events chan []byte
}

// SSEOutput serves the graph over HTTP:
//
//	/events   Server-Sent Events, one "snapshot" event per change
//	/graph    the latest snapshot
//	/metrics  Prometheus metrics
type SSEOutput struct {
	codec    protocol.Codec
	listener net.Listener
	server   *http.Server

	mu      sync.RWMutex
	clients map[*sseClient]struct{}
	latest  []byte

	register   chan *sseClient
	unregister chan *sseClient
	broadcast  chan []byte
	quit       chan struct{}
	closeOnce  sync.Once
}

// NewSSEOutput starts listening on addr right away so a bad address is
// reported here.
func NewSSEOutput(addr string, codec string, registry *metrics.Registry) (*SSEOutput, error) {
	var o SSEOutput
	o.codec = protocol.GetCodec(codec)
	if o.codec == nil {
		return nil, errors.Errorf("unknown codec %q, expect one of %v", codec, protocol.CodecNames())
	}
	o.clients = make(map[*sseClient]struct{})
	o.register = make(chan *sseClient)
	o.unregister = make(chan *sseClient)
	o.broadcast = make(chan []byte, 256)
	o.quit = make(chan struct{})

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen %s", addr)
	}
	o.listener = ln

	mux := http.NewServeMux()
	mux.Handle("/events", http.HandlerFunc(o.serveEvents))
	mux.Handle("/graph", http.HandlerFunc(o.serveGraph))
	mux.Handle("/metrics", registry.Handler())
	o.server = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go o.run()
	go func() {
		if err := o.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("[SSE] serve %s:%v", ln.Addr(), err)
		}
	}()
	slog.Info("[SSE] listening on %v", ln.Addr())
	return &o, nil
}

// Addr is the address actually listened on.
func (o *SSEOutput) Addr() string {
	return o.listener.Addr().String()
}

func (o *SSEOutput) run() {
	for {
		select {
		case <-o.quit:
			return

		case client := <-o.register:
			o.mu.Lock()
			o.clients[client] = struct{}{}
			count := len(o.clients)
			o.mu.Unlock()
			slog.Info("[SSE] client connected: %s (total: %d)", client.id, count)

		case client := <-o.unregister:
			o.mu.Lock()
			delete(o.clients, client)
			count := len(o.clients)
			o.mu.Unlock()
			slog.Info("[SSE] client disconnected: %s (total: %d)", client.id, count)

		case msg := <-o.broadcast:
			o.mu.RLock()
			for client := range o.clients {
				select {
				case client.events <- msg:
				default:
					slog.Warn("[SSE] client %s is slow, skipping snapshot", client.id)
				}
			}
			o.mu.RUnlock()
		}
	}
}

// PluginWrite encodes the snapshot once and hands it to every client.
func (o *SSEOutput) PluginWrite(snap *graph.Snapshot) error {
	select {
	case <-o.quit:
		return errors.New("sse output closed")
	default:
	}

	data, err := o.codec.Marshal(snap)
	if err != nil {
		return err
	}
	o.mu.Lock()
	o.latest = data
	o.mu.Unlock()

	select {
	case o.broadcast <- sseMessage(snap.Version, data):
		return nil
	default:
		return errors.New("sse broadcast channel full, snapshot dropped")
	}
}

// ClientCount returns the number of connected clients
func (o *SSEOutput) ClientCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.clients)
}

// sseMessage frames data as one event; multi-line payloads become several
// data fields.
func sseMessage(version uint64, data []byte) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "event: snapshot\nid: %d\n", version)
	for _, line := range bytes.Split(bytes.TrimRight(data, "\n"), []byte{'\n'}) {
		buf.WriteString("data: ")
		buf.Write(line)
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	return buf.Bytes()
}

func (o *SSEOutput) serveEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("X-Accel-Buffering", "no")

	client := &sseClient{id: uuid.NewString(), events: make(chan []byte, 64)}
	select {
	case o.register <- client:
	case <-o.quit:
		return
	}
	defer func() {
		select {
		case o.unregister <- client:
		case <-o.quit:
		}
	}()

	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(sseKeepAlive)
	defer ticker.Stop()

	for {
		select {
		case msg := <-client.events:
			if _, err := w.Write(msg); err != nil {
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := fmt.Fprintf(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		case <-o.quit:
			return
		}
	}
}

func (o *SSEOutput) serveGraph(w http.ResponseWriter, _ *http.Request) {
	o.mu.RLock()
	data := o.latest
	o.mu.RUnlock()

	if data == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", o.codec.ContentType())
	w.Write(data)
}

func (o *SSEOutput) Close() error {
	var err error
	o.closeOnce.Do(func() {
		close(o.quit)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = o.server.Shutdown(ctx)
	})
	return err
}

func (o *SSEOutput) String() string {
	return "sse"
}
