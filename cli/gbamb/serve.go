package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"gbalink/link"
	"gbalink/multiboot"
	"gbalink/util"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func serveCmd(o *options) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept images over HTTP and send them to the console",
		Long: `Serve an HTTP API for the configured link:

  POST /multiboot   body is the image; responds with the transfer report
  GET  /ports       devices every link driver can reach
  GET  /metrics     Prometheus metrics

Only one transfer runs at a time; concurrent requests get 409 Conflict.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("listen") {
				o.cfg.Server.Listen = listen
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

			s := newServer(o.open, o.cfg.Options(), reg)
			log.Printf("gbamb: serving on %s\n", o.cfg.Server.Listen)
			srv := &http.Server{
				Addr:              o.cfg.Server.Listen,
				Handler:           s.routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			return srv.ListenAndServe()
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "address to listen on (default from config, :27638)")
	return cmd
}

type server struct {
	open func() (link.ByteLink, error)
	opts []multiboot.Option

	reg     *prometheus.Registry
	metrics *multiboot.Metrics

	// the process drives a single link:
	mu sync.Mutex
}

func newServer(open func() (link.ByteLink, error), opts []multiboot.Option, reg *prometheus.Registry) *server {
	return &server{
		open:    open,
		opts:    opts,
		reg:     reg,
		metrics: multiboot.NewMetrics(reg),
	}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/multiboot", s.handleMultiboot)
	r.Get("/ports", s.handlePorts)
	r.Handle("/metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{}))
	return r
}

type transferResponse struct {
	State      string   `json:"state"`
	Reason     string   `json:"reason,omitempty"`
	Error      string   `json:"error,omitempty"`
	ImageSize  int      `json:"imageSize"`
	BytesSent  int      `json:"bytesSent"`
	Checksum   string   `json:"checksum,omitempty"`
	DurationMs int64    `json:"durationMs"`
	Events     []string `json:"events"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("gbamb: encode response: %v\n", err)
	}
}

func httpError(w http.ResponseWriter, status int, format string, args ...interface{}) {
	writeJSON(w, status, map[string]string{"error": fmt.Sprintf(format, args...)})
}

func (s *server) handleMultiboot(w http.ResponseWriter, r *http.Request) {
	image, err := io.ReadAll(http.MaxBytesReader(w, r.Body, multiboot.MaxImageSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpError(w, http.StatusRequestEntityTooLarge, "%v", multiboot.ErrImageTooLarge)
			return
		}
		httpError(w, http.StatusBadRequest, "read body: %v", err)
		return
	}
	if err = multiboot.ValidateImage(image); err != nil {
		httpError(w, http.StatusBadRequest, "%v", err)
		return
	}

	if !s.mu.TryLock() {
		httpError(w, http.StatusConflict, "%v", link.ErrLinkBusy)
		return
	}
	defer s.mu.Unlock()

	l, err := s.open()
	if err != nil {
		httpError(w, http.StatusServiceUnavailable, "open link: %v", err)
		return
	}
	defer l.Close()

	reqID := middleware.GetReqID(r.Context())
	events := &util.CommitLogger{Committer: func(p []byte) {
		_, _ = log.Writer().Write(p)
	}}
	defer events.Commit()

	opts := append(append([]multiboot.Option(nil), s.opts...),
		multiboot.WithMetrics(s.metrics),
		multiboot.WithEventSink(func(ev multiboot.Event) {
			events.Printf("%s gbamb: [%s] %s\n", ev.Time.UTC().Format(logTimeFormat), reqID, ev)
		}),
	)
	res, err := multiboot.Run(r.Context(), l, image, opts...)

	rsp := transferResponse{
		State:      res.State.String(),
		ImageSize:  res.ImageSize,
		BytesSent:  res.BytesSent,
		DurationMs: res.Duration.Milliseconds(),
	}
	for _, ev := range res.Report.Events() {
		rsp.Events = append(rsp.Events, ev.String())
	}

	if err != nil {
		rsp.Error = err.Error()
		var merr *multiboot.Error
		if errors.As(err, &merr) {
			rsp.Reason = merr.Reason.String()
		}
		writeJSON(w, http.StatusBadGateway, rsp)
		return
	}

	rsp.Checksum = fmt.Sprintf("%04x", res.Checksum)
	writeJSON(w, http.StatusOK, rsp)
}

func (s *server) handlePorts(w http.ResponseWriter, r *http.Request) {
	ports := detectPorts()
	if ports == nil {
		ports = []port{}
	}
	writeJSON(w, http.StatusOK, ports)
}
