// Recoblocks - Recommendation Candidate Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recoblocks

package services

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/recoblocks/internal/api"
	"github.com/tomtom215/recoblocks/internal/models"
	"github.com/tomtom215/recoblocks/internal/recommend"
	"github.com/tomtom215/recoblocks/internal/tickets"
)

const blocksBody = `{"anchor":{"product_id":"anchor-1","name":"Anchor Serum","brand":"AnchorCo","category":"skincare > serum","price":40},"request_id":"req-1","session_id":"sess-1"}`

// listenerServer serves on a listener bound up front so the test knows the
// address before ListenAndServe runs.
type listenerServer struct {
	srv *http.Server
	ln  net.Listener
}

func (s *listenerServer) ListenAndServe() error {
	return s.srv.Serve(s.ln)
}

func (s *listenerServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// recoSource is a catalog source that signals entered on every call and
// answers once release is closed or its own deadline passes.
type recoSource struct {
	entered chan struct{}
	release chan struct{}
}

func newRecoSource() *recoSource {
	return &recoSource{entered: make(chan struct{}, 8), release: make(chan struct{})}
}

func (s *recoSource) fetch(ctx context.Context, _ models.SourceRequest) (*models.SourceResult, error) {
	select {
	case s.entered <- struct{}{}:
	default:
	}
	select {
	case <-s.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &models.SourceResult{Candidates: []models.Candidate{
		{ProductID: "c1", Name: "Rival Serum", Brand: "RivalCo", Category: "skincare > serum"},
	}}, nil
}

// newRecoServer mounts the reco API on a loopback listener.
func newRecoServer(t *testing.T, src *recoSource) (*listenerServer, string) {
	t.Helper()

	engine, err := recommend.NewEngine(recommend.DefaultConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if err := engine.RegisterSource(recommend.SourceCatalogANN, recommend.SourceFunc(src.fetch)); err != nil {
		t.Fatalf("RegisterSource: %v", err)
	}
	tracking := tickets.NewTrackingStore(time.Hour, zerolog.Nop())
	engine.SetTrackingSink(tracking)

	h, err := api.NewHandler(api.Dependencies{
		Engine:   engine,
		Tickets:  tickets.NewStore(zerolog.Nop()),
		Tracking: tracking,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	mw := api.DefaultChiMiddlewareConfig()
	mw.RateLimitDisabled = true

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{
		Handler:           api.NewRouter(h, mw).SetupChi(),
		ReadHeaderTimeout: time.Second,
	}
	return &listenerServer{srv: srv, ln: ln}, "http://" + ln.Addr().String()
}

func postBlocks(base string) (int, error) {
	resp, err := http.Post(base+"/api/v1/reco/blocks", "application/json", bytes.NewReader([]byte(blocksBody)))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

func waitLive(t *testing.T, base string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(base + "/api/v1/health/live")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("reco API did not become live")
}

func TestNewHTTPServerService_DefaultTimeout(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   time.Duration
		want time.Duration
	}{
		{"zero", 0, DefaultShutdownTimeout},
		{"negative", -5 * time.Second, DefaultShutdownTimeout},
		{"explicit", 3 * time.Second, 3 * time.Second},
	}

	for _, tt := range tests {

		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := NewHTTPServerService(&listenerServer{}, tt.in, zerolog.Nop())
			if svc.shutdownTimeout != tt.want {
				t.Errorf("expected shutdown timeout %v, got %v", tt.want, svc.shutdownTimeout)
			}
			if svc.String() != "http-server" {
				t.Errorf("expected name http-server, got %q", svc.String())
			}
		})
	}
}

func TestHTTPServerService_DrainsInFlightRecoRequest(t *testing.T) {
	t.Parallel()

	src := newRecoSource()
	server, base := newRecoServer(t, src)
	svc := NewHTTPServerService(server, 2*time.Second, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	serveErr := make(chan error, 1)
	go func() { serveErr <- svc.Serve(ctx) }()
	waitLive(t, base)

	type result struct {
		code int
		err  error
	}
	reqDone := make(chan result, 1)
	go func() {
		code, err := postBlocks(base)
		reqDone <- result{code, err}
	}()

	select {
	case <-src.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("blocks request never reached the catalog source")
	}

	cancel()
	time.Sleep(50 * time.Millisecond)
	close(src.release)

	select {
	case res := <-reqDone:
		if res.err != nil || res.code != http.StatusOK {
			t.Errorf("expected in-flight blocks request to finish with 200, got %d, %v", res.code, res.err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("in-flight blocks request did not finish")
	}

	select {
	case err := <-serveErr:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after shutdown")
	}

	if _, err := http.Get(base + "/api/v1/health/live"); err == nil {
		t.Error("expected the listener to be closed after shutdown")
	}
}

func TestHTTPServerService_ShutdownTimeoutExceeded(t *testing.T) {
	t.Parallel()

	src := newRecoSource()
	server, base := newRecoServer(t, src)
	svc := NewHTTPServerService(server, 20*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	serveErr := make(chan error, 1)
	go func() { serveErr <- svc.Serve(ctx) }()
	waitLive(t, base)

	reqDone := make(chan struct{})
	go func() {
		defer close(reqDone)
		_, _ = postBlocks(base)
	}()
	<-src.entered
	cancel()

	select {
	case err := <-serveErr:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected shutdown deadline error, got %v", err)
		}
		if err != nil && !strings.Contains(err.Error(), "shutdown failed") {
			t.Errorf("expected shutdown failure message, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return")
	}

	close(src.release)
	<-reqDone
}

func TestHTTPServerService_ListenFailure(t *testing.T) {
	t.Parallel()

	server, _ := newRecoServer(t, newRecoSource())
	if err := server.ln.Close(); err != nil {
		t.Fatalf("close listener: %v", err)
	}
	svc := NewHTTPServerService(server, time.Second, zerolog.Nop())

	err := svc.Serve(context.Background())
	if !errors.Is(err, net.ErrClosed) {
		t.Errorf("expected wrapped net.ErrClosed, got %v", err)
	}
}

func TestHTTPServerService_SupervisedRestartAfterListenFailure(t *testing.T) {
	t.Parallel()

	server, _ := newRecoServer(t, newRecoSource())
	_ = server.ln.Close()

	var terminations atomic.Int32
	sup := suture.New("reco-api", suture.Spec{
		FailureThreshold: 10,
		FailureBackoff:   10 * time.Millisecond,
		Timeout:          time.Second,
		EventHook: func(e suture.Event) {
			if e.Type() == suture.EventTypeServiceTerminate {
				terminations.Add(1)
			}
		},
	})
	sup.Add(NewHTTPServerService(server, time.Second, zerolog.Nop()))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	errCh := sup.ServeBackground(ctx)

	time.Sleep(100 * time.Millisecond)
	cancel()
	<-errCh

	if got := terminations.Load(); got < 2 {
		t.Errorf("expected repeated listen failures to be restarted, got %d terminations", got)
	}
}
