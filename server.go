// Copyright 2025 The Routed Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package routed

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Start runs the HTTP server on addr until ctx is canceled, then shuts
// down gracefully within the configured shutdown timeout. It freezes
// hook registration, runs the OnStart hooks, builds the route table,
// and binds the listener before serving, so a failed hook or a route
// conflict never opens the port.
//
// Start blocks. It returns nil after a clean shutdown, or an error when
// startup fails or graceful shutdown does not finish in time.
//
// Example:
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//	if err := app.Start(ctx, ":8080"); err != nil {
//	    log.Fatal(err)
//	}
func (a *App) Start(ctx context.Context, addr string) error {
	srv, ln, err := a.prepare(ctx, addr)
	if err != nil {
		return err
	}
	return a.run(ctx, srv, func() error { return srv.Serve(ln) }, "http")
}

// StartTLS is Start over TLS. HTTP/2 is negotiated via ALPN as usual
// for net/http TLS listeners.
func (a *App) StartTLS(ctx context.Context, addr, certFile, keyFile string) error {
	srv, ln, err := a.prepare(ctx, addr)
	if err != nil {
		return err
	}
	return a.run(ctx, srv, func() error { return srv.ServeTLS(ln, certFile, keyFile) }, "https")
}

// prepare runs the startup sequence shared by Start and StartTLS:
// freeze hooks, run OnStart, build the route table, bind the listener.
// The listener is bound synchronously so Addr is usable as soon as
// Start has been entered and ":0" picks a real port.
func (a *App) prepare(ctx context.Context, addr string) (*http.Server, net.Listener, error) {
	a.hooks.freeze()

	if err := a.executeStartHooks(ctx); err != nil {
		return nil, nil, fmt.Errorf("startup failed: %w", err)
	}
	if err := a.engine.Build(); err != nil {
		return nil, nil, fmt.Errorf("startup failed: %w", err)
	}

	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("startup failed: %w", err)
	}
	a.boundAddr.Store(ln.Addr().String())

	s := a.settings.server
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.engine,
		ReadTimeout:       s.readTimeout,
		WriteTimeout:      s.writeTimeout,
		IdleTimeout:       s.idleTimeout,
		ReadHeaderTimeout: s.readHeaderTimeout,
		MaxHeaderBytes:    s.maxHeaderBytes,
	}
	return srv, ln, nil
}

// run serves until ctx is canceled or the server fails, then walks the
// shutdown sequence: OnShutdown hooks (LIFO), server shutdown, request
// drain, resource cleanup, OnStop hooks.
func (a *App) run(ctx context.Context, srv *http.Server, serve func() error, scheme string) error {
	serverErr := make(chan error, 1)
	serverReady := make(chan struct{})

	go func() {
		a.printBanner(scheme)
		close(serverReady)
		if err := serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- fmt.Errorf("%s server failed to start: %w", strings.ToUpper(scheme), err)
		}
	}()

	<-serverReady
	a.executeReadyHooks()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		a.log.Info("server shutting down", "service", a.settings.serviceName)
	}

	// The parent context is already canceled; shutdown gets its own
	// deadline from the configured timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.settings.server.shutdownTimeout)
	defer cancel()

	a.executeShutdownHooks(shutdownCtx)

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%s server forced to shutdown: %w", strings.ToUpper(scheme), err)
	}
	if err := a.engine.Shutdown(shutdownCtx); err != nil {
		a.log.Warn("request drain incomplete", "error", err)
	}

	a.closeServices()
	a.executeStopHooks()

	a.log.Info("server exited", "service", a.settings.serviceName)
	return nil
}
