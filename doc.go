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

// Package routed assembles the router, configuration, rate limiting,
// sessions, and metrics packages into a runnable application.
//
// An [App] owns a [router.Engine] plus the middleware wired from a
// loaded configuration: the routing section sets match behavior and
// ETags, the security section attaches IP filtering, CSRF protection,
// body limits, and trusted proxy resolution, the rate_limit section
// builds a policy-driven limiter over a memory or Redis store, and the
// session section installs cookie-tracked session state. Subsystems
// not mentioned in the configuration stay out of the request path.
//
// Minimal use with no configuration:
//
//	app := routed.MustNew()
//	app.Router().GET("/hello", func(c *router.Context) error {
//	    return c.String(http.StatusOK, "hi")
//	})
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//	log.Fatal(app.Start(ctx, ":8080"))
//
// Configuration-driven use:
//
//	cfg := config.MustNew(
//	    config.WithFile("app.yaml"),
//	    config.WithEnv("APP"),
//	)
//	cfg.MustLoad(ctx)
//
//	app, err := routed.New(
//	    routed.WithServiceName("orders"),
//	    routed.WithConfig(cfg),
//	    routed.WithMetrics(nil),
//	)
//
// Start blocks until the context is canceled, then drains in-flight
// requests within the configured shutdown timeout. Lifecycle hooks
// ([App.OnStart], [App.OnReady], [App.OnShutdown], [App.OnStop]) run
// around the server in the documented order.
package routed
