package pagetemp

import (
	"context"
	"net"
	"time"

	fiber "github.com/gofiber/fiber/v3"
	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/pagetemp/internal/sentinel"
	"github.com/hyp3rd/pagetemp/pkg/stats"
)

// ManagementHTTPOption configures the management HTTP server.
type ManagementHTTPOption func(*ManagementHTTPServer)

// ManagementHTTPServer exposes the progress of a running bench over HTTP.
type ManagementHTTPServer struct {
	addr         string
	app          *fiber.App
	readTimeout  time.Duration
	writeTimeout time.Duration
	authFunc     func(fiber.Ctx) error
	ln           net.Listener
	started      bool
}

// WithMgmtAuth sets an auth function (return error to block).
func WithMgmtAuth(fn func(fiber.Ctx) error) ManagementHTTPOption {
	return func(s *ManagementHTTPServer) { s.authFunc = fn }
}

// WithMgmtReadTimeout sets read timeout.
func WithMgmtReadTimeout(d time.Duration) ManagementHTTPOption {
	return func(s *ManagementHTTPServer) { s.readTimeout = d }
}

// WithMgmtWriteTimeout sets write timeout.
func WithMgmtWriteTimeout(d time.Duration) ManagementHTTPOption {
	return func(s *ManagementHTTPServer) { s.writeTimeout = d }
}

const (
	defaultReadTimeout  = 5 * time.Second
	defaultWriteTimeout = 5 * time.Second
)

// NewManagementHTTPServer builds an HTTP server holder (lazy start).
func NewManagementHTTPServer(addr string, opts ...ManagementHTTPOption) *ManagementHTTPServer {
	srv := &ManagementHTTPServer{
		addr:         addr,
		readTimeout:  defaultReadTimeout,
		writeTimeout: defaultWriteTimeout,
	}

	for _, opt := range opts {
		opt(srv)
	}

	srv.app = fiber.New(fiber.Config{
		ReadTimeout:  srv.readTimeout,
		WriteTimeout: srv.writeTimeout,
	})

	return srv
}

// managementBench is the view of a Bench the routes need.
type managementBench interface {
	Config() Config
	Plan() Plan
	Summary() stats.Summary
	Label(spec RunSpec) string
	ComparisonSeries(c Comparison) string
}

// Start launches the listener (idempotent).
func (s *ManagementHTTPServer) Start(ctx context.Context, bench managementBench) error {
	if s.started {
		return nil
	}

	s.mountRoutes(bench)

	lc := net.ListenConfig{}

	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return ewrap.Wrap(err, "mgmt listen")
	}

	s.ln = ln

	go func() {
		// serve errors after Shutdown are expected
		_ = s.app.Listener(ln)
	}()

	s.started = true

	return nil
}

// Address returns the bound address (useful when passing ":0" for ephemeral port). Empty if not started yet.
func (s *ManagementHTTPServer) Address() string {
	if s.ln == nil {
		return ""
	}

	return s.ln.Addr().String()
}

// Shutdown stops the server.
func (s *ManagementHTTPServer) Shutdown(ctx context.Context) error {
	if !s.started {
		return nil
	}

	ch := make(chan error, 1)

	go func() {
		ch <- s.app.Shutdown()
	}()

	select {
	case <-ctx.Done():
		return sentinel.ErrMgmtHTTPShutdownTimeout
	case err := <-ch:
		s.started = false

		return err
	}
}

func (s *ManagementHTTPServer) mountRoutes(bench managementBench) {
	useAuth := s.wrapAuth

	s.app.Get("/health", useAuth(func(fiberCtx fiber.Ctx) error { return fiberCtx.SendString("ok") }))
	s.app.Get("/runs", useAuth(func(fiberCtx fiber.Ctx) error { return fiberCtx.JSON(bench.Summary()) }))
	s.app.Get("/runs/:mode/:name", useAuth(func(fiberCtx fiber.Ctx) error {
		return s.lookup(fiberCtx, bench.Summary(), fiberCtx.Params("mode")+"/"+fiberCtx.Params("name"))
	}))
	s.app.Get("/config", useAuth(func(fiberCtx fiber.Ctx) error {
		cfg := bench.Config()

		return fiberCtx.JSON(fiber.Map{"config": cfg, "modes": cfg.ModeNames()})
	}))
	s.app.Get("/plan", useAuth(func(fiberCtx fiber.Ctx) error {
		plan := bench.Plan()

		runs := make([]string, len(plan.Runs))
		for i, spec := range plan.Runs {
			runs[i] = bench.Label(spec)
		}

		comparisons := make([]string, len(plan.Comparisons))
		for i, c := range plan.Comparisons {
			comparisons[i] = bench.ComparisonSeries(c)
		}

		return fiberCtx.JSON(fiber.Map{"runs": runs, "comparisons": comparisons})
	}))
}

// lookup answers with the run labeled name, e.g. "kernel/ARC_0.20", or with the
// comparison named "comp/"+name, e.g. "kernel/ARC_0.20_vs_ARC_1.00".
func (*ManagementHTTPServer) lookup(fiberCtx fiber.Ctx, summary stats.Summary, name string) error {
	for _, run := range summary.Runs {
		if run.Label == name {
			return fiberCtx.JSON(run)
		}
	}

	for _, cmp := range summary.Comparisons {
		if cmp.Name == "comp/"+name {
			return fiberCtx.JSON(cmp)
		}
	}

	return fiberCtx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown run " + name})
}

// wrapAuth returns an auth-wrapped handler if authFunc provided.
func (s *ManagementHTTPServer) wrapAuth(handler fiber.Handler) fiber.Handler { //nolint:ireturn
	if s.authFunc == nil {
		return handler
	}

	return func(fiberCtx fiber.Ctx) error {
		authErr := s.authFunc(fiberCtx)
		if authErr != nil {
			return authErr
		}

		return handler(fiberCtx)
	}
}
