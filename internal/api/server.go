// Package api exposes the allocation engine over HTTP.
//
// Mutations are submitted to the engine and answered with the journal
// coordinates of the executed operation. Reads go straight to the
// projections.
package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/roach88/idocore/internal/allocation"
	"github.com/roach88/idocore/internal/engine"
	"github.com/roach88/idocore/internal/ido"
	"github.com/roach88/idocore/internal/metrics"
	"github.com/roach88/idocore/internal/resolver"
)

// RequestIDHeader carries a caller-chosen request id in and the executed
// request id out.
const RequestIDHeader = "X-Request-ID"

const shutdownTimeout = 10 * time.Second

// Engine is the engine surface the API needs.
type Engine interface {
	Submit(ctx context.Context, op engine.Operation) (engine.Reply, error)
	SubmitAs(ctx context.Context, requestID string, op engine.Operation) (engine.Reply, error)
	Service() *allocation.Service
}

// OperationResponse is the body returned for an executed mutation.
type OperationResponse struct {
	RequestID string `json:"request_id"`
	Seq       int64  `json:"seq"`
	EntryID   string `json:"entry_id"`
	Result    any    `json:"result"`
}

// ProjectPage is a page of the project listing.
type ProjectPage struct {
	Projects []allocation.ProjectView `json:"projects"`
	From     int                      `json:"from"`
	Limit    int                      `json:"limit"`
}

// Server holds the HTTP handlers.
type Server struct {
	engine    Engine
	outbox    *resolver.Outbox
	metrics   *metrics.Metrics
	log       logrus.FieldLogger
	rateLimit *RateLimitConfig
}

// Option configures a Server.
type Option func(*Server)

// WithOutbox exposes the staking query outbox for polling adapters.
func WithOutbox(o *resolver.Outbox) Option {
	return func(s *Server) { s.outbox = o }
}

// WithMetrics serves /metrics and counts requests.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Server) { s.log = l }
}

// WithRateLimit enables per-client rate limiting. A non-positive rate
// disables it.
func WithRateLimit(cfg RateLimitConfig) Option {
	return func(s *Server) {
		if cfg.RequestsPerSecond > 0 {
			s.rateLimit = &cfg
		}
	}
}

// New creates a Server over e.
func New(e Engine, opts ...Option) *Server {
	s := &Server{engine: e, log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithField("component", "api")
	return s
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(s.log, s.metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "idocore"})
	})
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	v1 := r.Group("/api/v1")
	if s.rateLimit != nil {
		v1.Use(RateLimiter(*s.rateLimit))
	}
	{
		projects := v1.Group("/projects")
		projects.POST("", s.createProject)
		projects.GET("", s.listProjects)
		projects.GET("/:id", s.getProject)
		projects.POST("/:id/advance", s.advance)

		accounts := projects.Group("/:id/accounts/:account")
		accounts.GET("", s.getAccount)
		accounts.POST("/register", s.register)
		accounts.POST("/commit", s.commit)
		accounts.POST("/claim", s.claim)
		accounts.POST("/refund", s.claimRefund)
		accounts.POST("/tickets/grant", s.grantTickets)
		accounts.POST("/tickets/refresh", s.refreshTickets)

		v1.POST("/operations/:kind", s.operation)

		staking := v1.Group("/staking")
		staking.POST("/resolutions", s.postResolution)
		if s.outbox != nil {
			staking.GET("/queries", s.takeQueries)
		}
	}
	return r
}

// submit runs op under the caller's request id, if any, and writes the
// reply.
func (s *Server) submit(c *gin.Context, status int, op engine.Operation) {
	s.submitAs(c, c.GetHeader(RequestIDHeader), status, op)
}

func (s *Server) submitAs(c *gin.Context, requestID string, status int, op engine.Operation) {
	ctx := c.Request.Context()
	var (
		reply engine.Reply
		err   error
	)
	if requestID != "" {
		reply, err = s.engine.SubmitAs(ctx, requestID, op)
	} else {
		reply, err = s.engine.Submit(ctx, op)
	}
	if reply.RequestID != "" {
		c.Header(RequestIDHeader, reply.RequestID)
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(status, OperationResponse{
		RequestID: reply.RequestID,
		Seq:       reply.Seq,
		EntryID:   reply.EntryID,
		Result:    reply.Result,
	})
}

// operation decodes the body as the arguments of the named operation kind
// and submits it. An empty body means no arguments.
func (s *Server) operation(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		s.fail(c, badRequest("body", err))
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}
	op, err := engine.Decode(c.Param("kind"), body)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.submit(c, http.StatusOK, op)
}

func projectIDParam(c *gin.Context) (ido.ProjectID, error) {
	return ido.ParseProjectID(c.Param("id"))
}

// bindOptional decodes a JSON body into v, accepting an empty body.
func bindOptional(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		return badRequest("body", err)
	}
	return nil
}

func intQuery(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, ido.NewInvalidArgument(name, "must be an integer")
	}
	return n, nil
}

func (s *Server) createProject(c *gin.Context) {
	var def ido.Definition
	if err := c.ShouldBindJSON(&def); err != nil {
		s.fail(c, badRequest("body", err))
		return
	}
	s.submit(c, http.StatusCreated, engine.CreateProject{Definition: def})
}

func (s *Server) listProjects(c *gin.Context) {
	var status *ido.Status
	if raw := c.Query("status"); raw != "" {
		st, err := ido.ParseStatus(raw)
		if err != nil {
			s.fail(c, err)
			return
		}
		status = &st
	}
	from, err := intQuery(c, "from")
	if err != nil {
		s.fail(c, err)
		return
	}
	limit, err := intQuery(c, "limit")
	if err != nil {
		s.fail(c, err)
		return
	}

	views, err := s.engine.Service().ListProjects(c.Request.Context(), status, from, limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	if limit <= 0 {
		limit = allocation.DefaultPageSize
	} else if limit > allocation.MaxPageSize {
		limit = allocation.MaxPageSize
	}
	c.JSON(http.StatusOK, ProjectPage{Projects: views, From: from, Limit: limit})
}

func (s *Server) getProject(c *gin.Context) {
	id, err := projectIDParam(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	view, err := s.engine.Service().Project(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) getAccount(c *gin.Context) {
	id, err := projectIDParam(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	view, err := s.engine.Service().Account(c.Request.Context(), id, c.Param("account"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type advanceRequest struct {
	Target string `json:"target"`
}

func (s *Server) advance(c *gin.Context) {
	id, err := projectIDParam(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	var req advanceRequest
	if err := bindOptional(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	s.submit(c, http.StatusOK, engine.Advance{ProjectID: id, To: req.Target})
}

func (s *Server) register(c *gin.Context) {
	id, err := projectIDParam(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.submit(c, http.StatusOK, engine.Register{ProjectID: id, Account: c.Param("account")})
}

type amountRequest struct {
	Amount ido.Amount `json:"amount"`
}

func bindAmount(c *gin.Context) (ido.Amount, error) {
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return ido.Amount{}, badRequest("amount", err)
	}
	if req.Amount.IsNil() {
		return ido.Amount{}, ido.NewInvalidArgument("amount", "amount is required")
	}
	if req.Amount.IsNegative() {
		return ido.Amount{}, ido.NewInvalidArgument("amount", "amount must not be negative")
	}
	return req.Amount, nil
}

func (s *Server) commit(c *gin.Context) {
	id, err := projectIDParam(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	amount, err := bindAmount(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.submit(c, http.StatusOK, engine.Commit{ProjectID: id, Account: c.Param("account"), Amount: amount})
}

func (s *Server) claim(c *gin.Context) {
	id, err := projectIDParam(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	amount, err := bindAmount(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.submit(c, http.StatusOK, engine.Claim{ProjectID: id, Account: c.Param("account"), Amount: amount})
}

func (s *Server) claimRefund(c *gin.Context) {
	id, err := projectIDParam(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.submit(c, http.StatusOK, engine.ClaimRefund{ProjectID: id, Account: c.Param("account")})
}

type grantRequest struct {
	Count uint64 `json:"count"`
}

func (s *Server) grantTickets(c *gin.Context) {
	id, err := projectIDParam(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	var req grantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, badRequest("count", err))
		return
	}
	s.submit(c, http.StatusOK, engine.GrantTickets{ProjectID: id, Account: c.Param("account"), Count: req.Count})
}

func (s *Server) refreshTickets(c *gin.Context) {
	id, err := projectIDParam(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.submit(c, http.StatusOK, engine.RefreshTickets{ProjectID: id, Account: c.Param("account")})
}

// postResolution accepts a staking answer. It runs under the request id of
// the operation that dispatched the query.
func (s *Server) postResolution(c *gin.Context) {
	var res resolver.Resolution
	if err := c.ShouldBindJSON(&res); err != nil {
		s.fail(c, badRequest("body", err))
		return
	}
	if res.QueryID == "" {
		s.fail(c, ido.NewInvalidArgument("query_id", "query_id is required"))
		return
	}
	if err := res.Continuation.Validate(); err != nil {
		s.fail(c, err)
		return
	}
	s.submitAs(c, engine.RequestOfQuery(res.QueryID), http.StatusOK, engine.Resolve{Resolution: res})
}

func (s *Server) takeQueries(c *gin.Context) {
	limit, err := intQuery(c, "limit")
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"queries": s.outbox.Take(limit)})
}

// Serve runs an http.Server on addr until ctx is cancelled, then shuts it
// down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router()}
	errc := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("http server listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
