// Package http is the control surface of the connectors: state queries and lifecycle commands.
package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"moff.io/moff-connector/internal/chains"
	"moff.io/moff-connector/internal/csv"
	"moff.io/moff-connector/internal/database"
	"moff.io/moff-connector/internal/wallet"
	"moff.io/moff-connector/internal/web3"
	"moff.io/moff-connector/pkg/errors"
	"moff.io/moff-connector/pkg/log"
	"moff.io/moff-connector/pkg/log/middleware"
)

// Manager runs lifecycle operations on named connectors.
type Manager interface {
	Activate(ctx context.Context, name string, desired *web3.ChainSelection) error
	Deactivate(ctx context.Context, name string, cause error) error
	ConnectEagerly(ctx context.Context, name string) error
	States() map[string]web3.State
}

// Limiter throttles activations per caller.
type Limiter interface {
	Allow(ctx context.Context, caller string) (bool, error)
}

// ActivationSource lists the audit records of a connector, newest first.
type ActivationSource interface {
	SelectLatest(top int, connector string) ([]*database.ActivationRecord, error)
}

const (
	defaultActivationsTop = 100
	maxActivationsTop     = 1000
)

const (
	codeOK = iota
	codeInvalidArgument
	codeUnknownConnector
	codeRateLimited
	codeProviderRejected
	codeInternal = 5000
)

type Server struct {
	manager Manager
	limiter Limiter
	router  *gin.Engine
	srv     *http.Server
}

// NewServer builds the router. limiter may be nil.
func NewServer(addr string, manager Manager, limiter Limiter, requestTimeout time.Duration) *Server {
	s := &Server{manager: manager, limiter: limiter}
	router := gin.New()
	router.Use(middleware.RecoveredHTTPLog(), middleware.TimeoutHTTP(requestTimeout))
	router.GET("/state", s.getState)
	connectors := router.Group("/connectors/:name")
	connectors.POST("/activate", s.activate)
	connectors.POST("/deactivate", s.deactivate)
	connectors.POST("/eager", s.connectEagerly)
	s.router = router
	s.srv = &http.Server{Addr: addr, Handler: router}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ServeActivations exposes the audit records of src as csv.
func (s *Server) ServeActivations(src ActivationSource) {
	s.router.GET("/connectors/:name/activations", func(ctx *gin.Context) {
		top, err := strconv.Atoi(ctx.DefaultQuery("top", strconv.Itoa(defaultActivationsTop)))
		if err != nil || top <= 0 {
			fail(ctx, http.StatusBadRequest, codeInvalidArgument, "invalid top")
			return
		}
		if top > maxActivationsTop {
			top = maxActivationsTop
		}
		name := ctx.Param("name")
		records, err := src.SelectLatest(top, name)
		if err != nil {
			failWith(ctx, err)
			return
		}
		ctx.Header("Content-Disposition", "attachment; filename="+name+"_activations.csv")
		ctx.Header("Content-Type", "text/csv")
		ctx.Status(http.StatusOK)
		if err := csv.WriteActivations(ctx.Writer, records); err != nil {
			log.Error(err)
		}
	})
}

func (s *Server) Start(ctx context.Context) {
	go func() {
		log.Infof("HTTP server listening on %v...", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server:%v", err)
		}
	}()
}

func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		log.Errorf("shutdown http server:%v", err)
	}
}

type connectorState struct {
	ChainID    uint64   `json:"chain_id"`
	ChainName  string   `json:"chain_name,omitempty"`
	Accounts   []string `json:"accounts"`
	Activating bool     `json:"activating"`
	Connected  bool     `json:"connected"`
}

func stateOf(state web3.State) connectorState {
	out := connectorState{
		ChainID:    state.ChainID,
		Accounts:   state.Accounts,
		Activating: state.Activating,
		Connected:  wallet.Connected(state),
	}
	if state.ChainID != 0 {
		out.ChainName = chains.Name(state.ChainID)
	}
	if out.Accounts == nil {
		out.Accounts = []string{}
	}
	return out
}

func (s *Server) getState(ctx *gin.Context) {
	states := s.manager.States()
	data := make(map[string]connectorState, len(states))
	for name, state := range states {
		data[name] = stateOf(state)
	}
	ok(ctx, data)
}

type activateRequest struct {
	ChainID uint64 `json:"chain_id"`
	Chain   string `json:"chain"`
}

func (s *Server) activate(ctx *gin.Context) {
	var req activateRequest
	if ctx.Request.ContentLength != 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			fail(ctx, http.StatusBadRequest, codeInvalidArgument, err.Error())
			return
		}
	}
	desired, err := chains.Resolve(req.ChainID, req.Chain)
	if err != nil {
		fail(ctx, http.StatusBadRequest, codeInvalidArgument, err.Error())
		return
	}
	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx.Request.Context(), ctx.ClientIP())
		if err != nil {
			log.Error(err)
		} else if !allowed {
			fail(ctx, http.StatusTooManyRequests, codeRateLimited, "too many activations")
			return
		}
	}
	name := ctx.Param("name")
	if err := s.manager.Activate(ctx.Request.Context(), name, desired); err != nil {
		failWith(ctx, err)
		return
	}
	s.okState(ctx, name)
}

type deactivateRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) deactivate(ctx *gin.Context) {
	var req deactivateRequest
	if ctx.Request.ContentLength != 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			fail(ctx, http.StatusBadRequest, codeInvalidArgument, err.Error())
			return
		}
	}
	var cause error
	if req.Reason != "" {
		cause = errors.New(req.Reason)
	}
	name := ctx.Param("name")
	if err := s.manager.Deactivate(ctx.Request.Context(), name, cause); err != nil {
		failWith(ctx, err)
		return
	}
	s.okState(ctx, name)
}

func (s *Server) connectEagerly(ctx *gin.Context) {
	name := ctx.Param("name")
	if err := s.manager.ConnectEagerly(ctx.Request.Context(), name); err != nil {
		failWith(ctx, err)
		return
	}
	s.okState(ctx, name)
}

func (s *Server) okState(ctx *gin.Context, name string) {
	ok(ctx, stateOf(s.manager.States()[name]))
}

func ok(ctx *gin.Context, data interface{}) {
	ctx.JSON(http.StatusOK, gin.H{
		"code": codeOK,
		"msg":  "ok",
		"data": data,
	})
}

func fail(ctx *gin.Context, status, code int, msg string) {
	ctx.JSON(status, gin.H{
		"code": code,
		"msg":  msg,
	})
}

func failWith(ctx *gin.Context, err error) {
	var rpcErr *web3.ProviderRpcError
	switch {
	case errors.Is(err, wallet.ErrUnknownConnector):
		fail(ctx, http.StatusNotFound, codeUnknownConnector, err.Error())
	case errors.As(err, &rpcErr):
		ctx.JSON(http.StatusConflict, gin.H{
			"code":          codeProviderRejected,
			"msg":           rpcErr.Message,
			"provider_code": rpcErr.Code,
		})
	default:
		log.Error(err)
		fail(ctx, http.StatusInternalServerError, codeInternal, err.Error())
	}
}
