// Package http exposes the application flows over a local JSON API:
// balance and proof lookups plus claim-session management for the UI
// shell that hosts them.
package http

import (
	"context"
	"errors"
	"net/http"
	"sync"

	solana "github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	ore "github.com/Milo123459/ore-app"
)

// Server hosts the JSON API. Claim sessions are created per request
// and owned by the server until completed or deleted; each one wraps
// an ore.ClaimSession with the dependent query refreshers wired in.
type Server struct {
	echo    *echo.Echo
	gateway ore.Gateway
	log     zerolog.Logger

	proof        ore.Refresher
	tokenBalance ore.Refresher

	mu       sync.Mutex
	sessions map[uuid.UUID]*ore.ClaimSession
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the server logger.
func WithLogger(log zerolog.Logger) ServerOption {
	return func(s *Server) { s.log = log }
}

// WithProofRefresher wires the proof query restarted after claims.
func WithProofRefresher(r ore.Refresher) ServerOption {
	return func(s *Server) { s.proof = r }
}

// WithTokenBalanceRefresher wires the token balance query restarted
// after claims.
func WithTokenBalanceRefresher(r ore.Refresher) ServerOption {
	return func(s *Server) { s.tokenBalance = r }
}

// NewServer creates the API server around a gateway.
func NewServer(gateway ore.Gateway, opts ...ServerOption) *Server {
	s := &Server{
		gateway:  gateway,
		log:      zerolog.Nop(),
		sessions: make(map[uuid.UUID]*ore.ClaimSession),
	}
	for _, opt := range opts {
		opt(s)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.errorHandler

	v1 := e.Group("/v1")
	v1.GET("/balances/:account", s.handleBalances)
	v1.GET("/proof/:authority", s.handleProof)
	v1.POST("/claim/sessions", s.handleCreateSession)
	v1.GET("/claim/sessions/:id", s.handleGetSession)
	v1.POST("/claim/sessions/:id/confirm", s.handleConfirm)
	v1.POST("/claim/sessions/:id/back", s.handleBack)
	v1.POST("/claim/sessions/:id/submit", s.handleSubmit)
	v1.POST("/import/validate", s.handleValidateKey)

	s.echo = e
	return s
}

// Start serves the API on addr, blocking until shutdown.
func (s *Server) Start(addr string) error {
	s.log.Info().Str("addr", addr).Msg("http server starting")
	return s.echo.Start(addr)
}

// Shutdown stops the server and closes all live claim sessions.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for _, session := range s.sessions {
		session.Close()
	}
	s.mu.Unlock()
	return s.echo.Shutdown(ctx)
}

// Handler returns the underlying handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

type balancesResponse struct {
	Account string `json:"account"`
	ore.Balances
}

func (s *Server) handleBalances(c echo.Context) error {
	account, err := solana.PublicKeyFromBase58(c.Param("account"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid account address")
	}

	ctx := c.Request().Context()
	lamports, err := s.gateway.GetBalance(ctx, account)
	if err != nil {
		return err
	}
	tokens, err := s.gateway.GetTokenBalance(ctx, account)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, balancesResponse{
		Account:  account.String(),
		Balances: ore.Balances{Lamports: lamports, Ore: tokens},
	})
}

type proofResponse struct {
	Authority        string  `json:"authority"`
	ClaimableRewards uint64  `json:"claimableRewards"`
	ClaimableDisplay float64 `json:"claimableDisplay"`
	TotalHashes      uint64  `json:"totalHashes"`
	TotalRewards     uint64  `json:"totalRewards"`
	LastClaimAt      int64   `json:"lastClaimAt"`
}

func (s *Server) handleProof(c echo.Context) error {
	authority, err := solana.PublicKeyFromBase58(c.Param("authority"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid authority address")
	}

	proof, err := s.gateway.GetProof(c.Request().Context(), authority)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, proofResponse{
		Authority:        proof.Authority.String(),
		ClaimableRewards: proof.ClaimableRewards,
		ClaimableDisplay: ore.AmountToUI(proof.ClaimableRewards, ore.TokenDecimals),
		TotalHashes:      proof.TotalHashes,
		TotalRewards:     proof.TotalRewards,
		LastClaimAt:      proof.LastClaimAt,
	})
}

type sessionResponse struct {
	ID            string  `json:"id"`
	Step          string  `json:"step"`
	Amount        uint64  `json:"amount"`
	DisplayAmount float64 `json:"displayAmount"`
	Busy          bool    `json:"busy"`
	Error         string  `json:"error,omitempty"`
}

func (s *Server) sessionJSON(session *ore.ClaimSession) sessionResponse {
	resp := sessionResponse{
		ID:            session.ID().String(),
		Step:          session.Step().String(),
		Amount:        session.Amount(),
		DisplayAmount: session.DisplayAmount(),
		Busy:          session.Busy(),
	}
	if err := session.Err(); err != nil {
		resp.Error = err.Error()
	}
	return resp
}

func (s *Server) handleCreateSession(c echo.Context) error {
	session := ore.NewClaimSession(s.gateway,
		ore.WithProofRefresher(s.proof),
		ore.WithTokenBalanceRefresher(s.tokenBalance),
		ore.WithClaimLogger(s.log),
	)

	s.mu.Lock()
	s.sessions[session.ID()] = session
	s.mu.Unlock()

	return c.JSON(http.StatusCreated, s.sessionJSON(session))
}

func (s *Server) session(c echo.Context) (*ore.ClaimSession, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid session id")
	}

	s.mu.Lock()
	session, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return nil, echo.NewHTTPError(http.StatusNotFound, "unknown claim session")
	}
	return session, nil
}

func (s *Server) handleGetSession(c echo.Context) error {
	session, err := s.session(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.sessionJSON(session))
}

func (s *Server) handleConfirm(c echo.Context) error {
	session, err := s.session(c)
	if err != nil {
		return err
	}

	body, err := decodeBody(c, confirmSchema)
	if err != nil {
		return err
	}
	amount, err := ore.ParseAmount(body["amount"].(string), ore.TokenDecimals)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := session.EnterConfirm(amount); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.sessionJSON(session))
}

func (s *Server) handleBack(c echo.Context) error {
	session, err := s.session(c)
	if err != nil {
		return err
	}
	if err := session.Back(); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.sessionJSON(session))
}

func (s *Server) handleSubmit(c echo.Context) error {
	session, err := s.session(c)
	if err != nil {
		return err
	}
	// The session outlives this request; submission resolves in the
	// background and the UI polls the session for the outcome.
	if err := session.Submit(context.WithoutCancel(c.Request().Context())); err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, s.sessionJSON(session))
}

type validateKeyResponse struct {
	Valid  bool   `json:"valid"`
	Empty  bool   `json:"empty"`
	Error  string `json:"error,omitempty"`
	Pubkey string `json:"pubkey,omitempty"`
}

func (s *Server) handleValidateKey(c echo.Context) error {
	body, err := decodeBody(c, validateKeySchema)
	if err != nil {
		return err
	}

	v := ore.ValidateKeyInput(body["key"].(string))
	resp := validateKeyResponse{
		Valid: v.Valid,
		Empty: v.Empty,
		Error: v.ErrMsg,
	}
	if v.Valid {
		resp.Pubkey = v.Key.PublicKey().String()
	}
	return c.JSON(http.StatusOK, resp)
}

// errorHandler maps AppError codes onto HTTP statuses so flow
// precondition failures come back as client errors, not 500s.
func (s *Server) errorHandler(err error, c echo.Context) {
	var appErr *ore.AppError
	if errors.As(err, &appErr) {
		status := http.StatusConflict
		switch appErr.Code {
		case ore.ErrCodeInvalidAmount, ore.ErrCodeKeyFormat, ore.ErrCodeKeyLength:
			status = http.StatusBadRequest
		}
		if !c.Response().Committed {
			_ = c.JSON(status, appErr)
		}
		return
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		s.echo.DefaultHTTPErrorHandler(err, c)
		return
	}

	s.log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	if !c.Response().Committed {
		_ = c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
	}
}
