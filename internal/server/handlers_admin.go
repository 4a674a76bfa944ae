package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleTokensList(c *gin.Context) {
	list := s.cfg.Registry.List()
	out := make([]string, 0, len(list))
	for _, addr := range list {
		out = append(out, addr.Hex())
	}
	c.JSON(http.StatusOK, gin.H{"tokens": out})
}

type tokenActivateRequest struct {
	Token  string `json:"token"`
	Active *bool  `json:"active"` // defaults to true
}

func (s *Server) handleTokenActivate(c *gin.Context) {
	var req tokenActivateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, err)
		return
	}
	token, err := parseAddress(req.Token)
	if err != nil {
		writeErr(c, err)
		return
	}
	if req.Active == nil || *req.Active {
		s.cfg.Registry.Activate(token)
	} else {
		s.cfg.Registry.Deactivate(token)
	}
	c.JSON(http.StatusOK, gin.H{"token": token.Hex(), "activated": s.cfg.Registry.IsActivated(token)})
}

func (s *Server) handleTokenActivated(c *gin.Context) {
	token, err := parseAddress(c.Param("address"))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"activated": s.cfg.Registry.IsActivated(token)})
}

type faucetMintRequest struct {
	Token  string `json:"token"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// handleFaucetMint credits test balances on the in-memory ledger.
func (s *Server) handleFaucetMint(c *gin.Context) {
	var req faucetMintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, err)
		return
	}
	token, err := parseAddress(req.Token)
	if err != nil {
		writeErr(c, err)
		return
	}
	to, err := parseAddress(req.To)
	if err != nil {
		writeErr(c, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeErr(c, err)
		return
	}
	s.cfg.Ledger.Mint(token, to, amount)
	c.JSON(http.StatusOK, gin.H{"balance": s.cfg.Ledger.BalanceOf(token, to).String()})
}

type faucetDepositRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// handleFaucetDeposit credits native currency in the vault.
func (s *Server) handleFaucetDeposit(c *gin.Context) {
	var req faucetDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, err)
		return
	}
	to, err := parseAddress(req.To)
	if err != nil {
		writeErr(c, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeErr(c, err)
		return
	}
	s.cfg.Vault.Deposit(to, amount)
	c.JSON(http.StatusOK, gin.H{"balance": s.cfg.Vault.Balance(to).String()})
}

type ledgerApproveRequest struct {
	Token   string `json:"token"`
	Spender string `json:"spender"` // defaults to the engine escrow account
	Amount  string `json:"amount"`
}

func (s *Server) handleLedgerApprove(c *gin.Context) {
	owner, err := caller(c)
	if err != nil {
		writeErr(c, err)
		return
	}
	var req ledgerApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, err)
		return
	}
	token, err := parseAddress(req.Token)
	if err != nil {
		writeErr(c, err)
		return
	}
	spender := s.cfg.Engine.Account()
	if req.Spender != "" {
		if spender, err = parseAddress(req.Spender); err != nil {
			writeErr(c, err)
			return
		}
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeErr(c, err)
		return
	}
	if err := s.cfg.Ledger.Approve(token, owner, spender, amount); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"allowance": s.cfg.Ledger.Allowance(token, owner, spender).String()})
}

func (s *Server) handleLedgerBalance(c *gin.Context) {
	token, err := parseAddress(c.Query("token"))
	if err != nil {
		writeErr(c, err)
		return
	}
	owner, err := parseAddress(c.Query("owner"))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": s.cfg.Ledger.BalanceOf(token, owner).String()})
}

func (s *Server) handleLedgerAllowance(c *gin.Context) {
	token, err := parseAddress(c.Query("token"))
	if err != nil {
		writeErr(c, err)
		return
	}
	owner, err := parseAddress(c.Query("owner"))
	if err != nil {
		writeErr(c, err)
		return
	}
	spender, err := parseAddress(c.Query("spender"))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"allowance": s.cfg.Ledger.Allowance(token, owner, spender).String()})
}

func (s *Server) handleOracleLatest(c *gin.Context) {
	round, err := s.cfg.Oracle.LatestRound()
	if err != nil {
		writeErr(c, err)
		return
	}
	fresh := true
	if s.cfg.Adapter != nil {
		_, err := s.cfg.Adapter.SettlementPrice(s.cfg.Engine.Now())
		fresh = err == nil
	}
	c.JSON(http.StatusOK, gin.H{
		"round_id":   round.RoundID,
		"answer":     round.Answer.String(),
		"updated_at": round.UpdatedAt.Unix(),
		"fresh":      fresh,
	})
}

type oracleAnswerRequest struct {
	Answer string `json:"answer"`
}

// handleOracleAnswer pushes a price round, mirroring MockV3Aggregator.updateAnswer.
func (s *Server) handleOracleAnswer(c *gin.Context) {
	var req oracleAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, err)
		return
	}
	answer, err := parseAmount(req.Answer)
	if err != nil {
		writeErr(c, err)
		return
	}
	roundID, err := s.cfg.Oracle.UpdateAnswer(answer)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"round_id": roundID})
}

func auditLimit(c *gin.Context) int {
	n, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || n <= 0 {
		return 50
	}
	return n
}

func (s *Server) handleAuditRecent(c *gin.Context) {
	records, err := s.cfg.Indexer.Recent(c.Request.Context(), auditLimit(c))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": records})
}

func (s *Server) handleAuditByName(c *gin.Context) {
	records, err := s.cfg.Indexer.ByName(c.Request.Context(), c.Param("name"), auditLimit(c))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": records})
}

// handleClock reports the engine's view of time, the analog of
// getBlockNumber/getBlockTimestamp.
func (s *Server) handleClock(c *gin.Context) {
	now := s.cfg.Engine.Now()
	c.JSON(http.StatusOK, gin.H{
		"unix":    now.Unix(),
		"rfc3339": now.UTC().Format(time.RFC3339Nano),
		"last_ids": gin.H{
			"order":    s.cfg.Engine.LastOrderID(),
			"purchase": s.cfg.Engine.LastPurchaseID(),
			"option":   s.cfg.Engine.LastOptionID(),
		},
	})
}

func (s *Server) handleSnapshot(c *gin.Context) {
	if s.cfg.SnapshotFn == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "snapshotting is not configured"})
		return
	}
	if err := s.cfg.SnapshotFn(); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": true})
}
