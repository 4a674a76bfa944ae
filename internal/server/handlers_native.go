package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type nativeWriteRequest struct {
	Strike          string `json:"strike"`
	PremiumDue      string `json:"premium_due"`
	Amount          string `json:"amount"`
	SecondsToExpiry int64  `json:"seconds_to_expiry"`
	IsCall          bool   `json:"is_call"`
	Value           string `json:"value"` // attached native value (collateral)
}

func (s *Server) handleNativeWrite(c *gin.Context) {
	writer, err := caller(c)
	if err != nil {
		writeErr(c, err)
		return
	}
	var req nativeWriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, err)
		return
	}
	strike, err := parseAmount(req.Strike)
	if err != nil {
		writeErr(c, err)
		return
	}
	premiumDue, err := parseAmount(req.PremiumDue)
	if err != nil {
		writeErr(c, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeErr(c, err)
		return
	}
	value, err := parseAmount(req.Value)
	if err != nil {
		writeErr(c, err)
		return
	}
	id, err := s.cfg.Engine.WriteNative(
		writer, strike, premiumDue, amount,
		time.Duration(req.SecondsToExpiry)*time.Second,
		req.IsCall, value,
	)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"option_id": id})
}

type nativeBuyRequest struct {
	Value string `json:"value"` // attached native value (premium)
}

func (s *Server) handleNativeBuy(c *gin.Context) {
	buyer, err := caller(c)
	if err != nil {
		writeErr(c, err)
		return
	}
	id, err := pathID(c)
	if err != nil {
		writeErr(c, err)
		return
	}
	var req nativeBuyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, err)
		return
	}
	value, err := parseAmount(req.Value)
	if err != nil {
		writeErr(c, err)
		return
	}
	if err := s.cfg.Engine.BuyNative(buyer, id, value); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bought": true})
}

func (s *Server) handleNativeExercise(c *gin.Context) {
	who, err := caller(c)
	if err != nil {
		writeErr(c, err)
		return
	}
	id, err := pathID(c)
	if err != nil {
		writeErr(c, err)
		return
	}
	if err := s.cfg.Engine.ExerciseNative(who, id); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"exercised": true})
}

func (s *Server) handleNativeExpireWorthless(c *gin.Context) {
	// callable by anyone past expiration; no caller check needed
	id, err := pathID(c)
	if err != nil {
		writeErr(c, err)
		return
	}
	if err := s.cfg.Engine.ExpireWorthless(id); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"expired_worthless": true})
}

func (s *Server) handleNativeRetrieve(c *gin.Context) {
	who, err := caller(c)
	if err != nil {
		writeErr(c, err)
		return
	}
	id, err := pathID(c)
	if err != nil {
		writeErr(c, err)
		return
	}
	if err := s.cfg.Engine.RetrieveExpiredFunds(who, id); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"retrieved": true})
}

func (s *Server) handleNativeGet(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		writeErr(c, err)
		return
	}
	o, err := s.cfg.Engine.NativeOption(id)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, toNativeOptionView(o))
}

func (s *Server) handleNativePosition(c *gin.Context) {
	trader, err := parseAddress(c.Query("trader"))
	if err != nil {
		writeErr(c, err)
		return
	}
	id, err := queryID(c.Query("option_id"))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"position": s.cfg.Engine.TradersPosition(trader, id).String()})
}

func (s *Server) handleNativeLastID(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"last_option_id": s.cfg.Engine.LastOptionID()})
}
