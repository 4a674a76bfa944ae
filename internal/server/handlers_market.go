package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/betbot/derivaoption/internal/domain"
)

type offerCreateRequest struct {
	Token         string `json:"token"`
	IsCall        bool   `json:"is_call"`
	Strike        string `json:"strike"`
	Premium       string `json:"premium"`
	ExpirySeconds int64  `json:"expiry_seconds"`
	Amount        string `json:"amount"`
}

func (s *Server) handleOfferCreate(c *gin.Context) {
	seller, err := caller(c)
	if err != nil {
		writeErr(c, err)
		return
	}
	var req offerCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, err)
		return
	}
	token, err := parseAddress(req.Token)
	if err != nil {
		writeErr(c, err)
		return
	}
	strike, err := parseAmount(req.Strike)
	if err != nil {
		writeErr(c, err)
		return
	}
	premium, err := parseAmount(req.Premium)
	if err != nil {
		writeErr(c, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeErr(c, err)
		return
	}
	id, err := s.cfg.Engine.CreateOffer(
		seller, token,
		domain.KindFromIsCall(req.IsCall),
		strike, premium,
		time.Duration(req.ExpirySeconds)*time.Second,
		amount,
	)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"offer_id": id})
}

func (s *Server) handleOfferCancel(c *gin.Context) {
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
	if err := s.cfg.Engine.CancelOffer(who, id); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"canceled": true})
}

func (s *Server) handleOfferGet(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		writeErr(c, err)
		return
	}
	o, err := s.cfg.Engine.Offer(id)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, toOfferView(o))
}

func (s *Server) handleOfferLastID(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"last_order_id": s.cfg.Engine.LastOrderID()})
}

func (s *Server) handleOrderbook(c *gin.Context) {
	terms, err := termsQuery(c)
	if err != nil {
		writeErr(c, err)
		return
	}
	sellerAddr, err := parseAddress(c.Query("seller"))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"remaining": s.cfg.Engine.QueryOrderbook(sellerAddr, terms).String()})
}

func (s *Server) handleBuyable(c *gin.Context) {
	terms, err := termsQuery(c)
	if err != nil {
		writeErr(c, err)
		return
	}
	sellerAddr, err := parseAddress(c.Query("seller"))
	if err != nil {
		writeErr(c, err)
		return
	}
	amount, err := parseAmount(c.Query("amount"))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"buyable": s.cfg.Engine.IsBuyable(sellerAddr, terms, amount)})
}

type buyByOfferRequest struct {
	OfferID uint64 `json:"offer_id"`
	Amount  string `json:"amount"`
}

func (s *Server) handleBuyByOffer(c *gin.Context) {
	buyer, err := caller(c)
	if err != nil {
		writeErr(c, err)
		return
	}
	var req buyByOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeErr(c, err)
		return
	}
	id, err := s.cfg.Engine.BuyOptionByID(buyer, req.OfferID, amount)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"purchase_id": id})
}

type buyByTermsRequest struct {
	Seller  string `json:"seller"`
	Token   string `json:"token"`
	IsCall  bool   `json:"is_call"`
	Strike  string `json:"strike"`
	Premium string `json:"premium"`
	Expiry  int64  `json:"expiry"`
	Amount  string `json:"amount"`
}

func (s *Server) handleBuyByTerms(c *gin.Context) {
	buyer, err := caller(c)
	if err != nil {
		writeErr(c, err)
		return
	}
	var req buyByTermsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, err)
		return
	}
	sellerAddr, err := parseAddress(req.Seller)
	if err != nil {
		writeErr(c, err)
		return
	}
	token, err := parseAddress(req.Token)
	if err != nil {
		writeErr(c, err)
		return
	}
	strike, err := parseAmount(req.Strike)
	if err != nil {
		writeErr(c, err)
		return
	}
	premium, err := parseAmount(req.Premium)
	if err != nil {
		writeErr(c, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeErr(c, err)
		return
	}
	terms := domain.OfferTerms{
		Token:   token,
		Kind:    domain.KindFromIsCall(req.IsCall),
		Strike:  strike,
		Premium: premium,
		Expiry:  time.Unix(req.Expiry, 0).UTC(),
	}
	id, err := s.cfg.Engine.BuyOptionByExactTerms(buyer, sellerAddr, terms, amount)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"purchase_id": id})
}

func (s *Server) handlePurchaseGet(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		writeErr(c, err)
		return
	}
	p, err := s.cfg.Engine.Purchase(id)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, toPurchaseView(p))
}

func (s *Server) handlePurchaseLastID(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"last_purchase_id": s.cfg.Engine.LastPurchaseID()})
}

type approveRequest struct {
	Designee string `json:"designee"`
	Amount   string `json:"amount"`
}

func (s *Server) handleApprove(c *gin.Context) {
	owner, err := caller(c)
	if err != nil {
		writeErr(c, err)
		return
	}
	id, err := pathID(c)
	if err != nil {
		writeErr(c, err)
		return
	}
	var req approveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, err)
		return
	}
	designee, err := parseAddress(req.Designee)
	if err != nil {
		writeErr(c, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeErr(c, err)
		return
	}
	if err := s.cfg.Engine.Approve(owner, designee, id, amount); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"approved": true})
}

func (s *Server) handleApprovalGet(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		writeErr(c, err)
		return
	}
	owner, err := parseAddress(c.Query("owner"))
	if err != nil {
		writeErr(c, err)
		return
	}
	designee, err := parseAddress(c.Query("designee"))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"amount": s.cfg.Engine.Approval(owner, designee, id).String()})
}

type transferRequest struct {
	From      string `json:"from,omitempty"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

func (s *Server) handleTransfer(c *gin.Context) {
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
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, err)
		return
	}
	recipient, err := parseAddress(req.Recipient)
	if err != nil {
		writeErr(c, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeErr(c, err)
		return
	}
	if err := s.cfg.Engine.Transfer(who, recipient, amount, id); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transferred": true})
}

func (s *Server) handleTransferFrom(c *gin.Context) {
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
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, err)
		return
	}
	from, err := parseAddress(req.From)
	if err != nil {
		writeErr(c, err)
		return
	}
	recipient, err := parseAddress(req.Recipient)
	if err != nil {
		writeErr(c, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeErr(c, err)
		return
	}
	if err := s.cfg.Engine.TransferFrom(who, from, recipient, amount, id); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transferred": true})
}

func (s *Server) handleExercise(c *gin.Context) {
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
	if err := s.cfg.Engine.Exercise(who, id); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"exercised": true})
}

type exerciseBatchRequest struct {
	PurchaseIDs []uint64 `json:"purchase_ids"`
}

func (s *Server) handleExerciseBatch(c *gin.Context) {
	who, err := caller(c)
	if err != nil {
		writeErr(c, err)
		return
	}
	var req exerciseBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, err)
		return
	}
	if err := s.cfg.Engine.ExerciseMany(who, req.PurchaseIDs); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"exercised": len(req.PurchaseIDs)})
}

func (s *Server) handleReclaim(c *gin.Context) {
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
	if err := s.cfg.Engine.ReclaimExpiredCollateral(who, id); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reclaimed": true})
}

func (s *Server) handlePositions(c *gin.Context) {
	trader, err := parseAddress(c.Query("trader"))
	if err != nil {
		writeErr(c, err)
		return
	}
	terms, err := termsQuery(c)
	if err != nil {
		writeErr(c, err)
		return
	}
	total := s.cfg.Engine.QueryPositions(trader, terms.Token, terms.Kind, terms.Strike, terms.Expiry)
	c.JSON(http.StatusOK, gin.H{"position": total.String()})
}
