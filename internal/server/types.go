package server

import (
	"errors"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/betbot/derivaoption/internal/domain"
)

// callerHeader carries the authenticated caller address, set by the gateway.
const callerHeader = "X-Caller-Address"

var (
	errMissingCaller = errors.New("missing " + callerHeader + " header")
	errBadAddress    = errors.New("invalid hex address")
	errBadAmount     = errors.New("invalid amount: want non-negative decimal integer string")
)

// caller extracts the caller address from the request headers.
func caller(c *gin.Context) (common.Address, error) {
	v := c.GetHeader(callerHeader)
	if v == "" {
		return common.Address{}, errMissingCaller
	}
	if !common.IsHexAddress(v) {
		return common.Address{}, errBadAddress
	}
	return common.HexToAddress(v), nil
}

// parseAddress parses a hex address from a request field.
func parseAddress(v string) (common.Address, error) {
	if !common.IsHexAddress(v) {
		return common.Address{}, errBadAddress
	}
	return common.HexToAddress(v), nil
}

// parseAmount parses a decimal big integer (base units / 1e8 price units).
func parseAmount(v string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(v, 10)
	if !ok || n.Sign() < 0 {
		return nil, errBadAmount
	}
	return n, nil
}

// pathID parses the :id path parameter.
func pathID(c *gin.Context) (uint64, error) {
	return strconv.ParseUint(c.Param("id"), 10, 64)
}

// queryID parses a numeric id from a query parameter.
func queryID(v string) (uint64, error) {
	return strconv.ParseUint(v, 10, 64)
}

// termsQuery parses an offer terms tuple from query parameters.
func termsQuery(c *gin.Context) (domain.OfferTerms, error) {
	var t domain.OfferTerms
	token, err := parseAddress(c.Query("token"))
	if err != nil {
		return t, err
	}
	isCall, err := strconv.ParseBool(c.DefaultQuery("is_call", "true"))
	if err != nil {
		return t, err
	}
	strike, err := parseAmount(c.Query("strike"))
	if err != nil {
		return t, err
	}
	premium, err := parseAmount(c.DefaultQuery("premium", "0"))
	if err != nil {
		return t, err
	}
	expiryUnix, err := strconv.ParseInt(c.Query("expiry"), 10, 64)
	if err != nil {
		return t, err
	}
	t.Token = token
	t.Kind = domain.KindFromIsCall(isCall)
	t.Strike = strike
	t.Premium = premium
	t.Expiry = time.Unix(expiryUnix, 0).UTC()
	return t, nil
}

// offerView is the JSON projection of a domain.Offer.
type offerView struct {
	ID        uint64 `json:"id"`
	Seller    string `json:"seller"`
	Token     string `json:"token"`
	IsCall    bool   `json:"is_call"`
	Strike    string `json:"strike"`
	Premium   string `json:"premium"`
	Expiry    int64  `json:"expiry"`
	Amount    string `json:"amount"`
	OfferedAt int64  `json:"offered_at"`
	Valid     bool   `json:"valid"`
}

func toOfferView(o *domain.Offer) offerView {
	return offerView{
		ID:        o.ID,
		Seller:    o.Seller.Hex(),
		Token:     o.Token.Hex(),
		IsCall:    o.Kind.IsCall(),
		Strike:    o.Strike.String(),
		Premium:   o.Premium.String(),
		Expiry:    o.Expiry.Unix(),
		Amount:    o.AmountUnderlying.String(),
		OfferedAt: o.OfferedAt.Unix(),
		Valid:     o.Valid,
	}
}

// purchaseView is the JSON projection of a domain.Purchase.
type purchaseView struct {
	ID          uint64 `json:"id"`
	Buyer       string `json:"buyer"`
	Seller      string `json:"seller"`
	Token       string `json:"token"`
	IsCall      bool   `json:"is_call"`
	Strike      string `json:"strike"`
	Premium     string `json:"premium"`
	Expiry      int64  `json:"expiry"`
	Amount      string `json:"amount"`
	OfferID     uint64 `json:"offer_id"`
	PurchasedAt int64  `json:"purchased_at"`
	Exercised   bool   `json:"exercised"`
	Settled     bool   `json:"settled"`
}

func toPurchaseView(p *domain.Purchase) purchaseView {
	return purchaseView{
		ID:          p.ID,
		Buyer:       p.Buyer.Hex(),
		Seller:      p.Seller.Hex(),
		Token:       p.Token.Hex(),
		IsCall:      p.Kind.IsCall(),
		Strike:      p.Strike.String(),
		Premium:     p.Premium.String(),
		Expiry:      p.Expiry.Unix(),
		Amount:      p.Amount.String(),
		OfferID:     p.OfferID,
		PurchasedAt: p.PurchasedAt.Unix(),
		Exercised:   p.Exercised,
		Settled:     p.Settled(),
	}
}

// nativeOptionView is the JSON projection of a domain.NativeOption.
type nativeOptionView struct {
	ID         uint64 `json:"id"`
	Writer     string `json:"writer"`
	Buyer      string `json:"buyer,omitempty"`
	Strike     string `json:"strike"`
	PremiumDue string `json:"premium_due"`
	Amount     string `json:"amount"`
	Expiration int64  `json:"expiration"`
	Collateral string `json:"collateral"`
	State      string `json:"state"`
	IsCall     bool   `json:"is_call"`
}

func toNativeOptionView(o *domain.NativeOption) nativeOptionView {
	v := nativeOptionView{
		ID:         o.ID,
		Writer:     o.Writer.Hex(),
		Strike:     o.Strike.String(),
		PremiumDue: o.PremiumDue.String(),
		Amount:     o.Amount.String(),
		Expiration: o.Expiration.Unix(),
		Collateral: o.Collateral.String(),
		State:      o.State.String(),
		IsCall:     o.Kind.IsCall(),
	}
	if o.HasBuyer() {
		v.Buyer = o.Buyer.Hex()
	}
	return v
}
