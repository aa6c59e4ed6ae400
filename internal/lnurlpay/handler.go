// Package lnurlpay implements the LNURL-pay Endpoint (C8): the two HTTP
// handlers that compose the LNURL-pay protocol over an Offer Provider and a
// Balancer, plus a third route serving an offer URL in bech32 LNURL form.
// Routing follows the teacher's stdlib-first style (no router
// library is pulled in anywhere in the corpus for this concern) using the
// net/http ServeMux method+pattern matching.
package lnurlpay

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/bitshock-src/switchgear/internal/api"
	"github.com/google/uuid"
)

// OfferProvider is the subset of offerprovider.Provider the endpoint calls.
type OfferProvider interface {
	Resolve(ctx context.Context, partition string, id uuid.UUID) (*api.Offer, error)
}

// Balancer is the subset of balancer.Balancer the endpoint calls.
type Balancer interface {
	GetInvoice(ctx context.Context, offer api.Offer, amountMsat *uint64,
		expirySecs *uint32, key []byte) (string, error)
}

// Config carries the endpoint's request-independent settings.
type Config struct {
	// Partitions is the set of partition names this service answers for.
	// A path segment outside this set yields 404.
	Partitions map[string]struct{}

	// AllowedHosts is the Host-header allow-set; empty means dev mode
	// (any host passes, with a warning log).
	AllowedHosts map[string]struct{}

	// DefaultScheme is used when no forwarding header names one.
	DefaultScheme string

	// CommentAllowed is the maximum comment length, or nil when comments
	// are not accepted at all.
	CommentAllowed *uint32

	// InvoiceExpiry is the bolt11 expiry requested from the backend.
	InvoiceExpiry time.Duration
}

// Handler serves the LNURL-pay offer and invoice endpoints.
type Handler struct {
	cfg      Config
	offers   OfferProvider
	balancer Balancer
}

// NewHandler creates a Handler bound to the given collaborators.
func NewHandler(cfg Config, offers OfferProvider, balancer Balancer) *Handler {
	return &Handler{cfg: cfg, offers: offers, balancer: balancer}
}

// RegisterRoutes mounts the LNURL-pay routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /offers/{partition}/{id}", h.handleOffer)
	mux.HandleFunc("GET /offers/{partition}/{id}/lnurl", h.handleOfferLNURL)
	mux.HandleFunc("GET /invoices/{partition}/{id}", h.handleInvoice)
}

// offerResponse is the §6.1 offer wire shape.
type offerResponse struct {
	Tag            string `json:"tag"`
	Callback       string `json:"callback"`
	MinSendable    uint64 `json:"minSendable"`
	MaxSendable    uint64 `json:"maxSendable"`
	Metadata       string `json:"metadata"`
	CommentAllowed *uint32 `json:"commentAllowed,omitempty"`
}

// invoiceResponse is the §6.1 invoice wire shape.
type invoiceResponse struct {
	PR     string   `json:"pr"`
	Routes []string `json:"routes"`
}

func (h *Handler) handleOffer(w http.ResponseWriter, r *http.Request) {
	clientIP := ResolveClientIP(r)

	partition := r.PathValue("partition")
	if _, ok := h.cfg.Partitions[partition]; !ok {
		writeError(w, newNotFound("unknown partition"))
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, newBadRequest("invalid offer id"))
		return
	}

	offer, err := h.offers.Resolve(r.Context(), partition, id)
	if err != nil {
		writeError(w, fromServiceError(err))
		return
	}
	if offer == nil || offer.IsExpired(time.Now()) {
		writeError(w, newNotFound("offer not found"))
		return
	}

	host, err := ValidateHost(r.Host, h.cfg.AllowedHosts)
	if err != nil {
		writeError(w, newBadRequest("host not allowed"))
		return
	}
	scheme := ResolveScheme(r.Header, h.cfg.DefaultScheme)

	callback := scheme + "://" + host + "/invoices/" + partition + "/" + id.String()

	log.Debugf("lnurlpay: offer %s/%s resolved for %s", partition, id, clientIP)

	writeJSON(w, http.StatusOK, offerResponse{
		Tag:            "payRequest",
		Callback:       callback,
		MinSendable:    offer.MinSendable,
		MaxSendable:    offer.MaxSendable,
		Metadata:       offer.MetadataJSONString,
		CommentAllowed: h.cfg.CommentAllowed,
	})
}

// handleOfferLNURL returns the bech32-wrapped form of this offer's own URL,
// the uppercase LUD-01 "LNURL1..." string wallets scan from a QR code before they
// have ever seen the plain https link.
func (h *Handler) handleOfferLNURL(w http.ResponseWriter, r *http.Request) {
	partition := r.PathValue("partition")
	if _, ok := h.cfg.Partitions[partition]; !ok {
		writeError(w, newNotFound("unknown partition"))
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, newBadRequest("invalid offer id"))
		return
	}

	offer, err := h.offers.Resolve(r.Context(), partition, id)
	if err != nil {
		writeError(w, fromServiceError(err))
		return
	}
	if offer == nil || offer.IsExpired(time.Now()) {
		writeError(w, newNotFound("offer not found"))
		return
	}

	host, err := ValidateHost(r.Host, h.cfg.AllowedHosts)
	if err != nil {
		writeError(w, newBadRequest("host not allowed"))
		return
	}
	scheme := ResolveScheme(r.Header, h.cfg.DefaultScheme)

	offerURL := scheme + "://" + host + "/offers/" + partition + "/" + id.String()

	lnurl, err := encodeLNURL(offerURL)
	if err != nil {
		writeError(w, newInternal(err))
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(lnurl))
}

func (h *Handler) handleInvoice(w http.ResponseWriter, r *http.Request) {
	clientIP := ResolveClientIP(r)

	partition := r.PathValue("partition")
	if _, ok := h.cfg.Partitions[partition]; !ok {
		writeError(w, newNotFound("unknown partition"))
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, newBadRequest("invalid offer id"))
		return
	}

	offer, err := h.offers.Resolve(r.Context(), partition, id)
	if err != nil {
		writeError(w, fromServiceError(err))
		return
	}
	if offer == nil || offer.IsExpired(time.Now()) {
		writeError(w, newNotFound("offer not found"))
		return
	}

	amount, err := parseAmount(r.URL.Query().Get("amount"))
	if err != nil {
		writeError(w, newBadRequest("invalid amount"))
		return
	}
	if amount < offer.MinSendable || amount > offer.MaxSendable {
		writeError(w, newBadRequest("amount outside sendable range"))
		return
	}

	comment := r.URL.Query().Get("comment")
	if comment != "" {
		if h.cfg.CommentAllowed == nil {
			writeError(w, newBadRequest("comments not accepted"))
			return
		}
		if uint32(len(comment)) > *h.cfg.CommentAllowed {
			writeError(w, newBadRequest("comment too long"))
			return
		}
	}

	var expirySecs *uint32
	if h.cfg.InvoiceExpiry > 0 {
		secs := uint32(h.cfg.InvoiceExpiry / time.Second)
		expirySecs = &secs
	}

	pr, err := h.balancer.GetInvoice(r.Context(), *offer, &amount, expirySecs,
		offer.ID[:])
	if err != nil {
		writeError(w, fromServiceError(err))
		return
	}

	log.Infof("lnurlpay: invoice issued for %s/%s to %s", partition, id, clientIP)

	writeJSON(w, http.StatusOK, invoiceResponse{PR: pr, Routes: []string{}})
}

func parseAmount(raw string) (uint64, error) {
	return strconv.ParseUint(raw, 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
