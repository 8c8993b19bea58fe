package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/compact-experiment/compact/internal/compact"
	"github.com/compact-experiment/compact/internal/registry"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultSignTimeout  = 10 * time.Second
	DefaultBatchWorkers = 4

	// MaxBatchSize caps the number of compacts hashed in one batch request.
	MaxBatchSize = 1024
)

// AccountSigner is a compact.Signer bound to a single sponsor account.
type AccountSigner interface {
	compact.Signer
	Address() common.Address
}

// Options configures a Service.
type Options struct {
	Domain       compact.Domain
	Signer       AccountSigner   // nil disables /compact/sign
	Registry     *registry.Store // required
	BatchWorkers int
	SignTimeout  time.Duration
}

// Service exposes compact encoding, hashing and signing over HTTP
type Service struct {
	router      *mux.Router
	domain      compact.Domain
	signer      AccountSigner
	registry    *registry.Store
	workers     int
	signTimeout time.Duration
}

// NewService validates opts and sets up routes.
func NewService(opts Options) (*Service, error) {
	if err := opts.Domain.Validate(); err != nil {
		return nil, fmt.Errorf("signing domain: %w", err)
	}
	if opts.Registry == nil {
		return nil, errors.New("registry store is required")
	}

	s := &Service{
		router:      mux.NewRouter(),
		domain:      opts.Domain,
		signer:      opts.Signer,
		registry:    opts.Registry,
		workers:     opts.BatchWorkers,
		signTimeout: opts.SignTimeout,
	}
	if s.workers <= 0 {
		s.workers = DefaultBatchWorkers
	}
	if s.signTimeout <= 0 {
		s.signTimeout = DefaultSignTimeout
	}
	s.setupRoutes()
	return s, nil
}

// Router returns the HTTP router for testing
func (s *Service) Router() *mux.Router {
	return s.router
}

// Close closes the registry store
func (s *Service) Close() error {
	return s.registry.Close()
}

func (s *Service) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	log.Printf("[Service] compactd starting on %s (domain %q v%s chain %s)",
		addr, s.domain.Name, s.domain.Version, s.domain.ChainID)
	return http.ListenAndServe(addr, s.router)
}

func (s *Service) setupRoutes() {
	// Identifier encoding
	s.router.HandleFunc("/lock-tag", s.handleLockTag).Methods("POST")
	s.router.HandleFunc("/allocator-id/{address}", s.handleAllocatorID).Methods("GET")
	s.router.HandleFunc("/token-id", s.handleTokenID).Methods("POST")
	s.router.HandleFunc("/claimant-id", s.handleClaimantID).Methods("POST")

	// Typed-data hashing
	s.router.HandleFunc("/claim-hash", s.handleClaimHash).Methods("POST")
	s.router.HandleFunc("/claim-hash/batch", s.handleClaimHashBatch).Methods("POST")

	// Signing and registration bookkeeping
	s.router.HandleFunc("/compact/sign", s.handleSignCompact).Methods("POST")
	s.router.HandleFunc("/registration/{slot}", s.handleGetRegistration).Methods("GET")

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/info", s.handleInfo).Methods("GET")
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (s *Service) handleLockTag(w http.ResponseWriter, r *http.Request) {
	var req LockTagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	allocator, err := parseAddress("allocator", req.Allocator)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	tag, err := compact.NewLockTag(compact.Scope(req.Scope), compact.ResetPeriod(req.ResetPeriod), compact.NewAllocatorID(allocator))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	packed, _ := tag.ToCanonicalInteger()
	writeJSON(w, LockTagResponse{
		LockTag:     packed.Hex(),
		AllocatorID: tag.AllocatorID.String(),
		Scope:       tag.Scope.String(),
		ResetPeriod: tag.ResetPeriod.String(),
	})
}

func (s *Service) handleAllocatorID(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress("address", mux.Vars(r)["address"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	id := compact.NewAllocatorID(addr)
	writeJSON(w, AllocatorIDResponse{Allocator: addr, AllocatorID: id.String(), Flag: id.Flag()})
}

func (s *Service) handleTokenID(w http.ResponseWriter, r *http.Request) {
	var req TokenIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	tag, err := parseLockTag(req.LockTag)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	token, err := parseAddress("token", req.Token)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	id, err := compact.TokenID(tag, token)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, IDResponse{ID: id.Hex()})
}

func (s *Service) handleClaimantID(w http.ResponseWriter, r *http.Request) {
	var req ClaimantIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	tag, err := parseLockTag(req.LockTag)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	claimant, err := parseAddress("claimant", req.Claimant)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	id, err := compact.ClaimantID(tag, claimant)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, IDResponse{ID: id.Hex()})
}

func hashCompact(c *compact.Compact) (*ClaimHashResponse, error) {
	claimHash, err := compact.ClaimHash(c)
	if err != nil {
		return nil, err
	}
	typeHash := c.TypeHash()
	return &ClaimHashResponse{
		ClaimHash:        claimHash,
		TypeHash:         typeHash,
		TypeString:       compact.TypeString(c.Shape()),
		RegistrationSlot: compact.RegistrationSlot(c.Sponsor, claimHash, typeHash),
	}, nil
}

func (s *Service) handleClaimHash(w http.ResponseWriter, r *http.Request) {
	var req CompactJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	c, err := req.toCompact()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	resp, err := hashCompact(c)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, resp)
}

func (s *Service) handleClaimHashBatch(w http.ResponseWriter, r *http.Request) {
	var req []CompactJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(req) > MaxBatchSize {
		http.Error(w, fmt.Sprintf("batch of %d exceeds limit %d", len(req), MaxBatchSize), http.StatusBadRequest)
		return
	}

	compacts := make([]*compact.Compact, len(req))
	for i := range req {
		c, err := req[i].toCompact()
		if err != nil {
			http.Error(w, fmt.Sprintf("compacts[%d]: %v", i, err), http.StatusBadRequest)
			return
		}
		compacts[i] = c
	}

	results := make([]*ClaimHashResponse, len(compacts))
	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(s.workers)
	for i, c := range compacts {
		i, c := i, c
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			resp, err := hashCompact(c)
			if err != nil {
				return fmt.Errorf("compacts[%d]: %w", i, err)
			}
			results[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, results)
}

func (s *Service) handleSignCompact(w http.ResponseWriter, r *http.Request) {
	if s.signer == nil {
		http.Error(w, "no signer configured", http.StatusServiceUnavailable)
		return
	}

	var req SignCompactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	c, err := req.Compact.toCompact()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	allocations := make([]compact.Allocation, len(req.Claimants))
	for i, a := range req.Claimants {
		if allocations[i], err = a.toAllocation(i); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	if c.Sponsor != s.signer.Address() {
		http.Error(w, fmt.Sprintf("sponsor %s does not match signer account %s",
			c.Sponsor.Hex(), s.signer.Address().Hex()), http.StatusBadRequest)
		return
	}

	signReq, err := compact.NewSignRequest(s.domain, c)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	digest, err := signReq.Digest()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	requestID := uuid.New().String()
	w.Header().Set("X-Request-ID", requestID)

	ctx, cancel := context.WithTimeout(r.Context(), s.signTimeout)
	defer cancel()
	sig, err := s.signer.SignTypedData(ctx, signReq)
	if err != nil {
		log.Printf("[Service] %s: signer failed: %v", requestID, err)
		http.Error(w, fmt.Sprintf("signer: %v", err), http.StatusBadGateway)
		return
	}

	var opts []compact.ClaimOption
	if len(req.AllocatorData) > 0 {
		opts = append(opts, compact.WithAllocatorData(req.AllocatorData))
	}
	claim, err := compact.BuildClaim(c, sig, allocations, opts...)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	hashes, err := hashCompact(c)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.registry.Put(&registry.Record{
		Slot:      hashes.RegistrationSlot,
		Sponsor:   c.Sponsor,
		ClaimHash: hashes.ClaimHash,
		TypeHash:  hashes.TypeHash,
		Expires:   c.Expires.Dec(),
		RequestID: requestID,
	}); err != nil {
		log.Printf("[Service] %s: failed to record registration: %v", requestID, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	log.Printf("[Service] %s: signed %s compact %s for sponsor %s (%d claimants)",
		requestID, c.Shape(), hashes.ClaimHash.Hex(), c.Sponsor.Hex(), len(allocations))

	writeJSON(w, SignCompactResponse{
		RequestID:        requestID,
		ClaimHash:        hashes.ClaimHash,
		RegistrationSlot: hashes.RegistrationSlot,
		Digest:           digest,
		Claim:            claimJSON(claim),
	})
}

func (s *Service) handleGetRegistration(w http.ResponseWriter, r *http.Request) {
	raw, err := hexutil.Decode(mux.Vars(r)["slot"])
	if err != nil || len(raw) != common.HashLength {
		http.Error(w, "invalid slot: expected 0x-prefixed 32-byte hex", http.StatusBadRequest)
		return
	}
	rec, err := s.registry.Get(common.BytesToHash(raw))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if rec == nil {
		http.Error(w, "registration not found", http.StatusNotFound)
		return
	}
	writeJSON(w, rec)
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "healthy"})
}

func (s *Service) handleInfo(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"domain":         s.domain,
		"signer_enabled": s.signer != nil,
		"batch_workers":  s.workers,
	}
	if s.signer != nil {
		info["signer"] = s.signer.Address()
	}
	writeJSON(w, info)
}
