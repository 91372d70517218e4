package api

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"stdref/internal/auth"
	"stdref/internal/oracle"
	"stdref/internal/wire"
)

var (
	statusOK   = wire.StatusResponse{Status: "ok"}
	errBadHash = errors.New("code_hash must be 32 bytes of hex")
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, wire.ErrorResponse{Error: msg})
}

// statusFor maps oracle errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, oracle.ErrPairDoesNotExist):
		return http.StatusNotFound
	case errors.Is(err, oracle.ErrInvalidValue):
		return http.StatusUnprocessableEntity
	case errors.Is(err, oracle.ErrUnauthorized):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.Error(err),
			zap.String("path", r.URL.Path),
			zap.String("request_id", RequestIDFrom(r.Context())),
		)
		writeError(w, status, "internal server error")
		return
	}
	writeError(w, status, err.Error())
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func caller(r *http.Request) oracle.Identity {
	id, _ := auth.IdentityFrom(r.Context())
	return id
}

// identities trims raw and reports whether every entry is non-empty.
func identities(raw []string) ([]oracle.Identity, bool) {
	out := make([]oracle.Identity, 0, len(raw))
	ok := true
	for _, id := range raw {
		id = strings.TrimSpace(id)
		if id == "" {
			ok = false
		}
		out = append(out, oracle.Identity(id))
	}
	return out, ok
}

// isAdmin lets admin handlers consult the oracle's gate before validating a
// body, so an unprivileged caller is always refused by the gate.
func (s *Server) isAdmin(ctx context.Context, id oracle.Identity) (bool, error) {
	admin, err := s.oracle.CurrentAdmin(ctx)
	if err != nil {
		return false, err
	}
	return id == admin, nil
}

func referenceData(pair oracle.SymbolPair, p oracle.ReferencePrice) *wire.ReferenceData {
	return &wire.ReferenceData{
		Base:             string(pair.Base),
		Quote:            string(pair.Quote),
		Rate:             p.Rate.Dec(),
		BaseResolveTime:  wire.UInt64Str(p.BaseResolveTime),
		QuoteResolveTime: wire.UInt64Str(p.QuoteResolveTime),
	}
}

func (s *Server) handleCurrentAdmin(w http.ResponseWriter, r *http.Request) {
	admin, err := s.oracle.CurrentAdmin(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.AdminResponse{Admin: string(admin)})
}

func (s *Server) handleIsRelayer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ok, err := s.oracle.IsRelayer(r.Context(), oracle.Identity(id))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.RelayerResponse{Relayer: id, IsRelayer: ok})
}

func (s *Server) handleTransferAdmin(w http.ResponseWriter, r *http.Request) {
	var body wire.TransferAdminRequest
	if !decode(w, r, &body) {
		return
	}
	allowed, err := s.isAdmin(r.Context(), caller(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	newAdmin := strings.TrimSpace(body.NewAdmin)
	if allowed && newAdmin == "" {
		writeError(w, http.StatusBadRequest, "new_admin cannot be empty")
		return
	}
	if err := s.oracle.TransferAdmin(r.Context(), caller(r), oracle.Identity(newAdmin)); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.AdminResponse{Admin: newAdmin})
}

func (s *Server) handleGrantRelayers(w http.ResponseWriter, r *http.Request) {
	s.handleRelayers(w, r, s.oracle.GrantRelayers)
}

func (s *Server) handleRevokeRelayers(w http.ResponseWriter, r *http.Request) {
	s.handleRelayers(w, r, s.oracle.RevokeRelayers)
}

func (s *Server) handleRelayers(w http.ResponseWriter, r *http.Request, apply func(context.Context, oracle.Identity, []oracle.Identity) error) {
	var body wire.RelayersRequest
	if !decode(w, r, &body) {
		return
	}
	allowed, err := s.isAdmin(r.Context(), caller(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ids, ok := identities(body.Relayers)
	if allowed && !ok {
		writeError(w, http.StatusBadRequest, "relayer identity cannot be empty")
		return
	}
	if err := apply(r.Context(), caller(r), ids); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusOK)
}

func (s *Server) handleRelay(force bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body wire.RelayRequest
		if !decode(w, r, &body) {
			return
		}
		allowed, err := s.oracle.IsRelayer(r.Context(), caller(r))
		if err != nil {
			s.fail(w, r, err)
			return
		}
		updates := make([]oracle.SymbolRate, 0, len(body.Prices))
		for _, p := range body.Prices {
			sym := strings.TrimSpace(p.Symbol)
			if allowed && sym == "" {
				writeError(w, http.StatusBadRequest, "symbol cannot be empty")
				return
			}
			updates = append(updates, oracle.SymbolRate{Symbol: oracle.Symbol(sym), Rate: p.Rate.UInt64()})
		}

		relay := s.oracle.Relay
		if force {
			relay = s.oracle.ForceRelay
		}
		if err := relay(r.Context(), caller(r), updates, body.ResolveTime.UInt64(), body.RequestID.UInt64()); err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, statusOK)
	}
}

func (s *Server) handleReference(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	base, quote := strings.TrimSpace(q.Get("base")), strings.TrimSpace(q.Get("quote"))
	if base == "" || quote == "" {
		writeError(w, http.StatusBadRequest, "missing base or quote query param")
		return
	}
	pair := oracle.SymbolPair{Base: oracle.Symbol(base), Quote: oracle.Symbol(quote)}
	p, err := s.oracle.GetReferenceData(r.Context(), pair.Base, pair.Quote)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, referenceData(pair, p))
}

func (s *Server) handleReferenceBulk(w http.ResponseWriter, r *http.Request) {
	var body wire.BulkRequest
	if !decode(w, r, &body) {
		return
	}
	if len(body.Pairs) > MaxBulkPairs {
		writeError(w, http.StatusBadRequest, "too many pairs (max 1000)")
		return
	}
	pairs := make([]oracle.SymbolPair, len(body.Pairs))
	for i, p := range body.Pairs {
		pairs[i] = oracle.SymbolPair{
			Base:  oracle.Symbol(strings.TrimSpace(p.Base)),
			Quote: oracle.Symbol(strings.TrimSpace(p.Quote)),
		}
	}

	results := s.oracle.GetReferenceDataBulk(r.Context(), pairs)
	resp := wire.BulkResponse{Results: make([]wire.BulkItem, len(results))}
	for i, res := range results {
		if res.Err != nil {
			if statusFor(res.Err) == http.StatusInternalServerError {
				s.fail(w, r, res.Err)
				return
			}
			resp.Results[i] = wire.BulkItem{Error: res.Err.Error()}
			continue
		}
		resp.Results[i] = wire.BulkItem{Data: referenceData(pairs[i], *res.Price)}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCodeHash(w http.ResponseWriter, _ *http.Request) {
	var resp wire.CodeHashResponse
	if h, ok := s.oracle.CodeHash(); ok {
		resp.CodeHash = hex.EncodeToString(h[:])
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleContractID(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, wire.ContractResponse{ContractID: s.oracle.ContractID()})
}

func (s *Server) handleReplaceCode(w http.ResponseWriter, r *http.Request) {
	var body wire.UpgradeRequest
	if !decode(w, r, &body) {
		return
	}
	allowed, err := s.isAdmin(r.Context(), caller(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	hash, err := ParseCodeHash(body.CodeHash)
	if allowed && err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	// panics when the caller is not admin; recoverPanic answers 500
	s.oracle.ReplaceCode(r.Context(), caller(r), hash)
	writeJSON(w, http.StatusOK, wire.CodeHashResponse{CodeHash: hex.EncodeToString(hash[:])})
}

// ParseCodeHash decodes a 32 byte hex hash with an optional 0x prefix.
func ParseCodeHash(s string) ([32]byte, error) {
	var out [32]byte
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil || len(raw) != len(out) {
		return out, errBadHash
	}
	copy(out[:], raw)
	return out, nil
}
