package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"yo.mini/yo/internal/contract"
	"yo.mini/yo/internal/finality"
	"yo.mini/yo/internal/flow"
	"yo.mini/yo/internal/identity"
	"yo.mini/yo/internal/network"
	"yo.mini/yo/internal/types"
	"yo.mini/yo/internal/vault"
)

// @Title: Send a Yo
// @Route: GET /api/yo/yo?target=NAME
// @Description: Sends a Yo! to the named party and waits for finality
// @Response: 201 "Yo just sent a Yo! to NAME"
func (s *Service) HandleYo(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("target")
	if name == "" {
		s.writeError(w, http.StatusBadRequest, "target is required")
		return
	}

	target, err := s.network.PartyFromName(name)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.flowTimeout)
	defer cancel()

	rec, err := s.flows.Start(ctx, flow.YoFlowName, flow.Args{Target: target})
	if err != nil {
		s.logger.Errorf("API: Yo to %s failed: %v", name, err)
		s.writeError(w, flowStatus(err), err.Error())
		return
	}

	s.logger.Infof("API: Yo just sent a Yo! to %s (%s)", target.Name, rec.TxID)
	w.Header().Set("X-Transaction-Id", rec.TxID)
	s.writeJSON(w, http.StatusCreated, fmt.Sprintf("Yo just sent a Yo! to %s", target.Name))
}

func flowStatus(err error) int {
	var vErr *contract.ValidationError
	switch {
	case errors.Is(err, flow.ErrUnknownFlow):
		return http.StatusNotFound
	case errors.As(err, &vErr), errors.Is(err, network.ErrUnknownIdentity):
		return http.StatusBadRequest
	case errors.Is(err, network.ErrNoNotary):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, finality.ErrDistribution):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// @Title: List Yos
// @Route: GET /api/yo/yos?participant=NAME
// @Description: Lists finalized Yo states, optionally those a party sent or received
// @Response: [{"ref": {...}, "state": {...}, "recorded_at": "..."}]
func (s *Service) HandleYos(w http.ResponseWriter, r *http.Request) {
	entries, err := s.vault.List(r.Context(), vault.Filter{Participant: r.URL.Query().Get("participant")})
	if err != nil {
		s.logger.Errorf("API: listing Yos failed: %v", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to list Yos")
		return
	}
	s.writeJSON(w, http.StatusOK, entries)
}

// @Title: Who Am I
// @Route: GET /api/yo/me
// @Description: Returns this node's party name, key and key fingerprint
// @Response: {"me": "...", "key": "...", "fingerprint": "...", "notary": false}
func (s *Service) HandleMe(w http.ResponseWriter, r *http.Request) {
	self := s.network.Self()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"me":          self.Party.Name,
		"key":         self.Party.OwningKey,
		"fingerprint": identity.Fingerprint(self.Party.OwningKey),
		"notary":      self.Notary,
	})
}

// @Title: List Peers
// @Route: GET /api/yo/peers
// @Description: Returns the names of every other node in the network map
// @Response: {"peers": ["..."]}
func (s *Service) HandlePeers(w http.ResponseWriter, r *http.Request) {
	peers := s.network.Peers()
	names := make([]string, 0, len(peers))
	for _, p := range peers {
		names = append(names, p.Party.Name)
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"peers": names})
}

// @Title: Receive Transaction
// @Route: POST /api/yo/receive
// @Description: Accepts a finalized transaction delivered by the sending node
// @Response: 202 {"status": "ok", "tx_id": "..."}
func (s *Service) HandleReceive(w http.ResponseWriter, r *http.Request) {
	var stx types.SignedBundle
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&stx); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid transaction")
		return
	}

	rec, err := s.receiver.Receive(r.Context(), &stx)
	if err != nil {
		if errors.Is(err, finality.ErrRejected) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Errorf("API: recording %s failed: %v", stx.ID(), err)
		s.writeError(w, http.StatusInternalServerError, "Failed to record transaction")
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "ok", "tx_id": rec.TxID})
}
