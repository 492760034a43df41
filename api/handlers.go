// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/blinklabs-io/degree/internal/version"
	"github.com/blinklabs-io/degree/registry"
)

const (
	apiName = "degree"

	// Well above the largest valid signed transaction
	maxTransactionBodySize = 16 * 1024
)

// writeJSON writes a JSON response with the given status
// code.
func writeJSON(
	w http.ResponseWriter,
	status int,
	v any,
) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck,errchkjson
	json.NewEncoder(w).Encode(v)
}

func writeError(
	w http.ResponseWriter,
	status int,
	errStr string,
	message string,
) {
	writeJSON(w, status, ErrorResponse{
		StatusCode: status,
		Error:      errStr,
		Message:    message,
	})
}

// writeRegistryError maps a registry failure onto an HTTP status. Failures
// outside the registry taxonomy are logged and reported without detail
func (s *Server) writeRegistryError(
	w http.ResponseWriter,
	err error,
	action string,
) {
	var regErr *registry.Error
	if !errors.As(err, &regErr) {
		if errors.Is(err, context.Canceled) ||
			errors.Is(err, context.DeadlineExceeded) {
			writeError(
				w,
				http.StatusServiceUnavailable,
				"Unavailable",
				"request cancelled",
			)
			return
		}
		s.logger.Error(
			"failed to "+action,
			"error", err,
		)
		writeError(
			w,
			http.StatusInternalServerError,
			registry.ErrorNameInternal,
			"failed to "+action,
		)
		return
	}
	writeJSON(w, statusForError(regErr), ErrorResponse{
		StatusCode: statusForError(regErr),
		Error:      regErr.Name,
		Message:    regErr.Message,
		Code:       regErr.Code,
	})
}

func statusForError(err *registry.Error) int {
	switch err {
	case registry.ErrAddressNotFound:
		return http.StatusNotFound
	case registry.ErrAddressAlreadyOccupied,
		registry.ErrAlreadyRevoked,
		registry.ErrCounterUnderflow:
		return http.StatusConflict
	case registry.ErrUnauthorized,
		registry.ErrInvalidSignature:
		return http.StatusForbidden
	case registry.ErrAccountDiscriminator:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// handleRoot handles GET / and returns API metadata.
func (s *Server) handleRoot(
	w http.ResponseWriter,
	_ *http.Request,
) {
	writeJSON(w, http.StatusOK, RootResponse{
		Name:      apiName,
		Version:   version.GetVersionString(),
		ProgramID: s.node.ProgramID(),
	})
}

// handleHealth handles GET /health. The store must be readable; an
// uninitialized registry is still healthy
func (s *Server) handleHealth(
	w http.ResponseWriter,
	r *http.Request,
) {
	_, err := s.node.GetRegistry(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, HealthResponse{
			IsHealthy:   true,
			Initialized: true,
		})
	case errors.Is(err, registry.ErrAddressNotFound):
		writeJSON(w, http.StatusOK, HealthResponse{
			IsHealthy: true,
		})
	default:
		s.logger.Error(
			"health check failed",
			"error", err,
		)
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{})
	}
}

// handleRegistry handles GET /v1/registry and returns the singleton.
func (s *Server) handleRegistry(
	w http.ResponseWriter,
	r *http.Request,
) {
	reg, err := s.node.GetRegistry(r.Context())
	if err != nil {
		s.writeRegistryError(w, err, "retrieve registry")
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

// handleListDiplomas handles GET /v1/diplomas. It accepts count and page
// plus the optional status and authority filters
func (s *Server) handleListDiplomas(
	w http.ResponseWriter,
	r *http.Request,
) {
	opts, params, err := ParseListOptions(r)
	if err != nil {
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			err.Error(),
		)
		return
	}
	page, err := s.node.ListDiplomas(r.Context(), opts)
	if err != nil {
		s.writeRegistryError(w, err, "list diplomas")
		return
	}
	resp := DiplomaListResponse{
		Diplomas: make([]DiplomaResponse, 0, len(page.Diplomas)),
		Total:    page.Total,
		Page:     params.Page,
		Count:    params.Count,
	}
	for _, diploma := range page.Diplomas {
		resp.Diplomas = append(resp.Diplomas, newDiplomaResponse(diploma))
	}
	SetPaginationHeaders(w, page.Total, params)
	writeJSON(w, http.StatusOK, resp)
}

// handleDiploma handles GET /v1/diplomas/{id}.
func (s *Server) handleDiploma(
	w http.ResponseWriter,
	r *http.Request,
) {
	diploma, err := s.node.GetDiploma(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeRegistryError(w, err, "retrieve diploma")
		return
	}
	writeJSON(w, http.StatusOK, newDiplomaResponse(*diploma))
}

// handleDiplomaHistory handles GET /v1/diplomas/{id}/history.
func (s *Server) handleDiplomaHistory(
	w http.ResponseWriter,
	r *http.Request,
) {
	diplomaID := r.PathValue("id")
	entries, err := s.node.DiplomaHistory(r.Context(), diplomaID)
	if err != nil {
		s.writeRegistryError(w, err, "retrieve diploma history")
		return
	}
	if entries == nil {
		entries = []registry.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{
		DiplomaID: diplomaID,
		Entries:   entries,
	})
}

// handleSubmitTransaction handles POST /v1/transactions. The body is a
// signed transaction envelope; the response is the commit receipt
func (s *Server) handleSubmitTransaction(
	w http.ResponseWriter,
	r *http.Request,
) {
	var tx registry.SignedTransaction
	dec := json.NewDecoder(
		http.MaxBytesReader(w, r.Body, maxTransactionBodySize),
	)
	if err := dec.Decode(&tx); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(
				w,
				http.StatusRequestEntityTooLarge,
				"Request Entity Too Large",
				"transaction body too large",
			)
			return
		}
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			"invalid transaction: "+err.Error(),
		)
		return
	}
	receipt, err := s.node.Execute(r.Context(), &tx)
	if err != nil {
		s.writeRegistryError(w, err, "execute transaction")
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}
