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
	"github.com/blinklabs-io/degree/registry"
)

// ErrorResponse is the body of every non-2xx response. Error carries the
// registry error name, Code its numeric code when there is one
type ErrorResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
	Code       uint32 `json:"code,omitempty"`
}

// RootResponse is returned by GET /
type RootResponse struct {
	Name      string           `json:"name"`
	Version   string           `json:"version"`
	ProgramID registry.Address `json:"program_id,omitempty"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	IsHealthy   bool `json:"is_healthy"`
	Initialized bool `json:"initialized"`
}

// DiplomaResponse is a diploma record plus its derived status
type DiplomaResponse struct {
	registry.Diploma
	Status string `json:"status"`
}

// DiplomaListResponse is one page of GET /v1/diplomas
type DiplomaListResponse struct {
	Diplomas []DiplomaResponse `json:"diplomas"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	Count    int               `json:"count"`
}

// HistoryResponse is returned by GET /v1/diplomas/{id}/history
type HistoryResponse struct {
	DiplomaID string                  `json:"diploma_id"`
	Entries   []registry.HistoryEntry `json:"entries"`
}

func newDiplomaResponse(diploma registry.Diploma) DiplomaResponse {
	return DiplomaResponse{
		Diploma: diploma,
		Status:  diploma.Status(),
	}
}
