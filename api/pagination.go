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
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/blinklabs-io/degree/database/models"
	"github.com/blinklabs-io/degree/registry"
)

const (
	DefaultPaginationCount = 100
	MaxPaginationCount     = 100
	DefaultPaginationPage  = 1
)

var ErrInvalidPaginationParameters = errors.New(
	"invalid pagination parameters",
)

var ErrInvalidFilterParameters = errors.New("invalid filter parameters")

// PaginationParams contains parsed pagination query values.
type PaginationParams struct {
	Count int
	Page  int
}

// Offset returns the number of items before the requested page
func (p PaginationParams) Offset() int {
	return (p.Page - 1) * p.Count
}

// ParsePagination parses pagination query parameters and
// applies defaults and bounds clamping.
func ParsePagination(r *http.Request) (PaginationParams, error) {
	params := PaginationParams{
		Count: DefaultPaginationCount,
		Page:  DefaultPaginationPage,
	}
	query := r.URL.Query()
	if countParam := query.Get("count"); countParam != "" {
		count, err := strconv.Atoi(countParam)
		if err != nil {
			return PaginationParams{},
				ErrInvalidPaginationParameters
		}
		params.Count = count
	}
	if pageParam := query.Get("page"); pageParam != "" {
		page, err := strconv.Atoi(pageParam)
		if err != nil {
			return PaginationParams{},
				ErrInvalidPaginationParameters
		}
		params.Page = page
	}

	// Bounds clamping
	if params.Count < 1 {
		params.Count = 1
	}
	if params.Count > MaxPaginationCount {
		params.Count = MaxPaginationCount
	}
	if params.Page < 1 {
		params.Page = 1
	}
	return params, nil
}

// ParseListOptions builds a diploma listing request from the pagination,
// status and authority query parameters
func ParseListOptions(r *http.Request) (registry.ListOptions, PaginationParams, error) {
	params, err := ParsePagination(r)
	if err != nil {
		return registry.ListOptions{}, params, err
	}
	opts := registry.ListOptions{
		Offset: params.Offset(),
		Limit:  params.Count,
	}
	query := r.URL.Query()
	if status := query.Get("status"); status != "" {
		var verified bool
		switch strings.ToLower(status) {
		case models.DiplomaStatusActive:
			verified = true
		case models.DiplomaStatusRevoked:
			verified = false
		default:
			return opts, params, ErrInvalidFilterParameters
		}
		opts.Verified = &verified
	}
	if authority := query.Get("authority"); authority != "" {
		identity, err := registry.ParseIdentity(authority)
		if err != nil {
			return opts, params, ErrInvalidFilterParameters
		}
		opts.Authority = &identity
	}
	return opts, params, nil
}

// SetPaginationHeaders sets the pagination total headers.
func SetPaginationHeaders(
	w http.ResponseWriter,
	totalItems int64,
	params PaginationParams,
) {
	if totalItems < 0 {
		totalItems = 0
	}
	if params.Count < 1 {
		params.Count = DefaultPaginationCount
	}
	var totalPages int64
	if totalItems > 0 {
		// Equivalent to ceil(totalItems/params.count)
		totalPages = (totalItems + int64(params.Count) - 1) / int64(params.Count)
	}
	w.Header().Set(
		"X-Pagination-Count-Total",
		strconv.FormatInt(totalItems, 10),
	)
	w.Header().Set(
		"X-Pagination-Page-Total",
		strconv.FormatInt(totalPages, 10),
	)
}
