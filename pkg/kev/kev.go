// Copyright 2025 vulndeck
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

// Package kev fetches the CISA Known Exploited Vulnerabilities catalog and
// answers membership queries. Presentation-only: the impact score never
// changes based on KEV membership.
package kev

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultURL is the canonical KEV catalog location.
const DefaultURL = "https://raw.githubusercontent.com/cisagov/kev-data/main/known_exploited_vulnerabilities.json"

// Entry is one KEV catalog record, trimmed to the fields we surface.
type Entry struct {
	CveID             string    `json:"cveID"`
	VulnerabilityName string    `json:"vulnerabilityName"`
	DateAdded         time.Time `json:"dateAdded"`
	DueDate           time.Time `json:"dueDate"`
	RansomwareUse     bool      `json:"ransomwareUse"`
}

// Catalog is a point-in-time copy of the KEV catalog.
type Catalog struct {
	entries map[string]Entry
}

// Has reports whether the CVE is in the catalog.
func (c *Catalog) Has(cveID string) bool {
	_, ok := c.entries[cveID]
	return ok
}

// Entry returns the catalog record for a CVE, if present.
func (c *Catalog) Entry(cveID string) (Entry, bool) {
	e, ok := c.entries[cveID]
	return e, ok
}

// Len returns the catalog size.
func (c *Catalog) Len() int { return len(c.entries) }

// Client downloads the catalog, using the cache when fresh.
type Client struct {
	httpClient *http.Client
	cache      *Cache
	url        string
}

// NewClient creates a KEV client. cache may be nil; url falls back to
// DefaultURL when empty.
func NewClient(cache *Cache, url string) *Client {
	if url == "" {
		url = DefaultURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		cache:      cache,
		url:        url,
	}
}

type catalogResponse struct {
	CatalogVersion  string `json:"catalogVersion"`
	Count           int    `json:"count"`
	Vulnerabilities []struct {
		CVEID                      string `json:"cveID"`
		VulnerabilityName          string `json:"vulnerabilityName"`
		DateAdded                  string `json:"dateAdded"`
		DueDate                    string `json:"dueDate"`
		KnownRansomwareCampaignUse string `json:"knownRansomwareCampaignUse"`
	} `json:"vulnerabilities"`
}

// FetchCatalog fetches and parses the KEV catalog.
func (c *Client) FetchCatalog(ctx context.Context) (*Catalog, error) {
	var data []byte
	if c.cache != nil {
		if cached, ok := c.cache.Get(c.url); ok {
			data = cached
		}
	}

	if data == nil {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch KEV data: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}
		data, err = io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}
		if c.cache != nil {
			c.cache.Set(c.url, data)
		}
	}

	return parseCatalog(data)
}

func parseCatalog(data []byte) (*Catalog, error) {
	var resp catalogResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse KEV data: %w", err)
	}

	entries := make(map[string]Entry, len(resp.Vulnerabilities))
	for _, v := range resp.Vulnerabilities {
		e := Entry{
			CveID:             v.CVEID,
			VulnerabilityName: v.VulnerabilityName,
			RansomwareUse:     v.KnownRansomwareCampaignUse == "Known",
		}
		e.DateAdded, _ = time.Parse("2006-01-02", v.DateAdded)
		e.DueDate, _ = time.Parse("2006-01-02", v.DueDate)
		entries[v.CVEID] = e
	}
	return &Catalog{entries: entries}, nil
}
