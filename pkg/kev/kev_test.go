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

package kev

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sampleCatalog = `{
  "catalogVersion": "2026.08.28",
  "count": 2,
  "vulnerabilities": [
    {
      "cveID": "CVE-2021-44228",
      "vulnerabilityName": "Apache Log4j2 Remote Code Execution Vulnerability",
      "dateAdded": "2021-12-10",
      "dueDate": "2021-12-24",
      "knownRansomwareCampaignUse": "Known"
    },
    {
      "cveID": "CVE-2024-0001",
      "vulnerabilityName": "Example Vulnerability",
      "dateAdded": "2024-01-15",
      "dueDate": "2024-02-05",
      "knownRansomwareCampaignUse": "Unknown"
    }
  ]
}`

func TestParseCatalog(t *testing.T) {
	cat, err := parseCatalog([]byte(sampleCatalog))
	require.NoError(t, err)
	require.Equal(t, 2, cat.Len())

	require.True(t, cat.Has("CVE-2021-44228"))
	require.False(t, cat.Has("CVE-2999-0000"))

	e, ok := cat.Entry("CVE-2021-44228")
	require.True(t, ok)
	require.Equal(t, "Apache Log4j2 Remote Code Execution Vulnerability", e.VulnerabilityName)
	require.Equal(t, time.Date(2021, 12, 10, 0, 0, 0, 0, time.UTC), e.DateAdded)
	require.True(t, e.RansomwareUse)

	e, ok = cat.Entry("CVE-2024-0001")
	require.True(t, ok)
	require.False(t, e.RansomwareUse)
}

func TestParseCatalog_Malformed(t *testing.T) {
	_, err := parseCatalog([]byte("not json"))
	require.Error(t, err)
}

func TestFetchCatalog(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(sampleCatalog))
	}))
	defer srv.Close()

	cache, err := NewCache(t.TempDir(), time.Hour)
	require.NoError(t, err)
	client := NewClient(cache, srv.URL)

	cat, err := client.FetchCatalog(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, cat.Len())
	require.Equal(t, 1, hits)

	// Second fetch inside the TTL is served from disk.
	cat, err = client.FetchCatalog(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, cat.Len())
	require.Equal(t, 1, hits)
}

func TestFetchCatalog_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(nil, srv.URL)
	_, err := client.FetchCatalog(context.Background())
	require.ErrorContains(t, err, "unexpected status code")
}

func TestCache_Expiry(t *testing.T) {
	cache, err := NewCache(t.TempDir(), time.Nanosecond)
	require.NoError(t, err)
	require.NoError(t, cache.Set("key", []byte("data")))

	time.Sleep(time.Millisecond)
	_, ok := cache.Get("key")
	require.False(t, ok)
}
