package serpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fooddiscovery/backend/internal/domain"
)

const searchFixture = `{
  "search_metadata": {"status": "Success"},
  "local_results": [
    {
      "position": 1,
      "title": "Joe's Pizza",
      "place_id": "ChIJifIePKtZwokRVZ-UdRGkZzs",
      "gps_coordinates": {"latitude": 40.7306, "longitude": -73.989},
      "rating": 4.5,
      "reviews": 18234,
      "price": "$$",
      "type": "Pizza restaurant",
      "types": ["Pizza restaurant", "Restaurant"],
      "address": "7 Carmine St, New York, NY 10014",
      "phone": "(212) 366-1182",
      "website": "https://www.joespizzanyc.com/",
      "thumbnail": "https://lh5.googleusercontent.com/p/abc=w80-h106-k-no"
    },
    {
      "position": 2,
      "title": "Slice Shop",
      "place_id": "ChIJslice",
      "price": "$7.50"
    },
    {
      "position": 3,
      "title": "",
      "place_id": "ChIJnoname"
    }
  ]
}`

func TestSearch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/search.json", r.URL.Path)
		assert.Equal(t, "google_maps", q.Get("engine"))
		assert.Equal(t, "search", q.Get("type"))
		assert.Equal(t, "pizza", q.Get("q"))
		assert.Equal(t, "@40.7306,-73.989,15z", q.Get("ll"))
		assert.Equal(t, "5", q.Get("num"))
		assert.Equal(t, "test-api-key", q.Get("api_key"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(searchFixture))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test-api-key", BaseURL: server.URL})
	fetchedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	client.now = func() time.Time { return fetchedAt }

	batch, err := client.Search(context.Background(), domain.SearchQuery{
		Text: "pizza", Latitude: 40.7306, Longitude: -73.989, Limit: 5,
	})

	require.NoError(t, err)
	require.Len(t, batch.Products, 2)
	assert.Equal(t, "serpapi::ChIJifIePKtZwokRVZ-UdRGkZzs", batch.Products[0].CanonicalProductID)
	assert.Equal(t, "serpapi::ChIJslice", batch.Products[1].CanonicalProductID)
	require.Len(t, batch.Rejected, 1)
	assert.Equal(t, "serpapi::ChIJnoname", batch.Rejected[0].ProductID)
}

func TestSearch_TruncatesToLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(searchFixture))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL})
	batch, err := client.Search(context.Background(), domain.SearchQuery{Text: "pizza", Limit: 1})

	require.NoError(t, err)
	assert.Len(t, batch.Products, 1)
	assert.Empty(t, batch.Rejected)
}

func TestSearch_ErrorField(t *testing.T) {
	testCases := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{
			name:    "invalid key",
			body:    `{"error": "Invalid API key. Your API key should be here: https://serpapi.com/manage-api-key"}`,
			wantErr: true,
		},
		{
			name:    "no results",
			body:    `{"error": "Google hasn't returned any results for this query."}`,
			wantErr: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tc.body))
			}))
			defer server.Close()

			client := NewClient(Config{APIKey: "k", BaseURL: server.URL})
			batch, err := client.Search(context.Background(), domain.SearchQuery{Text: "pizza"})

			if !tc.wantErr {
				require.NoError(t, err)
				assert.Empty(t, batch.Products)
				return
			}
			var pe *domain.ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, "serpapi", pe.Provider)
			assert.False(t, pe.Retryable)
			assert.Contains(t, err.Error(), "Invalid API key")
		})
	}
}

func TestSearch_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL})
	_, err := client.Search(context.Background(), domain.SearchQuery{Text: "pizza"})

	assert.True(t, domain.IsRetryable(err))
}
