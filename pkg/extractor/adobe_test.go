package extractor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	qt "github.com/frankban/quicktest"
	"go.uber.org/zap"

	"github.com/docvault/ingest-backend/config"
)

// newAdobeTestServer fakes the PDF Services endpoints the provider walks
// through: token, asset creation, asset upload, job submission, job status,
// and the structured result download.
func newAdobeTestServer(c *qt.C, jobStatus string, elements []map[string]string) *httptest.Server {
	mux := http.NewServeMux()
	var server *httptest.Server

	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		c.Assert(r.FormValue("client_id"), qt.Equals, "client-id")
		c.Assert(r.FormValue("client_secret"), qt.Equals, "client-secret")
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "test-token"})
	})
	mux.HandleFunc("/assets", func(w http.ResponseWriter, r *http.Request) {
		c.Assert(r.Header.Get("Authorization"), qt.Equals, "Bearer test-token")
		c.Assert(r.Header.Get("X-API-Key"), qt.Equals, "client-id")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"assetID":   "asset-1",
			"uploadUri": server.URL + "/upload/asset-1",
		})
	})
	mux.HandleFunc("/upload/asset-1", func(w http.ResponseWriter, r *http.Request) {
		c.Assert(r.Method, qt.Equals, http.MethodPut)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/operation/extractpdf", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			AssetID string `json:"assetID"`
		}
		c.Assert(json.NewDecoder(r.Body).Decode(&payload), qt.IsNil)
		c.Assert(payload.AssetID, qt.Equals, "asset-1")
		w.Header().Set("Location", server.URL+"/operation/extractpdf/job-1/status")
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("/operation/extractpdf/job-1/status", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": jobStatus,
			"error":  "job failed upstream",
			"content": map[string]string{
				"downloadUri": server.URL + "/download/result",
			},
		})
	})
	mux.HandleFunc("/download/result", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"elements": elements})
	})

	server = httptest.NewServer(mux)
	return server
}

func newTestAdobeProvider(c *qt.C, host string) *AdobeProvider {
	provider, err := NewAdobeProvider(config.AdobeConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Host:         host,
	}, zap.NewNop())
	c.Assert(err, qt.IsNil)
	return provider
}

func TestAdobeProvider_ExtractPDF(t *testing.T) {
	c := qt.New(t)

	t.Run("joins the text elements of the structured result", func(t *testing.T) {
		srv := newAdobeTestServer(c, "done", []map[string]string{
			{"Text": "First paragraph."},
			{"Path": "//Document/Figure"},
			{"Text": "Second paragraph."},
		})
		defer srv.Close()

		provider := newTestAdobeProvider(c, srv.URL)
		text, err := provider.ExtractPDF(context.Background(), []byte("%PDF-1.4"))
		c.Assert(err, qt.IsNil)
		c.Assert(text, qt.Equals, "First paragraph.\nSecond paragraph.")
	})

	t.Run("failed job surfaces the service error", func(t *testing.T) {
		srv := newAdobeTestServer(c, "failed", nil)
		defer srv.Close()

		provider := newTestAdobeProvider(c, srv.URL)
		_, err := provider.ExtractPDF(context.Background(), []byte("%PDF-1.4"))
		c.Assert(err, qt.IsNotNil)
		c.Assert(err.Error(), qt.Contains, "job failed upstream")
	})
}

func TestNewAdobeProvider_RequiresCredentials(t *testing.T) {
	c := qt.New(t)

	_, err := NewAdobeProvider(config.AdobeConfig{ClientID: "client-id"}, zap.NewNop())
	c.Assert(err, qt.IsNotNil)
}
