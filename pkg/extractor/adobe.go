package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/docvault/ingest-backend/config"
)

// MethodAdobeExtract labels PDFs extracted through Adobe PDF Services.
const MethodAdobeExtract = "adobe-extract"

// defaultAdobeHost is the Adobe PDF Services endpoint.
const defaultAdobeHost = "https://pdf-services.adobe.io"

const (
	adobePollInterval = 2 * time.Second
	adobeJobTimeout   = 5 * time.Minute
)

// AdobeProvider extracts PDF text through the Adobe PDF Services Extract
// API: upload the document as an asset, submit an extract job, poll it, and
// read the text elements out of the structured result.
type AdobeProvider struct {
	host         string
	clientID     string
	clientSecret string
	orgID        string
	client       *http.Client
	log          *zap.Logger
}

// NewAdobeProvider creates a provider from config.
func NewAdobeProvider(cfg config.AdobeConfig, log *zap.Logger) (*AdobeProvider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("adobe PDF services requires a client id and secret")
	}
	host := cfg.Host
	if host == "" {
		host = defaultAdobeHost
	}
	return &AdobeProvider{
		host:         host,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		orgID:        cfg.OrgID,
		client:       &http.Client{Timeout: 60 * time.Second},
		log:          log,
	}, nil
}

// Method labels extractions produced by this provider.
func (p *AdobeProvider) Method() string { return MethodAdobeExtract }

// ExtractPDF runs the document through the Extract API and returns the
// concatenated text elements.
func (p *AdobeProvider) ExtractPDF(ctx context.Context, data []byte) (string, error) {
	token, err := p.fetchToken(ctx)
	if err != nil {
		return "", fmt.Errorf("fetching access token: %w", err)
	}

	assetID, uploadURI, err := p.createAsset(ctx, token)
	if err != nil {
		return "", fmt.Errorf("creating asset: %w", err)
	}

	if err := p.uploadAsset(ctx, uploadURI, data); err != nil {
		return "", fmt.Errorf("uploading asset: %w", err)
	}

	pollURL, err := p.submitExtractJob(ctx, token, assetID)
	if err != nil {
		return "", fmt.Errorf("submitting extract job: %w", err)
	}

	downloadURI, err := p.waitForJob(ctx, token, pollURL)
	if err != nil {
		return "", fmt.Errorf("waiting for extract job: %w", err)
	}

	text, err := p.downloadText(ctx, downloadURI)
	if err != nil {
		return "", fmt.Errorf("downloading extract result: %w", err)
	}

	p.log.Info("Adobe extract finished", zap.Int("chars", len(text)))
	return text, nil
}

func (p *AdobeProvider) fetchToken(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("client_id", p.clientID)
	form.Set("client_secret", p.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+"/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := p.doJSON(req, http.StatusOK, &body); err != nil {
		return "", err
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("token response carries no access token")
	}
	return body.AccessToken, nil
}

func (p *AdobeProvider) createAsset(ctx context.Context, token string) (assetID, uploadURI string, err error) {
	payload, err := json.Marshal(map[string]string{"mediaType": "application/pdf"})
	if err != nil {
		return "", "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+"/assets", bytes.NewReader(payload))
	if err != nil {
		return "", "", err
	}
	p.setAuthHeaders(req, token)
	req.Header.Set("Content-Type", "application/json")

	var body struct {
		AssetID   string `json:"assetID"`
		UploadURI string `json:"uploadUri"`
	}
	if err := p.doJSON(req, http.StatusOK, &body); err != nil {
		return "", "", err
	}
	if body.AssetID == "" || body.UploadURI == "" {
		return "", "", fmt.Errorf("asset response is missing assetID or uploadUri")
	}
	return body.AssetID, body.UploadURI, nil
}

func (p *AdobeProvider) uploadAsset(ctx context.Context, uploadURI string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURI, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/pdf")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("upload returned status %d", resp.StatusCode)
	}
	return nil
}

func (p *AdobeProvider) submitExtractJob(ctx context.Context, token, assetID string) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"assetID":           assetID,
		"elementsToExtract": []string{"text", "tables"},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+"/operation/extractpdf", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	p.setAuthHeaders(req, token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("extract job returned status %d", resp.StatusCode)
	}

	pollURL := resp.Header.Get("Location")
	if pollURL == "" {
		return "", fmt.Errorf("extract job response carries no Location header")
	}
	return pollURL, nil
}

// waitForJob polls the job status until it reports done and returns the
// structured-content download URI.
func (p *AdobeProvider) waitForJob(ctx context.Context, token, pollURL string) (string, error) {
	deadline := time.Now().Add(adobeJobTimeout)
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pollURL, nil)
		if err != nil {
			return "", err
		}
		p.setAuthHeaders(req, token)

		var body struct {
			Status  string `json:"status"`
			Error   string `json:"error"`
			Content struct {
				DownloadURI string `json:"downloadUri"`
			} `json:"content"`
		}
		if err := p.doJSON(req, http.StatusOK, &body); err != nil {
			return "", err
		}

		switch body.Status {
		case "done":
			if body.Content.DownloadURI == "" {
				return "", fmt.Errorf("finished job carries no content download URI")
			}
			return body.Content.DownloadURI, nil
		case "failed":
			return "", fmt.Errorf("extract job failed: %s", body.Error)
		}

		if time.Now().After(deadline) {
			return "", fmt.Errorf("extract job did not finish within %s", adobeJobTimeout)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(adobePollInterval):
		}
	}
}

// downloadText fetches the structured extract result and joins its text
// elements.
func (p *AdobeProvider) downloadText(ctx context.Context, downloadURI string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURI, nil)
	if err != nil {
		return "", err
	}

	var body struct {
		Elements []struct {
			Text string `json:"Text"`
		} `json:"elements"`
	}
	if err := p.doJSON(req, http.StatusOK, &body); err != nil {
		return "", err
	}

	parts := make([]string, 0, len(body.Elements))
	for _, element := range body.Elements {
		if element.Text != "" {
			parts = append(parts, element.Text)
		}
	}
	return strings.Join(parts, "\n"), nil
}

func (p *AdobeProvider) setAuthHeaders(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-API-Key", p.clientID)
	if p.orgID != "" {
		req.Header.Set("X-Gw-Ims-Org-Id", p.orgID)
	}
}

// doJSON runs the request and decodes a JSON response with the expected
// status.
func (p *AdobeProvider) doJSON(req *http.Request, wantStatus int, out any) error {
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s returned status %d: %s", req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
