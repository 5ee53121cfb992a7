package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/sparkmeet/moderation-worker/internal/config"
)

// ModelList is the fixed, fully-enumerated set of detector models requested
// for every image submission. Changing this list changes billing and the
// response shape, so it is versioned here rather than assembled at call sites.
const ModelListVersion = "2025-03"

var ImageModels = []string{
	"nudity-2.1",
	"weapon",
	"recreational_drug",
	"medical",
	"offensive-2.0",
	"faces",
	"scam",
	"text-content",
	"face-attributes",
	"gore-2.0",
	"qr-content",
	"tobacco",
	"genai",
	"violence",
	"self-harm",
	"gambling",
	"type",
	"text",
}

var (
	ErrVendorRejected = errors.New("moderation vendor rejected the request")
	ErrNoUsableResult = errors.New("moderation response contained no usable result")
)

// ImageAnalysis is the raw vendor response for an image submission, keyed by
// model/category name. Pointer fields are nil when the vendor omitted the
// model from the response.
type ImageAnalysis struct {
	Status           string        `json:"status"`
	Nudity           *NuditySignal `json:"nudity,omitempty"`
	Weapon           float64       `json:"weapon"`
	RecreationalDrug float64       `json:"recreational_drug"`
	Medical          float64       `json:"medical"`
	Offensive        *ProbSignal   `json:"offensive,omitempty"`
	Gore             *ProbSignal   `json:"gore,omitempty"`
	Violence         *ProbSignal   `json:"violence,omitempty"`
	SelfHarm         *ProbSignal   `json:"self-harm,omitempty"`
	Scam             *ProbSignal   `json:"scam,omitempty"`
	Gambling         *ProbSignal   `json:"gambling,omitempty"`
	Tobacco          *ProbSignal   `json:"tobacco,omitempty"`
	Type             *TypeSignal   `json:"type,omitempty"`
	QR               *QRSignal     `json:"qr,omitempty"`
	Text             *TextSignal   `json:"text,omitempty"`
	Faces            []FaceSignal  `json:"faces,omitempty"`
}

type ProbSignal struct {
	Prob float64 `json:"prob"`
}

type NuditySignal struct {
	Raw     float64 `json:"raw"`
	Partial float64 `json:"partial"`
	Safe    float64 `json:"safe"`
}

type TypeSignal struct {
	AIGenerated  float64 `json:"ai_generated"`
	Illustration float64 `json:"illustration"`
	Photo        float64 `json:"photo"`
}

type QRSignal struct {
	Link     []QRMatch `json:"link,omitempty"`
	Personal []QRMatch `json:"personal,omitempty"`
	Social   []QRMatch `json:"social,omitempty"`
}

type QRMatch struct {
	Type  string `json:"type"`
	Match string `json:"match"`
}

type TextSignal struct {
	HasArtificial   float64     `json:"has_artificial"`
	PersonalNumbers []TextMatch `json:"personal_numbers,omitempty"`
	Profanity       []TextMatch `json:"profanity,omitempty"`
}

type TextMatch struct {
	Type  string `json:"type"`
	Match string `json:"match"`
}

type FaceSignal struct {
	Attributes FaceAttributes `json:"attributes"`
}

type FaceAttributes struct {
	Minor float64 `json:"minor"`
}

// TextAnalysis is the raw vendor response for a free-text submission.
type TextAnalysis struct {
	Status     string          `json:"status"`
	Violations []TextViolation `json:"violations,omitempty"`
}

type TextViolation struct {
	Type  string `json:"type"`
	Match string `json:"match"`
}

// Client submits images and free text to the moderation vendor. It is pure
// request/response: no retries, no interpretation beyond JSON decoding. Many
// calls are issued per reviewed user, so the underlying transport keeps
// connections alive.
type Client struct {
	httpClient *http.Client
	imageURL   string
	textURL    string
	apiUser    string
	apiSecret  string
}

func NewClient(cfg *config.Config) *Client {
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.ModerationTimeout,
			Transport: transport,
		},
		imageURL:  cfg.ModerationImageURL,
		textURL:   cfg.ModerationTextURL,
		apiUser:   cfg.ModerationAPIUser,
		apiSecret: cfg.ModerationAPISecret,
	}
}

// HTTPClient exposes the underlying client for test transports.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// CheckImage submits one image as multipart form data with the fixed model
// list and credentials. A non-2xx response or a vendor-level failure status is
// a hard error for the caller's review.
func (c *Client) CheckImage(ctx context.Context, filename string, image []byte) (*ImageAnalysis, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("media", filepath.Base(filename))
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(image); err != nil {
		return nil, err
	}
	if err := writer.WriteField("models", strings.Join(ImageModels, ",")); err != nil {
		return nil, err
	}
	if err := writer.WriteField("api_user", c.apiUser); err != nil {
		return nil, err
	}
	if err := writer.WriteField("api_secret", c.apiSecret); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.imageURL, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image moderation request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrVendorRejected, resp.StatusCode)
	}

	var analysis ImageAnalysis
	if err := json.Unmarshal(respBody, &analysis); err != nil {
		return nil, fmt.Errorf("failed to decode image moderation response: %w", err)
	}
	if analysis.Status != "success" {
		return nil, fmt.Errorf("%w: vendor status %q", ErrVendorRejected, analysis.Status)
	}
	return &analysis, nil
}

// CheckText submits free text to the text-moderation endpoint. Callers treat
// failures here as soft: log and proceed as "no violation this run".
func (c *Client) CheckText(ctx context.Context, content string) (*TextAnalysis, error) {
	payload, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return nil, err
	}

	endpoint := c.textURL
	if c.apiUser != "" {
		q := url.Values{}
		q.Set("api_user", c.apiUser)
		q.Set("api_secret", c.apiSecret)
		endpoint = endpoint + "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("text moderation request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrVendorRejected, resp.StatusCode)
	}

	var analysis TextAnalysis
	if err := json.Unmarshal(respBody, &analysis); err != nil {
		return nil, fmt.Errorf("failed to decode text moderation response: %w", err)
	}
	return &analysis, nil
}
