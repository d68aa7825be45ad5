package maps

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/loggas/loggas-backend/pkg/config"
	pkgerrors "github.com/loggas/loggas-backend/pkg/errors"
)

const (
	defaultBaseURL              = "https://places.googleapis.com/v1"
	defaultTimeout              = 10 * time.Second
	autocompleteFieldMask       = "suggestions.placePrediction.placeId,suggestions.placePrediction.text"
	placeDetailsFieldMask       = "id,formattedAddress,location,addressComponents"
	errorBodyLimit        int64 = 1024
)

var errAPIKeyRequired = errors.New("maps api key is required")

// Client talks to the Google Places API to normalize delivery addresses.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	region     string
	language   string
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.baseURL = strings.TrimRight(trimmed, "/")
		}
	}
}

// NewClient builds a Places client biased to the configured region and
// language.
func NewClient(cfg config.MapsConfig, opts ...Option) (*Client, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, errAPIKeyRequired
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := &Client{
		apiKey:     key,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: timeout},
		region:     strings.ToUpper(strings.TrimSpace(cfg.Region)),
		language:   strings.TrimSpace(cfg.Language),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// Prediction is one autocomplete candidate.
type Prediction struct {
	PlaceID     string
	Description string
}

// Place is the resolved place with its raw address components.
type Place struct {
	PlaceID          string
	FormattedAddress string
	Latitude         float64
	Longitude        float64
	Components       []Component
}

type Component struct {
	LongName  string
	ShortName string
	Types     []string
}

// Find returns the long name of the first component tagged kind.
func (p *Place) Find(kind string) (string, bool) {
	for _, comp := range p.Components {
		for _, typ := range comp.Types {
			if typ == kind && comp.LongName != "" {
				return comp.LongName, true
			}
		}
	}
	return "", false
}

// Autocomplete returns candidate places for a partial address. A non-empty
// sessionToken groups keystrokes into one billed session.
func (c *Client) Autocomplete(ctx context.Context, input, sessionToken string) ([]Prediction, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "maps client not configured")
	}
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address query is required")
	}

	body := map[string]any{"input": input}
	if c.region != "" {
		body["includedRegionCodes"] = []string{c.region}
	}
	if c.language != "" {
		body["languageCode"] = c.language
	}
	if token := strings.TrimSpace(sessionToken); token != "" {
		body["sessionToken"] = token
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal autocomplete request")
	}

	var apiResp struct {
		Suggestions []struct {
			Prediction struct {
				PlaceID string `json:"placeId"`
				Text    struct {
					Text string `json:"text"`
				} `json:"text"`
			} `json:"placePrediction"`
		} `json:"suggestions"`
	}
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/places:autocomplete", autocompleteFieldMask, payload, &apiResp); err != nil {
		return nil, err
	}

	out := make([]Prediction, 0, len(apiResp.Suggestions))
	for _, s := range apiResp.Suggestions {
		if s.Prediction.PlaceID == "" {
			continue
		}
		out = append(out, Prediction{PlaceID: s.Prediction.PlaceID, Description: s.Prediction.Text.Text})
	}
	return out, nil
}

// PlaceDetails resolves a place id from Autocomplete into coordinates and
// address components.
func (c *Client) PlaceDetails(ctx context.Context, placeID string) (*Place, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "maps client not configured")
	}
	placeID = strings.TrimSpace(placeID)
	if placeID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "place id is required")
	}

	endpoint := fmt.Sprintf("%s/places/%s", c.baseURL, url.PathEscape(placeID))
	if c.language != "" {
		endpoint += "?languageCode=" + url.QueryEscape(c.language)
	}

	var apiResp struct {
		ID               string `json:"id"`
		FormattedAddress string `json:"formattedAddress"`
		Location         struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"location"`
		AddressComponents []struct {
			LongText  string   `json:"longText"`
			ShortText string   `json:"shortText"`
			Types     []string `json:"types"`
		} `json:"addressComponents"`
	}
	if err := c.do(ctx, http.MethodGet, endpoint, placeDetailsFieldMask, nil, &apiResp); err != nil {
		return nil, err
	}

	place := &Place{
		PlaceID:          apiResp.ID,
		FormattedAddress: apiResp.FormattedAddress,
		Latitude:         apiResp.Location.Latitude,
		Longitude:        apiResp.Location.Longitude,
		Components:       make([]Component, 0, len(apiResp.AddressComponents)),
	}
	for _, comp := range apiResp.AddressComponents {
		place.Components = append(place.Components, Component{
			LongName:  comp.LongText,
			ShortName: comp.ShortText,
			Types:     comp.Types,
		})
	}
	return place, nil
}

func (c *Client) do(ctx context.Context, method, endpoint, fieldMask string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build maps request")
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", fieldMask)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "maps request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		cause := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		if resp.StatusCode == http.StatusNotFound {
			return pkgerrors.Wrap(pkgerrors.CodeNotFound, cause, "place not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, cause, "maps request rejected")
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode maps response")
	}
	return nil
}
