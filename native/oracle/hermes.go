package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const defaultHermesEndpoint = "https://hermes.pyth.network/v2/updates/price/latest"

// HTTPDoer abstracts http.Client for ease of testing.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HermesSource fetches the latest published price for a Pyth feed from a
// Hermes endpoint. Only the parsed representation is consumed; the signed
// update blob and its on-chain posting mechanics are a collaborator concern.
type HermesSource struct {
	client   HTTPDoer
	endpoint string
}

// NewHermesSource constructs a Hermes adapter. When client is nil
// http.DefaultClient is used; an empty endpoint selects the public Hermes
// deployment.
func NewHermesSource(client HTTPDoer, endpoint string) *HermesSource {
	ep := strings.TrimSpace(endpoint)
	if ep == "" {
		ep = defaultHermesEndpoint
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HermesSource{client: client, endpoint: ep}
}

type hermesEnvelope struct {
	Parsed []hermesPriceUpdate `json:"parsed"`
}

type hermesPriceUpdate struct {
	ID    string              `json:"id"`
	Price hermesPriceSnapshot `json:"price"`
}

type hermesPriceSnapshot struct {
	Price       string `json:"price"`
	Conf        string `json:"conf"`
	Expo        int32  `json:"expo"`
	PublishTime int64  `json:"publish_time"`
}

// Latest implements the Source interface.
func (h *HermesSource) Latest(ctx context.Context, feedID string) (PricePoint, error) {
	if h == nil {
		return PricePoint{}, fmt.Errorf("oracle: hermes source not configured")
	}
	id := NormalizeFeedID(feedID)
	if id == "" {
		return PricePoint{}, fmt.Errorf("oracle: feed id required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.endpoint, nil)
	if err != nil {
		return PricePoint{}, err
	}
	values := url.Values{}
	values.Add("ids[]", id)
	values.Set("parsed", "true")
	req.URL.RawQuery = values.Encode()
	resp, err := h.client.Do(req)
	if err != nil {
		return PricePoint{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return PricePoint{}, fmt.Errorf("oracle: hermes status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var envelope hermesEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return PricePoint{}, fmt.Errorf("oracle: hermes decode: %w", err)
	}
	for _, update := range envelope.Parsed {
		if NormalizeFeedID(update.ID) != id {
			continue
		}
		price, err := strconv.ParseInt(strings.TrimSpace(update.Price.Price), 10, 64)
		if err != nil {
			return PricePoint{}, fmt.Errorf("oracle: hermes price %q: %w", update.Price.Price, err)
		}
		conf, err := strconv.ParseUint(strings.TrimSpace(update.Price.Conf), 10, 64)
		if err != nil {
			conf = 0
		}
		point := PricePoint{
			FeedID:      id,
			Price:       price,
			Conf:        conf,
			Expo:        update.Price.Expo,
			PublishTime: update.Price.PublishTime,
		}
		return point.Normalize(), nil
	}
	return PricePoint{}, fmt.Errorf("%w: %s", ErrUnknownFeed, id)
}
