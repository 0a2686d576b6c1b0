package source

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/brotli"
	"golang.org/x/time/rate"

	"github.com/skuflow/repricer/internal/model"
)

const (
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// HTTPSource scrapes a marketplace offer-listing page. It rate-limits its
// own requests and decodes gzip/brotli responses.
type HTTPSource struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	name    string
}

// NewHTTPSource creates a scraping source. requestsPerSec bounds the call
// rate regardless of how often the monitor asks.
func NewHTTPSource(baseURL string, requestsPerSec float64, timeout time.Duration) *HTTPSource {
	if requestsPerSec <= 0 {
		requestsPerSec = 1
	}
	return &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSec), 1),
		name:    "http",
	}
}

// Available implements OfferSource.
func (s *HTTPSource) Available() bool {
	return s.baseURL != ""
}

// FetchOffers implements OfferSource.
func (s *HTTPSource) FetchOffers(ctx context.Context, asin string) (*model.ScrapeResult, error) {
	if !s.Available() {
		return nil, fmt.Errorf("http source not configured")
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	start := time.Now()
	url := fmt.Sprintf("%s/gp/offer-listing/%s", s.baseURL, asin)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Encoding", "gzip, br")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching offers: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("offer page returned status %d", resp.StatusCode)
	}

	body, err := decodeBody(resp)
	if err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parsing offer page: %w", err)
	}

	offers := parseOffers(doc)
	return &model.ScrapeResult{
		ASIN:   asin,
		Offers: offers,
		Metadata: model.ScrapeMetadata{
			ScrapedAt:      time.Now(),
			Source:         s.name,
			ResponseTimeMs: time.Since(start).Milliseconds(),
		},
	}, nil
}

func decodeBody(resp *http.Response) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		return gz, nil
	case "br":
		return brotli.NewReader(resp.Body), nil
	default:
		return resp.Body, nil
	}
}

// parseOffers extracts seller offers from the offer-listing markup. Rows
// missing a parsable price are skipped.
func parseOffers(doc *goquery.Document) []model.Offer {
	var offers []model.Offer

	doc.Find(".olp-offer").Each(func(_ int, row *goquery.Selection) {
		priceText := row.Find(".olp-price").First().Text()
		price, ok := parsePrice(priceText)
		if !ok {
			return
		}

		offer := model.Offer{
			Price:      price,
			SellerID:   strings.TrimSpace(row.AttrOr("data-seller-id", "")),
			SellerName: strings.TrimSpace(row.Find(".olp-seller-name").First().Text()),
			InStock:    true,
		}

		if ship, ok := parsePrice(row.Find(".olp-shipping-price").First().Text()); ok {
			offer.ShippingCost = ship
		}
		if row.Find(".olp-prime-badge").Length() > 0 {
			offer.Prime = true
		}
		if strings.Contains(strings.ToLower(row.Find(".olp-fulfillment").Text()), "fulfilled by") {
			offer.Fulfillment = model.FulfillmentPlatform
		} else {
			offer.Fulfillment = model.FulfillmentMerchant
		}
		if row.HasClass("olp-featured-offer") {
			offer.HasBuyBox = true
		}
		if strings.Contains(strings.ToLower(row.Find(".olp-availability").Text()), "unavailable") {
			offer.InStock = false
		}

		offer.SellerRating, offer.FeedbackCount = parseSellerFeedback(
			row.Find(".olp-seller-rating").First().Text())

		if offer.SellerID == "" {
			offer.SellerID = offer.SellerName
		}
		offers = append(offers, offer)
	})

	return offers
}

// parsePrice pulls the first dollar amount out of text like "$28.95" or
// "+ $3.99 shipping".
func parsePrice(text string) (float64, bool) {
	text = strings.TrimSpace(text)
	idx := strings.Index(text, "$")
	if idx < 0 {
		return 0, false
	}
	text = text[idx+1:]
	end := 0
	for end < len(text) && (text[end] == '.' || text[end] == ',' || (text[end] >= '0' && text[end] <= '9')) {
		end++
	}
	if end == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(text[:end], ",", ""), 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// parseSellerFeedback reads "4.7 stars, 1,234 ratings" style text.
func parseSellerFeedback(text string) (rating float64, count int) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, 0
	}
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !(r == '.' || r == ',' || (r >= '0' && r <= '9'))
	})
	if len(fields) > 0 {
		rating, _ = strconv.ParseFloat(fields[0], 64)
	}
	if len(fields) > 1 {
		n, err := strconv.Atoi(strings.ReplaceAll(fields[1], ",", ""))
		if err == nil {
			count = n
		}
	}
	if rating > 5 {
		rating = 0
	}
	return rating, count
}
