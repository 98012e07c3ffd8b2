package netutil

import (
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Proxy performs GET requests against external services, under the rate
// limiter's control. Any failure, local or remote, yields nil: callers
// treat missing data as an empty result, never as something to propagate.
type Proxy struct {
	header  map[string]string
	client  *http.Client
	limiter *RateLimiter
}

func NewProxy(header map[string]string, restrictions []Restriction) *Proxy {
	return &Proxy{
		header:  header,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: NewRateLimiter(restrictions),
	}
}

// Get fetches the url and returns the response body, or nil. Vital
// requests wait out the rate limiter; non-vital ones give up immediately
// when a slot is not free.
func (p *Proxy) Get(url string, vital bool) []byte {
	if !p.limiter.Allow(vital) {
		log.Warn().Msgf("Rate limiter did not allow the request to %s", url)
		return nil
	}

	request, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		log.Error().Err(err).Msgf("Could not create request for url %s", url)
		return nil
	}
	for key, value := range p.header {
		request.Header.Set(key, value)
	}

	res, err := p.client.Do(request)
	if err != nil {
		log.Error().Err(err).Msgf("Could not perform request to %s", url)
		return nil
	}
	defer res.Body.Close()
	log.Debug().Msgf("%d %s", res.StatusCode, http.StatusText(res.StatusCode))

	switch res.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(res.Body)
		if err != nil {
			log.Error().Err(err).Msgf("Could not read the response for url %s", url)
			return nil
		}
		return body
	case http.StatusTooManyRequests:
		p.limiter.ReceivedRateLimit()
		return nil
	default:
		log.Warn().Msgf("Request to %s answered %d", url, res.StatusCode)
		return nil
	}
}
