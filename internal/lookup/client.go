package lookup

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"hornbot/internal/hunter"
	"hornbot/internal/netutil"
)

// The two kinds of searchable entities, also the nickname table keys.
const (
	KindMouse = "mouse"
	KindItem  = "item"
)

// Config holds the remote endpoints. The search and shortener URLs are
// format strings; the query goes where the %s is.
type Config struct {
	MouseSearchURL string `yaml:"mouse_search_url"`
	ItemSearchURL  string `yaml:"item_search_url"`
	HunterHintURL  string `yaml:"hunter_hint_url"`
	HunterMapURL   string `yaml:"hunter_map_url"`
	ShortenerURL   string `yaml:"shortener_url"`
}

// Row is one attraction or drop entry from the search services.
type Row struct {
	Location string  `json:"location"`
	Stage    string  `json:"stage,omitempty"`
	Cheese   string  `json:"cheese"`
	Rate     float64 `json:"rate"`
	Hunts    int     `json:"total_hunts"`
}

// Client answers entity searches and relic hunter location queries from
// the remote services. Every lookup degrades to an empty result when the
// remote is unreachable or answers garbage.
type Client struct {
	config Config
	proxy  *netutil.Proxy
	nicks  *Nicknames
}

func NewClient(config Config, proxy *netutil.Proxy, nicks *Nicknames) *Client {
	return &Client{config: config, proxy: proxy, nicks: nicks}
}

// FindMouse returns the attraction rows for a mouse, best rate first.
// The name goes through the nickname table before the query.
func (c *Client) FindMouse(name string) []Row {
	return c.find(c.config.MouseSearchURL, KindMouse, name)
}

// FindItem returns the drop rows for an item, best rate first.
func (c *Client) FindItem(name string) []Row {
	return c.find(c.config.ItemSearchURL, KindItem, name)
}

// SearchURL returns the query URL a search for name hits, usable as a
// source link in replies. Empty when the endpoint is not configured.
func (c *Client) SearchURL(kind string, name string) string {
	route := c.config.MouseSearchURL
	if kind == KindItem {
		route = c.config.ItemSearchURL
	}
	if route == "" {
		return ""
	}
	return fmt.Sprintf(route, url.QueryEscape(c.nicks.Canonical(kind, name)))
}

func (c *Client) find(route string, kind string, name string) []Row {
	if route == "" {
		return nil
	}
	canonical := c.nicks.Canonical(kind, name)
	if canonical != name {
		log.Debug().Msgf("Search %q resolved to %s name %q", name, kind, canonical)
	}

	data := c.proxy.Get(fmt.Sprintf(route, url.QueryEscape(canonical)), false)
	if data == nil {
		return nil
	}

	var rows []Row
	if err := json.Unmarshal(data, &rows); err != nil {
		log.Warn().Err(err).Msgf("Search response for %s %q is not understood", kind, canonical)
		return nil
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Rate > rows[j].Rate })
	return rows
}

// HunterLocation asks the hint service for the relic hunter's location and
// falls back to the community map. Both coming up empty is a valid answer,
// reported as an empty location.
func (c *Client) HunterLocation() (location string, source string) {
	if loc := c.hunterFrom(c.config.HunterHintURL); loc != "" {
		return loc, hunter.SourceHint
	}
	if loc := c.hunterFrom(c.config.HunterMapURL); loc != "" {
		return loc, hunter.SourceMap
	}
	return "", ""
}

func (c *Client) hunterFrom(route string) string {
	if route == "" {
		return ""
	}
	data := c.proxy.Get(route, false)
	if data == nil {
		return ""
	}
	var raw struct {
		Location string `json:"location"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		log.Warn().Err(err).Msgf("Hunter location response from %s is not understood", route)
		return ""
	}
	loc := strings.TrimSpace(raw.Location)
	if strings.EqualFold(loc, hunter.Unknown) {
		return ""
	}
	return loc
}

// Shorten asks the shortener for a compact form of long. Any trouble just
// hands the long URL back.
func (c *Client) Shorten(long string) string {
	if c.config.ShortenerURL == "" {
		return long
	}
	data := c.proxy.Get(fmt.Sprintf(c.config.ShortenerURL, url.QueryEscape(long)), false)
	if data == nil {
		return long
	}
	short := strings.TrimSpace(string(data))
	if !strings.HasPrefix(short, "http") {
		log.Warn().Msgf("Shortener answered %q, keeping the long url", short)
		return long
	}
	return short
}
