package lookup

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"hornbot/internal/netutil"
)

// Nicknames maps community shorthand to canonical entity names, one table
// per kind. The tables come from a remote CSV refreshed on a cycle and are
// persisted between runs so a dead remote does not wipe them.
type Nicknames struct {
	mu     sync.Mutex
	tables map[string]map[string]string
}

func NewNicknames() *Nicknames {
	return &Nicknames{tables: make(map[string]map[string]string)}
}

// ParseNicknamesCSV reads rows of the form kind,nickname,canonical. A
// header row and rows with the wrong shape are skipped. Nicknames match
// case-insensitively, so they are keyed lowercased.
func ParseNicknamesCSV(data []byte) (map[string]map[string]string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing nicknames csv: %w", err)
	}

	tables := make(map[string]map[string]string)
	for _, rec := range records {
		if len(rec) != 3 {
			continue
		}
		kind, nick, canonical := strings.TrimSpace(rec[0]), strings.TrimSpace(rec[1]), strings.TrimSpace(rec[2])
		if kind == "kind" && nick == "nickname" {
			continue
		}
		if kind == "" || nick == "" || canonical == "" {
			continue
		}
		table := tables[kind]
		if table == nil {
			table = make(map[string]string)
			tables[kind] = table
		}
		table[strings.ToLower(nick)] = canonical
	}
	return tables, nil
}

// Canonical translates a nickname of the given kind, or returns name
// untouched when no entry matches.
func (n *Nicknames) Canonical(kind string, name string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if canonical, ok := n.tables[kind][strings.ToLower(name)]; ok {
		return canonical
	}
	return name
}

// Refresh fetches the CSV and swaps the tables in. A fetch or parse
// failure keeps the tables already loaded.
func (n *Nicknames) Refresh(proxy *netutil.Proxy, csvURL string) {
	if csvURL == "" {
		return
	}
	data := proxy.Get(csvURL, false)
	if data == nil {
		log.Warn().Msg("Could not fetch nicknames, keeping the current tables")
		return
	}
	tables, err := ParseNicknamesCSV(data)
	if err != nil {
		log.Warn().Err(err).Msg("Could not parse nicknames, keeping the current tables")
		return
	}

	n.mu.Lock()
	n.tables = tables
	n.mu.Unlock()
	log.Info().Msgf("Nicknames refreshed: %d tables, %d entries", len(tables), countEntries(tables))
}

// Snapshot returns the tables for persistence.
func (n *Nicknames) Snapshot() map[string]map[string]string {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make(map[string]map[string]string, len(n.tables))
	for kind, table := range n.tables {
		copied := make(map[string]string, len(table))
		for nick, canonical := range table {
			copied[nick] = canonical
		}
		out[kind] = copied
	}
	return out
}

// Restore loads previously persisted tables.
func (n *Nicknames) Restore(tables map[string]map[string]string) {
	if tables == nil {
		tables = make(map[string]map[string]string)
	}
	n.mu.Lock()
	n.tables = tables
	n.mu.Unlock()
}

// Len reports the total number of nickname entries.
func (n *Nicknames) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return countEntries(n.tables)
}

func countEntries(tables map[string]map[string]string) int {
	total := 0
	for _, table := range tables {
		total += len(table)
	}
	return total
}
