// Package community implements Community Reports (spec.md §4.11): a
// persistent append-only journal of community-submitted risk reports
// plus a one-per-(report,voter) vote journal. spec.md §6 mandates the
// canonical on-disk format: "JSON array of entries ... atomic replace
// on update" — so the journal is two JSON files (reports, votes),
// each rewritten via write-to-temp-then-rename, guarded by a single
// writer lock (spec.md §5). A SQLite index mirrors both files for
// address-scoped lookups, following the teacher's pkg/db.NewStore
// idiom (WAL journal mode, busy-timeout, schema-on-open); it is a
// cache rebuilt from the JSON files on open, never the source of
// truth.
package community

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/riskengine/walletrisk/pkg/chain"
)

// Category enumerates the report categories (verbatim from the
// original community_reports.py REPORT_CATEGORIES table).
type Category string

const (
	CategoryScam          Category = "scam"
	CategoryPhishing      Category = "phishing"
	CategoryRugPull       Category = "rug_pull"
	CategoryHoneypot      Category = "honeypot"
	CategoryImpersonation Category = "impersonation"
	CategoryWashTrading   Category = "wash_trading"
	CategoryDrainer       Category = "drainer"
	CategoryFakeToken     Category = "fake_token"
	CategoryPonzi         Category = "ponzi"
	CategoryOther         Category = "other"
)

var validCategories = map[Category]struct{}{
	CategoryScam: {}, CategoryPhishing: {}, CategoryRugPull: {}, CategoryHoneypot: {},
	CategoryImpersonation: {}, CategoryWashTrading: {}, CategoryDrainer: {},
	CategoryFakeToken: {}, CategoryPonzi: {}, CategoryOther: {},
}

// Status is the sticky report lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusDisputed  Status = "disputed"
	StatusDismissed Status = "dismissed"
)

const (
	maxDescriptionLen = 2000
	maxEvidenceURLs   = 5
	confirmThreshold  = 5
	dismissThreshold  = 5
	modifierCap       = 30.0
	minReportsForMod  = 2

	reportsFileName = "community_reports.json"
	votesFileName   = "community_votes.json"
	indexFileName   = "community_index.db"
)

// Report is a single community-submitted entry.
type Report struct {
	ID           string        `json:"id"`
	Address      chain.Address `json:"address"`
	Category     Category      `json:"category"`
	Description  string        `json:"description"`
	ReporterID   string        `json:"reporter_id"`
	EvidenceURLs []string      `json:"evidence_urls"`
	ChainID      int64         `json:"chain_id"`
	Timestamp    int64         `json:"timestamp"`
	Upvotes      int           `json:"upvotes"`
	Downvotes    int           `json:"downvotes"`
	Status       Status        `json:"status"`
}

// VoteDirection is the caller's vote on a report.
type VoteDirection string

const (
	VoteUp   VoteDirection = "up"
	VoteDown VoteDirection = "down"
)

// voteRecord is one row of the votes journal file.
type voteRecord struct {
	ReportID  string        `json:"report_id"`
	VoterID   string        `json:"voter_id"`
	Direction VoteDirection `json:"direction"`
}

const indexSchema = `
CREATE TABLE IF NOT EXISTS community_reports (
	id TEXT PRIMARY KEY,
	address TEXT NOT NULL,
	category TEXT NOT NULL,
	description TEXT NOT NULL,
	reporter_id TEXT NOT NULL,
	evidence_urls TEXT NOT NULL,
	chain_id INTEGER NOT NULL,
	timestamp INTEGER NOT NULL,
	upvotes INTEGER NOT NULL DEFAULT 0,
	downvotes INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'pending'
);
CREATE INDEX IF NOT EXISTS idx_reports_address ON community_reports(address);

CREATE TABLE IF NOT EXISTS community_votes (
	report_id TEXT NOT NULL,
	voter_id TEXT NOT NULL,
	direction TEXT NOT NULL,
	PRIMARY KEY (report_id, voter_id)
);
`

// Journal is the community-reports store. reports/votes are the
// in-memory mirror of the two canonical JSON files; db is a
// best-effort SQLite index over the same data for address-scoped
// queries.
type Journal struct {
	mu          sync.RWMutex
	reportsPath string
	votesPath   string

	reports []Report
	votes   map[string]map[string]VoteDirection // reportID -> voterID -> direction

	db *sql.DB
}

// Open loads the JSON journal files from dir (creating it if
// necessary) and rebuilds the SQLite index from their contents.
func Open(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create community dir: %w", err)
	}

	j := &Journal{
		reportsPath: filepath.Join(dir, reportsFileName),
		votesPath:   filepath.Join(dir, votesFileName),
		votes:       make(map[string]map[string]VoteDirection),
	}

	if err := loadJSONFile(j.reportsPath, &j.reports); err != nil {
		return nil, fmt.Errorf("load community reports journal: %w", err)
	}
	var voteRecords []voteRecord
	if err := loadJSONFile(j.votesPath, &voteRecords); err != nil {
		return nil, fmt.Errorf("load community votes journal: %w", err)
	}
	for _, v := range voteRecords {
		if j.votes[v.ReportID] == nil {
			j.votes[v.ReportID] = make(map[string]VoteDirection)
		}
		j.votes[v.ReportID][v.VoterID] = v.Direction
	}

	db, err := sql.Open("sqlite3", filepath.Join(dir, indexFileName)+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open community index: %w", err)
	}
	if _, err := db.Exec(indexSchema); err != nil {
		return nil, fmt.Errorf("init community index schema: %w", err)
	}
	j.db = db
	if err := j.rebuildIndex(); err != nil {
		return nil, fmt.Errorf("rebuild community index: %w", err)
	}
	return j, nil
}

// rebuildIndex repopulates the SQLite cache from the in-memory (i.e.
// JSON-journal-sourced) state. Called once at Open; afterwards the
// index is kept in sync incrementally by Submit/Vote.
func (j *Journal) rebuildIndex() error {
	tx, err := j.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`DELETE FROM community_reports`); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM community_votes`); err != nil {
		return err
	}
	for _, r := range j.reports {
		if err := indexUpsertReport(tx, r); err != nil {
			return err
		}
	}
	for reportID, byVoter := range j.votes {
		for voterID, direction := range byVoter {
			if _, err := tx.Exec(`INSERT OR IGNORE INTO community_votes (report_id, voter_id, direction) VALUES (?, ?, ?)`,
				reportID, voterID, string(direction)); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

type sqlExecer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func indexUpsertReport(ex sqlExecer, r Report) error {
	_, err := ex.Exec(
		`INSERT INTO community_reports (id, address, category, description, reporter_id, evidence_urls, chain_id, timestamp, upvotes, downvotes, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET upvotes=excluded.upvotes, downvotes=excluded.downvotes, status=excluded.status`,
		r.ID, string(r.Address), string(r.Category), r.Description, r.ReporterID, joinURLs(r.EvidenceURLs), r.ChainID, r.Timestamp, r.Upvotes, r.Downvotes, string(r.Status),
	)
	return err
}

// loadJSONFile unmarshals path into out, leaving out untouched (its
// zero value) if the file does not exist yet.
func loadJSONFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

// atomicWriteJSON implements spec.md §6's "atomic replace on update":
// marshal to a temp file in the same directory, then rename over the
// target so readers never observe a partial write.
func atomicWriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Close releases the underlying SQLite index handle.
func (j *Journal) Close() error { return j.db.Close() }

// InvalidReportError reports a validation failure on Submit.
type InvalidReportError struct {
	Reason string
}

func (e *InvalidReportError) Error() string { return "invalid community report: " + e.Reason }

// reportID computes the SHA-256 prefix ID spec.md §4.11 defines.
func reportID(address chain.Address, reporterID string, category Category, timestamp int64) string {
	h := sha256.New()
	h.Write([]byte(string(address)))
	h.Write([]byte(reporterID))
	h.Write([]byte(category))
	h.Write([]byte(strconv.FormatInt(timestamp, 10)))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Submit appends a new report to the journal (spec.md §4.11).
func (j *Journal) Submit(address chain.Address, category Category, description, reporterID string, evidenceURLs []string, chainID int64, timestamp int64) (Report, error) {
	if _, ok := validCategories[category]; !ok {
		return Report{}, &InvalidReportError{Reason: "unknown category " + string(category)}
	}
	if len(description) > maxDescriptionLen {
		return Report{}, &InvalidReportError{Reason: "description exceeds 2000 characters"}
	}
	if len(evidenceURLs) > maxEvidenceURLs {
		return Report{}, &InvalidReportError{Reason: "more than 5 evidence URLs"}
	}

	r := Report{
		ID:           reportID(address, reporterID, category, timestamp),
		Address:      address,
		Category:     category,
		Description:  description,
		ReporterID:   reporterID,
		EvidenceURLs: evidenceURLs,
		ChainID:      chainID,
		Timestamp:    timestamp,
		Status:       StatusPending,
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	updated := append(append([]Report{}, j.reports...), r)
	if err := atomicWriteJSON(j.reportsPath, updated); err != nil {
		return Report{}, fmt.Errorf("write community reports journal: %w", err)
	}
	j.reports = updated

	if err := indexUpsertReport(j.db, r); err != nil {
		return Report{}, fmt.Errorf("index report: %w", err)
	}
	return r, nil
}

// AlreadyVotedError reports a duplicate vote attempt.
type AlreadyVotedError struct {
	ReportID, VoterID string
}

func (e *AlreadyVotedError) Error() string {
	return fmt.Sprintf("voter %q already voted on report %q", e.VoterID, e.ReportID)
}

// Vote records a single upvote/downvote, enforced one-per-(report,voter)
// by the in-memory vote map mirrored onto disk, and applies the sticky
// confirmed/dismissed status transition (spec.md §4.11).
func (j *Journal) Vote(reportID, voterID string, direction VoteDirection) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.votes[reportID] != nil {
		if _, voted := j.votes[reportID][voterID]; voted {
			return &AlreadyVotedError{ReportID: reportID, VoterID: voterID}
		}
	}

	idx := -1
	for i, r := range j.reports {
		if r.ID == reportID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("unknown report %q", reportID)
	}

	updatedReports := append([]Report{}, j.reports...)
	r := updatedReports[idx]
	if direction == VoteDown {
		r.Downvotes++
	} else {
		r.Upvotes++
	}
	// status transitions are sticky: never move away from confirmed/dismissed.
	if r.Status == StatusPending || r.Status == StatusDisputed {
		switch {
		case r.Upvotes >= confirmThreshold:
			r.Status = StatusConfirmed
		case r.Downvotes >= dismissThreshold:
			r.Status = StatusDismissed
		}
	}
	updatedReports[idx] = r

	updatedVotes := make(map[string]map[string]VoteDirection, len(j.votes))
	for rid, byVoter := range j.votes {
		cp := make(map[string]VoteDirection, len(byVoter))
		for v, d := range byVoter {
			cp[v] = d
		}
		updatedVotes[rid] = cp
	}
	if updatedVotes[reportID] == nil {
		updatedVotes[reportID] = make(map[string]VoteDirection)
	}
	updatedVotes[reportID][voterID] = direction

	if err := atomicWriteJSON(j.reportsPath, updatedReports); err != nil {
		return fmt.Errorf("write community reports journal: %w", err)
	}
	if err := atomicWriteJSON(j.votesPath, flattenVotes(updatedVotes)); err != nil {
		return fmt.Errorf("write community votes journal: %w", err)
	}
	j.reports = updatedReports
	j.votes = updatedVotes

	if err := indexUpsertReport(j.db, r); err != nil {
		return fmt.Errorf("index report: %w", err)
	}
	if _, err := j.db.Exec(`INSERT OR IGNORE INTO community_votes (report_id, voter_id, direction) VALUES (?, ?, ?)`,
		reportID, voterID, string(direction)); err != nil {
		return fmt.Errorf("index vote: %w", err)
	}
	return nil
}

func flattenVotes(votes map[string]map[string]VoteDirection) []voteRecord {
	out := make([]voteRecord, 0)
	for reportID, byVoter := range votes {
		for voterID, direction := range byVoter {
			out = append(out, voteRecord{ReportID: reportID, VoterID: voterID, Direction: direction})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ReportID != out[j].ReportID {
			return out[i].ReportID < out[j].ReportID
		}
		return out[i].VoterID < out[j].VoterID
	})
	return out
}

// RiskModifier computes the aggregate community risk modifier for an
// address (spec.md §4.11): min(30, floor(8*log2(total+1))) when total
// reports >= 2, else 0. Served from the SQLite index.
func (j *Journal) RiskModifier(address chain.Address) (float64, int, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var total int
	err := j.db.QueryRow(`SELECT COUNT(*) FROM community_reports WHERE address = ?`, string(address)).Scan(&total)
	if err != nil {
		return 0, 0, fmt.Errorf("count reports: %w", err)
	}
	if total < minReportsForMod {
		return 0, total, nil
	}
	modifier := math.Floor(8 * math.Log2(float64(total)+1))
	return math.Min(modifierCap, modifier), total, nil
}

// Reports lists every report filed against address, most recent first.
func (j *Journal) Reports(address chain.Address) ([]Report, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	rows, err := j.db.Query(
		`SELECT id, address, category, description, reporter_id, evidence_urls, chain_id, timestamp, upvotes, downvotes, status
		 FROM community_reports WHERE address = ? ORDER BY timestamp DESC`,
		string(address),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Report{}
	for rows.Next() {
		var r Report
		var addrStr, category, status, urls string
		if err := rows.Scan(&r.ID, &addrStr, &category, &r.Description, &r.ReporterID, &urls, &r.ChainID, &r.Timestamp, &r.Upvotes, &r.Downvotes, &status); err != nil {
			continue
		}
		r.Address = chain.Address(addrStr)
		r.Category = Category(category)
		r.Status = Status(status)
		r.EvidenceURLs = splitURLs(urls)
		out = append(out, r)
	}
	return out, nil
}

func joinURLs(urls []string) string {
	out := ""
	for i, u := range urls {
		if i > 0 {
			out += "\n"
		}
		out += u
	}
	return out
}

func splitURLs(joined string) []string {
	if joined == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(joined); i++ {
		if i == len(joined) || joined[i] == '\n' {
			out = append(out, joined[start:i])
			start = i + 1
		}
	}
	return out
}
