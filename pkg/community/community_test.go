package community

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/riskengine/walletrisk/pkg/chain"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func addr(t *testing.T, hex string) chain.Address {
	t.Helper()
	a, err := chain.ParseAddress(hex)
	if err != nil {
		t.Fatalf("ParseAddress(%q): %v", hex, err)
	}
	return a
}

func TestSubmitRejectsUnknownCategory(t *testing.T) {
	j := openTestJournal(t)
	_, err := j.Submit(addr(t, "0x1111111111111111111111111111111111111111"), Category("not_a_category"), "desc", "reporter1", nil, 1, 1000)
	if err == nil {
		t.Fatalf("expected error for unknown category")
	}
}

func TestVoteIsOncePerVoterAndTransitionsStatus(t *testing.T) {
	j := openTestJournal(t)
	target := addr(t, "0x1111111111111111111111111111111111111111")
	r, err := j.Submit(target, CategoryScam, "scam report", "reporter1", nil, 1, 1000)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	for i := 0; i < 5; i++ {
		voter := "voter" + string(rune('0'+i))
		if err := j.Vote(r.ID, voter, VoteUp); err != nil {
			t.Fatalf("Vote %d: %v", i, err)
		}
	}

	reports, err := j.Reports(target)
	if err != nil {
		t.Fatalf("Reports: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("expected 1 report, got %d", len(reports))
	}
	if reports[0].Status != StatusConfirmed {
		t.Fatalf("expected confirmed status after 5 upvotes, got %v", reports[0].Status)
	}

	if err := j.Vote(r.ID, "voter0", VoteUp); err == nil {
		t.Fatalf("expected duplicate vote from same voter to be rejected")
	}
}

func TestRiskModifierRequiresAtLeastTwoReports(t *testing.T) {
	j := openTestJournal(t)
	target := addr(t, "0x2222222222222222222222222222222222222222")

	mod, total, err := j.RiskModifier(target)
	if err != nil {
		t.Fatalf("RiskModifier: %v", err)
	}
	if mod != 0 || total != 0 {
		t.Fatalf("expected zero modifier with no reports, got mod=%v total=%v", mod, total)
	}

	if _, err := j.Submit(target, CategoryScam, "one", "reporterA", nil, 1, 1000); err != nil {
		t.Fatalf("Submit 1: %v", err)
	}
	mod, total, err = j.RiskModifier(target)
	if err != nil {
		t.Fatalf("RiskModifier: %v", err)
	}
	if mod != 0 || total != 1 {
		t.Fatalf("expected zero modifier with a single report, got mod=%v total=%v", mod, total)
	}

	if _, err := j.Submit(target, CategoryPhishing, "two", "reporterB", nil, 1, 2000); err != nil {
		t.Fatalf("Submit 2: %v", err)
	}
	mod, total, err = j.RiskModifier(target)
	if err != nil {
		t.Fatalf("RiskModifier: %v", err)
	}
	if total != 2 || mod <= 0 {
		t.Fatalf("expected nonzero modifier with 2 reports, got mod=%v total=%v", mod, total)
	}
}

func TestSubmitWritesCanonicalJSONJournal(t *testing.T) {
	dir := t.TempDir()
	j, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	target := addr(t, "0x1111111111111111111111111111111111111111")
	if _, err := j.Submit(target, CategoryScam, "desc", "reporter1", nil, 1, 1000); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	j.Close()

	data, err := os.ReadFile(filepath.Join(dir, reportsFileName))
	if err != nil {
		t.Fatalf("reading journal file: %v", err)
	}
	var onDisk []Report
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("journal file is not a JSON array of reports: %v", err)
	}
	if len(onDisk) != 1 || onDisk[0].Address != target {
		t.Fatalf("unexpected journal contents: %+v", onDisk)
	}
	if _, err := os.Stat(filepath.Join(dir, reportsFileName) + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("expected temp file to be renamed away, stat err: %v", err)
	}
}

func TestJournalSurvivesReopenFromJSON(t *testing.T) {
	dir := t.TempDir()
	j, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	target := addr(t, "0x3333333333333333333333333333333333333333")
	r, err := j.Submit(target, CategoryRugPull, "desc", "reporter1", nil, 1, 1000)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := j.Vote(r.ID, "voter1", VoteUp); err != nil {
		t.Fatalf("Vote: %v", err)
	}
	j.Close()

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	if err := reopened.Vote(r.ID, "voter1", VoteUp); err == nil {
		t.Fatalf("expected vote recorded before reopen to still be enforced")
	}
	reports, err := reopened.Reports(target)
	if err != nil {
		t.Fatalf("Reports: %v", err)
	}
	if len(reports) != 1 || reports[0].Upvotes != 1 {
		t.Fatalf("expected state rebuilt from the JSON journal, got %+v", reports)
	}
}
