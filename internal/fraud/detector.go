package fraud

import (
	"strings"

	"github.com/certops/insights/internal/ingest"
)

// Risk flags attached to records by the detectors. Advisory classifications
// only; they never block ingestion or aggregation.
const (
	FlagBotActivity     = "Bot Activity"
	FlagSpeedRun        = "Speed Run"
	FlagSybil           = "Sybil"
	FlagEmailAlias      = "Email Alias"
	FlagDisposableEmail = "Disposable Email"
	FlagBatchPattern    = "Batch Pattern"
)

// Velocity thresholds, in hours. A Pass completed in under four hours is
// implausibly fast; under half an hour it cannot have been a human at all.
const (
	speedRunThresholdHours    = 4.0
	botActivityThresholdHours = 0.5
)

// DefaultDisposableDomains is the denylist of known disposable-email
// providers. Configuration data, not hidden fraud logic; override it on the
// Detector when a deployment tracks additional providers.
var DefaultDisposableDomains = []string{
	"mailinator.com",
	"guerrillamail.com",
	"10minutemail.com",
	"tempmail.com",
	"temp-mail.org",
	"throwawaymail.com",
	"yopmail.com",
	"trashmail.com",
	"getnada.com",
	"sharklasers.com",
	"dispostable.com",
	"maildrop.cc",
	"fakeinbox.com",
	"mintemail.com",
}

// Detector runs the fraud scoring passes over one batch of candidate
// records. Each Score call builds its own lookup tables, so a single
// Detector is safe for concurrent batches.
type Detector struct {
	disposableDomains map[string]struct{}
}

// NewDetector creates a detector with the default disposable-domain
// denylist.
func NewDetector() *Detector {
	return NewDetectorWithDomains(DefaultDisposableDomains)
}

// NewDetectorWithDomains creates a detector with a custom denylist.
func NewDetectorWithDomains(domains []string) *Detector {
	set := make(map[string]struct{}, len(domains))
	for _, domain := range domains {
		set[strings.ToLower(strings.TrimSpace(domain))] = struct{}{}
	}
	return &Detector{disposableDomains: set}
}

// Score enriches the candidate set with durations, data-quality flags and
// risk flags. The input is not mutated; callers receive a new collection.
// Pass 1 applies the per-record detectors against a wallet-frequency table
// built over the whole input; Pass 2 runs batch-pattern detection over the
// Pass-1 output. Flags accumulate across passes and are never reset.
func (d *Detector) Score(records []*ingest.Record) []*ingest.Record {
	wallets := buildWalletTable(records)

	enriched := make([]*ingest.Record, len(records))
	for i, record := range records {
		enriched[i] = d.scoreRecord(record, wallets)
	}

	flagged := detectBatchPatterns(enriched)
	return applyBatchFlags(enriched, flagged)
}

// scoreRecord applies the Pass-1 detectors to a copy of the record.
func (d *Detector) scoreRecord(record *ingest.Record, wallets map[string]int) *ingest.Record {
	enriched := *record
	enriched.RiskFlags = append([]string(nil), record.RiskFlags...)

	enriched.CompletedAt = ingest.CorrectCompletion(record.CreatedAt, record.CompletedAt)
	if enriched.CompletedAt != nil {
		hours := enriched.CompletedAt.Sub(enriched.CreatedAt).Hours()
		enriched.ComputedDuration = &hours
		if hours < 0 {
			// A duration that is still negative after the 12h correction is
			// corrupt data, not a fraud signal.
			enriched.DataError = true
		}
	}

	d.checkVelocity(&enriched)
	d.checkWallet(&enriched, wallets)
	d.checkEmail(&enriched)

	finalizeSuspicion(&enriched)
	return &enriched
}

func (d *Detector) checkVelocity(record *ingest.Record) {
	if record.FinalGrade != ingest.GradePass || record.DataError || record.ComputedDuration == nil {
		return
	}

	hours := *record.ComputedDuration
	if hours <= 0 || hours >= speedRunThresholdHours {
		return
	}

	if hours < botActivityThresholdHours {
		addFlag(record, FlagBotActivity)
	} else {
		addFlag(record, FlagSpeedRun)
	}
}

func (d *Detector) checkWallet(record *ingest.Record, wallets map[string]int) {
	wallet := normalizeWallet(record.WalletAddress)
	if wallet == "" {
		return
	}
	if wallets[wallet] > 1 {
		addFlag(record, FlagSybil)
	}
}

func (d *Detector) checkEmail(record *ingest.Record) {
	email := strings.ToLower(strings.TrimSpace(record.Email))
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return
	}

	local, domain := email[:at], email[at+1:]
	if strings.Contains(local, "+") {
		addFlag(record, FlagEmailAlias)
	}
	if _, ok := d.disposableDomains[domain]; ok {
		addFlag(record, FlagDisposableEmail)
	}
}

// buildWalletTable counts how often each normalized wallet address appears
// in the batch. Built once per Score call and passed into the per-record
// checks; no shared state survives the call.
func buildWalletTable(records []*ingest.Record) map[string]int {
	table := make(map[string]int)
	for _, record := range records {
		if wallet := normalizeWallet(record.WalletAddress); wallet != "" {
			table[wallet]++
		}
	}
	return table
}

// normalizeWallet returns the comparable form of a wallet address, or ""
// when the value is a placeholder too short or generic to identify anyone.
func normalizeWallet(raw string) string {
	wallet := strings.ToLower(strings.TrimSpace(raw))
	if len(wallet) <= 5 || wallet == "n/a" || wallet == "none" {
		return ""
	}
	return wallet
}

// addFlag appends a flag unless it is already present; RiskFlags is an
// ordered set.
func addFlag(record *ingest.Record, flag string) {
	for _, existing := range record.RiskFlags {
		if existing == flag {
			return
		}
	}
	record.RiskFlags = append(record.RiskFlags, flag)
}

func finalizeSuspicion(record *ingest.Record) {
	record.IsSuspicious = len(record.RiskFlags) > 0
	record.SuspicionReason = strings.Join(record.RiskFlags, ", ")
}
