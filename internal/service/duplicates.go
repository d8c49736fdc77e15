package service

import (
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/shopspring/decimal"

	"github.com/oaklyn/bankfeed/internal/database/repository"
	"github.com/oaklyn/bankfeed/internal/normalize"
)

// DuplicateConfig tunes the pre-commit duplicate gate. Thresholds are policy,
// not constants: over-matching silently drops real transactions and
// under-matching double-imports, so both knobs are exposed.
type DuplicateConfig struct {
	// DateWindowDays widens "same date" to +/- N days. 0 means exact date.
	DateWindowDays int
	// MaxDistanceRatio is the levenshtein distance divided by the longer
	// description length below which two descriptions count as the same.
	MaxDistanceRatio float64
}

// DuplicateHit pairs an incoming transaction with the persisted one it
// collides with.
type DuplicateHit struct {
	Incoming normalize.Transaction
	Existing repository.BankTransaction
	Reason   string
}

// Partition is the outcome of the duplicate gate: the subset safe to import
// and the collisions. Duplicates are never written and then removed; the
// gate runs strictly before the single commit step.
type Partition struct {
	Safe       []normalize.Transaction
	Duplicates []DuplicateHit
}

// PartitionDuplicates checks each candidate against the already-persisted
// transactions of the target account. Deterministic and side-effect-free:
// same inputs, same partition.
func PartitionDuplicates(candidates []normalize.Transaction, existing []repository.BankTransaction, cfg DuplicateConfig) Partition {
	var p Partition
	for _, c := range candidates {
		if hit, ok := findDuplicate(c, existing, cfg); ok {
			p.Duplicates = append(p.Duplicates, hit)
			continue
		}
		p.Safe = append(p.Safe, c)
	}
	return p
}

func findDuplicate(c normalize.Transaction, existing []repository.BankTransaction, cfg DuplicateConfig) (DuplicateHit, bool) {
	amount := decimal.New(c.AmountMinorUnits, -2)
	for _, e := range existing {
		if !amount.Equal(e.Amount) {
			continue
		}
		days := daysBetweenISO(c.Date, e.DateISO)
		if days < 0 || days > cfg.DateWindowDays {
			continue
		}
		if !descriptionsMatch(c.Description, e.Description, cfg.MaxDistanceRatio) {
			continue
		}
		reason := "same date, amount and description"
		if days > 0 {
			reason = "same amount and description within date window"
		}
		return DuplicateHit{Incoming: c, Existing: e, Reason: reason}, true
	}
	return DuplicateHit{}, false
}

// descriptionsMatch compares sanitized descriptions by levenshtein distance
// ratio. Identical strings short-circuit; two empty descriptions match.
func descriptionsMatch(a, b string, maxRatio float64) bool {
	a = normalize.Description(a)
	b = strings.ToUpper(strings.TrimSpace(b))
	if a == b {
		return true
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return true
	}
	dist := levenshtein.ComputeDistance(a, b)
	return float64(dist)/float64(longest) < maxRatio
}

// daysBetweenISO returns the absolute day difference of two ISO dates, or -1
// when either fails to parse.
func daysBetweenISO(a, b string) int {
	ta, err := time.Parse("2006-01-02", a)
	if err != nil {
		return -1
	}
	tb, err := time.Parse("2006-01-02", b)
	if err != nil {
		return -1
	}
	d := ta.Sub(tb)
	if d < 0 {
		d = -d
	}
	return int(d.Hours() / 24)
}
