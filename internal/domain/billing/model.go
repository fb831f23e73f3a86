package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Rule is a named price used to bill a visit note.
type Rule struct {
	ID        int             `db:"id" json:"id"`
	RuleName  string          `db:"rule_name" json:"ruleName"`
	RulePrice decimal.Decimal `db:"rule_price" json:"rulePrice"`
}

// Billing is the one-time charge recorded when a visit note is finalized.
// It is never updated or deleted.
type Billing struct {
	BillingID int             `db:"billing_id" json:"billingID"`
	NotesID   int             `db:"notes_id" json:"notesID"`
	TotalBill decimal.Decimal `db:"total_bill" json:"totalBill"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
}

// NoteState is the part of a visit note that billing depends on.
type NoteState struct {
	NotesID   int  `db:"notes_id"`
	RuleID    int  `db:"rule_id"`
	Finalized bool `db:"finalized"`
}
