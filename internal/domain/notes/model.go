package notes

// VisitNote maps to the visit_notes table. A note starts as a draft and is
// finalized exactly once, when billing is created for it.
type VisitNote struct {
	NotesID    int    `db:"notes_id" json:"notesID"`
	VisitID    int    `db:"visit_id" json:"visitID"`
	VisitNotes string `db:"visit_notes" json:"visitNotes"`
	RuleID     int    `db:"rule_id" json:"ruleID"`
	Finalized  bool   `db:"finalized" json:"finalized"`
}

// Filter narrows List. A nil Finalized returns drafts and finalized notes.
type Filter struct {
	Finalized *bool
	VisitID   int
}
