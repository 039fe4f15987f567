package domain

// TicketIssuer generates ticket codes and their scannable artifacts.
//
// NewCode returns a fresh opaque ticket code; collision probability is
// negligible but the ledger's unique constraint is the backstop, so callers
// regenerate on ErrTicketCodeTaken.
//
// Issue renders the scannable artifact for a code. It is deterministic and
// idempotent per code and is not responsible for code uniqueness.
type TicketIssuer interface {
	NewCode() (string, error)
	Issue(code string) (string, error)
}
