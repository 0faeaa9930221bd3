// Package ledger records expenses and their splits among group members,
// keeping every expense's splits summing to its amount, and derives who
// owes whom from the split rows.
package ledger
