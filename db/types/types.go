package types

// Migration is a single embedded SQL migration. The SQL holds the down
// statements followed by the "-- +migrate Up" marker and the up statements.
type Migration struct {
	ID     string
	SQL    string
	Prefix string
}
