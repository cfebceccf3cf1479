package sqlstore

import "strconv"

// Placeholder is the bind parameter style of a SQL driver.
type Placeholder int

const (
	// Question binds parameters as ?, used by SQLite and MySQL.
	Question Placeholder = iota
	// Dollar binds parameters as $1, $2, used by PostgreSQL.
	Dollar
)

func (p Placeholder) bind(n int) string {
	if p == Dollar {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}
