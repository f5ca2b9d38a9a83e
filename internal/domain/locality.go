package domain

// Locality 辖区（对应 localities 表），name 唯一
type Locality struct {
	ID     string `db:"id" json:"id"`
	Name   string `db:"name" json:"name"`
	Active bool   `db:"active" json:"active"`
}
