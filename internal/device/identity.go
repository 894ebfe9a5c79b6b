package device

import "strings"

// Person is a directory entry returned by identity lookups.
type Person struct {
	Name string `json:"name"`
	Role string `json:"role"`
	Note string `json:"note"`
}

// String renders the comma separated IDENTITY payload.
func (p Person) String() string {
	return strings.Join([]string{p.Name, p.Role, p.Note}, ",")
}

// UnknownPerson is returned for any token not in the directory.
var UnknownPerson = Person{Name: "unknown person", Role: "stranger", Note: "needs attention"}

// Directory maps ID tokens to people.
type Directory map[string]Person

// DefaultDirectory holds the two demo identities.
func DefaultDirectory() Directory {
	return Directory{
		"123456789012345678": {Name: "张三", Role: "employee", Note: "engineering manager"},
		"987654321098765432": {Name: "李四", Role: "visitor", Note: "VIP customer"},
	}
}

// Lookup returns the person for token, or UnknownPerson. It never fails.
func (d Directory) Lookup(token string) Person {
	if p, ok := d[token]; ok {
		return p
	}
	return UnknownPerson
}
