package domain

// AppIdentifier names the process that served a response, so callers can
// tell replicas apart. It is not a secret and must not be used as one.
type AppIdentifier string

const (
	// IdentifierAlphabet is the set every identifier character is drawn from.
	IdentifierAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	IdentifierGroups   = 4
	IdentifierGroupLen = 8
	IdentifierLen      = IdentifierGroups*IdentifierGroupLen + IdentifierGroups - 1
)

// String returns the identifier verbatim.
func (id AppIdentifier) String() string { return string(id) }

// Valid reports whether id has the A-B-C-D shape: four groups of eight
// alphanumeric characters joined by hyphens.
func (id AppIdentifier) Valid() bool {
	if len(id) != IdentifierLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if (i+1)%(IdentifierGroupLen+1) == 0 {
			if c != '-' {
				return false
			}
			continue
		}
		if !isAlphanumeric(c) {
			return false
		}
	}
	return true
}

func isAlphanumeric(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
