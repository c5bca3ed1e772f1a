package app

import (
	"math/rand/v2"

	"github.com/neomorfeo/celsiusify/internal/domain"
)

// NewIdentifier draws a fresh application identifier.
// math/rand is enough: the identifier only tells replicas apart.
func NewIdentifier() domain.AppIdentifier {
	return generateIdentifier(rand.IntN)
}

// generateIdentifier builds the A-B-C-D identifier, picking every character
// uniformly from domain.IdentifierAlphabet with intN.
func generateIdentifier(intN func(n int) int) domain.AppIdentifier {
	const alphabet = domain.IdentifierAlphabet
	out := make([]byte, 0, domain.IdentifierLen)
	for g := 0; g < domain.IdentifierGroups; g++ {
		if g > 0 {
			out = append(out, '-')
		}
		for i := 0; i < domain.IdentifierGroupLen; i++ {
			out = append(out, alphabet[intN(len(alphabet))])
		}
	}
	return domain.AppIdentifier(out)
}
