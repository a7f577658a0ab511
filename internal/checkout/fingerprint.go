package checkout

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/Aniket7411/Gems-frontend-sub001/internal/domain"
)

// fingerprint identifies a submission intent. Two submissions with the same
// lines, address, payment method, notes and total produce the same value.
func fingerprint(req domain.OrderRequest) string {
	// OrderRequest has a fixed field order and Amount marshals canonically.
	b, _ := json.Marshal(req)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
