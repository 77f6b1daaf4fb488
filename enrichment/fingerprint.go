package enrichment

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Fingerprint hashes kind plus payload. The payload is round-tripped through
// a generic value first so object keys are always serialized sorted; array
// order is kept since replies are positional.
func Fingerprint(kind string, payload any) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	var generic any
	if err := json.Unmarshal(b, &generic); err != nil {
		return "", err
	}
	canonical, err := json.Marshal(generic)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(append([]byte(kind+"\n"), canonical...))
	return kind + ":" + hex.EncodeToString(sum[:]), nil
}
