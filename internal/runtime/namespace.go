package runtime

import (
	"crypto/sha256"
	"encoding/hex"
	"io"

	"golang.org/x/crypto/hkdf"
)

// DeriveVectorNamespace derives a stable, installation-unique Vespa document
// namespace from the store's connection string, the same "derive instead of
// requiring explicit configuration" trick the teacher uses for its JWT
// secret. Two pkgdex deployments pointed at different Postgres databases
// never collide in the same shared Vespa cluster even when neither sets
// VESPA_NAMESPACE explicitly.
func DeriveVectorNamespace(databaseURL string) (string, error) {
	h := hkdf.New(sha256.New, []byte(databaseURL), nil, []byte("pkgdex-vespa-namespace"))
	salt := make([]byte, 8)
	if _, err := io.ReadFull(h, salt); err != nil {
		return "", err
	}
	return "pkgdex-" + hex.EncodeToString(salt), nil
}
