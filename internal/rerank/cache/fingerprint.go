package cache

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/lk2023060901/rerank-gateway/internal/rerank/document"
	"github.com/lk2023060901/rerank-gateway/internal/rerank/types"
)

// KeyPrefix prefixes every fingerprint
const KeyPrefix = "rerank"

// Fingerprint derives the cache key of a rerank call from the backend, the model,
// the query and the ordered raw document texts. Policy values are not part of it.
func Fingerprint(backend types.BackendID, model, query string, docs []types.Document) string {
	return FingerprintTexts(backend, model, query, document.ExtractTexts(docs))
}

// FingerprintTexts is Fingerprint for already extracted texts
func FingerprintTexts(backend types.BackendID, model, query string, texts []string) string {
	return fmt.Sprintf("%s:%s:%s:%016x:%016x",
		KeyPrefix,
		backend,
		model,
		xxhash.Sum64String(query),
		hashTexts(texts))
}

// hashTexts hashes each text's byte length followed by its raw bytes, so the
// encoding is unambiguous and invalid UTF-8 is hashed as is.
func hashTexts(texts []string) uint64 {
	d := xxhash.New()
	var size [binary.MaxVarintLen64]byte
	for _, text := range texts {
		n := binary.PutUvarint(size[:], uint64(len(text)))
		_, _ = d.Write(size[:n])
		_, _ = d.WriteString(text)
	}
	return d.Sum64()
}
