package chunk

import (
	"crypto/sha256"
	"encoding/hex"
)

// ContentHash returns the hex SHA-256 of text. Section and ordinal are not
// part of the hash, so identical text in two sections hashes the same.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// BuildRecords attaches identity, ordinal and hash to raw chunks.
// ChunkIndex runs 0..len(raws)-1 in emission order.
func BuildRecords(id Identity, raws []Raw) []Record {
	records := make([]Record, len(raws))
	for i, r := range raws {
		records[i] = Record{
			DOI:         id.DOI,
			CitationKey: id.CitationKey,
			SourcePath:  id.SourcePath,
			Section:     r.Section(),
			ChunkIndex:  i,
			Text:        r.Text,
			ImageRefs:   r.ImageRefs,
			Hash:        ContentHash(r.Text),
		}
	}
	return records
}

// EmbedText returns the text sent to the embedder for r. With prepend set
// and a non-empty section, the section path is prefixed as context.
func EmbedText(r Record, prepend bool) string {
	if prepend && r.Section != "" {
		return r.Section + "\n\n" + r.Text
	}
	return r.Text
}
