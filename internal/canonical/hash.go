package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix leaves room for a future encoding change.
const (
	DomainRun      = "rcontract/run/v1"
	DomainExchange = "rcontract/exchange/v1"
	DomainSchema   = "rcontract/schema/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte keeps domain and data boundaries unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Hash returns the hex digest of v's canonical encoding under domain.
func Hash(domain string, v any) (string, error) {
	data, err := Marshal(v)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", domain, err)
	}
	return hashWithDomain(domain, data), nil
}

// RunID computes a content-addressed identifier for a test run.
// Two runs of the same resource type started at the same logical time
// with the same label share an ID.
func RunID(typeName, label string, startedSeq int64) (string, error) {
	return Hash(DomainRun, map[string]any{
		"type_name":   typeName,
		"label":       label,
		"started_seq": startedSeq,
	})
}

// ExchangeID computes a content-addressed identifier for one handler
// request/response pair within a run.
func ExchangeID(runID, scenario string, request, response any, seq int64) (string, error) {
	return Hash(DomainExchange, map[string]any{
		"run_id":   runID,
		"scenario": scenario,
		"request":  request,
		"response": response,
		"seq":      seq,
	})
}

// SchemaHash fingerprints a normalized schema map.
func SchemaHash(schemaMap any) (string, error) {
	return Hash(DomainSchema, schemaMap)
}
