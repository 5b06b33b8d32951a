package document

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/roach88/turingloom/internal/machine"
)

// DomainRules prefixes rule-set hashes. The version suffix allows a future
// change of the hashed shape.
const DomainRules = "turingloom/rules/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Hash computes the content hash of a rule set.
//
// Rule ids are excluded because they are reassigned on every import. A
// NextRuleID that resolves inside the set is hashed as the target's
// position, so a rule set hashes the same before and after a round trip
// through export and import.
func Hash(rules []machine.Rule) (string, error) {
	canonical, err := MarshalCanonical(hashTree(rules))
	if err != nil {
		return "", fmt.Errorf("hash rules: %w", err)
	}
	return hashWithDomain(DomainRules, canonical), nil
}

// MustHash is like Hash but panics on error. Rule fields are all
// canonical-safe, so this only panics on a programming error.
func MustHash(rules []machine.Rule) string {
	h, err := Hash(rules)
	if err != nil {
		panic(err)
	}
	return h
}

func hashTree(rules []machine.Rule) []any {
	pos := make(map[string]int, len(rules))
	for i, r := range rules {
		if r.ID != "" {
			if _, dup := pos[r.ID]; !dup {
				pos[r.ID] = i
			}
		}
	}

	out := make([]any, len(rules))
	for i, r := range rules {
		obj := map[string]any{
			"name":          r.Name,
			"tapeIndex":     r.TapeIndex,
			"currentState":  r.CurrentState,
			"readSymbol":    r.ReadSymbol,
			"writeSymbol":   r.WriteSymbol,
			"moveDirection": string(r.Move),
			"newState":      r.NewState,
			"shouldHalt":    r.ShouldHalt,
		}
		if next, ok := pos[r.NextRuleID]; ok && r.NextRuleID != "" {
			obj["next"] = next
		}
		out[i] = obj
	}
	return out
}
