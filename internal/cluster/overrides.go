package cluster

import "github.com/kozaktomas/face-clusterer/internal/database"

// OverrideMap maps a stale identity to the identity a human corrected it to.
type OverrideMap map[string]string

// BuildOverrideMap derives the map from the ledger: every record whose
// override differs from its person ID contributes person_id -> override.
// When one identity was corrected to several targets, the most recent face wins.
// records must be in creation order.
func BuildOverrideMap(records []database.FaceRecord) OverrideMap {
	m := make(OverrideMap)
	for i := range records {
		r := &records[i]
		if r.Override == "" || r.Override == r.PersonID || r.PersonID == database.NoisePersonID {
			continue
		}
		m[r.PersonID] = r.Override
	}
	return m
}

// Resolve returns the redirect target of personID, if any.
// Redirects are single hop.
func (m OverrideMap) Resolve(personID string) (string, bool) {
	target, ok := m[personID]
	return target, ok
}
