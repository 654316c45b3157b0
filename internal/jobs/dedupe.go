package jobs

// Dedupe collapses postings sharing an IdentityKey, keeping the first seen.
func Dedupe(postings []Posting) []Posting {
	return Deduplicate(postings, nil)
}

// Deduplicate drops postings whose key is in existing and collapses duplicates
// within postings, keeping the first seen. The input order is preserved.
func Deduplicate(postings []Posting, existing map[IdentityKey]struct{}) []Posting {
	seen := make(map[IdentityKey]struct{}, len(postings))
	out := make([]Posting, 0, len(postings))
	for _, p := range postings {
		key := p.Key()
		if _, ok := existing[key]; ok {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out
}

// KeySet builds the identity set of (title, company) pairs.
func KeySet(identities []Identity) map[IdentityKey]struct{} {
	set := make(map[IdentityKey]struct{}, len(identities))
	for _, id := range identities {
		set[Key(id.Title, id.Company)] = struct{}{}
	}
	return set
}

// Identity is a (title, company) pair as returned by the store.
type Identity struct {
	Title   string
	Company string
}
