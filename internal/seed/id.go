// Package seed implements the startup reference-data loader of spec §4.F:
// deterministic ids, topological ordering by declared dependency, and
// idempotent insert-if-absent semantics guarded by a startup lock of its
// own, separate from the extension loader's.
package seed

import "github.com/google/uuid"

// Namespace is the fixed UUID namespace seed ids are derived from. Its
// trailing bytes spell "FEED"; DeterministicID copies them into every seed
// id, so a seeded record's id is recognizable at a glance against a
// user-created one (spec §4.F "reserved high-F range").
var Namespace = uuid.MustParse("00000000-0000-0000-0000-0000feedfeed")

// DeterministicID derives a stable id for a seed entry from its kind and
// name, so re-running the seeder against an existing database always
// computes the same id for "the same" record. The id is a SHA-1 (version 5)
// UUID over Namespace whose last six bytes are Namespace's, so every seed id
// ends in "0000feedfeed".
func DeterministicID(kind, name string) uuid.UUID {
	id := uuid.NewSHA1(Namespace, []byte(kind+":"+name))
	copy(id[10:], Namespace[10:])
	return id
}
