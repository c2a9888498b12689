// Package workcode issues and validates musical-work identifiers of the form
// CC-RRR-YY-NN-SSS.
//
// An identifier names a country, a registrant, a two-digit year, a two-digit
// contributor slot and a three-digit sequence. Odd sequences are originals and
// even sequences are derivatives, so the two kinds never share a number within
// one contributor and year.
//
// The Allocator resolves the contributor slot (explicit id, the injected
// Directory, persisted registrations, then the next free slot) and reserves the
// next sequence of the right parity against History. History implementations
// enforce uniqueness; the allocator retries on conflict instead of locking.
package workcode
