// Package workflow runs the splitsheet lifecycle.
//
// Submit validates percentages before any write, enriches participants and
// issues their signing tokens, allocates a work code when audio is attached,
// assigns entry ids, reserves a reference number, persists the aggregate, and
// fans out signing requests before moving the splitsheet to
// pending_signatures. Identifier and reference trouble degrades the result
// with warnings instead of failing the submission.
//
// ProcessSignature and SignWithToken record one participant at a time;
// the signed count is always derived from participant rows. Finalize renders
// the agreement once every participant has signed and payment is settled;
// only then does the download gate open.
package workflow
