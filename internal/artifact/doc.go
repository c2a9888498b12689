// Package artifact renders the final agreement document and issues signed
// download links for it.
//
// PDFRenderer writes a plain Helvetica PDF per splitsheet into the artifact
// directory. Signer issues short-lived HS256 tokens whose subject is the
// splitsheet id; the download handler verifies the token and re-checks the
// release gate before streaming the file.
package artifact
