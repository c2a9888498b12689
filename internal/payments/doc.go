// Package payments verifies signed payment-provider webhooks.
//
// Signatures follow the "t=<unix>,v1=<hex>" scheme: HMAC-SHA256 over the
// timestamp, a dot, and the raw body, with a bounded clock skew. Verified
// events carry the splitsheet id in the payment object's metadata.
package payments
