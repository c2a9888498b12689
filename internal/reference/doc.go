// Package reference generates the human-facing reference numbers printed on
// splitsheets. References are advisory: the generator degrades to a fallback
// value instead of failing a submission.
package reference
