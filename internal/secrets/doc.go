// Package secrets finds and masks credentials in syllabus text before it is
// sent to a third-party classification oracle.
//
// Detection uses the Gitleaks SDK default rule set. Callers can allowlist
// content patterns that trip rules on ordinary course material, such as
// course codes or LMS enrollment keys meant to be shared with students.
//
// Masked secrets become "[REDACTED:<rule-id>]" so the oracle still sees that
// something was there.
package secrets
