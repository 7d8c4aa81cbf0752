package planner

import (
	"crypto/md5"
	"encoding/hex"
)

// Activity kinds used in signatures.
const (
	KindMeeting = "meeting"
	KindEmail   = "email"
)

// Signature fingerprints one planned activity as the hex MD5 of
// "kind:timestamp:subject". It identifies the activity independently of any
// id the CRM assigns.
func Signature(kind, timestamp, subject string) string {
	sum := md5.Sum([]byte(kind + ":" + timestamp + ":" + subject))
	return hex.EncodeToString(sum[:])
}
