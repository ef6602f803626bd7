package lti

// sourcedid.go implements the tamper-evident result identifier (the LIS
// "sourcedId") handed to tools at launch time and echoed back in grade
// messages.
//
// The token binds (tool instance, user, launch) with a SHA-256 digest salted
// by the per-instance service salt. Build and Verify share one canonical
// string - any drift between the two would break every outstanding token.

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// sourcedIDSeparator joins the salt and the identifier triple in the digest
// input. Changing it invalidates all previously issued tokens.
const sourcedIDSeparator = ":::"

// SourcedID is the decoded form of a sourcedId token.
type SourcedID struct {
	Data SourcedIDData `json:"data"`
	Hash string        `json:"hash"`
}

// SourcedIDData is the identifier triple a token binds.
type SourcedIDData struct {
	InstanceID int64 `json:"instanceid"`
	UserID     int64 `json:"userid"`
	LaunchID   int64 `json:"launchid"`
}

// BuildSourcedID computes the salted digest for the given triple and returns
// the complete SourcedID.
func BuildSourcedID(instanceID, userID, launchID int64, salt string) SourcedID {
	return SourcedID{
		Data: SourcedIDData{
			InstanceID: instanceID,
			UserID:     userID,
			LaunchID:   launchID,
		},
		Hash: sourcedIDHash(instanceID, userID, launchID, salt),
	}
}

// Token serializes the SourcedID to its opaque wire form, a JSON object
// combining the digest and the triple.
func (s SourcedID) Token() (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", WrapInternalError(err, "failed to encode sourcedId token")
	}
	return string(b), nil
}

// ParseSourcedID decodes a sourcedId token received from a tool.
//
// Returns an ErrCodeMalformedSourcedID error if the token is not valid JSON
// or any required field is absent. It does NOT check the digest - callers
// must follow up with Verify before acting on the identifiers.
func ParseSourcedID(token string) (SourcedID, error) {
	var s SourcedID

	dec := json.NewDecoder(strings.NewReader(token))
	if err := dec.Decode(&s); err != nil {
		return SourcedID{}, WrapMalformedSourcedIDError(err, "sourcedId is not valid JSON")
	}

	if s.Hash == "" {
		return SourcedID{}, NewMalformedSourcedIDError("sourcedId is missing the hash field")
	}
	// launch id 0 is legal: roster-issued tokens predate any launch
	if s.Data.InstanceID <= 0 || s.Data.UserID <= 0 || s.Data.LaunchID < 0 {
		return SourcedID{}, NewMalformedSourcedIDError("sourcedId data is missing instanceid, userid or launchid")
	}

	return s, nil
}

// Verify recomputes the digest from the parsed fields and the instance salt
// and compares it to the digest carried in the token.
//
// A mismatch is a hard authentication failure (ErrCodeHashMismatch): it means
// the token was forged or issued under a different salt, and no grade
// mutation may proceed.
func (s SourcedID) Verify(salt string) error {
	expected := sourcedIDHash(s.Data.InstanceID, s.Data.UserID, s.Data.LaunchID, salt)

	if subtle.ConstantTimeCompare([]byte(expected), []byte(s.Hash)) != 1 {
		return NewHashMismatchError("sourcedId hash not valid")
	}
	return nil
}

func sourcedIDHash(instanceID, userID, launchID int64, salt string) string {
	plaintext := strings.Join([]string{
		salt,
		strconv.FormatInt(instanceID, 10),
		strconv.FormatInt(userID, 10),
		strconv.FormatInt(launchID, 10),
	}, sourcedIDSeparator)

	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

func (s SourcedID) String() string {
	return fmt.Sprintf("sourcedId{instance=%d user=%d launch=%d}", s.Data.InstanceID, s.Data.UserID, s.Data.LaunchID)
}
