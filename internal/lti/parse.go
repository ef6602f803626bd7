package lti

// parse.go extracts typed messages from inbound imsx_POXEnvelopeRequest
// documents. One parse function per message kind, all operating on a decoded
// Envelope so the body is only unmarshalled once per request.

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Envelope is a decoded inbound POX request.
type Envelope struct {
	env requestEnvelope
}

// ParseEnvelope decodes the raw request body into an Envelope.
func ParseEnvelope(raw []byte) (*Envelope, error) {
	var env requestEnvelope

	dec := xml.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&env); err != nil {
		return nil, WrapValidationError(err, "request body is not a valid POX envelope")
	}

	return &Envelope{env: env}, nil
}

// MessageID returns the imsx_messageIdentifier from the request header.
// Empty when the header is absent.
func (e *Envelope) MessageID() string {
	return e.env.Header.Info.MessageIdentifier
}

// MessageType returns the name of the body element, e.g.
// "replaceResultRequest". Empty when the body carries no message.
func (e *Envelope) MessageType() string {
	switch {
	case e.env.Body.ReplaceResult != nil:
		return MessageReplaceResult
	case e.env.Body.ReadResult != nil:
		return MessageReadResult
	case e.env.Body.DeleteResult != nil:
		return MessageDeleteResult
	case e.env.Body.ReadMemberships != nil:
		return MessageReadMemberships
	case e.env.Body.ReadMembershipsWithGroups != nil:
		return MessageReadMembershipsWithGroups
	case len(e.env.Body.Extra) > 0:
		return e.env.Body.Extra[0].XMLName.Local
	default:
		return ""
	}
}

// GradeMessage is a parsed replace/read/deleteResult request.
//
// Score is the raw fraction in [0.0, 1.0] and is only meaningful for
// replaceResult messages (HasScore reports whether it was present). Scaling
// to the store's percent representation happens at the grade-bridge
// boundary, not here.
type GradeMessage struct {
	MessageID string
	SourcedID SourcedID
	Score     float64
	HasScore  bool
}

// ParseReplaceResult extracts a replaceResultRequest: the sourcedId token
// plus a validated score.
func ParseReplaceResult(e *Envelope) (*GradeMessage, error) {
	req := e.env.Body.ReplaceResult
	if req == nil {
		return nil, NewValidationError("envelope does not contain a replaceResultRequest")
	}

	msg, err := parseResultRecord(e, &req.Record)
	if err != nil {
		return nil, err
	}

	if req.Record.Result == nil {
		return nil, NewValidationError("replaceResultRequest is missing the result element")
	}

	score, err := parseScore(req.Record.Result.Score.Text)
	if err != nil {
		return nil, err
	}

	msg.Score = score
	msg.HasScore = true
	return msg, nil
}

// ParseReadResult extracts a readResultRequest.
func ParseReadResult(e *Envelope) (*GradeMessage, error) {
	req := e.env.Body.ReadResult
	if req == nil {
		return nil, NewValidationError("envelope does not contain a readResultRequest")
	}
	return parseResultRecord(e, &req.Record)
}

// ParseDeleteResult extracts a deleteResultRequest.
func ParseDeleteResult(e *Envelope) (*GradeMessage, error) {
	req := e.env.Body.DeleteResult
	if req == nil {
		return nil, NewValidationError("envelope does not contain a deleteResultRequest")
	}
	return parseResultRecord(e, &req.Record)
}

func parseResultRecord(e *Envelope, record *resultRecord) (*GradeMessage, error) {
	sourcedID, err := ParseSourcedID(record.SourcedGUID.SourcedID)
	if err != nil {
		return nil, err
	}

	return &GradeMessage{
		MessageID: e.MessageID(),
		SourcedID: sourcedID,
	}, nil
}

// parseScore validates the textString score of a replaceResult message.
// The accepted range is [0.0, 1.0] inclusive.
func parseScore(text string) (float64, error) {
	score, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return 0, NewInvalidScoreError(fmt.Sprintf("score %q must be numeric", text))
	}
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0, NewInvalidScoreError(fmt.Sprintf("score %q must be a finite number", text))
	}
	if score < 0.0 || score > 1.0 {
		return 0, NewScoreOutOfRangeError(fmt.Sprintf("score %v not between 0.0 and 1.0", score))
	}
	return score, nil
}

// MembershipsMessage is a parsed readMemberships[WithGroups] request.
//
// Unlike grade messages the sourcedId here is a bare tool-instance
// identifier, not a composite token.
type MembershipsMessage struct {
	MessageID  string
	InstanceID int64
	WithGroups bool
}

// ParseMemberships extracts either membership request variant.
func ParseMemberships(e *Envelope) (*MembershipsMessage, error) {
	var (
		req        *membershipsRequest
		withGroups bool
	)

	switch {
	case e.env.Body.ReadMemberships != nil:
		req = e.env.Body.ReadMemberships
	case e.env.Body.ReadMembershipsWithGroups != nil:
		req = e.env.Body.ReadMembershipsWithGroups
		withGroups = true
	default:
		return nil, NewValidationError("envelope does not contain a memberships request")
	}

	instanceID, err := strconv.ParseInt(strings.TrimSpace(req.SourcedID), 10, 64)
	if err != nil || instanceID <= 0 {
		return nil, NewValidationError(fmt.Sprintf("memberships sourcedId %q is not a tool instance id", req.SourcedID))
	}

	return &MembershipsMessage{
		MessageID:  e.MessageID(),
		InstanceID: instanceID,
		WithGroups: withGroups,
	}, nil
}
