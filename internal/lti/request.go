package lti

// request.go builds outbound imsx_POXEnvelopeRequest documents. Only the
// client CLI and tests send requests; the server parses them.

import (
	"encoding/xml"
	"strconv"

	"github.com/google/uuid"
)

// BuildResultRequest serializes a grade message request envelope for the
// given message type (replaceResultRequest, readResultRequest or
// deleteResultRequest). A non-nil score attaches a resultScore element, which
// only replaceResultRequest carries. Returns the body and the generated
// message identifier.
func BuildResultRequest(messageType, sourcedID string, score *float64) ([]byte, string, error) {
	switch messageType {
	case MessageReplaceResult, MessageReadResult, MessageDeleteResult:
	default:
		return nil, "", NewValidationError("not a result message type: " + messageType)
	}

	req := &resultRequest{
		Record: resultRecord{
			SourcedGUID: sourcedGUID{SourcedID: sourcedID},
		},
	}
	if score != nil {
		req.Record.Result = &resultValue{
			Score: resultScore{
				Language: "en",
				Text:     strconv.FormatFloat(*score, 'f', -1, 64),
			},
		}
	}

	env := newRequestEnvelope()
	switch messageType {
	case MessageReplaceResult:
		env.Body.ReplaceResult = req
	case MessageReadResult:
		env.Body.ReadResult = req
	case MessageDeleteResult:
		env.Body.DeleteResult = req
	}

	return marshalRequest(env)
}

// BuildMembershipsRequest serializes a roster request envelope. The sourcedId
// of a memberships request is the bare tool instance id, not a signed grade
// token. Returns the body and the generated message identifier.
func BuildMembershipsRequest(instanceID int64, withGroups bool) ([]byte, string, error) {
	req := &membershipsRequest{SourcedID: strconv.FormatInt(instanceID, 10)}

	env := newRequestEnvelope()
	if withGroups {
		env.Body.ReadMembershipsWithGroups = req
	} else {
		env.Body.ReadMemberships = req
	}

	return marshalRequest(env)
}

func newRequestEnvelope() *requestEnvelope {
	return &requestEnvelope{
		XMLNS: Namespace,
		Header: requestHeader{
			Info: requestHeaderInfo{
				Version:           "V1.0",
				MessageIdentifier: uuid.NewString(),
			},
		},
	}
}

func marshalRequest(env *requestEnvelope) ([]byte, string, error) {
	body, err := xml.Marshal(env)
	if err != nil {
		return nil, "", WrapInternalError(err, "failed to marshal request envelope")
	}
	return append([]byte(xml.Header), body...), env.Header.Info.MessageIdentifier, nil
}
