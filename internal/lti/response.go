package lti

// response.go builds outbound imsx_POXEnvelopeResponse documents.

import (
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// CodeMajor is the imsx_codeMajor status of a response envelope.
type CodeMajor string

const (
	CodeMajorSuccess CodeMajor = "success"
	CodeMajorFailure CodeMajor = "failure"
)

// ResponseEnvelope builds an outbound POX response. Construct with
// NewResponseEnvelope, optionally attach a payload, then serialize with XML.
type ResponseEnvelope struct {
	env responseEnvelope
}

// NewResponseEnvelope creates a response envelope.
//
// messageRefID echoes the imsx_messageIdentifier of the inbound request;
// messageType is the response body tag (e.g. "replaceResultResponse") from
// which the imsx_operationRefIdentifier is derived by replacing the Response
// suffix with Request. A fresh random message identifier is generated for
// every envelope. Failure paths produce an envelope too - the protocol
// reports errors in-band.
func NewResponseEnvelope(codeMajor CodeMajor, description, messageRefID, messageType string) *ResponseEnvelope {
	e := &ResponseEnvelope{
		env: responseEnvelope{
			XMLNS: Namespace,
			Header: responseHeader{
				Info: responseHeaderInfo{
					Version:           "V1.0",
					MessageIdentifier: uuid.NewString(),
					StatusInfo: statusInfo{
						CodeMajor:              string(codeMajor),
						Severity:               "status",
						Description:            description,
						MessageRefIdentifier:   messageRefID,
						OperationRefIdentifier: OperationRefID(messageType),
					},
				},
			},
		},
	}
	if messageType != "" {
		e.env.Body.Payload = &responsePayload{
			XMLName: xml.Name{Local: messageType},
		}
	}
	return e
}

// OperationRefID derives the imsx_operationRefIdentifier from a response
// message type: "replaceResultResponse" -> "replaceResultRequest".
func OperationRefID(messageType string) string {
	return strings.ReplaceAll(messageType, "Response", "Request")
}

// SetResultScore attaches a result payload carrying the given grade fraction,
// used by readResultResponse envelopes.
func (e *ResponseEnvelope) SetResultScore(fraction float64) {
	if e.env.Body.Payload == nil {
		return
	}
	e.env.Body.Payload.Result = &resultValue{
		Score: resultScore{
			Language: "en",
			Text:     strconv.FormatFloat(fraction, 'f', -1, 64),
		},
	}
}

// SetMemberships attaches a roster listing, used by readMembershipsResponse
// and readMembershipsWithGroupsResponse envelopes.
func (e *ResponseEnvelope) SetMemberships(m *Memberships) {
	if e.env.Body.Payload == nil {
		return
	}
	e.env.Body.Payload.Memberships = m
}

// XML serializes the envelope, prefixed with the standard XML declaration.
// All free text is entity-escaped by the encoder.
func (e *ResponseEnvelope) XML() ([]byte, error) {
	body, err := xml.Marshal(&e.env)
	if err != nil {
		return nil, WrapInternalError(err, "failed to marshal response envelope")
	}
	return append([]byte(xml.Header), body...), nil
}
