package lti

// envelope.go defines the IMS POX (Plain Old XML) wire schema used by the
// Basic Outcomes and memberships services.
//
// The namespace and element names are fixed by the LTI 1.1 specification;
// external tools depend on them byte for byte.

import "encoding/xml"

// Namespace is the XML namespace of the POX envelope schema.
const Namespace = "http://www.imsglobal.org/services/ltiv1p1/xsd/imsoms_v1p0"

// Body tags of the core inbound message kinds.
const (
	MessageReplaceResult             = "replaceResultRequest"
	MessageReadResult                = "readResultRequest"
	MessageDeleteResult              = "deleteResultRequest"
	MessageReadMemberships           = "readMembershipsRequest"
	MessageReadMembershipsWithGroups = "readMembershipsWithGroupsRequest"
)

// requestEnvelope mirrors imsx_POXEnvelopeRequest.
type requestEnvelope struct {
	XMLName xml.Name      `xml:"imsx_POXEnvelopeRequest"`
	XMLNS   string        `xml:"xmlns,attr"`
	Header  requestHeader `xml:"imsx_POXHeader"`
	Body    requestBody   `xml:"imsx_POXBody"`
}

type requestHeader struct {
	Info requestHeaderInfo `xml:"imsx_POXRequestHeaderInfo"`
}

type requestHeaderInfo struct {
	Version           string `xml:"imsx_version"`
	MessageIdentifier string `xml:"imsx_messageIdentifier"`
}

// requestBody holds exactly one message element. The core kinds decode into
// typed fields; anything else lands in Extra and is offered to the extension
// registry.
type requestBody struct {
	ReplaceResult             *resultRequest      `xml:"replaceResultRequest"`
	ReadResult                *resultRequest      `xml:"readResultRequest"`
	DeleteResult              *resultRequest      `xml:"deleteResultRequest"`
	ReadMemberships           *membershipsRequest `xml:"readMembershipsRequest"`
	ReadMembershipsWithGroups *membershipsRequest `xml:"readMembershipsWithGroupsRequest"`
	Extra                     []rawElement        `xml:",any"`
}

// rawElement captures a message element this core does not recognize.
type rawElement struct {
	XMLName xml.Name
	Inner   string `xml:",innerxml"`
}

type resultRequest struct {
	Record resultRecord `xml:"resultRecord"`
}

type resultRecord struct {
	SourcedGUID sourcedGUID  `xml:"sourcedGUID"`
	Result      *resultValue `xml:"result"`
}

type sourcedGUID struct {
	SourcedID string `xml:"sourcedId"`
}

type resultValue struct {
	Score resultScore `xml:"resultScore"`
}

type resultScore struct {
	Language string `xml:"language"`
	Text     string `xml:"textString"`
}

type membershipsRequest struct {
	SourcedID string `xml:"sourcedId"`
}

// responseEnvelope mirrors imsx_POXEnvelopeResponse.
type responseEnvelope struct {
	XMLName xml.Name       `xml:"imsx_POXEnvelopeResponse"`
	XMLNS   string         `xml:"xmlns,attr"`
	Header  responseHeader `xml:"imsx_POXHeader"`
	Body    responseBody   `xml:"imsx_POXBody"`
}

type responseHeader struct {
	Info responseHeaderInfo `xml:"imsx_POXResponseHeaderInfo"`
}

type responseHeaderInfo struct {
	Version           string     `xml:"imsx_version"`
	MessageIdentifier string     `xml:"imsx_messageIdentifier"`
	StatusInfo        statusInfo `xml:"imsx_statusInfo"`
}

type statusInfo struct {
	CodeMajor              string `xml:"imsx_codeMajor"`
	Severity               string `xml:"imsx_severity"`
	Description            string `xml:"imsx_description"`
	MessageRefIdentifier   string `xml:"imsx_messageRefIdentifier"`
	OperationRefIdentifier string `xml:"imsx_operationRefIdentifier"`
}

type responseBody struct {
	// Payload is the single body element, named after the response message
	// type (replaceResultResponse, readMembershipsResponse, ...). Nil when the
	// request failed before the message type was known, leaving the body empty.
	Payload *responsePayload
}

// responsePayload has a runtime element name so the same struct serves every
// response kind.
type responsePayload struct {
	XMLName     xml.Name
	Result      *resultValue `xml:"result,omitempty"`
	Memberships *Memberships `xml:"memberships,omitempty"`
}

// Memberships is the roster listing nested in readMemberships responses.
type Memberships struct {
	Members []Member `xml:"member"`
}

// Member is one roster entry. Field order matches the wire schema: the group
// listing (when present) precedes the disclosure-controlled fields.
type Member struct {
	UserID          string        `xml:"user_id"`
	Roles           string        `xml:"roles"`
	Groups          *memberGroups `xml:"groups,omitempty"`
	NameGiven       string        `xml:"person_name_given,omitempty"`
	NameFamily      string        `xml:"person_name_family,omitempty"`
	Email           string        `xml:"person_contact_email_primary,omitempty"`
	ResultSourcedID string        `xml:"lis_result_sourcedid,omitempty"`
}

type memberGroups struct {
	Groups []memberGroup `xml:"group"`
}

// memberGroup duplicates id/title under a nested set element, as the
// membership schema requires.
type memberGroup struct {
	ID    string   `xml:"id"`
	Title string   `xml:"title"`
	Set   groupSet `xml:"set"`
}

type groupSet struct {
	ID    string `xml:"id"`
	Title string `xml:"title"`
}
