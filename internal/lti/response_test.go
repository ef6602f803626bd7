package lti

import (
	"strings"
	"testing"
)

func TestOperationRefID(t *testing.T) {
	tests := []struct {
		messageType string
		want        string
	}{
		{"replaceResultResponse", "replaceResultRequest"},
		{"readResultResponse", "readResultRequest"},
		{"deleteResultResponse", "deleteResultRequest"},
		{"readMembershipsResponse", "readMembershipsRequest"},
		{"readMembershipsWithGroupsResponse", "readMembershipsWithGroupsRequest"},
	}

	for _, tt := range tests {
		if got := OperationRefID(tt.messageType); got != tt.want {
			t.Errorf("OperationRefID(%q) = %q, want %q", tt.messageType, got, tt.want)
		}
	}
}

func TestResponseEnvelopeXML(t *testing.T) {
	env := NewResponseEnvelope(CodeMajorSuccess, "", "msg-42", "replaceResultResponse")

	out, err := env.XML()
	if err != nil {
		t.Fatalf("XML() error = %v", err)
	}
	xml := string(out)

	for _, want := range []string{
		`<?xml version="1.0" encoding="UTF-8"?>`,
		`xmlns="` + Namespace + `"`,
		"<imsx_version>V1.0</imsx_version>",
		"<imsx_codeMajor>success</imsx_codeMajor>",
		"<imsx_severity>status</imsx_severity>",
		"<imsx_messageRefIdentifier>msg-42</imsx_messageRefIdentifier>",
		"<imsx_operationRefIdentifier>replaceResultRequest</imsx_operationRefIdentifier>",
		"<replaceResultResponse></replaceResultResponse>",
	} {
		if !strings.Contains(xml, want) {
			t.Errorf("response XML missing %q:\n%s", want, xml)
		}
	}
}

func TestResponseEnvelopeXML_ResultScore(t *testing.T) {
	env := NewResponseEnvelope(CodeMajorSuccess, "", "msg-42", "readResultResponse")
	env.SetResultScore(0.83)

	out, err := env.XML()
	if err != nil {
		t.Fatalf("XML() error = %v", err)
	}
	xml := string(out)

	if !strings.Contains(xml, "<textString>0.83</textString>") {
		t.Errorf("response XML missing score:\n%s", xml)
	}
	if !strings.Contains(xml, "<language>en</language>") {
		t.Errorf("response XML missing result language:\n%s", xml)
	}
}

// A failure produced before the message kind is known has no body payload.
func TestResponseEnvelopeXML_UnknownMessageType(t *testing.T) {
	env := NewResponseEnvelope(CodeMajorFailure, "request body is not a valid POX envelope", "", "")

	out, err := env.XML()
	if err != nil {
		t.Fatalf("XML() error = %v", err)
	}
	xml := string(out)

	if !strings.Contains(xml, "<imsx_codeMajor>failure</imsx_codeMajor>") {
		t.Errorf("response XML missing failure status:\n%s", xml)
	}
	if !strings.Contains(xml, "<imsx_POXBody></imsx_POXBody>") {
		t.Errorf("expected an empty body element:\n%s", xml)
	}
}

// Free text travels through the encoder, so markup in descriptions cannot
// break the document.
func TestResponseEnvelopeXML_EscapesDescription(t *testing.T) {
	env := NewResponseEnvelope(CodeMajorFailure, `score "<oops>" & more`, "msg-1", "replaceResultResponse")

	out, err := env.XML()
	if err != nil {
		t.Fatalf("XML() error = %v", err)
	}
	xml := string(out)

	if strings.Contains(xml, "<oops>") {
		t.Errorf("description was not escaped:\n%s", xml)
	}
	if !strings.Contains(xml, "&lt;oops&gt;") {
		t.Errorf("expected escaped description:\n%s", xml)
	}
}
