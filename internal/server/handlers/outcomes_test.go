package handlers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/campusbridge/lti-outcomes/internal/database"
	"github.com/campusbridge/lti-outcomes/internal/grades"
	"github.com/campusbridge/lti-outcomes/internal/lti"
)

const (
	testServiceURL = "http://lms.example.com/service"
	testKey        = "external-tool-key"
	testSecret     = "tool-shared-secret"
	testSalt       = "9b74c9897bac770ffc029102a200c5de"
)

// fakeStore implements ToolStore from fixed fixtures.
type fakeStore struct {
	instances   map[int64]database.ToolInstance
	typeConfigs map[int64]database.ToolTypeConfig
	members     []database.CourseMember
	groups      map[int64][]database.CourseGroup
}

func (f *fakeStore) GetToolInstanceByID(_ context.Context, id int64) (database.ToolInstance, error) {
	inst, ok := f.instances[id]
	if !ok {
		return database.ToolInstance{}, fmt.Errorf("tool instance %d: %w", id, database.ErrNotFound)
	}
	return inst, nil
}

func (f *fakeStore) GetToolTypeConfig(_ context.Context, typeID int64) (database.ToolTypeConfig, error) {
	cfg, ok := f.typeConfigs[typeID]
	if !ok {
		return database.ToolTypeConfig{}, fmt.Errorf("tool type %d: %w", typeID, database.ErrNotFound)
	}
	return cfg, nil
}

func (f *fakeStore) ListCourseMembers(_ context.Context, courseID, _ int64) ([]database.CourseMember, error) {
	return f.members, nil
}

func (f *fakeStore) ListMemberGroups(_ context.Context, _, userID int64) ([]database.CourseGroup, error) {
	return f.groups[userID], nil
}

func newTestStore() *fakeStore {
	return &fakeStore{
		instances: map[int64]database.ToolInstance{
			12: {
				ID:           12,
				TypeID:       1,
				CourseID:     3,
				Name:         "Quiz tool",
				ConsumerKey:  testKey,
				SharedSecret: testSecret,
				ServiceSalt:  testSalt,
			},
		},
		typeConfigs: map[int64]database.ToolTypeConfig{
			1: {ID: 1, Name: "Quiz tool type", SendName: 1, SendEmail: 0, AcceptGrades: 1},
		},
		members: []database.CourseMember{
			{UserID: 7, FirstName: "Ana", LastName: "Silva", Email: "ana@example.com", RoleShortname: "student", LastLaunchID: 3401},
			{UserID: 8, FirstName: "Ben", LastName: "Okoye", Email: "ben@example.com", RoleShortname: "editingteacher"},
		},
		groups: map[int64][]database.CourseGroup{
			7: {{ID: 31, Name: "Blue team"}},
		},
	}
}

type testService struct {
	handler *OutcomesHandler
	memory  *grades.MemoryStore
}

func newTestService() *testService {
	memory := grades.NewMemoryStore()
	return &testService{
		handler: NewOutcomesHandler(
			newTestStore(),
			grades.NewBridge(memory, memory),
			lti.NewAuthenticator(0),
			lti.NewExtensionRegistry(),
		),
		memory: memory,
	}
}

// post signs the body with the given secret and runs it through the handler.
func (s *testService) post(t *testing.T, body []byte, secret string) *httptest.ResponseRecorder {
	t.Helper()

	header, err := lti.SignRequest("POST", testServiceURL, testKey, secret, body, time.Now())
	if err != nil {
		t.Fatalf("SignRequest() error = %v", err)
	}

	req := httptest.NewRequest("POST", testServiceURL, bytes.NewReader(body))
	req.Header.Set("Authorization", header)
	req.Header.Set("Content-Type", "application/xml")

	rr := httptest.NewRecorder()
	s.handler.HandleServiceRequest(rr, req)
	return rr
}

func gradeToken(t *testing.T) string {
	t.Helper()
	token, err := lti.BuildSourcedID(12, 7, 3401, testSalt).Token()
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	return token
}

func assertEnvelope(t *testing.T, rr *httptest.ResponseRecorder, codeMajor string) string {
	t.Helper()

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/xml" {
		t.Errorf("Content-Type = %q, want application/xml", ct)
	}

	body := rr.Body.String()
	want := fmt.Sprintf("<imsx_codeMajor>%s</imsx_codeMajor>", codeMajor)
	if !strings.Contains(body, want) {
		t.Errorf("response missing %q:\n%s", want, body)
	}
	return body
}

func TestHandleServiceRequest_GradeLifecycle(t *testing.T) {
	svc := newTestService()
	score := 0.75

	// replace
	body, _, err := lti.BuildResultRequest(lti.MessageReplaceResult, gradeToken(t), &score)
	if err != nil {
		t.Fatalf("BuildResultRequest() error = %v", err)
	}
	resp := assertEnvelope(t, svc.post(t, body, testSecret), "success")
	if !strings.Contains(resp, "<replaceResultResponse>") {
		t.Errorf("missing replaceResultResponse body tag:\n%s", resp)
	}

	// the ledger recorded the submission
	if rows := svc.memory.Submissions(); len(rows) != 1 || rows[0].GradePercent != 75.0 {
		t.Fatalf("ledger rows = %+v, want one row at 75.0", rows)
	}

	// read returns the stored fraction
	body, _, err = lti.BuildResultRequest(lti.MessageReadResult, gradeToken(t), nil)
	if err != nil {
		t.Fatalf("BuildResultRequest() error = %v", err)
	}
	resp = assertEnvelope(t, svc.post(t, body, testSecret), "success")
	if !strings.Contains(resp, "<textString>0.75</textString>") {
		t.Errorf("read response missing score:\n%s", resp)
	}

	// delete clears it
	body, _, err = lti.BuildResultRequest(lti.MessageDeleteResult, gradeToken(t), nil)
	if err != nil {
		t.Fatalf("BuildResultRequest() error = %v", err)
	}
	assertEnvelope(t, svc.post(t, body, testSecret), "success")

	// a subsequent read reports no score
	body, _, err = lti.BuildResultRequest(lti.MessageReadResult, gradeToken(t), nil)
	if err != nil {
		t.Fatalf("BuildResultRequest() error = %v", err)
	}
	resp = assertEnvelope(t, svc.post(t, body, testSecret), "success")
	if strings.Contains(resp, "<textString>") {
		t.Errorf("read after delete still carries a score:\n%s", resp)
	}
}

func TestHandleServiceRequest_ReadResultForUnknownUser(t *testing.T) {
	svc := newTestService()

	body, _, err := lti.BuildResultRequest(lti.MessageReadResult, gradeToken(t), nil)
	if err != nil {
		t.Fatalf("BuildResultRequest() error = %v", err)
	}

	// success envelope without a result element
	resp := assertEnvelope(t, svc.post(t, body, testSecret), "success")
	if strings.Contains(resp, "<result>") {
		t.Errorf("expected no result element for an absent grade:\n%s", resp)
	}
}

func TestHandleServiceRequest_BadSignature(t *testing.T) {
	svc := newTestService()
	score := 0.75

	body, _, err := lti.BuildResultRequest(lti.MessageReplaceResult, gradeToken(t), &score)
	if err != nil {
		t.Fatalf("BuildResultRequest() error = %v", err)
	}

	assertEnvelope(t, svc.post(t, body, "wrong-secret"), "failure")

	// the failed request must not have touched the store
	if rows := svc.memory.Submissions(); len(rows) != 0 {
		t.Errorf("ledger rows after rejected request = %+v, want none", rows)
	}
}

func TestHandleServiceRequest_PreviousSecretStillAccepted(t *testing.T) {
	svc := newTestService()
	score := 0.75

	previous := "retired-secret"
	store := svc.handler.queries.(*fakeStore)
	inst := store.instances[12]
	inst.PreviousSecret = &previous
	store.instances[12] = inst

	body, _, err := lti.BuildResultRequest(lti.MessageReplaceResult, gradeToken(t), &score)
	if err != nil {
		t.Fatalf("BuildResultRequest() error = %v", err)
	}

	assertEnvelope(t, svc.post(t, body, previous), "success")
}

func TestHandleServiceRequest_ForgedSourcedID(t *testing.T) {
	svc := newTestService()
	score := 0.75

	// built under a different salt, so the digest cannot verify
	token, err := lti.BuildSourcedID(12, 7, 3401, "attacker salt").Token()
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}

	body, _, err := lti.BuildResultRequest(lti.MessageReplaceResult, token, &score)
	if err != nil {
		t.Fatalf("BuildResultRequest() error = %v", err)
	}

	resp := assertEnvelope(t, svc.post(t, body, testSecret), "failure")
	if !strings.Contains(resp, "hash not valid") {
		t.Errorf("expected the hash failure description:\n%s", resp)
	}
	if rows := svc.memory.Submissions(); len(rows) != 0 {
		t.Errorf("ledger rows after forged request = %+v, want none", rows)
	}
}

func TestHandleServiceRequest_UnknownInstance(t *testing.T) {
	svc := newTestService()
	score := 0.75

	token, err := lti.BuildSourcedID(999, 7, 3401, testSalt).Token()
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}

	body, _, err := lti.BuildResultRequest(lti.MessageReplaceResult, token, &score)
	if err != nil {
		t.Fatalf("BuildResultRequest() error = %v", err)
	}

	resp := assertEnvelope(t, svc.post(t, body, testSecret), "failure")
	if !strings.Contains(resp, "unknown tool instance") {
		t.Errorf("expected unknown instance description:\n%s", resp)
	}
}

func TestHandleServiceRequest_OutOfRangeScore(t *testing.T) {
	svc := newTestService()
	score := 1.5

	body, _, err := lti.BuildResultRequest(lti.MessageReplaceResult, gradeToken(t), &score)
	if err != nil {
		t.Fatalf("BuildResultRequest() error = %v", err)
	}

	assertEnvelope(t, svc.post(t, body, testSecret), "failure")
	if rows := svc.memory.Submissions(); len(rows) != 0 {
		t.Errorf("ledger rows after rejected score = %+v, want none", rows)
	}
}

func TestHandleServiceRequest_Memberships(t *testing.T) {
	svc := newTestService()

	body, _, err := lti.BuildMembershipsRequest(12, false)
	if err != nil {
		t.Fatalf("BuildMembershipsRequest() error = %v", err)
	}

	resp := assertEnvelope(t, svc.post(t, body, testSecret), "success")

	for _, want := range []string{
		"<readMembershipsResponse>",
		"<user_id>7</user_id>",
		"<roles>Learner</roles>",
		"<user_id>8</user_id>",
		"<roles>Instructor</roles>",
		// SendName=1 (always) discloses names
		"<person_name_given>Ana</person_name_given>",
		// AcceptGrades=1 issues result sourcedids
		"<lis_result_sourcedid>",
	} {
		if !strings.Contains(resp, want) {
			t.Errorf("roster response missing %q:\n%s", want, resp)
		}
	}

	// SendEmail=0 (never) hides email addresses
	if strings.Contains(resp, "person_contact_email_primary") {
		t.Errorf("roster response must not disclose emails:\n%s", resp)
	}
}

func TestHandleServiceRequest_MembershipsWithGroups(t *testing.T) {
	svc := newTestService()

	body, _, err := lti.BuildMembershipsRequest(12, true)
	if err != nil {
		t.Fatalf("BuildMembershipsRequest() error = %v", err)
	}

	resp := assertEnvelope(t, svc.post(t, body, testSecret), "success")

	for _, want := range []string{
		"<readMembershipsWithGroupsResponse>",
		"<title>Blue team</title>",
	} {
		if !strings.Contains(resp, want) {
			t.Errorf("roster response missing %q:\n%s", want, resp)
		}
	}
}

func TestHandleServiceRequest_UnsupportedMessageType(t *testing.T) {
	svc := newTestService()

	body := []byte(`<?xml version="1.0" encoding="UTF-8"?>
<imsx_POXEnvelopeRequest xmlns="http://www.imsglobal.org/services/ltiv1p1/xsd/imsoms_v1p0">
	<imsx_POXHeader>
		<imsx_POXRequestHeaderInfo>
			<imsx_version>V1.0</imsx_version>
			<imsx_messageIdentifier>msg-9</imsx_messageIdentifier>
		</imsx_POXRequestHeaderInfo>
	</imsx_POXHeader>
	<imsx_POXBody>
		<customGradebookSyncRequest/>
	</imsx_POXBody>
</imsx_POXEnvelopeRequest>`)

	resp := assertEnvelope(t, svc.post(t, body, testSecret), "failure")
	if !strings.Contains(resp, "unsupported message type") {
		t.Errorf("expected unsupported message type description:\n%s", resp)
	}
}

func TestHandleServiceRequest_ExtensionHandler(t *testing.T) {
	memory := grades.NewMemoryStore()
	registry := lti.NewExtensionRegistry()
	registry.Register("customGradebookSyncRequest", func(_ context.Context, w http.ResponseWriter, data *lti.ExtensionData) error {
		if data.ConsumerKey != testKey {
			t.Errorf("extension got consumer key %q, want %q", data.ConsumerKey, testKey)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("synced"))
		return nil
	})

	svc := &testService{
		handler: NewOutcomesHandler(newTestStore(), grades.NewBridge(memory, memory), lti.NewAuthenticator(0), registry),
		memory:  memory,
	}

	body := []byte(`<?xml version="1.0" encoding="UTF-8"?>
<imsx_POXEnvelopeRequest xmlns="http://www.imsglobal.org/services/ltiv1p1/xsd/imsoms_v1p0">
	<imsx_POXHeader>
		<imsx_POXRequestHeaderInfo>
			<imsx_version>V1.0</imsx_version>
			<imsx_messageIdentifier>msg-9</imsx_messageIdentifier>
		</imsx_POXRequestHeaderInfo>
	</imsx_POXHeader>
	<imsx_POXBody>
		<customGradebookSyncRequest/>
	</imsx_POXBody>
</imsx_POXEnvelopeRequest>`)

	rr := svc.post(t, body, testSecret)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if rr.Body.String() != "synced" {
		t.Errorf("body = %q, want synced", rr.Body.String())
	}
}

func TestHandleServiceRequest_InvalidEnvelope(t *testing.T) {
	svc := newTestService()

	rr := svc.post(t, []byte("this is not xml"), testSecret)
	assertEnvelope(t, rr, "failure")
}
