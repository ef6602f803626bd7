package handlers

// outcomes.go implements the POST /service endpoint: the single entry point
// for POX outcomes and memberships messages.
//
// Processing order is fixed and failure aborts before any mutation:
// authenticate the signed body, verify sourcedid integrity, then execute.
// Protocol-level failures are reported in-band as failure envelopes with
// HTTP 200; only extension handler failures force HTTP 400.

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/campusbridge/lti-outcomes/internal/database"
	"github.com/campusbridge/lti-outcomes/internal/grades"
	"github.com/campusbridge/lti-outcomes/internal/logger"
	"github.com/campusbridge/lti-outcomes/internal/lti"
)

// ToolStore is the subset of database.Queries the outcomes handler reads
// from: tool configuration and course rosters.
type ToolStore interface {
	GetToolInstanceByID(ctx context.Context, id int64) (database.ToolInstance, error)
	GetToolTypeConfig(ctx context.Context, typeID int64) (database.ToolTypeConfig, error)
	ListCourseMembers(ctx context.Context, courseID, toolInstanceID int64) ([]database.CourseMember, error)
	ListMemberGroups(ctx context.Context, courseID, userID int64) ([]database.CourseGroup, error)
}

// OutcomesHandler handles POST /service requests.
type OutcomesHandler struct {
	queries    ToolStore
	bridge     *grades.Bridge
	auth       *lti.Authenticator
	extensions *lti.ExtensionRegistry
}

// NewOutcomesHandler creates the outcomes service handler. All collaborators
// are injected; the handler owns no ambient state.
func NewOutcomesHandler(
	queries ToolStore,
	bridge *grades.Bridge,
	auth *lti.Authenticator,
	extensions *lti.ExtensionRegistry,
) *OutcomesHandler {
	return &OutcomesHandler{
		queries:    queries,
		bridge:     bridge,
		auth:       auth,
		extensions: extensions,
	}
}

// HandleServiceRequest godoc
//
//	@Summary		LTI Basic Outcomes service endpoint
//	@Description	Accepts OAuth body-signed POX messages from external tools:
//	@Description	replaceResultRequest, readResultRequest, deleteResultRequest,
//	@Description	readMembershipsRequest and readMembershipsWithGroupsRequest.
//	@Description
//	@Description	Results are reported in-band as imsx_POXEnvelopeResponse
//	@Description	documents: protocol failures (bad signature, forged sourcedid,
//	@Description	invalid score) return a failure envelope with HTTP 200.
//	@Description	Extension message failures return HTTP 400.
//	@Tags			Outcomes
//	@Accept			xml
//	@Produce		xml
//	@Success		200	{string}	string	"POX response envelope"
//	@Failure		400	{string}	string	"POX failure envelope (extension handler error)"
//	@Router			/service [post]
func (h *OutcomesHandler) HandleServiceRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqLogger := logger.ContextRequestLogger(ctx)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.respondFailure(w, r, lti.WrapValidationError(err, "failed to read request body"), "", "")
		return
	}
	defer r.Body.Close()

	env, err := lti.ParseEnvelope(body)
	if err != nil {
		h.respondFailure(w, r, err, "", "")
		return
	}

	messageType := env.MessageType()

	logger.ContextWithLogAttrs(ctx, slog.String("message_type", messageType))

	switch messageType {
	case lti.MessageReplaceResult, lti.MessageReadResult, lti.MessageDeleteResult:
		h.handleGradeMessage(w, r, env, body, messageType)

	case lti.MessageReadMemberships, lti.MessageReadMembershipsWithGroups:
		h.handleMemberships(w, r, env, body, messageType)

	case "":
		h.respondFailure(w, r, lti.NewValidationError("envelope contains no message"), env.MessageID(), "")

	default:
		data := &lti.ExtensionData{
			MessageType: messageType,
			MessageID:   env.MessageID(),
			ConsumerKey: lti.ConsumerKey(r),
			Body:        body,
		}

		handled, err := h.extensions.Dispatch(ctx, w, data)
		if err != nil {
			reqLogger.Error("extension dispatch failed",
				slog.String("message_type", messageType),
				slog.String("error", err.Error()),
			)
			h.respondFailure(w, r, err, env.MessageID(), responseTypeFor(messageType))
			return
		}
		if !handled {
			h.respondFailure(w, r,
				lti.NewUnsupportedMessageTypeError("unsupported message type "+messageType),
				env.MessageID(), responseTypeFor(messageType))
		}
	}
}

// handleGradeMessage serves replace/read/deleteResult.
func (h *OutcomesHandler) handleGradeMessage(w http.ResponseWriter, r *http.Request, env *lti.Envelope, body []byte, messageType string) {
	ctx := r.Context()
	reqLogger := logger.ContextRequestLogger(ctx)
	responseType := responseTypeFor(messageType)

	var (
		msg *lti.GradeMessage
		err error
	)
	switch messageType {
	case lti.MessageReplaceResult:
		msg, err = lti.ParseReplaceResult(env)
	case lti.MessageReadResult:
		msg, err = lti.ParseReadResult(env)
	default:
		msg, err = lti.ParseDeleteResult(env)
	}
	if err != nil {
		h.respondFailure(w, r, err, env.MessageID(), responseType)
		return
	}

	instance, err := h.queries.GetToolInstanceByID(ctx, msg.SourcedID.Data.InstanceID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			h.respondFailure(w, r, lti.NewValidationError("unknown tool instance"), msg.MessageID, responseType)
			return
		}
		h.respondFailure(w, r, lti.WrapInternalError(err, "failed to load tool instance"), msg.MessageID, responseType)
		return
	}

	// Authentication gates: signature first, then sourcedid integrity.
	// Both must pass before any grade mutation.
	secret, err := h.auth.Verify(r, body, instance.ConsumerKey, instance.SecretCandidates())
	if err != nil {
		h.respondFailure(w, r, err, msg.MessageID, responseType)
		return
	}
	if secret != instance.SharedSecret {
		reqLogger.Info("request signed with previous shared secret",
			slog.Int64("tool_instance_id", instance.ID))
	}

	if err := msg.SourcedID.Verify(instance.ServiceSalt); err != nil {
		h.respondFailure(w, r, err, msg.MessageID, responseType)
		return
	}

	bridgeInstance := grades.ToolInstance{
		ID:       instance.ID,
		CourseID: instance.CourseID,
		Name:     instance.Name,
	}
	userID := msg.SourcedID.Data.UserID

	response := lti.NewResponseEnvelope(lti.CodeMajorSuccess, "", msg.MessageID, responseType)

	switch messageType {
	case lti.MessageReplaceResult:
		if err := h.bridge.UpdateGrade(ctx, bridgeInstance, userID, msg.SourcedID.Data.LaunchID, msg.Score); err != nil {
			h.respondFailure(w, r, err, msg.MessageID, responseType)
			return
		}
		reqLogger.Info("grade replaced",
			slog.Int64("tool_instance_id", instance.ID),
			slog.Int64("user_id", userID),
			slog.Float64("score", msg.Score),
		)

	case lti.MessageReadResult:
		fraction, ok, err := h.bridge.ReadGrade(ctx, bridgeInstance, userID)
		if err != nil {
			h.respondFailure(w, r, err, msg.MessageID, responseType)
			return
		}
		if ok {
			response.SetResultScore(fraction)
		}

	default: // deleteResultRequest
		if err := h.bridge.DeleteGrade(ctx, bridgeInstance, userID); err != nil {
			h.respondFailure(w, r, err, msg.MessageID, responseType)
			return
		}
		reqLogger.Info("grade deleted",
			slog.Int64("tool_instance_id", instance.ID),
			slog.Int64("user_id", userID),
		)
	}

	h.respondEnvelope(w, r, http.StatusOK, response)
}

// handleMemberships serves both roster read variants.
func (h *OutcomesHandler) handleMemberships(w http.ResponseWriter, r *http.Request, env *lti.Envelope, body []byte, messageType string) {
	ctx := r.Context()
	responseType := responseTypeFor(messageType)

	msg, err := lti.ParseMemberships(env)
	if err != nil {
		h.respondFailure(w, r, err, env.MessageID(), responseType)
		return
	}

	instance, err := h.queries.GetToolInstanceByID(ctx, msg.InstanceID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			h.respondFailure(w, r, lti.NewValidationError("unknown tool instance"), msg.MessageID, responseType)
			return
		}
		h.respondFailure(w, r, lti.WrapInternalError(err, "failed to load tool instance"), msg.MessageID, responseType)
		return
	}

	if _, err := h.auth.Verify(r, body, instance.ConsumerKey, instance.SecretCandidates()); err != nil {
		h.respondFailure(w, r, err, msg.MessageID, responseType)
		return
	}

	typeConfig, err := h.queries.GetToolTypeConfig(ctx, instance.TypeID)
	if err != nil {
		h.respondFailure(w, r, lti.WrapInternalError(err, "failed to load tool type config"), msg.MessageID, responseType)
		return
	}

	rows, err := h.queries.ListCourseMembers(ctx, instance.CourseID, instance.ID)
	if err != nil {
		h.respondFailure(w, r, lti.WrapStoreError(err, "failed to load course roster"), msg.MessageID, responseType)
		return
	}

	members := make([]lti.MemberRecord, 0, len(rows))
	for _, row := range rows {
		member := lti.MemberRecord{
			UserID:        row.UserID,
			FirstName:     row.FirstName,
			LastName:      row.LastName,
			Email:         row.Email,
			RoleShortname: row.RoleShortname,
			LaunchID:      row.LastLaunchID,
		}

		if msg.WithGroups {
			groups, err := h.queries.ListMemberGroups(ctx, instance.CourseID, row.UserID)
			if err != nil {
				h.respondFailure(w, r, lti.WrapStoreError(err, "failed to load member groups"), msg.MessageID, responseType)
				return
			}
			for _, g := range groups {
				member.Groups = append(member.Groups, lti.GroupRecord{ID: g.ID, Name: g.Name})
			}
		}

		members = append(members, member)
	}

	policy := lti.MembershipPolicy{
		InstanceID:  instance.ID,
		ServiceSalt: instance.ServiceSalt,
		Type: lti.ToolTypePolicies{
			SendName:     lti.PolicyFromInt(typeConfig.SendName),
			SendEmail:    lti.PolicyFromInt(typeConfig.SendEmail),
			AcceptGrades: lti.PolicyFromInt(typeConfig.AcceptGrades),
		},
		Overrides: lti.InstanceOverrides{
			SendName:     instance.InstructorChoiceSendName,
			SendEmail:    instance.InstructorChoiceSendEmail,
			AcceptGrades: instance.InstructorChoiceAcceptGrades,
		},
	}

	response, err := lti.BuildMembershipsResponse(msg, members, policy)
	if err != nil {
		h.respondFailure(w, r, err, msg.MessageID, responseType)
		return
	}

	logger.ContextWithLogAttrs(ctx, slog.Int("member_count", len(members)))

	h.respondEnvelope(w, r, http.StatusOK, response)
}

// respondEnvelope serializes and writes a POX response envelope.
func (h *OutcomesHandler) respondEnvelope(w http.ResponseWriter, r *http.Request, statusCode int, env *lti.ResponseEnvelope) {
	reqLogger := logger.ContextRequestLogger(r.Context())

	xmlBody, err := env.XML()
	if err != nil {
		reqLogger.Error("failed to serialize response envelope", slog.String("error", err.Error()))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(statusCode)
	if _, err := w.Write(xmlBody); err != nil {
		reqLogger.Error("failed to write response", slog.String("error", err.Error()))
	}
}

// respondFailure renders any error into a failure envelope. The full error
// is logged server-side; the envelope description carries the message.
func (h *OutcomesHandler) respondFailure(w http.ResponseWriter, r *http.Request, err error, messageRefID, responseType string) {
	reqLogger := logger.ContextRequestLogger(r.Context())

	code := lti.ErrCodeInternal
	var ltiErr *lti.LTIError
	if errors.As(err, &ltiErr) {
		code = ltiErr.Code()
	}

	reqLogger.Warn("request failed",
		slog.String("error", err.Error()),
		slog.String("error_code", string(code)),
	)

	h.respondEnvelope(w, r, http.StatusOK,
		lti.NewResponseEnvelope(lti.CodeMajorFailure, err.Error(), messageRefID, responseType))
}

// responseTypeFor maps a request body tag to its response counterpart.
func responseTypeFor(messageType string) string {
	return strings.ReplaceAll(messageType, "Request", "Response")
}
