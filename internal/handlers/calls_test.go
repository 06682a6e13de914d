package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messenger-service/internal/models"
	"messenger-service/internal/policy"
	"messenger-service/internal/repositories"
)

func roomCall(owner models.ProviderRef) models.Call {
	room, pin := "room-1", "1234"
	return models.Call{
		ID: "c1", ThreadID: "g1", OwnerType: owner.Type, OwnerID: owner.ID,
		Type: models.CallVideo, SetupComplete: true, RoomID: &room, RoomPin: &pin,
	}
}

func callMember(id string, owner models.ProviderRef) models.CallParticipant {
	return models.CallParticipant{ID: id, CallID: "c1", OwnerType: owner.Type, OwnerID: owner.ID}
}

func decodeCall(t *testing.T, rec *httptest.ResponseRecorder) callResource {
	t.Helper()
	var res callResource
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res
}

func TestStartCall(t *testing.T) {
	env := newEnv()
	env.expectGroup(groupThread())
	env.calls.On("FindActive", mock.Anything, "g1").Return(nil, repositories.ErrCallNotFound)
	created := models.Call{ID: "c1", ThreadID: "g1", OwnerType: "user", OwnerID: "tippin", Type: models.CallAudio}
	env.calls.On("Create", mock.Anything, models.Call{ThreadID: "g1", OwnerType: "user", OwnerID: "tippin", Type: models.CallAudio}).
		Return(created, callMember("cp1", tippin), nil).Once()
	env.calls.On("FindParticipant", mock.Anything, "c1", tippin).Return(callMember("cp1", tippin), nil).Once()

	rec := httptest.NewRecorder()
	env.router(tippin).ServeHTTP(rec, jsonRequest(http.MethodPost, "/threads/g1/calls", `{"type":2}`))

	require.Equal(t, http.StatusCreated, rec.Code)
	res := decodeCall(t, rec)
	assert.Equal(t, "AUDIO", res.TypeVerbose)
	assert.True(t, res.Active)
	require.NotNil(t, res.Options)
	assert.True(t, res.Options.Admin)
	assert.True(t, res.Options.InCall)
	require.Len(t, env.pushed.sent, 1)
	assert.Equal(t, "incoming.call", env.pushed.sent[0].BroadcastAs)
	assert.Equal(t, []models.ProviderRef{doe}, env.pushed.sent[0].Recipients)
	env.calls.AssertExpectations(t)
}

func TestStartCallWhileActiveDenied(t *testing.T) {
	env := newEnv()
	env.expectGroup(groupThread())
	env.calls.On("FindActive", mock.Anything, "g1").Return(roomCall(doe), nil).Once()

	rec := httptest.NewRecorder()
	env.router(tippin).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/threads/g1/calls", nil))

	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), policy.ReasonStartCall)
	env.calls.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestStartCallMemberWithoutPermission(t *testing.T) {
	env := newEnv()
	env.expectGroup(groupThread())
	env.calls.On("FindActive", mock.Anything, "g1").Return(nil, repositories.ErrCallNotFound).Once()

	rec := httptest.NewRecorder()
	env.router(doe).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/threads/g1/calls", nil))

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestShowCallHidesRoomFromKicked(t *testing.T) {
	env := newEnv()
	env.expectGroup(groupThread())
	env.calls.On("Get", mock.Anything, "g1", "c1").Return(roomCall(tippin), nil).Once()
	kicked := callMember("cp2", doe)
	kicked.Kicked = true
	env.calls.On("FindParticipant", mock.Anything, "c1", doe).Return(kicked, nil).Once()

	rec := httptest.NewRecorder()
	env.router(doe).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/threads/g1/calls/c1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	res := decodeCall(t, rec)
	require.NotNil(t, res.Options)
	assert.True(t, res.Options.Kicked)
	assert.False(t, res.Options.InCall)
	assert.Nil(t, res.Options.RoomID)
	assert.NotContains(t, rec.Body.String(), "room-1")
}

func TestShowCallIncludesRoomForParticipant(t *testing.T) {
	env := newEnv()
	env.expectGroup(groupThread())
	env.calls.On("Get", mock.Anything, "g1", "c1").Return(roomCall(tippin), nil).Once()
	env.calls.On("FindParticipant", mock.Anything, "c1", tippin).Return(callMember("cp1", tippin), nil).Once()

	rec := httptest.NewRecorder()
	env.router(tippin).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/threads/g1/calls/c1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	res := decodeCall(t, rec)
	require.NotNil(t, res.Options)
	require.NotNil(t, res.Options.RoomID)
	assert.Equal(t, "room-1", *res.Options.RoomID)
	assert.True(t, res.Options.SetupComplete)
}

func TestShowEndedCallHasNoOptions(t *testing.T) {
	env := newEnv()
	env.expectGroup(groupThread())
	call := roomCall(tippin)
	ended := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	call.CallEnded = &ended
	env.calls.On("Get", mock.Anything, "g1", "c1").Return(call, nil).Once()
	env.calls.On("FindParticipant", mock.Anything, "c1", tippin).Return(callMember("cp1", tippin), nil).Once()

	rec := httptest.NewRecorder()
	env.router(tippin).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/threads/g1/calls/c1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	res := decodeCall(t, rec)
	assert.False(t, res.Active)
	assert.Nil(t, res.Options)
}

func TestShowCallNotFound(t *testing.T) {
	env := newEnv()
	env.expectGroup(groupThread())
	env.calls.On("Get", mock.Anything, "g1", "c9").Return(nil, repositories.ErrCallNotFound).Once()

	rec := httptest.NewRecorder()
	env.router(tippin).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/threads/g1/calls/c9", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJoinCall(t *testing.T) {
	env := newEnv()
	env.expectGroup(groupThread())
	env.calls.On("Get", mock.Anything, "g1", "c1").Return(roomCall(doe), nil).Once()
	env.calls.On("FindParticipant", mock.Anything, "c1", tippin).Return(nil, repositories.ErrCallParticipantNotFound).Once()
	env.calls.On("AddParticipant", mock.Anything, "c1", tippin).Return(callMember("cp3", tippin), nil).Once()

	rec := httptest.NewRecorder()
	env.router(tippin).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/threads/g1/calls/c1/join", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"cp3"`)
	env.calls.AssertExpectations(t)
}

func TestJoinCallFailsWhenParticipantLookupErrors(t *testing.T) {
	env := newEnv()
	env.expectGroup(groupThread())
	env.calls.On("Get", mock.Anything, "g1", "c1").Return(roomCall(tippin), nil).Once()
	env.calls.On("FindParticipant", mock.Anything, "c1", doe).Return(nil, errors.New("conn reset")).Once()

	rec := httptest.NewRecorder()
	env.router(doe).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/threads/g1/calls/c1/join", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	env.calls.AssertNotCalled(t, "AddParticipant", mock.Anything, mock.Anything, mock.Anything)
	env.calls.AssertNotCalled(t, "Rejoin", mock.Anything, mock.Anything)
}

func TestLeaveCallWhenNotInCall(t *testing.T) {
	env := newEnv()
	env.expectGroup(groupThread())
	env.calls.On("Get", mock.Anything, "g1", "c1").Return(roomCall(doe), nil).Once()
	env.calls.On("FindParticipant", mock.Anything, "c1", tippin).Return(nil, repositories.ErrCallParticipantNotFound).Once()

	rec := httptest.NewRecorder()
	env.router(tippin).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/threads/g1/calls/c1/leave", nil))

	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), policy.ReasonLeaveCall)
}

func TestEndCallByMemberDenied(t *testing.T) {
	env := newEnv()
	env.expectGroup(groupThread())
	env.calls.On("Get", mock.Anything, "g1", "c1").Return(roomCall(tippin), nil).Once()
	env.calls.On("FindParticipant", mock.Anything, "c1", doe).Return(callMember("cp2", doe), nil).Once()

	rec := httptest.NewRecorder()
	env.router(doe).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/threads/g1/calls/c1/end", nil))

	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), policy.ReasonEndCall)
	env.calls.AssertNotCalled(t, "End", mock.Anything, mock.Anything, mock.Anything)
}

func TestEndCallByOwner(t *testing.T) {
	env := newEnv()
	env.expectGroup(groupThread())
	env.calls.On("Get", mock.Anything, "g1", "c1").Return(roomCall(tippin), nil).Once()
	env.calls.On("FindParticipant", mock.Anything, "c1", tippin).Return(callMember("cp1", tippin), nil).Once()
	env.calls.On("End", mock.Anything, "c1", mock.Anything).Return(nil).Once()
	env.calls.On("ListParticipants", mock.Anything, "c1").Return([]models.CallParticipant{callMember("cp1", tippin), callMember("cp2", doe)}, nil).Once()
	env.calls.On("TearDown", mock.Anything, "c1").Return(nil).Once()
	env.messages.On("Create", mock.Anything, mock.MatchedBy(func(m models.Message) bool {
		return m.Type == models.MessageVideoCall && m.ThreadID == "g1"
	})).Return(models.Message{ID: "m9"}, nil).Once()

	rec := httptest.NewRecorder()
	env.router(tippin).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/threads/g1/calls/c1/end", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, env.pushed.sent, 1)
	assert.Equal(t, "call.ended", env.pushed.sent[0].BroadcastAs)
	env.calls.AssertExpectations(t)
	env.messages.AssertExpectations(t)
}

func TestKickParticipant(t *testing.T) {
	env := newEnv()
	env.expectGroup(groupThread())
	env.calls.On("Get", mock.Anything, "g1", "c1").Return(roomCall(tippin), nil).Once()
	env.calls.On("FindParticipant", mock.Anything, "c1", tippin).Return(callMember("cp1", tippin), nil).Once()
	env.calls.On("GetParticipant", mock.Anything, "c1", "cp2").Return(callMember("cp2", doe), nil).Once()
	env.calls.On("Kick", mock.Anything, "cp2", mock.Anything).Return(nil).Once()

	rec := httptest.NewRecorder()
	env.router(tippin).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/threads/g1/calls/c1/participants/cp2/kick", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, env.pushed.sent, 1)
	assert.Equal(t, "call.kicked", env.pushed.sent[0].BroadcastAs)
	assert.Equal(t, []models.ProviderRef{doe}, env.pushed.sent[0].Recipients)
	env.calls.AssertExpectations(t)
}

func TestKickCallOwnerDenied(t *testing.T) {
	env := newEnv()
	env.expectGroup(groupThread())
	env.calls.On("Get", mock.Anything, "g1", "c1").Return(roomCall(tippin), nil).Once()
	env.calls.On("FindParticipant", mock.Anything, "c1", tippin).Return(callMember("cp1", tippin), nil).Once()
	env.calls.On("GetParticipant", mock.Anything, "c1", "cp1").Return(callMember("cp1", tippin), nil).Once()

	rec := httptest.NewRecorder()
	env.router(tippin).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/threads/g1/calls/c1/participants/cp1/kick", nil))

	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), policy.ReasonKickFromCall)
}

func TestCompleteSetup(t *testing.T) {
	env := newEnv()
	env.expectGroup(groupThread())
	call := models.Call{ID: "c1", ThreadID: "g1", OwnerType: "user", OwnerID: "tippin", Type: models.CallVideo}
	env.calls.On("Get", mock.Anything, "g1", "c1").Return(call, nil).Once()
	env.calls.On("FindParticipant", mock.Anything, "c1", tippin).Return(callMember("cp1", tippin), nil)
	env.calls.On("CompleteSetup", mock.Anything, mock.MatchedBy(func(c models.Call) bool {
		return c.RoomID != nil && *c.RoomID == "room-7"
	})).Return(nil).Once()

	rec := httptest.NewRecorder()
	env.router(tippin).ServeHTTP(rec, jsonRequest(http.MethodPost, "/threads/g1/calls/c1/setup", `{"room_id":"room-7","room_pin":"42"}`))

	require.Equal(t, http.StatusOK, rec.Code)
	res := decodeCall(t, rec)
	require.NotNil(t, res.Options)
	assert.True(t, res.Options.SetupComplete)
	require.NotNil(t, res.Options.RoomID)
	assert.Equal(t, "room-7", *res.Options.RoomID)
	env.calls.AssertExpectations(t)
}

func TestCompleteSetupOnlyByOwner(t *testing.T) {
	env := newEnv()
	env.expectGroup(groupThread())
	call := models.Call{ID: "c1", ThreadID: "g1", OwnerType: "user", OwnerID: "tippin", Type: models.CallVideo}
	env.calls.On("Get", mock.Anything, "g1", "c1").Return(call, nil).Once()
	env.calls.On("FindParticipant", mock.Anything, "c1", doe).Return(nil, repositories.ErrCallParticipantNotFound).Once()

	rec := httptest.NewRecorder()
	env.router(doe).ServeHTTP(rec, jsonRequest(http.MethodPost, "/threads/g1/calls/c1/setup", `{"room_id":"room-7"}`))

	require.Equal(t, http.StatusForbidden, rec.Code)
	env.calls.AssertNotCalled(t, "CompleteSetup", mock.Anything, mock.Anything)
}

func TestListCalls(t *testing.T) {
	env := newEnv()
	env.expectGroup(groupThread())
	env.calls.On("List", mock.Anything, "g1", 25).Return([]models.Call{roomCall(tippin)}, nil).Once()
	env.calls.On("FindParticipant", mock.Anything, "c1", doe).Return(nil, repositories.ErrCallParticipantNotFound).Once()

	rec := httptest.NewRecorder()
	env.router(doe).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/threads/g1/calls", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Calls []callResource `json:"calls"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Calls, 1)
	assert.False(t, body.Calls[0].Options.Joined)
}
