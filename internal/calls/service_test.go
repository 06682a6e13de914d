package calls

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messenger-service/internal/access"
	"messenger-service/internal/config"
	"messenger-service/internal/mocks"
	"messenger-service/internal/models"
	"messenger-service/internal/providers"
	"messenger-service/internal/push"
	"messenger-service/internal/repositories"
)

type recordingBroadcaster struct {
	sent []push.Notification
}

func (b *recordingBroadcaster) Broadcast(_ context.Context, n push.Notification) error {
	b.sent = append(b.sent, n)
	return nil
}

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService(callRepo *mocks.CallRepositoryMock, messageRepo *mocks.MessageRepositoryMock) (*Service, *recordingBroadcaster) {
	b := &recordingBroadcaster{}
	dir := providers.NewDirectory([]providers.Definition{{Alias: "user", Devices: true}}, nil)
	s := NewService(callRepo, messageRepo, push.NewService(dir, b, true))
	s.now = func() time.Time { return fixedNow }
	return s, b
}

func groupAccess(actor models.ProviderRef) *access.ThreadAccess {
	thread := models.Thread{ID: "t1", Type: models.ThreadGroup, Calling: true, Messaging: true}
	admin := models.Participant{ID: "p1", ThreadID: "t1", OwnerType: "user", OwnerID: "tippin", Admin: true}
	member := models.Participant{ID: "p2", ThreadID: "t1", OwnerType: "user", OwnerID: "doe"}
	return access.New(thread, actor, []models.Participant{admin, member}, access.Options{Features: config.AllFeatures()})
}

func TestStartCreatesCallAndNotifiesOthers(t *testing.T) {
	callRepo := new(mocks.CallRepositoryMock)
	s, b := newTestService(callRepo, nil)

	callRepo.On("FindActive", mock.Anything, "t1").Return(nil, repositories.ErrCallNotFound).Once()
	callRepo.On("Create", mock.Anything, models.Call{ThreadID: "t1", OwnerType: "user", OwnerID: "tippin", Type: models.CallVideo}).
		Return(activeCall(), callParticipant(tippin), nil).Once()

	call, err := s.Start(context.Background(), groupAccess(tippin), 0)
	require.NoError(t, err)
	assert.Equal(t, "c1", call.ID)

	require.Len(t, b.sent, 1)
	assert.Equal(t, "incoming.call", b.sent[0].BroadcastAs)
	assert.Equal(t, []models.ProviderRef{doe}, b.sent[0].Recipients)
	callRepo.AssertExpectations(t)
}

func TestStartRejectsSecondActiveCall(t *testing.T) {
	callRepo := new(mocks.CallRepositoryMock)
	s, b := newTestService(callRepo, nil)

	callRepo.On("FindActive", mock.Anything, "t1").Return(activeCall(), nil).Once()

	_, err := s.Start(context.Background(), groupAccess(tippin), models.CallVideo)
	require.ErrorIs(t, err, ErrCallActive)
	assert.Empty(t, b.sent)
	callRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestJoinAddsNewParticipant(t *testing.T) {
	callRepo := new(mocks.CallRepositoryMock)
	s, _ := newTestService(callRepo, nil)

	callRepo.On("FindParticipant", mock.Anything, "c1", doe).Return(nil, repositories.ErrCallParticipantNotFound).Once()
	callRepo.On("AddParticipant", mock.Anything, "c1", doe).Return(callParticipant(doe), nil).Once()

	v, err := s.ViewFor(context.Background(), activeCall(), doe)
	require.NoError(t, err)
	p, err := s.Join(context.Background(), v)
	require.NoError(t, err)
	assert.Equal(t, "doe-cp", p.ID)
	callRepo.AssertExpectations(t)
}

func TestJoinAgainClearsLeftCall(t *testing.T) {
	callRepo := new(mocks.CallRepositoryMock)
	s, _ := newTestService(callRepo, nil)

	left := fixedNow.Add(-time.Minute)
	p := callParticipant(doe)
	p.LeftCall = &left

	callRepo.On("Rejoin", mock.Anything, "doe-cp").Return(nil).Once()

	joined, err := s.Join(context.Background(), ViewOf(activeCall(), doe, []models.CallParticipant{p}))
	require.NoError(t, err)
	assert.Nil(t, joined.LeftCall)
	callRepo.AssertExpectations(t)
}

func TestJoinRejectsKickedParticipant(t *testing.T) {
	callRepo := new(mocks.CallRepositoryMock)
	s, _ := newTestService(callRepo, nil)

	p := callParticipant(doe)
	p.Kicked = true

	_, err := s.Join(context.Background(), ViewOf(activeCall(), doe, []models.CallParticipant{p}))
	require.ErrorIs(t, err, ErrKicked)
	callRepo.AssertNotCalled(t, "Rejoin", mock.Anything, mock.Anything)
}

func TestLeave(t *testing.T) {
	callRepo := new(mocks.CallRepositoryMock)
	s, _ := newTestService(callRepo, nil)

	callRepo.On("Leave", mock.Anything, "doe-cp", fixedNow).Return(nil).Once()

	v := ViewOf(activeCall(), doe, []models.CallParticipant{callParticipant(doe)})
	require.NoError(t, s.Leave(context.Background(), v))
	assert.True(t, v.HasLeftCall())

	require.ErrorIs(t, s.Leave(context.Background(), ViewOf(activeCall(), doe, nil)), ErrNotInCall)
	callRepo.AssertExpectations(t)
}

func TestKickNotifiesTarget(t *testing.T) {
	callRepo := new(mocks.CallRepositoryMock)
	s, b := newTestService(callRepo, nil)

	callRepo.On("Kick", mock.Anything, "doe-cp", fixedNow).Return(nil).Once()

	v := ViewOf(activeCall(), tippin, []models.CallParticipant{callParticipant(tippin)})
	require.NoError(t, s.Kick(context.Background(), v, callParticipant(doe)))

	require.Len(t, b.sent, 1)
	assert.Equal(t, "call.kicked", b.sent[0].BroadcastAs)
	assert.Equal(t, []models.ProviderRef{doe}, b.sent[0].Recipients)
}

func TestEndStoresMessageAndNotifiesParticipants(t *testing.T) {
	callRepo := new(mocks.CallRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	s, b := newTestService(callRepo, messageRepo)

	participants := []models.CallParticipant{callParticipant(tippin), callParticipant(doe)}
	callRepo.On("End", mock.Anything, "c1", fixedNow).Return(nil).Once()
	callRepo.On("ListParticipants", mock.Anything, "c1").Return(participants, nil).Once()
	callRepo.On("TearDown", mock.Anything, "c1").Return(nil).Once()
	messageRepo.On("Create", mock.Anything, mock.MatchedBy(func(m models.Message) bool {
		return m.Type == models.MessageVideoCall && m.ThreadID == "t1" && m.OwnerID == "tippin"
	})).Return(models.Message{ID: "m1"}, nil).Once()

	require.NoError(t, s.End(context.Background(), activeCall()))

	require.Len(t, b.sent, 1)
	assert.Equal(t, "call.ended", b.sent[0].BroadcastAs)
	assert.Equal(t, []models.ProviderRef{tippin, doe}, b.sent[0].Recipients)
	callRepo.AssertExpectations(t)
	messageRepo.AssertExpectations(t)
}

func TestEndAlreadyEnded(t *testing.T) {
	callRepo := new(mocks.CallRepositoryMock)
	s, _ := newTestService(callRepo, nil)

	call := activeCall()
	call.CallEnded = &fixedNow
	require.ErrorIs(t, s.End(context.Background(), call), ErrCallNotActive)
}

func TestEndAll(t *testing.T) {
	callRepo := new(mocks.CallRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	s, _ := newTestService(callRepo, messageRepo)

	second := activeCall()
	second.ID = "c2"
	callRepo.On("ListActive", mock.Anything).Return([]models.Call{activeCall(), second}, nil).Once()
	callRepo.On("End", mock.Anything, mock.Anything, fixedNow).Return(nil).Twice()
	callRepo.On("ListParticipants", mock.Anything, mock.Anything).Return([]models.CallParticipant{}, nil).Twice()
	callRepo.On("TearDown", mock.Anything, mock.Anything).Return(nil).Twice()
	messageRepo.On("Create", mock.Anything, mock.Anything).Return(models.Message{}, nil).Twice()

	ended, err := s.EndAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, ended)
	callRepo.AssertExpectations(t)
}

func TestCompleteSetup(t *testing.T) {
	callRepo := new(mocks.CallRepositoryMock)
	s, _ := newTestService(callRepo, nil)

	call := activeCall()
	call.SetupComplete = false
	callRepo.On("CompleteSetup", mock.Anything, mock.MatchedBy(func(c models.Call) bool {
		return c.RoomID != nil && *c.RoomID == "123456789" && c.RoomPin != nil && *c.RoomPin == "PIN"
	})).Return(nil).Once()

	updated, err := s.CompleteSetup(context.Background(), call, Room{ID: "123456789", Pin: "PIN", Payload: "PAYLOAD"})
	require.NoError(t, err)
	assert.True(t, updated.SetupComplete)
	assert.Equal(t, StateActive, StateOf(updated))
	callRepo.AssertExpectations(t)
}

func TestViewForFailsOnLookupError(t *testing.T) {
	callRepo := new(mocks.CallRepositoryMock)
	s, _ := newTestService(callRepo, nil)

	callRepo.On("FindParticipant", mock.Anything, "c1", doe).Return(nil, errors.New("conn reset")).Once()

	v, err := s.ViewFor(context.Background(), activeCall(), doe)
	require.Error(t, err)
	assert.Nil(t, v)
	callRepo.AssertExpectations(t)
}

func TestJoinDoesNotAddParticipantWhenLookupFails(t *testing.T) {
	callRepo := new(mocks.CallRepositoryMock)
	s, _ := newTestService(callRepo, nil)

	v := NewView(activeCall(), doe, func() (*models.CallParticipant, error) {
		return nil, errors.New("conn reset")
	})

	_, err := s.Join(context.Background(), v)
	require.EqualError(t, err, "conn reset")
	callRepo.AssertNotCalled(t, "AddParticipant", mock.Anything, mock.Anything, mock.Anything)
	callRepo.AssertNotCalled(t, "Rejoin", mock.Anything, mock.Anything)
}

func TestEndTearsDownCall(t *testing.T) {
	callRepo := new(mocks.CallRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	s, b := newTestService(callRepo, messageRepo)

	callRepo.On("End", mock.Anything, "c1", fixedNow).Return(nil).Once()
	callRepo.On("ListParticipants", mock.Anything, "c1").Return([]models.CallParticipant{}, nil).Once()
	messageRepo.On("Create", mock.Anything, mock.Anything).Return(models.Message{}, nil).Once()
	callRepo.On("TearDown", mock.Anything, "c1").Return(errors.New("room api down")).Once()

	require.NoError(t, s.End(context.Background(), activeCall()))
	assert.Len(t, b.sent, 1)
	callRepo.AssertExpectations(t)
}

func TestTearDown(t *testing.T) {
	callRepo := new(mocks.CallRepositoryMock)
	s, _ := newTestService(callRepo, nil)

	require.ErrorIs(t, s.TearDown(context.Background(), activeCall()), ErrCallNotActive)

	ended := activeCall()
	ended.CallEnded = &fixedNow
	ended.TeardownComplete = true
	require.NoError(t, s.TearDown(context.Background(), ended))
	callRepo.AssertNotCalled(t, "TearDown", mock.Anything, mock.Anything)

	ended.TeardownComplete = false
	callRepo.On("TearDown", mock.Anything, "c1").Return(nil).Once()
	require.NoError(t, s.TearDown(context.Background(), ended))
	callRepo.AssertExpectations(t)
}
