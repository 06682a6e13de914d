package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
)

var (
	_ repositories.ThreadRepository      = (*ThreadRepositoryMock)(nil)
	_ repositories.ParticipantRepository = (*ParticipantRepositoryMock)(nil)
	_ repositories.MessageRepository     = (*MessageRepositoryMock)(nil)
	_ repositories.ReactionRepository    = (*ReactionRepositoryMock)(nil)
	_ repositories.CallRepository        = (*CallRepositoryMock)(nil)
	_ repositories.ProviderRepository    = (*ProviderRepositoryMock)(nil)
)

type ThreadRepositoryMock struct {
	mock.Mock
}

func (m *ThreadRepositoryMock) GetThread(ctx context.Context, threadID string) (models.Thread, error) {
	args := m.Called(ctx, threadID)
	var thread models.Thread
	if val := args.Get(0); val != nil {
		thread = val.(models.Thread)
	}
	return thread, args.Error(1)
}

func (m *ThreadRepositoryMock) ListForProvider(ctx context.Context, owner models.ProviderRef, limit int) ([]models.Thread, error) {
	args := m.Called(ctx, owner, limit)
	var threads []models.Thread
	if val := args.Get(0); val != nil {
		threads = val.([]models.Thread)
	}
	return threads, args.Error(1)
}

func (m *ThreadRepositoryMock) FindPrivateBetween(ctx context.Context, first, second models.ProviderRef) (models.Thread, error) {
	args := m.Called(ctx, first, second)
	var thread models.Thread
	if val := args.Get(0); val != nil {
		thread = val.(models.Thread)
	}
	return thread, args.Error(1)
}

func (m *ThreadRepositoryMock) Touch(ctx context.Context, threadID string, at time.Time) error {
	args := m.Called(ctx, threadID, at)
	return args.Error(0)
}

func (m *ThreadRepositoryMock) CountUnreadForProvider(ctx context.Context, owner models.ProviderRef) (int, error) {
	args := m.Called(ctx, owner)
	return args.Int(0), args.Error(1)
}

func (m *ThreadRepositoryMock) CountWithActiveCalls(ctx context.Context, owner models.ProviderRef) (int, error) {
	args := m.Called(ctx, owner)
	return args.Int(0), args.Error(1)
}

func (m *ThreadRepositoryMock) ListArchivedBefore(ctx context.Context, cutoff time.Time) ([]models.Thread, error) {
	args := m.Called(ctx, cutoff)
	var threads []models.Thread
	if val := args.Get(0); val != nil {
		threads = val.([]models.Thread)
	}
	return threads, args.Error(1)
}

func (m *ThreadRepositoryMock) Purge(ctx context.Context, threadID string) error {
	args := m.Called(ctx, threadID)
	return args.Error(0)
}

type ParticipantRepositoryMock struct {
	mock.Mock
}

func (m *ParticipantRepositoryMock) ListByThread(ctx context.Context, threadID string) ([]models.Participant, error) {
	args := m.Called(ctx, threadID)
	var participants []models.Participant
	if val := args.Get(0); val != nil {
		participants = val.([]models.Participant)
	}
	return participants, args.Error(1)
}

func (m *ParticipantRepositoryMock) AddMany(ctx context.Context, threadID string, owners []models.ProviderRef) ([]models.Participant, error) {
	args := m.Called(ctx, threadID, owners)
	var participants []models.Participant
	if val := args.Get(0); val != nil {
		participants = val.([]models.Participant)
	}
	return participants, args.Error(1)
}

func (m *ParticipantRepositoryMock) MarkRead(ctx context.Context, participantID string, at time.Time) error {
	args := m.Called(ctx, participantID, at)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) List(ctx context.Context, threadID string, before *time.Time, limit int) ([]models.Message, error) {
	args := m.Called(ctx, threadID, before, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) Get(ctx context.Context, threadID, messageID string) (models.Message, error) {
	args := m.Called(ctx, threadID, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) Create(ctx context.Context, msg models.Message) (models.Message, error) {
	args := m.Called(ctx, msg)
	var created models.Message
	if val := args.Get(0); val != nil {
		created = val.(models.Message)
	}
	return created, args.Error(1)
}

func (m *MessageRepositoryMock) UpdateBody(ctx context.Context, messageID, body string, at time.Time) (models.Message, error) {
	args := m.Called(ctx, messageID, body, at)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) SoftDelete(ctx context.Context, messageID string, at time.Time) error {
	args := m.Called(ctx, messageID, at)
	return args.Error(0)
}

func (m *MessageRepositoryMock) ListEdits(ctx context.Context, messageID string) ([]models.MessageEdit, error) {
	args := m.Called(ctx, messageID)
	var edits []models.MessageEdit
	if val := args.Get(0); val != nil {
		edits = val.([]models.MessageEdit)
	}
	return edits, args.Error(1)
}

func (m *MessageRepositoryMock) CountSince(ctx context.Context, threadID string, since *time.Time) (int, error) {
	args := m.Called(ctx, threadID, since)
	return args.Int(0), args.Error(1)
}

func (m *MessageRepositoryMock) SetReacted(ctx context.Context, messageID string, reacted bool) error {
	args := m.Called(ctx, messageID, reacted)
	return args.Error(0)
}

type ReactionRepositoryMock struct {
	mock.Mock
}

func (m *ReactionRepositoryMock) ListByMessage(ctx context.Context, messageID string) ([]models.MessageReaction, error) {
	args := m.Called(ctx, messageID)
	var reactions []models.MessageReaction
	if val := args.Get(0); val != nil {
		reactions = val.([]models.MessageReaction)
	}
	return reactions, args.Error(1)
}

func (m *ReactionRepositoryMock) Get(ctx context.Context, messageID, reactionID string) (models.MessageReaction, error) {
	args := m.Called(ctx, messageID, reactionID)
	var reaction models.MessageReaction
	if val := args.Get(0); val != nil {
		reaction = val.(models.MessageReaction)
	}
	return reaction, args.Error(1)
}

func (m *ReactionRepositoryMock) Create(ctx context.Context, reaction models.MessageReaction) (models.MessageReaction, error) {
	args := m.Called(ctx, reaction)
	var created models.MessageReaction
	if val := args.Get(0); val != nil {
		created = val.(models.MessageReaction)
	}
	return created, args.Error(1)
}

func (m *ReactionRepositoryMock) Delete(ctx context.Context, reactionID string) error {
	args := m.Called(ctx, reactionID)
	return args.Error(0)
}

func (m *ReactionRepositoryMock) CountByMessage(ctx context.Context, messageID string) (int, error) {
	args := m.Called(ctx, messageID)
	return args.Int(0), args.Error(1)
}

type CallRepositoryMock struct {
	mock.Mock
}

func (m *CallRepositoryMock) List(ctx context.Context, threadID string, limit int) ([]models.Call, error) {
	args := m.Called(ctx, threadID, limit)
	var calls []models.Call
	if val := args.Get(0); val != nil {
		calls = val.([]models.Call)
	}
	return calls, args.Error(1)
}

func (m *CallRepositoryMock) Get(ctx context.Context, threadID, callID string) (models.Call, error) {
	args := m.Called(ctx, threadID, callID)
	var call models.Call
	if val := args.Get(0); val != nil {
		call = val.(models.Call)
	}
	return call, args.Error(1)
}

func (m *CallRepositoryMock) FindActive(ctx context.Context, threadID string) (models.Call, error) {
	args := m.Called(ctx, threadID)
	var call models.Call
	if val := args.Get(0); val != nil {
		call = val.(models.Call)
	}
	return call, args.Error(1)
}

func (m *CallRepositoryMock) ListActive(ctx context.Context) ([]models.Call, error) {
	args := m.Called(ctx)
	var calls []models.Call
	if val := args.Get(0); val != nil {
		calls = val.([]models.Call)
	}
	return calls, args.Error(1)
}

func (m *CallRepositoryMock) Create(ctx context.Context, call models.Call) (models.Call, models.CallParticipant, error) {
	args := m.Called(ctx, call)
	var created models.Call
	if val := args.Get(0); val != nil {
		created = val.(models.Call)
	}
	var owner models.CallParticipant
	if val := args.Get(1); val != nil {
		owner = val.(models.CallParticipant)
	}
	return created, owner, args.Error(2)
}

func (m *CallRepositoryMock) CompleteSetup(ctx context.Context, call models.Call) error {
	args := m.Called(ctx, call)
	return args.Error(0)
}

func (m *CallRepositoryMock) End(ctx context.Context, callID string, at time.Time) error {
	args := m.Called(ctx, callID, at)
	return args.Error(0)
}

func (m *CallRepositoryMock) TearDown(ctx context.Context, callID string) error {
	args := m.Called(ctx, callID)
	return args.Error(0)
}

func (m *CallRepositoryMock) ListParticipants(ctx context.Context, callID string) ([]models.CallParticipant, error) {
	args := m.Called(ctx, callID)
	var participants []models.CallParticipant
	if val := args.Get(0); val != nil {
		participants = val.([]models.CallParticipant)
	}
	return participants, args.Error(1)
}

func (m *CallRepositoryMock) GetParticipant(ctx context.Context, callID, participantID string) (models.CallParticipant, error) {
	args := m.Called(ctx, callID, participantID)
	var p models.CallParticipant
	if val := args.Get(0); val != nil {
		p = val.(models.CallParticipant)
	}
	return p, args.Error(1)
}

func (m *CallRepositoryMock) FindParticipant(ctx context.Context, callID string, owner models.ProviderRef) (models.CallParticipant, error) {
	args := m.Called(ctx, callID, owner)
	var p models.CallParticipant
	if val := args.Get(0); val != nil {
		p = val.(models.CallParticipant)
	}
	return p, args.Error(1)
}

func (m *CallRepositoryMock) AddParticipant(ctx context.Context, callID string, owner models.ProviderRef) (models.CallParticipant, error) {
	args := m.Called(ctx, callID, owner)
	var p models.CallParticipant
	if val := args.Get(0); val != nil {
		p = val.(models.CallParticipant)
	}
	return p, args.Error(1)
}

func (m *CallRepositoryMock) Rejoin(ctx context.Context, participantID string) error {
	args := m.Called(ctx, participantID)
	return args.Error(0)
}

func (m *CallRepositoryMock) Leave(ctx context.Context, participantID string, at time.Time) error {
	args := m.Called(ctx, participantID, at)
	return args.Error(0)
}

func (m *CallRepositoryMock) Kick(ctx context.Context, participantID string, at time.Time) error {
	args := m.Called(ctx, participantID, at)
	return args.Error(0)
}

type ProviderRepositoryMock struct {
	mock.Mock
}

func (m *ProviderRepositoryMock) Find(ctx context.Context, ref models.ProviderRef) (models.Provider, error) {
	args := m.Called(ctx, ref)
	var provider models.Provider
	if val := args.Get(0); val != nil {
		provider = val.(models.Provider)
	}
	return provider, args.Error(1)
}

func (m *ProviderRepositoryMock) FindMany(ctx context.Context, refs []models.ProviderRef) ([]models.Provider, error) {
	args := m.Called(ctx, refs)
	var providers []models.Provider
	if val := args.Get(0); val != nil {
		providers = val.([]models.Provider)
	}
	return providers, args.Error(1)
}

// PublisherMock records events published to the exchange.
type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}
