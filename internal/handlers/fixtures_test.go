package handlers

import (
	"context"
	"io"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"

	"messenger-service/internal/access"
	"messenger-service/internal/calls"
	"messenger-service/internal/config"
	"messenger-service/internal/locator"
	"messenger-service/internal/middleware"
	"messenger-service/internal/mocks"
	"messenger-service/internal/models"
	"messenger-service/internal/providers"
	"messenger-service/internal/push"
	"messenger-service/internal/storage"
	"messenger-service/internal/telemetry"
)

var (
	tippin = models.Ref("user", "tippin")
	doe    = models.Ref("user", "doe")
	acme   = models.Ref("company", "acme")
)

type recordingRealtime struct {
	mu     sync.Mutex
	events []models.ThreadEvent
}

func (r *recordingRealtime) BroadcastTo(_ context.Context, _ []models.ProviderRef, event models.ThreadEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingRealtime) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Event)
	}
	return out
}

type recordingBroadcaster struct {
	sent []push.Notification
}

func (b *recordingBroadcaster) Broadcast(_ context.Context, n push.Notification) error {
	b.sent = append(b.sent, n)
	return nil
}

type fakeStore struct {
	keys    []string
	removed []string
}

func (s *fakeStore) Remove(_ context.Context, key string) error {
	s.removed = append(s.removed, key)
	return nil
}

func (s *fakeStore) Put(_ context.Context, threadID string, kind storage.Kind, filename string, _ io.Reader, _ int64, _ string) (string, error) {
	key := storage.ThreadPath(threadID) + "/" + string(kind) + "/" + filename
	s.keys = append(s.keys, key)
	return key, nil
}

type testEnv struct {
	threads      *mocks.ThreadRepositoryMock
	participants *mocks.ParticipantRepositoryMock
	messages     *mocks.MessageRepositoryMock
	reactions    *mocks.ReactionRepositoryMock
	calls        *mocks.CallRepositoryMock
	providers    *mocks.ProviderRepositoryMock

	features  config.Features
	realtime  *recordingRealtime
	pushed    *recordingBroadcaster
	store     *fakeStore
	directory *providers.Directory
	audit     *telemetry.AuditEmitter
}

func newEnv() *testEnv {
	e := &testEnv{
		threads:      new(mocks.ThreadRepositoryMock),
		participants: new(mocks.ParticipantRepositoryMock),
		messages:     new(mocks.MessageRepositoryMock),
		reactions:    new(mocks.ReactionRepositoryMock),
		calls:        new(mocks.CallRepositoryMock),
		providers:    new(mocks.ProviderRepositoryMock),
		features:     config.AllFeatures(),
		realtime:     &recordingRealtime{},
		pushed:       &recordingBroadcaster{},
		store:        &fakeStore{},
	}
	e.directory = providers.NewDirectory([]providers.Definition{
		{Alias: "user", Devices: true},
		{Alias: "company"},
	}, e.providers)
	return e
}

func (e *testEnv) router(actor models.ProviderRef) *gin.Engine {
	gin.SetMode(gin.TestMode)
	resolver := access.NewResolver(e.participants, e.messages, e.directory, nil, e.features)
	pushService := push.NewService(e.directory, e.pushed, true)
	callService := calls.NewService(e.calls, e.messages, pushService)

	threadHandler := NewThreadHandler(e.threads, e.participants, e.messages, resolver, e.directory, callService, e.realtime, pushService, nil, 100)
	messageHandler := NewMessageHandler(e.threads, e.messages, resolver, e.store, e.realtime, pushService, nil, 50)
	reactionHandler := NewReactionHandler(messageHandler, e.reactions, e.realtime, pushService)
	callHandler := NewCallHandler(e.threads, e.calls, resolver, callService, nil)
	locatorHandler := NewLocatorHandler(locator.New(e.directory, e.threads))
	statusHandler := NewStatusHandler(e.threads)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ActorKey, actor)
		c.Next()
	})
	r.Use(WithAudit(e.audit))
	r.GET("/threads", threadHandler.ListThreads)
	r.GET("/threads/:thread_id", threadHandler.ShowThread)
	r.GET("/threads/:thread_id/participants", threadHandler.ListParticipants)
	r.POST("/threads/:thread_id/participants", threadHandler.AddParticipants)
	r.POST("/threads/:thread_id/read", threadHandler.MarkRead)

	r.GET("/threads/:thread_id/messages", messageHandler.ListMessages)
	r.POST("/threads/:thread_id/messages", messageHandler.PostMessage)
	r.GET("/threads/:thread_id/messages/:message_id", messageHandler.ShowMessage)
	r.PUT("/threads/:thread_id/messages/:message_id", messageHandler.UpdateMessage)
	r.DELETE("/threads/:thread_id/messages/:message_id", messageHandler.DeleteMessage)
	r.GET("/threads/:thread_id/messages/:message_id/history", messageHandler.MessageHistory)
	r.POST("/threads/:thread_id/images", messageHandler.PostImage)
	r.POST("/threads/:thread_id/documents", messageHandler.PostDocument)
	r.POST("/threads/:thread_id/audio", messageHandler.PostAudio)

	r.GET("/threads/:thread_id/messages/:message_id/reactions", reactionHandler.ListReactions)
	r.POST("/threads/:thread_id/messages/:message_id/reactions", reactionHandler.PostReaction)
	r.DELETE("/threads/:thread_id/messages/:message_id/reactions/:reaction_id", reactionHandler.DeleteReaction)

	r.GET("/threads/:thread_id/calls", callHandler.ListCalls)
	r.POST("/threads/:thread_id/calls", callHandler.StartCall)
	r.GET("/threads/:thread_id/calls/:call_id", callHandler.ShowCall)
	r.POST("/threads/:thread_id/calls/:call_id/setup", callHandler.CompleteSetup)
	r.GET("/threads/:thread_id/calls/:call_id/participants", callHandler.ListParticipants)
	r.GET("/threads/:thread_id/calls/:call_id/participants/:participant_id", callHandler.ShowParticipant)
	r.POST("/threads/:thread_id/calls/:call_id/participants/:participant_id/kick", callHandler.KickParticipant)
	r.POST("/threads/:thread_id/calls/:call_id/join", callHandler.JoinCall)
	r.POST("/threads/:thread_id/calls/:call_id/leave", callHandler.LeaveCall)
	r.POST("/threads/:thread_id/calls/:call_id/end", callHandler.EndCall)

	r.GET("/privates/recipient/:alias/:id", locatorHandler.LocateRecipient)
	r.GET("/status", statusHandler.ProviderStatus)
	return r
}

func groupThread() models.Thread {
	return models.Thread{ID: "g1", Type: models.ThreadGroup, AddParticipants: true, Calling: true, Messaging: true, Knocks: true}
}

func groupParticipants() []models.Participant {
	return []models.Participant{
		{ID: "p1", ThreadID: "g1", OwnerType: "user", OwnerID: "tippin", Admin: true},
		{ID: "p2", ThreadID: "g1", OwnerType: "user", OwnerID: "doe", SendMessages: true},
	}
}

// expectGroup stubs the thread lookup and participant load for g1.
func (e *testEnv) expectGroup(thread models.Thread) {
	e.threads.On("GetThread", mock.Anything, thread.ID).Return(thread, nil)
	e.participants.On("ListByThread", mock.Anything, thread.ID).Return(groupParticipants(), nil)
}

func textMessage(owner models.ProviderRef) models.Message {
	return models.Message{ID: "m1", ThreadID: "g1", OwnerType: owner.Type, OwnerID: owner.ID, Type: models.MessageText, Body: "hello"}
}
