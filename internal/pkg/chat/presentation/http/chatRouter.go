package http

import (
	"github.com/gin-gonic/gin"

	cacheport "go-relay/internal/infrastructure/cache/port"
	qport "go-relay/internal/infrastructure/queue/port"
	"go-relay/internal/infrastructure/realtime"
	"go-relay/internal/infrastructure/security"
	"go-relay/internal/pkg/chat/presentation/controller"
	repository "go-relay/internal/pkg/chat/persistence/repository/port"
)

// Deps bundles what the chat routes need from the composition root.
type Deps struct {
	Repo     repository.ChatRepository
	Queue    qport.Client
	Verifier security.Verifier
	Registry *realtime.Registry
	Rooms    *realtime.Rooms
	Cache    cacheport.Cache
}

// RegisterRoutes mounts the chat endpoints under the given router group.
func RegisterRoutes(g *gin.RouterGroup, deps Deps) {
	createCtl := controller.NewCreateChatController(deps.Repo)
	queueSendCtl := controller.NewQueueSendMessageController(deps.Queue)
	getMsgCtl := controller.NewGetMessagesController(deps.Repo)
	socketCtl := controller.NewChatSocketController(deps.Repo, deps.Verifier, deps.Registry, deps.Rooms, deps.Cache)

	// POST /api/v1/chat -> create a chat
	g.POST("/chat", createCtl.Handle())

	// POST /api/v1/chat/:chatId -> queue a message into a chat
	g.POST("/chat/:chatId", queueSendCtl.Handle())

	// GET /api/v1/chat/:chatId/messages -> fetch a history page
	g.GET("/chat/:chatId/messages", getMsgCtl.Handle())

	// GET /api/v1/chat/ws -> websocket endpoint for realtime traffic
	g.GET("/chat/ws", socketCtl.Handle())
}
