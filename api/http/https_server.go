package http

import (
	"context"

	"Mano/internal/config"
	"Mano/internal/initial"
	jwtMiddleware "Mano/internal/middleware/jwt"
	aiRepo "Mano/internal/modules/ai/domain/repository"
	"Mano/internal/modules/ai/infrastructure/embedding"
	"Mano/internal/modules/ai/infrastructure/llm"
	aiPersistence "Mano/internal/modules/ai/infrastructure/persistence"
	"Mano/internal/modules/ai/infrastructure/pipeline"
	"Mano/internal/modules/ai/infrastructure/transform"
	"Mano/internal/modules/ai/infrastructure/vectordb"
	aiHandler "Mano/internal/modules/ai/interface/http"
	chatService "Mano/internal/modules/chat/application/service"
	chatPersistence "Mano/internal/modules/chat/infrastructure/persistence"
	chatHandler "Mano/internal/modules/chat/interface/http"
	teamService "Mano/internal/modules/team/application/service"
	teamPersistence "Mano/internal/modules/team/infrastructure/persistence"
	teamHandler "Mano/internal/modules/team/interface/http"
	"Mano/internal/modules/user/application/service"
	"Mano/internal/modules/user/infrastructure/persistence"
	userHandler "Mano/internal/modules/user/interface/http"
	"Mano/pkg/ssl"
	"Mano/pkg/ws"
	"Mano/pkg/zlog"

	aiService "Mano/internal/modules/ai/application/service"

	cors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

var GE *gin.Engine

// 后台任务（outbox relay / 向量化消费者）在 main 里复用这几个实例
var (
	VectorSvc      *aiService.VectorService
	EmbedEventRepo aiRepo.EmbedEventRepository
)

func init() {
	GE = gin.Default()
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	GE.Use(cors.New(corsConfig))
	GE.Use(ssl.TlsHandler(config.GetConfig().MainConfig.Host, config.GetConfig().MainConfig.Port))

	conf := config.GetConfig()
	ctx := context.Background()
	wsHub := ws.NewHub()

	userRepo := persistence.NewUserInfoRepository(initial.GormDB)
	personRepo := teamPersistence.NewPersonRepository(initial.GormDB)
	topicRepo := teamPersistence.NewTopicRepository(initial.GormDB)
	messageRepo := chatPersistence.NewMessageRepository(initial.GormDB)
	fileRepo := chatPersistence.NewMessageFileRepository(initial.GormDB)
	embedEventRepo := aiPersistence.NewEmbedEventRepository(initial.GormDB)
	embeddingLedger := aiPersistence.NewConversationEmbeddingRepository(initial.GormDB)

	embedder, embedMeta, err := embedding.NewEmbedderFromConfig(ctx, conf)
	if err != nil {
		zlog.Fatal("初始化向量化客户端失败: " + err.Error())
	}
	vectorStore, err := vectordb.NewMilvusStore(
		initial.MilvusClient,
		conf.MilvusConfig.CollectionName,
		embedMeta.Dim,
		entity.MetricType(conf.MilvusConfig.MetricType),
	)
	if err != nil {
		zlog.Fatal("初始化向量库失败: " + err.Error())
	}

	vectorSvc := aiService.NewVectorService(embedder, vectorStore, embeddingLedger, embedMeta.Dim, conf)
	kafkaEnabled := len(conf.KafkaConfig.Brokers) > 0
	embedQueueSvc := aiService.NewEmbedQueueService(embedEventRepo, vectorSvc, kafkaEnabled)

	extractor := transform.NewKeywordThemeExtractor(conf.ContextConfig.ThemeLookback, conf.ContextConfig.MaxThemes)
	ctxBuilder := pipeline.NewContextBuilder(personRepo, topicRepo, messageRepo, extractor, vectorSvc, conf.ContextConfig.HistoryLimit)

	chatModel, chatMeta, err := llm.NewChatModelFromConfig(ctx, conf)
	if err != nil {
		zlog.Fatal("初始化对话模型失败: " + err.Error())
	}
	chatPipe, err := pipeline.NewChatPipeline(
		personRepo, topicRepo, messageRepo, fileRepo,
		ctxBuilder, chatModel, chatMeta,
		conf.ContextConfig.HistoryLimit,
		conf.ContextConfig.FileContentMaxChars,
	)
	if err != nil {
		zlog.Fatal("初始化聊天编排失败: " + err.Error())
	}

	userSvc := service.NewUserInfoService(userRepo)
	teamSvc := teamService.NewTeamService(personRepo, topicRepo)
	messageSvc := chatService.NewMessageService(messageRepo, fileRepo)
	fileSvc := chatService.NewFileService(fileRepo, wsHub)
	chatStreamSvc := aiService.NewChatStreamService(chatPipe, embedQueueSvc, wsHub)

	VectorSvc = vectorSvc
	EmbedEventRepo = embedEventRepo

	userH := userHandler.NewUserInfoHandler(userSvc)
	teamH := teamHandler.NewTeamHandler(teamSvc)
	messageH := chatHandler.NewMessageHandler(messageSvc, fileSvc)
	wsH := chatHandler.NewWSHandler(wsHub)
	chatStreamH := aiHandler.NewChatStreamHandler(chatStreamSvc)

	GE.POST("/login", userH.Login)
	GE.POST("/register", userH.Register)
	GE.GET("/ws", wsH.Serve)

	authed := GE.Group("/")
	authed.Use(jwtMiddleware.Auth())
	authed.GET("/auth/ping", userH.Ping)

	authed.POST("/person/createPerson", teamH.CreatePerson)
	authed.POST("/person/getPersonList", teamH.GetPersonList)
	authed.POST("/person/updatePerson", teamH.UpdatePerson)
	authed.POST("/person/deletePerson", teamH.DeletePerson)

	authed.POST("/topic/createTopic", teamH.CreateTopic)
	authed.POST("/topic/getTopicList", teamH.GetTopicList)
	authed.POST("/topic/archiveTopic", teamH.ArchiveTopic)
	authed.POST("/topic/getGeneralTopic", teamH.GetGeneralTopic)

	authed.POST("/message/getMessageList", messageH.GetMessageList)
	authed.POST("/message/getMessageFiles", messageH.GetMessageFiles)
	authed.POST("/message/uploadFile", messageH.UploadFile)

	authed.POST("/chat/stream", chatStreamH.ChatStream)
}
