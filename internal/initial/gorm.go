package initial

import (
	"Mano/internal/config"
	vectorEntity "Mano/internal/modules/ai/domain/vector"
	chatEntity "Mano/internal/modules/chat/domain/entity"
	teamEntity "Mano/internal/modules/team/domain/entity"
	userEntity "Mano/internal/modules/user/domain/entity"

	"Mano/pkg/zlog"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var GormDB *gorm.DB

func init() {
	conf := config.GetConfig()
	pg := conf.PostgresConfig
	sslMode := pg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	dbName := pg.DatabaseName
	if dbName == "" {
		dbName = conf.AppName
	}
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=Local",
		pg.Host, pg.Port, pg.User, pg.Password, dbName, sslMode)
	var err error
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	GormDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		zlog.Fatal(err.Error())
	}
	err = GormDB.AutoMigrate(
		&userEntity.UserInfo{},
		&teamEntity.Person{},
		&teamEntity.Topic{},
		&teamEntity.TopicParticipant{},
		&chatEntity.Message{},
		&chatEntity.MessageFile{},

		&vectorEntity.ConversationEmbedding{},
		&vectorEntity.EmbedEvent{},
	)
	// 自动迁移，如果没有建表，会自动创建对应的表
	if err != nil {
		zlog.Fatal(err.Error())
	}
}
