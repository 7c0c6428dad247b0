package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	pkg "git.solsynth.dev/hypernet/syncup/pkg/internal"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/channels"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/conversation"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/database"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/directory"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/grpc"
	server "git.solsynth.dev/hypernet/syncup/pkg/internal/http"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/http/api"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/models"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/notify"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/offline"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/pushgw"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/realtime"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/storage"
	"git.solsynth.dev/hypernet/syncup/pkg/internal/stories"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"
)

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
}

func main() {
	// Load environment
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("An error occurred when loading .env file...")
	}

	// Configure settings
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.SetConfigName("settings")
	viper.SetConfigType("toml")
	viper.SetEnvPrefix("SYNCUP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("bind", "127.0.0.1:8444")
	viper.SetDefault("grpc_bind", "127.0.0.1:7444")
	viper.SetDefault("storage.cleanup", "@every 60m")
	viper.SetDefault("offline.flush", "@every 5m")

	// Load settings
	if err := viper.ReadInConfig(); err != nil {
		log.Panic().Err(err).Msg("An error occurred when loading settings.")
	}

	me, myName := viper.GetString("user.id"), models.DisplayName(viper.GetString("user.name"))
	if len(me) == 0 {
		log.Fatal().Msg("No user configured, set user.id in settings.")
	}

	// Realtime tree
	var tree realtime.Tree
	var probes = map[string]grpc.Probe{}
	if len(viper.GetString("database.dsn")) > 0 {
		if err := database.NewSource(); err != nil {
			log.Fatal().Err(err).Msg("An error occurred when connect to database.")
		} else if err := database.RunMigration(database.C); err != nil {
			log.Fatal().Err(err).Msg("An error occurred when running database auto migration.")
		}
		persistent, err := realtime.NewPersistentTree(database.C)
		if err != nil {
			log.Fatal().Err(err).Msg("An error occurred when restoring realtime tree.")
		}
		tree = persistent
		probes["database"] = func(ctx context.Context) error {
			db, err := database.C.DB()
			if err != nil {
				return err
			}
			return db.PingContext(ctx)
		}
	} else {
		log.Warn().Msg("No database configured, realtime tree will not survive a restart...")
		tree = realtime.NewMemoryTree()
	}
	probes["tree"] = func(ctx context.Context) error {
		_, err := tree.Get(ctx, "/users/"+me)
		return err
	}

	// Offline cache
	var cache *offline.Cache
	var err error
	if path := viper.GetString("offline.path"); len(path) > 0 {
		cache, err = offline.Open(path)
	} else {
		cache, err = offline.OpenInMemory()
	}
	if err != nil {
		log.Fatal().Err(err).Msg("An error occurred when opening offline cache.")
	}

	// Object storage
	var store storage.ObjectStorage
	if endpoint := viper.GetString("storage.endpoint"); len(endpoint) > 0 {
		store = storage.NewSupabase(endpoint, viper.GetString("storage.key"), viper.GetDuration("storage.timeout"))
	} else {
		log.Warn().Msg("No object storage configured, media is kept in memory...")
		store = storage.NewMemory(viper.GetString("storage.public_url"))
	}

	// Push gateway
	topics := pushgw.NewTopics()
	convOpts := []conversation.Option{
		conversation.WithStorage(store),
		conversation.WithTopics(topics),
		conversation.WithCache(cache),
	}
	if path := viper.GetString("push.credentials"); len(path) > 0 {
		creds, err := pushgw.ReadCredentials(path)
		if err != nil {
			log.Fatal().Err(err).Msg("An error occurred when reading push credentials.")
		}
		client, err := pushgw.NewClient(creds, pushgw.Config{
			Endpoint: viper.GetString("push.endpoint"),
			Timeout:  viper.GetDuration("push.timeout"),
			Rate:     rate.Limit(viper.GetFloat64("push.rate")),
			Burst:    viper.GetInt("push.burst"),
		})
		if err != nil {
			log.Fatal().Err(err).Msg("An error occurred when setting up push gateway.")
		}
		convOpts = append(convOpts, conversation.WithPublisher(client))
	} else {
		log.Warn().Msg("No push credentials configured, messages will not be announced...")
	}

	// Components
	users := directory.New(
		tree,
		directory.NewStore(viper.GetString("cache.redis_addr"), viper.GetString("cache.redis_password"), viper.GetInt("cache.redis_db")),
		viper.GetDuration("cache.ttl"),
	)
	registry := conversation.NewRegistry(func(channelId string) *conversation.Conversation {
		return conversation.New(tree, channelId, me, myName, convOpts...)
	})
	active := new(notify.ActiveChannel)

	// Server
	httpApp := server.NewServer(api.Dependencies{
		Me:            me,
		Tree:          tree,
		Channels:      channels.NewService(tree, users, me),
		Stories:       stories.NewService(tree, users, me, stories.WithStorage(store)),
		Conversations: registry,
		Gate:          notify.NewGate(notify.TreeMuteLookup{Tree: tree}),
		Active:        active,
	})
	go httpApp.Listen()

	grpcServer := grpc.NewGrpc(probes)
	go func() {
		if err := grpcServer.Listen(); err != nil {
			log.Fatal().Err(err).Msg("An error occurred when starting grpc server...")
		}
	}()

	// Configure timed tasks
	quartz := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(&log.Logger)))
	if _, err := quartz.AddFunc(viper.GetString("storage.cleanup"), storage.DoAutoMediaCleanup(store)); err != nil {
		log.Fatal().Err(err).Msg("An error occurred when scheduling media cleanup.")
	}
	if _, err := quartz.AddFunc(viper.GetString("offline.flush"), offline.DoAutoFlush(cache)); err != nil {
		log.Fatal().Err(err).Msg("An error occurred when scheduling offline cache flush.")
	}
	quartz.Start()

	// Messages
	log.Info().Msgf("SyncUp v%s is started...", pkg.AppVersion)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msgf("SyncUp v%s is quitting...", pkg.AppVersion)

	quartz.Stop()
	registry.CloseAll()
	if tracked, ok := tree.(interface{ Disconnect(context.Context) error }); ok {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := tracked.Disconnect(ctx); err != nil {
			log.Warn().Err(err).Msg("An error occurred when running disconnect cleanups...")
		}
		cancel()
	}
	_ = httpApp.Shutdown()
	grpcServer.Stop()
	if err := cache.Close(); err != nil {
		log.Warn().Err(err).Msg("An error occurred when closing offline cache...")
	}
}
