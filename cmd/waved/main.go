package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wavelength-media/wavelength/internal/adapters/mqttserver"
	"github.com/wavelength-media/wavelength/internal/modules/embeddedmqtt"
	"github.com/wavelength-media/wavelength/internal/modules/mediastore"
	"github.com/wavelength-media/wavelength/internal/modules/playlistsrv"
	"github.com/wavelength-media/wavelength/internal/modules/podcastfeed"
	"github.com/wavelength-media/wavelength/internal/modules/renderer"
	"github.com/wavelength-media/wavelength/internal/waved"
	"github.com/wavelength-media/wavelength/pkg/wl"
	"go.uber.org/zap"
)

func main() {
	var (
		configPath string
		broker     string
		identity   string
		apiKey     string
		topicBase  string
		logLevel   string
		logFormat  string
		logOutput  string
		moduleOnly string
		dryRun     bool
	)

	defaultConfig, err := waved.DefaultConfigPath()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	flag.StringVar(&configPath, "config", defaultConfig, "config file path")
	flag.StringVar(&broker, "broker", "", "MQTT broker URL override")
	flag.StringVar(&identity, "identity", "", "server identity override")
	flag.StringVar(&apiKey, "api-key", "", "API key override")
	flag.StringVar(&topicBase, "topic-base", "", "topic base override")
	flag.StringVar(&logLevel, "log-level", "", "log level override")
	flag.StringVar(&logFormat, "log-format", "", "log format override (console|json)")
	flag.StringVar(&logOutput, "log-output", "", "log output override (stdout|stderr)")
	flag.StringVar(&moduleOnly, "module", "", "limit to a single module")
	flag.BoolVar(&dryRun, "dry-run", false, "validate config and exit")
	flag.Parse()

	cfg, err := loadConfig(configPath, defaultConfig)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg = waved.ApplyEnv(cfg)
	applyOverrides(&cfg, broker, identity, apiKey, topicBase, logLevel, logFormat, logOutput)

	if err := waved.ValidateServer(cfg.Server); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if dryRun {
		return
	}

	logger, err := waved.NewLogger(waved.LogConfig{
		Level:  cfg.Server.LogLevel,
		Format: cfg.Server.LogFormat,
		Output: cfg.Server.LogOutput,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	skipEmbedded := false
	if moduleOnly != "embedded_mqtt" && cfg.Modules.EmbeddedMQTT.Enabled && cfg.Server.Broker == embeddedBrokerURL(cfg) {
		if err := startEmbeddedBroker(ctx, cfg, logger, cancel); err != nil {
			logger.Error("embedded mqtt failed", zap.Error(err))
			os.Exit(1)
		}
		skipEmbedded = true
	}

	logger.Info("waved starting",
		zap.String("broker", cfg.Server.Broker),
		zap.String("identity", cfg.Server.Identity),
		zap.String("topic_base", cfg.Server.TopicBase),
		zap.Strings("modules", enabledModules(cfg)),
	)

	var client *mqttserver.Client
	if moduleOnly != "embedded_mqtt" {
		var err error
		client, err = mqttserver.NewClient(mqttserver.Options{
			BrokerURL: cfg.Server.Broker,
			ClientID:  fmt.Sprintf("waved-%d", time.Now().UnixNano()),
			Username:  cfg.Server.Identity,
			Password:  cfg.Server.APIKey,
			Timeout:   2 * time.Second,
			Logger:    logger.With(zap.String("component", "mqtt")),
		})
		if err != nil {
			logger.Error("mqtt connection failed", zap.Error(err))
			os.Exit(1)
		}
	}

	modules, err := buildModules(cfg, client, logger, moduleOnly, skipEmbedded)
	if err != nil {
		logger.Error("failed to build modules", zap.Error(err))
		os.Exit(1)
	}

	supervisor := waved.Supervisor{Logger: logger}
	if err := supervisor.Run(ctx, modules); err != nil {
		logger.Error("supervisor error", zap.Error(err))
		os.Exit(1)
	}
}

// loadConfig tolerates a missing file only at the default location, so a
// daemon configured purely through the environment still starts.
func loadConfig(path, defaultPath string) (waved.Config, error) {
	cfg, err := waved.LoadConfig(path)
	if err != nil {
		if os.IsNotExist(err) && path == defaultPath {
			return waved.Config{}, nil
		}
		return waved.Config{}, err
	}
	return cfg, nil
}

func applyOverrides(cfg *waved.Config, broker, identity, apiKey, topicBase, logLevel, logFormat, logOutput string) {
	if broker != "" {
		cfg.Server.Broker = broker
	}
	if identity != "" {
		cfg.Server.Identity = identity
	}
	if apiKey != "" {
		cfg.Server.APIKey = apiKey
	}
	if topicBase != "" {
		cfg.Server.TopicBase = topicBase
	}
	if logLevel != "" {
		cfg.Server.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.Server.LogFormat = logFormat
	}
	if logOutput != "" {
		cfg.Server.LogOutput = logOutput
	}
	if cfg.Server.Identity == "" {
		cfg.Server.Identity = "waved"
	}
	if cfg.Server.TopicBase == "" {
		cfg.Server.TopicBase = wl.BaseTopic
	}
	if cfg.Server.Broker == "" && cfg.Modules.EmbeddedMQTT.Enabled {
		cfg.Server.Broker = embeddedBrokerURL(*cfg)
	}
}

func buildModules(cfg waved.Config, client *mqttserver.Client, logger *zap.Logger, moduleOnly string, skipEmbedded bool) ([]waved.ModuleRunner, error) {
	modules := []waved.ModuleRunner{}
	if cfg.Modules.EmbeddedMQTT.Enabled && !skipEmbedded {
		if moduleOnly == "" || moduleOnly == "embedded_mqtt" {
			mod, err := embeddedmqtt.NewModule(logger.With(zap.String("module", "embedded_mqtt")), embeddedmqtt.Config{
				Listen: cfg.Modules.EmbeddedMQTT.Listen,
				APIKey: cfg.Server.APIKey,
			})
			if err != nil {
				return nil, err
			}
			modules = append(modules, waved.ModuleRunner{Name: "embedded_mqtt", Run: mod.Run})
		}
	}

	if cfg.Modules.MediaStore.Enabled {
		if moduleOnly == "" || moduleOnly == "mediastore" {
			mod, err := mediastore.NewModule(logger.With(zap.String("module", "mediastore")), client, mediastore.Config{
				NodeID:     cfg.Modules.MediaStore.NodeID,
				TopicBase:  cfg.Server.TopicBase,
				Name:       cfg.Modules.MediaStore.Name,
				Root:       cfg.Modules.MediaStore.Root,
				HTTPListen: cfg.Modules.MediaStore.HTTPListen,
			})
			if err != nil {
				return nil, err
			}
			modules = append(modules, waved.ModuleRunner{Name: "mediastore", Run: mod.Run})
		}
	}

	if cfg.Modules.Playlist.Enabled {
		if moduleOnly == "" || moduleOnly == "playlist" {
			mod, err := playlistsrv.NewModule(logger.With(zap.String("module", "playlist")), client, playlistsrv.Config{
				NodeID:    cfg.Modules.Playlist.NodeID,
				TopicBase: cfg.Server.TopicBase,
				Name:      cfg.Modules.Playlist.Name,
				Root:      cfg.Modules.Playlist.Root,
			})
			if err != nil {
				return nil, err
			}
			modules = append(modules, waved.ModuleRunner{Name: "playlist", Run: mod.Run})
		}
	}

	if cfg.Modules.Podcast.Enabled {
		if moduleOnly == "" || moduleOnly == "podcast" {
			mod, err := podcastfeed.NewModule(logger.With(zap.String("module", "podcast")), client, podcastfeed.Config{
				NodeID:          cfg.Modules.Podcast.NodeID,
				TopicBase:       cfg.Server.TopicBase,
				Name:            cfg.Modules.Podcast.Name,
				Root:            cfg.Modules.Podcast.Root,
				RefreshInterval: time.Duration(cfg.Modules.Podcast.RefreshIntervalMS) * time.Millisecond,
				Timeout:         time.Duration(cfg.Modules.Podcast.TimeoutMS) * time.Millisecond,
			})
			if err != nil {
				return nil, err
			}
			modules = append(modules, waved.ModuleRunner{Name: "podcast", Run: mod.Run})
		}
	}

	if cfg.Modules.Player.Enabled {
		if moduleOnly == "" || moduleOnly == "player" {
			mod, err := renderer.NewModule(logger.With(zap.String("module", "player")), client, renderer.Config{
				NodeID:    cfg.Modules.Player.NodeID,
				TopicBase: cfg.Server.TopicBase,
				Name:      cfg.Modules.Player.Name,
				Pipeline:  cfg.Modules.Player.Pipeline,
				Device:    cfg.Modules.Player.Device,
				Crossfade: time.Duration(cfg.Modules.Player.CrossfadeMS) * time.Millisecond,
				Volume:    cfg.Modules.Player.Volume,
			})
			if err != nil {
				return nil, err
			}
			modules = append(modules, waved.ModuleRunner{Name: "player", Run: mod.Run})
		}
	}

	if moduleOnly != "" && len(modules) == 0 {
		return nil, errors.New("no modules enabled")
	}
	return modules, nil
}

func enabledModules(cfg waved.Config) []string {
	out := []string{}
	if cfg.Modules.EmbeddedMQTT.Enabled {
		out = append(out, "embedded_mqtt")
	}
	if cfg.Modules.MediaStore.Enabled {
		out = append(out, "mediastore")
	}
	if cfg.Modules.Playlist.Enabled {
		out = append(out, "playlist")
	}
	if cfg.Modules.Podcast.Enabled {
		out = append(out, "podcast")
	}
	if cfg.Modules.Player.Enabled {
		out = append(out, "player")
	}
	return out
}

func embeddedBrokerURL(cfg waved.Config) string {
	listen := cfg.Modules.EmbeddedMQTT.Listen
	if listen == "" {
		listen = "127.0.0.1:1883"
	}
	return embeddedmqtt.BrokerURL(listen)
}

// startEmbeddedBroker brings the broker up before the daemon's own client
// dials it.
func startEmbeddedBroker(ctx context.Context, cfg waved.Config, logger *zap.Logger, cancel context.CancelFunc) error {
	mod, err := embeddedmqtt.NewModule(logger.With(zap.String("module", "embedded_mqtt")), embeddedmqtt.Config{
		Listen: cfg.Modules.EmbeddedMQTT.Listen,
		APIKey: cfg.Server.APIKey,
	})
	if err != nil {
		return err
	}
	go func() {
		if err := mod.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("embedded mqtt exited", zap.Error(err))
			cancel()
		}
	}()

	listen := cfg.Modules.EmbeddedMQTT.Listen
	if listen == "" {
		listen = "127.0.0.1:1883"
	}
	return waitForListen(listen, 3*time.Second)
}

func waitForListen(listen string, timeout time.Duration) error {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return err
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	addr := net.JoinHostPort(host, port)
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("embedded mqtt not ready at %s", addr)
}
