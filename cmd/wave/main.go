package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/user"
	"time"

	"github.com/spf13/cobra"

	"github.com/wavelength-media/wavelength/internal/adapters/clock"
	"github.com/wavelength-media/wavelength/internal/adapters/config"
	"github.com/wavelength-media/wavelength/internal/adapters/idgen"
	"github.com/wavelength-media/wavelength/internal/adapters/mqtt"
	"github.com/wavelength-media/wavelength/internal/adapters/output"
	"github.com/wavelength-media/wavelength/internal/adapters/session"
	"github.com/wavelength-media/wavelength/internal/core"
	"github.com/wavelength-media/wavelength/pkg/wl"
)

type app struct {
	service core.Service
	printer output.Printer
	quiet   bool
	json    bool
	yes     bool
	timeout time.Duration
}

func main() {
	root := &cobra.Command{
		Use:   "wave",
		Short: "Wavelength media CLI",
	}

	var (
		broker    string
		topicBase string
		identity  string
		apiKey    string
		timeout   time.Duration
		quiet     bool
		jsonOut   bool
		yes       bool
	)

	root.PersistentFlags().StringVarP(&broker, "broker", "b", "", "MQTT broker URL")
	root.PersistentFlags().StringVar(&topicBase, "topic-base", wl.BaseTopic, "MQTT topic base")
	root.PersistentFlags().StringVarP(&identity, "identity", "i", "", "caller identity")
	root.PersistentFlags().StringVar(&apiKey, "api-key", "", "broker API key")
	root.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 2*time.Second, "command timeout")
	root.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-essential output")
	root.PersistentFlags().BoolVarP(&jsonOut, "json", "j", false, "output json")
	root.PersistentFlags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompts")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		identity = defaultIdentity(identity, cfg.Identity)
		if broker == "" {
			broker = cfg.Broker
		}
		if apiKey == "" {
			apiKey = cfg.APIKey
		}
		if topicBase == wl.BaseTopic && cfg.TopicBase != "" {
			topicBase = cfg.TopicBase
		}
		if broker == "" {
			return errors.New("broker is required (set --broker, WAVELENGTH_BROKER or config)")
		}
		if apiKey == "" {
			return errors.New("api key is required (set --api-key, WAVELENGTH_API_KEY or config)")
		}

		sessionStore, err := session.NewStore()
		if err != nil {
			return err
		}

		clientID := fmt.Sprintf("wave-%d", time.Now().UnixNano())
		mqttClient, err := mqtt.NewClient(mqtt.Options{
			BrokerURL: broker,
			ClientID:  clientID,
			Username:  identity,
			Password:  apiKey,
			TopicBase: topicBase,
			Timeout:   timeout,
		})
		if err != nil {
			return err
		}

		coreCfg := core.Config{
			Broker:    broker,
			APIKey:    apiKey,
			Identity:  identity,
			TopicBase: topicBase,
			Aliases:   cfg.Aliases,
			Defaults: core.Defaults{
				Player:   cfg.Defaults.Player,
				Library:  cfg.Defaults.Library,
				Playlist: cfg.Defaults.Playlist,
			},
		}

		resolver := core.Resolver{Presence: mqttClient, Config: coreCfg}
		service := core.Service{
			Broker:   mqttClient,
			Resolver: resolver,
			Clock:    clock.Clock{},
			IDGen:    idgen.Generator{},
			Sessions: sessionStore,
			Config:   coreCfg,
		}

		var printer output.Printer
		if jsonOut {
			printer = output.JSONPrinter{}
		} else {
			printer = output.HumanPrinter{}
		}

		cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, &app{
			service: service,
			printer: printer,
			quiet:   quiet,
			json:    jsonOut,
			yes:     yes,
			timeout: timeout,
		}))
		return nil
	}

	root.AddCommand(nodesCommand())
	root.AddCommand(statusCommand())
	root.AddCommand(acquireCommand())
	root.AddCommand(renewCommand())
	root.AddCommand(releaseCommand())
	root.AddCommand(ownerCommand())
	root.AddCommand(playCommand())
	root.AddCommand(pauseCommand())
	root.AddCommand(toggleCommand())
	root.AddCommand(stopCommand())
	root.AddCommand(seekCommand())
	root.AddCommand(nextCommand())
	root.AddCommand(prevCommand())
	root.AddCommand(volumeCommand())
	root.AddCommand(queueCommand())
	root.AddCommand(uploadCommand())
	root.AddCommand(tracksCommand())
	root.AddCommand(rmCommand())
	root.AddCommand(searchCommand())
	root.AddCommand(playlistCommand())
	root.AddCommand(feedCommand())
	root.AddCommand(consoleCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(core.ExitCode(err))
	}
}

type appKey struct{}

func fromContext(cmd *cobra.Command) *app {
	val := cmd.Context().Value(appKey{})
	if val == nil {
		return nil
	}
	return val.(*app)
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, timeout)
}

func defaultIdentity(flagVal string, cfgVal string) string {
	if flagVal != "" {
		return flagVal
	}
	if cfgVal != "" {
		return cfgVal
	}
	usr, _ := user.Current()
	host, _ := os.Hostname()
	if usr != nil && host != "" {
		return fmt.Sprintf("%s@%s", usr.Username, host)
	}
	if host != "" {
		return host
	}
	return "wave-unknown"
}
