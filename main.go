package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/zapflow/zapflow/agent"
	"github.com/zapflow/zapflow/config"
	"github.com/zapflow/zapflow/logger"
	"github.com/zapflow/zapflow/model"
	"go.uber.org/zap"
)

type cli struct {
	cfg config.Config
}

func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().String("config-file", "", "Path to config file.")
	cmd.Flags().String("redis-addr", "localhost:6379", "comma separated list of redis host:port")
	cmd.Flags().String("namespace", "zapflow", "namespace used in storage")
	cmd.Flags().Int("http-port", 8080, "http port for rest endpoints")
	cmd.Flags().String("amqp-url", "", "amqp broker url for lifecycle events")
	cmd.Flags().Int("queue-tick-seconds", 1, "dispatch queue tick interval")
	cmd.Flags().Int("queue-delay-seconds", 3, "delay between outbound messages")
	cmd.Flags().Int("queue-max-per-minute", 20, "per-minute outbound cap")
	cmd.Flags().Bool("business-hours-enabled", false, "restrict sends to business hours")
	cmd.Flags().String("business-hours-start", "09:00", "business hours window start")
	cmd.Flags().String("business-hours-end", "18:00", "business hours window end")
	cmd.Flags().String("classifier-endpoint", "", "semantic classifier endpoint")
	cmd.Flags().String("classifier-api-key", "", "semantic classifier api key")
	cmd.Flags().Bool("intent-strict-mode", false, "suppress local matching when classifier says no_match")
	return viper.BindPFlags(cmd.Flags())
}

func (c *cli) setupConfig(cmd *cobra.Command, args []string) error {
	configFile, err := cmd.Flags().GetString("config-file")
	if err != nil {
		return err
	}
	viper.SetConfigFile(configFile)
	if err = viper.ReadInConfig(); err != nil {
		// it's ok if config file doesn't exist
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}

	c.cfg = config.Default()
	c.cfg.RedisConfig.Addrs = strings.Split(viper.GetString("redis-addr"), ",")
	c.cfg.RedisConfig.Namespace = viper.GetString("namespace")
	c.cfg.HttpPort = viper.GetInt("http-port")
	c.cfg.AmqpUrl = viper.GetString("amqp-url")
	c.cfg.Queue.TickIntervalSeconds = viper.GetInt("queue-tick-seconds")
	c.cfg.Queue.MessageDelaySeconds = viper.GetInt("queue-delay-seconds")
	c.cfg.Queue.MaxPerMinute = viper.GetInt("queue-max-per-minute")
	c.cfg.Queue.BusinessHoursEnabled = viper.GetBool("business-hours-enabled")
	c.cfg.Queue.BusinessHoursStart = viper.GetString("business-hours-start")
	c.cfg.Queue.BusinessHoursEnd = viper.GetString("business-hours-end")
	c.cfg.Classifier.Endpoint = viper.GetString("classifier-endpoint")
	c.cfg.Classifier.ApiKey = viper.GetString("classifier-api-key")
	c.cfg.Intent.StrictMode = viper.GetBool("intent-strict-mode")
	return nil
}

// dryRunSender logs outbound messages instead of sending; the real WhatsApp
// transport is injected by the embedding deployment.
type dryRunSender struct{}

func (dryRunSender) Send(ctx context.Context, msg model.OutboundMessage) error {
	logger.Info("outbound message (dry run)", zap.String("to", msg.To),
		zap.String("sessionId", msg.SessionId), zap.Int("bytes", len(msg.Content)))
	return nil
}

func (c *cli) run(cmd *cobra.Command, args []string) error {
	a, err := agent.New(c.cfg, dryRunSender{})
	if err != nil {
		panic(err)
	}
	if err := a.Start(); err != nil {
		panic(err)
	}
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	return a.Shutdown()
}

func main() {
	cli := &cli{}

	cmd := &cobra.Command{
		Use:     "zapflow",
		PreRunE: cli.setupConfig,
		RunE:    cli.run,
	}

	if err := setupFlags(cmd); err != nil {
		log.Fatal(err)
	}

	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
