package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ibusnowden/MLRun/internal/common/applife"
	"github.com/ibusnowden/MLRun/internal/common/kconfig"
	"github.com/ibusnowden/MLRun/internal/common/klog"
	"github.com/ibusnowden/MLRun/internal/ingestd"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "ingestd",
		Short: "mlrun ingest daemon: run lifecycle and metric ingestion",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := kconfig.DefaultIngestConfig()
			if err := kconfig.Load(configPath, &cfg); err != nil {
				return err
			}
			klog.Configure(cfg.Logging.Level, cfg.Logging.JSON)
			return ingestd.Run(applife.WithShutdown(), cfg)
		},
	}
	root.Flags().StringVar(&configPath, "config", "", "path to the yaml config file")

	if err := root.Execute(); err != nil {
		logrus.WithError(err).Error("ingestd exited with error")
		os.Exit(1)
	}
}
