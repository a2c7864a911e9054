package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ibusnowden/MLRun/internal/common/applife"
	"github.com/ibusnowden/MLRun/internal/common/kconfig"
	"github.com/ibusnowden/MLRun/internal/common/klog"
	"github.com/ibusnowden/MLRun/internal/queryd"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "queryd",
		Short: "mlrun query daemon: run listing, metric fetch, and comparison",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := kconfig.DefaultQueryConfig()
			if err := kconfig.Load(configPath, &cfg); err != nil {
				return err
			}
			klog.Configure(cfg.Logging.Level, cfg.Logging.JSON)
			return queryd.Run(applife.WithShutdown(), cfg)
		},
	}
	root.Flags().StringVar(&configPath, "config", "", "path to the yaml config file")

	if err := root.Execute(); err != nil {
		logrus.WithError(err).Error("queryd exited with error")
		os.Exit(1)
	}
}
