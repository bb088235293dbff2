package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/borescope/scopelink/pkg/util/pathutil"
	"github.com/borescope/scopelink/pkg/viewer"
)

func init() {
	rootCmd.AddCommand(genConfigCmd)
}

var (
	output        string
	replace       bool
	configLocType = pathutil.WorkingDirLoc
	cameraHost    string
	captureType   string
	httpAddr      string
)

func init() {
	genConfigCmd.Flags().StringVarP(&output, "output", "o", "", "path of output config file. Uses default of 'type' flag if unspecified.")
	genConfigCmd.Flags().BoolVarP(&replace, "replace", "r", false, "whether to allow rewrite of a file that already exists.")
	genConfigCmd.Flags().VarP(&configLocType, "type", "m", fmt.Sprintf("config generation mode. Valid values: %v", pathutil.AllConfigLocationTypes()))
	genConfigCmd.Flags().StringVar(&cameraHost, "host", "", "camera address, defaults to the factory address")
	genConfigCmd.Flags().StringVar(&captureType, "capture", viewer.CaptureFile, "capture store type: file, boltdb or memory")
	genConfigCmd.Flags().StringVar(&httpAddr, "http", "localhost:8090", "preview API address, empty to disable")
}

var genConfigCmd = &cobra.Command{
	Use:   "gen-config",
	Short: "Generates a config file",
	PreRun: func(_ *cobra.Command, _ []string) {
		if output == "" {
			var err error
			if output, err = pathutil.ViewerDefaults().Get(configLocType); err != nil {
				log.Fatalln(err)
			}
			log.Infof("No 'output' set; using default path: %s", output)
		}
		var err error
		if output, err = filepath.Abs(output); err != nil {
			log.WithError(err).Fatalln("invalid output provided")
		}
	},
	Run: func(_ *cobra.Command, _ []string) {
		var dir string
		switch configLocType {
		case pathutil.WorkingDirLoc:
			dir = filepath.Dir(output)
		case pathutil.HomeLoc:
			dir = pathutil.DataDir()
		case pathutil.LocalLoc:
			dir = "/usr/local/scopelink"
		default:
			log.Fatalln("invalid config type:", configLocType)
		}

		conf := viewer.DefaultConfig(dir)
		if cameraHost != "" {
			conf.Camera.Host = cameraHost
		}
		conf.Interfaces.HTTPAddr = httpAddr
		conf.Capture.Type = captureType
		switch captureType {
		case viewer.CaptureFile:
		case viewer.CaptureBoltDB:
			conf.Capture.Location = filepath.Join(dir, "captures.db")
		case viewer.CaptureMemory:
			conf.Capture.Location = ""
		default:
			log.Fatalf("invalid capture type %q", captureType)
		}

		if err := pathutil.WriteJSONConfig(conf, output, replace); err != nil {
			log.WithError(err).Error("Failed to write config")
			os.Exit(1)
		}
	},
}
