package commands

import (
	"context"
	"io/ioutil"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/skycoin/skycoin/src/util/logging"
	"github.com/spf13/cobra"

	"github.com/borescope/scopelink/pkg/devicesim"
	"github.com/borescope/scopelink/pkg/link"
)

var log = logging.MustGetLogger("scopelink")

var simConf struct {
	videoAddr     string
	eventAddr     string
	frameInterval time.Duration
	chunkSize     int
	framesDir     string
	triggerEvery  time.Duration
}

func init() {
	rootCmd.AddCommand(simCmd)

	f := simCmd.Flags()
	f.StringVar(&simConf.videoAddr, "video", ":8030", "address for heartbeats and the video stream")
	f.StringVar(&simConf.eventAddr, "event", ":50000", "address for event polls")
	f.DurationVar(&simConf.frameInterval, "frame-interval", devicesim.DefaultFrameInterval, "time between frames")
	f.IntVar(&simConf.chunkSize, "chunk", devicesim.DefaultChunkSize, "fragment payload size")
	f.StringVar(&simConf.framesDir, "frames", "", "directory of .jpg files to stream, generated frames if empty")
	f.DurationVar(&simConf.triggerEvery, "trigger-every", 0, "raise a device event periodically, 0 to disable")
}

var simCmd = &cobra.Command{
	Use:   "sim",
	Short: "Runs a simulated camera",
	Long: "Runs a simulated camera that streams JPEG frames to the last client " +
		"that sent a heartbeat and answers event polls. Point a viewer at it with " +
		"camera.host set to this machine.",
	Run: func(_ *cobra.Command, _ []string) {
		frames, err := loadFrames(simConf.framesDir)
		if err != nil {
			log.WithError(err).Fatal("Failed to load frames")
		}

		dev, err := devicesim.New(devicesim.Config{
			VideoAddr:     simConf.videoAddr,
			EventAddr:     simConf.eventAddr,
			FrameInterval: simConf.frameInterval,
			ChunkSize:     simConf.chunkSize,
			Frames:        frames,
		})
		if err != nil {
			log.WithError(err).Fatal("Failed to start simulator")
		}
		log.Infof("Simulating camera: video=%s event=%s", dev.VideoAddr(), dev.EventAddr())
		if dev.VideoAddr().Port != link.DefaultVideoPort || dev.EventAddr().Port != link.DefaultEventPort {
			log.Warn("Ports differ from the camera defaults; set camera.video_port and camera.event_port accordingly")
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			ch := make(chan os.Signal, 1)
			signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
			<-ch
			cancel()
		}()

		if simConf.triggerEvery > 0 {
			go func() {
				t := time.NewTicker(simConf.triggerEvery)
				defer t.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-t.C:
						dev.Trigger()
					}
				}
			}()
		}

		if err := dev.Serve(ctx); err != nil {
			log.WithError(err).Error("Simulator stopped")
		}
		s := dev.Stats()
		log.Infof("Sent %d frames; %d heartbeats, %d stops, %d polls received",
			s.FramesSent, s.Heartbeats, s.Stops, s.Polls)
	},
}

func loadFrames(dir string) ([][]byte, error) {
	if dir == "" {
		return nil, nil
	}
	paths, err := filepath.Glob(filepath.Join(dir, "*.jpg"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, errors.Errorf("no .jpg files in %s", dir)
	}
	sort.Strings(paths)

	frames := make([][]byte, 0, len(paths))
	for _, p := range paths {
		b, err := ioutil.ReadFile(p) // nolint: gosec
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", p)
		}
		frames = append(frames, b)
	}
	return frames, nil
}
