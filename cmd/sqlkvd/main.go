package main

import (
	"context"
	"os"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"go.gazette.dev/sqlkv/codecs"
	"go.gazette.dev/sqlkv/commands"
	"go.gazette.dev/sqlkv/host"
	"go.gazette.dev/sqlkv/instance"
	mbp "go.gazette.dev/sqlkv/mainboilerplate"
	"go.gazette.dev/sqlkv/metrics"
	"go.gazette.dev/sqlkv/task"
)

const iniFilename = "sqlkvd.ini"

// Config is the top-level configuration object of a sqlkvd server.
var Config = new(struct {
	Server struct {
		mbp.ServiceConfig
		BlockTimeout time.Duration `long:"block-timeout" env:"BLOCK_TIMEOUT" default:"10s" description:"Duration after which a blocked client receives a null reply. Zero never times out"`
	} `group:"Server" namespace:"server" env-namespace:"SERVER"`

	Instance struct {
		BlockSize int    `long:"block-size" env:"BLOCK_SIZE" default:"40960" description:"Block size of databases encoded into checkpoints"`
		TempDir   string `long:"temp-dir" env:"TEMP_DIR" description:"Directory of temporary database files. The system default is used if not set"`
	} `group:"Instance" namespace:"instance" env-namespace:"INSTANCE"`

	Checkpoint struct {
		Path     string        `long:"path" env:"PATH" description:"Path of the checkpoint file. Checkpoints are disabled if not set"`
		Codec    string        `long:"codec" env:"CODEC" default:"snappy" choice:"none" choice:"gzip" choice:"snappy" choice:"zstandard" description:"Compression codec of written checkpoints"`
		Interval time.Duration `long:"interval" env:"INTERVAL" default:"5m" description:"Interval between periodic checkpoints. Zero disables periodic checkpoints"`
		Level    int           `long:"zstd-level" env:"ZSTD_LEVEL" default:"3" description:"Compression level of the zstandard codec, from 1 (fastest) to 20"`
	} `group:"Checkpoint" namespace:"checkpoint" env-namespace:"CHECKPOINT"`

	Log         mbp.LogConfig         `group:"Logging" namespace:"log" env-namespace:"LOG"`
	Diagnostics mbp.DiagnosticsConfig `group:"Debug" namespace:"debug" env-namespace:"DEBUG"`
})

type cmdServe struct{}

func (cmdServe) Execute(args []string) error {
	defer mbp.InitDiagnosticsAndRecover(Config.Diagnostics, metrics.CommandsTotal, metrics.LogEventsTotal)()
	Config.Server.ID = Config.Server.ProcessID()
	mbp.InitLog(Config.Log, log.Fields{"id": Config.Server.ID})
	commands.Version = mbp.Version

	log.WithFields(log.Fields{
		"config":  Config,
		"version": mbp.Version,
		"built":   mbp.BuildDate,
	}).Info("starting sqlkvd")

	var srv = host.NewServer(Config.Server.BlockTimeout)
	commands.Register(srv, &instance.Config{
		BlockSize: Config.Instance.BlockSize,
		TempDir:   Config.Instance.TempDir,
		Observer:  metrics.Default,
	}, metrics.Default)

	if Config.Checkpoint.Path != "" {
		var codec = codecs.Codec(Config.Checkpoint.Codec)
		codecs.ZstandardLevel = Config.Checkpoint.Level
		mbp.Must(codec.Validate(), "invalid checkpoint codec")

		srv.Checkpoint = &host.CheckpointConfig{
			Fs:    afero.NewOsFs(),
			Path:  Config.Checkpoint.Path,
			Codec: codec,
		}
		if err := srv.LoadCheckpoint(); os.IsNotExist(errors.Cause(err)) {
			log.WithField("path", Config.Checkpoint.Path).Info("checkpoint doesn't exist (will be created)")
		} else {
			mbp.Must(err, "failed to load checkpoint")
		}
	}

	var server = Config.Server.MustServer(srv)
	var tg = task.NewGroup(context.Background())
	server.QueueTasks(tg)

	if srv.Checkpoint != nil && Config.Checkpoint.Interval > 0 {
		tg.QueuePeriodic("checkpoint", Config.Checkpoint.Interval, srv.SaveCheckpoint)
	}
	tg.QueueSignalWatch(syscall.SIGTERM, syscall.SIGINT)

	log.WithField("endpoint", server.Endpoint()).Info("serving")
	tg.GoRun()

	var err = tg.Wait()
	if err != nil {
		log.WithField("err", err).Error("server task failed")
	}
	if srv.Checkpoint != nil {
		mbp.Must(srv.SaveCheckpoint(), "failed to write final checkpoint")
	}
	srv.Close()

	log.Info("goodbye")
	return err
}

func main() {
	var parser = flags.NewParser(Config, flags.Default)

	_, _ = parser.AddCommand("serve", "Serve as a sqlkvd server", `
serve a sqlkvd server with the provided configuration, until signaled to
exit (via SIGTERM or SIGINT). The checkpoint, if configured, is loaded before
serving begins and written again before exiting.
`, &cmdServe{})

	mbp.AddPrintConfigCmd(parser, iniFilename)
	mbp.MustParseConfig(parser, iniFilename)
}
