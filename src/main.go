package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"io"
	"net"
	"net/url"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jinjor/desktop-synth/src/audio"
	"github.com/jinjor/desktop-synth/src/keyboard"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	sampleRate := flag.Int("sample-rate", audio.DefaultSampleRate, "output sample rate in Hz")
	frames := flag.Int("frames", audio.DefaultFramesPerBlock, "frames per audio block")
	sockFileName := flag.String("sock", "/tmp/desktop-synth.sock", "unix socket for commands and reports (empty to disable)")
	useMidi := flag.Bool("midi", false, "listen to the first MIDI input")
	useKeyboard := flag.Bool("keyboard", false, "play notes from the terminal keyboard")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.Fatalf("error: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logrus.WithField("numCPU", runtime.NumCPU()).Debug("starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := audio.Config{SampleRate: *sampleRate, FramesPerBlock: *frames}
	device, err := audio.NewAudio(cfg)
	if err != nil {
		logrus.Fatalf("error: %v", err)
	}
	defer func() {
		if err := device.Close(); err != nil {
			logrus.WithError(err).Error("failed to close audio")
		}
	}()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	defer func() {
		signal.Stop(signalCh)
		cancel()
	}()
	go func(ctx context.Context) {
		select {
		case sig := <-signalCh:
			logrus.Infof("Caught signal %s: shutting down...", sig)
			cancel()
		case <-ctx.Done():
		}
	}(ctx)

	if *useKeyboard {
		restore, err := keyboard.MakeRaw(os.Stdin)
		if err != nil {
			logrus.Fatalf("error: %v", err)
		}
		defer restore()
		// stdin reads cannot be interrupted, so this goroutine is not waited for
		go func(ctx context.Context) {
			defer cancel()
			if err := keyboard.New(device.Update).Run(ctx, os.Stdin); err != nil {
				logrus.WithError(err).Error("keyboard stopped")
			}
		}(ctx)
		logrus.Info("keyboard: q z s e d f t g y h u j play notes, space releases, esc quits")
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return device.Start(ctx)
	})
	if *useMidi {
		g.Go(func() error {
			for data := range audio.ListenToMidiIn(ctx) {
				device.AddMidiEvent(data)
			}
			return nil
		})
	}
	if *sockFileName != "" {
		g.Go(func() error {
			return withIPCConnection(ctx, *sockFileName, func(conn net.Conn) error {
				connCtx, disconnect := context.WithCancel(ctx)
				defer disconnect()
				g, ctx := errgroup.WithContext(connCtx)
				g.Go(func() error {
					// reports stop with the client
					defer disconnect()
					return receiveCommands(ctx, conn, device.CommandCh)
				})
				g.Go(func() error {
					return sendReports(ctx, conn, device.Synth)
				})
				if err := g.Wait(); err != nil && connCtx.Err() == nil {
					return err
				}
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logrus.Fatalf("error: %v", err)
	}
	logrus.Info("main() ended.")
}

func withIPCConnection(ctx context.Context, sockFileName string, f func(net.Conn) error) error {
	os.Remove(sockFileName)
	listener, err := new(net.ListenConfig).Listen(ctx, "unix", sockFileName)
	if err != nil {
		return err
	}
	defer func() {
		logrus.Info("Closing IPC...")
		if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			logrus.WithError(err).Error("error while closing listener")
		}
		os.Remove(sockFileName)
	}()
	go func() {
		<-ctx.Done()
		listener.Close()
	}()
	logrus.WithField("sock", sockFileName).Info("start listening...")
	conn, err := listener.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	defer func() {
		if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			logrus.WithError(err).Error("error while closing connection")
		}
	}()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	return f(conn)
}

func receiveCommands(ctx context.Context, conn net.Conn, commandCh chan<- []string) error {
	reader := bufio.NewReader(conn)
	var line []byte
loop:
	for {
		select {
		case <-ctx.Done():
			logrus.Info("Connection interrupted")
			break loop
		default:
		}
		next, isPrefix, err := reader.ReadLine()
		if err == io.EOF {
			break loop
		}
		if err != nil {
			if ctx.Err() != nil {
				break loop
			}
			return err
		}
		line = append(line, next...)
		if isPrefix {
			continue
		}
		command, err := parseCommand(string(line))
		if err != nil {
			logrus.WithError(err).Warnf("malformed command %q", line)
			line = line[:0]
			continue
		}
		commandCh <- command
		logrus.Debugf("received: %s", line)
		line = line[:0]
	}
	logrus.Info("receiveCommands() ended.")
	return nil
}

func parseCommand(line string) ([]string, error) {
	lineStr := strings.Split(line, " ")
	for i, item := range lineStr {
		escaped, err := url.QueryUnescape(item)
		if err != nil {
			return nil, err
		}
		lineStr[i] = escaped
	}
	return lineStr, nil
}

func sendReports(ctx context.Context, conn net.Conn, synth *audio.Synth) error {
	t := time.NewTicker(time.Second / 60)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			logrus.Info("sendReports() ended.")
			return nil
		case <-t.C:
		}
		if err := writeLine(conn, "level "+strconv.FormatFloat(synth.Level(), 'f', 6, 64)); err != nil {
			return err
		}
		if synth.Changes.Has(audio.ChangeFilterShape) {
			synth.Changes.Delete(audio.ChangeFilterShape)
			s := "filter-shape"
			for _, value := range synth.FilterShape() {
				s += " " + strconv.FormatFloat(value, 'f', 6, 64)
			}
			if err := writeLine(conn, s); err != nil {
				return err
			}
		}
		if synth.Changes.Has(audio.ChangeData) {
			synth.Changes.Delete(audio.ChangeData)
			if err := writeLine(conn, "state "+string(synth.ToJSON())); err != nil {
				return err
			}
		}
	}
}

func writeLine(conn net.Conn, s string) error {
	_, err := conn.Write([]byte(s + "\n"))
	return err
}
