// Command keypadd scans a 4x3 matrix keypad and publishes key presses to MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sweeney/keypad-driver/internal/gpio"
	"github.com/sweeney/keypad-driver/internal/keypad"
	"github.com/sweeney/keypad-driver/internal/mqtt"
	"github.com/sweeney/keypad-driver/internal/sink"
	"github.com/sweeney/keypad-driver/internal/status"
	"github.com/sweeney/keypad-driver/internal/web"
)

// GPIO backends selectable with -backend.
const (
	backendGPIOCDev = "gpiocdev"
	backendPeriph   = "periph"
)

type options struct {
	mode       keypad.Mode
	poll       time.Duration
	release    time.Duration
	capacity   int
	rows       []int
	cols       []int
	chip       string
	backend    string
	drain      time.Duration
	broker     string
	heartbeat  time.Duration
	httpAddr   string
	serialDev  string
	baud       int
	printState bool
}

func main() {
	mode := flag.String("mode", string(keypad.ModePoll), `Acquisition mode: "poll" or "irq"`)
	poll := flag.Duration("poll", keypad.DefaultPollInterval, "Sweep interval in poll mode")
	release := flag.Duration("release", keypad.DefaultPollInterval, "Re-sweep interval while a key is held in irq mode (0 to wait for the next edge)")
	capacity := flag.Int("buffer", keypad.DefaultCapacity, "Key buffer capacity (holds one less)")
	rows := flag.String("rows", joinPins(gpio.DefaultRows), "BCM pins for rows 0-3, comma separated")
	cols := flag.String("cols", joinPins(gpio.DefaultCols), "BCM pins for columns 0-2, comma separated")
	chip := flag.String("chip", "gpiochip0", "GPIO character device (gpiocdev backend)")
	backend := flag.String("backend", backendGPIOCDev, `GPIO backend: "gpiocdev" or "periph"`)
	drain := flag.Duration("drain", 50*time.Millisecond, "Interval between reads of the key buffer")
	broker := flag.String("broker", "tcp://192.168.1.200:1883", "MQTT broker address")
	heartbeat := flag.Duration("heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	httpAddr := flag.String("http", ":80", "HTTP status address (empty to disable)")
	serialDev := flag.String("serial", "", "Serial device to echo keys to (empty to disable)")
	baud := flag.Int("baud", sink.DefaultBaud, "Serial baud rate")
	printState := flag.Bool("print-state", false, "Print currently held keys and exit")

	flag.Parse()

	m, err := keypad.ParseMode(*mode)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	rowPins, err := parsePins(*rows)
	if err != nil {
		log.Fatalf("fatal: -rows: %v", err)
	}
	colPins, err := parsePins(*cols)
	if err != nil {
		log.Fatalf("fatal: -cols: %v", err)
	}

	opts := options{
		mode:       m,
		poll:       *poll,
		release:    *release,
		capacity:   *capacity,
		rows:       rowPins,
		cols:       colPins,
		chip:       *chip,
		backend:    *backend,
		drain:      *drain,
		broker:     *broker,
		heartbeat:  *heartbeat,
		httpAddr:   *httpAddr,
		serialDev:  *serialDev,
		baud:       *baud,
		printState: *printState,
	}
	if err := run(opts); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(o options) error {
	// Initialize GPIO. Edge notification is only requested in irq mode.
	lines, err := openLines(o.backend, o.chip, o.rows, o.cols, o.mode == keypad.ModeInterrupt)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer lines.Close()

	drv, err := keypad.New(lines, keypad.Config{
		Mode:         o.mode,
		PollInterval: o.poll,
		ReleasePoll:  o.release,
		Capacity:     o.capacity,
		Rows:         o.rows,
		Cols:         o.cols,
	})
	if err != nil {
		return fmt.Errorf("init keypad: %w", err)
	}
	defer drv.Close()

	// Print state mode
	if o.printState {
		drv.Sweep()
		fmt.Printf("held: %s\n", heldString(drv.Held()))
		return nil
	}

	// Initialize MQTT
	publisher, err := mqtt.NewRealPublisher(o.broker)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	// Optional serial echo; out stays a nil interface when disabled.
	var out io.Writer
	if o.serialDev != "" {
		s, err := sink.OpenSerial(o.serialDev, o.baud)
		if err != nil {
			return fmt.Errorf("init serial: %w", err)
		}
		defer s.Close()
		out = s
		log.Printf("echoing keys to %s at %d baud", o.serialDev, o.baud)
	}

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		Mode:        string(o.mode),
		PollMs:      o.poll.Milliseconds(),
		DrainMs:     o.drain.Milliseconds(),
		HeartbeatMs: o.heartbeat.Milliseconds(),
		Capacity:    o.capacity,
		Rows:        o.rows,
		Cols:        o.cols,
		Broker:      o.broker,
		HTTPPort:    o.httpAddr,
		Serial:      o.serialDev,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	// Start HTTP status server
	if o.httpAddr != "" {
		srv := web.New(o.httpAddr, tracker, drv)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", o.httpAddr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := drv.Start(ctx); err != nil {
		return fmt.Errorf("start keypad: %w", err)
	}

	log.Printf("started: mode=%s backend=%s rows=%v cols=%v broker=%s heartbeat=%v",
		o.mode, o.backend, o.rows, o.cols, o.broker, o.heartbeat)

	ticker := time.NewTicker(o.drain)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(drv, publisher, publisher, out, tracker, o.heartbeat, time.Now, ticker.C, sigCh)
}

// openLines claims the keypad lines on the selected backend.
func openLines(backend, chip string, rows, cols []int, edges bool) (gpio.Lines, error) {
	switch backend {
	case backendGPIOCDev:
		l, err := gpio.NewRealLines(chip, rows, cols, edges)
		if err != nil {
			return nil, err
		}
		return l, nil
	case backendPeriph:
		l, err := gpio.NewPeriphLines(rows, cols, edges)
		if err != nil {
			return nil, err
		}
		return l, nil
	}
	return nil, fmt.Errorf("unknown backend %q", backend)
}

// keySource is the part of keypad.Driver the drain loop uses.
type keySource interface {
	Read(p []byte) (int, error)
	Stats() keypad.Stats
	HandlerState() keypad.HandlerState
	Buffered() int
}

// byteCounter is implemented by sinks that count what they have sent.
type byteCounter interface {
	Written() uint64
}

func runLoop(src keySource, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, out io.Writer, tracker *status.Tracker, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	lastHeartbeat := now()
	var seq uint64
	buf := make([]byte, 64)

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				refreshTracker(tracker, src, mqttStatus)
				snap := tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case <-tick:
			t := now()
			for {
				n, err := src.Read(buf)
				if err != nil {
					log.Printf("keypad read error: %v", err)
					break
				}
				if n == 0 {
					break
				}
				keys := buf[:n]

				if out != nil {
					if _, err := out.Write(keys); err != nil {
						log.Printf("serial write error: %v", err)
					}
					if c, ok := out.(byteCounter); ok && tracker != nil {
						tracker.SetSerialWritten(c.Written())
					}
				}

				for _, k := range keys {
					seq++
					log.Printf("key: %c (seq=%d)", k, seq)
					if err := publisher.Publish(mqtt.KeyEvent{Timestamp: t, Key: k, Seq: seq}); err != nil {
						log.Printf("publish error: %v", err)
					}
					if tracker != nil {
						tracker.RecordKey(k, t)
					}
				}
			}

			if heartbeat > 0 && t.Sub(lastHeartbeat) >= heartbeat {
				lastHeartbeat = t
				st := src.Stats()
				log.Printf("heartbeat: sweeps=%d keys=%d dropped=%d line_errors=%d coalesced=%d",
					st.Sweeps, st.Keys, st.Dropped, st.LineErrors, st.Coalesced)

				hbEvent := mqtt.SystemEvent{
					Timestamp: t,
					Event:     "HEARTBEAT",
				}
				if tracker != nil {
					// Refresh network info for heartbeat
					if net := readNetworkInfo(); net != nil {
						tracker.SetNetwork(net)
					}
					refreshTracker(tracker, src, mqttStatus)
					hbEvent.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), "HEARTBEAT", "")
				}
				if err := publisher.PublishSystem(hbEvent); err != nil {
					log.Printf("heartbeat publish error: %v", err)
				}
			}

			if tracker != nil {
				refreshTracker(tracker, src, mqttStatus)
			}
		}
	}
}

func refreshTracker(tracker *status.Tracker, src keySource, mqttStatus mqtt.ConnectionStatus) {
	tracker.Update(src.Stats(), src.HandlerState(), src.Buffered())
	if mqttStatus != nil {
		tracker.SetMQTTConnected(mqttStatus.IsConnected())
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

// parsePins parses a comma separated list of BCM pin numbers.
func parsePins(s string) ([]int, error) {
	fields := strings.Split(s, ",")
	pins := make([]int, 0, len(fields))
	seen := make(map[int]bool, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("bad pin %q", f)
		}
		if n < 0 {
			return nil, fmt.Errorf("negative pin %d", n)
		}
		if seen[n] {
			return nil, fmt.Errorf("pin %d listed twice", n)
		}
		seen[n] = true
		pins = append(pins, n)
	}
	return pins, nil
}

func joinPins(pins []int) string {
	s := make([]string, len(pins))
	for i, p := range pins {
		s[i] = strconv.Itoa(p)
	}
	return strings.Join(s, ",")
}

func heldString(keys []byte) string {
	if len(keys) == 0 {
		return "none"
	}
	s := make([]string, len(keys))
	for i, k := range keys {
		s[i] = string(rune(k))
	}
	return strings.Join(s, " ")
}
