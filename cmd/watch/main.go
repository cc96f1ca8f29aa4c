package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"

	"main/internal/model"
	"main/internal/obs"
	"main/internal/recorder"
	"main/internal/subscriptions"
	"main/pkg/conn"
	"main/pkg/realtime"
)

const defaultEndpoint = "ws://localhost:8081/ws"

// envAuth sources session identity from the environment.
type envAuth struct{}

func (envAuth) IsAuthenticated() bool { return os.Getenv("FARM_AUTH_TOKEN") != "" }
func (envAuth) UserID() string        { return os.Getenv("FARM_USER_ID") }
func (envAuth) Token() string         { return os.Getenv("FARM_AUTH_TOKEN") }

func main() {
	if err := run(); err != nil {
		logs.Errorf("watch: %+v", err)
		os.Exit(1)
	}
}

func run() error {
	endpointFlag := flag.String("endpoint", "", "realtime endpoint URL (default $FARM_REALTIME_URL)")
	farmFlag := flag.String("farm", "", "farm id to watch")
	sensorFlag := flag.String("sensor", "", "sensor type filter, e.g. temperature")
	pgFlag := flag.String("pg-dsn", "", "archive events to PostgreSQL (optional)")
	pyroscopeFlag := flag.String("pyroscope", "", "pyroscope server address (optional)")
	statsFlag := flag.Duration("stats-interval", time.Minute, "counter log interval")
	flag.Parse()

	endpoint := strings.TrimSpace(*endpointFlag)
	if endpoint == "" {
		endpoint = os.Getenv("FARM_REALTIME_URL")
	}
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if addr := strings.TrimSpace(*pyroscopeFlag); addr != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "farm/watch",
			ServerAddress:   addr,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			return err
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	sup := realtime.New(realtime.Option{
		Endpoint: endpoint,
		Auth:     envAuth{},
		Channel:  realtime.NewGorillaChannel(realtime.GorillaOption{PingInterval: 30 * time.Second}),
	})
	defer sup.Close()

	metrics := obs.NewMetrics()
	cancelMetrics := metrics.Watch(sup)
	defer cancelMetrics()
	subscriptions.OnDrop = func(realtime.Topic) { metrics.IncObserverDrop() }

	unsubStatus := sup.OnStatusChange(func(status realtime.Status) {
		switch status {
		case realtime.StatusFailed:
			logs.Error("connection failed; run again or check credentials")
		default:
			logs.Infof("connection %s", status)
		}
	})
	defer unsubStatus()

	if dsn := strings.TrimSpace(*pgFlag); dsn != "" {
		client, err := conn.New(conn.Option{ConnString: dsn})
		if err != nil {
			return err
		}
		defer client.Close()

		archive, err := recorder.New(client)
		if err != nil {
			return err
		}
		defer archive.Close()
		if err := archive.Attach(sup); err != nil {
			return err
		}
	}

	farmID := strings.TrimSpace(*farmFlag)
	alerts := subscriptions.WatchFarmAlerts(sup, farmID)
	defer alerts.Close()
	cancelAlerts := alerts.Observe(ctx, func(a model.FarmAlert) {
		logs.Infof("[%s] %s alert: %s", a.FarmID, a.Severity, a.Message)
	})
	defer cancelAlerts()

	sensors := subscriptions.WatchSensorData(sup, farmID, strings.TrimSpace(*sensorFlag))
	defer sensors.Close()
	cancelSensors := sensors.Observe(ctx, func(r model.SensorReading) {
		logs.Infof("[%s] %s %s = %s%s", r.FarmID, r.SensorID, r.Kind, r.Value, r.Unit)
	})
	defer cancelSensors()

	notes := subscriptions.WatchNotifications(sup, os.Getenv("FARM_USER_ID"))
	defer notes.Close()
	cancelNotes := notes.Observe(ctx, func(n model.Notification) {
		logs.Infof("notification: %s", n.Title)
	})
	defer cancelNotes()

	sup.Connect(endpoint)

	ticker := time.NewTicker(*statsFlag)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			sup.Disconnect()
			return nil
		case <-ticker.C:
			snap := metrics.Snapshot()
			logs.Infof("events: %v, reconnects: %d", snap.EventCounts, snap.Reconnects)
		}
	}
}
