package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/alecthomas/kingpin/v2"
	"github.com/comail/colog"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/ktt-ol/sensorlux/internal/config"
	"github.com/ktt-ol/sensorlux/internal/wifi"
)

func main() {
	colog.Register()
	colog.ParseFields(true)
	colog.SetMinLevel(colog.LInfo)

	app := kingpin.New("sensorlux", "Samples sensors and reports them to InfluxDB and MQTT.")
	configFile := app.Flag("config", "configuration file (.toml or .yaml)").Short('c').Default("sensorlux.toml").String()
	verbose := app.Flag("verbose", "enable debug logging").Short('v').Bool()
	location := app.Flag("location", "override the location label").String()
	influxURL := app.Flag("influx-url", "override the InfluxDB write endpoint").String()
	var mqttSet bool
	mqttEnabled := app.Flag("mqtt", "enable publishing to MQTT (--no-mqtt disables)").IsSetByUser(&mqttSet).Bool()

	runCmd := app.Command("run", "sample and report until stopped").Default()
	checkCmd := app.Command("check", "validate the configuration")
	showCmd := app.Command("show", "print the configuration with credentials masked")
	wifiCmd := app.Command("wifi", "write a wpa_supplicant config for the configured network")
	wifiOut := wifiCmd.Flag("out", "output file").Default("wpa_supplicant.conf").String()
	wifiCountry := wifiCmd.Flag("country", "regulatory country code, e.g. DE").String()
	replayCmd := app.Command("replay", "write readings from a CSV log to the sinks")
	replayFile := replayCmd.Arg("file", "CSV file, - for stdin").Required().String()

	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	if *verbose {
		colog.SetMinLevel(colog.LDebug)
		mqtt.ERROR = log.New(os.Stderr, "[mqtt] ", log.LstdFlags)
	}

	overrides := &config.Overrides{}
	if *location != "" {
		overrides.Location = location
	}
	if *influxURL != "" {
		overrides.InfluxURL = influxURL
	}
	if mqttSet {
		overrides.MQTTEnabled = mqttEnabled
	}

	conf, err := config.Load(*configFile, overrides)
	if err != nil {
		log.Fatal(err)
	}

	switch cmd {
	case checkCmd.FullCommand():
		fmt.Println("configuration ok")
	case showCmd.FullCommand():
		if err := toml.NewEncoder(os.Stdout).Encode(conf.Redacted()); err != nil {
			log.Fatal(err)
		}
	case wifiCmd.FullCommand():
		country := *wifiCountry
		if country == "" {
			country = conf.WiFi.Country
		}
		n := wifi.Network{SSID: conf.WiFi.SSID, Passphrase: conf.WiFi.Pass}
		if err := n.WriteFile(*wifiOut, country); err != nil {
			log.Fatal(err)
		}
		log.Printf("info: wrote network %q to %s", conf.WiFi.SSID, *wifiOut)
	case replayCmd.FullCommand():
		if err := replay(context.Background(), conf, *replayFile); err != nil {
			log.Fatal(err)
		}
	case runCmd.FullCommand():
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		runForever(ctx, conf)
	}
}

// runForever restarts run with exponential backoff until ctx is done.
func runForever(ctx context.Context, conf config.Config) {
	wait := 250 * time.Millisecond
	maxWait := 60 * time.Second
	for {
		err := run(ctx, conf)
		if ctx.Err() != nil {
			log.Println("info: stopped")
			return
		}
		if err == nil {
			wait = 250 * time.Millisecond
			continue
		}
		log.Println("error: ", err)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return
		}
		if wait < maxWait {
			wait *= 2
		}
	}
}
