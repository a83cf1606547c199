// Command charge-client runs the battery charge node: it selects a battery,
// reports its open-circuit voltage to the master over the pulse line, then
// charges it while reporting compensated readings.
package main

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sweeney/charge-client/internal/hal"
	"github.com/sweeney/charge-client/internal/logic"
	"github.com/sweeney/charge-client/internal/node"
	"github.com/sweeney/charge-client/internal/status"
)

// Hardware and timing flags shared by every command.
var (
	chipFlag       string
	pinMuxFlag     int
	pinChargerFlag int
	pinReportFlag  int
	adcFlag        string
	i2cBusFlag     string
	i2cAddrFlag    uint16
	adcChannelFlag int
	portFlag       string
	baudFlag       int
	watchdogFlag   string

	recheckFlag      int
	monitorSleepFlag time.Duration
	awaitMasterFlag  time.Duration
	pulseUnitFlag    time.Duration
	pulseTriggerFlag time.Duration
	muxOnSettleFlag  time.Duration
	muxOffSettleFlag time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "charge-client",
	Short: "Battery charge node reporting to a pulse-counting master",
	Long: `charge-client alternates between two batteries, reports each open-circuit
voltage to the master as a pulse train, and charges while reporting
offset-compensated readings until the recheck interval ends.`,
	SilenceUsage: true,
}

func init() {
	// Disable the default help command (use --help flag instead)
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	def := node.DefaultConfig()
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&chipFlag, "chip", "gpiochip0", "GPIO chip name")
	pf.IntVar(&pinMuxFlag, "pin-mux", hal.DefaultPinMux, "Line offset of the battery switch")
	pf.IntVar(&pinChargerFlag, "pin-charger", hal.DefaultPinCharger, "Line offset of the charger disable input")
	pf.IntVar(&pinReportFlag, "pin-report", hal.DefaultPinReport, "Line offset of the report line")
	pf.StringVar(&adcFlag, "adc", "ads7830", `ADC backend: "ads7830" (I2C) or "serial"`)
	pf.StringVar(&i2cBusFlag, "i2c-bus", "", "I2C bus name (empty for the first bus)")
	pf.Uint16Var(&i2cAddrFlag, "i2c-addr", hal.DefaultADS7830Addr, "ADS7830 I2C address")
	pf.IntVar(&adcChannelFlag, "adc-channel", 0, "ADS7830 input channel (0-7)")
	pf.StringVarP(&portFlag, "port", "p", hal.DefaultSerialDevice, "Serial ADC device path")
	pf.IntVar(&baudFlag, "baud", hal.DefaultSerialBaud, "Serial ADC baud rate")
	pf.StringVar(&watchdogFlag, "watchdog", "", "Watchdog device, e.g. /dev/watchdog (empty to disable)")

	pf.IntVar(&recheckFlag, "recheck", def.RecheckSlow, "Monitoring iterations per cycle (halved for nearly equal batteries)")
	pf.DurationVar(&monitorSleepFlag, "monitor-sleep", def.MonitorSleep, "Sleep between monitoring iterations")
	pf.DurationVar(&awaitMasterFlag, "await-master", def.AwaitMaster, "Wait after the baseline report")
	pf.DurationVar(&pulseUnitFlag, "pulse-unit", def.Pulse.Unit, "Width of each data pulse and gap")
	pf.DurationVar(&pulseTriggerFlag, "pulse-trigger", def.Pulse.Trigger, "Width of the frame trigger")
	pf.DurationVar(&muxOnSettleFlag, "mux-on-settle", def.MuxOnSettle, "Settle time after closing the switch")
	pf.DurationVar(&muxOffSettleFlag, "mux-off-settle", def.MuxOffSettle, "Settle time after opening the switch")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// nodeConfig applies the timing flags to the default configuration.
func nodeConfig() node.Config {
	cfg := node.DefaultConfig()
	cfg.RecheckSlow = recheckFlag
	cfg.MonitorSleep = monitorSleepFlag
	cfg.AwaitMaster = awaitMasterFlag
	cfg.Pulse = logic.PulseTiming{Trigger: pulseTriggerFlag, Unit: pulseUnitFlag}
	cfg.MuxOnSettle = muxOnSettleFlag
	cfg.MuxOffSettle = muxOffSettleFlag
	return cfg
}

// openADC opens the backend selected by --adc.
func openADC() (hal.ADC, error) {
	switch adcFlag {
	case "ads7830":
		return hal.OpenADS7830(i2cBusFlag, i2cAddrFlag, adcChannelFlag)
	case "serial":
		return hal.OpenSerialADC(portFlag, baudFlag)
	default:
		return nil, fmt.Errorf("unknown adc backend %q", adcFlag)
	}
}

// openHAL opens the ADC, the optional watchdog and the GPIO lines.
func openHAL() (*hal.Real, error) {
	adc, err := openADC()
	if err != nil {
		return nil, fmt.Errorf("init adc: %w", err)
	}

	var wd *hal.Watchdog
	if watchdogFlag != "" {
		wd, err = hal.OpenWatchdog(watchdogFlag)
		if err != nil {
			adc.Close()
			return nil, err
		}
	}

	h, err := hal.NewReal(hal.Config{
		Chip:       chipFlag,
		PinMux:     pinMuxFlag,
		PinCharger: pinChargerFlag,
		PinReport:  pinReportFlag,
		ADC:        adc,
		Watchdog:   wd,
	})
	if err != nil {
		return nil, fmt.Errorf("init gpio: %w", err)
	}
	return h, nil
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

// resolveWSBroker converts the --ws-broker flag value into a concrete URL.
// "=broker" derives ws://host:9001 from the TCP broker address; "off" disables.
func resolveWSBroker(ws, broker string) string {
	if ws == "off" {
		return ""
	}
	if ws != "=broker" {
		return ws
	}
	u, err := url.Parse(broker)
	if err != nil {
		log.Printf("ws-broker: cannot parse --broker %q: %v", broker, err)
		return ""
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String()
}
