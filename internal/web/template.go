package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/charge-client/internal/logic"
	"github.com/sweeney/charge-client/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"stateOrStarting": func(s logic.State) string {
		if s == "" {
			return "STARTING"
		}
		return string(s)
	},
	"channel": func(ch int) string {
		if ch < 0 {
			return "none"
		}
		return fmt.Sprintf("%d", ch)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Charge Client</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.error { color: red; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Charge Client{{if .Config.WSBroker}}<span id="live-dot" class="live-dot pending" title="connecting"></span>{{end}}</h1>

<h2>Cycle</h2>
<table>
<tr><th>State</th><td id="state">{{stateOrStarting .State}}</td></tr>
<tr><th>Cycle</th><td id="cycle">{{.Cycle}}</td></tr>
<tr><th>Battery</th><td id="channel">{{channel .Channel}}</td></tr>
<tr><th>Charger</th><td id="charger" class="{{if .ChargerOn}}on{{else}}off{{end}}">{{if .ChargerOn}}ON{{else}}OFF{{end}}</td></tr>
<tr><th>OCV</th><td id="ocv">{{.OCV}}{{if not .BaselineValid}} (invalid){{end}}</td></tr>
<tr><th>Probe</th><td>v0={{.Probe.V0}} float={{.Probe.Float}} v1={{.Probe.V1}}{{if .Probe.Toggled}} toggled{{end}}</td></tr>
<tr><th>Offset</th><td id="offset">{{.Offset}}</td></tr>
<tr><th>Iteration</th><td id="iteration">{{.Iteration}} / {{.Interval}}</td></tr>
<tr><th>Last frame</th><td id="frame"{{if .LastFrame}}{{if .LastFrame.IsError}} class="error"{{end}}{{end}}>{{if .LastFrame}}{{.LastFrame}}{{else}}none{{end}}</td></tr>
{{if .LastReason}}<tr><th>Last reason</th><td>{{.LastReason}}</td></tr>{{end}}
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Config.Redis}}<tr><th>Redis</th><td>{{.Config.Redis}}</td></tr>{{end}}
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Cycles</th><td>{{.Counts.Cycles}}</td></tr>
<tr><th>Discarded baselines</th><td>{{.Counts.DiscardedBaselines}}</td></tr>
<tr><th>Toggles</th><td>{{.Counts.Toggles}}</td></tr>
<tr><th>Frames</th><td>{{.Counts.Frames}}</td></tr>
<tr><th>Error frames</th><td>{{.Counts.ErrorFrames}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>ADC</th><td>{{.Config.ADC}}</td></tr>
<tr><th>Recheck</th><td>{{.Config.RecheckSlow}} iterations</td></tr>
<tr><th>Monitor sleep</th><td>{{.Config.MonitorMs}}ms</td></tr>
<tr><th>Pulse</th><td>trigger {{.Config.TriggerUs}}us, unit {{.Config.PulseUnitUs}}us</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
{{if .Config.WSBroker}}
<script src="https://unpkg.com/mqtt/dist/mqtt.min.js"></script>
<script>
(function() {
  var broker = "{{.Config.WSBroker}}";
  var topic = "energy/charger/client/events";
  var dot = document.getElementById("live-dot");

  function set(id, text) {
    var el = document.getElementById(id);
    if (el) { el.textContent = text; }
  }

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  var client = mqtt.connect(broker, { reconnectPeriod: 5000 });

  client.on("connect", function() {
    setDot("ok", "live");
    client.subscribe(topic);
  });

  client.on("reconnect", function() {
    setDot("pending", "reconnecting");
  });

  client.on("offline", function() {
    setDot("err", "offline");
  });

  client.on("error", function() {
    setDot("err", "error");
  });

  client.on("message", function(t, payload) {
    try {
      var msg = JSON.parse(payload.toString());
      var c = msg.charger;
      if (!c) { return; }
      set("state", c.state);
      set("cycle", c.cycle);
      set("channel", c.channel);
      if (c.event === "CHARGER_ON") { set("charger", "ON"); }
      if (c.event === "CHARGER_OFF") { set("charger", "OFF"); }
      if (c.ocv) { set("ocv", c.ocv); }
      if (c.event === "FRAME") {
        set("offset", c.offset);
        set("iteration", c.iteration + " / " + c.interval);
      }
      if (c.frame) {
        set("frame", c.frame.kind === "ERROR" ? "ERROR" : "VALUE(" + c.frame.value + ")");
      }
    } catch (e) {}
  });
})();
</script>
{{end}}
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}
