package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/keypad-driver/internal/status"
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
	"key": func(k byte) string {
		if k == 0 {
			return "none"
		}
		return string(rune(k))
	},
	"keys": func(ks []byte) string {
		if len(ks) == 0 {
			return "none"
		}
		out := make([]byte, 0, 2*len(ks))
		for i, k := range ks {
			if i > 0 {
				out = append(out, ' ')
			}
			out = append(out, k)
		}
		return string(out)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Keypad</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.key { font-size: 1.6em; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
.warn { color: orange; }
</style>
</head>
<body>
<h1>Keypad</h1>

<h2>Input</h2>
<table>
<tr><th>Last key</th><td id="last-key" class="key">{{key .LastKey}}</td></tr>
<tr><th>Held</th><td id="held">{{keys .Held}}</td></tr>
<tr><th>Mode</th><td>{{.Config.Mode}}</td></tr>
<tr><th>Handler</th><td>{{.HandlerState}}</td></tr>
<tr><th>Buffered</th><td>{{.Buffered}} / {{.Config.Capacity}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Config.Serial}}<tr><th>Serial</th><td>{{.Config.Serial}} ({{.SerialWritten}} bytes sent)</td></tr>{{end}}
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}} {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Counters</h2>
<table>
<tr><th>Sweeps</th><td>{{.Keypad.Sweeps}}</td></tr>
<tr><th>Keys decoded</th><td>{{.Keypad.Keys}}</td></tr>
<tr><th>Keys read</th><td>{{.KeysRead}}</td></tr>
<tr><th>Dropped</th><td{{if .Keypad.Dropped}} class="warn"{{end}}>{{.Keypad.Dropped}}</td></tr>
<tr><th>Line errors</th><td{{if .Keypad.LineErrors}} class="warn"{{end}}>{{.Keypad.LineErrors}}</td></tr>
<tr><th>Edges</th><td>{{.Keypad.Edges}}</td></tr>
<tr><th>Coalesced edges</th><td>{{.Keypad.Coalesced}}</td></tr>
<tr><th>Schedule failures</th><td>{{.Keypad.ScheduleFailures}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Drain</th><td>{{.Config.DrainMs}}ms</td></tr>
<tr><th>Rows</th><td>{{.Config.Rows}}</td></tr>
<tr><th>Columns</th><td>{{.Config.Cols}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> <a href="/held.json">held</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot, held []byte) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
		Held   []byte
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Held:     held,
	}
	indexTmpl.Execute(w, data)
}
