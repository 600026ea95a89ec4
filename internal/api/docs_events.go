package api

const eventsDocsHTML = `<!doctype html>
<html lang="en" data-theme="dark">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Event Stream — Journey Agent</title>
  <style>
    body {
      margin: 0 auto;
      max-width: 860px;
      padding: 32px 24px;
      font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
      font-size: 14px;
      line-height: 1.65;
      background: #0d1117;
      color: #c9d1d9;
    }
    a { color: #58a6ff; text-decoration: none; }
    code, pre {
      font-family: ui-monospace, SFMono-Regular, Menlo, monospace;
      background: #161b22;
      border: 1px solid #30363d;
      border-radius: 6px;
    }
    code { padding: 1px 5px; }
    pre { padding: 12px 16px; overflow-x: auto; }
    table { border-collapse: collapse; width: 100%; }
    th, td { border: 1px solid #30363d; padding: 6px 10px; text-align: left; }
  </style>
</head>
<body>
  <p><a href="/docs">← REST API Docs</a></p>
  <h1>Run event stream</h1>
  <p>Every lifecycle event of a journey run is pushed to subscribers in the order the runner reported it.
  Each message carries the run id returned by <code>POST /api/v1/runs</code>.</p>

  <h2>Endpoints</h2>
  <table>
    <tr><th>Endpoint</th><th>Transport</th></tr>
    <tr><td><code>GET /api/v1/events</code></td><td>Server-Sent Events, <code>event:</code> is the event kind</td></tr>
    <tr><td><code>GET /api/v1/events/ws</code></td><td>WebSocket, one text frame per message</td></tr>
  </table>

  <h2>Filters</h2>
  <table>
    <tr><th>Query</th><th>Effect</th></tr>
    <tr><td><code>events=journey/end,step/end</code></td><td>only the listed kinds</td></tr>
    <tr><td><code>run_id=&lt;uuid&gt;</code></td><td>only messages of one run</td></tr>
  </table>

  <h2>Message</h2>
<pre>{"run_id":"…","event":"journey/start","data":{"name":"checkout"}}
{"run_id":"…","event":"step/end","data":{"name":"Open shop","status":"succeeded","durationMs":42,"actionTitles":["Open shop","Action 2"]}}
{"run_id":"…","event":"journey/end","data":{"name":"checkout","status":"failed","error":{"name":"Error","message":"…"}}}</pre>
  <p>A run always ends with exactly one <code>journey/end</code>. When the runner exits without reporting one,
  a failed <code>journey/end</code> carrying the cause is sent in its place.</p>
  <p>Slow subscribers drop messages rather than stall the run; drops are counted in
  <code>journey_push_dropped_total</code> on <a href="/metrics">/metrics</a>.</p>
</body>
</html>`
