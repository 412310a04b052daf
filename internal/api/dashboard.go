package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) index(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, dashboardHTML)
}

const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>AZLEMA Trader</title>
<style>
  body { background:#12161c; color:#eaecef; font-family:system-ui,sans-serif; margin:0; }
  .container { max-width:1000px; margin:0 auto; padding:25px; }
  h1 { font-size:22px; }
  .grid { display:grid; grid-template-columns:repeat(auto-fit,minmax(160px,1fr)); gap:12px; margin-bottom:20px; }
  .card { background:#1e2329; border-radius:8px; padding:14px; border-left:4px solid #f0b90b; }
  .label { color:#848e9c; font-size:12px; }
  .value { font-size:20px; font-weight:600; margin-top:4px; }
  .positive { color:#0ecb81; } .negative { color:#f6465d; }
  button { background:#f0b90b; color:#12161c; border:none; border-radius:6px; padding:8px 16px; font-weight:600; cursor:pointer; margin-right:8px; }
  button.stop { background:#f6465d; color:#eaecef; }
  input { background:#1e2329; border:1px solid #2b3139; color:#eaecef; border-radius:6px; padding:8px; margin-right:8px; }
  #log { background:#1e2329; border-radius:8px; padding:12px; height:260px; overflow-y:auto; font-family:monospace; font-size:12px; white-space:pre-wrap; }
  a { color:#f0b90b; }
</style>
</head>
<body>
<div class="container">
  <h1>Adaptive Zero Lag EMA — Live Trader</h1>

  <div class="grid">
    <div class="card"><div class="label">State</div><div class="value" id="running">—</div></div>
    <div class="card"><div class="label">Symbol</div><div class="value" id="symbol">—</div></div>
    <div class="card"><div class="label">Period</div><div class="value" id="period">—</div></div>
    <div class="card"><div class="label">Position</div><div class="value" id="position">—</div></div>
    <div class="card"><div class="label">Balance</div><div class="value" id="balance">—</div></div>
    <div class="card"><div class="label">Net Profit</div><div class="value" id="netprofit">—</div></div>
  </div>

  <p>
    <input type="password" id="password" placeholder="dashboard password">
    <button onclick="login()">Login</button>
    <button onclick="control('start')">Start</button>
    <button class="stop" onclick="control('stop')">Stop</button>
    <a href="/report">Latest backtest report</a>
  </p>

  <div id="log"></div>
</div>

<script>
let token = '';

async function login() {
  const res = await fetch('/api/auth/login', {
    method: 'POST',
    headers: {'Content-Type': 'application/json'},
    body: JSON.stringify({password: document.getElementById('password').value})
  });
  const body = await res.json();
  if (res.ok) { token = body.token; appendLog('logged in'); }
  else { appendLog('login failed: ' + (body.error || res.status)); }
}

async function control(action) {
  const res = await fetch('/api/trader/' + action, {
    method: 'POST',
    headers: {'Authorization': 'Bearer ' + token}
  });
  const body = await res.json();
  appendLog(action + ': ' + (body.status || body.error || res.status));
}

function appendLog(line) {
  const el = document.getElementById('log');
  el.textContent += new Date().toISOString() + '  ' + line + '\n';
  el.scrollTop = el.scrollHeight;
}

function setStatus(st) {
  document.getElementById('running').textContent = st.running ? 'RUNNING' : 'STOPPED';
  document.getElementById('symbol').textContent = st.symbol || '—';
  document.getElementById('period').textContent = st.period;
  document.getElementById('position').textContent = st.position_size.toFixed(4);
  document.getElementById('balance').textContent = st.balance.toFixed(2);
  const np = document.getElementById('netprofit');
  np.textContent = st.net_profit.toFixed(2);
  np.className = 'value ' + (st.net_profit >= 0 ? 'positive' : 'negative');
}

function connect() {
  const proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
  const ws = new WebSocket(proto + location.host + '/ws');
  ws.onmessage = (ev) => {
    const env = JSON.parse(ev.data);
    if (env.topic === 'status') setStatus(env.data);
    else if (env.topic === 'log') appendLog('[' + env.data.level + '] ' + env.data.message);
    else if (env.topic === 'trade') appendLog('trade ' + env.data.event.kind + ' @ ' + env.data.event.price);
  };
  ws.onclose = () => setTimeout(connect, 3000);
}

fetch('/api/status').then(r => r.ok ? r.json() : null).then(body => {
  if (body && body.status) setStatus(body.status);
});
connect();
</script>
</body>
</html>
`
